package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/jmoiron/sqlx"
	"github.com/medistock/medistock-backend/internal/user/domain"
	"github.com/medistock/medistock-backend/pkg/database"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/permissions"
	"github.com/medistock/medistock-backend/pkg/tenant"
)

const userColumns = `uid, tenant_id, email, role, phone, full_name, created_at`

// UserRepository handles user profile persistence
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) inTenant(ctx context.Context, fn func(tx *sqlx.Tx, tenantID string) error) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}
	return r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		return fn(tx, tenantID)
	})
}

// Create inserts a profile. UID must already be set from the identity.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.inTenant(ctx, func(tx *sqlx.Tx, tenantID string) error {
		user.TenantID = tenantID
		query := `
			INSERT INTO user_profiles (uid, tenant_id, email, role, phone, full_name)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at
		`
		err := tx.QueryRowxContext(ctx, query,
			user.UID, tenantID, user.Email, user.Role, user.Phone, user.FullName,
		).Scan(&user.CreatedAt)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	})
}

// GetByID gets a profile by uid
func (r *UserRepository) GetByID(ctx context.Context, uid string) (*domain.User, error) {
	var user domain.User
	err := r.inTenant(ctx, func(tx *sqlx.Tx, tenantID string) error {
		return tx.GetContext(ctx, &user,
			`SELECT `+userColumns+` FROM user_profiles WHERE tenant_id = $1 AND uid = $2`, tenantID, uid)
	})
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundWithKey("user")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns every profile of the tenant ordered by name
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	err := r.inTenant(ctx, func(tx *sqlx.Tx, tenantID string) error {
		return tx.SelectContext(ctx, &users,
			`SELECT `+userColumns+` FROM user_profiles WHERE tenant_id = $1 ORDER BY full_name, email`, tenantID)
	})
	return users, err
}

// AdminEmails returns the email of every Admin profile, one entry per admin.
func (r *UserRepository) AdminEmails(ctx context.Context) ([]string, error) {
	emails := []string{}
	err := r.inTenant(ctx, func(tx *sqlx.Tx, tenantID string) error {
		return tx.SelectContext(ctx, &emails,
			`SELECT COALESCE(email, '') FROM user_profiles WHERE tenant_id = $1 AND role = $2 ORDER BY created_at`,
			tenantID, permissions.RoleAdmin)
	})
	return emails, err
}

// UpdateRole changes the role of a profile and returns the previous role.
func (r *UserRepository) UpdateRole(ctx context.Context, uid, role string) (string, error) {
	var old string
	err := r.inTenant(ctx, func(tx *sqlx.Tx, tenantID string) error {
		if err := tx.GetContext(ctx, &old,
			`SELECT role FROM user_profiles WHERE tenant_id = $1 AND uid = $2 FOR UPDATE`, tenantID, uid); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE user_profiles SET role = $1 WHERE tenant_id = $2 AND uid = $3`, role, tenantID, uid)
		return err
	})
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", errors.NotFoundWithKey("user")
	}
	if appErr := database.MapPQError(err); appErr != nil {
		return "", appErr
	}
	return old, err
}

// UpdateProfile changes name and phone.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	return r.inTenant(ctx, func(tx *sqlx.Tx, tenantID string) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE user_profiles SET full_name = $1, phone = $2 WHERE tenant_id = $3 AND uid = $4`,
			user.FullName, user.Phone, tenantID, user.UID)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

// Delete removes a profile
func (r *UserRepository) Delete(ctx context.Context, uid string) error {
	return r.inTenant(ctx, func(tx *sqlx.Tx, tenantID string) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM user_profiles WHERE tenant_id = $1 AND uid = $2`, tenantID, uid)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

// CountAdmins returns the number of Admin profiles.
func (r *UserRepository) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := r.inTenant(ctx, func(tx *sqlx.Tx, tenantID string) error {
		return tx.GetContext(ctx, &n,
			`SELECT COUNT(*) FROM user_profiles WHERE tenant_id = $1 AND role = $2`, tenantID, permissions.RoleAdmin)
	})
	return n, err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFoundWithKey("user")
	}
	return nil
}
