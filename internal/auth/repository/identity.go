package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/medistock/medistock-backend/pkg/database"
	"github.com/medistock/medistock-backend/pkg/errors"
)

// Identity is a login credential. Email is unique across all tenants, so
// login resolves the tenant from the identity alone.
type Identity struct {
	UID              string    `db:"uid"`
	TenantID         string    `db:"tenant_id"`
	TenantSlug       string    `db:"tenant_slug"`
	Email            string    `db:"email"`
	PasswordHash     string    `db:"password_hash"`
	DisplayName      string    `db:"display_name"`
	Disabled         bool      `db:"disabled"`
	TokensValidAfter time.Time `db:"tokens_valid_after"`
	CreatedAt        time.Time `db:"created_at"`
}

// IdentityRepository handles identity persistence
type IdentityRepository struct {
	db *database.DB
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(db *database.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

const identityColumns = `
	i.uid, i.tenant_id, t.slug AS tenant_slug, i.email, i.password_hash,
	i.display_name, i.disabled, i.tokens_valid_after, i.created_at`

// Create inserts a new identity and fills in its uid.
func (r *IdentityRepository) Create(ctx context.Context, identity *Identity) error {
	query := `
		INSERT INTO public.identities (tenant_id, email, password_hash, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING uid, created_at, tokens_valid_after
	`
	row := r.db.QueryRowxContext(ctx, query, identity.TenantID, identity.Email, identity.PasswordHash, identity.DisplayName)
	if err := row.Scan(&identity.UID, &identity.CreatedAt, &identity.TokensValidAfter); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByEmail looks an identity up by its (case-insensitive) email.
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	return r.getOne(ctx, `LOWER(i.email) = LOWER($1)`, email)
}

// GetByID looks an identity up by uid.
func (r *IdentityRepository) GetByID(ctx context.Context, uid string) (*Identity, error) {
	return r.getOne(ctx, `i.uid = $1`, uid)
}

func (r *IdentityRepository) getOne(ctx context.Context, cond, arg string) (*Identity, error) {
	var identity Identity
	query := `SELECT ` + identityColumns + `
		FROM public.identities i
		JOIN public.tenants t ON t.id = i.tenant_id
		WHERE ` + cond

	if err := r.db.GetContext(ctx, &identity, query, arg); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundWithKey("user")
		}
		return nil, err
	}
	return &identity, nil
}

// UpdateDisplayName keeps the identity name in sync with the profile.
func (r *IdentityRepository) UpdateDisplayName(ctx context.Context, uid, name string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE public.identities SET display_name = $1 WHERE uid = $2`, name, uid)
	return err
}

// RevokeTokens invalidates every token issued for uid up to now.
func (r *IdentityRepository) RevokeTokens(ctx context.Context, uid string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE public.identities SET tokens_valid_after = NOW() WHERE uid = $1`, uid)
	return err
}

// Delete removes an identity. Deleting a missing identity is not an error.
func (r *IdentityRepository) Delete(ctx context.Context, uid string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM public.identities WHERE uid = $1`, uid)
	return err
}
