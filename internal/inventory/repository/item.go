package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/pkg/database"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/tenant"
)

const itemColumns = `id, tenant_id, module_id, name, barcode, target_quantity, batches, notes,
	created_at, created_by_id, created_by_name, updated_at, updated_by_id, updated_by_name`

// ItemRepository handles item persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts a new item.
// TENANT-ISOLATED: tenant_id is taken from the context, never from the caller.
func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.TenantID = tenantID
	if item.Batches == nil {
		item.Batches = domain.Batches{}
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO items (` + itemColumns + `)
			VALUES (:id, :tenant_id, :module_id, :name, :barcode, :target_quantity, :batches, :notes,
				:created_at, :created_by_id, :created_by_name, :updated_at, :updated_by_id, :updated_by_name)
		`
		_, err := tx.NamedExecContext(ctx, query, item)
		return mapDBError(err)
	})
}

// GetByID gets an item by ID
// TENANT-ISOLATED: Queries only the tenant's rows via RLS
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var item domain.Item
	err = r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 AND tenant_id = $2`
		return tx.GetContext(ctx, &item, query, id, tenantID)
	})
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundWithKey("item")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ItemFilter narrows List.
type ItemFilter struct {
	ModuleID string
	Search   string
}

// List returns the tenant's items ordered by name.
func (r *ItemRepository) List(ctx context.Context, filter ItemFilter) ([]domain.Item, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	items := []domain.Item{}
	err = r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		query := `SELECT ` + itemColumns + ` FROM items WHERE tenant_id = $1`
		args := []interface{}{tenantID}
		if filter.ModuleID != "" {
			args = append(args, filter.ModuleID)
			query += ` AND module_id = $2`
		}
		if filter.Search != "" {
			args = append(args, "%"+filter.Search+"%")
			query += ` AND (name ILIKE $` + itoa(len(args)) + ` OR barcode ILIKE $` + itoa(len(args)) + `)`
		}
		query += ` ORDER BY name, id`
		return tx.SelectContext(ctx, &items, query, args...)
	})
	return items, err
}

// ListAll returns every item of the tenant in insertion order.
// Reports group in first-seen order, so the order here is significant.
func (r *ItemRepository) ListAll(ctx context.Context) ([]domain.Item, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	items := []domain.Item{}
	err = r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		query := `SELECT ` + itemColumns + ` FROM items WHERE tenant_id = $1 ORDER BY created_at, id`
		return tx.SelectContext(ctx, &items, query, tenantID)
	})
	return items, err
}

// FindByBarcode returns the first item with the exact barcode.
func (r *ItemRepository) FindByBarcode(ctx context.Context, barcode string) (*domain.Item, error) {
	return r.findOne(ctx, `barcode = $2`, barcode)
}

// FindByName returns the first item whose name matches case-insensitively.
func (r *ItemRepository) FindByName(ctx context.Context, name string) (*domain.Item, error) {
	return r.findOne(ctx, `lower(name) = lower($2)`, name)
}

func (r *ItemRepository) findOne(ctx context.Context, cond string, arg string) (*domain.Item, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var item domain.Item
	err = r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		query := `SELECT ` + itemColumns + ` FROM items WHERE tenant_id = $1 AND ` + cond + ` ORDER BY created_at LIMIT 1`
		return tx.GetContext(ctx, &item, query, tenantID, arg)
	})
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundWithKey("item")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Update writes the item's metadata. Batches are left as stored; they change
// only through AppendBatch and inventory checks.
func (r *ItemRepository) Update(ctx context.Context, item *domain.Item) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}
	item.TenantID = tenantID

	return r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		return updateItem(ctx, tx, item)
	})
}

func updateItem(ctx context.Context, tx *sqlx.Tx, item *domain.Item) error {
	query := `
		UPDATE items SET
			module_id = :module_id, name = :name, barcode = :barcode,
			target_quantity = :target_quantity, notes = :notes,
			updated_at = :updated_at, updated_by_id = :updated_by_id, updated_by_name = :updated_by_name
		WHERE id = :id AND tenant_id = :tenant_id
	`
	res, err := tx.NamedExecContext(ctx, query, item)
	if err != nil {
		return mapDBError(err)
	}
	return requireAffected(res, "item")
}

// Delete removes an item.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = $1 AND tenant_id = $2`, id, tenantID)
		if err != nil {
			return err
		}
		return requireAffected(res, "item")
	})
}

// ModuleExists reports whether a module bag with id exists for the tenant.
func (r *ItemRepository) ModuleExists(ctx context.Context, id string) (bool, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	err = r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM module_bags WHERE id = $1 AND tenant_id = $2)`, id, tenantID)
	})
	return exists, err
}

// AppendBatch adds one batch to an item in a single statement, so concurrent
// stock additions are all kept. It returns the updated item.
func (r *ItemRepository) AppendBatch(ctx context.Context, id string, batch domain.Batch, audit domain.Audit) (*domain.Item, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}

	var item domain.Item
	err = r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		query := `
			UPDATE items SET
				batches = batches || jsonb_build_array($1::jsonb),
				updated_at = $2, updated_by_id = $3, updated_by_name = $4
			WHERE id = $5 AND tenant_id = $6
			RETURNING ` + itemColumns
		return tx.GetContext(ctx, &item, query,
			string(raw), audit.UpdatedAt, audit.UpdatedByID, audit.UpdatedByName, id, tenantID)
	})
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundWithKey("item")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func updateBatches(ctx context.Context, tx *sqlx.Tx, tenantID string, item *domain.Item) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE items SET batches = $1, updated_at = $2, updated_by_id = $3, updated_by_name = $4
		WHERE id = $5 AND tenant_id = $6
	`, item.Batches, item.UpdatedAt, item.UpdatedByID, item.UpdatedByName, item.ID, tenantID)
	if err != nil {
		return err
	}
	return requireAffected(res, "item")
}

// lockItems reads the given items and holds their row locks until tx ends.
// Rows are locked in id order so concurrent checks cannot deadlock.
func lockItems(ctx context.Context, tx *sqlx.Tx, tenantID string, ids []string) ([]domain.Item, error) {
	items := []domain.Item{}
	if len(ids) == 0 {
		return items, nil
	}
	query, args, err := sqlx.In(`SELECT `+itemColumns+` FROM items WHERE tenant_id = ? AND id IN (?) ORDER BY id FOR UPDATE`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	if err := tx.SelectContext(ctx, &items, tx.Rebind(query), args...); err != nil {
		return nil, err
	}
	return items, nil
}
