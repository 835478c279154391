package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/pkg/database"
	"github.com/medistock/medistock-backend/pkg/tenant"
)

// CheckRepository stores completed inventory checks. Checks are never updated.
type CheckRepository struct {
	db *database.DB
}

// NewCheckRepository creates a new check repository
func NewCheckRepository(db *database.DB) *CheckRepository {
	return &CheckRepository{db: db}
}

// CountFunc reconciles the counted items, read under lock, and returns the
// items whose batches must be rewritten together with the changes to record.
type CountFunc func(items []domain.Item) ([]domain.Item, domain.CheckItems, error)

// CreateWithCounts locks the counted items, lets apply reconcile them against
// their current batches and stores the check with the rewritten batches in one
// transaction. Stock added meanwhile waits for the lock and is appended to the
// counted batches afterwards. An error from apply rolls everything back.
func (r *CheckRepository) CreateWithCounts(ctx context.Context, check *domain.InventoryCheck, itemIDs []string, apply CountFunc) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}
	if check.ID == "" {
		check.ID = uuid.New().String()
	}
	check.TenantID = tenantID

	return r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		items, err := lockItems(ctx, tx, tenantID, itemIDs)
		if err != nil {
			return err
		}

		updated, changes, err := apply(items)
		if err != nil {
			return err
		}
		for i := range updated {
			if err := updateBatches(ctx, tx, tenantID, &updated[i]); err != nil {
				return err
			}
		}

		check.Items = changes
		if check.Items == nil {
			check.Items = domain.CheckItems{}
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO inventory_checks (id, tenant_id, checked_at, checked_by_id, checked_by_name, items)
			VALUES (:id, :tenant_id, :checked_at, :checked_by_id, :checked_by_name, :items)
		`, check)
		return mapDBError(err)
	})
}

// GetByID gets a check by ID
func (r *CheckRepository) GetByID(ctx context.Context, id string) (*domain.InventoryCheck, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var check domain.InventoryCheck
	err = r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &check, `
			SELECT id, tenant_id, checked_at, checked_by_id, checked_by_name, items
			FROM inventory_checks WHERE id = $1 AND tenant_id = $2
		`, id, tenantID)
	})
	if err != nil {
		return nil, notFoundAs(err, "inventory_check")
	}
	return &check, nil
}

// List returns the most recent checks first.
func (r *CheckRepository) List(ctx context.Context, limit int) ([]domain.InventoryCheck, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	checks := []domain.InventoryCheck{}
	err = r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &checks, `
			SELECT id, tenant_id, checked_at, checked_by_id, checked_by_name, items
			FROM inventory_checks WHERE tenant_id = $1
			ORDER BY checked_at DESC LIMIT $2
		`, tenantID, limit)
	})
	return checks, err
}
