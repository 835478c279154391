package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/pkg/database"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/tenant"
)

const auditColumns = `created_at, created_by_id, created_by_name, updated_at, updated_by_id, updated_by_name`

// HierarchyRepository persists vehicles, cases and module bags.
//
// Children reference their parent without ON DELETE CASCADE. The Delete*
// methods remove the whole subtree inside a single tenant transaction, so a
// failure at any level leaves every row in place.
type HierarchyRepository struct {
	db *database.DB
}

// NewHierarchyRepository creates a new hierarchy repository
func NewHierarchyRepository(db *database.DB) *HierarchyRepository {
	return &HierarchyRepository{db: db}
}

// ============================================================================
// Vehicles
// ============================================================================

// CreateVehicle inserts a vehicle.
func (r *HierarchyRepository) CreateVehicle(ctx context.Context, v *domain.Vehicle) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	v.TenantID = tenantID

	return r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO vehicles (id, tenant_id, name, `+auditColumns+`)
			VALUES (:id, :tenant_id, :name, :created_at, :created_by_id, :created_by_name, :updated_at, :updated_by_id, :updated_by_name)
		`, v)
		return mapDBError(err)
	})
}

// GetVehicle gets a vehicle by ID
func (r *HierarchyRepository) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	var v domain.Vehicle
	if err := r.getOne(ctx, &v, "vehicles", id); err != nil {
		return nil, notFoundAs(err, "vehicle")
	}
	return &v, nil
}

// ListVehicles returns all vehicles of the tenant in creation order.
func (r *HierarchyRepository) ListVehicles(ctx context.Context) ([]domain.Vehicle, error) {
	vehicles := []domain.Vehicle{}
	err := r.listWhere(ctx, &vehicles, `SELECT id, tenant_id, name, `+auditColumns+` FROM vehicles WHERE tenant_id = $1 ORDER BY created_at, id`)
	return vehicles, err
}

// UpdateVehicle renames a vehicle.
func (r *HierarchyRepository) UpdateVehicle(ctx context.Context, v *domain.Vehicle) error {
	return r.rename(ctx, "vehicles", "vehicle", v.ID, v.Name, &v.Audit)
}

// DeleteVehicle removes a vehicle with all its cases, module bags and items.
func (r *HierarchyRepository) DeleteVehicle(ctx context.Context, id string) (domain.DeleteSummary, error) {
	var summary domain.DeleteSummary
	err := r.inTenantTx(ctx, func(tx *sqlx.Tx, tenantID string) error {
		var err error
		if summary.Items, err = execCount(ctx, tx, `
			DELETE FROM items WHERE tenant_id = $1 AND module_id IN (
				SELECT m.id FROM module_bags m JOIN cases c ON c.id = m.case_id
				WHERE m.tenant_id = $1 AND c.vehicle_id = $2)`, tenantID, id); err != nil {
			return err
		}
		if summary.Modules, err = execCount(ctx, tx, `
			DELETE FROM module_bags WHERE tenant_id = $1 AND case_id IN (
				SELECT id FROM cases WHERE tenant_id = $1 AND vehicle_id = $2)`, tenantID, id); err != nil {
			return err
		}
		if summary.Cases, err = execCount(ctx, tx,
			`DELETE FROM cases WHERE tenant_id = $1 AND vehicle_id = $2`, tenantID, id); err != nil {
			return err
		}
		if summary.Vehicles, err = execCount(ctx, tx,
			`DELETE FROM vehicles WHERE tenant_id = $1 AND id = $2`, tenantID, id); err != nil {
			return err
		}
		if summary.Vehicles == 0 {
			return errors.NotFoundWithKey("vehicle")
		}
		return nil
	})
	if err != nil {
		return domain.DeleteSummary{}, err
	}
	return summary, nil
}

// ============================================================================
// Cases
// ============================================================================

// CreateCase inserts a case under an existing vehicle.
func (r *HierarchyRepository) CreateCase(ctx context.Context, c *domain.Case) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return r.inTenantTx(ctx, func(tx *sqlx.Tx, tenantID string) error {
		if err := requireParent(ctx, tx, "vehicles", "vehicle", tenantID, c.VehicleID); err != nil {
			return err
		}
		c.TenantID = tenantID
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO cases (id, tenant_id, vehicle_id, name, `+auditColumns+`)
			VALUES (:id, :tenant_id, :vehicle_id, :name, :created_at, :created_by_id, :created_by_name, :updated_at, :updated_by_id, :updated_by_name)
		`, c)
		return mapDBError(err)
	})
}

// GetCase gets a case by ID
func (r *HierarchyRepository) GetCase(ctx context.Context, id string) (*domain.Case, error) {
	var c domain.Case
	if err := r.getOne(ctx, &c, "cases", id); err != nil {
		return nil, notFoundAs(err, "case")
	}
	return &c, nil
}

// ListCases returns every case of the tenant.
func (r *HierarchyRepository) ListCases(ctx context.Context) ([]domain.Case, error) {
	cases := []domain.Case{}
	err := r.listWhere(ctx, &cases, `SELECT id, tenant_id, vehicle_id, name, `+auditColumns+` FROM cases WHERE tenant_id = $1 ORDER BY created_at, id`)
	return cases, err
}

// ListCasesByVehicle returns the cases of one vehicle.
func (r *HierarchyRepository) ListCasesByVehicle(ctx context.Context, vehicleID string) ([]domain.Case, error) {
	cases := []domain.Case{}
	err := r.listWhere(ctx, &cases, `SELECT id, tenant_id, vehicle_id, name, `+auditColumns+` FROM cases WHERE tenant_id = $1 AND vehicle_id = $2 ORDER BY created_at, id`, vehicleID)
	return cases, err
}

// UpdateCase renames a case.
func (r *HierarchyRepository) UpdateCase(ctx context.Context, c *domain.Case) error {
	return r.rename(ctx, "cases", "case", c.ID, c.Name, &c.Audit)
}

// DeleteCase removes a case with all its module bags and items.
func (r *HierarchyRepository) DeleteCase(ctx context.Context, id string) (domain.DeleteSummary, error) {
	var summary domain.DeleteSummary
	err := r.inTenantTx(ctx, func(tx *sqlx.Tx, tenantID string) error {
		var err error
		if summary.Items, err = execCount(ctx, tx, `
			DELETE FROM items WHERE tenant_id = $1 AND module_id IN (
				SELECT id FROM module_bags WHERE tenant_id = $1 AND case_id = $2)`, tenantID, id); err != nil {
			return err
		}
		if summary.Modules, err = execCount(ctx, tx,
			`DELETE FROM module_bags WHERE tenant_id = $1 AND case_id = $2`, tenantID, id); err != nil {
			return err
		}
		if summary.Cases, err = execCount(ctx, tx,
			`DELETE FROM cases WHERE tenant_id = $1 AND id = $2`, tenantID, id); err != nil {
			return err
		}
		if summary.Cases == 0 {
			return errors.NotFoundWithKey("case")
		}
		return nil
	})
	if err != nil {
		return domain.DeleteSummary{}, err
	}
	return summary, nil
}

// ============================================================================
// Module bags
// ============================================================================

// CreateModuleBag inserts a module bag under an existing case.
func (r *HierarchyRepository) CreateModuleBag(ctx context.Context, m *domain.ModuleBag) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return r.inTenantTx(ctx, func(tx *sqlx.Tx, tenantID string) error {
		if err := requireParent(ctx, tx, "cases", "case", tenantID, m.CaseID); err != nil {
			return err
		}
		m.TenantID = tenantID
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO module_bags (id, tenant_id, case_id, name, `+auditColumns+`)
			VALUES (:id, :tenant_id, :case_id, :name, :created_at, :created_by_id, :created_by_name, :updated_at, :updated_by_id, :updated_by_name)
		`, m)
		return mapDBError(err)
	})
}

// GetModuleBag gets a module bag by ID
func (r *HierarchyRepository) GetModuleBag(ctx context.Context, id string) (*domain.ModuleBag, error) {
	var m domain.ModuleBag
	if err := r.getOne(ctx, &m, "module_bags", id); err != nil {
		return nil, notFoundAs(err, "module_bag")
	}
	return &m, nil
}

// ListModuleBags returns every module bag of the tenant.
func (r *HierarchyRepository) ListModuleBags(ctx context.Context) ([]domain.ModuleBag, error) {
	modules := []domain.ModuleBag{}
	err := r.listWhere(ctx, &modules, `SELECT id, tenant_id, case_id, name, `+auditColumns+` FROM module_bags WHERE tenant_id = $1 ORDER BY created_at, id`)
	return modules, err
}

// ListModuleBagsByCase returns the module bags of one case.
func (r *HierarchyRepository) ListModuleBagsByCase(ctx context.Context, caseID string) ([]domain.ModuleBag, error) {
	modules := []domain.ModuleBag{}
	err := r.listWhere(ctx, &modules, `SELECT id, tenant_id, case_id, name, `+auditColumns+` FROM module_bags WHERE tenant_id = $1 AND case_id = $2 ORDER BY created_at, id`, caseID)
	return modules, err
}

// UpdateModuleBag renames a module bag.
func (r *HierarchyRepository) UpdateModuleBag(ctx context.Context, m *domain.ModuleBag) error {
	return r.rename(ctx, "module_bags", "module_bag", m.ID, m.Name, &m.Audit)
}

// DeleteModuleBag removes a module bag and its items.
func (r *HierarchyRepository) DeleteModuleBag(ctx context.Context, id string) (domain.DeleteSummary, error) {
	var summary domain.DeleteSummary
	err := r.inTenantTx(ctx, func(tx *sqlx.Tx, tenantID string) error {
		var err error
		if summary.Items, err = execCount(ctx, tx,
			`DELETE FROM items WHERE tenant_id = $1 AND module_id = $2`, tenantID, id); err != nil {
			return err
		}
		if summary.Modules, err = execCount(ctx, tx,
			`DELETE FROM module_bags WHERE tenant_id = $1 AND id = $2`, tenantID, id); err != nil {
			return err
		}
		if summary.Modules == 0 {
			return errors.NotFoundWithKey("module_bag")
		}
		return nil
	})
	if err != nil {
		return domain.DeleteSummary{}, err
	}
	return summary, nil
}

// ============================================================================
// Helpers
// ============================================================================

func (r *HierarchyRepository) inTenantTx(ctx context.Context, fn func(tx *sqlx.Tx, tenantID string) error) error {
	// Fail-fast if tenant context missing
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}
	return r.db.WithTenantRLS(ctx, tenantID, func(tx *sqlx.Tx) error {
		return fn(tx, tenantID)
	})
}

// getOne loads a row by id from table. table is never user input.
func (r *HierarchyRepository) getOne(ctx context.Context, dest interface{}, table, id string) error {
	return r.inTenantTx(ctx, func(tx *sqlx.Tx, tenantID string) error {
		return tx.GetContext(ctx, dest, `SELECT * FROM `+table+` WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	})
}

// listWhere runs query with the tenant id as $1 followed by args.
func (r *HierarchyRepository) listWhere(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return r.inTenantTx(ctx, func(tx *sqlx.Tx, tenantID string) error {
		return tx.SelectContext(ctx, dest, query, append([]interface{}{tenantID}, args...)...)
	})
}

func (r *HierarchyRepository) rename(ctx context.Context, table, resourceKey, id, name string, audit *domain.Audit) error {
	return r.inTenantTx(ctx, func(tx *sqlx.Tx, tenantID string) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE `+table+` SET name = $1, updated_at = $2, updated_by_id = $3, updated_by_name = $4
			WHERE id = $5 AND tenant_id = $6
		`, name, audit.UpdatedAt, audit.UpdatedByID, audit.UpdatedByName, id, tenantID)
		if err != nil {
			return mapDBError(err)
		}
		return requireAffected(res, resourceKey)
	})
}

func requireParent(ctx context.Context, tx *sqlx.Tx, table, resourceKey, tenantID, id string) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1 AND tenant_id = $2)`, id, tenantID); err != nil {
		return err
	}
	if !exists {
		return errors.NotFoundWithKey(resourceKey)
	}
	return nil
}

func execCount(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) (int, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func notFoundAs(err error, resourceKey string) error {
	if err == sql.ErrNoRows {
		return errors.NotFoundWithKey(resourceKey)
	}
	return err
}
