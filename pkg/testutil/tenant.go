package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medistock/medistock-backend/pkg/tenant"
)

// TestTenant represents a tenant created for testing
type TestTenant struct {
	ID   string
	Name string
	Slug string
}

// tenantTables lists tenant-owned tables children first, so rows can be
// removed without violating foreign keys.
var tenantTables = []string{
	"inventory_checks",
	"settings",
	"items",
	"module_bags",
	"cases",
	"vehicles",
	"user_profiles",
	"public.sessions",
	"public.identities",
}

// TenantManager manages test tenants in the shared database
type TenantManager struct {
	db      *sqlx.DB
	tenants []TestTenant
	mu      sync.Mutex
}

// NewTenantManager creates a new tenant manager for tests
func NewTenantManager(db *sqlx.DB) *TenantManager {
	return &TenantManager{
		db:      db,
		tenants: make([]TestTenant, 0),
	}
}

// CreateTenant registers a new tenant row. Tenants share tables and are
// separated by tenant_id, so every test can use its own tenant.
//
// Usage:
//
//	tm := testutil.NewTenantManager(db)
//	tenant, _ := tm.CreateTenant(ctx, "station-north")
//	ctx = testutil.WithTestTenant(ctx, tenant)
func (tm *TenantManager) CreateTenant(ctx context.Context, name string) (*TestTenant, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	id := uuid.New().String()
	// The suffix keeps slugs unique when a test name is reused across runs.
	slug := fmt.Sprintf("%s-%s", strings.ToLower(strings.ReplaceAll(name, " ", "-")), id[:8])

	_, err := tm.db.ExecContext(ctx, `
		INSERT INTO public.tenants (id, name, slug, is_active)
		VALUES ($1, $2, $3, TRUE)
	`, id, name, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to register tenant: %w", err)
	}

	t := TestTenant{ID: id, Name: name, Slug: slug}
	tm.tenants = append(tm.tenants, t)
	return &t, nil
}

// DropTenant removes every row owned by the tenant and the tenant itself
func (tm *TenantManager) DropTenant(ctx context.Context, t *TestTenant) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if err := tm.purge(ctx, t.ID); err != nil {
		return err
	}

	for i, tracked := range tm.tenants {
		if tracked.ID == t.ID {
			tm.tenants = append(tm.tenants[:i], tm.tenants[i+1:]...)
			break
		}
	}
	return nil
}

// Cleanup removes all tenants created by this manager.
// Call this in TestMain or test cleanup.
func (tm *TenantManager) Cleanup(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	var lastErr error
	for _, t := range tm.tenants {
		if err := tm.purge(ctx, t.ID); err != nil {
			lastErr = err
		}
	}

	tm.tenants = make([]TestTenant, 0)
	return lastErr
}

func (tm *TenantManager) purge(ctx context.Context, tenantID string) error {
	for _, table := range tenantTables {
		if _, err := tm.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE tenant_id = $1", tenantID); err != nil {
			return fmt.Errorf("failed to purge %s: %w", table, err)
		}
	}
	if _, err := tm.db.ExecContext(ctx, "DELETE FROM public.tenants WHERE id = $1", tenantID); err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	return nil
}

// WithTestTenant creates a context with tenant information for testing.
// This is the primary way to set up tenant context in tests.
func WithTestTenant(ctx context.Context, t *TestTenant) context.Context {
	return tenant.WithTenantContext(ctx, t.ID, t.Slug)
}

// WithTestTenantValues creates a context with custom tenant values.
// Useful for testing error cases or edge conditions.
func WithTestTenantValues(ctx context.Context, id, slug string) context.Context {
	return tenant.WithTenantContext(ctx, id, slug)
}

// TestTenantID is the tenant used by TestTenantContext.
const TestTenantID = "11111111-1111-1111-1111-111111111111"

// TestTenantContext creates a context with a fake tenant for simple unit tests
// that don't need actual database isolation.
func TestTenantContext() context.Context {
	return tenant.WithTenantContext(context.Background(), TestTenantID, "test-tenant")
}
