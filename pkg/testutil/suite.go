package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/medistock/medistock-backend/pkg/database"
	"github.com/medistock/medistock-backend/pkg/logger"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container     *PostgresContainer
	RawDB         *sqlx.DB
	DB            *database.DB
	TenantManager *TenantManager
	Fixtures      *FixtureFactory
	Logger        *logger.Logger
}

// NewIntegrationSuite creates a new integration test suite.
// Call this in TestMain to set up shared test infrastructure.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        panic(err)
//	    }
//	    defer suite.Cleanup(ctx)
//	    os.Exit(m.Run())
//	}
//
//	func TestSomething(t *testing.T) {
//	    ctx := context.Background()
//	    tenant := suite.SetupTenant(t, ctx, "test-tenant")
//	    // ... run tests with suite.TenantContext(tenant)
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")
	wrappedDB, err := database.NewWithDSN(container.DSN, log)
	if err != nil {
		return nil, err
	}

	if err := container.ApplyMigrations(ctx, db); err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container:     container,
		RawDB:         db,
		DB:            wrappedDB,
		TenantManager: NewTenantManager(db),
		Fixtures:      NewFixtureFactory(),
		Logger:        log,
	}, nil
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalDB, containerErr
}

// SetupTenant creates a tenant for a specific test and removes its rows
// when the test ends.
func (s *IntegrationSuite) SetupTenant(t *testing.T, ctx context.Context, name string) *TestTenant {
	t.Helper()

	tenant, err := s.TenantManager.CreateTenant(ctx, name)
	if err != nil {
		t.Fatalf("failed to create tenant: %v", err)
	}

	t.Cleanup(func() {
		if err := s.TenantManager.DropTenant(ctx, tenant); err != nil {
			t.Logf("warning: failed to drop tenant %s: %v", tenant.Slug, err)
		}
	})

	return tenant
}

// TenantContext returns a context with the tenant set
func (s *IntegrationSuite) TenantContext(tenant *TestTenant) context.Context {
	return WithTestTenant(context.Background(), tenant)
}

// Cleanup cleans up all test resources
func (s *IntegrationSuite) Cleanup(ctx context.Context) error {
	// The container is shared and outlives a single package.
	return s.TenantManager.Cleanup(ctx)
}
