package repository_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/internal/inventory/repository"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHierarchyRepository_DeleteVehicle_CommitsWholeSubtree(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewHierarchyRepository(mockDB.Database())
	ctx := testutil.TestTenantContext()

	mockDB.ExpectTenantTx(testutil.TestTenantID)
	mockDB.ExpectExec("DELETE FROM items").
		WithArgs(testutil.TestTenantID, "v1").
		WillReturnResult(sqlmock.NewResult(0, 7))
	mockDB.ExpectExec("DELETE FROM module_bags").
		WithArgs(testutil.TestTenantID, "v1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mockDB.ExpectExec("DELETE FROM cases").
		WithArgs(testutil.TestTenantID, "v1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mockDB.ExpectExec("DELETE FROM vehicles").
		WithArgs(testutil.TestTenantID, "v1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	summary, err := repo.DeleteVehicle(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Vehicles)
	assert.Equal(t, 2, summary.Cases)
	assert.Equal(t, 3, summary.Modules)
	assert.Equal(t, 7, summary.Items)
	mockDB.ExpectationsWereMet(t)
}

func TestHierarchyRepository_DeleteVehicle_RollsBackOnFailure(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewHierarchyRepository(mockDB.Database())
	ctx := testutil.TestTenantContext()

	mockDB.ExpectTenantTx(testutil.TestTenantID)
	mockDB.ExpectExec("DELETE FROM items").WillReturnResult(sqlmock.NewResult(0, 4))
	mockDB.ExpectExec("DELETE FROM module_bags").WillReturnError(fmt.Errorf("connection reset"))
	mockDB.ExpectRollback()

	summary, err := repo.DeleteVehicle(ctx, "v1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Zero(t, summary, "no partial summary may leak after a rollback")
	mockDB.ExpectationsWereMet(t)
}

func TestHierarchyRepository_DeleteVehicle_UnknownVehicleRollsBack(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewHierarchyRepository(mockDB.Database())
	ctx := testutil.TestTenantContext()

	mockDB.ExpectTenantTx(testutil.TestTenantID)
	mockDB.ExpectExec("DELETE FROM items").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectExec("DELETE FROM module_bags").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectExec("DELETE FROM cases").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectExec("DELETE FROM vehicles").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectRollback()

	_, err := repo.DeleteVehicle(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mockDB.ExpectationsWereMet(t)
}

func TestHierarchyRepository_DeleteCase_RollsBackWhenCaseDeleteFails(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewHierarchyRepository(mockDB.Database())
	ctx := testutil.TestTenantContext()

	mockDB.ExpectTenantTx(testutil.TestTenantID)
	mockDB.ExpectExec("DELETE FROM items").WillReturnResult(sqlmock.NewResult(0, 2))
	mockDB.ExpectExec("DELETE FROM module_bags").WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec("DELETE FROM cases").WillReturnError(fmt.Errorf("lock timeout"))
	mockDB.ExpectRollback()

	_, err := repo.DeleteCase(ctx, "c1")
	require.Error(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestHierarchyRepository_DeleteModuleBag(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewHierarchyRepository(mockDB.Database())
	ctx := testutil.TestTenantContext()

	mockDB.ExpectTenantTx(testutil.TestTenantID)
	mockDB.ExpectExec("DELETE FROM items").
		WithArgs(testutil.TestTenantID, "m1").
		WillReturnResult(sqlmock.NewResult(0, 5))
	mockDB.ExpectExec("DELETE FROM module_bags").
		WithArgs(testutil.TestTenantID, "m1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	summary, err := repo.DeleteModuleBag(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Items)
	assert.Equal(t, 1, summary.Modules)
	mockDB.ExpectationsWereMet(t)
}

func TestHierarchyRepository_RequiresTenant(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewHierarchyRepository(mockDB.Database())

	_, err := repo.DeleteVehicle(context.Background(), "v1")
	require.Error(t, err)
	mockDB.ExpectationsWereMet(t)
}

func TestSettingsRepository_GetEmailTemplate_Unset(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewSettingsRepository(mockDB.Database())

	// No row: the lookup fails inside the transaction, which is rolled back.
	mockDB.ExpectTenantTx(testutil.TestTenantID)
	mockDB.ExpectQuery("SELECT value, updated_at FROM settings").
		WillReturnRows(testutil.MockRows("value", "updated_at"))
	mockDB.ExpectRollback()

	tpl, err := repo.GetEmailTemplate(testutil.TestTenantContext())
	require.NoError(t, err)
	assert.Empty(t, tpl)
	mockDB.ExpectationsWereMet(t)
}

func TestSettingsRepository_GetEmailTemplate_Stored(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewSettingsRepository(mockDB.Database())

	mockDB.ExpectTenantQuery(testutil.TestTenantID,
		"SELECT value, updated_at FROM settings",
		testutil.MockRows("value", "updated_at").
			AddRow([]byte(`{"template":"<ul>{{{itemsListHtml}}}</ul>"}`), time.Now()),
	)

	tpl, err := repo.GetEmailTemplate(testutil.TestTenantContext())
	require.NoError(t, err)
	assert.Equal(t, "<ul>{{{itemsListHtml}}}</ul>", tpl)
	mockDB.ExpectationsWereMet(t)
}

func TestCheckRepository_CreateWithCounts_LocksItemsAndRollsBackOnRejectedCount(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := repository.NewCheckRepository(mockDB.Database())

	now := time.Now()
	mockDB.ExpectTenantTx(testutil.TestTenantID)
	mockDB.ExpectQuery("FROM items WHERE tenant_id = $1 AND id IN ($2) ORDER BY id FOR UPDATE").
		WithArgs(testutil.TestTenantID, "item-1").
		WillReturnRows(testutil.MockRows(
			"id", "tenant_id", "module_id", "name", "barcode", "target_quantity", "batches", "notes",
			"created_at", "created_by_id", "created_by_name", "updated_at", "updated_by_id", "updated_by_name",
		).AddRow("item-1", testutil.TestTenantID, "m1", "Gauze", nil, 10, []byte(`[{"quantity":5},{"quantity":2}]`), nil,
			now, "u1", "User", now, "u1", "User"))
	mockDB.ExpectRollback()

	var seen domain.Batches
	check := &domain.InventoryCheck{CheckedAt: now}
	err := repo.CreateWithCounts(testutil.TestTenantContext(), check, []string{"item-1"},
		func(locked []domain.Item) ([]domain.Item, domain.CheckItems, error) {
			require.Len(t, locked, 1)
			seen = locked[0].Batches
			return nil, nil, errors.Validation(map[string]string{"items.0.counts": "expected 2 counts, got 1"})
		})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errors.StatusCode(err))
	assert.Equal(t, domain.Batches{{Quantity: 5}, {Quantity: 2}}, seen, "counts are applied to the locked rows")
	mockDB.ExpectationsWereMet(t)
}
