package handler_test

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/internal/inventory/handler"
	"github.com/medistock/medistock-backend/internal/inventory/live"
	"github.com/medistock/medistock-backend/internal/inventory/reorder"
	"github.com/medistock/medistock-backend/internal/inventory/repository"
	"github.com/medistock/medistock-backend/internal/inventory/service"
	"github.com/medistock/medistock-backend/pkg/actor"
	"github.com/medistock/medistock-backend/pkg/cache"
	"github.com/medistock/medistock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		panic("failed to create integration suite: " + err.Error())
	}

	code := m.Run()
	suite.Cleanup(ctx)
	os.Exit(code)
}

type fixedAdvisor struct {
	output string
	seen   string
}

func (a *fixedAdvisor) Suggest(_ context.Context, inventoryJSON string) (string, error) {
	a.seen = inventoryJSON
	return a.output, nil
}

// newRouter mounts the inventory handlers the way the service does, with a
// middleware standing in for authentication.
func newRouter(t *testing.T, advisor reorder.Advisor) (http.Handler, context.Context) {
	t.Helper()
	tenantCtx := suite.TenantContext(suite.SetupTenant(t, context.Background(), t.Name()))

	items := repository.NewItemRepository(suite.DB)
	hierarchy := repository.NewHierarchyRepository(suite.DB)
	hub := live.NewHub()
	log := suite.Logger

	inventorySvc := service.NewInventoryService(items, hierarchy, hub, nil, log)
	itemH := handler.NewItemHandler(inventorySvc, log)
	hierarchyH := handler.NewHierarchyHandler(service.NewHierarchyService(hierarchy, items, hub, nil, log), log)
	checkH := handler.NewCheckHandler(service.NewCheckService(repository.NewCheckRepository(suite.DB), hub, nil, log), log)
	exportH := handler.NewExportHandler(service.NewReportService(items, hierarchy, log), log)
	suggestionH := handler.NewSuggestionHandler(service.NewSuggestionService(items, hierarchy, advisor, log), log)
	settingsH := handler.NewSettingsHandler(service.NewSettingsService(repository.NewSettingsRepository(suite.DB),
		cache.NewMemoryCache(0), time.Minute, nil, log), log)
	dashboardH := handler.NewDashboardHandler(inventorySvc, log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := actor.WithActor(tenantCtx, &actor.Actor{ID: "user-1", Name: "Erika Muster"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/items", func(r chi.Router) {
		r.Get("/", itemH.List)
		r.Post("/", itemH.Create)
		r.Get("/lookup", itemH.Lookup)
		r.Get("/{id}", itemH.Get)
		r.Post("/{id}/stock", itemH.AddStock)
		r.Delete("/{id}", itemH.Delete)
	})
	r.Get("/inventory/overview", itemH.Overview)
	r.Get("/dashboard/stats", dashboardH.GetStats)
	r.Post("/vehicles", hierarchyH.CreateVehicle)
	r.Get("/vehicles/{id}/tree", hierarchyH.GetTree)
	r.Delete("/vehicles/{id}", hierarchyH.DeleteVehicle)
	r.Post("/vehicles/{id}/cases", hierarchyH.CreateCase)
	r.Post("/cases/{id}/modules", hierarchyH.CreateModule)
	r.Post("/checks", checkH.Submit)
	r.Get("/checks", checkH.List)
	r.Get("/reports/{type}", exportH.Report)
	r.Post("/suggestions/reorder", suggestionH.Reorder)
	r.Get("/settings/email", settingsH.GetEmail)
	r.Put("/settings/email", settingsH.UpdateEmail)

	return r, tenantCtx
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.ExecuteRequest(h, testutil.NewHTTPRequest(method, path, body))
}

// data unwraps the response envelope into target.
func data(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &env)
	require.True(t, env.Success, rr.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, target))
}

func seedHierarchy(t *testing.T, h http.Handler) (vehicleID, moduleID string) {
	t.Helper()
	var v domain.Vehicle
	rr := do(t, h, http.MethodPost, "/vehicles", map[string]string{"name": "RTW 1"})
	testutil.AssertStatus(t, rr, http.StatusCreated)
	data(t, rr, &v)

	var c domain.Case
	rr = do(t, h, http.MethodPost, "/vehicles/"+v.ID+"/cases", map[string]string{"name": "Notfallrucksack"})
	testutil.AssertStatus(t, rr, http.StatusCreated)
	data(t, rr, &c)

	var m domain.ModuleBag
	rr = do(t, h, http.MethodPost, "/cases/"+c.ID+"/modules", map[string]string{"name": "Atmung"})
	testutil.AssertStatus(t, rr, http.StatusCreated)
	data(t, rr, &m)
	return v.ID, m.ID
}

func createItem(t *testing.T, h http.Handler, moduleID, name string, target int) domain.Item {
	t.Helper()
	var item domain.Item
	rr := do(t, h, http.MethodPost, "/items", map[string]interface{}{
		"module_id": moduleID, "name": name, "target_quantity": target,
	})
	testutil.AssertStatus(t, rr, http.StatusCreated)
	data(t, rr, &item)
	return item
}

func TestItemEndpoints_StockAndOverview(t *testing.T) {
	testutil.SkipIfShort(t)
	h, _ := newRouter(t, &fixedAdvisor{})
	vehicleID, moduleID := seedHierarchy(t, h)

	gauze := createItem(t, h, moduleID, "Sterile Gauze", 10)
	createItem(t, h, moduleID, "Bandage", 0)

	soon := time.Now().UTC().AddDate(0, 0, 10).Format(domain.DateLayout)
	rr := do(t, h, http.MethodPost, "/items/"+gauze.ID+"/stock", map[string]interface{}{"quantity": 3, "expiration_date": soon})
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = do(t, h, http.MethodPost, "/items/"+gauze.ID+"/stock", map[string]interface{}{"quantity": 0})
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	var expiring []domain.ClassifiedItem
	rr = do(t, h, http.MethodGet, "/inventory/overview?status=expiring_soon", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	data(t, rr, &expiring)
	require.Len(t, expiring, 1)
	assert.Equal(t, "Sterile Gauze", expiring[0].Name)
	assert.Equal(t, 3, expiring[0].TotalQuantity)
	assert.True(t, expiring[0].HasStatus(domain.StatusUnderstocked))

	rr = do(t, h, http.MethodGet, "/inventory/overview?status=nope", nil)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	var found domain.ClassifiedItem
	rr = do(t, h, http.MethodGet, "/items/lookup?q=bandage", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	data(t, rr, &found)
	assert.Equal(t, "Bandage", found.Name)

	var tree domain.VehicleTree
	rr = do(t, h, http.MethodGet, "/vehicles/"+vehicleID+"/tree", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	data(t, rr, &tree)
	require.Len(t, tree.Cases, 1)
	require.Len(t, tree.Cases[0].Modules, 1)
	assert.Len(t, tree.Cases[0].Modules[0].Items, 2)

	var summary domain.DeleteSummary
	rr = do(t, h, http.MethodDelete, "/vehicles/"+vehicleID, nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	data(t, rr, &summary)
	assert.Equal(t, domain.DeleteSummary{Vehicles: 1, Cases: 1, Modules: 1, Items: 2}, summary)

	rr = do(t, h, http.MethodGet, "/items/"+gauze.ID, nil)
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestItemEndpoints_CreateRequiresExistingModule(t *testing.T) {
	testutil.SkipIfShort(t)
	h, _ := newRouter(t, &fixedAdvisor{})

	rr := do(t, h, http.MethodPost, "/items", map[string]interface{}{
		"module_id": "00000000-0000-0000-0000-000000000000", "name": "Orphan",
	})
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertBodyContains(t, rr, "module_id")

	rr = do(t, h, http.MethodPost, "/items", map[string]interface{}{"name": "No module"})
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertBodyContains(t, rr, "module_id")
}

func TestCheckEndpoints_SubmitAndList(t *testing.T) {
	testutil.SkipIfShort(t)
	h, _ := newRouter(t, &fixedAdvisor{})
	_, moduleID := seedHierarchy(t, h)
	item := createItem(t, h, moduleID, "Sterile Gauze", 5)
	rr := do(t, h, http.MethodPost, "/items/"+item.ID+"/stock", map[string]interface{}{"quantity": 5})
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = do(t, h, http.MethodPost, "/checks", map[string]interface{}{
		"items": []map[string]interface{}{{"item_id": item.ID, "reviewed": true, "counts": []int{4}}},
	})
	testutil.AssertStatus(t, rr, http.StatusCreated)

	var checks []domain.InventoryCheck
	rr = do(t, h, http.MethodGet, "/checks?limit=10", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	data(t, rr, &checks)
	require.Len(t, checks, 1)
	assert.Equal(t, "Erika Muster", checks[0].CheckedByName)
	assert.Len(t, checks[0].Items, 1)

	var current domain.ClassifiedItem
	rr = do(t, h, http.MethodGet, "/items/"+item.ID, nil)
	data(t, rr, &current)
	assert.Equal(t, 4, current.TotalQuantity)
}

func TestReportEndpoint_Formats(t *testing.T) {
	testutil.SkipIfShort(t)
	h, _ := newRouter(t, &fixedAdvisor{})
	_, moduleID := seedHierarchy(t, h)
	createItem(t, h, moduleID, "Sterile Gauze", 5)

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		contentType string
		prefix      string
	}{
		{"json", "/reports/full", http.StatusOK, "application/json", "{"},
		{"html", "/reports/restock?format=html", http.StatusOK, "text/html; charset=utf-8", "<!DOCTYPE html>"},
		{"pdf", "/reports/expiring?format=pdf", http.StatusOK, "application/pdf", "%PDF"},
		{"bad format", "/reports/full?format=xls", http.StatusBadRequest, "application/json", "{"},
		{"bad type", "/reports/everything", http.StatusBadRequest, "application/json", "{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodGet, tt.path, nil)

			testutil.AssertStatus(t, rr, tt.wantStatus)
			assert.Equal(t, tt.contentType, rr.Header().Get("Content-Type"))
			assert.True(t, len(rr.Body.String()) >= len(tt.prefix) && rr.Body.String()[:len(tt.prefix)] == tt.prefix,
				"unexpected body start: %.40s", rr.Body.String())
		})
	}
}

func TestSettingsEndpoint_RoundTrip(t *testing.T) {
	testutil.SkipIfShort(t)
	h, _ := newRouter(t, &fixedAdvisor{})

	var view service.EmailSettingsView
	rr := do(t, h, http.MethodGet, "/settings/email", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	data(t, rr, &view)
	assert.True(t, view.IsDefault)
	assert.True(t, view.HasPlaceholder)

	rr = do(t, h, http.MethodPut, "/settings/email", map[string]string{"template": "Hallo,\n{{ITEMS}}\nDanke"})
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = do(t, h, http.MethodGet, "/settings/email", nil)
	data(t, rr, &view)
	assert.False(t, view.IsDefault)
	assert.Equal(t, "Hallo,\n{{ITEMS}}\nDanke", view.Template)
}

func TestSuggestionEndpoint(t *testing.T) {
	testutil.SkipIfShort(t)
	advisor := &fixedAdvisor{output: "```json\n[{\"itemName\":\"Sterile Gauze\",\"quantityToReorder\":5,\"reason\":\"below target\"}]\n```"}
	h, _ := newRouter(t, advisor)
	_, moduleID := seedHierarchy(t, h)
	createItem(t, h, moduleID, "Sterile Gauze", 5)

	rr := do(t, h, http.MethodPost, "/suggestions/reorder", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)

	var body struct {
		Suggestions []service.Suggestion `json:"suggestions"`
	}
	data(t, rr, &body)
	require.Len(t, body.Suggestions, 1)
	assert.Equal(t, 5, body.Suggestions[0].QuantityToReorder)
	assert.Contains(t, advisor.seen, "Sterile Gauze")

	advisor.output = "no idea"
	rr = do(t, h, http.MethodPost, "/suggestions/reorder", nil)
	testutil.AssertStatus(t, rr, http.StatusBadGateway)
}

func TestDashboardEndpoint(t *testing.T) {
	testutil.SkipIfShort(t)
	h, _ := newRouter(t, &fixedAdvisor{})
	vehicleID, moduleID := seedHierarchy(t, h)
	item := createItem(t, h, moduleID, "Sterile Gauze", 5)
	do(t, h, http.MethodPost, "/items/"+item.ID+"/stock", map[string]interface{}{"quantity": 7})

	var stats service.DashboardStats
	rr := do(t, h, http.MethodGet, "/dashboard/stats", nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	data(t, rr, &stats)
	assert.Equal(t, 1, stats.TotalItems)
	assert.Equal(t, 7, stats.TotalUnits)
	assert.Equal(t, []domain.VehicleTotal{{VehicleID: vehicleID, Name: "RTW 1", Total: 7}}, stats.ByVehicle)
}
