package domain_test

import (
	"testing"

	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reportFixture builds two vehicles, three cases and four modules plus
// items in a deliberately interleaved order.
func reportFixture() domain.ReportInput {
	return domain.ReportInput{
		Vehicles: []domain.Vehicle{{ID: "v1", Name: "RTW 1"}, {ID: "v2", Name: "RTW 2"}},
		Cases: []domain.Case{
			{ID: "c1", VehicleID: "v1", Name: "Notfallrucksack"},
			{ID: "c2", VehicleID: "v1", Name: "Kinderkoffer"},
			{ID: "c3", VehicleID: "v2", Name: "Sauerstoff"},
			{ID: "c-orphan", VehicleID: "v-missing", Name: "Orphan case"},
		},
		Modules: []domain.ModuleBag{
			{ID: "m1", CaseID: "c1", Name: "Airway"},
			{ID: "m2", CaseID: "c2", Name: "Circulation"},
			{ID: "m3", CaseID: "c3", Name: "O2"},
			{ID: "m-orphan", CaseID: "c-orphan", Name: "Orphan module"},
		},
		Items: []domain.Item{
			{ID: "i1", ModuleID: "m3", Name: "Mask", TargetQuantity: 2, Batches: domain.Batches{{Quantity: 2}}},
			{ID: "i2", ModuleID: "m1", Name: "Tube", TargetQuantity: 5, Batches: domain.Batches{{Quantity: 1}}},
			{ID: "i3", ModuleID: "m2", Name: "Cannula", TargetQuantity: 4, Batches: domain.Batches{{Quantity: 4, ExpirationDate: at(days(7))}}},
			{ID: "i4", ModuleID: "m1", Name: "Guedel", TargetQuantity: 3, Batches: domain.Batches{{Quantity: 0}}},
			{ID: "i5", ModuleID: "m-unknown", Name: "Dangling module", TargetQuantity: 9},
			{ID: "i6", ModuleID: "m-orphan", Name: "Dangling vehicle", TargetQuantity: 1},
		},
	}
}

func reportItemIDs(r domain.Report) []string {
	var ids []string
	for _, v := range r.Vehicles {
		for _, c := range v.Cases {
			for _, m := range c.Modules {
				for _, it := range m.Items {
					ids = append(ids, it.ID)
				}
			}
		}
	}
	return ids
}

func TestBuildReport_FullGroupsInFirstSeenOrder(t *testing.T) {
	r := domain.BuildReport(reportFixture(), domain.ReportFull, refTime)

	require.Len(t, r.Vehicles, 2)
	assert.Equal(t, "v2", r.Vehicles[0].Vehicle.ID, "first item lives in v2")
	assert.Equal(t, "v1", r.Vehicles[1].Vehicle.ID)

	v1 := r.Vehicles[1]
	require.Len(t, v1.Cases, 2)
	assert.Equal(t, "c1", v1.Cases[0].Case.ID)
	assert.Equal(t, "c2", v1.Cases[1].Case.ID)

	airway := v1.Cases[0].Modules[0]
	require.Len(t, airway.Items, 2)
	assert.Equal(t, "i2", airway.Items[0].ID, "items keep input order")
	assert.Equal(t, "i4", airway.Items[1].ID)
	assert.Equal(t, 3, airway.Items[1].Restock)

	assert.Equal(t, []string{"i1", "i2", "i4", "i3"}, reportItemIDs(r))
	assert.NotContains(t, reportItemIDs(r), "i5")
	assert.NotContains(t, reportItemIDs(r), "i6")
}

func TestBuildReport_RestockFilter(t *testing.T) {
	r := domain.BuildReport(reportFixture(), domain.ReportRestock, refTime)

	assert.Equal(t, []string{"i2", "i4"}, reportItemIDs(r))
	for _, v := range r.Vehicles {
		for _, c := range v.Cases {
			for _, m := range c.Modules {
				for _, it := range m.Items {
					assert.Less(t, it.TotalQuantity, it.TargetQuantity)
				}
			}
		}
	}

	// Summary covers the unfiltered set, dangling items included.
	assert.Equal(t, 6, r.Summary.TotalItems)
	assert.Equal(t, 4, r.Summary.Understocked)
	assert.Equal(t, 4+3+9+1, r.Summary.RestockNeeded)
	assert.Equal(t, 1, r.Summary.ExpiringSoon)
}

func TestBuildReport_ExpiringFilter(t *testing.T) {
	r := domain.BuildReport(reportFixture(), domain.ReportExpiring, refTime)
	assert.Equal(t, []string{"i3"}, reportItemIDs(r))
	assert.Equal(t, domain.ReportExpiring, r.Type)
	assert.True(t, r.GeneratedAt.Equal(refTime))
}

func TestBuildReport_Empty(t *testing.T) {
	r := domain.BuildReport(domain.ReportInput{}, domain.ReportFull, refTime)
	assert.True(t, r.Empty())
	assert.NotNil(t, r.Vehicles)
	assert.Equal(t, domain.ReportSummary{}, r.Summary)
}

func TestParseReportType(t *testing.T) {
	for _, s := range []string{"full", "restock", "expiring"} {
		got, err := domain.ParseReportType(s)
		require.NoError(t, err)
		assert.Equal(t, domain.ReportType(s), got)
	}
	_, err := domain.ParseReportType("weekly")
	assert.Error(t, err)
}

func TestVehicleTotals(t *testing.T) {
	totals := domain.VehicleTotals(reportFixture())

	assert.Equal(t, []domain.VehicleTotal{
		{VehicleID: "v1", Name: "RTW 1", Total: 5},
		{VehicleID: "v2", Name: "RTW 2", Total: 2},
	}, totals)
}
