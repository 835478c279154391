package domain

import (
	"fmt"
	"time"
)

// ReportType selects which items a report includes.
type ReportType string

const (
	ReportFull     ReportType = "full"
	ReportRestock  ReportType = "restock"
	ReportExpiring ReportType = "expiring"
)

// ParseReportType validates a report type.
func ParseReportType(s string) (ReportType, error) {
	switch t := ReportType(s); t {
	case ReportFull, ReportRestock, ReportExpiring:
		return t, nil
	}
	return "", fmt.Errorf("unknown report type %q", s)
}

// ReportInput is the flat data a report is built from.
type ReportInput struct {
	Items    []Item
	Modules  []ModuleBag
	Cases    []Case
	Vehicles []Vehicle
}

// ReportItem is one report row.
type ReportItem struct {
	ClassifiedItem
	Restock int `json:"restock_needed"`
}

// ModuleGroup lists the items of one module bag.
type ModuleGroup struct {
	Module ModuleBag    `json:"module"`
	Items  []ReportItem `json:"items"`
}

// CaseGroup lists the module bags of one case.
type CaseGroup struct {
	Case    Case          `json:"case"`
	Modules []ModuleGroup `json:"modules"`
}

// VehicleGroup lists the cases of one vehicle.
type VehicleGroup struct {
	Vehicle Vehicle     `json:"vehicle"`
	Cases   []CaseGroup `json:"cases"`
}

// ReportSummary is computed over every item, whatever the report type.
type ReportSummary struct {
	TotalItems    int `json:"total_items"`
	Understocked  int `json:"understocked"`
	RestockNeeded int `json:"restock_needed"`
	ExpiringSoon  int `json:"expiring_soon"`
}

// Report is the grouped, filtered inventory.
type Report struct {
	Type        ReportType     `json:"type"`
	GeneratedAt time.Time      `json:"generated_at"`
	Vehicles    []VehicleGroup `json:"vehicles"`
	Summary     ReportSummary  `json:"summary"`
}

// Empty reports whether no item survived filtering and resolution.
func (r Report) Empty() bool {
	return len(r.Vehicles) == 0
}

// includeInReport applies the report type filter.
func includeInReport(t ReportType, item AggregatedItem, ref time.Time) bool {
	switch t {
	case ReportRestock:
		return item.Understocked()
	case ReportExpiring:
		return ExpiresWithinHorizon(item.EarliestExpiration, ref)
	default:
		return true
	}
}

// BuildReport filters items by type, resolves module, case and vehicle for
// each survivor and nests them in first-seen order. Items whose module, case
// or vehicle cannot be resolved are left out.
func BuildReport(in ReportInput, t ReportType, ref time.Time) Report {
	modules := make(map[string]ModuleBag, len(in.Modules))
	for _, m := range in.Modules {
		modules[m.ID] = m
	}
	cases := make(map[string]Case, len(in.Cases))
	for _, c := range in.Cases {
		cases[c.ID] = c
	}
	vehicles := make(map[string]Vehicle, len(in.Vehicles))
	for _, v := range in.Vehicles {
		vehicles[v.ID] = v
	}

	report := Report{Type: t, GeneratedAt: ref, Vehicles: []VehicleGroup{}}

	// Positions of groups already created, so insertion order is kept.
	vehicleIdx := map[string]int{}
	caseIdx := map[string]int{}
	moduleIdx := map[string]int{}

	for _, item := range in.Items {
		agg := Aggregate(item)

		report.Summary.TotalItems++
		if agg.Understocked() {
			report.Summary.Understocked++
		}
		report.Summary.RestockNeeded += agg.RestockNeeded()
		if ExpiresWithinHorizon(agg.EarliestExpiration, ref) {
			report.Summary.ExpiringSoon++
		}

		if !includeInReport(t, agg, ref) {
			continue
		}

		module, ok := modules[item.ModuleID]
		if !ok {
			continue
		}
		cs, ok := cases[module.CaseID]
		if !ok {
			continue
		}
		vehicle, ok := vehicles[cs.VehicleID]
		if !ok {
			continue
		}

		vi, ok := vehicleIdx[vehicle.ID]
		if !ok {
			vi = len(report.Vehicles)
			vehicleIdx[vehicle.ID] = vi
			report.Vehicles = append(report.Vehicles, VehicleGroup{Vehicle: vehicle})
		}
		vg := &report.Vehicles[vi]

		ci, ok := caseIdx[cs.ID]
		if !ok {
			ci = len(vg.Cases)
			caseIdx[cs.ID] = ci
			vg.Cases = append(vg.Cases, CaseGroup{Case: cs})
		}
		cg := &vg.Cases[ci]

		mi, ok := moduleIdx[module.ID]
		if !ok {
			mi = len(cg.Modules)
			moduleIdx[module.ID] = mi
			cg.Modules = append(cg.Modules, ModuleGroup{Module: module})
		}
		mg := &cg.Modules[mi]

		mg.Items = append(mg.Items, ReportItem{
			ClassifiedItem: ClassifiedItem{AggregatedItem: agg, Statuses: Classify(agg, ref)},
			Restock:        agg.RestockNeeded(),
		})
	}

	return report
}

// VehicleTotal is the number of units stored in one vehicle.
type VehicleTotal struct {
	VehicleID string `json:"vehicle_id"`
	Name      string `json:"name"`
	Total     int    `json:"total"`
}

// VehicleTotals sums the units held in each vehicle, in vehicle order.
// Vehicles without stock report zero; items that cannot be resolved to a
// vehicle are skipped.
func VehicleTotals(in ReportInput) []VehicleTotal {
	caseVehicle := make(map[string]string, len(in.Cases))
	for _, c := range in.Cases {
		caseVehicle[c.ID] = c.VehicleID
	}
	moduleVehicle := make(map[string]string, len(in.Modules))
	for _, m := range in.Modules {
		if v, ok := caseVehicle[m.CaseID]; ok {
			moduleVehicle[m.ID] = v
		}
	}

	units := make(map[string]int, len(in.Vehicles))
	for _, item := range in.Items {
		if v, ok := moduleVehicle[item.ModuleID]; ok {
			units[v] += TotalQuantity(item.Batches)
		}
	}

	out := make([]VehicleTotal, 0, len(in.Vehicles))
	for _, v := range in.Vehicles {
		out = append(out, VehicleTotal{VehicleID: v.ID, Name: v.Name, Total: units[v.ID]})
	}
	return out
}
