package domain

import "time"

// ModuleNode is a module bag with its classified items.
type ModuleNode struct {
	ModuleBag
	Items []ClassifiedItem `json:"items"`
}

// CaseNode is a case with its module bags.
type CaseNode struct {
	Case
	Modules []ModuleNode `json:"modules"`
}

// VehicleTree is the full content of one vehicle, empty containers included.
type VehicleTree struct {
	Vehicle
	Cases []CaseNode `json:"cases"`
}

// BuildVehicleTree nests cases, module bags and items under v. Children that
// do not belong to v are ignored; order follows the input slices.
func BuildVehicleTree(v Vehicle, cases []Case, modules []ModuleBag, items []Item, now time.Time) VehicleTree {
	itemsByModule := map[string][]ClassifiedItem{}
	for _, ci := range ClassifyAll(items, now) {
		itemsByModule[ci.ModuleID] = append(itemsByModule[ci.ModuleID], ci)
	}

	modulesByCase := map[string][]ModuleNode{}
	for _, m := range modules {
		node := ModuleNode{ModuleBag: m, Items: itemsByModule[m.ID]}
		if node.Items == nil {
			node.Items = []ClassifiedItem{}
		}
		modulesByCase[m.CaseID] = append(modulesByCase[m.CaseID], node)
	}

	tree := VehicleTree{Vehicle: v, Cases: []CaseNode{}}
	for _, c := range cases {
		if c.VehicleID != v.ID {
			continue
		}
		node := CaseNode{Case: c, Modules: modulesByCase[c.ID]}
		if node.Modules == nil {
			node.Modules = []ModuleNode{}
		}
		tree.Cases = append(tree.Cases, node)
	}
	return tree
}
