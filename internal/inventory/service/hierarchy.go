package service

import (
	"context"
	"strings"
	"time"

	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/internal/inventory/events"
	"github.com/medistock/medistock-backend/internal/inventory/live"
	"github.com/medistock/medistock-backend/internal/inventory/repository"
	"github.com/medistock/medistock-backend/pkg/actor"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/logger"
)

// HierarchyService manages vehicles, cases and module bags
type HierarchyService struct {
	hierarchyRepo *repository.HierarchyRepository
	itemRepo      *repository.ItemRepository
	feed          changeFeed
	logger        *logger.Logger
	now           func() time.Time
}

// NewHierarchyService creates a new hierarchy service
func NewHierarchyService(
	hierarchyRepo *repository.HierarchyRepository,
	itemRepo *repository.ItemRepository,
	hub *live.Hub,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *HierarchyService {
	return &HierarchyService{
		hierarchyRepo: hierarchyRepo,
		itemRepo:      itemRepo,
		feed:          changeFeed{hub: hub, publisher: publisher},
		logger:        log,
		now:           time.Now,
	}
}

// NameInput names a vehicle, case or module bag.
type NameInput struct {
	Name string `json:"name" validate:"required,max=200"`
}

func requireName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.Validation(map[string]string{"name": "This field is required"})
	}
	return name, nil
}

func (s *HierarchyService) audit(ctx context.Context) domain.Audit {
	return domain.NewAudit(actor.FromContext(ctx), s.now().UTC())
}

func (s *HierarchyService) logDelete(kind, id string, summary domain.DeleteSummary) {
	s.logger.Info().
		Str(kind+"_id", id).
		Int("cases", summary.Cases).
		Int("modules", summary.Modules).
		Int("items", summary.Items).
		Msgf("%s deleted with contents", kind)
}

// Vehicles

// CreateVehicle creates a vehicle
func (s *HierarchyService) CreateVehicle(ctx context.Context, in NameInput) (*domain.Vehicle, error) {
	name, err := requireName(in.Name)
	if err != nil {
		return nil, err
	}

	v := &domain.Vehicle{Name: name, Audit: s.audit(ctx)}
	if err := s.hierarchyRepo.CreateVehicle(ctx, v); err != nil {
		return nil, err
	}
	s.feed.emit(ctx, live.ResourceVehicle, v.ID, live.ActionCreated)
	return v, nil
}

// GetVehicle gets a vehicle by ID
func (s *HierarchyService) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	return s.hierarchyRepo.GetVehicle(ctx, id)
}

// ListVehicles lists all vehicles
func (s *HierarchyService) ListVehicles(ctx context.Context) ([]domain.Vehicle, error) {
	return s.hierarchyRepo.ListVehicles(ctx)
}

// RenameVehicle renames a vehicle
func (s *HierarchyService) RenameVehicle(ctx context.Context, id string, in NameInput) (*domain.Vehicle, error) {
	name, err := requireName(in.Name)
	if err != nil {
		return nil, err
	}

	v, err := s.hierarchyRepo.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	v.Name = name
	v.Touch(actor.FromContext(ctx), s.now().UTC())

	if err := s.hierarchyRepo.UpdateVehicle(ctx, v); err != nil {
		return nil, err
	}
	s.feed.emit(ctx, live.ResourceVehicle, v.ID, live.ActionUpdated)
	return v, nil
}

// DeleteVehicle deletes a vehicle together with its cases, module bags and
// items. Either everything is removed or nothing is.
func (s *HierarchyService) DeleteVehicle(ctx context.Context, id string) (domain.DeleteSummary, error) {
	summary, err := s.hierarchyRepo.DeleteVehicle(ctx, id)
	if err != nil {
		return domain.DeleteSummary{}, err
	}
	s.logDelete("vehicle", id, summary)
	s.feed.emit(ctx, live.ResourceVehicle, id, live.ActionDeleted)
	return summary, nil
}

// VehicleTree returns the vehicle with every case, module bag and
// classified item it contains.
func (s *HierarchyService) VehicleTree(ctx context.Context, id string) (*domain.VehicleTree, error) {
	v, err := s.hierarchyRepo.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}

	cases, err := s.hierarchyRepo.ListCasesByVehicle(ctx, id)
	if err != nil {
		return nil, err
	}

	var modules []domain.ModuleBag
	for _, c := range cases {
		mods, err := s.hierarchyRepo.ListModuleBagsByCase(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		modules = append(modules, mods...)
	}

	var items []domain.Item
	for _, m := range modules {
		its, err := s.itemRepo.List(ctx, repository.ItemFilter{ModuleID: m.ID})
		if err != nil {
			return nil, err
		}
		items = append(items, its...)
	}

	tree := domain.BuildVehicleTree(*v, cases, modules, items, s.now())
	return &tree, nil
}

// Cases

// CreateCase creates a case inside a vehicle
func (s *HierarchyService) CreateCase(ctx context.Context, vehicleID string, in NameInput) (*domain.Case, error) {
	name, err := requireName(in.Name)
	if err != nil {
		return nil, err
	}

	c := &domain.Case{VehicleID: vehicleID, Name: name, Audit: s.audit(ctx)}
	if err := s.hierarchyRepo.CreateCase(ctx, c); err != nil {
		return nil, err
	}
	s.feed.emit(ctx, live.ResourceCase, c.ID, live.ActionCreated)
	return c, nil
}

// ListCases lists all cases of the tenant
func (s *HierarchyService) ListCases(ctx context.Context) ([]domain.Case, error) {
	return s.hierarchyRepo.ListCases(ctx)
}

// RenameCase renames a case
func (s *HierarchyService) RenameCase(ctx context.Context, id string, in NameInput) (*domain.Case, error) {
	name, err := requireName(in.Name)
	if err != nil {
		return nil, err
	}

	c, err := s.hierarchyRepo.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = name
	c.Touch(actor.FromContext(ctx), s.now().UTC())

	if err := s.hierarchyRepo.UpdateCase(ctx, c); err != nil {
		return nil, err
	}
	s.feed.emit(ctx, live.ResourceCase, c.ID, live.ActionUpdated)
	return c, nil
}

// DeleteCase deletes a case with its module bags and items
func (s *HierarchyService) DeleteCase(ctx context.Context, id string) (domain.DeleteSummary, error) {
	summary, err := s.hierarchyRepo.DeleteCase(ctx, id)
	if err != nil {
		return domain.DeleteSummary{}, err
	}
	s.logDelete("case", id, summary)
	s.feed.emit(ctx, live.ResourceCase, id, live.ActionDeleted)
	return summary, nil
}

// Module bags

// CreateModuleBag creates a module bag inside a case
func (s *HierarchyService) CreateModuleBag(ctx context.Context, caseID string, in NameInput) (*domain.ModuleBag, error) {
	name, err := requireName(in.Name)
	if err != nil {
		return nil, err
	}

	m := &domain.ModuleBag{CaseID: caseID, Name: name, Audit: s.audit(ctx)}
	if err := s.hierarchyRepo.CreateModuleBag(ctx, m); err != nil {
		return nil, err
	}
	s.feed.emit(ctx, live.ResourceModuleBag, m.ID, live.ActionCreated)
	return m, nil
}

// ListModuleBags lists all module bags of the tenant
func (s *HierarchyService) ListModuleBags(ctx context.Context) ([]domain.ModuleBag, error) {
	return s.hierarchyRepo.ListModuleBags(ctx)
}

// RenameModuleBag renames a module bag
func (s *HierarchyService) RenameModuleBag(ctx context.Context, id string, in NameInput) (*domain.ModuleBag, error) {
	name, err := requireName(in.Name)
	if err != nil {
		return nil, err
	}

	m, err := s.hierarchyRepo.GetModuleBag(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Name = name
	m.Touch(actor.FromContext(ctx), s.now().UTC())

	if err := s.hierarchyRepo.UpdateModuleBag(ctx, m); err != nil {
		return nil, err
	}
	s.feed.emit(ctx, live.ResourceModuleBag, m.ID, live.ActionUpdated)
	return m, nil
}

// DeleteModuleBag deletes a module bag with its items
func (s *HierarchyService) DeleteModuleBag(ctx context.Context, id string) (domain.DeleteSummary, error) {
	summary, err := s.hierarchyRepo.DeleteModuleBag(ctx, id)
	if err != nil {
		return domain.DeleteSummary{}, err
	}
	s.logDelete("module_bag", id, summary)
	s.feed.emit(ctx, live.ResourceModuleBag, id, live.ActionDeleted)
	return summary, nil
}
