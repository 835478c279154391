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
	"github.com/medistock/medistock-backend/pkg/i18n"
	"github.com/medistock/medistock-backend/pkg/logger"
)

// InventoryService handles item business logic
type InventoryService struct {
	itemRepo      *repository.ItemRepository
	hierarchyRepo *repository.HierarchyRepository
	feed          changeFeed
	logger        *logger.Logger
	now           func() time.Time
}

// NewInventoryService creates a new inventory service. hub and publisher may be nil.
func NewInventoryService(
	itemRepo *repository.ItemRepository,
	hierarchyRepo *repository.HierarchyRepository,
	hub *live.Hub,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *InventoryService {
	return &InventoryService{
		itemRepo:      itemRepo,
		hierarchyRepo: hierarchyRepo,
		feed:          changeFeed{hub: hub, publisher: publisher},
		logger:        log,
		now:           time.Now,
	}
}

// ItemInput is the writable part of an item.
type ItemInput struct {
	ModuleID       string  `json:"module_id" validate:"required"`
	Name           string  `json:"name" validate:"required,max=200"`
	Barcode        *string `json:"barcode,omitempty" validate:"omitempty,max=100"`
	TargetQuantity int     `json:"target_quantity" validate:"gte=0"`
	Notes          *string `json:"notes,omitempty"`
}

// StockInput adds one batch to an item. Dates are user input and may be empty.
type StockInput struct {
	Quantity       int    `json:"quantity" validate:"gte=1"`
	ExpirationDate string `json:"expiration_date,omitempty"`
	DeliveryDate   string `json:"delivery_date,omitempty"`
}

// DashboardStats summarises the tenant's inventory
type DashboardStats struct {
	TotalItems    int                      `json:"total_items"`
	TotalUnits    int                      `json:"total_units"`
	Understocked  int                      `json:"understocked"`
	RestockNeeded int                      `json:"restock_needed"`
	ExpiringSoon  int                      `json:"expiring_soon"`
	Expired       int                      `json:"expired"`
	ByStatus      map[domain.StatusKey]int `json:"by_status"`
	ByVehicle     []domain.VehicleTotal    `json:"by_vehicle"`
}

func (in *ItemInput) normalize() map[string]string {
	details := map[string]string{}

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		details["name"] = "This field is required"
	}
	if strings.TrimSpace(in.ModuleID) == "" {
		details["module_id"] = "This field is required"
	}
	if in.TargetQuantity < 0 {
		details["target_quantity"] = i18n.T("errors.inventory.negative_quantity")
	}
	if in.Barcode != nil {
		if b := strings.TrimSpace(*in.Barcode); b == "" {
			in.Barcode = nil
		} else {
			in.Barcode = &b
		}
	}
	return details
}

func (s *InventoryService) requireModule(ctx context.Context, moduleID string) error {
	ok, err := s.itemRepo.ModuleExists(ctx, moduleID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Validation(map[string]string{"module_id": i18n.T("errors.inventory.module_missing")})
	}
	return nil
}

// Item operations

// CreateItem validates and stores a new item without stock
func (s *InventoryService) CreateItem(ctx context.Context, in ItemInput) (*domain.Item, error) {
	if details := in.normalize(); len(details) > 0 {
		return nil, errors.Validation(details)
	}
	if err := s.requireModule(ctx, in.ModuleID); err != nil {
		return nil, err
	}

	item := &domain.Item{
		ModuleID:       in.ModuleID,
		Name:           in.Name,
		Barcode:        in.Barcode,
		TargetQuantity: in.TargetQuantity,
		Notes:          in.Notes,
		Batches:        domain.Batches{},
		Audit:          domain.NewAudit(actor.FromContext(ctx), s.now().UTC()),
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}

	s.feed.emit(ctx, live.ResourceItem, item.ID, live.ActionCreated)
	return item, nil
}

// GetItem returns one item with its derived totals and statuses
func (s *InventoryService) GetItem(ctx context.Context, id string) (*domain.ClassifiedItem, error) {
	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.classify(*item), nil
}

// ListItems lists items, optionally narrowed to one module bag or a search term
func (s *InventoryService) ListItems(ctx context.Context, filter repository.ItemFilter) ([]domain.ClassifiedItem, error) {
	items, err := s.itemRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return domain.ClassifyAll(items, s.now()), nil
}

// UpdateItem replaces the writable fields of an item. Batches are untouched.
func (s *InventoryService) UpdateItem(ctx context.Context, id string, in ItemInput) (*domain.Item, error) {
	if details := in.normalize(); len(details) > 0 {
		return nil, errors.Validation(details)
	}

	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.ModuleID != item.ModuleID {
		if err := s.requireModule(ctx, in.ModuleID); err != nil {
			return nil, err
		}
	}

	item.ModuleID = in.ModuleID
	item.Name = in.Name
	item.Barcode = in.Barcode
	item.TargetQuantity = in.TargetQuantity
	item.Notes = in.Notes
	item.Touch(actor.FromContext(ctx), s.now().UTC())

	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, err
	}

	s.feed.emit(ctx, live.ResourceItem, item.ID, live.ActionUpdated)
	return item, nil
}

// DeleteItem deletes an item and all of its batches
func (s *InventoryService) DeleteItem(ctx context.Context, id string) error {
	if err := s.itemRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.feed.emit(ctx, live.ResourceItem, id, live.ActionDeleted)
	return nil
}

// AddStock appends a batch to an item. The expiration date may be omitted
// but must not lie before today.
func (s *InventoryService) AddStock(ctx context.Context, id string, in StockInput) (*domain.Item, error) {
	now := s.now()
	details := map[string]string{}

	if in.Quantity < 1 {
		details["quantity"] = "Must be at least 1"
	}

	expiration, err := domain.ParseDateInput(in.ExpirationDate)
	switch {
	case err != nil:
		details["expiration_date"] = i18n.T("errors.inventory.invalid_date")
	case expiration != nil && domain.InPast(*expiration, now):
		details["expiration_date"] = i18n.T("errors.inventory.expiration_in_past")
	}

	delivery, err := domain.ParseDateInput(in.DeliveryDate)
	if err != nil {
		details["delivery_date"] = i18n.T("errors.inventory.invalid_date")
	}

	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	batch := domain.Batch{Quantity: in.Quantity, ExpirationDate: expiration, DeliveryDate: delivery}
	audit := domain.Audit{}
	audit.Touch(actor.FromContext(ctx), now.UTC())

	item, err := s.itemRepo.AppendBatch(ctx, id, batch, audit)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("item_id", item.ID).
		Int("quantity", in.Quantity).
		Msg("stock added")

	s.feed.emit(ctx, live.ResourceItem, item.ID, live.ActionUpdated)
	return item, nil
}

// Lookup finds an item by exact barcode, falling back to a case-insensitive
// name match.
func (s *InventoryService) Lookup(ctx context.Context, query string) (*domain.ClassifiedItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Validation(map[string]string{"q": "This field is required"})
	}

	item, err := s.itemRepo.FindByBarcode(ctx, query)
	if errors.Is(err, errors.ErrNotFound) {
		item, err = s.itemRepo.FindByName(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	return s.classify(*item), nil
}

// Overview aggregates and classifies every item. A non-empty status keeps
// only the items carrying that label.
func (s *InventoryService) Overview(ctx context.Context, status string) ([]domain.ClassifiedItem, error) {
	var filter domain.StatusKey
	if status != "" {
		key, ok := domain.ParseStatusKey(status)
		if !ok {
			return nil, errors.Validation(map[string]string{"status": "Unknown status " + status})
		}
		filter = key
	}

	items, err := s.itemRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	classified := domain.ClassifyAll(items, s.now())
	if filter == "" {
		return classified, nil
	}

	out := make([]domain.ClassifiedItem, 0, len(classified))
	for _, c := range classified {
		if c.HasStatus(filter) {
			out = append(out, c)
		}
	}
	return out, nil
}

// DashboardStats computes the dashboard counters from the current stock.
// Understocked and expiring counts follow the report summary, so an expired
// item still counts when it is short or expires within the horizon.
func (s *InventoryService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var in domain.ReportInput
	var err error
	if in.Items, err = s.itemRepo.ListAll(ctx); err != nil {
		return nil, err
	}
	if in.Modules, err = s.hierarchyRepo.ListModuleBags(ctx); err != nil {
		return nil, err
	}
	if in.Cases, err = s.hierarchyRepo.ListCases(ctx); err != nil {
		return nil, err
	}
	if in.Vehicles, err = s.hierarchyRepo.ListVehicles(ctx); err != nil {
		return nil, err
	}
	return computeStats(in, s.now()), nil
}

func computeStats(in domain.ReportInput, now time.Time) *DashboardStats {
	stats := &DashboardStats{ByStatus: map[domain.StatusKey]int{}}
	for _, item := range domain.ClassifyAll(in.Items, now) {
		stats.TotalItems++
		stats.TotalUnits += item.TotalQuantity
		stats.RestockNeeded += item.RestockNeeded()
		if item.Understocked() {
			stats.Understocked++
		}
		if domain.ExpiresWithinHorizon(item.EarliestExpiration, now) {
			stats.ExpiringSoon++
		}
		for _, st := range item.Statuses {
			stats.ByStatus[st.Key]++
		}
	}
	stats.Expired = stats.ByStatus[domain.StatusExpired]
	stats.ByVehicle = domain.VehicleTotals(in)
	return stats
}

func (s *InventoryService) classify(item domain.Item) *domain.ClassifiedItem {
	agg := domain.Aggregate(item)
	return &domain.ClassifiedItem{AggregatedItem: agg, Statuses: domain.Classify(agg, s.now())}
}
