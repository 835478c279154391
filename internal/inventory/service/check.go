package service

import (
	"context"
	"fmt"
	"time"

	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/internal/inventory/events"
	"github.com/medistock/medistock-backend/internal/inventory/live"
	"github.com/medistock/medistock-backend/internal/inventory/repository"
	"github.com/medistock/medistock-backend/pkg/actor"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/tenant"
)

// CheckService runs the inventory check workflow
type CheckService struct {
	checkRepo *repository.CheckRepository
	hub       *live.Hub
	publisher *events.InventoryEventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewCheckService creates a new check service
func NewCheckService(
	checkRepo *repository.CheckRepository,
	hub *live.Hub,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *CheckService {
	return &CheckService{
		checkRepo: checkRepo,
		hub:       hub,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// CheckInput is a submitted stock count.
type CheckInput struct {
	Items []CheckItemInput `json:"items" validate:"dive"`
}

// CheckItemInput holds the counted quantity of every batch of one item, in
// stored batch order. Items not marked as reviewed are ignored.
type CheckItemInput struct {
	ItemID   string `json:"item_id" validate:"required"`
	Reviewed bool   `json:"reviewed"`
	Counts   []int  `json:"counts"`
}

// Submit reconciles the counted quantities with the stored batches. Each
// differing batch is recorded on the check; batches counted as zero are
// removed. The counted items stay locked until the check record and every
// item update are stored together.
func (s *CheckService) Submit(ctx context.Context, in CheckInput) (*domain.InventoryCheck, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var reviewed []int
	ids := make([]string, 0, len(in.Items))
	for i, it := range in.Items {
		if it.Reviewed {
			reviewed = append(reviewed, i)
			ids = append(ids, it.ItemID)
		}
	}

	now := s.now()
	a := actor.FromContextOrSystem(ctx)
	check := &domain.InventoryCheck{
		CheckedAt:     now.UTC(),
		CheckedByID:   a.ID,
		CheckedByName: a.DisplayName(),
	}

	var updated []domain.Item
	err = s.checkRepo.CreateWithCounts(ctx, check, ids, func(stored []domain.Item) ([]domain.Item, domain.CheckItems, error) {
		items, changes, err := reconcileCounts(in, reviewed, stored, a, now)
		updated = items
		return items, changes, err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("check_id", check.ID).
		Int("reviewed", len(reviewed)).
		Int("changed_batches", len(check.Items)).
		Msg("inventory check stored")

	if s.hub != nil {
		for _, item := range updated {
			s.hub.Publish(live.Change{TenantID: tenantID, Resource: live.ResourceItem, ResourceID: item.ID, Action: live.ActionUpdated})
		}
		s.hub.Publish(live.Change{TenantID: tenantID, Resource: live.ResourceCheck, ResourceID: check.ID, Action: live.ActionCreated})
	}
	s.publisher.PublishCheckCompleted(ctx, tenantID, check.ID, a.ID, len(updated))

	return check, nil
}

// reconcileCounts applies the reviewed counts to the stored items. Field
// errors of every item are collected into one validation error.
func reconcileCounts(in CheckInput, reviewed []int, stored []domain.Item, a *actor.Actor, now time.Time) ([]domain.Item, domain.CheckItems, error) {
	byID := make(map[string]domain.Item, len(stored))
	for _, item := range stored {
		byID[item.ID] = item
	}

	details := map[string]string{}
	changes := domain.CheckItems{}
	var updated []domain.Item

	for _, i := range reviewed {
		input := in.Items[i]
		prefix := fmt.Sprintf("items.%d.", i)

		item, ok := byID[input.ItemID]
		if !ok {
			details[prefix+"item_id"] = "Item not found"
			continue
		}

		result, fieldErrs := domain.ApplyCount(item, input.Counts, now)
		for k, v := range fieldErrs {
			details[prefix+k] = v
		}
		if len(fieldErrs) > 0 || !result.Changed() {
			continue
		}

		changes = append(changes, result.Changes...)
		item.Batches = result.Batches
		item.Touch(a, now.UTC())
		updated = append(updated, item)
	}

	if len(details) > 0 {
		return nil, nil, errors.Validation(details)
	}
	return updated, changes, nil
}

// GetCheck gets a stored check
func (s *CheckService) GetCheck(ctx context.Context, id string) (*domain.InventoryCheck, error) {
	return s.checkRepo.GetByID(ctx, id)
}

// ListChecks lists the most recent checks
func (s *CheckService) ListChecks(ctx context.Context, limit int) ([]domain.InventoryCheck, error) {
	return s.checkRepo.List(ctx, limit)
}
