package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/internal/inventory/reorder"
	"github.com/medistock/medistock-backend/internal/inventory/repository"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/i18n"
	"github.com/medistock/medistock-backend/pkg/logger"
)

// SuggestionService produces reorder suggestions from the current stock
type SuggestionService struct {
	itemRepo      *repository.ItemRepository
	hierarchyRepo *repository.HierarchyRepository
	advisor       reorder.Advisor
	logger        *logger.Logger
}

// NewSuggestionService creates a new suggestion service
func NewSuggestionService(
	itemRepo *repository.ItemRepository,
	hierarchyRepo *repository.HierarchyRepository,
	advisor reorder.Advisor,
	log *logger.Logger,
) *SuggestionService {
	return &SuggestionService{
		itemRepo:      itemRepo,
		hierarchyRepo: hierarchyRepo,
		advisor:       advisor,
		logger:        log,
	}
}

// SuggestionInput optionally carries a client-side inventory snapshot. When
// empty, the stored inventory is used.
type SuggestionInput struct {
	InventoryData string `json:"inventory_data,omitempty"`
}

// Suggestion is one reorder recommendation.
type Suggestion struct {
	ItemName          string `json:"itemName"`
	QuantityToReorder int    `json:"quantityToReorder"`
	Reason            string `json:"reason"`
}

// inventoryLine is the per-item shape sent to the advisor.
type inventoryLine struct {
	Name               string  `json:"name"`
	Barcode            *string `json:"barcode,omitempty"`
	Quantity           int     `json:"quantity"`
	TargetQuantity     int     `json:"targetQuantity"`
	EarliestExpiration string  `json:"earliestExpiration,omitempty"`
	Module             string  `json:"module,omitempty"`
}

// Suggest asks the advisor for reorder suggestions and validates the answer.
func (s *SuggestionService) Suggest(ctx context.Context, in SuggestionInput) ([]Suggestion, error) {
	inventory := strings.TrimSpace(in.InventoryData)
	if inventory == "" {
		snapshot, err := s.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		inventory = snapshot
	}

	if err := validateInventoryJSON(inventory); err != nil {
		return nil, err
	}

	raw, err := s.advisor.Suggest(ctx, inventory)
	if errors.Is(err, reorder.ErrNotConfigured) {
		return nil, errors.Unavailable("reorder suggestions are not configured")
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("reorder advisor failed")
		return nil, errors.Upstream("AI_PROVIDER_ERROR", "failed to get reorder suggestions", err)
	}

	suggestions, err := parseSuggestions(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("output", truncate(raw, 500)).Msg("advisor returned invalid suggestions")
		return nil, errors.Upstream("INVALID_SUGGESTIONS", i18n.TFromContext(ctx, "errors.inventory.invalid_suggestions"), err)
	}
	return suggestions, nil
}

func (s *SuggestionService) snapshot(ctx context.Context) (string, error) {
	items, err := s.itemRepo.ListAll(ctx)
	if err != nil {
		return "", err
	}
	modules, err := s.hierarchyRepo.ListModuleBags(ctx)
	if err != nil {
		return "", err
	}
	moduleNames := make(map[string]string, len(modules))
	for _, m := range modules {
		moduleNames[m.ID] = m.Name
	}

	lines := make([]inventoryLine, 0, len(items))
	for _, item := range items {
		agg := domain.Aggregate(item)
		line := inventoryLine{
			Name:           item.Name,
			Barcode:        item.Barcode,
			Quantity:       agg.TotalQuantity,
			TargetQuantity: item.TargetQuantity,
			Module:         moduleNames[item.ModuleID],
		}
		if agg.EarliestExpiration != nil {
			line.EarliestExpiration = domain.FormatDate(agg.EarliestExpiration)
		}
		lines = append(lines, line)
	}

	raw, err := json.Marshal(lines)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func validateInventoryJSON(inventory string) error {
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(inventory), &entries); err != nil {
		return errors.Validation(map[string]string{"inventory_data": i18n.T("errors.inventory.invalid_inventory_json")})
	}
	if len(entries) == 0 {
		return errors.NewWithKey("EMPTY_INVENTORY", "errors.inventory.empty_inventory", http.StatusBadRequest)
	}
	return nil
}

// parseSuggestions accepts a JSON array whose every element names an item,
// a non-negative whole quantity and a reason.
func parseSuggestions(raw string) ([]Suggestion, error) {
	var entries []struct {
		ItemName          *string      `json:"itemName"`
		QuantityToReorder *json.Number `json:"quantityToReorder"`
		Reason            *string      `json:"reason"`
	}
	dec := json.NewDecoder(strings.NewReader(reorder.StripCodeFence(raw)))
	dec.UseNumber()
	if err := dec.Decode(&entries); err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, len(entries))
	for i, e := range entries {
		if e.ItemName == nil || strings.TrimSpace(*e.ItemName) == "" {
			return nil, fmt.Errorf("suggestion %d: itemName missing", i)
		}
		if e.QuantityToReorder == nil {
			return nil, fmt.Errorf("suggestion %d: quantityToReorder missing", i)
		}
		qty, err := e.QuantityToReorder.Int64()
		if err != nil || qty < 0 {
			return nil, fmt.Errorf("suggestion %d: quantityToReorder must be a non-negative integer", i)
		}
		if e.Reason == nil {
			return nil, fmt.Errorf("suggestion %d: reason missing", i)
		}
		out = append(out, Suggestion{ItemName: *e.ItemName, QuantityToReorder: int(qty), Reason: *e.Reason})
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
