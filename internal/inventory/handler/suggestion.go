package handler

import (
	"net/http"

	"github.com/medistock/medistock-backend/internal/inventory/service"
	"github.com/medistock/medistock-backend/pkg/httputil"
	"github.com/medistock/medistock-backend/pkg/logger"
)

// SuggestionHandler handles reorder suggestion endpoints
type SuggestionHandler struct {
	service *service.SuggestionService
	logger  *logger.Logger
}

// NewSuggestionHandler creates a new suggestion handler
func NewSuggestionHandler(svc *service.SuggestionService, log *logger.Logger) *SuggestionHandler {
	return &SuggestionHandler{
		service: svc,
		logger:  log,
	}
}

// Reorder returns AI reorder suggestions. An empty body analyses the stored
// inventory.
func (h *SuggestionHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req service.SuggestionInput
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
			httputil.ErrorLocalized(w, r, err)
			return
		}
	}

	suggestions, err := h.service.Suggest(r.Context(), req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}
