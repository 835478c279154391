package handler

import (
	"net/http"

	"github.com/medistock/medistock-backend/internal/inventory/service"
	"github.com/medistock/medistock-backend/pkg/httputil"
	"github.com/medistock/medistock-backend/pkg/logger"
)

// DashboardHandler handles dashboard endpoints
type DashboardHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(svc *service.InventoryService, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: svc,
		logger:  log,
	}
}

// GetStats returns dashboard statistics
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.DashboardStats(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}
