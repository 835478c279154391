package handler

import (
	"net/http"

	"github.com/medistock/medistock-backend/internal/inventory/service"
	"github.com/medistock/medistock-backend/pkg/httputil"
	"github.com/medistock/medistock-backend/pkg/logger"
)

// SettingsHandler handles tenant settings endpoints
type SettingsHandler struct {
	service *service.SettingsService
	logger  *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(svc *service.SettingsService, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: svc,
		logger:  log,
	}
}

// GetEmail returns the expiration e-mail template
func (h *SettingsHandler) GetEmail(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.EmailSettings(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, view)
}

// UpdateEmail replaces the expiration e-mail template
func (h *SettingsHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	var req service.EmailSettingsInput
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	view, err := h.service.UpdateEmailTemplate(r.Context(), req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, view)
}
