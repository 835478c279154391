package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/medistock/medistock-backend/internal/inventory/service"
	"github.com/medistock/medistock-backend/pkg/httputil"
	"github.com/medistock/medistock-backend/pkg/logger"
)

const defaultCheckLimit = 50

// CheckHandler handles inventory check endpoints
type CheckHandler struct {
	service *service.CheckService
	logger  *logger.Logger
}

// NewCheckHandler creates a new check handler
func NewCheckHandler(svc *service.CheckService, log *logger.Logger) *CheckHandler {
	return &CheckHandler{
		service: svc,
		logger:  log,
	}
}

// Submit stores a stock count and applies it to the counted items
func (h *CheckHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req service.CheckInput
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	check, err := h.service.Submit(r.Context(), req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, check)
}

// List returns the most recent checks (?limit=, default 50)
func (h *CheckHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 500 {
		limit = defaultCheckLimit
	}

	checks, err := h.service.ListChecks(r.Context(), limit)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, checks)
}

// Get returns one check
func (h *CheckHandler) Get(w http.ResponseWriter, r *http.Request) {
	check, err := h.service.GetCheck(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, check)
}
