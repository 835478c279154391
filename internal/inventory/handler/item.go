package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medistock/medistock-backend/internal/inventory/repository"
	"github.com/medistock/medistock-backend/internal/inventory/service"
	"github.com/medistock/medistock-backend/pkg/httputil"
	"github.com/medistock/medistock-backend/pkg/logger"
)

// ItemHandler handles item endpoints
type ItemHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc *service.InventoryService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  log,
	}
}

// List lists items, optionally narrowed by module_id or a search term
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.ItemFilter{
		ModuleID: r.URL.Query().Get("module_id"),
		Search:   r.URL.Query().Get("search"),
	}

	items, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}

// Get gets an item by ID
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Create creates a new item
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.ItemInput
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	item, err := h.service.CreateItem(r.Context(), req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, item)
}

// Update updates an item
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.ItemInput
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	item, err := h.service.UpdateItem(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Delete deletes an item
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.NoContent(w)
}

// AddStock adds a batch to an item
func (h *ItemHandler) AddStock(w http.ResponseWriter, r *http.Request) {
	var req service.StockInput
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	item, err := h.service.AddStock(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Lookup finds an item by barcode or exact name (?q=)
func (h *ItemHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Lookup(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Overview returns every item with derived totals and status labels,
// optionally filtered by ?status=
func (h *ItemHandler) Overview(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Overview(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}
