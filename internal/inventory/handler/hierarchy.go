package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medistock/medistock-backend/internal/inventory/service"
	"github.com/medistock/medistock-backend/pkg/httputil"
	"github.com/medistock/medistock-backend/pkg/logger"
)

// HierarchyHandler handles vehicle, case and module bag endpoints
type HierarchyHandler struct {
	service *service.HierarchyService
	logger  *logger.Logger
}

// NewHierarchyHandler creates a new hierarchy handler
func NewHierarchyHandler(svc *service.HierarchyService, log *logger.Logger) *HierarchyHandler {
	return &HierarchyHandler{
		service: svc,
		logger:  log,
	}
}

func decodeName(w http.ResponseWriter, r *http.Request) (service.NameInput, bool) {
	var in service.NameInput
	if err := httputil.DecodeJSONLocalized(r, &in); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return in, false
	}
	return in, true
}

// Vehicle handlers

func (h *HierarchyHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.service.ListVehicles(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, vehicles)
}

func (h *HierarchyHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.service.GetVehicle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, vehicle)
}

func (h *HierarchyHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeName(w, r)
	if !ok {
		return
	}
	vehicle, err := h.service.CreateVehicle(r.Context(), in)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.Created(w, vehicle)
}

func (h *HierarchyHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeName(w, r)
	if !ok {
		return
	}
	vehicle, err := h.service.RenameVehicle(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, vehicle)
}

// DeleteVehicle deletes a vehicle with all cases, module bags and items in it
// and reports how much was removed.
func (h *HierarchyHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.DeleteVehicle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, summary)
}

// GetTree returns a vehicle with its cases, module bags and classified items
func (h *HierarchyHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.VehicleTree(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, tree)
}

// Case handlers

func (h *HierarchyHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.service.ListCases(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, cases)
}

func (h *HierarchyHandler) CreateCase(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeName(w, r)
	if !ok {
		return
	}
	c, err := h.service.CreateCase(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.Created(w, c)
}

func (h *HierarchyHandler) UpdateCase(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeName(w, r)
	if !ok {
		return
	}
	c, err := h.service.RenameCase(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, c)
}

func (h *HierarchyHandler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.DeleteCase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, summary)
}

// Module bag handlers

func (h *HierarchyHandler) ListModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.service.ListModuleBags(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, modules)
}

func (h *HierarchyHandler) CreateModule(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeName(w, r)
	if !ok {
		return
	}
	m, err := h.service.CreateModuleBag(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.Created(w, m)
}

func (h *HierarchyHandler) UpdateModule(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeName(w, r)
	if !ok {
		return
	}
	m, err := h.service.RenameModuleBag(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, m)
}

func (h *HierarchyHandler) DeleteModule(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.DeleteModuleBag(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, summary)
}
