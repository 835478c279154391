package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medistock/medistock-backend/internal/user/domain"
	"github.com/medistock/medistock-backend/internal/user/service"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/httputil"
	"github.com/medistock/medistock-backend/pkg/logger"
)

// Users is satisfied by *service.UserService.
type Users interface {
	List(ctx context.Context) ([]domain.User, error)
	Get(ctx context.Context, uid string) (*domain.User, error)
	Create(ctx context.Context, req *service.CreateUserRequest) (*service.CreateResult, error)
	UpdateProfile(ctx context.Context, uid string, req *service.UpdateProfileRequest) (*domain.User, error)
	UpdateRole(ctx context.Context, uid string, req *service.UpdateRoleRequest) (*domain.User, error)
	Delete(ctx context.Context, uid string) error
}

// UserHandler handles user endpoints
type UserHandler struct {
	service Users
	logger  *logger.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(svc Users, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service: svc,
		logger:  log,
	}
}

// List lists all users of the tenant
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, users)
}

// Get gets a user by ID
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, user)
}

// Me returns the profile of the caller together with its permissions
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid := httputil.GetUserID(r.Context())
	if uid == "" {
		httputil.ErrorLocalized(w, r, errors.Unauthorized("authentication required"))
		return
	}

	user, err := h.service.Get(r.Context(), uid)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"user":        user,
		"permissions": user.Permissions(),
	})
}

// Create provisions a new user
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	result, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.Created(w, result)
}

// Update changes name and phone of a user
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateProfileRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, user)
}

// ChangeRole changes the role of a user
func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateRoleRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	user, err := h.service.UpdateRole(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, user)
}

// Delete deletes a user
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == httputil.GetUserID(r.Context()) {
		httputil.ErrorLocalized(w, r, errors.BadRequest("cannot delete your own account"))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	httputil.NoContent(w)
}
