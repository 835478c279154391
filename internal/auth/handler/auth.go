package handler

import (
	"context"
	"net/http"

	"github.com/medistock/medistock-backend/internal/auth/jwt"
	"github.com/medistock/medistock-backend/internal/auth/middleware"
	"github.com/medistock/medistock-backend/internal/auth/service"
	"github.com/medistock/medistock-backend/pkg/httputil"
	"github.com/medistock/medistock-backend/pkg/logger"
)

// Authenticator is satisfied by *service.AuthService.
type Authenticator interface {
	Login(ctx context.Context, req *service.LoginRequest, userAgent, ipAddress string) (*service.LoginResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	service Authenticator
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc Authenticator, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		logger:  log,
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	response, err := h.service.Login(r.Context(), &req, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, response)
}

// Logout revokes the session of the given refresh token. A missing body
// falls back to the bearer token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		req.RefreshToken, _ = middleware.BearerToken(r)
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		h.logger.Warn().Err(err).Msg("logout error")
	}

	httputil.NoContent(w)
}

// Refresh handles token refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tokens)
}
