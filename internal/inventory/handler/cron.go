package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/medistock/medistock-backend/internal/auth/middleware"
	"github.com/medistock/medistock-backend/internal/inventory/service"
	"github.com/medistock/medistock-backend/pkg/logger"
)

// ExpiryRunner runs the expiration check for every active tenant.
type ExpiryRunner interface {
	RunAll(ctx context.Context) ([]service.NotifyResult, error)
}

// CronHandler exposes the expiration check to an external scheduler.
// Its responses are plain JSON objects, not the API envelope.
type CronHandler struct {
	job    ExpiryRunner
	secret string
	logger *logger.Logger
}

// NewCronHandler creates a new cron handler. An empty secret accepts every caller.
func NewCronHandler(job ExpiryRunner, secret string, log *logger.Logger) *CronHandler {
	return &CronHandler{
		job:    job,
		secret: secret,
		logger: log,
	}
}

type cronResponse struct {
	Message string                 `json:"message"`
	Results []service.NotifyResult `json:"results,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// CheckExpirations handles GET /cron/check-expirations
func (h *CronHandler) CheckExpirations(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("rejected cron trigger with bad secret")
		writeCron(w, http.StatusUnauthorized, cronResponse{Message: "Unauthorized"})
		return
	}

	results, err := h.job.RunAll(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("expiration check failed")
		writeCron(w, http.StatusInternalServerError, cronResponse{
			Message: "Internal Server Error",
			Results: results,
			Error:   err.Error(),
		})
		return
	}

	writeCron(w, http.StatusOK, cronResponse{
		Message: "Expiration check completed",
		Results: results,
	})
}

func (h *CronHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	token, ok := middleware.BearerToken(r)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}

func writeCron(w http.ResponseWriter, status int, body cronResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
