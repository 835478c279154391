package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/internal/inventory/live"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/httputil"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/tenant"
)

const (
	streamHeartbeat    = 25 * time.Second
	streamErrorMessage = "inventory snapshot unavailable"
)

// OverviewSource recomputes the classified inventory of the tenant in context.
type OverviewSource interface {
	Overview(ctx context.Context, status string) ([]domain.ClassifiedItem, error)
}

// StreamHandler pushes the classified inventory over Server-Sent Events and
// sends a fresh snapshot after every change of the tenant.
type StreamHandler struct {
	source    OverviewSource
	hub       *live.Hub
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(source OverviewSource, hub *live.Hub, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		source:    source,
		hub:       hub,
		heartbeat: streamHeartbeat,
		logger:    log,
	}
}

type snapshotEvent struct {
	Items  []domain.ClassifiedItem `json:"items"`
	Change *live.Change            `json:"change,omitempty"`
}

// Stream serves GET /inventory/stream. ?status= narrows every snapshot like
// the overview endpoint.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.ErrorLocalized(w, r, errors.Internal("streaming unsupported"))
		return
	}
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		httputil.ErrorLocalized(w, r, errors.Unauthorized("tenant context required"))
		return
	}
	status := r.URL.Query().Get("status")

	// Subscribe before the first snapshot so no change can slip in between.
	// One pending signal is enough; the next snapshot covers every change
	// that arrived in between.
	pending := make(chan live.Change, 1)
	unsubscribe := h.hub.Subscribe(tenantID, func(c live.Change) {
		select {
		case pending <- c:
		default:
		}
	})
	defer unsubscribe()

	initial, err := h.source.Overview(ctx, status)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	// The stream outlives the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug().Err(err).Msg("cannot clear write deadline")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if !h.write(w, flusher, initial, nil) {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-pending:
			if !h.send(ctx, w, flusher, status, &c) {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *StreamHandler) send(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, status string, change *live.Change) bool {
	items, err := h.source.Overview(ctx, status)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		h.logger.Error().Err(err).Msg("failed to compute inventory snapshot")
		fmt.Fprintf(w, "event: error\ndata: %q\n\n", streamErrorMessage)
		flusher.Flush()
		return true
	}
	return h.write(w, flusher, items, change)
}

func (h *StreamHandler) write(w http.ResponseWriter, flusher http.Flusher, items []domain.ClassifiedItem, change *live.Change) bool {
	payload, err := json.Marshal(snapshotEvent{Items: items, Change: change})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode inventory snapshot")
		return false
	}
	if _, err := fmt.Fprintf(w, "event: inventory\ndata: %s\n\n", payload); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
