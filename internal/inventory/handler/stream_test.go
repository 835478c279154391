package handler_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medistock/medistock-backend/internal/inventory/domain"
	"github.com/medistock/medistock-backend/internal/inventory/handler"
	"github.com/medistock/medistock-backend/internal/inventory/live"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls atomic.Int32
}

func (s *countingSource) Overview(_ context.Context, status string) ([]domain.ClassifiedItem, error) {
	if status == "bogus" {
		return nil, errors.Validation(map[string]string{"status": "unknown status"})
	}
	n := int(s.calls.Add(1))
	item := domain.ClassifiedItem{}
	item.ID = "item-1"
	item.Name = "Sterile Gauze"
	item.TotalQuantity = n
	return []domain.ClassifiedItem{item}, nil
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

type snapshot struct {
	Items  []domain.ClassifiedItem `json:"items"`
	Change *live.Change            `json:"change"`
}

func newStreamServer(source handler.OverviewSource, hub *live.Hub) *httptest.Server {
	h := handler.NewStreamHandler(source, hub, logger.New("stream-test", "test"))
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := testutil.WithTestTenantValues(r.Context(), "t1", "nord")
		h.Stream(w, r.WithContext(ctx))
	}))
}

func TestStreamHandler_SnapshotPerChange(t *testing.T) {
	hub := live.NewHub()
	source := &countingSource{}
	srv := newStreamServer(source, hub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first := readEvent(t, reader)
	assert.Equal(t, "inventory", first.name)
	var snap snapshot
	require.NoError(t, json.Unmarshal([]byte(first.data), &snap))
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 1, snap.Items[0].TotalQuantity)
	assert.Nil(t, snap.Change)

	hub.Publish(live.Change{TenantID: "t1", Resource: live.ResourceItem, ResourceID: "item-1", Action: live.ActionUpdated})

	next := readEvent(t, reader)
	require.NoError(t, json.Unmarshal([]byte(next.data), &snap))
	require.NotNil(t, snap.Change)
	assert.Equal(t, live.ResourceItem, snap.Change.Resource)
	assert.Equal(t, 2, snap.Items[0].TotalQuantity)

	// Changes of other tenants are not delivered.
	hub.Publish(live.Change{TenantID: "t2", Resource: live.ResourceItem, Action: live.ActionDeleted})
	assert.Equal(t, int32(2), source.calls.Load())

	cancel()
	testutil.RequireEventually(t, func() bool { return hub.Subscribers("t1") == 0 },
		2*time.Second, 10*time.Millisecond, "stream did not unsubscribe after disconnect")
}

func TestStreamHandler_RejectsUnknownStatus(t *testing.T) {
	hub := live.NewHub()
	srv := newStreamServer(&countingSource{}, hub)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?status=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, hub.Subscribers("t1"))
}

// scriptedSource runs fn for every snapshot with the 1-based call number.
type scriptedSource struct {
	calls atomic.Int32
	fn    func(call int) ([]domain.ClassifiedItem, error)
}

func (s *scriptedSource) Overview(_ context.Context, _ string) ([]domain.ClassifiedItem, error) {
	return s.fn(int(s.calls.Add(1)))
}

func openStream(t *testing.T, srv *httptest.Server) (*bufio.Reader, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return bufio.NewReader(resp.Body), func() {
		cancel()
		resp.Body.Close()
	}
}

func TestStreamHandler_ChangeDuringFirstSnapshotIsDelivered(t *testing.T) {
	hub := live.NewHub()
	source := &scriptedSource{}
	source.fn = func(call int) ([]domain.ClassifiedItem, error) {
		if call == 1 {
			// A write commits while the first snapshot is being computed.
			hub.Publish(live.Change{TenantID: "t1", Resource: live.ResourceItem, ResourceID: "item-9", Action: live.ActionCreated})
		}
		return []domain.ClassifiedItem{}, nil
	}
	srv := newStreamServer(source, hub)
	defer srv.Close()

	reader, closeStream := openStream(t, srv)
	defer closeStream()

	first := readEvent(t, reader)
	assert.Equal(t, "inventory", first.name)

	next := readEvent(t, reader)
	var snap snapshot
	require.NoError(t, json.Unmarshal([]byte(next.data), &snap))
	require.NotNil(t, snap.Change)
	assert.Equal(t, "item-9", snap.Change.ResourceID)
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestStreamHandler_SnapshotFailureHidesInternalDetail(t *testing.T) {
	hub := live.NewHub()
	source := &scriptedSource{fn: func(call int) ([]domain.ClassifiedItem, error) {
		if call > 1 {
			return nil, fmt.Errorf("dial tcp 10.0.0.7:5432: connection refused")
		}
		return []domain.ClassifiedItem{}, nil
	}}
	srv := newStreamServer(source, hub)
	defer srv.Close()

	reader, closeStream := openStream(t, srv)
	defer closeStream()
	readEvent(t, reader)

	hub.Publish(live.Change{TenantID: "t1", Resource: live.ResourceItem, Action: live.ActionUpdated})

	ev := readEvent(t, reader)
	assert.Equal(t, "error", ev.name)
	assert.NotContains(t, ev.data, "10.0.0.7")
	assert.Equal(t, `"inventory snapshot unavailable"`, ev.data)
}
