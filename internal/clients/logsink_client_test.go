package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSinkPostShipsEvent(t *testing.T) {
	var got logSinkEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewLogSinkClient(srv.URL)
	sink.Post(context.Background(), "persist_posts", "error", "batch 3 rejected")

	assert.Equal(t, "persist_posts", got.Event)
	assert.Equal(t, "error", got.Status)
	assert.Equal(t, "batch 3 rejected", got.ErrorDetail)

	_, err := time.Parse(time.RFC3339, got.Timestamp)
	assert.NoError(t, err, "events carry a parseable timestamp")
}

func TestLogSinkPostOmitsEmptyErrorDetail(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
	}))
	defer srv.Close()

	sink := NewLogSinkClient(srv.URL)
	sink.Post(context.Background(), "process_item", "ok", "")

	assert.NotContains(t, raw, "error_detail")
}

func TestLogSinkEmptyEndpointDropsSilently(t *testing.T) {
	sink := NewLogSinkClient("")

	assert.NotPanics(t, func() {
		sink.Post(context.Background(), "process_item", "ok", "")
	})
}

func TestLogSinkDeliveryFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // sink now points at a dead server

	sink := NewLogSinkClient(srv.URL)

	assert.NotPanics(t, func() {
		sink.Post(context.Background(), "process_item", "failed", "whatever")
	})
}

func TestLogSinkNilReceiverIsSafe(t *testing.T) {
	var sink *LogSinkClient

	assert.NotPanics(t, func() {
		sink.Post(context.Background(), "process_item", "ok", "")
	})
}
