package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// LogSinkClient ships pipeline events to an external HTTP collector.
// Delivery is fire-and-forget: failures cost a debug line and nothing else,
// so the sink can never slow down or fail the write path.
type LogSinkClient struct {
	Endpoint string
	Client   *http.Client
}

// NewLogSinkClient returns a sink for endpoint. An empty endpoint yields a
// client that silently drops every event, which keeps call sites
// unconditional.
func NewLogSinkClient(endpoint string) *LogSinkClient {
	return &LogSinkClient{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: LOG_SINK_TIMEOUT},
	}
}

type logSinkEvent struct {
	Event       string `json:"event"`
	Status      string `json:"status"`
	ErrorDetail string `json:"error_detail,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// Post ships one event. It always returns; there is nothing for a caller to
// handle.
func (l *LogSinkClient) Post(ctx context.Context, event, status, errorDetail string) {
	if l == nil || l.Endpoint == "" {
		return
	}

	body, err := json.Marshal(logSinkEvent{
		Event:       event,
		Status:      status,
		ErrorDetail: errorDetail,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.Endpoint, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := l.Client.Do(req)
	if err != nil {
		slog.Debug("[LogSinkClient] Event delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
}
