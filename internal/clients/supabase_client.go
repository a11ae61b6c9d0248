package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// SupabaseClient issues batched upserts against PostgREST tables. One POST
// carries one batch; conflict resolution happens server-side via the Prefer
// header, so re-sending a row with an existing identity updates it in place.
type SupabaseClient struct {
	BaseURL    string
	ServiceKey string
	Client     *http.Client
}

func NewSupabaseClient(baseURL, serviceKey string) *SupabaseClient {
	return &SupabaseClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ServiceKey: serviceKey,
		Client:     &http.Client{Timeout: SUPABASE_REQUEST_TIMEOUT},
	}
}

// Upsert writes one batch of records to table. The server merges on identity
// conflict; success or failure is per batch call, never per record.
func (s *SupabaseClient) Upsert(ctx context.Context, table string, records any) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal %s batch: %w", table, err)
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s", s.BaseURL, table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build upsert request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("apikey", s.ServiceKey)
	req.Header.Set("Authorization", "Bearer "+s.ServiceKey)
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	resp, err := s.DoWithRetry(req)
	if err != nil {
		return fmt.Errorf("upsert request to %s failed: %w", table, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read upsert response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("upsert to %s returned status %d: %s", table, resp.StatusCode, preview(respBody))
	}

	return nil
}

// DoWithRetry retries transport errors and 5xx responses with exponential
// backoff, rewinding the request body between attempts. 4xx responses are
// returned immediately; retrying a rejected batch only repeats the rejection.
func (s *SupabaseClient) DoWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error
	backoff := INITIAL_BACKOFF

	for attempt := 0; attempt < MAX_RETRIES; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			if req.Body, err = req.GetBody(); err != nil {
				return nil, fmt.Errorf("failed to rewind request body: %w", err)
			}
		}

		resp, err = s.Client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if resp != nil {
			resp.Body.Close()
		}

		slog.Warn("[SupabaseClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", retryErrMsg(err, resp)))

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > MAX_BACKOFF {
			backoff = MAX_BACKOFF
		}
	}

	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("still failing after %d attempts: %s", MAX_RETRIES, retryErrMsg(err, resp))
}

func preview(respBody []byte) string {
	raw := string(respBody)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return raw
}

func retryErrMsg(err error, resp *http.Response) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status code %d", resp.StatusCode)
	}
	return "unknown error"
}
