package ai

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

	"golang.org/x/oauth2"
)

// GatewayClient talks to an AI gateway that fronts hosted text models. Models
// are addressed by id under the gateway base URL; requests and replies are
// plain JSON over POST.
type GatewayClient struct {
	BaseURL string
	Client  *http.Client

	token oauth2.TokenSource
}

func NewGatewayClient(baseURL, apiToken string) *GatewayClient {
	return &GatewayClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: GATEWAY_REQUEST_TIMEOUT},
		token: oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: apiToken,
			TokenType:   "Bearer",
		}),
	}
}

type gatewayRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type gatewayResponse struct {
	Response string `json:"response"`
}

// Run sends one prompt to the named model and returns its raw text reply.
func (g *GatewayClient) Run(ctx context.Context, model string, req Request) (string, error) {
	body, err := json.Marshal(gatewayRequest{
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s", g.BaseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	tok, err := g.token.Token()
	if err != nil {
		return "", fmt.Errorf("failed to resolve gateway token: %w", err)
	}
	tok.SetAuthHeader(httpReq)

	resp, err := g.DoWithRetry(httpReq)
	if err != nil {
		return "", fmt.Errorf("gateway request failed after retries: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Warn("[GatewayClient] Non-OK response from model",
			slog.String("model", model),
			slog.Int("status", resp.StatusCode),
			getPreview(respBody))
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var out gatewayResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		slog.Warn("[GatewayClient] Failed to unmarshal model response",
			slog.String("model", model),
			slog.String("error", err.Error()),
			getPreview(respBody),
			slog.Int("raw_response_length", len(respBody)))
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Response == "" {
		return "", ErrEmptyResponse
	}

	return out.Response, nil
}

// DoWithRetry retries transport errors and 5xx responses with exponential
// backoff. Request bodies are rewound between attempts.
func (g *GatewayClient) DoWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error
	backoff := INITIAL_BACKOFF

	for attempt := 0; attempt < MAX_RETRIES; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			if req.Body, err = req.GetBody(); err != nil {
				return nil, fmt.Errorf("failed to rewind request body: %w", err)
			}
		}

		resp, err = g.Client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if resp != nil {
			resp.Body.Close()
		}

		slog.Warn("[GatewayClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", errMsg(err, resp)))

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("gateway still failing after %d attempts: %s", MAX_RETRIES, errMsg(err, resp))
}

func getPreview(respBody []byte) slog.Attr {
	raw := string(respBody)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return slog.String("raw_response", raw)
}

func errMsg(err error, resp *http.Response) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status code %d", resp.StatusCode)
	}
	return "unknown error"
}
