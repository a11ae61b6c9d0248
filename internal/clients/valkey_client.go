package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

// MarkerClient records processed-key markers in Valkey. Markers carry a
// finite TTL and exist for replay observability, not locking: losing one
// only costs a log line on the next run.
type MarkerClient struct {
	mu     sync.Mutex
	client valkey.Client
	opts   valkey.ClientOption
}

type MarkerOptions struct {
	Address  string
	Password string
	UseTLS   bool
}

func NewMarkerClient(opts MarkerOptions) (*MarkerClient, error) {
	clientOpts := valkey.ClientOption{
		InitAddress: []string{
			opts.Address,
		},
		Password:         opts.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}

	if opts.UseTLS {
		clientOpts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping valkey: %w", err)
	}

	slog.Info("[MarkerClient] Successfully connected to valkey")

	return &MarkerClient{client: client, opts: clientOpts}, nil
}

func (mc *MarkerClient) Close() {
	mc.client.Close()
}

// Put stores value under key with a TTL. Markers expire on their own;
// nothing ever deletes them explicitly.
func (mc *MarkerClient) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	seconds := int64(ttl / time.Second)
	if seconds <= 0 {
		seconds = 1
	}

	res := mc.DoWithRetry(ctx, mc.client.B().Set().Key(key).Value(value).ExSeconds(seconds).Build(), 3)
	if err := res.Error(); err != nil {
		return fmt.Errorf("failed to set marker %q: %w", key, err)
	}

	slog.Info("[MarkerClient] Marker stored",
		slog.String("key", key),
		slog.Duration("ttl", ttl))
	return nil
}

// WasProcessed reports whether a marker for key is still live. Lookup
// failures read as false.
func (mc *MarkerClient) WasProcessed(ctx context.Context, key string) bool {
	res := mc.DoWithRetry(ctx, mc.client.B().Exists().Key(key).Build(), 3)
	if res.Error() != nil {
		return false
	}

	n, err := res.AsInt64()
	if err != nil {
		return false
	}
	return n > 0
}

func (mc *MarkerClient) DoWithRetry(ctx context.Context, completed valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < retries; i++ {
		result = mc.client.Do(ctx, completed)
		if result.Error() == nil {
			break
		}

		slog.Warn("[MarkerClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", result.Error().Error()))

		if isConnectionError(result.Error()) {
			mc.recreateClient()
		}

		time.Sleep(250 * time.Millisecond)
	}

	return result
}

func (mc *MarkerClient) recreateClient() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[MarkerClient] Recreate failed and was recovered from panic",
				slog.Any("panic", r))
		}
	}()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	slog.Warn("[MarkerClient] Attempting to recreate valkey client...")
	mc.client.Close()

	client, err := valkey.NewClient(mc.opts)
	if err != nil {
		slog.Error("[MarkerClient] Failed to recreate valkey client",
			slog.String("error", err.Error()))
		return
	}

	mc.client = client
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
