package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupabaseUpsertSendsMergeRequest(t *testing.T) {
	var gotPath, gotPrefer, gotAPIKey, gotAuth, gotContentType string
	var gotRows []map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPrefer = r.Header.Get("Prefer")
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRows))

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewSupabaseClient(srv.URL+"/", "service-key")

	err := client.Upsert(context.Background(), "posts", []map[string]any{
		{"id": "42", "title": "first"},
		{"id": "43", "title": "second"},
	})

	require.NoError(t, err)
	assert.Equal(t, "/rest/v1/posts", gotPath)
	assert.Equal(t, "resolution=merge-duplicates", gotPrefer, "conflicts must merge, not error")
	assert.Equal(t, "service-key", gotAPIKey)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	require.Len(t, gotRows, 2, "the whole batch rides in one request body")
	assert.Equal(t, "42", gotRows[0]["id"])
}

func TestSupabaseUpsertRejectionIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, `{"message": "column does not exist"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewSupabaseClient(srv.URL, "service-key")

	err := client.Upsert(context.Background(), "posts", []map[string]any{{"id": "x"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "column does not exist")
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "a rejected batch stays rejected, retrying is pointless")
}

func TestSupabaseUpsertRetriesServerErrors(t *testing.T) {
	var bodies []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rows []map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rows))
		bodies = append(bodies, len(rows))

		if len(bodies) == 1 {
			http.Error(w, "db restarting", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewSupabaseClient(srv.URL, "service-key")

	err := client.Upsert(context.Background(), "comments", []map[string]any{{"id": "a"}, {"id": "b"}})

	require.NoError(t, err)
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1], "the retried request re-sends the full batch body")
}

func TestSupabaseUpsertUnmarshalableBatch(t *testing.T) {
	client := NewSupabaseClient("http://unused.invalid", "service-key")

	err := client.Upsert(context.Background(), "posts", []any{make(chan int)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal")
}
