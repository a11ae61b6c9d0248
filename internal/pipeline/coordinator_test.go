package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewave/threadflow/internal/clients"
	"github.com/tidewave/threadflow/internal/models"
)

type fakeBlobStore struct {
	objects map[string][]byte
	putErr  error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, clients.ErrObjectNotFound
	}
	return data, nil
}

func (f *fakeBlobStore) Put(_ context.Context, key string, data []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

type fakeMarkerStore struct {
	putErr  error
	markers map[string]string
	ttls    map[string]time.Duration
}

func (f *fakeMarkerStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	if f.putErr != nil {
		return f.putErr
	}
	if f.markers == nil {
		f.markers = make(map[string]string)
		f.ttls = make(map[string]time.Duration)
	}
	f.markers[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeMarkerStore) WasProcessed(_ context.Context, key string) bool {
	_, ok := f.markers[key]
	return ok
}

// panickyUpserter blows up on its first call and behaves afterwards.
type panickyUpserter struct {
	calls int
	inner recordingUpserter
}

func (p *panickyUpserter) Upsert(ctx context.Context, table string, records any) error {
	p.calls++
	if p.calls == 1 {
		panic("storage driver bug")
	}
	return p.inner.Upsert(ctx, table, records)
}

func quietGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		classify:  func(string) (string, error) { return "[]", nil },
		summarize: func(string) (string, error) { return "generated summary", nil },
	}
}

func newTestCoordinator(t *testing.T, deps Deps) *Coordinator {
	t.Helper()

	if deps.Enricher == nil {
		enricher := NewEnricher(quietGenerator(), "test-model")
		t.Cleanup(enricher.Close)
		deps.Enricher = enricher
	}
	coordinator, err := NewCoordinator(deps)
	require.NoError(t, err)
	return coordinator
}

const happyDump = `[{"id": "42", "title": "Why is X slow?", "user": "alice", "text": "body of 42",
	"comments": [{"user": "bob", "text": "comment body"}]}]`

func TestProcessHappyPathWithDefaultKey(t *testing.T) {
	blob := newFakeBlobStore()
	blob.objects[DEFAULT_WORK_ITEM_KEY] = []byte(happyDump)
	markers := &fakeMarkerStore{}
	events := &recordingEvents{}
	store := &mapStoreUpserter{}

	coordinator := newTestCoordinator(t, Deps{
		Blob:      blob,
		Markers:   markers,
		Events:    events,
		Persister: NewPersister(store, events),
	})

	coordinator.Process(context.Background(), []models.WorkItem{{Key: ""}})

	assert.Equal(t, "body of 42", string(blob.objects["42_text"]))
	assert.Equal(t, "comment body", string(blob.objects["42_comment_0_text"]))

	require.Contains(t, store.tables, TABLE_POSTS)
	assert.Equal(t, "generated summary", store.tables[TABLE_POSTS]["42"]["summary"])
	assert.Contains(t, store.tables[TABLE_COMMENTS], "42_comment_0")

	markerValue, ok := markers.markers[PROCESSED_MARKER_PREFIX+DEFAULT_WORK_ITEM_KEY]
	require.True(t, ok, "empty key falls back to the default dump key")
	_, err := time.Parse(time.RFC3339, markerValue)
	assert.NoError(t, err, "marker value is a completion timestamp")
	assert.Equal(t, PROCESSED_MARKER_TTL, markers.ttls[PROCESSED_MARKER_PREFIX+DEFAULT_WORK_ITEM_KEY])

	require.NotEmpty(t, events.events)
	last := events.events[len(events.events)-1]
	assert.Equal(t, "process_item", last.event)
	assert.Equal(t, "ok", last.status)
}

func TestProcessMissingDumpSkipsItemOnly(t *testing.T) {
	blob := newFakeBlobStore()
	blob.objects["present.json"] = []byte(happyDump)
	markers := &fakeMarkerStore{}
	events := &recordingEvents{}
	store := &mapStoreUpserter{}

	coordinator := newTestCoordinator(t, Deps{
		Blob:      blob,
		Markers:   markers,
		Events:    events,
		Persister: NewPersister(store, events),
	})

	coordinator.Process(context.Background(), []models.WorkItem{
		{Key: "missing.json"},
		{Key: "present.json"},
	})

	assert.NotContains(t, markers.markers, PROCESSED_MARKER_PREFIX+"missing.json")
	assert.Contains(t, markers.markers, PROCESSED_MARKER_PREFIX+"present.json",
		"the sibling item still runs to completion")
	assert.Contains(t, store.tables[TABLE_POSTS], "42")

	var skipped bool
	for _, ev := range events.events {
		if ev.event == "fetch_dump" && ev.status == "skipped" {
			skipped = true
		}
	}
	assert.True(t, skipped)
}

func TestProcessGarbageDumpFailsItemOnly(t *testing.T) {
	blob := newFakeBlobStore()
	blob.objects["garbage.json"] = []byte("this is not json{{{")
	blob.objects["good.json"] = []byte(happyDump)
	markers := &fakeMarkerStore{}
	events := &recordingEvents{}
	store := &mapStoreUpserter{}

	coordinator := newTestCoordinator(t, Deps{
		Blob:      blob,
		Markers:   markers,
		Events:    events,
		Persister: NewPersister(store, events),
	})

	coordinator.Process(context.Background(), []models.WorkItem{
		{Key: "garbage.json"},
		{Key: "good.json"},
	})

	assert.NotContains(t, markers.markers, PROCESSED_MARKER_PREFIX+"garbage.json")
	assert.Contains(t, markers.markers, PROCESSED_MARKER_PREFIX+"good.json")

	var failed bool
	for _, ev := range events.events {
		if ev.event == "process_item" && ev.status == "failed" {
			failed = true
		}
	}
	assert.True(t, failed, "an undecodable dump is reported, not swallowed")
}

func TestProcessSingleObjectDump(t *testing.T) {
	blob := newFakeBlobStore()
	blob.objects["one.json"] = []byte(`{"id": "solo", "title": "single object dumps decode too"}`)
	store := &mapStoreUpserter{}

	coordinator := newTestCoordinator(t, Deps{
		Blob:      blob,
		Persister: NewPersister(store, nil),
	})

	coordinator.Process(context.Background(), []models.WorkItem{{Key: "one.json"}})

	assert.Contains(t, store.tables[TABLE_POSTS], "solo")
}

func TestProcessMarkerFailureDoesNotFailItem(t *testing.T) {
	blob := newFakeBlobStore()
	blob.objects["k.json"] = []byte(happyDump)
	markers := &fakeMarkerStore{putErr: errors.New("marker store down")}
	events := &recordingEvents{}
	store := &mapStoreUpserter{}

	coordinator := newTestCoordinator(t, Deps{
		Blob:      blob,
		Markers:   markers,
		Events:    events,
		Persister: NewPersister(store, events),
	})

	coordinator.Process(context.Background(), []models.WorkItem{{Key: "k.json"}})

	assert.Contains(t, store.tables[TABLE_POSTS], "42", "data still lands without the marker")
	require.NotEmpty(t, events.events)
	last := events.events[len(events.events)-1]
	assert.Equal(t, "ok", last.status, "a lost marker is bookkeeping, not failure")
}

func TestProcessPanicIsolatedToItem(t *testing.T) {
	blob := newFakeBlobStore()
	blob.objects["first.json"] = []byte(`{"id": "a", "title": "first"}`)
	blob.objects["second.json"] = []byte(`{"id": "b", "title": "second"}`)
	markers := &fakeMarkerStore{}
	events := &recordingEvents{}
	up := &panickyUpserter{}

	coordinator := newTestCoordinator(t, Deps{
		Blob:      blob,
		Markers:   markers,
		Events:    events,
		Persister: NewPersister(up, events),
	})

	require.NotPanics(t, func() {
		coordinator.Process(context.Background(), []models.WorkItem{
			{Key: "first.json"},
			{Key: "second.json"},
		})
	})

	assert.NotContains(t, markers.markers, PROCESSED_MARKER_PREFIX+"first.json")
	assert.Contains(t, markers.markers, PROCESSED_MARKER_PREFIX+"second.json",
		"a panic mid-item never reaches the next item")

	var failed bool
	for _, ev := range events.events {
		if ev.event == "process_item" && ev.status == "failed" && strings.Contains(ev.detail, "panic") {
			failed = true
		}
	}
	assert.True(t, failed)
}

func TestProcessReprocessesMarkedKeys(t *testing.T) {
	blob := newFakeBlobStore()
	blob.objects["seen.json"] = []byte(happyDump)
	markers := &fakeMarkerStore{}
	require.NoError(t, markers.Put(context.Background(),
		PROCESSED_MARKER_PREFIX+"seen.json", "2024-01-01T00:00:00Z", PROCESSED_MARKER_TTL))
	store := &mapStoreUpserter{}

	coordinator := newTestCoordinator(t, Deps{
		Blob:      blob,
		Markers:   markers,
		Persister: NewPersister(store, nil),
	})

	coordinator.Process(context.Background(), []models.WorkItem{{Key: "seen.json"}})

	assert.Contains(t, store.tables[TABLE_POSTS], "42", "markers record history, they never gate a replay")
	refreshed := markers.markers[PROCESSED_MARKER_PREFIX+"seen.json"]
	assert.NotEqual(t, "2024-01-01T00:00:00Z", refreshed, "the marker is refreshed after the rerun")
}

func TestProcessResolvesBodiesFromEarlierRuns(t *testing.T) {
	blob := newFakeBlobStore()
	// The dump itself has no text field; the body already sits in blob
	// storage from a previous pass.
	blob.objects["thin.json"] = []byte(`{"id": "77", "title": "thin dump"}`)
	blob.objects["77_text"] = []byte("a body stored by an earlier run")

	var summaryPrompt string
	gen := &scriptedGenerator{
		classify: func(string) (string, error) { return "[]", nil },
		summarize: func(prompt string) (string, error) {
			summaryPrompt = prompt
			return "ok", nil
		},
	}
	enricher := NewEnricher(gen, "test-model")
	t.Cleanup(enricher.Close)

	coordinator := newTestCoordinator(t, Deps{
		Blob:      blob,
		Enricher:  enricher,
		Persister: NewPersister(&mapStoreUpserter{}, nil),
	})

	coordinator.Process(context.Background(), []models.WorkItem{{Key: "thin.json"}})

	assert.Contains(t, summaryPrompt, "a body stored by an earlier run")
}

func TestNewCoordinatorValidatesDeps(t *testing.T) {
	enricher := NewEnricher(quietGenerator(), "test-model")
	t.Cleanup(enricher.Close)
	persister := NewPersister(&mapStoreUpserter{}, nil)
	blob := newFakeBlobStore()

	_, err := NewCoordinator(Deps{Enricher: enricher, Persister: persister})
	assert.ErrorContains(t, err, "blob store")

	_, err = NewCoordinator(Deps{Blob: blob, Persister: persister})
	assert.ErrorContains(t, err, "enricher")

	_, err = NewCoordinator(Deps{Blob: blob, Enricher: enricher})
	assert.ErrorContains(t, err, "persister")

	coordinator, err := NewCoordinator(Deps{Blob: blob, Enricher: enricher, Persister: persister})
	require.NoError(t, err)
	assert.NotNil(t, coordinator)
}
