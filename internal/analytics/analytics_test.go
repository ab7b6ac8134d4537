package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 16)
	c.Start(context.Background())

	for i := 0; i < 5; i++ {
		c.Track(QueryEvent{Type: EventSearch, Query: "q"})
	}
	c.Track(IndexEvent{Type: EventIndexBuilt, Documents: 3})
	c.Close()

	require.Equal(t, 6, pub.count())
	assert.Equal(t, "search", pub.events[0].Key)
	assert.Equal(t, "index_built", pub.events[5].Key)
	published, dropped := c.Stats()
	assert.Equal(t, int64(6), published)
	assert.Zero(t, dropped)
}

func TestCollectorFlushesOnContextCancel(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 16)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	c.Track(QueryEvent{Type: EventSuggest, Word: "serch"})
	cancel()

	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	c := NewCollector(&fakePublisher{}, 2)
	// Not started: nothing drains the buffer.
	c.Track(QueryEvent{})
	c.Track(QueryEvent{})
	c.Track(QueryEvent{})
	_, dropped := c.Stats()
	assert.Equal(t, int64(1), dropped)
}

func TestCollectorTrackAfterClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 4)
	c.Start(context.Background())
	c.Close()

	assert.NotPanics(t, func() { c.Track(QueryEvent{Type: EventSearch, Query: "late"}) })
	assert.NotPanics(t, c.Close)
	_, dropped := c.Stats()
	assert.Equal(t, int64(1), dropped)
	assert.Zero(t, pub.count())
}

func TestCollectorTrackRacesClose(t *testing.T) {
	c := NewCollector(&fakePublisher{}, 64)
	c.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Track(QueryEvent{Type: EventSearch})
			}
		}()
	}
	c.Close()
	wg.Wait()

	published, dropped := c.Stats()
	assert.Equal(t, int64(400), published+dropped)
}

func TestCollectorCloseWithoutStart(t *testing.T) {
	c := NewCollector(&fakePublisher{}, 4)
	c.Track(QueryEvent{})

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked without Start")
	}
	// Start after Close is a no-op.
	c.Start(context.Background())
	c.Close()
}

func TestCollectorPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	c := NewCollector(pub, 4)
	c.Start(context.Background())
	c.Track(QueryEvent{})
	c.Close()
	published, dropped := c.Stats()
	assert.Zero(t, published)
	assert.Equal(t, int64(1), dropped)
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordQuery(QueryEvent{Type: EventSearch, Query: "new york", Returned: 3, LatencyMs: 10})
	agg.RecordQuery(QueryEvent{Type: EventSearch, Query: "new york", Returned: 3, LatencyMs: 20, CacheHit: true})
	agg.RecordQuery(QueryEvent{Type: EventSearch, Query: "xyzzy", Returned: 0, LatencyMs: 30})
	agg.RecordQuery(QueryEvent{Type: EventSuggest, Query: "new yrok", Word: "yrok", Returned: 1, LatencyMs: 40})

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.TotalSuggests)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(3), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.InDelta(t, 25.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(30), stats.P50LatencyMs)
	assert.Equal(t, []QueryCount{{Query: "new york", Count: 2}, {Query: "xyzzy", Count: 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{Query: "xyzzy", Count: 1}}, stats.ZeroResultQueries)
	assert.Equal(t, []QueryCount{{Query: "yrok", Count: 1}}, stats.TopCorrections)
	assert.Nil(t, stats.LastIndexBuild)
}

func TestAggregatorLatencyWindow(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+10; i++ {
		agg.RecordQuery(QueryEvent{Type: EventSearch, Query: "q", LatencyMs: 1})
	}
	assert.Len(t, agg.latencies, maxLatencySamples)
	assert.Equal(t, 10, agg.latencyNext)
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	ctx := context.Background()

	search, err := json.Marshal(QueryEvent{Type: EventSearch, Query: "q", Returned: 1})
	require.NoError(t, err)
	build, err := json.Marshal(IndexEvent{Type: EventIndexBuilt, Source: "file", Documents: 7})
	require.NoError(t, err)

	require.NoError(t, handle(ctx, []byte("search"), search))
	require.NoError(t, handle(ctx, []byte("index_built"), build))
	require.NoError(t, handle(ctx, nil, []byte("not json")))
	require.NoError(t, handle(ctx, nil, []byte(`{"type":"other"}`)))

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.TotalSearches)
	require.NotNil(t, stats.LastIndexBuild)
	assert.Equal(t, 7, stats.LastIndexBuild.Documents)
}

type fakeSnapshots struct {
	snapshots []AggregatedStats
	limit     int
}

func (f *fakeSnapshots) ListSnapshots(_ context.Context, limit int) ([]AggregatedStats, error) {
	f.limit = limit
	return f.snapshots, nil
}

func TestHandler(t *testing.T) {
	agg := NewAggregator()
	agg.RecordQuery(QueryEvent{Type: EventSearch, Query: "q", Returned: 1})
	snaps := &fakeSnapshots{snapshots: []AggregatedStats{{TotalSearches: 9}}}
	h := NewHandler(agg, snaps)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.TotalSearches)

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=3", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, snaps.limit)

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	NewHandler(agg, nil).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
