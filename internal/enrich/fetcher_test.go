package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// countingSource returns entity{id} and fails ids listed in fail.
type countingSource struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
	inUse atomic.Int32
	peak  atomic.Int32
	delay time.Duration
}

func newCountingSource(fail ...string) *countingSource {
	s := &countingSource{calls: make(map[string]int), fail: make(map[string]bool)}
	for _, id := range fail {
		s.fail[id] = true
	}
	return s
}

func (s *countingSource) Fetch(ctx context.Context, id string) (entity, error) {
	n := s.inUse.Add(1)
	defer s.inUse.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	s.mu.Lock()
	s.calls[id]++
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return entity{}, ctx.Err()
		}
	}
	if s.fail[id] {
		return entity{}, fmt.Errorf("upstream 500 for %s", id)
	}
	return entity{ID: id, Name: "threat " + id}, nil
}

func (s *countingSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func makeIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("th-%03d", i+1)
	}
	return out
}

func TestEnrichPartialFailureTolerance(t *testing.T) {
	src := newCountingSource("th-002", "th-005", "th-007")
	f := NewFetcher[entity](src, Options{})

	res, err := f.Enrich(context.Background(), makeIDs(10))
	require.NoError(t, err)

	assert.Equal(t, 7, res.SuccessCount)
	assert.Equal(t, 3, res.ErrorCount)
	assert.Equal(t, 10, res.ProcessedCount)
	assert.Equal(t, res.ProcessedCount, res.SuccessCount+res.ErrorCount)
	assert.Len(t, res.Cache, 7)
	assert.NotContains(t, res.Cache, "th-002")
	assert.Contains(t, res.Errors, "th-005")
	assert.Equal(t, "threat th-001", res.Cache["th-001"].Name)
}

func TestEnrichCeiling(t *testing.T) {
	src := newCountingSource()
	var last Progress
	var mu sync.Mutex
	f := NewFetcher[entity](src, Options{
		Ceiling: 50,
		OnProgress: func(p Progress) {
			mu.Lock()
			if p.Processed > last.Processed {
				last = p
			}
			mu.Unlock()
		},
	})

	ids := makeIDs(60)
	res, err := f.Enrich(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, 50, res.ProcessedCount)
	assert.Equal(t, 60, res.Requested)
	assert.Equal(t, 0, res.ErrorCount)
	assert.Equal(t, 50, src.callCount())
	for _, id := range ids[50:] {
		assert.NotContains(t, res.Cache, id)
		assert.NotContains(t, res.Errors, id)
	}

	mu.Lock()
	assert.Equal(t, 50, last.Processed)
	assert.Equal(t, 50, last.Total)
	assert.Equal(t, "loading 50/50", last.String())
	mu.Unlock()

	p := f.Progress()
	assert.True(t, p.Done)
	assert.Equal(t, 50, p.Processed)
}

func TestEnrichReportsDoneThroughOnProgress(t *testing.T) {
	src := newCountingSource("th-004")
	var mu sync.Mutex
	var reports []Progress
	f := NewFetcher[entity](src, Options{
		Workers: 2,
		OnProgress: func(p Progress) {
			mu.Lock()
			reports = append(reports, p)
			mu.Unlock()
		},
	})

	ids := makeIDs(5)
	res, err := f.Enrich(context.Background(), ids)
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, reports, 6, "one per fetch plus the final report")
	last := reports[len(reports)-1]
	for _, p := range reports[:len(reports)-1] {
		assert.False(t, p.Done)
	}
	mu.Unlock()
	assert.True(t, last.Done)
	assert.Equal(t, res.Generation, last.Generation)
	assert.Equal(t, 5, last.Processed)
	assert.Equal(t, 4, last.Succeeded)
	assert.Equal(t, 1, last.Failed)

	// A memo hit completes at once and says so.
	_, err = f.Enrich(context.Background(), ids)
	require.NoError(t, err)
	mu.Lock()
	require.Len(t, reports, 7)
	hit := reports[6]
	mu.Unlock()
	assert.True(t, hit.Done)
	assert.Equal(t, 5, hit.Total)
	assert.Equal(t, 1, hit.Failed)
	assert.GreaterOrEqual(t, hit.Generation, last.Generation)
	assert.True(t, f.Progress().Done)
}

func TestEnrichBoundsConcurrency(t *testing.T) {
	src := newCountingSource()
	src.delay = 10 * time.Millisecond
	f := NewFetcher[entity](src, Options{Workers: 3})

	_, err := f.Enrich(context.Background(), makeIDs(20))
	require.NoError(t, err)
	assert.LessOrEqual(t, src.peak.Load(), int32(3))
	assert.Greater(t, src.peak.Load(), int32(0))
}

func TestEnrichMemoizesIdenticalIDSet(t *testing.T) {
	src := newCountingSource("th-003")
	f := NewFetcher[entity](src, Options{})

	first, err := f.Enrich(context.Background(), []string{"th-001", "th-002", "th-003"})
	require.NoError(t, err)
	assert.False(t, first.Memoized)
	assert.Equal(t, 3, src.callCount())

	// Same set, different order and a duplicate.
	second, err := f.Enrich(context.Background(), []string{"th-003", "th-001", "th-002", "th-001"})
	require.NoError(t, err)
	assert.True(t, second.Memoized)
	assert.Equal(t, 3, src.callCount())
	assert.Equal(t, first.Generation, second.Generation)
	assert.Equal(t, first.Cache, second.Cache)

	// Mutating a returned cache must not leak into the memo.
	delete(second.Cache, "th-001")
	cur, ok := f.Current()
	require.True(t, ok)
	assert.Contains(t, cur.Cache, "th-001")

	_, err = f.Enrich(context.Background(), []string{"th-001"})
	require.NoError(t, err)
	assert.Equal(t, 4, src.callCount())

	f.Reset()
	_, ok = f.Current()
	assert.False(t, ok)
}

func TestEnrichCancelOnSupersede(t *testing.T) {
	started := make(chan struct{}, 1)
	slow := SourceFunc[entity](func(ctx context.Context, id string) (entity, error) {
		if id == "old-1" {
			select {
			case started <- struct{}{}:
			default:
			}
			<-ctx.Done()
			return entity{}, ctx.Err()
		}
		return entity{ID: id}, nil
	})
	f := NewFetcher[entity](slow, Options{Workers: 1})

	type outcome struct {
		res Result[entity]
		err error
	}
	oldDone := make(chan outcome, 1)
	go func() {
		res, err := f.Enrich(context.Background(), []string{"old-1", "old-2"})
		oldDone <- outcome{res, err}
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never started")
	}

	newRes, err := f.Enrich(context.Background(), []string{"new-1", "new-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, newRes.SuccessCount)

	var old outcome
	select {
	case old = <-oldDone:
	case <-time.After(2 * time.Second):
		t.Fatal("superseded run did not return")
	}
	assert.ErrorIs(t, old.err, ErrSuperseded)
	assert.Less(t, old.res.Generation, newRes.Generation)

	cur, ok := f.Current()
	require.True(t, ok)
	assert.Equal(t, newRes.Generation, cur.Generation)
	assert.NotContains(t, cur.Cache, "old-2")
	assert.NotContains(t, cur.Cache, "old-1")
	assert.Contains(t, cur.Cache, "new-1")
}

func TestEnrichTimeoutCountsAsError(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	// Ignores ctx on purpose.
	stubborn := SourceFunc[entity](func(ctx context.Context, id string) (entity, error) {
		if id == "hang" {
			<-release
		}
		return entity{ID: id}, nil
	})
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	f := NewFetcher[entity](stubborn, Options{Timeout: 50 * time.Millisecond, Metrics: m})

	done := make(chan struct{})
	var res Result[entity]
	go func() {
		defer close(done)
		res, err = f.Enrich(context.Background(), []string{"a", "hang", "b"})
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("enrichment hung on a stalled fetch")
	}

	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.ErrorCount)
	assert.ErrorIs(t, res.Errors["hang"], ErrFetchTimeout)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetches.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("timeout")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight))
}

func TestEnrichCallerCancellation(t *testing.T) {
	src := newCountingSource()
	src.delay = time.Second
	f := NewFetcher[entity](src, Options{Workers: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res, err := f.Enrich(ctx, makeIDs(6))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 6, res.ProcessedCount)
	assert.Zero(t, res.SuccessCount)

	_, ok := f.Current()
	assert.False(t, ok, "cancelled runs are not committed")
}

func TestBatchDedupesAndCaps(t *testing.T) {
	f := NewFetcher[entity](newCountingSource(), Options{Ceiling: 3})
	assert.Equal(t, []string{"a", "b", "c"}, f.Batch([]string{"a", " ", "b", "a", "c", "d"}))
	assert.Empty(t, f.Batch(nil))
}

func TestEnrichEmptyInput(t *testing.T) {
	f := NewFetcher[entity](newCountingSource(), Options{})
	res, err := f.Enrich(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.ProcessedCount)
	assert.Empty(t, res.Cache)
}
