package enrich

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLookaside struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memLookaside) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memLookaside) Set(_ context.Context, key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *memLookaside) Close() error { return nil }

func TestCachedSourceStoresOnlySuccesses(t *testing.T) {
	src := newCountingSource("bad")
	la := &memLookaside{data: make(map[string][]byte)}
	cs := NewCachedSource[entity](src, la, nil)
	ctx := context.Background()

	v, err := cs.Fetch(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "good", v.ID)

	_, err = cs.Fetch(ctx, "bad")
	require.Error(t, err)

	v, err = cs.Fetch(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "threat good", v.Name)
	assert.Equal(t, 2, src.callCount(), "second good fetch is served by the lookaside")

	_, cached := la.Get(ctx, "bad")
	assert.False(t, cached)
}

func TestCachedSourceIgnoresCorruptEntries(t *testing.T) {
	src := newCountingSource()
	la := &memLookaside{data: map[string][]byte{"x": []byte("{not json")}}
	cs := NewCachedSource[entity](src, la, nil)

	v, err := cs.Fetch(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "x", v.ID)
	assert.Equal(t, 1, src.callCount())
}

func TestNewLookasideFallsBackToNull(t *testing.T) {
	assert.IsType(t, NullLookaside{}, NewLookaside("", "", time.Minute, nil))
	assert.IsType(t, NullLookaside{}, NewLookaside("://bad-url", "", time.Minute, nil))

	var n NullLookaside
	_, ok := n.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.NoError(t, n.Close())
}

func TestFetcherOverCachedSource(t *testing.T) {
	src := newCountingSource()
	la := &memLookaside{data: make(map[string][]byte)}
	f := NewFetcher[entity](NewCachedSource[entity](src, la, nil), Options{})

	_, err := f.Enrich(context.Background(), makeIDs(5))
	require.NoError(t, err)

	// A fresh fetcher (remount) misses its memo but hits the shared lookaside.
	f2 := NewFetcher[entity](NewCachedSource[entity](src, la, nil), Options{})
	res, err := f2.Enrich(context.Background(), makeIDs(5))
	require.NoError(t, err)
	assert.Equal(t, 5, res.SuccessCount)
	assert.False(t, res.Memoized)
	assert.Equal(t, 5, src.callCount())
}
