package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zedis/internal/store"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestSession(t *testing.T, st store.Store, opts Options) *Session {
	t.Helper()
	s := New(context.Background(), "test-server", st, opts)
	t.Cleanup(s.Close)
	return s
}

func seededMemoryStore() *store.MemoryStore {
	st := store.NewMemoryStore()
	st.SetString("count", "42")
	st.SetString("user:1:name", "alice")
	st.SetString("user:1:age", "30")
	st.SetString("user:2:name", "bob")
	return st
}

func waitScanSettled(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool { return !s.Scanning() }, waitFor, tick)
}

func waitValueIdle(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool { return s.ValueStatus() == StatusIdle }, waitFor, tick)
}

func waitEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", kind)
			}
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func drainEvents(ch <-chan Event) []Event {
	var drained []Event
	for {
		select {
		case e := <-ch:
			drained = append(drained, e)
		default:
			return drained
		}
	}
}

func TestRefreshBuildsTree(t *testing.T) {
	s := newTestSession(t, seededMemoryStore(), Options{})
	events := s.Subscribe()

	require.Empty(t, s.TreeID())
	s.Refresh()
	waitEvent(t, events, EventKeysLoaded)

	assert.NotEmpty(t, s.TreeID())
	assert.Equal(t, 4, s.KeyCount())
	assert.True(t, s.Done())
	assert.False(t, s.Scanning())

	tree := s.Tree()
	require.Len(t, tree, 2)
	assert.Equal(t, "user", tree[0].ID)
	assert.Equal(t, "count", tree[1].ID)
	assert.Equal(t, store.TypeString, s.KeyType("count"))
}

func TestModeChangeStartsNewGeneration(t *testing.T) {
	s := newTestSession(t, seededMemoryStore(), Options{})

	s.Refresh()
	waitScanSettled(t, s)
	first := s.TreeID()
	require.NotEmpty(t, first)
	require.Equal(t, 4, s.KeyCount())

	s.Filter("user:")
	waitScanSettled(t, s)
	second := s.TreeID()
	assert.NotEqual(t, first, second, "keyword change must issue a new generation")
	assert.Equal(t, 3, s.KeyCount(), "accumulated keys reset to the filtered set")

	s.SetQueryMode(QueryModePrefix)
	waitScanSettled(t, s)
	assert.NotEqual(t, second, s.TreeID(), "mode change must issue a new generation")
	assert.Equal(t, QueryModePrefix, s.QueryMode())
	assert.Equal(t, 3, s.KeyCount())
}

func TestSetSameQueryModeIsNoop(t *testing.T) {
	s := newTestSession(t, seededMemoryStore(), Options{})
	s.Refresh()
	waitScanSettled(t, s)

	gen := s.TreeID()
	s.SetQueryMode(QueryModeAll)
	assert.Equal(t, gen, s.TreeID())
}

func TestLoadMoreKeysPaginates(t *testing.T) {
	st := store.NewMemoryStore()
	for i := 0; i < 25; i++ {
		st.SetString(fmt.Sprintf("item:%02d", i), "v")
	}
	s := newTestSession(t, st, Options{ScanCount: 10})

	s.Refresh()
	waitScanSettled(t, s)
	assert.Equal(t, 10, s.KeyCount())
	assert.False(t, s.Done())
	gen := s.TreeID()

	s.LoadMoreKeys()
	waitScanSettled(t, s)
	assert.Equal(t, 20, s.KeyCount())
	assert.False(t, s.Done())

	s.LoadMoreKeys()
	waitScanSettled(t, s)
	assert.Equal(t, 25, s.KeyCount())
	assert.True(t, s.Done())
	assert.Equal(t, gen, s.TreeID(), "pagination continues the same generation")

	// Exhausted: further calls are no-ops.
	s.LoadMoreKeys()
	waitScanSettled(t, s)
	assert.Equal(t, 25, s.KeyCount())
}

func TestScanPrefixMergesWithoutGenerationBump(t *testing.T) {
	st := seededMemoryStore()
	st.SetString("session:a", "1")
	st.SetString("session:b", "2")
	s := newTestSession(t, st, Options{})

	s.Filter("user:")
	waitScanSettled(t, s)
	require.Equal(t, 3, s.KeyCount())
	gen := s.TreeID()

	s.ScanPrefix("session")
	waitScanSettled(t, s)

	assert.Equal(t, gen, s.TreeID(), "folder expansion must not bump the generation")
	assert.Equal(t, 5, s.KeyCount())

	tree := s.Tree()
	var roots []string
	for _, item := range tree {
		roots = append(roots, item.ID)
	}
	assert.Equal(t, []string{"session", "user"}, roots)
}

func TestScanPrefixToleratesOverlap(t *testing.T) {
	s := newTestSession(t, seededMemoryStore(), Options{})

	s.Refresh()
	waitScanSettled(t, s)
	require.Equal(t, 4, s.KeyCount())

	// All user keys are already accumulated; expanding the folder again
	// must not duplicate them.
	s.ScanPrefix("user")
	waitScanSettled(t, s)
	assert.Equal(t, 4, s.KeyCount())
}

func TestExactModeLookup(t *testing.T) {
	s := newTestSession(t, seededMemoryStore(), Options{})
	events := s.Subscribe()

	s.SetQueryMode(QueryModeExact)
	waitScanSettled(t, s)
	drainEvents(events)

	s.Filter("count")
	waitEvent(t, events, EventValueUpdated)

	assert.Equal(t, 1, s.KeyCount())
	assert.Equal(t, "count", s.Key())
	value := s.Value()
	require.NotNil(t, value)
	assert.Equal(t, store.TypeString, value.Type)
	assert.Equal(t, StringData{Value: "42"}, value.Data)
}

func TestExactModeMissingKey(t *testing.T) {
	s := newTestSession(t, seededMemoryStore(), Options{})
	events := s.Subscribe()

	s.SetQueryMode(QueryModeExact)
	waitScanSettled(t, s)
	drainEvents(events)

	s.Filter("no-such-key")
	waitEvent(t, events, EventKeysLoaded)

	assert.Zero(t, s.KeyCount())
	assert.Empty(t, s.Key())
	assert.Nil(t, s.Value())
	assert.True(t, s.Done())
}

func TestFilterIgnoredWhileScanning(t *testing.T) {
	gate := make(chan struct{})
	st := &gatedScanStore{MemoryStore: seededMemoryStore(), gate: gate}
	s := newTestSession(t, st, Options{})

	s.Refresh()
	require.True(t, s.Scanning())
	gen := s.TreeID()

	s.Filter("user:")
	assert.Equal(t, gen, s.TreeID(), "filter must be ignored mid-scan")
	assert.Empty(t, s.Keyword())

	close(gate)
	waitScanSettled(t, s)
	assert.Equal(t, 4, s.KeyCount())
}

// gatedScanStore delays Scan until the gate is closed.
type gatedScanStore struct {
	*store.MemoryStore
	gate chan struct{}
}

func (g *gatedScanStore) Scan(ctx context.Context, cursor uint64, match string, count int64) (store.ScanPage, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return store.ScanPage{}, ctx.Err()
	}
	return g.MemoryStore.Scan(ctx, cursor, match, count)
}

// patternGatedStore delays only scans for one match pattern, so a folder
// expansion can be held in flight while other scans complete freely.
type patternGatedStore struct {
	*store.MemoryStore
	pattern string
	gate    chan struct{}
}

func (g *patternGatedStore) Scan(ctx context.Context, cursor uint64, match string, count int64) (store.ScanPage, error) {
	if match == g.pattern {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return store.ScanPage{}, ctx.Err()
		}
	}
	return g.MemoryStore.Scan(ctx, cursor, match, count)
}

func TestStalePrefixExpansionDiscarded(t *testing.T) {
	mem := seededMemoryStore()
	mem.SetString("session:a", "1")
	mem.SetString("session:b", "2")
	gate := make(chan struct{})
	st := &patternGatedStore{MemoryStore: mem, pattern: "session:*", gate: gate}
	s := newTestSession(t, st, Options{})

	s.Filter("user:")
	waitScanSettled(t, s)
	require.Equal(t, 3, s.KeyCount())
	oldGen := s.TreeID()

	// Expansion in flight under the old generation, then a refresh
	// supersedes it before the expansion result arrives.
	s.ScanPrefix("session")
	s.Refresh()
	refreshGen := s.TreeID()
	require.NotEqual(t, oldGen, refreshGen)
	waitScanSettled(t, s)
	require.Equal(t, 3, s.KeyCount())

	close(gate)

	// The superseded merge must never reach the tree.
	require.Never(t, func() bool {
		for _, item := range s.Tree() {
			if item.ID == "session" {
				return true
			}
		}
		return false
	}, 100*tick, tick)

	assert.Equal(t, refreshGen, s.TreeID())
	assert.Equal(t, 3, s.KeyCount())
	assert.False(t, s.Scanning(), "a stale merge must not resurrect the scanning flag")
}
