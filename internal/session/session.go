// Package session implements the key-space session engine: it turns the
// flat key set of one remote store connection into a navigable tree, drives
// cursor-based incremental scans under multiple query modes, coordinates
// background store operations with single-flight staleness guards, and
// maintains a copy-on-write cache of the currently selected value.
package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"zedis/internal/keytree"
	"zedis/internal/store"
)

// Options tunes session behavior. Zero values fall back to defaults.
type Options struct {
	// ScanCount is the batch size passed to key scans.
	ScanCount int64
	// HashPageSize is the batch size for hash field pages.
	HashPageSize int64
	// HashFilterPageSize is the batch size while a field filter is active.
	HashFilterPageSize int64
	// ValuePreviewLen bounds list and sorted-set items on first load.
	ValuePreviewLen int64
	// EventBuffer is the per-subscriber event channel capacity.
	EventBuffer int
}

func (o Options) withDefaults() Options {
	if o.ScanCount <= 0 {
		o.ScanCount = 100
	}
	if o.HashPageSize <= 0 {
		o.HashPageSize = 100
	}
	if o.HashFilterPageSize <= 0 {
		o.HashFilterPageSize = 1000
	}
	if o.ValuePreviewLen <= 0 {
		o.ValuePreviewLen = 100
	}
	return o
}

// Session is the per-connection engine state. Commands and apply callbacks
// serialize on one mutex; background work supplied to submit runs off the
// lock and performs all network I/O.
type Session struct {
	serverID string
	store    store.Store
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu sync.Mutex

	// key scan state
	mode     QueryMode
	keyword  string
	cursor   uint64
	done     bool
	scanning bool
	keys     []string
	keySet   map[string]struct{}
	keyTypes map[string]store.KeyType
	treeID   string
	tree     []keytree.TreeItem

	// selected value
	key         string
	value       *Value
	valueShared bool

	epochs [taskKindCount]uint64
	events *bus
}

// New creates a session over an established store connection. The session
// owns no scan state until the first Refresh, SetQueryMode or Filter call.
func New(ctx context.Context, serverID string, st store.Store, opts Options) *Session {
	ctx, cancel := context.WithCancel(ctx)
	opts = opts.withDefaults()

	log.Info().Str("server_id", serverID).Msg("session created")
	return &Session{
		serverID: serverID,
		store:    st,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		keySet:   make(map[string]struct{}),
		keyTypes: make(map[string]store.KeyType),
		events:   newBus(opts.EventBuffer),
	}
}

// Subscribe returns a channel of session events. The channel is closed when
// the session closes; a subscriber that falls behind misses events rather
// than blocking the engine.
func (s *Session) Subscribe() <-chan Event {
	return s.events.subscribe()
}

// Close cancels in-flight background work, waits for it to settle and
// closes the event bus.
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
	s.events.close()
	log.Info().Str("server_id", s.serverID).Msg("session closed")
}

// SelectKey makes key the active one and loads its value in the background.
// Selecting the already active key is a no-op; selecting "" deselects and
// discards the cached value.
func (s *Session) SelectKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key == key {
		return
	}
	if key == "" {
		s.deselectLocked()
		return
	}

	s.key = key
	s.value = &Value{Status: StatusLoading}
	s.valueShared = false

	work := s.loadValueWork(key)
	submit(s, taskLoadValue, work, func(res loadResult, err error) {
		if s.value != nil {
			s.value.Status = StatusIdle
		}
		if err != nil {
			s.notifyError("failed to load value", err)
			return
		}
		s.value = &Value{Type: res.typ, Status: StatusIdle, Data: res.data}
		s.valueShared = false
		s.keyTypes[key] = res.typ
		s.events.publish(Event{Kind: EventValueUpdated, Key: key})
	})
}

func (s *Session) deselectLocked() {
	s.key = ""
	s.value = nil
	s.valueShared = false
	// Invalidate any in-flight value work for the old key.
	s.epochs[taskLoadValue]++
}

type loadResult struct {
	typ  store.KeyType
	data ValueData
}

// loadValueWork fetches the first page of a key's value, dispatching on the
// remote type.
func (s *Session) loadValueWork(key string) func(context.Context) (loadResult, error) {
	st := s.store
	hashPage := s.opts.HashPageSize
	preview := s.opts.ValuePreviewLen

	return func(ctx context.Context) (loadResult, error) {
		typ, err := st.Type(ctx, key)
		if err != nil {
			return loadResult{}, err
		}

		switch typ {
		case store.TypeString:
			value, err := st.Get(ctx, key)
			if err != nil {
				return loadResult{}, err
			}
			return loadResult{typ: typ, data: StringData{Value: value}}, nil

		case store.TypeList:
			n, err := st.ListLen(ctx, key)
			if err != nil {
				return loadResult{}, err
			}
			items, err := st.ListRange(ctx, key, 0, preview-1)
			if err != nil {
				return loadResult{}, err
			}
			return loadResult{typ: typ, data: ListData{Items: items, Len: n}}, nil

		case store.TypeSet:
			n, err := st.SetLen(ctx, key)
			if err != nil {
				return loadResult{}, err
			}
			members, err := st.SetMembers(ctx, key)
			if err != nil {
				return loadResult{}, err
			}
			return loadResult{typ: typ, data: SetData{Members: members, Len: n}}, nil

		case store.TypeZSet:
			n, err := st.SortedSetLen(ctx, key)
			if err != nil {
				return loadResult{}, err
			}
			members, err := st.SortedSetRange(ctx, key, 0, preview-1)
			if err != nil {
				return loadResult{}, err
			}
			return loadResult{typ: typ, data: ZSetData{Members: members, Len: n}}, nil

		case store.TypeHash:
			size, err := st.HashLen(ctx, key)
			if err != nil {
				return loadResult{}, err
			}
			page, err := st.HashScan(ctx, key, 0, "*", hashPage)
			if err != nil {
				return loadResult{}, err
			}
			return loadResult{typ: typ, data: HashData{Hash: &HashValue{
				Cursor: page.Cursor,
				Size:   size,
				Fields: page.Fields,
				Done:   page.Cursor == 0,
			}}}, nil

		default:
			// TypeNone (expired/missing) and types without a detail view.
			return loadResult{typ: typ}, nil
		}
	}
}

// DeleteKey removes a key from the store and, on success, from the
// accumulated key set and tree. Deletes target distinct keys and their
// applies are idempotent, so they bypass the single-flight epochs: a later
// delete must not supersede an earlier one's prune.
func (s *Session) DeleteKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == "" {
		return
	}

	st := s.store
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		err := st.Delete(s.ctx, key)

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.notifyError("failed to delete key", err)
			return
		}
		if _, ok := s.keySet[key]; ok {
			delete(s.keySet, key)
			keys := s.keys[:0]
			for _, k := range s.keys {
				if k != key {
					keys = append(keys, k)
				}
			}
			s.keys = keys
			s.tree = keytree.Build(s.keys)
		}
		delete(s.keyTypes, key)
		if s.key == key {
			s.deselectLocked()
		}
		s.notifySuccess("key deleted", key)
		s.events.publish(Event{Kind: EventKeysLoaded})
	}()
}

// --- read accessors ---

// ServerID returns the id of the connection this session drives.
func (s *Session) ServerID() string {
	return s.serverID
}

// Key returns the currently selected key, "" when none.
func (s *Session) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// KeyType returns the remembered type of a scanned key.
func (s *Session) KeyType(key string) store.KeyType {
	s.mu.Lock()
	defer s.mu.Unlock()
	if typ, ok := s.keyTypes[key]; ok {
		return typ
	}
	return store.TypeUnknown
}

// QueryMode returns the active query mode.
func (s *Session) QueryMode() QueryMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Keyword returns the active filter keyword.
func (s *Session) Keyword() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyword
}

// Scanning reports whether a key scan is in flight.
func (s *Session) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// Done reports whether the current scan session has been exhausted.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// TreeID returns the generation token of the current scan session.
// Observers compare it across KeysLoaded events: a changed id means the key
// set was rebuilt from scratch, an unchanged id means results were merged
// incrementally.
func (s *Session) TreeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.treeID
}

// Tree returns the current trie snapshot. The snapshot is immutable: it is
// replaced, never mutated, when the key set changes.
func (s *Session) Tree() []keytree.TreeItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// KeyCount returns the number of accumulated keys.
func (s *Session) KeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Value returns a snapshot of the cached value of the selected key, nil when
// none is selected. The snapshot's payload is shared: the engine clones
// before any subsequent in-place mutation, so the returned data never
// changes under the caller.
func (s *Session) Value() *Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		return nil
	}
	snapshot := *s.value
	s.valueShared = true
	return &snapshot
}

// ValueStatus returns the lifecycle status of the cached value.
func (s *Session) ValueStatus() ValueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		return StatusIdle
	}
	return s.value.Status
}
