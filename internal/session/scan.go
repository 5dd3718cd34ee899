package session

import (
	"context"

	"github.com/google/uuid"

	"zedis/internal/keytree"
	"zedis/internal/store"
)

// QueryMode selects how the key space is queried.
type QueryMode int

const (
	// QueryModeAll scans the whole key space, optionally filtered by a
	// contains-keyword pattern.
	QueryModeAll QueryMode = iota
	// QueryModePrefix scans only keys under the keyword prefix.
	QueryModePrefix
	// QueryModeExact looks up a single key without scanning.
	QueryModeExact
)

func (m QueryMode) String() string {
	switch m {
	case QueryModePrefix:
		return "prefix"
	case QueryModeExact:
		return "exact"
	default:
		return "all"
	}
}

// SetQueryMode switches the query mode and starts a new scan session.
func (s *Session) SetQueryMode(mode QueryMode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == mode {
		return
	}
	s.mode = mode
	s.startScanLocked()
}

// Filter applies a keyword and starts a new scan session. Ignored while a
// scan is already in flight.
func (s *Session) Filter(keyword string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanning {
		return
	}
	s.keyword = keyword
	s.startScanLocked()
}

// Refresh restarts the current scan session from scratch.
func (s *Session) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startScanLocked()
}

// LoadMoreKeys continues the current scan session from the stored cursor.
// No-op when exhausted, while another scan runs, or in exact mode.
func (s *Session) LoadMoreKeys() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanning || s.done || s.mode == QueryModeExact || s.treeID == "" {
		return
	}

	s.scanning = true
	gen := s.treeID
	work := s.scanWork(s.cursor, s.matchPatternLocked())
	submit(s, taskLoadMoreKeys, work, func(res scanResult, err error) {
		s.applyScanLocked(gen, res, err)
	})
}

// ScanPrefix expands a folder: it scans keys under the folder's namespace
// and merges them into the accumulated set without bumping the tree
// generation, since the rest of the tree stays valid.
func (s *Session) ScanPrefix(folder string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if folder == "" || s.treeID == "" {
		return
	}

	s.scanning = true
	gen := s.treeID
	work := s.scanWork(0, folder+keytree.Separator+"*")
	submit(s, taskScanPrefix, work, func(res scanResult, err error) {
		// A newer generation invalidates this merge outright; the branch it
		// targeted may no longer exist.
		if s.treeID != gen {
			return
		}
		s.scanning = false
		if err != nil {
			s.notifyError("failed to expand folder", err)
			return
		}
		s.mergeKeysLocked(res)
		s.events.publish(Event{Kind: EventKeysLoaded})
	})
}

// startScanLocked begins a new scan session: cursor reset, accumulated keys
// cleared, fresh generation id. Callers hold s.mu.
func (s *Session) startScanLocked() {
	s.cursor = 0
	s.done = false
	s.keys = nil
	s.keySet = make(map[string]struct{})
	s.tree = nil
	s.treeID = uuid.NewString()

	if s.mode == QueryModeExact {
		s.lookupExactLocked()
		return
	}

	s.scanning = true
	gen := s.treeID
	work := s.scanWork(0, s.matchPatternLocked())
	submit(s, taskScanKeys, work, func(res scanResult, err error) {
		s.applyScanLocked(gen, res, err)
	})
}

// matchPatternLocked builds the scan glob for the active mode and keyword.
func (s *Session) matchPatternLocked() string {
	if s.keyword == "" {
		return "*"
	}
	if s.mode == QueryModePrefix {
		return s.keyword + "*"
	}
	return "*" + s.keyword + "*"
}

type scanResult struct {
	cursor uint64
	keys   []string
	types  map[string]store.KeyType
}

// scanWork fetches one page of keys plus their types.
func (s *Session) scanWork(cursor uint64, match string) func(context.Context) (scanResult, error) {
	st := s.store
	count := s.opts.ScanCount

	return func(ctx context.Context) (scanResult, error) {
		page, err := st.Scan(ctx, cursor, match, count)
		if err != nil {
			return scanResult{}, err
		}

		types := make(map[string]store.KeyType, len(page.Keys))
		for _, key := range page.Keys {
			typ, err := st.Type(ctx, key)
			if err != nil {
				return scanResult{}, err
			}
			types[key] = typ
		}
		return scanResult{cursor: page.Cursor, keys: page.Keys, types: types}, nil
	}
}

// applyScanLocked applies a fresh-scan or load-more page. Results belonging
// to an older generation are dropped; the apply that superseded them owns
// the scanning flag. Callers hold s.mu.
func (s *Session) applyScanLocked(gen string, res scanResult, err error) {
	if s.treeID != gen {
		return
	}
	s.scanning = false
	if err != nil {
		s.notifyError("key scan failed", err)
		return
	}

	s.cursor = res.cursor
	if res.cursor == 0 {
		s.done = true
	}
	s.mergeKeysLocked(res)
	s.events.publish(Event{Kind: EventKeysLoaded})
}

// mergeKeysLocked folds a page into the accumulated key set and rebuilds the
// tree snapshot. Duplicates are tolerated, not expected: the scan contract
// guarantees non-duplication within one scan session, but prefix expansions
// overlap the outer scan. Callers hold s.mu.
func (s *Session) mergeKeysLocked(res scanResult) {
	for _, key := range res.keys {
		if _, ok := s.keySet[key]; ok {
			continue
		}
		s.keySet[key] = struct{}{}
		s.keys = append(s.keys, key)
	}
	for key, typ := range res.types {
		s.keyTypes[key] = typ
	}
	s.tree = keytree.Build(s.keys)
}

type exactResult struct {
	exists bool
	value  loadResult
}

// lookupExactLocked performs the exact-mode point lookup: a single existence
// check plus value fetch, no scanning. Callers hold s.mu.
func (s *Session) lookupExactLocked() {
	key := s.keyword
	if key == "" {
		s.events.publish(Event{Kind: EventKeysLoaded})
		return
	}

	s.scanning = true
	gen := s.treeID
	st := s.store
	load := s.loadValueWork(key)

	submit(s, taskScanKeys, func(ctx context.Context) (exactResult, error) {
		exists, err := st.Exists(ctx, key)
		if err != nil || !exists {
			return exactResult{}, err
		}
		value, err := load(ctx)
		if err != nil {
			return exactResult{}, err
		}
		return exactResult{exists: true, value: value}, nil
	}, func(res exactResult, err error) {
		if s.treeID != gen {
			return
		}
		s.scanning = false
		s.done = true
		if err != nil {
			s.notifyError("key lookup failed", err)
			return
		}
		if !res.exists {
			// Absent key: empty tree, observers render "not found".
			s.deselectLocked()
			s.events.publish(Event{Kind: EventKeysLoaded})
			return
		}

		s.mergeKeysLocked(scanResult{
			keys:  []string{key},
			types: map[string]store.KeyType{key: res.value.typ},
		})
		s.key = key
		s.value = &Value{Type: res.value.typ, Status: StatusIdle, Data: res.value.data}
		s.valueShared = false
		s.events.publish(Event{Kind: EventKeysLoaded})
		s.events.publish(Event{Kind: EventValueUpdated, Key: key})
	})
}
