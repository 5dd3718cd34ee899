package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is a map-backed Store implementation for development and
// tests. Scans page over a sorted snapshot of the matching keys with the
// same cursor contract as the remote store: a returned cursor of 0 means
// the scan is complete.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	closed  bool
}

type memoryEntry struct {
	typ  KeyType
	str  string
	list []string
	set  map[string]struct{}
	zset map[string]float64
	hash map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

// SetString seeds a string key.
func (s *MemoryStore) SetString(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &memoryEntry{typ: TypeString, str: value}
}

// SetList seeds a list key.
func (s *MemoryStore) SetList(key string, items ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &memoryEntry{typ: TypeList, list: append([]string{}, items...)}
}

// SetSet seeds a set key.
func (s *MemoryStore) SetSet(key string, members ...string) {
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &memoryEntry{typ: TypeSet, set: set}
}

// SetSortedSet seeds a sorted-set key from member to score.
func (s *MemoryStore) SetSortedSet(key string, members map[string]float64) {
	zset := make(map[string]float64, len(members))
	for m, score := range members {
		zset[m] = score
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &memoryEntry{typ: TypeZSet, zset: zset}
}

// SetHash seeds a hash key from field to value.
func (s *MemoryStore) SetHash(key string, fields map[string]string) {
	hash := make(map[string]string, len(fields))
	for f, v := range fields {
		hash[f] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &memoryEntry{typ: TypeHash, hash: hash}
}

func (s *MemoryStore) get(key string, typ KeyType) (*memoryEntry, error) {
	if s.closed {
		return nil, ErrClosed
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if entry.typ != typ {
		return nil, fmt.Errorf("%w: key %q holds %s", ErrProtocol, key, entry.typ)
	}
	return entry, nil
}

func (s *MemoryStore) Scan(_ context.Context, cursor uint64, match string, count int64) (ScanPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ScanPage{}, ErrClosed
	}

	matching := make([]string, 0, len(s.entries))
	for key := range s.entries {
		if globMatch(match, key) {
			matching = append(matching, key)
		}
	}
	sort.Strings(matching)

	keys, next := pageOf(matching, cursor, count)
	return ScanPage{Cursor: next, Keys: keys}, nil
}

// pageOf slices one page out of a sorted result set. The cursor is the
// offset of the next unread element; 0 on output means done.
func pageOf[T any](all []T, cursor uint64, count int64) ([]T, uint64) {
	if count <= 0 {
		count = 10
	}
	start := int(cursor)
	if start > len(all) {
		start = len(all)
	}
	end := start + int(count)
	if end > len(all) {
		end = len(all)
	}

	page := append([]T{}, all[start:end]...)
	if end < len(all) {
		return page, uint64(end)
	}
	return page, 0
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	_, ok := s.entries[key]
	return ok, nil
}

func (s *MemoryStore) Type(_ context.Context, key string) (KeyType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return TypeUnknown, ErrClosed
	}
	entry, ok := s.entries[key]
	if !ok {
		return TypeNone, nil
	}
	return entry.typ, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, err := s.get(key, TypeString)
	if err != nil {
		return "", err
	}
	if entry == nil {
		return "", fmt.Errorf("get %q: %w", key, ErrNotFound)
	}
	return entry.str, nil
}

func (s *MemoryStore) ListRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, err := s.get(key, TypeList)
	if err != nil || entry == nil {
		return nil, err
	}

	n := int64(len(entry.list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		return nil, nil
	}
	return append([]string{}, entry.list[start:stop+1]...), nil
}

func (s *MemoryStore) ListLen(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, err := s.get(key, TypeList)
	if err != nil || entry == nil {
		return 0, err
	}
	return int64(len(entry.list)), nil
}

func (s *MemoryStore) SetMembers(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, err := s.get(key, TypeSet)
	if err != nil || entry == nil {
		return nil, err
	}

	members := make([]string, 0, len(entry.set))
	for m := range entry.set {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (s *MemoryStore) SetLen(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, err := s.get(key, TypeSet)
	if err != nil || entry == nil {
		return 0, err
	}
	return int64(len(entry.set)), nil
}

func (s *MemoryStore) SortedSetRange(_ context.Context, key string, start, stop int64) ([]ScoredMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, err := s.get(key, TypeZSet)
	if err != nil || entry == nil {
		return nil, err
	}

	members := make([]ScoredMember, 0, len(entry.zset))
	for m, score := range entry.zset {
		members = append(members, ScoredMember{Member: m, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score < members[j].Score
		}
		return members[i].Member < members[j].Member
	})

	n := int64(len(members))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		return nil, nil
	}
	return members[start : stop+1], nil
}

func (s *MemoryStore) SortedSetLen(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, err := s.get(key, TypeZSet)
	if err != nil || entry == nil {
		return 0, err
	}
	return int64(len(entry.zset)), nil
}

func (s *MemoryStore) HashLen(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, err := s.get(key, TypeHash)
	if err != nil || entry == nil {
		return 0, err
	}
	return int64(len(entry.hash)), nil
}

func (s *MemoryStore) HashScan(_ context.Context, key string, cursor uint64, match string, count int64) (FieldPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, err := s.get(key, TypeHash)
	if err != nil {
		return FieldPage{}, err
	}
	if entry == nil {
		return FieldPage{}, nil
	}

	names := make([]string, 0, len(entry.hash))
	for name := range entry.hash {
		if globMatch(match, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	pageNames, next := pageOf(names, cursor, count)
	fields := make([]Field, 0, len(pageNames))
	for _, name := range pageNames {
		fields = append(fields, Field{Name: name, Value: entry.hash[name]})
	}
	return FieldPage{Cursor: next, Fields: fields}, nil
}

func (s *MemoryStore) HashSet(_ context.Context, key, field, value string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	entry, ok := s.entries[key]
	if !ok {
		entry = &memoryEntry{typ: TypeHash, hash: make(map[string]string)}
		s.entries[key] = entry
	}
	if entry.typ != TypeHash {
		return 0, fmt.Errorf("%w: key %q holds %s", ErrProtocol, key, entry.typ)
	}

	_, existed := entry.hash[field]
	entry.hash[field] = value
	if existed {
		return 0, nil
	}
	return 1, nil
}

func (s *MemoryStore) HashDelete(_ context.Context, key string, fields ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	entry, ok := s.entries[key]
	if !ok {
		return 0, nil
	}
	if entry.typ != TypeHash {
		return 0, fmt.Errorf("%w: key %q holds %s", ErrProtocol, key, entry.typ)
	}

	var removed int64
	for _, field := range fields {
		if _, existed := entry.hash[field]; existed {
			delete(entry.hash, field)
			removed++
		}
	}
	if len(entry.hash) == 0 {
		delete(s.entries, key)
	}
	return removed, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// globMatch implements the store's glob subset: '*' matches any run of
// characters, '?' a single character, everything else is literal. The
// engine only ever issues "*", "*kw*" and "prefix:*" patterns.
func globMatch(pattern, s string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	p, n := 0, 0
	starP, starN := -1, 0
	for n < len(s) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == s[n]):
			p++
			n++
		case p < len(pattern) && pattern[p] == '*':
			starP, starN = p, n
			p++
		case starP >= 0:
			starN++
			p, n = starP+1, starN
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
