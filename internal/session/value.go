package session

import (
	"slices"

	"zedis/internal/store"
)

// ValueStatus tracks the lifecycle of the cached value. It must return to
// StatusIdle once an operation's lifecycle completes, whatever the outcome;
// a stuck loading indicator is a defect.
type ValueStatus int

const (
	StatusIdle ValueStatus = iota
	StatusLoading
	StatusUpdating
)

func (s ValueStatus) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusUpdating:
		return "updating"
	default:
		return "idle"
	}
}

// Value is the cached payload of the currently selected key. Data is a
// tagged variant by key type.
type Value struct {
	Type   store.KeyType `json:"type"`
	Status ValueStatus   `json:"status"`
	Data   ValueData     `json:"data,omitempty"`
}

// ValueData is implemented by one payload type per key type.
type ValueData interface {
	valueData()
}

// StringData holds a plain string payload.
type StringData struct {
	Value string `json:"value"`
}

// ListData holds a list prefix plus the declared total length.
type ListData struct {
	Items []string `json:"items"`
	Len   int64    `json:"len"`
}

// SetData holds set members plus the declared cardinality.
type SetData struct {
	Members []string `json:"members"`
	Len     int64    `json:"len"`
}

// ZSetData holds scored members plus the declared cardinality.
type ZSetData struct {
	Members []store.ScoredMember `json:"members"`
	Len     int64                `json:"len"`
}

// HashData wraps the paged hash payload. The pointer is shared with reader
// snapshots; mutation goes through Session.mutableHash.
type HashData struct {
	Hash *HashValue `json:"hash"`
}

func (StringData) valueData() {}
func (ListData) valueData()   {}
func (SetData) valueData()    {}
func (ZSetData) valueData()   {}
func (HashData) valueData()   {}

// HashValue is the pagination sub-state of a hash payload. Size is the
// declared field count reported by the store, which may exceed len(Fields)
// until every page has been fetched.
type HashValue struct {
	Cursor  uint64        `json:"cursor"`
	Size    int64         `json:"size"`
	Fields  []store.Field `json:"fields"`
	Done    bool          `json:"done"`
	Keyword string        `json:"keyword,omitempty"`
}

func (h *HashValue) clone() *HashValue {
	copied := *h
	copied.Fields = slices.Clone(h.Fields)
	return &copied
}

// hashData returns the hash payload for reading, nil when the active value
// is not a hash.
func (s *Session) hashData() *HashValue {
	if s.value == nil {
		return nil
	}
	hd, ok := s.value.Data.(HashData)
	if !ok {
		return nil
	}
	return hd.Hash
}

// mutableHash returns the hash payload for in-place mutation. When a reader
// still holds the current snapshot the payload is cloned first, so
// concurrently held snapshots never observe a torn intermediate state.
// Callers hold s.mu.
func (s *Session) mutableHash() *HashValue {
	hash := s.hashData()
	if hash == nil {
		return nil
	}
	if s.valueShared {
		hash = hash.clone()
		s.value.Data = HashData{Hash: hash}
		s.valueShared = false
	}
	return hash
}
