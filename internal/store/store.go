// Package store is the remote key-value store access layer. The session
// engine only talks to the Store interface; RedisStore is the production
// implementation and MemoryStore a map-backed stand-in for development and
// tests.
package store

import "context"

// KeyType mirrors the store's TYPE reply for a key.
type KeyType string

const (
	TypeString  KeyType = "string"
	TypeList    KeyType = "list"
	TypeSet     KeyType = "set"
	TypeZSet    KeyType = "zset"
	TypeHash    KeyType = "hash"
	TypeStream  KeyType = "stream"
	TypeNone    KeyType = "none"
	TypeUnknown KeyType = "unknown"
)

// ParseKeyType converts a raw TYPE reply into a KeyType.
func ParseKeyType(raw string) KeyType {
	switch KeyType(raw) {
	case TypeString, TypeList, TypeSet, TypeZSet, TypeHash, TypeStream, TypeNone:
		return KeyType(raw)
	default:
		return TypeUnknown
	}
}

// Field is a single hash field with its value.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ScoredMember is a sorted-set member with its score.
type ScoredMember struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// ScanPage is one page of a cursor-based key scan. A returned Cursor of 0
// means the scan is complete; any other value must be passed back verbatim
// on the next call to continue.
type ScanPage struct {
	Cursor uint64
	Keys   []string
}

// FieldPage is one page of a cursor-based hash field scan, with the same
// cursor semantics as ScanPage.
type FieldPage struct {
	Cursor uint64
	Fields []Field
}

// Store enumerates the remote operations the session engine needs. All
// methods are safe for concurrent use.
type Store interface {
	// Scan returns one page of keys matching the glob pattern, starting at
	// the given cursor (0 to start fresh).
	Scan(ctx context.Context, cursor uint64, match string, count int64) (ScanPage, error)

	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Type returns the key's value type, TypeNone when the key is absent.
	Type(ctx context.Context, key string) (KeyType, error)

	// Get fetches a string value. Returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ListLen(ctx context.Context, key string) (int64, error)

	SetMembers(ctx context.Context, key string) ([]string, error)
	SetLen(ctx context.Context, key string) (int64, error)

	SortedSetRange(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)
	SortedSetLen(ctx context.Context, key string) (int64, error)

	// HashLen returns the declared field count of a hash key.
	HashLen(ctx context.Context, key string) (int64, error)

	// HashScan returns one page of hash fields matching the glob pattern,
	// with ScanPage cursor semantics.
	HashScan(ctx context.Context, key string, cursor uint64, match string, count int64) (FieldPage, error)

	// HashSet writes a field and returns the number of fields actually
	// created; overwriting an existing field reports 0.
	HashSet(ctx context.Context, key, field, value string) (int64, error)

	// HashDelete removes fields and returns the number actually removed;
	// deleting an absent field reports 0 and is not an error.
	HashDelete(ctx context.Context, key string, fields ...string) (int64, error)

	// Delete removes a key. Removing an absent key is not an error.
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
	Close() error
}
