package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Manager is a connection registry keyed by server id. Connections are
// dialed lazily on first use and cached for the life of the manager.
type Manager struct {
	mu      sync.Mutex
	servers map[string]string // id -> redis url
	stores  map[string]Store
}

// NewManager creates a manager for the given id-to-URL mapping.
func NewManager(servers map[string]string) *Manager {
	copied := make(map[string]string, len(servers))
	for id, url := range servers {
		copied[id] = url
	}
	return &Manager{
		servers: copied,
		stores:  make(map[string]Store),
	}
}

// Register adds or replaces a server entry. An existing cached connection
// for the id is closed.
func (m *Manager) Register(id, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[id] = url
	if cached, ok := m.stores[id]; ok {
		_ = cached.Close()
		delete(m.stores, id)
	}
}

// Get returns the store for a server id, dialing it if needed. The initial
// connection is retried with exponential backoff before giving up.
func (m *Manager) Get(ctx context.Context, id string) (Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.stores[id]; ok {
		return cached, nil
	}

	url, ok := m.servers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrServerNotConfigured, id)
	}

	var connected *RedisStore
	dial := func() error {
		s, err := NewRedisStore(ctx, url)
		if err != nil {
			log.Warn().Err(err).Str("server_id", id).Msg("store dial failed, retrying")
			return err
		}
		connected = s
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second
	if err := backoff.Retry(dial, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("failed to connect to server %q: %w", id, err)
	}

	log.Info().Str("server_id", id).Msg("store connected")
	m.stores[id] = connected
	return connected, nil
}

// Close closes every cached connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for id, s := range m.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.stores, id)
	}
	return firstErr
}
