package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/utafrali/storefront/internal/credstore"
)

// StoreFactory creates the credential store backing one browser session.
type StoreFactory func(sessionID string) credstore.Store

// Registry hands out one Manager per browser session ID, restoring persisted
// credentials the first time a session is seen after startup.
type Registry struct {
	api      Authenticator
	newStore StoreFactory
	logger   *slog.Logger

	mu       sync.Mutex
	managers map[string]*Manager
}

// NewRegistry creates a Registry.
func NewRegistry(api Authenticator, newStore StoreFactory, l *slog.Logger) *Registry {
	return &Registry{
		api:      api,
		newStore: newStore,
		logger:   l,
		managers: make(map[string]*Manager),
	}
}

// Manager returns the Manager for the given session ID, creating and
// restoring it on first sight. Concurrent requests for the same session
// receive the same instance.
func (r *Registry) Manager(ctx context.Context, sessionID string) (*Manager, error) {
	r.mu.Lock()
	m, ok := r.managers[sessionID]
	r.mu.Unlock()
	if ok {
		return m, nil
	}

	m = NewManager(r.api, r.newStore(sessionID), r.logger)
	if err := m.Restore(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another request may have restored the same session concurrently;
	// the first insert wins so both callers share one Manager.
	if existing, ok := r.managers[sessionID]; ok {
		return existing, nil
	}
	r.managers[sessionID] = m
	return m, nil
}

// Evict forgets the in-memory Manager for a session. Persisted credentials
// are untouched; the next Manager call restores them.
func (r *Registry) Evict(sessionID string) {
	r.mu.Lock()
	delete(r.managers, sessionID)
	r.mu.Unlock()
}

// Len reports how many sessions are resident. Used by the readiness probe
// and the session gauge.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}
