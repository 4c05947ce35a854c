package credstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process credential store. Used as the default backend
// for single-instance deployments and throughout the tests.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Load(ctx context.Context) (*CredentialSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fromKeys(s.values), nil
}

func (s *MemoryStore) Save(ctx context.Context, creds CredentialSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[KeyAccessToken] = creds.AccessToken
	s.values[KeyIDToken] = creds.IDToken
	s.values[KeyRefreshToken] = creds.RefreshToken
	s.values[KeyTokenKind] = creds.Kind()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	return nil
}

func (s *MemoryStore) LoadPending(ctx context.Context) (*CredentialSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pendingFromKeys(s.values), nil
}

func (s *MemoryStore) SavePending(ctx context.Context, creds CredentialSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[KeyTempAccessToken] = creds.AccessToken
	s.values[KeyTempIDToken] = creds.IDToken
	if creds.RefreshToken != "" {
		s.values[KeyTempRefreshToken] = creds.RefreshToken
	}
	return nil
}

func (s *MemoryStore) ClearPending(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, KeyTempAccessToken)
	delete(s.values, KeyTempIDToken)
	delete(s.values, KeyTempRefreshToken)
	return nil
}
