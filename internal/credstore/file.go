package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// FileStore persists credentials as a JSON key-value document on disk,
// suitable for a single-user client runtime. Writes go to a temp file in the
// same directory followed by a rename, so a crashed write never leaves a
// partially-populated set behind.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed credential store at the given path.
// The parent directory is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFilePath returns the conventional credential file location under the
// user configuration directory.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "storefront", "credentials.json"), nil
}

func (s *FileStore) Load(ctx context.Context) (*CredentialSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return nil, err
	}
	return fromKeys(values), nil
}

func (s *FileStore) Save(ctx context.Context, creds CredentialSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	values[KeyAccessToken] = creds.AccessToken
	values[KeyIDToken] = creds.IDToken
	values[KeyRefreshToken] = creds.RefreshToken
	values[KeyTokenKind] = creds.Kind()
	return s.write(values)
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.Persistence(err)
	}
	return nil
}

func (s *FileStore) LoadPending(ctx context.Context) (*CredentialSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return nil, err
	}
	return pendingFromKeys(values), nil
}

func (s *FileStore) SavePending(ctx context.Context, creds CredentialSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	values[KeyTempAccessToken] = creds.AccessToken
	values[KeyTempIDToken] = creds.IDToken
	if creds.RefreshToken != "" {
		values[KeyTempRefreshToken] = creds.RefreshToken
	}
	return s.write(values)
}

func (s *FileStore) ClearPending(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	delete(values, KeyTempAccessToken)
	delete(values, KeyTempIDToken)
	delete(values, KeyTempRefreshToken)
	return s.write(values)
}

// read returns the stored key-value document, with legacy key spellings
// dropped on the way in.
func (s *FileStore) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, apperrors.Persistence(err)
	}

	values := make(map[string]string)
	if err := json.Unmarshal(raw, &values); err != nil {
		// A corrupt document reads as absent rather than failing the caller.
		return make(map[string]string), nil
	}
	for _, key := range LegacyKeys {
		delete(values, key)
	}
	return values, nil
}

func (s *FileStore) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return apperrors.Persistence(err)
	}

	raw, err := json.Marshal(values)
	if err != nil {
		return apperrors.Persistence(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return apperrors.Persistence(err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return apperrors.Persistence(err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return apperrors.Persistence(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.Persistence(err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.Persistence(err)
	}
	return nil
}
