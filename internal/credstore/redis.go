package credstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// RedisStore persists one browser session's credentials as a redis hash. The
// hash expires with the refresh token's lifetime so abandoned sessions do not
// accumulate.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a redis-backed credential store for the session
// identified by sessionID. A zero ttl disables expiry.
func NewRedisStore(client redis.UniversalClient, sessionID string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		key:    "storefront:session:" + sessionID,
		ttl:    ttl,
	}
}

func (s *RedisStore) Load(ctx context.Context) (*CredentialSet, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	return fromKeys(values), nil
}

func (s *RedisStore) Save(ctx context.Context, creds CredentialSet) error {
	// One HSET carries all fields, so readers never observe a torn set.
	err := s.client.HSet(ctx, s.key,
		KeyAccessToken, creds.AccessToken,
		KeyIDToken, creds.IDToken,
		KeyRefreshToken, creds.RefreshToken,
		KeyTokenKind, creds.Kind(),
	).Err()
	if err != nil {
		return apperrors.Persistence(err)
	}
	return s.expire(ctx)
}

func (s *RedisStore) Clear(ctx context.Context) error {
	// Deleting the whole hash removes active, pending, and any legacy fields.
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return apperrors.Persistence(err)
	}
	return nil
}

func (s *RedisStore) LoadPending(ctx context.Context) (*CredentialSet, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, apperrors.Persistence(err)
	}
	return pendingFromKeys(values), nil
}

func (s *RedisStore) SavePending(ctx context.Context, creds CredentialSet) error {
	fields := []any{
		KeyTempAccessToken, creds.AccessToken,
		KeyTempIDToken, creds.IDToken,
	}
	if creds.RefreshToken != "" {
		fields = append(fields, KeyTempRefreshToken, creds.RefreshToken)
	}
	if err := s.client.HSet(ctx, s.key, fields...).Err(); err != nil {
		return apperrors.Persistence(err)
	}
	return s.expire(ctx)
}

func (s *RedisStore) ClearPending(ctx context.Context) error {
	err := s.client.HDel(ctx, s.key, KeyTempAccessToken, KeyTempIDToken, KeyTempRefreshToken).Err()
	if err != nil {
		return apperrors.Persistence(err)
	}
	return nil
}

func (s *RedisStore) expire(ctx context.Context) error {
	if s.ttl <= 0 {
		return nil
	}
	if err := s.client.Expire(ctx, s.key, s.ttl).Err(); err != nil {
		return apperrors.Persistence(err)
	}
	return nil
}
