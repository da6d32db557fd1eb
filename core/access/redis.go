package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisMaxRetries = 5

// RedisStore is a credential store in redis. Every identity is a hash
// "<prefix>identity:<login>" with the fields name, password_hash and key_digest.
// The string "<prefix>apikey:<digest>" maps a key digest to its login.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore returns a credential store using client. All keys start with prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) identityKey(login string) string {
	return s.prefix + "identity:" + login
}

func (s *RedisStore) apiKeyKey(digest string) string {
	return s.prefix + "apikey:" + digest
}

// Register implements Store
func (s *RedisStore) Register(ctx context.Context, identity Identity, passwordHash string) error {
	if identity.Login == "" || passwordHash == "" {
		return ErrInvalidIdentity
	}
	key := s.identityKey(identity.Login)
	return s.transaction(ctx, key, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("%w: %s", ErrIdentityExists, identity.Login)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "name", identity.Name, "password_hash", passwordHash)
			return nil
		})
		return err
	})
}

// Authenticate implements Store
func (s *RedisStore) Authenticate(ctx context.Context, login, password string) (*Identity, error) {
	values, err := s.client.HMGet(ctx, s.identityKey(login), "name", "password_hash").Result()
	if err != nil {
		return nil, fmt.Errorf("cannot read identity %s: %w", login, err)
	}
	name, _ := values[0].(string)
	hash, ok := values[1].(string)
	if !ok || !CheckPassword(hash, password) {
		return nil, ErrAuthentication
	}
	return &Identity{Login: login, Name: name}, nil
}

// IssueAPIKey implements Store. The old key index entry is removed and the new one is
// written in one MULTI transaction, guarded by a WATCH on the identity.
func (s *RedisStore) IssueAPIKey(ctx context.Context, login string) (string, error) {
	apiKey, err := GenerateAPIKey()
	if err != nil {
		return "", err
	}
	digest := HashAPIKey(apiKey)
	key := s.identityKey(login)

	err = s.transaction(ctx, key, func(tx *redis.Tx) error {
		values, err := tx.HMGet(ctx, key, "password_hash", "key_digest").Result()
		if err != nil {
			return err
		}
		if values[0] == nil {
			return ErrAuthentication
		}
		previous, _ := values[1].(string)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previous != "" {
				pipe.Del(ctx, s.apiKeyKey(previous))
			}
			pipe.Set(ctx, s.apiKeyKey(digest), login, 0)
			pipe.HSet(ctx, key, "key_digest", digest)
			return nil
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return apiKey, nil
}

// ValidateAPIKey implements Store
func (s *RedisStore) ValidateAPIKey(ctx context.Context, apiKey string) (*Identity, error) {
	login, err := s.client.Get(ctx, s.apiKeyKey(HashAPIKey(apiKey))).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot look up api key: %w", err)
	}
	name, err := s.client.HGet(ctx, s.identityKey(login), "name").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read identity %s: %w", login, err)
	}
	return &Identity{Login: login, Name: name}, nil
}

// transaction runs fn with a WATCH on key and retries when another client modified the key
func (s *RedisStore) transaction(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < redisMaxRetries; i++ {
		err := s.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("transaction on %s failed after %d attempts", key, redisMaxRetries)
}
