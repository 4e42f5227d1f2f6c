package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultPrefix is the key prefix of stored manifests
const DefaultPrefix = "prompt:template:"

// RedisStore keeps manifests as YAML strings in Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore creates a new Redis manifest store
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

// Save stores a manifest under its name
func (s *RedisStore) Save(ctx context.Context, m *Manifest) error {
	if m.Name == "" {
		return fmt.Errorf("manifest name is required")
	}

	data, err := m.Marshal()
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key(m.Name), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}

	s.logger.Debug("saved prompt manifest", zap.String("name", m.Name))
	return nil
}

// Load loads a manifest
func (s *RedisStore) Load(ctx context.Context, name string) (*Manifest, error) {
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", name, err)
	}

	return m, nil
}

// Delete deletes a manifest. Deleting an unknown name wraps ErrNotFound.
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	deleted, err := s.client.Del(ctx, s.key(name)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete manifest: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	s.logger.Debug("deleted prompt manifest", zap.String("name", name))
	return nil
}

// Exists checks if a manifest is stored under name
func (s *RedisStore) Exists(ctx context.Context, name string) (bool, error) {
	result, err := s.client.Exists(ctx, s.key(name)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return result > 0, nil
}

// SetTTL sets a time-to-live on a stored manifest
func (s *RedisStore) SetTTL(ctx context.Context, name string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, s.key(name), ttl).Err(); err != nil {
		return fmt.Errorf("failed to set TTL: %w", err)
	}
	return nil
}

// List returns the sorted names of all stored manifests
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var names []string

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if len(key) > len(s.prefix) {
			names = append(names, key[len(s.prefix):])
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	sort.Strings(names)
	return names, nil
}
