package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/sentinel/core/security"
)

// KeyStore adapts a Redis client to security.KeyStore.
//
// Errors that did not come from the server (dial failures, timeouts, closed
// pools) are joined with security.ErrStoreUnavailable so callers can degrade.
type KeyStore struct {
	client    redis.Cmdable
	scanBatch int64
}

var _ security.KeyStore = (*KeyStore)(nil)

// NewKeyStore wraps client. scanBatch is the COUNT hint for SCAN; zero uses 1000.
func NewKeyStore(client redis.Cmdable, scanBatch int64) *KeyStore {
	if scanBatch <= 0 {
		scanBatch = 1000
	}
	return &KeyStore{client: client, scanBatch: scanBatch}
}

// Keys lists keys starting with prefix using SCAN, never KEYS.
func (s *KeyStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, escapeGlob(prefix)+"*", s.scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, classify(err)
	}
	return keys, nil
}

// TTL returns the remaining lifetime. Like the server, it reports -1 for keys
// without expiry and -2 for missing keys.
func (s *KeyStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, classify(err)
	}
	return ttl, nil
}

func (s *KeyStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return classify(s.client.Del(ctx, keys...).Err())
}

func (s *KeyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return classify(s.client.Set(ctx, key, value, ttl).Err())
}

func (s *KeyStore) Push(ctx context.Context, key, value string) error {
	return classify(s.client.LPush(ctx, key, value).Err())
}

func (s *KeyStore) Trim(ctx context.Context, key string, start, stop int64) error {
	return classify(s.client.LTrim(ctx, key, start, stop).Err())
}

// classify marks transport-level failures as store unavailability. Server
// replies, including redis.Nil, pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return err
	}
	return errors.Join(security.ErrStoreUnavailable, err)
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// escapeGlob quotes MATCH metacharacters so prefix is matched literally.
func escapeGlob(prefix string) string {
	return globEscaper.Replace(prefix)
}
