package sessionkv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "lazyload"

// Redis stores values under "lazyload:<session>:<key>".
// Every write refreshes the TTL, so an idle session expires as a whole.
type Redis struct {
	client  *redis.Client
	session string
	ttl     time.Duration
}

// NewRedis scopes client to session. A zero ttl keeps keys until deleted.
func NewRedis(client *redis.Client, session string, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("new redis store: client is nil")
	}
	if strings.TrimSpace(session) == "" {
		return nil, fmt.Errorf("new redis store: session is empty")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("new redis store: negative ttl %s", ttl)
	}
	return &Redis{client: client, session: session, ttl: ttl}, nil
}

func (s *Redis) key(k string) string {
	return redisKeyPrefix + ":" + s.session + ":" + k
}

func (s *Redis) Get(ctx context.Context, key string) (string, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return raw, nil
}

func (s *Redis) Set(ctx context.Context, key string, value string) error {
	return s.client.Set(ctx, s.key(key), value, s.ttl).Err()
}

func (s *Redis) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
