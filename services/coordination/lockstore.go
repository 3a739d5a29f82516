package coordination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nexus/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// LockStore is the thin client over the ephemeral TTL key-value store. All
// mutual exclusion in the engine rests on TryAcquire being atomic; everything
// else here is plumbing.
type LockStore interface {
	// TryAcquire atomically sets key to value with the given TTL iff the key
	// is absent. Returns whether the key was acquired.
	TryAcquire(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Read returns the value at key, or ErrKeyAbsent.
	Read(ctx context.Context, key string) (string, error)

	// Release deletes key. Idempotent; releasing an absent key is not an error.
	Release(ctx context.Context, key string) error

	Publish(ctx context.Context, channel, message string) error

	// Subscribe delivers messages published on channel while the subscription
	// is active; messages published before Subscribe are never seen. The stop
	// function closes the subscription and the returned channel.
	Subscribe(ctx context.Context, channel string) (<-chan string, func())
}

// RedisLockStore implements LockStore on go-redis.
type RedisLockStore struct {
	client *redis.Client
}

// NewRedisLockStore wraps an already-connected Redis client. The caller owns
// the client's lifecycle.
func NewRedisLockStore(client *redis.Client) *RedisLockStore {
	return &RedisLockStore{client: client}
}

func (s *RedisLockStore) TryAcquire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, classify(err, "setnx "+key)
	}
	return ok, nil
}

func (s *RedisLockStore) Read(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrKeyAbsent
	}
	if err != nil {
		return "", classify(err, "get "+key)
	}
	return val, nil
}

func (s *RedisLockStore) Release(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return classify(err, "del "+key)
	}
	return nil
}

func (s *RedisLockStore) Publish(ctx context.Context, channel, message string) error {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	if err := s.client.Publish(ctx, channel, message).Err(); err != nil {
		return classify(err, "publish "+channel)
	}
	return nil
}

func (s *RedisLockStore) Subscribe(ctx context.Context, channel string) (<-chan string, func()) {
	pubsub := s.client.Subscribe(ctx, channel)
	out := make(chan string)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	stop := func() {
		if err := pubsub.Close(); err != nil {
			utils.GetLogger().Warn("failed to close subscription",
				zap.String("channel", channel), zap.Error(err))
		}
	}
	return out, stop
}

// classify folds transport failures into the taxonomy so callers can tell
// "store unreachable" from "key absent".
func classify(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrStoreTimeout)
	}
	return fmt.Errorf("lock store %s: %w", op, err)
}
