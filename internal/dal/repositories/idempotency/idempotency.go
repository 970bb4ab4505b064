package idempotencyrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "fulfillment:idempotency:"
	pendingValue = "pending"
)

var (
	// ErrInFlight is returned when another request holding the same key has not finished yet.
	ErrInFlight = errors.New("request with this idempotency key is in flight")
)

// releaseScript deletes the key only while it still marks an unfinished request.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Store remembers which order a client-supplied idempotency key produced.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a new idempotency store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Claim reserves key for a new request. When the key already completed, the
// stored order id is returned with claimed=false. ErrInFlight is returned while
// an earlier request with the same key is still running.
func (s *Store) Claim(ctx context.Context, key string) (orderID string, claimed bool, err error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, pendingValue, s.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if ok {
		return "", true, nil
	}

	val, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired or released between the two calls; try once more.
		return s.Claim(ctx, key)
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if val == pendingValue {
		return "", false, ErrInFlight
	}

	return val, false, nil
}

// Complete binds key to the order it produced.
func (s *Store) Complete(ctx context.Context, key, orderID string) error {
	if err := s.client.Set(ctx, keyPrefix+key, orderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}

	return nil
}

// Release frees a claimed key after a failed request so the client may retry.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{keyPrefix + key}, pendingValue).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}

	return nil
}
