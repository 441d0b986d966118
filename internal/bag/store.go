package bag

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chazeldred55-code/boutique-ado-v1/internal/domain"
)

// Store keeps per-session carts and flash messages in redis. A missing key
// is an empty cart; flashes survive exactly one read.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func cartKey(sessionID string) string {
	return "bag:" + sessionID
}

func flashKey(sessionID string) string {
	return "flash:" + sessionID
}

func (s *Store) Get(ctx context.Context, sessionID string) (domain.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(sessionID)).Result()
	if err == redis.Nil {
		return domain.Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal([]byte(data), &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}

	return cart, nil
}

func (s *Store) Save(ctx context.Context, sessionID string, cart domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	if err := s.client.Set(ctx, cartKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("write cart: %w", err)
	}

	return nil
}

// Clear stores the empty cart rather than deleting the key, matching the
// session semantics of cart clearing on order submission.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	return s.Save(ctx, sessionID, domain.Cart{})
}

func (s *Store) PushFlash(ctx context.Context, sessionID, message string) error {
	key := flashKey(sessionID)
	if err := s.client.RPush(ctx, key, message).Err(); err != nil {
		return fmt.Errorf("push flash: %w", err)
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

// PopFlashes drains and returns the pending flash messages for the session.
func (s *Store) PopFlashes(ctx context.Context, sessionID string) ([]string, error) {
	key := flashKey(sessionID)

	messages, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read flashes: %w", err)
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("drain flashes: %w", err)
	}

	return messages, nil
}
