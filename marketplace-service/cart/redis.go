package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agromart/marketplace-service/models"

	"github.com/redis/go-redis/v9"
)

const maxWatchRetries = 10

// RedisStore keeps each cart as one JSON value and uses WATCH/MULTI so that
// concurrent mutations of the same cart are serialized.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func (s *RedisStore) Load(ctx context.Context, userID string) (*models.Cart, error) {
	return decodeCart(userID, s.rdb.Get(ctx, cartKey(userID)))
}

func (s *RedisStore) Mutate(ctx context.Context, userID string, fn func(c *models.Cart) (bool, error)) (*models.Cart, error) {
	key := cartKey(userID)
	var result *models.Cart

	txf := func(tx *redis.Tx) error {
		c, err := decodeCart(userID, tx.Get(ctx, key))
		if err != nil {
			return err
		}
		changed, err := fn(c)
		if err != nil {
			return err
		}
		result = c
		if !changed {
			return nil
		}
		c.UpdatedAt = now()
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("cart %s: too many concurrent updates", userID)
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, cartKey(userID)).Err()
}

func decodeCart(userID string, cmd *redis.StringCmd) (*models.Cart, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return &models.Cart{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	var c models.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	c.UserID = userID
	return &c, nil
}

var now = func() time.Time { return time.Now().UTC() }
