package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agromart/marketplace-service/config"
	"agromart/marketplace-service/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func InitRedis(cfg config.Redis, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

// Catalog caches listing detail pages. Stock checks never read from it.
type Catalog struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCatalog(rdb *redis.Client, ttl time.Duration) *Catalog {
	return &Catalog{rdb: rdb, ttl: ttl}
}

func itemKey(kind models.ItemKind, id string) string {
	return fmt.Sprintf("%s:%s", kind, id)
}

// Get decodes the cached value into dst and reports whether it was found.
func (c *Catalog) Get(ctx context.Context, kind models.ItemKind, id string, dst any) (bool, error) {
	data, err := c.rdb.Get(ctx, itemKey(kind, id)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Catalog) Set(ctx context.Context, kind models.ItemKind, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, itemKey(kind, id), data, c.ttl).Err()
}

func (c *Catalog) Invalidate(ctx context.Context, kind models.ItemKind, id string) error {
	return c.rdb.Del(ctx, itemKey(kind, id)).Err()
}

// InvalidateLines drops the cached listing of every item in an order.
func (c *Catalog) InvalidateLines(ctx context.Context, lines []models.LineItem) error {
	if len(lines) == 0 {
		return nil
	}
	keys := make([]string, len(lines))
	for i, l := range lines {
		keys[i] = itemKey(l.Kind, l.ItemID)
	}
	return c.rdb.Del(ctx, keys...).Err()
}
