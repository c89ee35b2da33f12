package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/nexora-labs/instgate/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisVolumeStore keeps per-client daily volume counters in Redis so the
// trailing 30-day aggregate survives restarts and is shared across replicas.
type RedisVolumeStore struct {
	client *redis.Client
}

func NewRedisVolumeStore(cfg *config.Config) (*RedisVolumeStore, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisVolumeStore{client: rdb}, nil
}

func (s *RedisVolumeStore) Add(ctx context.Context, clientID string, orders int64, notional decimal.Decimal) error {
	key := s.makeKey(clientID, time.Now().UTC())

	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, key, "orders", orders)
	pipe.HIncrByFloat(ctx, key, "volume", notional.InexactFloat64())
	// keep one day of slack past the trailing horizon
	pipe.Expire(ctx, key, (trailingDays+1)*24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisVolumeStore) Trailing30d(ctx context.Context, clientID string) (int64, decimal.Decimal, error) {
	day := time.Now().UTC()
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, trailingDays)
	for i := 0; i < trailingDays; i++ {
		cmds = append(cmds, pipe.HGetAll(ctx, s.makeKey(clientID, day.AddDate(0, 0, -i))))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, decimal.Zero, err
	}

	var orders int64
	notional := decimal.Zero
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			continue
		}
		if raw, ok := fields["orders"]; ok {
			if parsed, err := decimal.NewFromString(raw); err == nil {
				orders += parsed.IntPart()
			}
		}
		if raw, ok := fields["volume"]; ok {
			if parsed, err := decimal.NewFromString(raw); err == nil {
				notional = notional.Add(parsed)
			}
		}
	}
	return orders, notional, nil
}

func (s *RedisVolumeStore) Close() error {
	return s.client.Close()
}

func (s *RedisVolumeStore) makeKey(clientID string, day time.Time) string {
	return fmt.Sprintf("volume:%s:%s", clientID, day.Format("2006-01-02"))
}
