package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/yf-price-fetcher/internal/config"
)

// LatestPricePrefix prefixes every latest-price key.
const LatestPricePrefix = "yfinance-latest-price"

// RedisLatest caches latest prices as decimal strings with a TTL.
type RedisLatest struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisLatest creates a RedisLatest.
func NewRedisLatest(client redis.UniversalClient, ttl time.Duration) *RedisLatest {
	return &RedisLatest{
		client: client,
		prefix: LatestPricePrefix,
		ttl:    ttl,
	}
}

// Key returns the Redis key of ticker.
func (r *RedisLatest) Key(ticker string) string {
	return r.prefix + ticker
}

// Get returns the cached price of ticker. ok is false on a miss.
func (r *RedisLatest) Get(ctx context.Context, ticker string) (price float64, ok bool, err error) {
	val, err := r.client.Get(ctx, r.Key(ticker)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get latest price %s: %w", ticker, err)
	}
	price, err = strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse latest price %s: %w", ticker, err)
	}
	return price, true, nil
}

// Set stores price for ticker until the TTL elapses.
func (r *RedisLatest) Set(ctx context.Context, ticker string, price float64) error {
	val := strconv.FormatFloat(price, 'f', -1, 64)
	if err := r.client.Set(ctx, r.Key(ticker), val, r.ttl).Err(); err != nil {
		return fmt.Errorf("set latest price %s: %w", ticker, err)
	}
	return nil
}

// NewRedisClient creates a client from config and pings it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
