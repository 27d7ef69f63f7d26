package deduplication

import (
	"context"
	"fmt"
	"time"

	"newsdesk/config"
	"newsdesk/logger"

	"github.com/redis/go-redis/v9"
)

const bloomCommandTimeout = 5 * time.Second

// BloomConfig configures RedisBloom connection and key
type BloomConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
	Key      string // redis key for bloom filter
	TTL      time.Duration
	// Capacity sets the initial BF.RESERVE capacity (number of items)
	Capacity int
	// ErrorRate sets the desired false positive probability (e.g. 0.001)
	ErrorRate float64
	// If true, BF.RESERVE NONSCALING flag will be used
	NonScaling bool
}

// BloomConfigFrom maps the redis section of the config; nil when the filter is disabled.
func BloomConfigFrom(cfg config.RedisConfig) *BloomConfig {
	if !cfg.Enabled || cfg.Addr == "" {
		return nil
	}
	return &BloomConfig{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		Key:       cfg.BloomKey,
		TTL:       cfg.TTL,
		Capacity:  cfg.Capacity,
		ErrorRate: cfg.ErrorRate,
	}
}

// RedisBloom is a minimal Redis-backed Bloom wrapper using RedisBloom commands
type RedisBloom struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisBloom creates a RedisBloom wrapper and verifies connectivity
func NewRedisBloom(cfg BloomConfig) (*RedisBloom, error) {
	return NewRedisBloomWithLogger(cfg, logger.Nop())
}

func NewRedisBloomWithLogger(cfg BloomConfig, log *logger.Logger) (*RedisBloom, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), bloomCommandTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	rb := &RedisBloom{client: client, key: cfg.Key, ttl: cfg.TTL, log: log}

	// BF.ADD auto-creates the filter with module defaults when BF.RESERVE is unavailable
	exists, err := client.Exists(ctx, cfg.Key).Result()
	if err == nil && exists == 0 {
		// BF.RESERVE <key> <error_rate> <capacity> [NONSCALING]
		args := []any{"BF.RESERVE", cfg.Key, fmt.Sprintf("%f", cfg.ErrorRate), cfg.Capacity}
		if cfg.NonScaling {
			args = append(args, "NONSCALING")
		}
		if err := client.Do(ctx, args...).Err(); err != nil {
			log.Warn("BF.RESERVE failed, relying on BF.ADD defaults", "key", cfg.Key, "error", err)
		}
	}

	return rb, nil
}

// Close closes the underlying Redis client
func (r *RedisBloom) Close() error {
	return r.client.Close()
}

// Exists checks if the key is present in the bloom filter.
func (r *RedisBloom) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, bloomCommandTimeout)
	defer cancel()

	// BF.EXISTS <key> <item>
	res, err := r.client.Do(ctx, "BF.EXISTS", r.key, key).Result()
	if err != nil {
		return false, err
	}
	return bloomBool(res)
}

// Add inserts the key into the bloom filter and ensures TTL on the filter.
func (r *RedisBloom) Add(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, bloomCommandTimeout)
	defer cancel()

	// BF.ADD <key> <item>
	if err := r.client.Do(ctx, "BF.ADD", r.key, key).Err(); err != nil {
		return err
	}

	// sliding window: the filter lives for ttl after the most recent insertion
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, r.key, r.ttl).Err(); err != nil {
			return err
		}
	}
	return nil
}

func bloomBool(res any) (bool, error) {
	switch v := res.(type) {
	case int64:
		return v == 1, nil
	case bool:
		return v, nil
	case string:
		return v == "1", nil
	default:
		return false, fmt.Errorf("unexpected BF.EXISTS response type %T: %v", res, res)
	}
}
