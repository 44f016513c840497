package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/availops/creditflow/internal/core/domain"
)

const defaultChannel = "creditflow:events"

// RedisConfig holds redis connection configuration.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Channel  string `yaml:"channel"`
}

// RedisEmitter publishes events as JSON on a pub/sub channel. The web
// dashboard subscribes to it to mirror purchase progress.
type RedisEmitter struct {
	rdb     *redis.Client
	channel string
}

var _ Emitter = (*RedisEmitter)(nil)

func NewRedisEmitter(cfg RedisConfig) (*RedisEmitter, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = defaultChannel
	}

	return &RedisEmitter{rdb: rdb, channel: channel}, nil
}

func (e *RedisEmitter) Emit(ctx context.Context, event *domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := e.rdb.Publish(ctx, e.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (e *RedisEmitter) Close() error {
	return e.rdb.Close()
}
