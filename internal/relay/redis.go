// Package relay mirrors broadcast ticks onto Redis pub/sub so other processes
// can follow the stream without a websocket.
package relay

import (
	"context"
	"fmt"

	"termbridge/config"
	"termbridge/internal/hub"

	"github.com/redis/go-redis/v9"
)

var _ hub.Relay = (*Redis)(nil)

type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Dial connects using cfg and verifies the server answers.
func Dial(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedis(client, cfg.ChannelPrefix), nil
}

// Channel is the pub/sub channel for symbol, e.g. "ticks.EURUSD".
func (r *Redis) Channel(symbol string) string {
	return r.prefix + symbol
}

func (r *Redis) Publish(ctx context.Context, symbol string, payload []byte) error {
	return r.client.Publish(ctx, r.Channel(symbol), payload).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
