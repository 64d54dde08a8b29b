// Package cache provides Valkey (Redis-compatible) client initialization,
// a Valkey-backed cache of rendered post bodies, and an in-process cache
// for section settings.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// valkeyOptions builds the client options. One client serves sessions,
// rendered documents and the change-event subscription, so the pool keeps
// a few idle connections warm.
func valkeyOptions(host, port, password string) *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(host, port),
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MinIdleConns: 2,
	}
}

// ConnectValkey creates a Valkey client and verifies the connection with a ping.
func ConnectValkey(host, port, password string) (*redis.Client, error) {
	opts := valkeyOptions(host, port, password)
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping %s: %w", opts.Addr, err)
	}

	slog.Info("valkey connected", "addr", opts.Addr)
	return client, nil
}
