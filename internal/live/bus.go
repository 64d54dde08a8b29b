// Package live delivers full result-set snapshots to subscribers whenever
// the underlying data changes. Changes are announced on a Bus as topic
// names; a Hub maps topics to subscriptions and reloads their data.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Bus carries change notifications between processes. A notification is
// only a topic name; receivers reload the data themselves.
type Bus interface {
	Publish(ctx context.Context, topic string) error
	// Listen returns a channel of topics published after Listen returns.
	// The channel is closed when ctx is done.
	Listen(ctx context.Context) <-chan string
}

// channelPrefix namespaces change channels in Valkey.
const channelPrefix = "folio:changes:"

// ValkeyBus implements Bus over Valkey PUBLISH / PSUBSCRIBE, so every
// app instance sees changes made by any other.
type ValkeyBus struct {
	client *redis.Client
}

// NewValkeyBus creates a bus on the given Valkey client.
func NewValkeyBus(client *redis.Client) *ValkeyBus {
	return &ValkeyBus{client: client}
}

// Publish announces a change on topic.
func (b *ValkeyBus) Publish(ctx context.Context, topic string) error {
	if err := b.client.Publish(ctx, channelPrefix+topic, "1").Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Listen subscribes to every change channel.
func (b *ValkeyBus) Listen(ctx context.Context) <-chan string {
	ps := b.client.PSubscribe(ctx, channelPrefix+"*")
	// Wait for the subscription confirmation so nothing published after
	// Listen returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		slog.Error("valkey bus subscribe failed", "error", err)
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- strings.TrimPrefix(msg.Channel, channelPrefix):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// MemoryBus is an in-process Bus. Used in tests and single-instance
// deployments without Valkey.
type MemoryBus struct {
	mu        sync.Mutex
	listeners map[chan string]struct{}
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{listeners: make(map[chan string]struct{})}
}

// Publish delivers topic to every current listener.
func (b *MemoryBus) Publish(ctx context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.listeners {
		select {
		case ch <- topic:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Listen registers a listener until ctx is done.
func (b *MemoryBus) Listen(ctx context.Context) <-chan string {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.listeners[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.listeners, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}
