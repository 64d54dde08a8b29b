package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"folio/internal/models"
)

// Collection names a live-queryable result set.
type Collection string

const (
	CollectionLikes    Collection = "likes"
	CollectionComments Collection = "comments"
)

// Query selects one collection filtered to one post.
type Query struct {
	Collection Collection
	PostID     uuid.UUID
}

// Topic is the change-notification name for the query's result set.
func (q Query) Topic() string {
	return string(q.Collection) + ":" + q.PostID.String()
}

// Snapshot is the complete current result set of a Query. Only the slice
// matching the query's collection is populated. Consumers replace their
// state with each snapshot.
type Snapshot struct {
	Query    Query
	Likes    []models.Like
	Comments []models.Comment
}

// Loader fetches the current snapshot for a query.
type Loader func(ctx context.Context) (Snapshot, error)

// Hub fans change notifications out to subscriptions.
type Hub struct {
	bus Bus

	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates a hub listening on bus. Call Start before subscribing.
func NewHub(bus Bus) *Hub {
	return &Hub{
		bus:  bus,
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

// Start begins consuming notifications from the bus until ctx is done.
func (h *Hub) Start(ctx context.Context) {
	topics := h.bus.Listen(ctx)
	go func() {
		for topic := range topics {
			h.dispatch(topic)
		}
	}()
}

// Notify announces that the result set for q changed.
func (h *Hub) Notify(ctx context.Context, q Query) {
	if err := h.bus.Publish(ctx, q.Topic()); err != nil {
		slog.Error("live notify failed", "topic", q.Topic(), "error", err)
	}
}

func (h *Hub) dispatch(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[topic] {
		sub.signal()
	}
}

// Subscribe registers deliver for q. The current snapshot is delivered
// once right away, then again after every change notification for q.
// Deliveries for one subscription are sequential; back-to-back
// notifications may be coalesced into one reload. The subscription ends
// when ctx is done or Close is called.
func (h *Hub) Subscribe(ctx context.Context, q Query, load Loader, deliver func(Snapshot)) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		hub:     h,
		query:   q,
		pending: make(chan struct{}, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	topic := q.Topic()
	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*Subscription]struct{})
	}
	h.subs[topic][sub] = struct{}{}
	h.mu.Unlock()

	sub.signal()
	go sub.run(ctx, load, deliver)
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	topic := sub.query.Topic()
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[topic], sub)
	if len(h.subs[topic]) == 0 {
		delete(h.subs, topic)
	}
}

// Subscription is a registered live query.
type Subscription struct {
	hub     *Hub
	query   Query
	pending chan struct{}
	cancel  context.CancelFunc
	once    sync.Once
	done    chan struct{}
}

func (s *Subscription) signal() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

func (s *Subscription) run(ctx context.Context, load Loader, deliver func(Snapshot)) {
	defer close(s.done)
	defer s.hub.remove(s)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.pending:
		}

		snap, err := load(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("live reload failed", "topic", s.query.Topic(), "error", err)
			continue
		}
		snap.Query = s.query
		deliver(snap)
	}
}

// Close unregisters the subscription. No deliveries start after Close
// returns, though one already in progress may finish.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// Done is closed once the subscription has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
