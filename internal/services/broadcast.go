package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/trafficguard/report-server/internal/models"
	"go.uber.org/zap"
)

// eventChannel is the Redis pub/sub channel carrying report events
// between server instances.
const eventChannel = "reports:events"

// subscriberBuffer bounds each subscriber's pending events. A
// subscriber that falls this far behind starts missing events rather
// than stalling the publisher.
const subscriberBuffer = 16

// Broadcaster fans report events out to currently-connected
// subscribers. Subscribers joining after a publish never see it: there
// is no replay buffer. With a Redis client attached, events published
// on any instance reach every instance's local subscribers.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[chan models.Notification]struct{}

	rdb    *redis.Client
	logger *zap.SugaredLogger
}

// NewBroadcaster creates a broadcaster. rdb may be nil, in which case
// events fan out to this process only.
func NewBroadcaster(rdb *redis.Client, logger *zap.SugaredLogger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[chan models.Notification]struct{}),
		rdb:    rdb,
		logger: logger,
	}
}

// Start consumes the Redis backplane and feeds the local subscriber
// set. Runs until ctx is cancelled. No-op without a Redis client.
func (b *Broadcaster) Start(ctx context.Context) {
	if b.rdb == nil {
		return
	}

	pubsub := b.rdb.Subscribe(ctx, eventChannel)
	defer pubsub.Close()

	b.logger.Infow("Broadcaster subscribed to backplane", "channel", eventChannel)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			var n models.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				b.logger.Warnw("Dropping malformed backplane event", "error", err)
				continue
			}
			b.fanOut(n)
		}
	}
}

// Publish delivers an event to all connected subscribers. Callers
// treat it as fire-and-forget; the submit response never waits on
// delivery.
func (b *Broadcaster) Publish(ctx context.Context, n models.Notification) {
	if b.rdb != nil {
		payload, err := json.Marshal(n)
		if err == nil {
			if err := b.rdb.Publish(ctx, eventChannel, payload).Err(); err == nil {
				// The backplane consumer loop handles local fan-out.
				return
			}
			b.logger.Warnw("Backplane publish failed, delivering locally", "event", n.Event)
		}
	}
	b.fanOut(n)
}

// Subscribe registers a new subscriber. The returned cancel function
// must be called when the subscriber disconnects; it is safe to call
// during a concurrent publish.
func (b *Broadcaster) Subscribe() (<-chan models.Notification, func()) {
	ch := make(chan models.Notification, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount returns the number of connected subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) fanOut(n models.Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- n:
		default:
			// Subscriber buffer full; drop rather than block the publish.
		}
	}
}
