// Package events is the in-process notification bus. Delivery is
// best-effort: publishing never blocks, slow subscribers lose events, and
// clients are expected to reconcile by re-reading auction state.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAuctionStarted EventType = "auction_started"
	EventBidAccepted    EventType = "bid_accepted"
	EventAuctionEnded   EventType = "auction_ended"
	EventAuctionClaimed EventType = "auction_claimed"
)

type Event struct {
	Type      EventType `json:"type"`
	AuctionID int64     `json:"auction_id"`
	UserID    string    `json:"user_id,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const subscriberBuffer = 16

type subscriber struct {
	ch        chan Event
	auctionID int64 // 0 subscribes to everything
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers interest in one auction's events, or in all events
// when auctionID is 0. The returned cancel func releases the subscription;
// the channel is closed by Close or cancel.
func (b *Bus) Subscribe(auctionID int64) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		ch:        make(chan Event, subscriberBuffer),
		auctionID: auctionID,
	}
	token := uuid.NewString()
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subscribers[token] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subscribers[token]; ok {
			delete(b.subscribers, token)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish fans the event out without blocking. A full subscriber buffer
// drops the event for that subscriber only.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		if sub.auctionID != 0 && sub.auctionID != ev.AuctionID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			slog.Debug("Dropping event for slow subscriber",
				slog.String("event", string(ev.Type)),
				slog.Int64("auction_id", ev.AuctionID))
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for token, sub := range b.subscribers {
		delete(b.subscribers, token)
		close(sub.ch)
	}
}
