package events

import (
	"testing"
	"time"
)

func recvOne(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before delivery")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBus_TargetedDelivery(t *testing.T) {
	b := NewBus()
	defer b.Close()

	chA, cancelA := b.Subscribe(1)
	defer cancelA()
	chB, cancelB := b.Subscribe(2)
	defer cancelB()

	b.Publish(Event{Type: EventBidAccepted, AuctionID: 1, UserID: "alice", Amount: 120})

	got := recvOne(t, chA)
	if got.Type != EventBidAccepted || got.AuctionID != 1 || got.Amount != 120 {
		t.Errorf("event = %+v, want bid_accepted/1/120", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not stamped on publish")
	}

	select {
	case ev := <-chB:
		t.Errorf("subscriber for auction 2 received %+v", ev)
	default:
	}
}

func TestBus_FirehoseSeesEverything(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, cancel := b.Subscribe(0)
	defer cancel()

	b.Publish(Event{Type: EventAuctionStarted, AuctionID: 1})
	b.Publish(Event{Type: EventAuctionEnded, AuctionID: 2})

	first := recvOne(t, ch)
	second := recvOne(t, ch)
	if first.AuctionID != 1 || second.AuctionID != 2 {
		t.Errorf("got auctions %d, %d, want 1, 2", first.AuctionID, second.AuctionID)
	}
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, cancel := b.Subscribe(1)
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}
	// Cancelling twice is harmless.
	cancel()

	b.Publish(Event{Type: EventBidAccepted, AuctionID: 1})
}

func TestBus_FullBufferDropsForThatSubscriberOnly(t *testing.T) {
	b := NewBus()
	defer b.Close()

	slow, cancelSlow := b.Subscribe(1)
	defer cancelSlow()
	// Drain the fast subscriber as we go so it never fills.
	fast, cancelFast := b.Subscribe(1)
	defer cancelFast()

	total := subscriberBuffer + 5
	fastSeen := 0
	for i := 0; i < total; i++ {
		b.Publish(Event{Type: EventBidAccepted, AuctionID: 1, Amount: int64(i)})
		select {
		case <-fast:
			fastSeen++
		default:
		}
	}
	for {
		select {
		case <-fast:
			fastSeen++
			continue
		default:
		}
		break
	}

	if fastSeen != total {
		t.Errorf("fast subscriber saw %d events, want %d", fastSeen, total)
	}
	if len(slow) != subscriberBuffer {
		t.Errorf("slow subscriber buffered %d events, want %d", len(slow), subscriberBuffer)
	}
}

func TestBus_Close(t *testing.T) {
	b := NewBus()
	ch, _ := b.Subscribe(1)
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("channel still open after Close")
	}

	// Operations after Close are no-ops.
	b.Publish(Event{Type: EventBidAccepted, AuctionID: 1})
	b.Close()

	late, cancel := b.Subscribe(1)
	if _, ok := <-late; ok {
		t.Error("subscription after Close yielded an open channel")
	}
	cancel()
}
