package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/teamforge/auction-engine/engine/database/memstore"
	"github.com/teamforge/auction-engine/engine/database/models"
	"github.com/teamforge/auction-engine/engine/economy"
	"github.com/teamforge/auction-engine/engine/events"
)

func newTestManager(t *testing.T) (*Manager, *memstore.Store, *events.Bus) {
	t.Helper()
	store := memstore.New()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	return NewManager(store, store, store, bus, DefaultBlindWindow), store, bus
}

func seedUser(t *testing.T, store *memstore.Store, userID string, balance int64) {
	t.Helper()
	err := store.Credit(context.Background(), userID, models.ResolvedPrize{
		RewardType: models.RewardCurrency,
		Amount:     balance,
	})
	if err != nil {
		t.Fatalf("failed to seed user %s: %v", userID, err)
	}
}

func seedAuction(t *testing.T, m *Manager, store *memstore.Store, startPrice int64, start, end time.Time) *models.Auction {
	t.Helper()
	item := &models.AuctionItem{
		Name:          "Standard Item",
		Kind:          models.ItemKindStandard,
		StartingPrice: startPrice,
	}
	if err := store.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("failed to create item: %v", err)
	}
	auction, err := m.ScheduleAuction(context.Background(), item.ID, start, end)
	if err != nil {
		t.Fatalf("failed to schedule auction: %v", err)
	}
	return auction
}

func TestManager_PlaceBid(t *testing.T) {
	type args struct {
		bidderID string
		amount   int64
		observed int64
	}
	tests := []struct {
		name    string
		args    args
		wantErr any // pointer to the expected error type, nil for success
	}{
		{
			name: "Accepted",
			args: args{bidderID: "alice", amount: 120, observed: 100},
		},
		{
			name:    "AmountNotAboveObserved",
			args:    args{bidderID: "alice", amount: 100, observed: 100},
			wantErr: &economy.ValidationError{},
		},
		{
			name:    "MissingBidder",
			args:    args{bidderID: "", amount: 120, observed: 100},
			wantErr: &economy.ValidationError{},
		},
		{
			name:    "UnknownBidder",
			args:    args{bidderID: "nobody", amount: 120, observed: 100},
			wantErr: &economy.ValidationError{},
		},
		{
			name:    "InsufficientBalance",
			args:    args{bidderID: "alice", amount: 5000, observed: 100},
			wantErr: &economy.ValidationError{},
		},
		{
			name:    "StaleObservedPrice",
			args:    args{bidderID: "alice", amount: 101, observed: 99},
			wantErr: &economy.ConflictError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store, _ := newTestManager(t)
			seedUser(t, store, "alice", 1000)
			now := time.Now()
			auction := seedAuction(t, m, store, 100, now.Add(-time.Minute), now.Add(time.Hour))

			err := m.PlaceBid(context.Background(), auction.ID, tt.args.bidderID, tt.args.amount, tt.args.observed)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("PlaceBid() error = %v, want nil", err)
				}
				got, _ := store.GetAuction(context.Background(), auction.ID)
				if got.CurrentPrice != tt.args.amount || got.CurrentBidderID != tt.args.bidderID {
					t.Errorf("auction = %d/%s, want %d/%s",
						got.CurrentPrice, got.CurrentBidderID, tt.args.amount, tt.args.bidderID)
				}
				return
			}
			if err == nil {
				t.Fatalf("PlaceBid() error = nil, want %T", tt.wantErr)
			}
			switch want := tt.wantErr.(type) {
			case *economy.ValidationError:
				var got *economy.ValidationError
				if !errors.As(err, &got) {
					t.Errorf("PlaceBid() error = %v, want ValidationError", err)
				}
			case *economy.ConflictError:
				var got *economy.ConflictError
				if !errors.As(err, &got) {
					t.Errorf("PlaceBid() error = %v, want ConflictError", err)
				}
			default:
				t.Fatalf("unhandled want type %T", want)
			}
		})
	}
}

func TestManager_PlaceBid_SelfOutbidAllowed(t *testing.T) {
	m, store, _ := newTestManager(t)
	seedUser(t, store, "alice", 1000)
	now := time.Now()
	auction := seedAuction(t, m, store, 100, now.Add(-time.Minute), now.Add(time.Hour))

	if err := m.PlaceBid(context.Background(), auction.ID, "alice", 120, 100); err != nil {
		t.Fatalf("first bid failed: %v", err)
	}
	if err := m.PlaceBid(context.Background(), auction.ID, "alice", 130, 120); err != nil {
		t.Fatalf("self-outbid failed: %v", err)
	}

	got, _ := store.GetAuction(context.Background(), auction.ID)
	if got.CurrentPrice != 130 || got.CurrentBidderID != "alice" {
		t.Errorf("auction = %d/%s, want 130/alice", got.CurrentPrice, got.CurrentBidderID)
	}
}

func TestManager_PlaceBid_RejectsOnScheduledAndEnded(t *testing.T) {
	m, store, _ := newTestManager(t)
	seedUser(t, store, "alice", 1000)
	now := time.Now()

	scheduled := seedAuction(t, m, store, 100, now.Add(time.Hour), now.Add(2*time.Hour))
	err := m.PlaceBid(context.Background(), scheduled.ID, "alice", 120, 100)
	var state *economy.StateError
	if !errors.As(err, &state) {
		t.Errorf("bid on scheduled auction: error = %v, want StateError", err)
	}

	active := seedAuction(t, m, store, 100, now.Add(-time.Minute), now.Add(time.Hour))
	if err := store.TransitionStatus(context.Background(), active.ID, models.AuctionStatusActive, models.AuctionStatusEnded); err != nil {
		t.Fatalf("failed to end auction: %v", err)
	}
	err = m.PlaceBid(context.Background(), active.ID, "alice", 120, 100)
	if !errors.As(err, &state) {
		t.Errorf("bid on ended auction: error = %v, want StateError", err)
	}
}

// TestManager_PlaceBid_ExampleScenario walks the documented flow: A raises
// 100 -> 120, B loses the race from the stale price and learns the fresh
// one, C counter-bids to 150 and wins.
func TestManager_PlaceBid_ExampleScenario(t *testing.T) {
	m, store, _ := newTestManager(t)
	for _, u := range []string{"A", "B", "C"} {
		seedUser(t, store, u, 1000)
	}
	now := time.Now()
	auction := seedAuction(t, m, store, 100, now.Add(-time.Minute), now.Add(time.Hour))
	ctx := context.Background()

	if err := m.PlaceBid(ctx, auction.ID, "A", 120, 100); err != nil {
		t.Fatalf("bid A failed: %v", err)
	}

	err := m.PlaceBid(ctx, auction.ID, "B", 110, 100)
	var conflict *economy.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("bid B: error = %v, want ConflictError", err)
	}
	if conflict.CurrentPrice != 120 {
		t.Errorf("conflict.CurrentPrice = %d, want 120", conflict.CurrentPrice)
	}

	if err := m.PlaceBid(ctx, auction.ID, "C", 150, 120); err != nil {
		t.Fatalf("bid C failed: %v", err)
	}

	got, _ := store.GetAuction(ctx, auction.ID)
	if got.CurrentPrice != 150 || got.CurrentBidderID != "C" {
		t.Errorf("auction = %d/%s, want 150/C", got.CurrentPrice, got.CurrentBidderID)
	}

	bids, _ := store.GetBids(ctx, auction.ID)
	if len(bids) != 2 {
		t.Fatalf("audit trail has %d bids, want 2", len(bids))
	}
}

// TestManager_PlaceBid_NoLostUpdates races many bidders with distinct
// amounts, each retrying from the fresh price on conflict. The final price
// must be the maximum amount and every accepted bid must appear in the
// audit trail in strictly increasing order.
func TestManager_PlaceBid_NoLostUpdates(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	const bidders = 40
	amounts := make([]int64, bidders)
	for i := range amounts {
		amounts[i] = int64(101 + i)
		seedUser(t, store, fmt.Sprintf("user-%d", i), 10000)
	}
	now := time.Now()
	auction := seedAuction(t, m, store, 100, now.Add(-time.Minute), now.Add(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bidder := fmt.Sprintf("user-%d", i)
			amount := amounts[i]
			for {
				current, err := store.GetAuction(ctx, auction.ID)
				if err != nil {
					t.Errorf("get auction: %v", err)
					return
				}
				if amount <= current.CurrentPrice {
					return // outpriced, abandon
				}
				err = m.PlaceBid(ctx, auction.ID, bidder, amount, current.CurrentPrice)
				if err == nil {
					return
				}
				var conflict *economy.ConflictError
				if errors.As(err, &conflict) {
					continue // standard re-read-and-retry
				}
				t.Errorf("bid %d: unexpected error %v", amount, err)
				return
			}
		}(i)
	}
	wg.Wait()

	final, _ := store.GetAuction(ctx, auction.ID)
	if final.CurrentPrice != 140 {
		t.Errorf("final price = %d, want 140", final.CurrentPrice)
	}

	bids, _ := store.GetBids(ctx, auction.ID)
	if len(bids) == 0 {
		t.Fatal("audit trail is empty")
	}
	prev := int64(100)
	for _, b := range bids {
		if b.Amount <= prev {
			t.Errorf("audit trail not strictly increasing: %d after %d", b.Amount, prev)
		}
		prev = b.Amount
	}
	if prev != final.CurrentPrice {
		t.Errorf("last accepted bid = %d, current price = %d", prev, final.CurrentPrice)
	}
	if final.BidCount != len(bids) {
		t.Errorf("bid_count = %d, audit trail has %d", final.BidCount, len(bids))
	}
}

func TestManager_GetView_SyncsStatusOnRead(t *testing.T) {
	m, store, _ := newTestManager(t)
	now := time.Now()
	auction := seedAuction(t, m, store, 100, now.Add(-time.Minute), now.Add(20*time.Millisecond))

	time.Sleep(30 * time.Millisecond)
	view, err := m.GetView(context.Background(), auction.ID)
	if err != nil {
		t.Fatalf("GetView() error = %v", err)
	}
	if view.Status != models.AuctionStatusEnded {
		t.Errorf("view.Status = %s, want ended", view.Status)
	}
}
