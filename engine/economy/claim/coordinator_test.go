package claim

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/teamforge/auction-engine/engine/database/memstore"
	"github.com/teamforge/auction-engine/engine/database/models"
	"github.com/teamforge/auction-engine/engine/economy"
	"github.com/teamforge/auction-engine/engine/economy/prize"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	resolver := prize.NewResolverWithSource(rand.NewSource(1))
	return NewCoordinator(store, store, resolver, nil), store
}

// endedAuction sets up an ended auction for an item of the given kind with
// winnerID as the final bidder (or no bidder when winnerID is empty).
func endedAuction(t *testing.T, store *memstore.Store, kind models.ItemKind, pool []models.BoxContent, winnerID string) *models.Auction {
	t.Helper()
	ctx := context.Background()

	item := &models.AuctionItem{
		Name:          "Claim Test Item",
		Kind:          kind,
		StartingPrice: 100,
		RewardPool:    pool,
	}
	if err := store.CreateItem(ctx, item); err != nil {
		t.Fatalf("failed to create item: %v", err)
	}

	auction := &models.Auction{
		AuctionCode:  "CLAIMT",
		ItemID:       item.ID,
		CurrentPrice: 100,
		StartTime:    time.Now().Add(-time.Hour),
		EndTime:      time.Now().Add(time.Hour),
	}
	if err := store.CreateAuction(ctx, auction); err != nil {
		t.Fatalf("failed to create auction: %v", err)
	}
	if winnerID != "" {
		bid := &models.Bid{AuctionID: auction.ID, BidderID: winnerID, Amount: 150}
		if err := store.AcceptBid(ctx, auction.ID, 100, bid); err != nil {
			t.Fatalf("failed to record winning bid: %v", err)
		}
	}
	if err := store.TransitionStatus(ctx, auction.ID, models.AuctionStatusActive, models.AuctionStatusEnded); err != nil {
		t.Fatalf("failed to end auction: %v", err)
	}
	return auction
}

func currencyPool(amount int64) []models.BoxContent {
	return []models.BoxContent{{RewardType: models.RewardCurrency, Amount: amount, Weight: 1}}
}

func TestCoordinator_Claim_MysteryBoxCreditsOnce(t *testing.T) {
	c, store := newTestCoordinator(t)
	auction := endedAuction(t, store, models.ItemKindMysteryBox, currencyPool(50), "alice")

	result, err := c.Claim(context.Background(), auction.ID, "alice")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if result.WinnerID != "alice" {
		t.Errorf("result.WinnerID = %s, want alice", result.WinnerID)
	}
	if result.Prize == nil || result.Prize.RewardType != models.RewardCurrency || result.Prize.Amount != 50 {
		t.Fatalf("result.Prize = %+v, want currency/50", result.Prize)
	}

	user, ok := store.User("alice")
	if !ok {
		t.Fatal("winner has no account after credit")
	}
	if user.Balance != 50 {
		t.Errorf("balance = %d, want 50", user.Balance)
	}
}

func TestCoordinator_Claim_Idempotent(t *testing.T) {
	c, store := newTestCoordinator(t)
	auction := endedAuction(t, store, models.ItemKindMysteryBox, currencyPool(50), "alice")
	ctx := context.Background()

	first, err := c.Claim(ctx, auction.ID, "alice")
	if err != nil {
		t.Fatalf("first Claim() error = %v", err)
	}
	second, err := c.Claim(ctx, auction.ID, "alice")
	if err != nil {
		t.Fatalf("repeat Claim() error = %v", err)
	}

	if second.Prize == nil || *second.Prize != *first.Prize {
		t.Errorf("repeat prize = %+v, want %+v", second.Prize, first.Prize)
	}
	if !second.ClaimedAt.Equal(first.ClaimedAt) {
		t.Errorf("repeat claimed_at = %v, want %v", second.ClaimedAt, first.ClaimedAt)
	}

	user, _ := store.User("alice")
	if user.Balance != 50 {
		t.Errorf("balance after repeat claim = %d, want 50", user.Balance)
	}
}

func TestCoordinator_Claim_ConcurrentSingleCredit(t *testing.T) {
	c, store := newTestCoordinator(t)
	auction := endedAuction(t, store, models.ItemKindMysteryBox, currencyPool(50), "alice")
	ctx := context.Background()

	const attempts = 16
	results := make([]*Result, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := c.Claim(ctx, auction.ID, "alice")
			if err != nil {
				t.Errorf("Claim() error = %v", err)
				return
			}
			results[i] = result
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r == nil || r.Prize == nil {
			t.Fatalf("attempt %d returned no prize", i)
		}
		if *r.Prize != *results[0].Prize {
			t.Errorf("attempt %d prize = %+v, differs from %+v", i, r.Prize, results[0].Prize)
		}
	}

	user, _ := store.User("alice")
	if user.Balance != 50 {
		t.Errorf("balance = %d, want exactly one credit of 50", user.Balance)
	}
}

func TestCoordinator_Claim_StandardItemNoCredit(t *testing.T) {
	c, store := newTestCoordinator(t)
	auction := endedAuction(t, store, models.ItemKindStandard, nil, "alice")

	result, err := c.Claim(context.Background(), auction.ID, "alice")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if result.Prize != nil {
		t.Errorf("result.Prize = %+v, want nil for standard item", result.Prize)
	}
	if user, ok := store.User("alice"); ok && user.Balance != 0 {
		t.Errorf("balance = %d, want no credit", user.Balance)
	}
}

func TestCoordinator_Claim_NothingOutcomeSkipsCredit(t *testing.T) {
	c, store := newTestCoordinator(t)
	pool := []models.BoxContent{{RewardType: models.RewardNothing, Weight: 1}}
	auction := endedAuction(t, store, models.ItemKindMysteryBox, pool, "alice")

	result, err := c.Claim(context.Background(), auction.ID, "alice")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if result.Prize == nil || result.Prize.RewardType != models.RewardNothing {
		t.Fatalf("result.Prize = %+v, want nothing outcome", result.Prize)
	}
	if user, ok := store.User("alice"); ok && user.Balance != 0 {
		t.Errorf("balance = %d, want no credit for empty draw", user.Balance)
	}
}

func TestCoordinator_Claim_Denied(t *testing.T) {
	tests := []struct {
		name      string
		winner    string
		requester string
		wantAuth  bool
	}{
		{name: "NotTheWinner", winner: "alice", requester: "bob", wantAuth: true},
		{name: "NoBids", winner: "", requester: "alice", wantAuth: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store := newTestCoordinator(t)
			auction := endedAuction(t, store, models.ItemKindMysteryBox, currencyPool(50), tt.winner)

			_, err := c.Claim(context.Background(), auction.ID, tt.requester)
			var authErr *economy.AuthorizationError
			if !errors.As(err, &authErr) {
				t.Errorf("Claim() error = %v, want AuthorizationError", err)
			}
			if _, getErr := store.GetClaim(context.Background(), auction.ID); getErr == nil {
				t.Error("denied claim left a claim record behind")
			}
		})
	}
}

func TestCoordinator_Claim_RequiresEndedStatus(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	item := &models.AuctionItem{
		Name:          "Still Running",
		Kind:          models.ItemKindMysteryBox,
		StartingPrice: 100,
		RewardPool:    currencyPool(50),
	}
	if err := store.CreateItem(ctx, item); err != nil {
		t.Fatalf("failed to create item: %v", err)
	}
	auction := &models.Auction{
		AuctionCode:  "LIVEAU",
		ItemID:       item.ID,
		CurrentPrice: 100,
		StartTime:    time.Now().Add(-time.Hour),
		EndTime:      time.Now().Add(time.Hour),
	}
	if err := store.CreateAuction(ctx, auction); err != nil {
		t.Fatalf("failed to create auction: %v", err)
	}

	_, err := c.Claim(ctx, auction.ID, "alice")
	var state *economy.StateError
	if !errors.As(err, &state) {
		t.Errorf("Claim() on active auction: error = %v, want StateError", err)
	}
}
