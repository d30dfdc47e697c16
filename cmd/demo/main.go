// Command demo runs one auction end to end against the in-memory store:
// schedule, a bid race, the blind phase, lifecycle end, and a double claim
// of a mystery box.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/teamforge/auction-engine/engine/database/memstore"
	"github.com/teamforge/auction-engine/engine/database/models"
	"github.com/teamforge/auction-engine/engine/economy/auction"
	"github.com/teamforge/auction-engine/engine/economy/claim"
	"github.com/teamforge/auction-engine/engine/economy/prize"
	"github.com/teamforge/auction-engine/engine/events"
	"github.com/teamforge/auction-engine/engine/logger"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler("AuctionDemo")))
	ctx := context.Background()

	store := memstore.New()
	bus := events.NewBus()
	manager := auction.NewManager(store, store, store, bus, 2*time.Second)
	claims := claim.NewCoordinator(store, store, prize.NewResolver(), bus)

	feed, cancel := bus.Subscribe(0)
	defer cancel()
	go func() {
		for ev := range feed {
			slog.Info("Event",
				slog.String("event", string(ev.Type)),
				slog.Int64("auction_id", ev.AuctionID),
				slog.String("user_id", ev.UserID),
				slog.Int64("amount", ev.Amount))
		}
	}()

	for _, userID := range []string{"alice", "bob", "carol"} {
		if err := store.Credit(ctx, userID, models.ResolvedPrize{RewardType: models.RewardCurrency, Amount: 1000}); err != nil {
			fail("credit starting balance", err)
		}
	}

	item := &models.AuctionItem{
		Kind:          models.ItemKindMysteryBox,
		StartingPrice: 100,
		RewardPool: []models.BoxContent{
			{RewardType: models.RewardCurrency, Amount: 50, Weight: 1},
			{RewardType: models.RewardExperience, Amount: 20, Weight: 1},
			{RewardType: models.RewardNothing, Weight: 1},
		},
	}
	if err := store.CreateItem(ctx, item); err != nil {
		fail("create item", err)
	}

	start := time.Now()
	a, err := manager.ScheduleAuction(ctx, item.ID, start, start.Add(3*time.Second))
	if err != nil {
		fail("schedule auction", err)
	}

	// alice raises from 100, bob loses the race from a stale price, carol
	// counter-bids at the fresh price.
	mustBid(ctx, manager, a.ID, "alice", 120, 100)
	if err := manager.PlaceBid(ctx, a.ID, "bob", 110, 120); err != nil {
		slog.Info("Bid rejected as expected", slog.String("bidder", "bob"), slog.Any("reason", err))
	}
	mustBid(ctx, manager, a.ID, "carol", 150, 120)

	// Wait into the final window so the view comes back gated.
	time.Sleep(time.Until(a.EndTime.Add(-1500 * time.Millisecond)))
	view, err := manager.GetView(ctx, a.ID)
	if err != nil {
		fail("get view", err)
	}
	slog.Info("Blind-phase view",
		slog.Bool("blind", view.Blind),
		slog.Int64("visible_price", view.CurrentPrice))

	time.Sleep(time.Until(a.EndTime) + 100*time.Millisecond)
	scheduler := auction.NewScheduler(manager, time.Second)
	if err := scheduler.Sweep(ctx, time.Now()); err != nil {
		fail("sweep", err)
	}

	first, err := claims.Claim(ctx, a.ID, "carol")
	if err != nil {
		fail("first claim", err)
	}
	second, err := claims.Claim(ctx, a.ID, "carol")
	if err != nil {
		fail("second claim", err)
	}
	slog.Info("Claims resolved",
		slog.Any("first_prize", first.Prize),
		slog.Any("second_prize", second.Prize))

	if winner, ok := store.User("carol"); ok {
		slog.Info("Winner balances",
			slog.Int64("balance", winner.Balance),
			slog.Int64("exp", winner.Exp))
	}
}

func mustBid(ctx context.Context, manager *auction.Manager, auctionID int64, bidderID string, amount, observed int64) {
	if err := manager.PlaceBid(ctx, auctionID, bidderID, amount, observed); err != nil {
		fail("place bid", err)
	}
}

func fail(what string, err error) {
	slog.Error("Demo failed", slog.String("step", what), slog.Any("error", err))
	os.Exit(1)
}
