// Package claim finalizes reward delivery for ended auctions: exactly one
// claim per auction, exactly one credit, and for box items exactly one draw.
package claim

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teamforge/auction-engine/engine/database/models"
	"github.com/teamforge/auction-engine/engine/database/repositories"
	"github.com/teamforge/auction-engine/engine/economy"
	"github.com/teamforge/auction-engine/engine/economy/prize"
	"github.com/teamforge/auction-engine/engine/events"
)

type Coordinator struct {
	store    repositories.AuctionStore
	items    repositories.ItemStore
	resolver *prize.Resolver
	bus      *events.Bus
}

func NewCoordinator(store repositories.AuctionStore, items repositories.ItemStore, resolver *prize.Resolver, bus *events.Bus) *Coordinator {
	if store == nil {
		panic("auction store cannot be nil")
	}
	if items == nil {
		panic("item store cannot be nil")
	}
	if resolver == nil {
		panic("prize resolver cannot be nil")
	}
	return &Coordinator{
		store:    store,
		items:    items,
		resolver: resolver,
		bus:      bus,
	}
}

// Result is what a successful (or idempotently repeated) claim hands back.
// Prize is nil for standard items, whose delivery is external.
type Result struct {
	AuctionID int64                 `json:"auction_id"`
	WinnerID  string                `json:"winner_id"`
	Prize     *models.ResolvedPrize `json:"prize,omitempty"`
	ClaimedAt time.Time             `json:"claimed_at"`
}

// Claim authorizes the requester as the auction's winner and delivers the
// reward once. Repeating the call returns the stored outcome instead of
// re-drawing or re-crediting, so double-clicks cost nothing.
func (c *Coordinator) Claim(ctx context.Context, auctionID int64, requesterID string) (*Result, error) {
	auction, err := c.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	// Claim must observe the frozen post-ended result, never an in-flight
	// price, so only the stored status counts here.
	if auction.Status != models.AuctionStatusEnded {
		return nil, &economy.StateError{Status: string(auction.Status)}
	}
	if auction.CurrentBidderID == "" {
		return nil, &economy.AuthorizationError{Reason: "auction ended with no bids"}
	}
	if requesterID != auction.CurrentBidderID {
		return nil, &economy.AuthorizationError{Reason: "only the winning bidder may claim"}
	}

	item, err := c.items.GetItem(ctx, auction.ItemID)
	if err != nil {
		return nil, err
	}

	upd := repositories.ClaimUpdate{
		AuctionID: auctionID,
		WinnerID:  requesterID,
	}
	if item.IsBox() {
		drawn, err := c.resolver.Resolve(item.RewardPool)
		if err != nil {
			return nil, err
		}
		upd.Prize = drawn
		if drawn.RewardType != models.RewardNothing {
			upd.Credit = &repositories.CreditOp{UserID: requesterID, Reward: *drawn}
		}
	}

	record, err := c.store.SetClaim(ctx, upd)
	if err != nil {
		var conflict *economy.ConflictError
		if errors.As(err, &conflict) {
			// Already claimed: idempotent success with the memoized prize.
			// A prize drawn above is discarded unpersisted, so nothing was
			// double-rolled or double-credited.
			existing, getErr := c.store.GetClaim(ctx, auctionID)
			if getErr != nil {
				return nil, getErr
			}
			return &Result{
				AuctionID: existing.AuctionID,
				WinnerID:  existing.WinnerID,
				Prize:     existing.Prize,
				ClaimedAt: existing.ClaimedAt,
			}, nil
		}
		return nil, err
	}

	c.publish(events.Event{
		Type:      events.EventAuctionClaimed,
		AuctionID: auctionID,
		UserID:    requesterID,
		Amount:    auction.CurrentPrice,
	})

	slog.Info("Auction claimed",
		slog.Int64("auction_id", auctionID),
		slog.String("winner_id", requesterID),
		slog.String("item_kind", string(item.Kind)))

	return &Result{
		AuctionID: record.AuctionID,
		WinnerID:  record.WinnerID,
		Prize:     record.Prize,
		ClaimedAt: record.ClaimedAt,
	}, nil
}

func (c *Coordinator) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}
