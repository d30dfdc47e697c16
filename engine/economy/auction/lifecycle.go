package auction

import (
	"context"
	"log/slog"
	"time"

	"github.com/teamforge/auction-engine/engine/database/models"
	"github.com/teamforge/auction-engine/engine/events"
)

// SyncStatus advances an auction's stored status to the one derived from
// now, one transition at a time. Transitions are idempotent at the store
// level, so concurrent syncs from the sweep and from read paths interleave
// safely; losing a transition race counts as success. Returns the re-read
// auction.
func (m *Manager) SyncStatus(ctx context.Context, a *models.Auction, now time.Time) (*models.Auction, error) {
	derived := a.StatusAt(now)
	if a.Status == derived {
		return a, nil
	}

	if a.Status == models.AuctionStatusScheduled {
		if err := m.store.TransitionStatus(ctx, a.ID, models.AuctionStatusScheduled, models.AuctionStatusActive); err != nil {
			return nil, err
		}
		m.publish(events.Event{Type: events.EventAuctionStarted, AuctionID: a.ID})
		slog.Info("Auction activated",
			slog.Int64("auction_id", a.ID),
			slog.String("auction_code", a.AuctionCode))
	}

	if derived == models.AuctionStatusEnded {
		if err := m.store.TransitionStatus(ctx, a.ID, models.AuctionStatusActive, models.AuctionStatusEnded); err != nil {
			return nil, err
		}

		// The flip freezes (current_price, current_bidder_id) as the result:
		// every later bid fails the store's status guard.
		final, err := m.store.GetAuction(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		m.publish(events.Event{
			Type:      events.EventAuctionEnded,
			AuctionID: final.ID,
			UserID:    final.CurrentBidderID,
			Amount:    final.CurrentPrice,
		})
		slog.Info("Auction ended",
			slog.Int64("auction_id", final.ID),
			slog.String("auction_code", final.AuctionCode),
			slog.String("winner_id", final.CurrentBidderID),
			slog.Int64("final_price", final.CurrentPrice))
		return final, nil
	}

	return m.store.GetAuction(ctx, a.ID)
}

// activateIfDue applies only the scheduled -> active transition on the bid
// path. Ending is left to the sweep so a bid landing at end_time is judged
// by whether the scheduler already flipped the auction, not by this read.
func (m *Manager) activateIfDue(ctx context.Context, a *models.Auction, now time.Time) (*models.Auction, error) {
	if a.Status != models.AuctionStatusScheduled || a.StatusAt(now) == models.AuctionStatusScheduled {
		return a, nil
	}
	if err := m.store.TransitionStatus(ctx, a.ID, models.AuctionStatusScheduled, models.AuctionStatusActive); err != nil {
		return nil, err
	}
	m.publish(events.Event{Type: events.EventAuctionStarted, AuctionID: a.ID})
	return m.store.GetAuction(ctx, a.ID)
}
