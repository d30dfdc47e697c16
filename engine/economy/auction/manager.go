package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/teamforge/auction-engine/engine/database/models"
	"github.com/teamforge/auction-engine/engine/database/repositories"
	"github.com/teamforge/auction-engine/engine/economy"
	"github.com/teamforge/auction-engine/engine/events"
)

const itemCacheSize = 4096

// Manager accepts bids and serves gated auction views. All auction state
// lives in the store; conflicting writers are serialized by its conditional
// updates, never by locks held here.
type Manager struct {
	store       repositories.AuctionStore
	items       repositories.ItemStore
	balances    repositories.BalanceStore
	bus         *events.Bus
	itemCache   *lru.Cache
	blindWindow time.Duration
}

func NewManager(store repositories.AuctionStore, items repositories.ItemStore, balances repositories.BalanceStore, bus *events.Bus, blindWindow time.Duration) *Manager {
	if store == nil {
		panic("auction store cannot be nil")
	}
	if items == nil {
		panic("item store cannot be nil")
	}
	if balances == nil {
		panic("balance store cannot be nil")
	}
	if blindWindow <= 0 {
		blindWindow = DefaultBlindWindow
	}

	cache, _ := lru.New(itemCacheSize)
	return &Manager{
		store:       store,
		items:       items,
		balances:    balances,
		bus:         bus,
		itemCache:   cache,
		blindWindow: blindWindow,
	}
}

// ScheduleAuction creates an auction for a catalog item. The item definition
// becomes immutable from here on.
func (m *Manager) ScheduleAuction(ctx context.Context, itemID int64, startTime, endTime time.Time) (*models.Auction, error) {
	item, err := m.getItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, &economy.ValidationError{Field: "item_id", Reason: "unknown item"}
		}
		return nil, err
	}

	code, err := generateAuctionCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate auction code: %w", err)
	}

	auction := &models.Auction{
		AuctionCode:  code,
		ItemID:       item.ID,
		CurrentPrice: item.StartingPrice,
		StartTime:    startTime,
		EndTime:      endTime,
	}
	if err := m.store.CreateAuction(ctx, auction); err != nil {
		return nil, err
	}

	if auction.Status == models.AuctionStatusActive {
		m.publish(events.Event{Type: events.EventAuctionStarted, AuctionID: auction.ID})
	}

	slog.Info("Auction scheduled",
		slog.String("auction_code", auction.AuctionCode),
		slog.Int64("item_id", item.ID),
		slog.Time("start_time", startTime),
		slog.Time("end_time", endTime))

	return auction, nil
}

// PlaceBid validates and applies one bid. observedPrice is the price the
// bidder saw; it doubles as the compare-and-set expectation, so two bidders
// racing from the same stale price cannot both win. Conflicts are returned
// to the caller with the fresh price, never retried here.
func (m *Manager) PlaceBid(ctx context.Context, auctionID int64, bidderID string, amount, observedPrice int64) error {
	if bidderID == "" {
		return &economy.ValidationError{Field: "bidder_id", Reason: "required"}
	}
	if amount <= observedPrice {
		return &economy.ValidationError{Field: "amount", Reason: "must exceed the observed price"}
	}

	auction, err := m.store.GetAuction(ctx, auctionID)
	if err != nil {
		return err
	}
	auction, err = m.activateIfDue(ctx, auction, time.Now())
	if err != nil {
		return err
	}
	if auction.Status != models.AuctionStatusActive {
		return &economy.StateError{Status: string(auction.Status)}
	}

	// Sufficiency only; the winner pays on claim.
	balance, err := m.balances.GetBalance(ctx, bidderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return &economy.ValidationError{Field: "bidder_id", Reason: "unknown user"}
		}
		return err
	}
	if amount > balance {
		return &economy.ValidationError{Field: "amount", Reason: "exceeds available balance"}
	}

	// The store re-checks active status at the moment of the write, so a bid
	// racing the scheduler's end transition fails with StateError here. The
	// price move and the trail row land atomically; a rejected bid leaves no
	// trace in either.
	bid := &models.Bid{
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: time.Now(),
	}
	if err := m.store.AcceptBid(ctx, auctionID, observedPrice, bid); err != nil {
		return err
	}

	m.publish(events.Event{
		Type:      events.EventBidAccepted,
		AuctionID: auctionID,
		UserID:    bidderID,
		Amount:    amount,
	})

	slog.Info("Bid accepted",
		slog.Int64("auction_id", auctionID),
		slog.String("bidder_id", bidderID),
		slog.Int64("amount", amount))

	return nil
}

// GetView returns the viewer-facing state of one auction, with the blind
// gate applied. The stored status is synced on the read path so no client
// clock decides the phase.
func (m *Manager) GetView(ctx context.Context, auctionID int64) (*View, error) {
	auction, err := m.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	auction, err = m.SyncStatus(ctx, auction, now)
	if err != nil {
		return nil, err
	}

	item, err := m.getItem(ctx, auction.ItemID)
	if err != nil {
		return nil, err
	}

	view := BuildView(auction, item, now, m.blindWindow)
	return &view, nil
}

// ListViews returns all auctions as gated views, soonest-ending first.
func (m *Manager) ListViews(ctx context.Context) ([]View, error) {
	auctions, err := m.store.ListAuctions(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	views := make([]View, 0, len(auctions))
	for _, auction := range auctions {
		auction, err = m.SyncStatus(ctx, auction, now)
		if err != nil {
			return nil, err
		}
		item, err := m.getItem(ctx, auction.ItemID)
		if err != nil {
			return nil, err
		}
		views = append(views, BuildView(auction, item, now, m.blindWindow))
	}
	return views, nil
}

// Bids exposes the append-only audit trail.
func (m *Manager) Bids(ctx context.Context, auctionID int64) ([]*models.Bid, error) {
	if _, err := m.store.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return m.store.GetBids(ctx, auctionID)
}

// getItem serves item definitions through an LRU cache; items are immutable
// once auctioned, so entries never go stale.
func (m *Manager) getItem(ctx context.Context, itemID int64) (*models.AuctionItem, error) {
	if cached, ok := m.itemCache.Get(itemID); ok {
		return cached.(*models.AuctionItem), nil
	}
	item, err := m.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	m.itemCache.Add(itemID, item)
	return item, nil
}

func (m *Manager) publish(ev events.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}
