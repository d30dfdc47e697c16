// Package memstore is an in-memory implementation of the store interfaces.
// It backs the demo binary and the concurrency tests; the serialization
// point is a per-store mutex, which gives the same atomicity guarantees the
// Postgres stores get from single-row conditional updates.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/teamforge/auction-engine/engine/database/models"
	"github.com/teamforge/auction-engine/engine/database/repositories"
	"github.com/teamforge/auction-engine/engine/economy"
)

type Store struct {
	mu       sync.Mutex
	nextID   int64
	auctions map[int64]*models.Auction
	bids     map[int64][]*models.Bid
	claims   map[int64]*models.ClaimRecord
	items    map[int64]*models.AuctionItem
	users    map[string]*models.User
}

var (
	_ repositories.AuctionStore = (*Store)(nil)
	_ repositories.ItemStore    = (*Store)(nil)
	_ repositories.BalanceStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		auctions: make(map[int64]*models.Auction),
		bids:     make(map[int64][]*models.Bid),
		claims:   make(map[int64]*models.ClaimRecord),
		items:    make(map[int64]*models.AuctionItem),
		users:    make(map[string]*models.User),
	}
}

func (s *Store) allocID() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateAuction(_ context.Context, auction *models.Auction) error {
	if !auction.EndTime.After(auction.StartTime) {
		return &economy.ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.auctions {
		if a.ItemID == auction.ItemID && a.Status != models.AuctionStatusEnded {
			return &economy.ValidationError{Field: "item_id", Reason: "item already has a live auction"}
		}
	}

	auction.Status = auction.StatusAt(time.Now())
	if auction.Status == models.AuctionStatusEnded {
		return &economy.ValidationError{Field: "end_time", Reason: "must be in the future"}
	}
	auction.ID = s.allocID()
	auction.CreatedAt = time.Now()
	auction.UpdatedAt = time.Now()
	cp := *auction
	s.auctions[cp.ID] = &cp
	return nil
}

func (s *Store) GetAuction(_ context.Context, id int64) (*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *auction
	return &cp, nil
}

func (s *Store) ListAuctions(_ context.Context) ([]*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

func (s *Store) DueTransitions(_ context.Context, now time.Time) ([]*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.Auction
	for _, a := range s.auctions {
		if a.Status != a.StatusAt(now) {
			cp := *a
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (s *Store) AcceptBid(_ context.Context, id int64, expectedPrice int64, bid *models.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if auction.Status != models.AuctionStatusActive {
		return &economy.StateError{Status: string(auction.Status)}
	}
	if auction.CurrentPrice != expectedPrice {
		return &economy.ConflictError{CurrentPrice: auction.CurrentPrice}
	}

	// The price move and the trail append happen under the same lock hold, so
	// no reader can see one without the other.
	auction.CurrentPrice = bid.Amount
	auction.CurrentBidderID = bid.BidderID
	auction.LastBidTime = time.Now()
	auction.BidCount++
	auction.UpdatedAt = time.Now()

	cp := *bid
	cp.ID = s.allocID()
	cp.AuctionID = id
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.bids[id] = append(s.bids[id], &cp)
	bid.ID = cp.ID
	return nil
}

func (s *Store) GetBids(_ context.Context, auctionID int64) ([]*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bids := s.bids[auctionID]
	out := make([]*models.Bid, len(bids))
	for i, b := range bids {
		cp := *b
		out[i] = &cp
	}
	return out, nil
}

func (s *Store) TransitionStatus(_ context.Context, id int64, from, to models.AuctionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if auction.Status == from {
		auction.Status = to
		auction.UpdatedAt = time.Now()
		return nil
	}
	// Applied by a concurrent sweep already.
	if auction.Status == to || to.Before(auction.Status) {
		return nil
	}
	return &economy.StateError{Status: string(auction.Status)}
}

func (s *Store) GetClaim(_ context.Context, auctionID int64) (*models.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.claims[auctionID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *record
	return &cp, nil
}

func (s *Store) SetClaim(_ context.Context, upd repositories.ClaimUpdate) (*models.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.claims[upd.AuctionID]; ok && existing.Claimed {
		return nil, &economy.ConflictError{}
	}

	if upd.Credit != nil {
		if err := s.creditLocked(upd.Credit.UserID, upd.Credit.Reward); err != nil {
			return nil, err
		}
	}

	record := &models.ClaimRecord{
		AuctionID: upd.AuctionID,
		WinnerID:  upd.WinnerID,
		Claimed:   true,
		Prize:     upd.Prize,
		ClaimedAt: time.Now(),
	}
	s.claims[upd.AuctionID] = record
	cp := *record
	return &cp, nil
}

func (s *Store) CreateItem(_ context.Context, item *models.AuctionItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item.ID = s.allocID()
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *Store) GetItem(_ context.Context, id int64) (*models.AuctionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *Store) GetBalance(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	return user.Balance, nil
}

func (s *Store) Credit(_ context.Context, userID string, reward models.ResolvedPrize) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creditLocked(userID, reward)
}

func (s *Store) creditLocked(userID string, reward models.ResolvedPrize) error {
	user, ok := s.users[userID]
	if !ok {
		user = &models.User{ID: userID, PowerUps: make(map[string]int), CreatedAt: time.Now()}
		s.users[userID] = user
	}

	switch reward.RewardType {
	case models.RewardCurrency:
		user.Balance += reward.Amount
	case models.RewardExperience:
		user.Exp += reward.Amount
	case models.RewardPowerUp:
		if user.PowerUps == nil {
			user.PowerUps = make(map[string]int)
		}
		user.PowerUps[reward.PowerUpType]++
	case models.RewardNothing:
	default:
		return &economy.ValidationError{Field: "reward_type", Reason: "unknown reward type"}
	}
	user.UpdatedAt = time.Now()
	return nil
}

// User returns a snapshot of a user's balances, for the demo binary and tests.
func (s *Store) User(userID string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return models.User{}, false
	}
	return *user, true
}
