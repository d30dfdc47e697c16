package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/teamforge/auction-engine/engine/database/models"
	"github.com/teamforge/auction-engine/engine/economy"
)

var ErrNotFound = errors.New("not found")

// CreditOp credits a resolved reward to a user as part of a claim.
type CreditOp struct {
	UserID string
	Reward models.ResolvedPrize
}

// ClaimUpdate is applied by SetClaim as a single atomic unit: the claim row,
// the memoized prize and the reward credit either all land or none do.
type ClaimUpdate struct {
	AuctionID int64
	WinnerID  string
	Prize     *models.ResolvedPrize
	Credit    *CreditOp
}

// AuctionStore is the durable repository for auctions, bids and claims.
// Mutations are atomic per auction row; concurrent readers never observe a
// partial application.
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction *models.Auction) error
	GetAuction(ctx context.Context, id int64) (*models.Auction, error)
	ListAuctions(ctx context.Context) ([]*models.Auction, error)
	// DueTransitions returns auctions whose stored status lags the status
	// derived from now.
	DueTransitions(ctx context.Context, now time.Time) ([]*models.Auction, error)

	// AcceptBid applies a compare-and-set on the price field and appends the
	// bid to the audit trail as one atomic unit: either the price moves and
	// the bid row exists, or neither happened. It fails with
	// economy.ConflictError when expectedPrice is stale and with
	// economy.StateError when the auction is not active at write time.
	AcceptBid(ctx context.Context, id int64, expectedPrice int64, bid *models.Bid) error
	GetBids(ctx context.Context, auctionID int64) ([]*models.Bid, error)

	// TransitionStatus moves the auction from one status to the next. A
	// transition that was already applied is a no-op success.
	TransitionStatus(ctx context.Context, id int64, from, to models.AuctionStatus) error

	GetClaim(ctx context.Context, auctionID int64) (*models.ClaimRecord, error)
	// SetClaim fails with economy.ConflictError when the auction is already
	// claimed.
	SetClaim(ctx context.Context, upd ClaimUpdate) (*models.ClaimRecord, error)
}

type auctionStore struct {
	db *bun.DB
}

func NewAuctionStore(db *bun.DB) AuctionStore {
	return &auctionStore{db: db}
}

func (s *auctionStore) CreateAuction(ctx context.Context, auction *models.Auction) error {
	if !auction.EndTime.After(auction.StartTime) {
		return &economy.ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	// At most one non-ended auction per item.
	exists, err := tx.NewSelect().
		Model((*models.Auction)(nil)).
		Where("item_id = ? AND status != ?", auction.ItemID, models.AuctionStatusEnded).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check item availability: %w", err)
	}
	if exists {
		return &economy.ValidationError{Field: "item_id", Reason: "item already has a live auction"}
	}

	auction.Status = auction.StatusAt(time.Now())
	if auction.Status == models.AuctionStatusEnded {
		return &economy.ValidationError{Field: "end_time", Reason: "must be in the future"}
	}
	auction.CreatedAt = time.Now()
	auction.UpdatedAt = time.Now()

	if _, err := tx.NewInsert().Model(auction).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return tx.Commit()
}

func (s *auctionStore) GetAuction(ctx context.Context, id int64) (*models.Auction, error) {
	auction := new(models.Auction)
	err := s.db.NewSelect().
		Model(auction).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return auction, nil
}

func (s *auctionStore) ListAuctions(ctx context.Context) ([]*models.Auction, error) {
	var auctions []*models.Auction
	err := s.db.NewSelect().
		Model(&auctions).
		Order("end_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	return auctions, nil
}

func (s *auctionStore) DueTransitions(ctx context.Context, now time.Time) ([]*models.Auction, error) {
	var auctions []*models.Auction
	err := s.db.NewSelect().
		Model(&auctions).
		Where("(status = ? AND start_time <= ?) OR (status != ? AND end_time <= ?)",
			models.AuctionStatusScheduled, now,
			models.AuctionStatusEnded, now).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get due auctions: %w", err)
	}
	return auctions, nil
}

func (s *auctionStore) AcceptBid(ctx context.Context, id int64, expectedPrice int64, bid *models.Bid) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.NewUpdate().
		Model((*models.Auction)(nil)).
		Set("current_price = ?", bid.Amount).
		Set("current_bidder_id = ?", bid.BidderID).
		Set("last_bid_time = ?", time.Now()).
		Set("bid_count = bid_count + 1").
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND current_price = ? AND status = ?", id, expectedPrice, models.AuctionStatusActive).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update price: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Lost the race or the auction moved on; re-read to tell the caller
		// which. The deferred rollback discards the empty transaction.
		auction, err := s.GetAuction(ctx, id)
		if err != nil {
			return err
		}
		if auction.Status != models.AuctionStatusActive {
			return &economy.StateError{Status: string(auction.Status)}
		}
		return &economy.ConflictError{CurrentPrice: auction.CurrentPrice}
	}

	bid.AuctionID = id
	if bid.CreatedAt.IsZero() {
		bid.CreatedAt = time.Now()
	}
	if _, err := tx.NewInsert().Model(bid).Exec(ctx); err != nil {
		return fmt.Errorf("failed to append bid: %w", err)
	}
	return tx.Commit()
}

func (s *auctionStore) GetBids(ctx context.Context, auctionID int64) ([]*models.Bid, error) {
	var bids []*models.Bid
	err := s.db.NewSelect().
		Model(&bids).
		Where("auction_id = ?", auctionID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	return bids, nil
}

func (s *auctionStore) TransitionStatus(ctx context.Context, id int64, from, to models.AuctionStatus) error {
	res, err := s.db.NewUpdate().
		Model((*models.Auction)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND status = ?", id, from).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to transition status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	auction, err := s.GetAuction(ctx, id)
	if err != nil {
		return err
	}
	// Already at (or past) the target: a concurrent sweep won the race, which
	// counts as success.
	if auction.Status == to || to.Before(auction.Status) {
		return nil
	}
	return fmt.Errorf("auction %d is %s, cannot transition %s -> %s", id, auction.Status, from, to)
}

func (s *auctionStore) GetClaim(ctx context.Context, auctionID int64) (*models.ClaimRecord, error) {
	record := new(models.ClaimRecord)
	err := s.db.NewSelect().
		Model(record).
		Where("auction_id = ?", auctionID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return record, nil
}

func (s *auctionStore) SetClaim(ctx context.Context, upd ClaimUpdate) (*models.ClaimRecord, error) {
	record := &models.ClaimRecord{
		AuctionID: upd.AuctionID,
		WinnerID:  upd.WinnerID,
		Claimed:   true,
		Prize:     upd.Prize,
		ClaimedAt: time.Now(),
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (auction_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to set claim: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, &economy.ConflictError{}
	}

	if upd.Credit != nil {
		if err := creditUser(ctx, tx, upd.Credit.UserID, upd.Credit.Reward); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return record, nil
}
