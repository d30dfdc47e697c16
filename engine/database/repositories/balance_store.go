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

// BalanceStore is the engine's contract with the user balance collaborator.
// Bids only check balances for sufficiency; the winner pays on claim, where
// the credit rides inside AuctionStore.SetClaim's transaction.
type BalanceStore interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	Credit(ctx context.Context, userID string, reward models.ResolvedPrize) error
}

type balanceStore struct {
	db *bun.DB
}

func NewBalanceStore(db *bun.DB) BalanceStore {
	return &balanceStore{db: db}
}

func (s *balanceStore) GetBalance(ctx context.Context, userID string) (int64, error) {
	user := new(models.User)
	err := s.db.NewSelect().
		Model(user).
		Column("balance").
		Where("id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return user.Balance, nil
}

func (s *balanceStore) Credit(ctx context.Context, userID string, reward models.ResolvedPrize) error {
	return creditUser(ctx, s.db, userID, reward)
}

// creditUser applies one reward grant. It runs against either the root DB or
// a claim transaction so SetClaim can make claim-flag and credit atomic.
func creditUser(ctx context.Context, db bun.IDB, userID string, reward models.ResolvedPrize) error {
	q := db.NewUpdate().Model((*models.User)(nil))

	switch reward.RewardType {
	case models.RewardCurrency:
		q = q.Set("balance = balance + ?", reward.Amount)
	case models.RewardExperience:
		q = q.Set("exp = exp + ?", reward.Amount)
	case models.RewardPowerUp:
		q = q.Set(
			"power_ups = jsonb_set(coalesce(power_ups, '{}'::jsonb), ARRAY[?], (coalesce(power_ups->>?, '0')::bigint + 1)::text::jsonb)",
			reward.PowerUpType, reward.PowerUpType)
	case models.RewardNothing:
		return nil
	default:
		return &economy.ValidationError{Field: "reward_type", Reason: "unknown reward type"}
	}

	res, err := q.
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to credit user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
