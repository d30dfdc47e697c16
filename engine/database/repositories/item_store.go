package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/teamforge/auction-engine/engine/database/models"
)

// ItemStore manages the administrator-defined item catalog. Items are
// treated as immutable once an auction references them, so there is no
// update path.
type ItemStore interface {
	CreateItem(ctx context.Context, item *models.AuctionItem) error
	GetItem(ctx context.Context, id int64) (*models.AuctionItem, error)
}

type itemStore struct {
	db *bun.DB
}

func NewItemStore(db *bun.DB) ItemStore {
	return &itemStore{db: db}
}

func (s *itemStore) CreateItem(ctx context.Context, item *models.AuctionItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()

	if _, err := s.db.NewInsert().Model(item).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

func (s *itemStore) GetItem(ctx context.Context, id int64) (*models.AuctionItem, error) {
	item := new(models.AuctionItem)
	err := s.db.NewSelect().
		Model(item).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}
