package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ClaimRecord marks an auction's reward as delivered. One row per auction,
// created on the first successful claim; absence means "not yet claimed".
type ClaimRecord struct {
	bun.BaseModel `bun:"table:auction_claims,alias:ac"`

	AuctionID int64          `bun:"auction_id,pk" json:"auction_id"`
	WinnerID  string         `bun:"winner_id,notnull" json:"winner_id"`
	Claimed   bool           `bun:"claimed,notnull" json:"claimed"`
	Prize     *ResolvedPrize `bun:"prize,type:jsonb" json:"prize,omitempty"`
	ClaimedAt time.Time      `bun:"claimed_at,notnull" json:"claimed_at"`
}

// ResolvedPrize is the memoized outcome of a box draw. Set exactly once;
// nil for standard items, whose prize is the item itself.
type ResolvedPrize struct {
	RewardType  RewardType `json:"reward_type"`
	Amount      int64      `json:"amount,omitempty"`
	PowerUpType string     `json:"power_up_type,omitempty"`
}
