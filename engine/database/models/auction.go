package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AuctionStatus string

const (
	AuctionStatusScheduled AuctionStatus = "scheduled"
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnded     AuctionStatus = "ended"
)

// rank orders statuses for the one-way lifecycle check.
func (s AuctionStatus) rank() int {
	switch s {
	case AuctionStatusScheduled:
		return 0
	case AuctionStatusActive:
		return 1
	case AuctionStatusEnded:
		return 2
	}
	return -1
}

// Before reports whether s precedes other in the lifecycle order
// scheduled < active < ended.
func (s AuctionStatus) Before(other AuctionStatus) bool {
	return s.rank() < other.rank()
}

type Auction struct {
	bun.BaseModel `bun:"table:auctions,alias:a"`

	ID              int64         `bun:"id,pk,autoincrement" json:"id"`
	AuctionCode     string        `bun:"auction_code,notnull,unique" json:"auction_code"`
	ItemID          int64         `bun:"item_id,notnull" json:"item_id"`
	CurrentPrice    int64         `bun:"current_price,notnull" json:"current_price"`
	CurrentBidderID string        `bun:"current_bidder_id" json:"current_bidder_id"`
	Status          AuctionStatus `bun:"status,notnull" json:"status"`
	StartTime       time.Time     `bun:"start_time,notnull" json:"start_time"`
	EndTime         time.Time     `bun:"end_time,notnull" json:"end_time"`

	LastBidTime time.Time `bun:"last_bid_time" json:"last_bid_time"`
	BidCount    int       `bun:"bid_count" json:"bid_count"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// StatusAt derives the wall-clock status of the auction. The stored status
// may lag behind it until the scheduler (or a read-path sync) catches up.
func (a *Auction) StatusAt(now time.Time) AuctionStatus {
	switch {
	case now.Before(a.StartTime):
		return AuctionStatusScheduled
	case now.Before(a.EndTime):
		return AuctionStatusActive
	default:
		return AuctionStatusEnded
	}
}

// Bid is an append-only audit record. Rows are never mutated or deleted.
type Bid struct {
	bun.BaseModel `bun:"table:auction_bids,alias:ab"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	AuctionID int64     `bun:"auction_id,notnull" json:"auction_id"`
	BidderID  string    `bun:"bidder_id,notnull" json:"bidder_id"`
	Amount    int64     `bun:"amount,notnull" json:"amount"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
