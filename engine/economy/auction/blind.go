package auction

import (
	"time"

	"github.com/teamforge/auction-engine/engine/database/models"
)

// DefaultBlindWindow is how long before end_time price and bidder are
// withheld from viewers.
const DefaultBlindWindow = 30 * time.Second

// View is the viewer-facing projection of an auction. During the blind
// phase CurrentPrice and CurrentBidderID carry placeholders; the real
// values keep flowing through bidding and lifecycle handling untouched.
type View struct {
	ID              int64                `json:"id"`
	AuctionCode     string               `json:"auction_code"`
	ItemID          int64                `json:"item_id"`
	ItemName        string               `json:"item_name,omitempty"`
	ItemKind        models.ItemKind      `json:"item_kind"`
	Status          models.AuctionStatus `json:"status"`
	CurrentPrice    int64                `json:"current_price"`
	CurrentBidderID string               `json:"current_bidder_id,omitempty"`
	Blind           bool                 `json:"blind"`
	BidCount        int                  `json:"bid_count"`
	StartTime       time.Time            `json:"start_time"`
	EndTime         time.Time            `json:"end_time"`
}

// InBlindPhase reports whether reads at now fall into the final window
// before end_time. The phase is a pure function of server time, so no
// client clock can move the boundary. It ends with the auction: once
// ended, the result is public.
func InBlindPhase(a *models.Auction, now time.Time, window time.Duration) bool {
	if a.Status != models.AuctionStatusActive {
		return false
	}
	return now.Before(a.EndTime) && a.EndTime.Sub(now) <= window
}

// BuildView projects an auction for viewers, suppressing price and bidder
// during the blind phase. Suppression applies uniformly to every viewer,
// including the current leader.
func BuildView(a *models.Auction, item *models.AuctionItem, now time.Time, window time.Duration) View {
	view := View{
		ID:              a.ID,
		AuctionCode:     a.AuctionCode,
		ItemID:          a.ItemID,
		Status:          a.Status,
		CurrentPrice:    a.CurrentPrice,
		CurrentBidderID: a.CurrentBidderID,
		BidCount:        a.BidCount,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
	}
	if item != nil {
		view.ItemName = item.Name
		view.ItemKind = item.Kind
	}

	if InBlindPhase(a, now, window) {
		view.Blind = true
		view.CurrentPrice = 0
		view.CurrentBidderID = ""
	}
	return view
}
