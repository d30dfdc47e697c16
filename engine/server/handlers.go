package server

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teamforge/auction-engine/engine/database/models"
	"github.com/teamforge/auction-engine/engine/events"
)

func parseAuctionID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid auction id")
	}
	return id, nil
}

func (s *Server) handleListAuctions(c *fiber.Ctx) error {
	views, err := s.manager.ListViews(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"auctions": views})
}

func (s *Server) handleGetAuction(c *fiber.Ctx) error {
	id, err := parseAuctionID(c)
	if err != nil {
		return err
	}
	view, err := s.manager.GetView(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(view)
}

func (s *Server) handleGetBids(c *fiber.Ctx) error {
	id, err := parseAuctionID(c)
	if err != nil {
		return err
	}
	bids, err := s.manager.Bids(c.Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"bids": bids})
}

type placeBidRequest struct {
	BidderID      string `json:"bidder_id"`
	Amount        int64  `json:"amount"`
	ObservedPrice int64  `json:"observed_price"`
}

func (s *Server) handlePlaceBid(c *fiber.Ctx) error {
	id, err := parseAuctionID(c)
	if err != nil {
		return err
	}
	var req placeBidRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.manager.PlaceBid(c.Context(), id, req.BidderID, req.Amount, req.ObservedPrice); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"accepted": true, "current_price": req.Amount})
}

type claimRequest struct {
	RequesterID string `json:"requester_id"`
}

func (s *Server) handleClaim(c *fiber.Ctx) error {
	id, err := parseAuctionID(c)
	if err != nil {
		return err
	}
	var req claimRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := s.claims.Claim(c.Context(), id, req.RequesterID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(result)
}

// handleEvents long-polls the notification bus for one auction. Delivery is
// best-effort; clients falling behind re-read the auction view.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	id, err := parseAuctionID(c)
	if err != nil {
		return err
	}

	timeout := 25 * time.Second
	if ms, err := strconv.Atoi(c.Query("timeout_ms")); err == nil && ms > 0 && ms <= 60000 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	ch, cancel := s.bus.Subscribe(id)
	defer cancel()

	collected := make([]events.Event, 0, 4)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev, ok := <-ch:
		if ok {
			collected = append(collected, ev)
		}
	case <-timer.C:
	case <-c.Context().Done():
	}

	// Drain whatever else arrived without waiting again.
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return c.JSON(fiber.Map{"events": collected})
			}
			collected = append(collected, ev)
		default:
			return c.JSON(fiber.Map{"events": collected})
		}
	}
}

func (s *Server) handleCreateItem(c *fiber.Ctx) error {
	var item models.AuctionItem
	if err := c.BodyParser(&item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.items.CreateItem(c.Context(), &item); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

type scheduleAuctionRequest struct {
	ItemID    int64     `json:"item_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func (s *Server) handleScheduleAuction(c *fiber.Ctx) error {
	var req scheduleAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	auction, err := s.manager.ScheduleAuction(c.Context(), req.ItemID, req.StartTime, req.EndTime)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(auction)
}

type creditRequest struct {
	UserID string               `json:"user_id"`
	Reward models.ResolvedPrize `json:"reward"`
}

func (s *Server) handleCredit(c *fiber.Ctx) error {
	var req creditRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}

	if err := s.balances.Credit(c.Context(), req.UserID, req.Reward); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"credited": true})
}
