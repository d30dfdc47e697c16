// Package server exposes the auction engine over HTTP for the dashboard's
// presentation layer.
package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teamforge/auction-engine/engine/database/repositories"
	"github.com/teamforge/auction-engine/engine/economy"
	"github.com/teamforge/auction-engine/engine/economy/auction"
	"github.com/teamforge/auction-engine/engine/economy/claim"
	"github.com/teamforge/auction-engine/engine/events"
	"github.com/teamforge/auction-engine/engine/logger"
)

type Server struct {
	app      *fiber.App
	manager  *auction.Manager
	claims   *claim.Coordinator
	items    repositories.ItemStore
	balances repositories.BalanceStore
	bus      *events.Bus
}

func New(manager *auction.Manager, claims *claim.Coordinator, items repositories.ItemStore, balances repositories.BalanceStore, bus *events.Bus) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "teamforge-auction-engine",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(requestLogger)

	s := &Server{
		app:      app,
		manager:  manager,
		claims:   claims,
		items:    items,
		balances: balances,
		bus:      bus,
	}
	s.registerRoutes()
	return s
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	logger.LogRequest(c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start))
	return err
}

func (s *Server) registerRoutes() {
	api := s.app.Group("/api")

	api.Get("/auctions", s.handleListAuctions)
	api.Get("/auctions/:id", s.handleGetAuction)
	api.Get("/auctions/:id/bids", s.handleGetBids)
	api.Get("/auctions/:id/events", s.handleEvents)
	api.Post("/auctions/:id/bids", s.handlePlaceBid)
	api.Post("/auctions/:id/claim", s.handleClaim)

	admin := api.Group("/admin")
	admin.Post("/items", s.handleCreateItem)
	admin.Post("/auctions", s.handleScheduleAuction)
	admin.Post("/credits", s.handleCredit)
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// writeError maps the domain error taxonomy onto HTTP statuses. Bid
// conflicts carry the fresh price so the client can counter-bid without a
// second round trip.
func writeError(c *fiber.Ctx, err error) error {
	var (
		validation *economy.ValidationError
		conflict   *economy.ConflictError
		state      *economy.StateError
		authz      *economy.AuthorizationError
	)
	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": validation.Error(),
			"field": validation.Field,
		})
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":         conflict.Error(),
			"current_price": conflict.CurrentPrice,
		})
	case errors.As(err, &state):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  state.Error(),
			"status": state.Status,
		})
	case errors.As(err, &authz):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": authz.Error(),
		})
	case errors.Is(err, repositories.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not found",
		})
	default:
		logger.LogError("Unhandled API error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}
}
