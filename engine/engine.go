// Package engine wires the auction core of the TeamForge dashboard:
// stores, bid acceptance, lifecycle sweeps, prize claims and the
// notification bus.
package engine

import (
	"github.com/teamforge/auction-engine/engine/database"
	"github.com/teamforge/auction-engine/engine/database/repositories"
	"github.com/teamforge/auction-engine/engine/economy/auction"
	"github.com/teamforge/auction-engine/engine/economy/claim"
	"github.com/teamforge/auction-engine/engine/economy/prize"
	"github.com/teamforge/auction-engine/engine/events"
)

type App struct {
	Cfg     Config
	Version string
	Commit  string

	DB        *database.DB
	Auctions  repositories.AuctionStore
	Items     repositories.ItemStore
	Balances  repositories.BalanceStore
	Bus       *events.Bus
	Manager   *auction.Manager
	Scheduler *auction.Scheduler
	Claims    *claim.Coordinator
}

func New(cfg Config, version, commit string) *App {
	return &App{
		Cfg:     cfg,
		Version: version,
		Commit:  commit,
	}
}

// Setup builds every component on top of an opened database connection.
func (a *App) Setup(db *database.DB) {
	a.DB = db
	a.Auctions = repositories.NewAuctionStore(db.BunDB())
	a.Items = repositories.NewItemStore(db.BunDB())
	a.Balances = repositories.NewBalanceStore(db.BunDB())
	a.Bus = events.NewBus()
	a.Manager = auction.NewManager(a.Auctions, a.Items, a.Balances, a.Bus, a.Cfg.Auction.BlindWindow())
	a.Scheduler = auction.NewScheduler(a.Manager, a.Cfg.Auction.SweepInterval())
	a.Claims = claim.NewCoordinator(a.Auctions, a.Items, prize.NewResolver(), a.Bus)
}

func (a *App) Shutdown() {
	if a.Scheduler != nil {
		a.Scheduler.Shutdown()
	}
	if a.Bus != nil {
		a.Bus.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
