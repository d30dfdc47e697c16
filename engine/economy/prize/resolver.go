// Package prize draws box rewards. A draw is pure chance over the pool's
// weights; making sure a draw happens at most once per auction is the claim
// coordinator's job, which persists the outcome atomically with the claim.
package prize

import (
	"math/rand"
	"sync"
	"time"

	"github.com/teamforge/auction-engine/engine/database/models"
	"github.com/teamforge/auction-engine/engine/economy"
)

type Resolver struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewResolver() *Resolver {
	return NewResolverWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewResolverWithSource allows a seeded source for deterministic tests.
func NewResolverWithSource(src rand.Source) *Resolver {
	return &Resolver{rng: rand.New(src)}
}

// Resolve draws one entry with probability weight/totalWeight.
func (r *Resolver) Resolve(pool []models.BoxContent) (*models.ResolvedPrize, error) {
	if len(pool) == 0 {
		return nil, &economy.ValidationError{Field: "reward_pool", Reason: "cannot draw from an empty pool"}
	}

	totalWeight := 0
	for _, c := range pool {
		if c.Weight <= 0 {
			return nil, &economy.ValidationError{Field: "weight", Reason: "must be positive"}
		}
		totalWeight += c.Weight
	}

	r.mu.Lock()
	roll := r.rng.Intn(totalWeight)
	r.mu.Unlock()

	current := 0
	for _, c := range pool {
		current += c.Weight
		if roll < current {
			return &models.ResolvedPrize{
				RewardType:  c.RewardType,
				Amount:      c.Amount,
				PowerUpType: c.PowerUpType,
			}, nil
		}
	}

	// Unreachable: roll < totalWeight and the walk covers every weight.
	last := pool[len(pool)-1]
	return &models.ResolvedPrize{
		RewardType:  last.RewardType,
		Amount:      last.Amount,
		PowerUpType: last.PowerUpType,
	}, nil
}
