package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/teamforge/auction-engine/engine/economy"
)

type ItemKind string

const (
	ItemKindStandard   ItemKind = "standard"
	ItemKindMysteryBox ItemKind = "mystery_box"
	ItemKindPowerBox   ItemKind = "power_box"
)

type RewardType string

const (
	RewardCurrency   RewardType = "currency"
	RewardExperience RewardType = "experience"
	RewardPowerUp    RewardType = "power_up"
	RewardNothing    RewardType = "nothing"
)

// AuctionItem is an administrator-defined catalog entry. Immutable once an
// auction referencing it exists.
type AuctionItem struct {
	bun.BaseModel `bun:"table:auction_items,alias:ai"`

	ID            int64        `bun:"id,pk,autoincrement" json:"id"`
	Name          string       `bun:"name" json:"name"`
	Kind          ItemKind     `bun:"kind,notnull" json:"kind"`
	StartingPrice int64        `bun:"starting_price,notnull" json:"starting_price"`
	RewardPool    []BoxContent `bun:"reward_pool,type:jsonb" json:"reward_pool,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// BoxContent is one entry of a box item's reward pool. Weight is the relative
// draw probability.
type BoxContent struct {
	RewardType  RewardType `json:"reward_type"`
	Amount      int64      `json:"amount,omitempty"`
	PowerUpType string     `json:"power_up_type,omitempty"`
	Weight      int        `json:"weight"`
}

func (i *AuctionItem) IsBox() bool {
	return i.Kind == ItemKindMysteryBox || i.Kind == ItemKindPowerBox
}

func (i *AuctionItem) Validate() error {
	switch i.Kind {
	case ItemKindStandard:
		if i.Name == "" {
			return &economy.ValidationError{Field: "name", Reason: "required for standard items"}
		}
		if len(i.RewardPool) != 0 {
			return &economy.ValidationError{Field: "reward_pool", Reason: "only box items carry a reward pool"}
		}
	case ItemKindMysteryBox, ItemKindPowerBox:
		if len(i.RewardPool) == 0 {
			return &economy.ValidationError{Field: "reward_pool", Reason: "box items need at least one entry"}
		}
		total := 0
		for _, c := range i.RewardPool {
			if err := c.Validate(); err != nil {
				return err
			}
			total += c.Weight
		}
		if total <= 0 {
			return &economy.ValidationError{Field: "reward_pool", Reason: "total weight must be positive"}
		}
	default:
		return &economy.ValidationError{Field: "kind", Reason: "unknown item kind"}
	}
	if i.StartingPrice < 0 {
		return &economy.ValidationError{Field: "starting_price", Reason: "must not be negative"}
	}
	return nil
}

func (c BoxContent) Validate() error {
	if c.Weight <= 0 {
		return &economy.ValidationError{Field: "weight", Reason: "must be positive"}
	}
	switch c.RewardType {
	case RewardCurrency, RewardExperience:
		if c.Amount <= 0 {
			return &economy.ValidationError{Field: "amount", Reason: "required for currency/experience rewards"}
		}
	case RewardPowerUp:
		if c.PowerUpType == "" {
			return &economy.ValidationError{Field: "power_up_type", Reason: "required for power_up rewards"}
		}
	case RewardNothing:
	default:
		return &economy.ValidationError{Field: "reward_type", Reason: "unknown reward type"}
	}
	return nil
}
