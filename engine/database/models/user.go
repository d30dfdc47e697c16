package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User carries only the balance-side fields the auction engine touches. The
// rest of the dashboard's user profile lives with the identity service.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       string         `bun:"id,pk" json:"id"`
	Username string         `bun:"username" json:"username"`
	Balance  int64          `bun:"balance,notnull,default:0" json:"balance"`
	Exp      int64          `bun:"exp,notnull,default:0" json:"exp"`
	PowerUps map[string]int `bun:"power_ups,type:jsonb" json:"power_ups"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}
