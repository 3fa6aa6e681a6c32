package models

import (
	"time"
)

type Plan string

const (
	PlanFree Plan = "Free"
	PlanPro  Plan = "Pro"
)

// Account represents the per-user plan and usage record
type Account struct {
	UID            string     `json:"uid" db:"uid"`
	Plan           Plan       `json:"plan" db:"plan"`
	CharacterCount int64      `json:"character_count" db:"character_count"`
	UpgradedAt     *time.Time `json:"upgraded_at,omitempty" db:"upgraded_at"`
	LastOrderID    *string    `json:"last_order_id,omitempty" db:"last_order_id"`
	LastResetAt    *time.Time `json:"last_reset_at,omitempty" db:"last_reset_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// IsPro returns true if the account is on the paid plan
func (a *Account) IsPro() bool {
	return a.Plan == PlanPro
}

// HasUpgraded checks if the account ever completed a plan upgrade
func (a *Account) HasUpgraded() bool {
	return a.UpgradedAt != nil
}

// GetLastOrderID returns the payment reference of the upgrade or empty string
func (a *Account) GetLastOrderID() string {
	if a.LastOrderID == nil {
		return ""
	}
	return *a.LastOrderID
}

// Snapshot is the immutable view of an account published to subscribers
// and returned by the account endpoint.
type Snapshot struct {
	UID            string `json:"uid"`
	Plan           Plan   `json:"plan"`
	CharacterCount int64  `json:"character_count"`
	FreeCap        int64  `json:"free_cap"`
}

// Snapshot builds an immutable snapshot of the account against a cap.
func (a *Account) Snapshot(freeCap int64) Snapshot {
	return Snapshot{
		UID:            a.UID,
		Plan:           a.Plan,
		CharacterCount: a.CharacterCount,
		FreeCap:        freeCap,
	}
}
