// Package quota holds the pure plan/usage decision logic. It performs no I/O;
// the caller loads the account record and applies the outcome at the store.
package quota

import (
	"errors"

	"github.com/VoiceForge-io/voiceforge/internal/models"
)

// DefaultFreeCap is the canonical free-tier character cap. The deployed
// configuration may override it; see config.Quota.FreeCap.
const DefaultFreeCap = 2000

// ErrInvalidRequest is returned when the requested character count is not a
// positive number. That is a caller error, not a quota denial.
var ErrInvalidRequest = errors.New("requested character count must be positive")

// DenyReasonFreeLimit is the reason attached to a free-tier denial.
const DenyReasonFreeLimit = "free limit exceeded"

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow is the positive decision.
var Allow = Decision{Allowed: true}

// Deny builds a negative decision carrying a reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// CanGenerate decides whether the account may generate requestedChars more
// characters under the given free cap. Pro accounts are never capped.
func CanGenerate(account *models.Account, requestedChars int64, freeCap int64) (Decision, error) {
	if requestedChars <= 0 {
		return Decision{}, ErrInvalidRequest
	}

	if account.IsPro() {
		return Allow, nil
	}

	if account.CharacterCount+requestedChars > freeCap {
		return Deny(DenyReasonFreeLimit), nil
	}
	return Allow, nil
}
