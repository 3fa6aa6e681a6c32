package quota

import (
	"testing"

	"github.com/VoiceForge-io/voiceforge/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCanGenerate(t *testing.T) {
	t.Run("Free under cap", func(t *testing.T) {
		account := &models.Account{UID: "u1", Plan: models.PlanFree, CharacterCount: 100}
		decision, err := CanGenerate(account, 100, 2000)
		assert.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("Free exactly at cap", func(t *testing.T) {
		account := &models.Account{UID: "u1", Plan: models.PlanFree, CharacterCount: 1990}
		decision, err := CanGenerate(account, 10, 2000)
		assert.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("Free over cap", func(t *testing.T) {
		account := &models.Account{UID: "u1", Plan: models.PlanFree, CharacterCount: 1990}
		decision, err := CanGenerate(account, 11, 2000)
		assert.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, DenyReasonFreeLimit, decision.Reason)
	})

	t.Run("Pro never capped", func(t *testing.T) {
		account := &models.Account{UID: "u1", Plan: models.PlanPro, CharacterCount: 1000000}
		decision, err := CanGenerate(account, 5000, 2000)
		assert.NoError(t, err)
		assert.True(t, decision.Allowed)
	})

	t.Run("Zero request is caller error", func(t *testing.T) {
		account := &models.Account{UID: "u1", Plan: models.PlanFree}
		_, err := CanGenerate(account, 0, 2000)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("Negative request is caller error", func(t *testing.T) {
		account := &models.Account{UID: "u1", Plan: models.PlanPro}
		_, err := CanGenerate(account, -5, 2000)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	// Scenario from the quota design review: 190 used against a 200 cap.
	t.Run("Boundary scenario cap 200", func(t *testing.T) {
		account := &models.Account{UID: "u1", Plan: models.PlanFree, CharacterCount: 190}

		decision, err := CanGenerate(account, 15, 200)
		assert.NoError(t, err)
		assert.False(t, decision.Allowed)

		decision, err = CanGenerate(account, 10, 200)
		assert.NoError(t, err)
		assert.True(t, decision.Allowed)
	})
}
