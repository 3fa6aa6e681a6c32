package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/VoiceForge-io/voiceforge/internal/auth"
	"github.com/VoiceForge-io/voiceforge/internal/database"
	"github.com/VoiceForge-io/voiceforge/internal/upgrade"
)

func (api *Api) GetUpgradeHandler(w http.ResponseWriter, r *http.Request) {
	uid := auth.GetUID(r.Context())

	attempt, exists := api.flow.Get(uid)
	if exists {
		respondJSON(w, http.StatusOK, attempt)
		return
	}

	// No live attempt, but a past upgrade is still worth reporting.
	if account, err := database.GetOrCreateAccount(uid); err == nil && account.HasUpgraded() {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":   upgrade.StatusAlreadyPro,
			"order_id": account.GetLastOrderID(),
		})
		return
	}

	respondError(w, http.StatusNotFound, "No upgrade attempt in progress")
}

func (api *Api) CreateUpgradeOrderHandler(w http.ResponseWriter, r *http.Request) {
	uid := auth.GetUID(r.Context())

	attempt, order, err := api.flow.Begin(r.Context(), uid)
	if err != nil {
		respondError(w, http.StatusBadGateway, "Failed to start upgrade: "+err.Error())
		return
	}

	if attempt.Status == upgrade.StatusAlreadyPro {
		respondJSON(w, http.StatusOK, map[string]interface{}{"attempt": attempt})
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"attempt": attempt,
		"order":   order,
	})
}

func (api *Api) CaptureUpgradeHandler(w http.ResponseWriter, r *http.Request) {
	uid := auth.GetUID(r.Context())
	orderID := chi.URLParam(r, "orderID")

	attempt, err := api.flow.Capture(r.Context(), uid, orderID)
	if err != nil {
		if attempt == nil {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		if attempt.Status == upgrade.StatusFailed {
			// Money already captured; surface the support message, never
			// re-run the payment.
			respondJSON(w, http.StatusConflict, map[string]interface{}{
				"error":   err.Error(),
				"attempt": attempt,
			})
			return
		}
		// The payment itself failed; the attempt is still open.
		respondJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error":   err.Error(),
			"attempt": attempt,
		})
		return
	}

	respondJSON(w, http.StatusOK, attempt)
}

func (api *Api) RetryUpgradeHandler(w http.ResponseWriter, r *http.Request) {
	uid := auth.GetUID(r.Context())

	attempt, err := api.flow.Retry(uid)
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, attempt)
}

func (api *Api) CancelUpgradeHandler(w http.ResponseWriter, r *http.Request) {
	uid := auth.GetUID(r.Context())

	attempt := api.flow.Cancel(uid)
	if attempt == nil {
		respondError(w, http.StatusNotFound, "No upgrade attempt in progress")
		return
	}
	respondJSON(w, http.StatusOK, attempt)
}
