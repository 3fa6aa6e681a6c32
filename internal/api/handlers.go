package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/VoiceForge-io/voiceforge/internal/auth"
	"github.com/VoiceForge-io/voiceforge/internal/database"
	"github.com/VoiceForge-io/voiceforge/internal/models"
	"github.com/VoiceForge-io/voiceforge/internal/quota"
	"github.com/VoiceForge-io/voiceforge/internal/tts"
)

// defaultVoiceID is the stock narration voice used when the client does not
// pick one.
const defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type generateRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
}

func (api *Api) GenerateVoiceHandler(w http.ResponseWriter, r *http.Request) {
	uid := auth.GetUID(r.Context())

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		respondError(w, http.StatusBadRequest, "Text is required")
		return
	}
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = defaultVoiceID
	}

	chars := int64(utf8.RuneCountInString(text))

	// Free plans roll their usage window monthly; stamp before reading.
	if err := database.MaybeResetQuota(uid, time.Now().UTC()); err != nil {
		log.Printf("[API] Warning: quota reset check failed for %s: %v", uid, err)
	}

	// A failed read degrades to the default record instead of blocking the
	// user; the conditional increment below still fails closed when the
	// store is actually down.
	account, err := database.GetOrCreateAccount(uid)
	if err != nil {
		log.Printf("[API] ERROR: account read failed for %s, degrading to Free/0: %v", uid, err)
		account = &models.Account{UID: uid, Plan: models.PlanFree}
	}

	decision, err := quota.CanGenerate(account, chars, api.freeCap())
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid generation request")
		return
	}
	if !decision.Allowed {
		respondJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":            "Free character limit exceeded. Upgrade to Pro for unlimited generations.",
			"reason":           decision.Reason,
			"upgrade_required": true,
		})
		return
	}

	audio, err := api.synth.Synthesize(r.Context(), text, voiceID)
	if err != nil {
		api.respondSynthesisError(w, err)
		return
	}

	// The pre-check above is advisory; the conditional increment is what
	// actually holds the cap under concurrent generations.
	account, err = database.IncrementUsageWithCap(uid, chars, api.freeCap())
	if err != nil {
		if errors.Is(err, database.ErrQuotaExceeded) {
			respondJSON(w, http.StatusForbidden, map[string]interface{}{
				"error":            "Free character limit exceeded. Upgrade to Pro for unlimited generations.",
				"reason":           quota.DenyReasonFreeLimit,
				"upgrade_required": true,
			})
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to record usage")
		return
	}

	entryID := uuid.New().String()
	audioURL := api.storeAudio(r.Context(), uid, entryID, audio)

	// History is best-effort bookkeeping: a failed append must not take the
	// already-synthesized audio down with it.
	go func() {
		if _, err := database.CreateGenerationWithID(entryID, uid, text, audioURL); err != nil {
			log.Printf("[API] Warning: failed to append history entry for %s: %v", uid, err)
		}
	}()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Entry-Id", entryID)
	w.Header().Set("X-Character-Count", strconv.FormatInt(chars, 10))
	w.Header().Set("X-Characters-Remaining", strconv.FormatInt(remaining(account, api.freeCap()), 10))
	w.WriteHeader(http.StatusOK)
	w.Write(audio.Data)
}

// remaining reports free-tier headroom; Pro accounts are uncapped.
func remaining(account *models.Account, freeCap int64) int64 {
	if account.IsPro() {
		return -1
	}
	left := freeCap - account.CharacterCount
	if left < 0 {
		left = 0
	}
	return left
}

// storeAudio uploads the clip when object storage is configured and falls
// back to an inline data URI otherwise.
func (api *Api) storeAudio(ctx context.Context, uid, entryID string, audio *tts.Audio) string {
	if api.store != nil {
		result, err := api.store.UploadAudio(ctx, uid, entryID, audio.Data)
		if err == nil {
			return result.URL
		}
		log.Printf("[API] Warning: audio upload failed for %s, inlining clip: %v", uid, err)
	}
	return "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(audio.Data)
}

func (api *Api) respondSynthesisError(w http.ResponseWriter, err error) {
	var upstream *tts.UpstreamError
	switch {
	case errors.Is(err, tts.ErrNotConfigured):
		respondError(w, http.StatusInternalServerError, "Voice service is not configured")
	case errors.Is(err, tts.ErrTimeout):
		respondError(w, http.StatusGatewayTimeout, "Voice generation timed out")
	case errors.As(err, &upstream):
		respondJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":  "Voice generation failed",
			"detail": upstream.Detail,
			"status": upstream.StatusCode,
		})
	case errors.Is(err, tts.ErrEmptyAudio):
		respondError(w, http.StatusBadGateway, "Voice service returned no audio")
	default:
		respondError(w, http.StatusInternalServerError, "Voice generation failed")
	}
}

func (api *Api) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	uid := auth.GetUID(r.Context())

	if err := database.MaybeResetQuota(uid, time.Now().UTC()); err != nil {
		log.Printf("[API] Warning: quota reset check failed for %s: %v", uid, err)
	}

	account, err := database.GetOrCreateAccount(uid)
	if err != nil {
		log.Printf("[API] ERROR: account read failed for %s, degrading to Free/0: %v", uid, err)
		account = &models.Account{UID: uid, Plan: models.PlanFree}
	}

	respondJSON(w, http.StatusOK, account.Snapshot(api.freeCap()))
}

// WatchAccountHandler streams account snapshots over SSE so clients can
// reflect quota changes without polling.
func (api *Api) WatchAccountHandler(w http.ResponseWriter, r *http.Request) {
	uid := auth.GetUID(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := make(chan models.Snapshot, 8)
	unsubscribe := api.registry.Subscribe(uid, func(snapshot models.Snapshot) {
		select {
		case events <- snapshot:
		default:
			// Slow consumer: drop, the next snapshot carries full state.
		}
	})
	defer unsubscribe()

	writeEvent := func(snapshot models.Snapshot) {
		data, err := json.Marshal(snapshot)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	if account, err := database.GetOrCreateAccount(uid); err == nil {
		writeEvent(account.Snapshot(api.freeCap()))
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot := <-events:
			writeEvent(snapshot)
		}
	}
}

func (api *Api) ListHistoryHandler(w http.ResponseWriter, r *http.Request) {
	uid := auth.GetUID(r.Context())

	entries, err := database.GetGenerationsByUID(uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	if q := r.URL.Query().Get("q"); q != "" {
		entries = database.FilterGenerationsByText(entries, q)
	}
	if entries == nil {
		entries = []*models.Generation{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// HistoryAudioHandler resolves a playable URL for one history entry. Stored
// clips get a time-limited presigned link; inlined clips return as-is.
func (api *Api) HistoryAudioHandler(w http.ResponseWriter, r *http.Request) {
	uid := auth.GetUID(r.Context())
	entryID := chi.URLParam(r, "entryID")

	entry, err := database.GetGenerationByID(uid, entryID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "History entry not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load history entry")
		return
	}

	if !entry.HasAudio() {
		respondError(w, http.StatusNotFound, "History entry has no audio")
		return
	}

	if api.store != nil && strings.HasPrefix(entry.AudioURL, "http") {
		url, err := api.store.PresignAudio(r.Context(), uid, entryID, 15*time.Minute)
		if err != nil {
			log.Printf("[API] Warning: presign failed for entry %s, returning stored URL: %v", entryID, err)
		} else {
			respondJSON(w, http.StatusOK, map[string]string{"url": url})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": entry.AudioURL})
}

func (api *Api) DeleteHistoryHandler(w http.ResponseWriter, r *http.Request) {
	uid := auth.GetUID(r.Context())
	entryID := chi.URLParam(r, "entryID")

	entry, err := database.GetGenerationByID(uid, entryID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "History entry not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to delete history entry")
		return
	}

	if err := database.DeleteGeneration(uid, entryID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "History entry not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to delete history entry")
		return
	}

	// Deleting an entry never refunds quota; the characters were spoken.
	if api.store != nil && strings.HasPrefix(entry.AudioURL, "http") {
		go func() {
			if err := api.store.DeleteAudio(context.Background(), uid, entryID); err != nil {
				log.Printf("[API] Warning: failed to delete stored audio for entry %s: %v", entryID, err)
			}
		}()
	}

	log.Printf("[API] Deleted history entry %s for %s (%s)", entryID, uid, entry.TextSummary())
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "entry_id": entryID})
}
