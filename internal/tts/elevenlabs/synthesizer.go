package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/VoiceForge-io/voiceforge/internal/tts"
)

const defaultModelID = "eleven_monolingual_v1"

// Synthesizer implements tts.Synthesizer against the ElevenLabs API.
type Synthesizer struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewSynthesizer creates an ElevenLabs synthesizer. An empty apiKey is
// allowed at construction; Synthesize reports the configuration error per
// request so the server can still boot without credentials.
func NewSynthesizer(apiKey, baseURL string, timeout time.Duration) *Synthesizer {
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Synthesizer{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts text to mp3 audio bytes using the given voice.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voiceID string) (*tts.Audio, error) {
	if s.apiKey == "" {
		log.Printf("[TTS] Missing ElevenLabs API key")
		return nil, tts.ErrNotConfigured
	}

	payload := synthesisRequest{
		Text:    text,
		ModelID: defaultModelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	reqCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", s.baseURL, voiceID)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			log.Printf("[TTS] Synthesis timed out after %v", time.Since(start))
			return nil, tts.ErrTimeout
		}
		return nil, fmt.Errorf("synthesis request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Printf("[TTS] ElevenLabs API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		return nil, &tts.UpstreamError{
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(detail)),
		}
	}

	audioBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio payload: %v", err)
	}
	if len(audioBytes) == 0 {
		// Provider success with no bytes still counts as an upstream failure.
		return nil, tts.ErrEmptyAudio
	}

	log.Printf("[TTS] Synthesized %d bytes in %.2fs (voice: %s)", len(audioBytes), time.Since(start).Seconds(), voiceID)
	return &tts.Audio{Data: audioBytes, Format: "mp3"}, nil
}

func isClientTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
