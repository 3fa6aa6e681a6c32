// Package tts defines the synthesis boundary. Concrete implementations wrap
// an external provider; the rest of the system only sees this interface.
package tts

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured means the provider credentials are missing
	// server-side. Fatal to the request; retrying will not help.
	ErrNotConfigured = errors.New("synthesis provider is not configured")
	// ErrTimeout means the provider did not answer within the deadline.
	ErrTimeout = errors.New("synthesis request timed out")
	// ErrEmptyAudio means the provider answered success with no audio bytes.
	ErrEmptyAudio = errors.New("provider returned empty audio")
)

// UpstreamError carries the provider's own failure detail.
type UpstreamError struct {
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	return e.Detail
}

// Audio is raw synthesized voice.
type Audio struct {
	Data   []byte
	Format string // e.g. "mp3"
}

// Synthesizer converts text to Audio using the given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (*Audio, error)
}
