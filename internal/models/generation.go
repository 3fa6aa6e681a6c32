package models

import (
	"strings"
	"time"
)

// Generation represents one entry in a user's generation history.
// Entries are immutable once written; the only mutation is deletion.
type Generation struct {
	ID             string    `json:"id" db:"id"`
	UID            string    `json:"uid" db:"uid"`
	Text           string    `json:"text" db:"text"`
	AudioURL       string    `json:"audio_url" db:"audio_url"`
	CharacterCount int64     `json:"character_count" db:"character_count"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// HasAudio reports whether the entry carries a playable audio reference,
// either an external URL or an embedded data URI.
func (g *Generation) HasAudio() bool {
	return strings.HasPrefix(g.AudioURL, "http") || strings.HasPrefix(g.AudioURL, "data:audio/")
}

// TextSummary returns a shortened form of the prompt for log lines
func (g *Generation) TextSummary() string {
	const max = 40
	if len(g.Text) <= max {
		return g.Text
	}
	return g.Text[:max] + "..."
}
