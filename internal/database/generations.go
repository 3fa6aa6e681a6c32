package database

import (
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/VoiceForge-io/voiceforge/internal/models"
	"github.com/google/uuid"
)

// CreateGeneration appends an immutable history entry for uid. The character
// count is snapshotted from the text at creation time and never revised.
func CreateGeneration(uid, text, audioURL string) (*models.Generation, error) {
	return CreateGenerationWithID(uuid.New().String(), uid, text, audioURL)
}

// CreateGenerationWithID appends a history entry under a caller-chosen id,
// so the entry id can double as the stored audio object key.
func CreateGenerationWithID(id, uid, text, audioURL string) (*models.Generation, error) {
	entry := &models.Generation{
		ID:             id,
		UID:            uid,
		Text:           text,
		AudioURL:       audioURL,
		CharacterCount: int64(utf8.RuneCountInString(text)),
		CreatedAt:      time.Now().UTC(),
	}

	query := `INSERT INTO generations (id, uid, text, audio_url, character_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if dbType == "postgres" {
		query = `INSERT INTO generations (id, uid, text, audio_url, character_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	}

	_, err := dbConn.Exec(query, entry.ID, entry.UID, entry.Text, entry.AudioURL, entry.CharacterCount, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation entry: %v", err)
	}

	return entry, nil
}

// GetGenerationsByUID returns all history entries for uid, newest first.
// If the ordered query cannot be served it falls back to an unordered fetch
// sorted in memory, with a missing created_at sorting as earliest.
func GetGenerationsByUID(uid string) ([]*models.Generation, error) {
	query := `SELECT id, uid, text, audio_url, character_count, created_at
		FROM generations WHERE uid = ? ORDER BY created_at DESC`
	if dbType == "postgres" {
		query = `SELECT id, uid, text, audio_url, character_count, created_at
		FROM generations WHERE uid = $1 ORDER BY created_at DESC`
	}

	entries, err := queryGenerations(query, uid)
	if err == nil {
		return entries, nil
	}

	log.Printf("Warning: ordered history query failed for %s, falling back to client-side sort: %v", uid, err)

	fallback := `SELECT id, uid, text, audio_url, character_count, created_at
		FROM generations WHERE uid = ?`
	if dbType == "postgres" {
		fallback = `SELECT id, uid, text, audio_url, character_count, created_at
		FROM generations WHERE uid = $1`
	}

	entries, err = queryGenerations(fallback, uid)
	if err != nil {
		return nil, err
	}

	sortGenerationsNewestFirst(entries)
	return entries, nil
}

// sortGenerationsNewestFirst orders entries newest first in memory. A zero
// created_at sorts last, as the oldest possible entry.
func sortGenerationsNewestFirst(entries []*models.Generation) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

func queryGenerations(query, uid string) ([]*models.Generation, error) {
	rows, err := dbConn.Query(query, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.Generation
	for rows.Next() {
		entry := &models.Generation{}
		if err := rows.Scan(
			&entry.ID,
			&entry.UID,
			&entry.Text,
			&entry.AudioURL,
			&entry.CharacterCount,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetGenerationByID returns one history entry owned by uid.
func GetGenerationByID(uid, entryID string) (*models.Generation, error) {
	query := `SELECT id, uid, text, audio_url, character_count, created_at
		FROM generations WHERE id = ? AND uid = ?`
	if dbType == "postgres" {
		query = `SELECT id, uid, text, audio_url, character_count, created_at
		FROM generations WHERE id = $1 AND uid = $2`
	}

	entry := &models.Generation{}
	err := dbConn.QueryRow(query, entryID, uid).Scan(
		&entry.ID,
		&entry.UID,
		&entry.Text,
		&entry.AudioURL,
		&entry.CharacterCount,
		&entry.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteGeneration removes one history entry. Deleting never adjusts the
// owning account's character count; past usage stays accounted.
func DeleteGeneration(uid, entryID string) error {
	query := `DELETE FROM generations WHERE id = ? AND uid = ?`
	if dbType == "postgres" {
		query = `DELETE FROM generations WHERE id = $1 AND uid = $2`
	}

	result, err := dbConn.Exec(query, entryID, uid)
	if err != nil {
		return fmt.Errorf("failed to delete generation entry: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// FilterGenerationsByText returns the entries whose text contains substring,
// case-insensitively. An empty substring matches everything.
func FilterGenerationsByText(entries []*models.Generation, substring string) []*models.Generation {
	if substring == "" {
		return entries
	}

	needle := strings.ToLower(substring)
	var matched []*models.Generation
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.Text), needle) {
			matched = append(matched, entry)
		}
	}
	return matched
}
