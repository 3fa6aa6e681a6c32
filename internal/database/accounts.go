package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/VoiceForge-io/voiceforge/internal/models"
)

// accountNotifier, when set, is invoked with the updated record after every
// committed account mutation. See notify.Registry.
var accountNotifier func(models.Account)

// SetAccountNotifier registers the hook called after account mutations.
func SetAccountNotifier(fn func(models.Account)) {
	accountNotifier = fn
}

func notifyAccount(account *models.Account) {
	if accountNotifier != nil && account != nil {
		accountNotifier(*account)
	}
}

// GetOrCreateAccount returns the account record for uid, creating the
// default Free/0 record on first access.
func GetOrCreateAccount(uid string) (*models.Account, error) {
	account, err := getAccount(uid)
	if err == nil {
		return account, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	now := time.Now().UTC()
	query := `INSERT INTO accounts (uid, plan, character_count, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?) ON CONFLICT (uid) DO NOTHING`
	if dbType == "postgres" {
		query = `INSERT INTO accounts (uid, plan, character_count, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $4) ON CONFLICT (uid) DO NOTHING`
	}

	if _, err := dbConn.Exec(query, uid, models.PlanFree, now, now); err != nil {
		return nil, fmt.Errorf("failed to create account: %v", err)
	}

	// Re-read so a concurrent creator's row wins.
	return getAccount(uid)
}

func getAccount(uid string) (*models.Account, error) {
	query := `SELECT uid, plan, character_count, upgraded_at, last_order_id, last_reset_at, created_at, updated_at
		FROM accounts WHERE uid = ?`
	if dbType == "postgres" {
		query = `SELECT uid, plan, character_count, upgraded_at, last_order_id, last_reset_at, created_at, updated_at
		FROM accounts WHERE uid = $1`
	}

	account := &models.Account{}
	err := dbConn.QueryRow(query, uid).Scan(
		&account.UID,
		&account.Plan,
		&account.CharacterCount,
		&account.UpgradedAt,
		&account.LastOrderID,
		&account.LastResetAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// IncrementUsage adds delta characters to the account's cumulative usage.
// The increment is a single UPDATE statement, so concurrent increments for
// the same uid are never lost.
func IncrementUsage(uid string, delta int64) (*models.Account, error) {
	if delta < 0 {
		return nil, ErrNegativeDelta
	}

	if _, err := GetOrCreateAccount(uid); err != nil {
		return nil, err
	}

	query := `UPDATE accounts SET character_count = character_count + ?, updated_at = ? WHERE uid = ?`
	if dbType == "postgres" {
		query = `UPDATE accounts SET character_count = character_count + $1, updated_at = $2 WHERE uid = $3`
	}

	if _, err := dbConn.Exec(query, delta, time.Now().UTC(), uid); err != nil {
		return nil, fmt.Errorf("failed to increment usage: %v", err)
	}

	account, err := getAccount(uid)
	if err != nil {
		return nil, err
	}
	notifyAccount(account)
	return account, nil
}

// IncrementUsageWithCap is the conditional variant used by the generation
// flow: the increment commits only when the account is Pro or stays within
// the free cap. The quota pre-check and this update are two round trips, so
// the condition is re-validated here atomically rather than trusting the
// earlier read.
func IncrementUsageWithCap(uid string, delta int64, freeCap int64) (*models.Account, error) {
	if delta < 0 {
		return nil, ErrNegativeDelta
	}

	if _, err := GetOrCreateAccount(uid); err != nil {
		return nil, err
	}

	query := `UPDATE accounts SET character_count = character_count + ?, updated_at = ?
		WHERE uid = ? AND (plan = ? OR character_count + ? <= ?)`
	if dbType == "postgres" {
		query = `UPDATE accounts SET character_count = character_count + $1, updated_at = $2
		WHERE uid = $3 AND (plan = $4 OR character_count + $5 <= $6)`
	}

	result, err := dbConn.Exec(query, delta, time.Now().UTC(), uid, models.PlanPro, delta, freeCap)
	if err != nil {
		return nil, fmt.Errorf("failed to increment usage: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrQuotaExceeded
	}

	account, err := getAccount(uid)
	if err != nil {
		return nil, err
	}
	notifyAccount(account)
	return account, nil
}

// SetPlanPro upgrades the account to the Pro plan. The call is idempotent:
// an account already at Pro keeps its original upgrade timestamp and payment
// reference, and never reverts to Free.
func SetPlanPro(uid string, orderID string) error {
	if _, err := GetOrCreateAccount(uid); err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `UPDATE accounts SET plan = ?, upgraded_at = ?, last_order_id = ?, updated_at = ?
		WHERE uid = ? AND plan != ?`
	if dbType == "postgres" {
		query = `UPDATE accounts SET plan = $1, upgraded_at = $2, last_order_id = $3, updated_at = $4
		WHERE uid = $5 AND plan != $6`
	}

	result, err := dbConn.Exec(query, models.PlanPro, now, orderID, now, uid, models.PlanPro)
	if err != nil {
		return fmt.Errorf("failed to set plan: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Already Pro; nothing to do.
		return nil
	}

	account, err := getAccount(uid)
	if err != nil {
		log.Printf("Warning: plan updated but re-read failed for %s: %v", uid, err)
		return nil
	}
	notifyAccount(account)
	return nil
}

// MaybeResetQuota zeroes a Free account's usage when the calendar month has
// rolled over since the last reset. The first call stamps last_reset_at
// without resetting anything.
func MaybeResetQuota(uid string, now time.Time) error {
	account, err := GetOrCreateAccount(uid)
	if err != nil {
		return err
	}

	now = now.UTC()
	if account.LastResetAt == nil {
		query := `UPDATE accounts SET last_reset_at = ?, updated_at = ? WHERE uid = ?`
		if dbType == "postgres" {
			query = `UPDATE accounts SET last_reset_at = $1, updated_at = $2 WHERE uid = $3`
		}
		_, err := dbConn.Exec(query, now, now, uid)
		return err
	}

	last := account.LastResetAt.UTC()
	monthPassed := now.Month() != last.Month() || now.Year() != last.Year()
	if !monthPassed || account.Plan != models.PlanFree {
		return nil
	}

	query := `UPDATE accounts SET character_count = 0, last_reset_at = ?, updated_at = ? WHERE uid = ?`
	if dbType == "postgres" {
		query = `UPDATE accounts SET character_count = 0, last_reset_at = $1, updated_at = $2 WHERE uid = $3`
	}
	if _, err := dbConn.Exec(query, now, now, uid); err != nil {
		return fmt.Errorf("failed to reset quota: %v", err)
	}

	log.Printf("Monthly quota reset applied for %s", uid)
	updated, err := getAccount(uid)
	if err != nil {
		return err
	}
	notifyAccount(updated)
	return nil
}
