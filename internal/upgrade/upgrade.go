// Package upgrade runs the free-to-pro plan transition. An upgrade attempt
// is transient session state: the durable outcome lives on the account
// record, the attempt only tracks where a user is in the checkout flow.
package upgrade

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/VoiceForge-io/voiceforge/internal/models"
	"github.com/VoiceForge-io/voiceforge/internal/payments"
)

// Status represents the current state of an upgrade attempt
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	// StatusAlreadyPro is the terminal display state for accounts that
	// enter the flow while already upgraded.
	StatusAlreadyPro Status = "already_pro"
)

// ContactSupportMessage is shown when money was captured but the plan write
// failed. That combination must never be retried against the payment
// provider, so the user is pointed at support instead.
const ContactSupportMessage = "payment received but the upgrade could not be applied; please contact support"

// Attempt is one user's progress through the upgrade flow
type Attempt struct {
	UID       string    `json:"uid"`
	OrderID   string    `json:"order_id,omitempty"`
	PayerName string    `json:"payer_name,omitempty"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// store manages the collection of in-flight upgrade attempts
type store struct {
	mu       sync.RWMutex
	attempts map[string]*Attempt
}

func (s *store) put(attempt *Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.UID] = attempt
}

func (s *store) get(uid string) (*Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, exists := s.attempts[uid]
	if !exists {
		return nil, false
	}
	copied := *attempt
	return &copied, true
}

// PaymentProvider is the slice of the payment client the flow needs.
type PaymentProvider interface {
	CreateOrder(ctx context.Context, amount float64, currency, uid string) (*payments.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*payments.CaptureResult, error)
}

// AccountStore is the slice of the account record store the flow needs.
type AccountStore interface {
	GetOrCreateAccount(uid string) (*models.Account, error)
	SetPlanPro(uid, orderID string) error
}

// Flow coordinates payment capture and the plan entitlement write.
type Flow struct {
	provider PaymentProvider
	accounts AccountStore
	attempts *store
	amount   float64
	currency string
}

// NewFlow creates an upgrade flow charging amount in currency per upgrade.
func NewFlow(provider PaymentProvider, accounts AccountStore, amount float64, currency string) *Flow {
	return &Flow{
		provider: provider,
		accounts: accounts,
		attempts: &store{attempts: make(map[string]*Attempt)},
		amount:   amount,
		currency: currency,
	}
}

// Begin starts (or restarts) an upgrade attempt for uid. Accounts already
// at Pro resolve immediately without contacting the payment provider.
func (f *Flow) Begin(ctx context.Context, uid string) (*Attempt, *payments.Order, error) {
	account, err := f.accounts.GetOrCreateAccount(uid)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	if account.IsPro() {
		attempt := &Attempt{UID: uid, Status: StatusAlreadyPro, CreatedAt: now, UpdatedAt: now}
		f.attempts.put(attempt)
		return attempt, nil, nil
	}

	order, err := f.provider.CreateOrder(ctx, f.amount, f.currency, uid)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create payment order: %v", err)
	}

	attempt := &Attempt{UID: uid, OrderID: order.ID, Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	f.attempts.put(attempt)
	return attempt, order, nil
}

// Capture captures the approved order and applies the plan change. A failed
// entitlement write after a successful capture parks the attempt in the
// terminal Failed state; the captured payment is never re-run.
func (f *Flow) Capture(ctx context.Context, uid, orderID string) (*Attempt, error) {
	attempt, exists := f.attempts.get(uid)
	if !exists || attempt.OrderID != orderID {
		return nil, fmt.Errorf("no pending upgrade for order %s", orderID)
	}
	if attempt.Status == StatusSucceeded || attempt.Status == StatusAlreadyPro {
		return attempt, nil
	}
	if attempt.Status == StatusFailed {
		// Hand the attempt back so callers can surface its support message.
		return attempt, fmt.Errorf("upgrade attempt for order %s already failed; retry the entitlement write instead", orderID)
	}

	result, err := f.provider.CaptureOrder(ctx, orderID)
	if err != nil {
		// Payment was not captured: the attempt stays pending and the
		// user may try the checkout again.
		return attempt, fmt.Errorf("payment capture failed: %v", err)
	}

	attempt.Status = StatusProcessing
	attempt.PayerName = result.PayerName
	attempt.UpdatedAt = time.Now().UTC()
	f.attempts.put(attempt)

	return f.applyEntitlement(attempt)
}

// Retry re-runs the entitlement write only, from the Failed state. It never
// touches the payment provider; the money has already been captured.
func (f *Flow) Retry(uid string) (*Attempt, error) {
	attempt, exists := f.attempts.get(uid)
	if !exists {
		return nil, fmt.Errorf("no upgrade attempt for user")
	}
	if attempt.Status != StatusFailed {
		return nil, fmt.Errorf("retry is only valid from the failed state, attempt is %s", attempt.Status)
	}

	attempt.Status = StatusProcessing
	attempt.Error = ""
	attempt.UpdatedAt = time.Now().UTC()
	f.attempts.put(attempt)

	return f.applyEntitlement(attempt)
}

// Cancel returns a pending attempt to its initial state. Payer cancellation
// is a normal outcome, not an error.
func (f *Flow) Cancel(uid string) *Attempt {
	attempt, exists := f.attempts.get(uid)
	if !exists {
		return nil
	}
	if attempt.Status == StatusPending || attempt.Status == StatusProcessing {
		attempt.Status = StatusPending
		attempt.UpdatedAt = time.Now().UTC()
		f.attempts.put(attempt)
	}
	return attempt
}

// Get returns the current attempt for uid, if any.
func (f *Flow) Get(uid string) (*Attempt, bool) {
	return f.attempts.get(uid)
}

func (f *Flow) applyEntitlement(attempt *Attempt) (*Attempt, error) {
	attempt.UpdatedAt = time.Now().UTC()

	if err := f.accounts.SetPlanPro(attempt.UID, attempt.OrderID); err != nil {
		log.Printf("[UPGRADE] ERROR: payment %s captured but plan write failed for %s: %v", attempt.OrderID, attempt.UID, err)
		attempt.Status = StatusFailed
		attempt.Error = ContactSupportMessage
		f.attempts.put(attempt)
		return attempt, nil
	}

	attempt.Status = StatusSucceeded
	attempt.Error = ""
	f.attempts.put(attempt)
	log.Printf("[UPGRADE] User %s upgraded to Pro (order %s)", attempt.UID, attempt.OrderID)
	return attempt, nil
}
