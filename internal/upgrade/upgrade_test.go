package upgrade

import (
	"context"
	"errors"
	"testing"

	"github.com/VoiceForge-io/voiceforge/internal/models"
	"github.com/VoiceForge-io/voiceforge/internal/payments"
	"github.com/stretchr/testify/assert"
)

type fakeProvider struct {
	createCalls  int
	captureCalls int
	captureErr   error
}

func (p *fakeProvider) CreateOrder(ctx context.Context, amount float64, currency, uid string) (*payments.Order, error) {
	p.createCalls++
	return &payments.Order{ID: "ORD123", ApproveURL: "https://paypal.example/approve/ORD123"}, nil
}

func (p *fakeProvider) CaptureOrder(ctx context.Context, orderID string) (*payments.CaptureResult, error) {
	p.captureCalls++
	if p.captureErr != nil {
		return nil, p.captureErr
	}
	return &payments.CaptureResult{OrderID: orderID, PayerName: "Ada Lovelace"}, nil
}

type fakeAccounts struct {
	plan       models.Plan
	setProErr  error
	setProUIDs []string
}

func (a *fakeAccounts) GetOrCreateAccount(uid string) (*models.Account, error) {
	return &models.Account{UID: uid, Plan: a.plan}, nil
}

func (a *fakeAccounts) SetPlanPro(uid, orderID string) error {
	if a.setProErr != nil {
		return a.setProErr
	}
	a.setProUIDs = append(a.setProUIDs, uid)
	return nil
}

func TestBegin(t *testing.T) {
	t.Run("Free account gets a pending attempt and order", func(t *testing.T) {
		provider := &fakeProvider{}
		flow := NewFlow(provider, &fakeAccounts{plan: models.PlanFree}, 120, "USD")

		attempt, order, err := flow.Begin(context.Background(), "user-1")
		assert.NoError(t, err)
		assert.Equal(t, StatusPending, attempt.Status)
		assert.Equal(t, "ORD123", attempt.OrderID)
		assert.Equal(t, "ORD123", order.ID)
		assert.Equal(t, 1, provider.createCalls)
	})

	t.Run("Pro account short-circuits without contacting the provider", func(t *testing.T) {
		provider := &fakeProvider{}
		flow := NewFlow(provider, &fakeAccounts{plan: models.PlanPro}, 120, "USD")

		attempt, order, err := flow.Begin(context.Background(), "user-1")
		assert.NoError(t, err)
		assert.Equal(t, StatusAlreadyPro, attempt.Status)
		assert.Nil(t, order)
		assert.Equal(t, 0, provider.createCalls)
	})
}

func TestCapture(t *testing.T) {
	t.Run("Successful capture applies the plan change", func(t *testing.T) {
		provider := &fakeProvider{}
		accounts := &fakeAccounts{plan: models.PlanFree}
		flow := NewFlow(provider, accounts, 120, "USD")

		_, _, err := flow.Begin(context.Background(), "user-1")
		assert.NoError(t, err)

		attempt, err := flow.Capture(context.Background(), "user-1", "ORD123")
		assert.NoError(t, err)
		assert.Equal(t, StatusSucceeded, attempt.Status)
		assert.Equal(t, "Ada Lovelace", attempt.PayerName)
		assert.Equal(t, []string{"user-1"}, accounts.setProUIDs)
	})

	t.Run("Capture failure keeps the attempt pending", func(t *testing.T) {
		provider := &fakeProvider{captureErr: errors.New("DECLINED")}
		flow := NewFlow(provider, &fakeAccounts{plan: models.PlanFree}, 120, "USD")

		_, _, err := flow.Begin(context.Background(), "user-1")
		assert.NoError(t, err)

		attempt, err := flow.Capture(context.Background(), "user-1", "ORD123")
		assert.Error(t, err)
		assert.Equal(t, StatusPending, attempt.Status)
	})

	t.Run("Unknown order is rejected", func(t *testing.T) {
		flow := NewFlow(&fakeProvider{}, &fakeAccounts{plan: models.PlanFree}, 120, "USD")
		_, err := flow.Capture(context.Background(), "user-1", "ORD999")
		assert.Error(t, err)
	})

	t.Run("Repeat capture of a succeeded attempt is a no-op", func(t *testing.T) {
		provider := &fakeProvider{}
		accounts := &fakeAccounts{plan: models.PlanFree}
		flow := NewFlow(provider, accounts, 120, "USD")

		_, _, err := flow.Begin(context.Background(), "user-1")
		assert.NoError(t, err)
		_, err = flow.Capture(context.Background(), "user-1", "ORD123")
		assert.NoError(t, err)

		attempt, err := flow.Capture(context.Background(), "user-1", "ORD123")
		assert.NoError(t, err)
		assert.Equal(t, StatusSucceeded, attempt.Status)
		assert.Equal(t, 1, provider.captureCalls)
		assert.Equal(t, []string{"user-1"}, accounts.setProUIDs)
	})
}

func TestEntitlementFailureAndRetry(t *testing.T) {
	provider := &fakeProvider{}
	accounts := &fakeAccounts{plan: models.PlanFree, setProErr: errors.New("db is down")}
	flow := NewFlow(provider, accounts, 120, "USD")

	_, _, err := flow.Begin(context.Background(), "user-1")
	assert.NoError(t, err)

	// Money captured, plan write fails: the attempt parks in Failed with a
	// support message instead of surfacing a transport error.
	attempt, err := flow.Capture(context.Background(), "user-1", "ORD123")
	assert.NoError(t, err)
	assert.Equal(t, StatusFailed, attempt.Status)
	assert.Equal(t, ContactSupportMessage, attempt.Error)

	// A second capture is refused; the payment must not be re-run, and the
	// parked attempt comes back so its support message can be shown.
	failed, err := flow.Capture(context.Background(), "user-1", "ORD123")
	assert.Error(t, err)
	assert.NotNil(t, failed)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, ContactSupportMessage, failed.Error)
	assert.Equal(t, 1, provider.captureCalls)

	// Retry re-runs only the entitlement write.
	accounts.setProErr = nil
	attempt, err = flow.Retry("user-1")
	assert.NoError(t, err)
	assert.Equal(t, StatusSucceeded, attempt.Status)
	assert.Empty(t, attempt.Error)
	assert.Equal(t, 1, provider.captureCalls, "retry must not touch the provider")
	assert.Equal(t, []string{"user-1"}, accounts.setProUIDs)
}

func TestRetryOnlyFromFailed(t *testing.T) {
	flow := NewFlow(&fakeProvider{}, &fakeAccounts{plan: models.PlanFree}, 120, "USD")

	_, err := flow.Retry("user-1")
	assert.Error(t, err)

	_, _, err = flow.Begin(context.Background(), "user-1")
	assert.NoError(t, err)

	_, err = flow.Retry("user-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed state")
}

func TestCancel(t *testing.T) {
	flow := NewFlow(&fakeProvider{}, &fakeAccounts{plan: models.PlanFree}, 120, "USD")

	assert.Nil(t, flow.Cancel("nobody"))

	_, _, err := flow.Begin(context.Background(), "user-1")
	assert.NoError(t, err)

	attempt := flow.Cancel("user-1")
	assert.Equal(t, StatusPending, attempt.Status)

	// Cancelled attempts can go through checkout again.
	attempt, err = flow.Capture(context.Background(), "user-1", "ORD123")
	assert.NoError(t, err)
	assert.Equal(t, StatusSucceeded, attempt.Status)
}
