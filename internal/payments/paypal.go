package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"
)

// ErrNotConfigured means the PayPal credentials are missing server-side.
var ErrNotConfigured = errors.New("payment provider is not configured")

// Client talks to the PayPal Orders v2 API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// Order is a created-but-not-yet-captured payment order.
type Order struct {
	ID         string `json:"id"`
	ApproveURL string `json:"approve_url"`
	QRCodeData string `json:"qr_code_data,omitempty"` // base64 PNG of the approval link
}

// CaptureResult is the outcome of a successful order capture.
type CaptureResult struct {
	OrderID   string `json:"order_id"`
	PayerName string `json:"payer_name"`
}

// NewClient creates a PayPal client. Credentials may be empty; calls then
// fail with ErrNotConfigured so the server can boot without billing set up.
func NewClient(baseURL, clientID, clientSecret string) *Client {
	if baseURL == "" {
		baseURL = "https://api-m.paypal.com"
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// getAccessToken fetches (or reuses) a client-credentials OAuth token.
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return "", ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("token request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %v", err)
	}

	c.accessToken = token.AccessToken
	// Refresh a minute early to avoid using a token at the edge of expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

type createOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type purchaseUnit struct {
	Description string      `json:"description,omitempty"`
	CustomID    string      `json:"custom_id,omitempty"`
	Amount      orderAmount `json:"amount"`
}

type orderAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	Payer struct {
		Name struct {
			GivenName string `json:"given_name"`
			Surname   string `json:"surname"`
		} `json:"name"`
	} `json:"payer"`
}

// CreateOrder creates a payment order for amount in the given currency,
// tagged with the purchasing user's id, and returns the order id plus the
// approval link the payer must visit.
func (c *Client) CreateOrder(ctx context.Context, amount float64, currency, uid string) (*Order, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("[PAYPAL] Creating order for user %s, amount: %.2f %s", uid, amount, currency)

	payload := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{
			{
				Description: "Upgrade to Pro Plan - Text to Speech App",
				CustomID:    uid,
				Amount: orderAmount{
					CurrencyCode: currency,
					Value:        fmt.Sprintf("%.2f", amount),
				},
			},
		},
	}

	var created orderResponse
	if err := c.post(ctx, token, "/v2/checkout/orders", payload, &created); err != nil {
		return nil, err
	}

	order := &Order{ID: created.ID}
	for _, link := range created.Links {
		if link.Rel == "approve" {
			order.ApproveURL = link.Href
			break
		}
	}

	if order.ApproveURL != "" {
		qr, err := approvalQR(order.ApproveURL)
		if err != nil {
			log.Printf("[PAYPAL] Warning: Failed to generate QR code: %v", err)
			// Continue without QR code
		} else {
			order.QRCodeData = qr
		}
	}

	log.Printf("[PAYPAL] Order %s created", order.ID)
	return order, nil
}

// CaptureOrder captures an approved order. The caller only reaches this
// after payer approval; a non-COMPLETED status is a provider failure.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("[PAYPAL] Capturing order %s", orderID)

	var captured orderResponse
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", orderID)
	if err := c.post(ctx, token, path, struct{}{}, &captured); err != nil {
		return nil, err
	}

	if captured.Status != "COMPLETED" {
		return nil, fmt.Errorf("capture of order %s returned status %s", orderID, captured.Status)
	}

	payerName := strings.TrimSpace(captured.Payer.Name.GivenName + " " + captured.Payer.Name.Surname)
	log.Printf("[PAYPAL] Order %s captured (payer: %s)", orderID, payerName)

	return &CaptureResult{OrderID: captured.ID, PayerName: payerName}, nil
}

func (c *Client) post(ctx context.Context, token, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("PayPal API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// approvalQR renders the approval link as a base64 PNG for display next to
// the checkout button.
func approvalQR(approveURL string) (string, error) {
	png, err := qrcode.Encode(approveURL, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR code: %v", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
