package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatflowers/paywall/internal/platform/provider"
	"github.com/fatflowers/paywall/pkg/types"
)

const (
	liveBase    = "https://api-m.paypal.com"
	sandboxBase = "https://api-m.sandbox.paypal.com"
)

// Client talks to the PayPal REST API. An OAuth2 client-credentials token is
// cached and refreshed shortly before expiry.
type Client struct {
	clientID  string
	secret    string
	webhookID string
	baseURL   string
	http      *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

var _ provider.Client = (*Client)(nil)

func New(clientID, secret, webhookID string, sandbox bool) *Client {
	base := liveBase
	if sandbox {
		base = sandboxBase
	}
	return &Client{
		clientID:  clientID,
		secret:    secret,
		webhookID: webhookID,
		baseURL:   base,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// SetBaseURL points the client at a test server.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

func (c *Client) Name() types.PaymentProvider { return types.PaymentProviderPayPal }

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &provider.Error{Provider: c.Name(), Code: "network", Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &provider.Error{Provider: c.Name(), Code: strconv.Itoa(resp.StatusCode), Message: "oauth token request failed", Retryable: resp.StatusCode >= 500}
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	c.token = tok.AccessToken
	// refresh a minute early
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &provider.Error{Provider: c.Name(), Code: "network", Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &provider.Error{Provider: c.Name(), Code: "read_body", Message: err.Error(), Retryable: true}
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &apiErr)
		code := apiErr.Name
		if code == "" {
			code = strconv.Itoa(resp.StatusCode)
		}
		return &provider.Error{
			Provider:  c.Name(),
			Code:      code,
			Message:   apiErr.Message,
			Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	// PayPal has no customer vault concept for this flow; the payer is
	// identified during approval. The user id is echoed back for symmetry.
	return userID, nil
}

func (c *Client) CreateIntent(ctx context.Context, req *provider.IntentRequest) (*provider.Intent, error) {
	in := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]string{
				"currency_code": strings.ToUpper(req.Currency),
				"value":         formatAmount(req.Amount),
			},
			"description": req.Description,
			"custom_id":   req.Metadata["transaction_id"],
		}},
	}

	var res struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", in, &res); err != nil {
		return nil, err
	}

	intent := &provider.Intent{ProviderTransactionID: res.ID, Status: res.Status}
	for _, l := range res.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			intent.ApprovalURL = l.Href
			break
		}
	}
	return intent, nil
}

func (c *Client) CreateSubscription(ctx context.Context, req *provider.SubscriptionRequest) (*provider.ProviderSubscription, error) {
	in := map[string]any{
		"plan_id":   req.ProviderPlanID,
		"custom_id": req.Metadata["subscription_id"],
	}

	var res struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/billing/subscriptions", in, &res); err != nil {
		return nil, err
	}

	sub := &provider.ProviderSubscription{ProviderSubscriptionID: res.ID, Status: res.Status}
	for _, l := range res.Links {
		if l.Rel == "approve" {
			sub.ApprovalURL = l.Href
			break
		}
	}
	return sub, nil
}

func (c *Client) CancelSubscription(ctx context.Context, providerSubscriptionID string, immediately bool) error {
	// PayPal only supports immediate cancellation server-side; deferred
	// cancellation is handled locally by the lifecycle manager.
	if !immediately {
		return nil
	}
	in := map[string]string{"reason": "cancelled by user"}
	return c.do(ctx, http.MethodPost, "/v1/billing/subscriptions/"+providerSubscriptionID+"/cancel", in, nil)
}

func (c *Client) Refund(ctx context.Context, providerTransactionID string, amount int64, reason string) (*provider.RefundResult, error) {
	in := map[string]any{}
	if reason != "" {
		in["note_to_payer"] = reason
	}

	var res struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/payments/captures/"+providerTransactionID+"/refund", in, &res); err != nil {
		return nil, err
	}
	return &provider.RefundResult{ProviderRefundID: res.ID, Status: res.Status}, nil
}

// VerifyWebhookSignature asks PayPal whether an event delivery is authentic.
func (c *Client) VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error {
	in := map[string]any{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(body),
	}

	var res struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", in, &res); err != nil {
		return err
	}
	if res.VerificationStatus != "SUCCESS" {
		return &provider.Error{Provider: c.Name(), Code: "signature", Message: "webhook verification failed", Retryable: false}
	}
	return nil
}

// formatAmount renders minor units as a decimal string ("999" -> "9.99").
func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
