package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fatflowers/paywall/internal/platform/provider"
	"github.com/fatflowers/paywall/pkg/types"
)

const apiBase = "https://api.stripe.com/v1"

// Client talks to the Stripe REST API with form-encoded requests. Only the
// call surface the billing core needs is implemented.
type Client struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

var _ provider.Client = (*Client)(nil)

func New(secretKey string) *Client {
	return &Client{
		secretKey: secretKey,
		baseURL:   apiBase,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// SetBaseURL points the client at a test server.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

func (c *Client) Name() types.PaymentProvider { return types.PaymentProviderStripe }

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

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
		var apiErr apiError
		_ = json.Unmarshal(data, &apiErr)
		code := apiErr.Error.Code
		if code == "" {
			code = strconv.Itoa(resp.StatusCode)
		}
		return &provider.Error{
			Provider:  c.Name(),
			Code:      code,
			Message:   apiErr.Error.Message,
			Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("metadata[user_id]", userID)

	var res struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/customers", form, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

func (c *Client) CreateIntent(ctx context.Context, req *provider.IntentRequest) (*provider.Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	if req.Description != "" {
		form.Set("description", req.Description)
	}
	if req.CustomerID != "" {
		form.Set("customer", req.CustomerID)
	}
	for k, v := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var res struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
		Status       string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/payment_intents", form, &res); err != nil {
		return nil, err
	}
	return &provider.Intent{ProviderTransactionID: res.ID, ClientSecret: res.ClientSecret, Status: res.Status}, nil
}

func (c *Client) CreateSubscription(ctx context.Context, req *provider.SubscriptionRequest) (*provider.ProviderSubscription, error) {
	form := url.Values{}
	form.Set("customer", req.CustomerID)
	form.Set("items[0][price]", req.ProviderPlanID)
	if req.TrialDays > 0 {
		form.Set("trial_period_days", strconv.Itoa(req.TrialDays))
	}
	for k, v := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var res struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/subscriptions", form, &res); err != nil {
		return nil, err
	}
	return &provider.ProviderSubscription{ProviderSubscriptionID: res.ID, Status: res.Status}, nil
}

func (c *Client) CancelSubscription(ctx context.Context, providerSubscriptionID string, immediately bool) error {
	if immediately {
		return c.do(ctx, http.MethodDelete, "/subscriptions/"+providerSubscriptionID, nil, nil)
	}
	form := url.Values{}
	form.Set("cancel_at_period_end", "true")
	return c.do(ctx, http.MethodPost, "/subscriptions/"+providerSubscriptionID, form, nil)
}

func (c *Client) Refund(ctx context.Context, providerTransactionID string, amount int64, reason string) (*provider.RefundResult, error) {
	form := url.Values{}
	form.Set("payment_intent", providerTransactionID)
	if amount > 0 {
		form.Set("amount", strconv.FormatInt(amount, 10))
	}
	if reason != "" {
		form.Set("metadata[reason]", reason)
	}

	var res struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/refunds", form, &res); err != nil {
		return nil, err
	}
	return &provider.RefundResult{ProviderRefundID: res.ID, Status: res.Status}, nil
}
