package apple

import (
	"context"
	"fmt"

	"github.com/awa/go-iap/appstore"
	"github.com/google/uuid"

	"github.com/fatflowers/paywall/internal/platform/provider"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/types"
)

// Client covers the App Store side of the payment surface. Purchases happen
// on-device, so intent creation, cancellation and refunds are not available
// server-side; the client verifies receipts and the webhook reconciles the
// rest.
type Client struct {
	cfg config.AppleIAPConfig
}

var _ provider.Client = (*Client)(nil)

func New(cfg config.AppleIAPConfig) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) Name() types.PaymentProvider { return types.PaymentProviderApple }

func (c *Client) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	// The app account token embedded in store receipts is the customer handle.
	// UUID user ids already fit the token's required shape; shorter ids go
	// through the packing scheme.
	if u, err := uuid.Parse(userID); err == nil {
		return u.String(), nil
	}
	return UserIDToToken(userID)
}

func (c *Client) CreateIntent(ctx context.Context, req *provider.IntentRequest) (*provider.Intent, error) {
	return nil, c.unsupported("create_intent")
}

func (c *Client) CreateSubscription(ctx context.Context, req *provider.SubscriptionRequest) (*provider.ProviderSubscription, error) {
	return nil, c.unsupported("create_subscription")
}

func (c *Client) CancelSubscription(ctx context.Context, providerSubscriptionID string, immediately bool) error {
	return c.unsupported("cancel_subscription")
}

func (c *Client) Refund(ctx context.Context, providerTransactionID string, amount int64, reason string) (*provider.RefundResult, error) {
	return nil, c.unsupported("refund")
}

func (c *Client) unsupported(op string) error {
	return &provider.Error{
		Provider:  c.Name(),
		Code:      op,
		Message:   provider.ErrUnsupported.Error(),
		Retryable: false,
	}
}

// ReceiptLine is one transaction from a verified store receipt.
type ReceiptLine struct {
	TransactionID         string `json:"transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	ProductID             string `json:"product_id"`
	AppAccountToken       string `json:"app_account_token"`
	PurchaseDateMs        string `json:"purchase_date_ms"`
	IsTrialPeriod         string `json:"is_trial_period"`
}

type receipt struct {
	LatestReceiptInfo []*ReceiptLine `json:"latest_receipt_info"`
}

// VerifyReceipt validates client-supplied receipt data against the App Store
// verification endpoint and returns the latest transactions it attests.
func (c *Client) VerifyReceipt(ctx context.Context, receiptData string) ([]*ReceiptLine, error) {
	client := appstore.New()
	if !c.cfg.IsProd {
		client.ProductionURL = client.SandboxURL
	}

	var result receipt
	err := client.Verify(ctx, appstore.IAPRequest{
		ReceiptData:            receiptData,
		Password:               c.cfg.SharedSecret,
		ExcludeOldTransactions: true,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to verify receipt: %w", err)
	}
	return result.LatestReceiptInfo, nil
}
