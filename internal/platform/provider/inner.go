package provider

import (
	"context"

	"github.com/fatflowers/paywall/pkg/tool"
	"github.com/fatflowers/paywall/pkg/types"
)

// InnerClient backs complimentary grants issued by operators. Every call
// succeeds without contacting anything; ids are locally generated.
type InnerClient struct{}

var _ Client = (*InnerClient)(nil)

func NewInnerClient() *InnerClient { return &InnerClient{} }

func (c *InnerClient) Name() types.PaymentProvider { return types.PaymentProviderInner }

func (c *InnerClient) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	return userID, nil
}

func (c *InnerClient) CreateIntent(ctx context.Context, req *IntentRequest) (*Intent, error) {
	return &Intent{ProviderTransactionID: tool.GenerateUUIDV7(), Status: "succeeded"}, nil
}

func (c *InnerClient) CreateSubscription(ctx context.Context, req *SubscriptionRequest) (*ProviderSubscription, error) {
	return &ProviderSubscription{ProviderSubscriptionID: tool.GenerateUUIDV7(), Status: "active"}, nil
}

func (c *InnerClient) CancelSubscription(ctx context.Context, providerSubscriptionID string, immediately bool) error {
	return nil
}

func (c *InnerClient) Refund(ctx context.Context, providerTransactionID string, amount int64, reason string) (*RefundResult, error) {
	return &RefundResult{ProviderRefundID: tool.GenerateUUIDV7(), Status: "succeeded"}, nil
}
