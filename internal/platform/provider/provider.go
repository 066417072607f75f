package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatflowers/paywall/pkg/types"
)

// Error is the typed failure surface of every provider call, so callers can
// decide retry vs fail-fast without depending on a provider SDK's exception
// taxonomy.
type Error struct {
	Provider  types.PaymentProvider
	Code      string
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
}

// ErrUnsupported marks operations a provider cannot perform (for example,
// server-side refunds against the App Store).
var ErrUnsupported = errors.New("operation not supported by provider")

// IsUnsupported reports whether err marks an operation the provider does not
// offer, as opposed to a real failure.
func IsUnsupported(err error) bool {
	if errors.Is(err, ErrUnsupported) {
		return true
	}
	var perr *Error
	return errors.As(err, &perr) && perr.Message == ErrUnsupported.Error()
}

// IntentRequest asks the provider to prepare a charge.
type IntentRequest struct {
	Amount      int64
	Currency    string
	Description string
	CustomerID  string
	Metadata    map[string]string
}

// Intent is the provider-side handle of a pending charge. ClientSecret (or
// ApprovalURL for redirect flows) is handed to the frontend to complete
// payment; completion is confirmed by webhook.
type Intent struct {
	ProviderTransactionID string
	ClientSecret          string
	ApprovalURL           string
	Status                string
}

// SubscriptionRequest asks the provider to start a recurring charge.
type SubscriptionRequest struct {
	CustomerID     string
	ProviderPlanID string
	TrialDays      int
	Metadata       map[string]string
}

type ProviderSubscription struct {
	ProviderSubscriptionID string
	Status                 string
	ApprovalURL            string
}

type RefundResult struct {
	ProviderRefundID string
	Status           string
}

// Client is the minimal call surface this core needs from a payment provider.
// All calls have bounded timeouts; failures are *Error values.
type Client interface {
	Name() types.PaymentProvider
	CreateCustomer(ctx context.Context, userID, email string) (string, error)
	CreateIntent(ctx context.Context, req *IntentRequest) (*Intent, error)
	CreateSubscription(ctx context.Context, req *SubscriptionRequest) (*ProviderSubscription, error)
	CancelSubscription(ctx context.Context, providerSubscriptionID string, immediately bool) error
	Refund(ctx context.Context, providerTransactionID string, amount int64, reason string) (*RefundResult, error)
}

// Registry resolves the client for a provider.
type Registry struct {
	clients map[types.PaymentProvider]Client
}

func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[types.PaymentProvider]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Name()] = c
	}
	return r
}

func (r *Registry) Get(p types.PaymentProvider) (Client, error) {
	c, ok := r.clients[p]
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", p)
	}
	return c, nil
}
