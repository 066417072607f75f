package provider

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/paywall/pkg/types"
)

func TestErrorString(t *testing.T) {
	err := &Error{Provider: types.PaymentProviderStripe, Code: "card_declined", Message: "declined", Retryable: false}
	require.Equal(t, "stripe: declined (card_declined)", err.Error())
}

func TestIsUnsupported(t *testing.T) {
	require.True(t, IsUnsupported(ErrUnsupported))
	require.True(t, IsUnsupported(fmt.Errorf("wrapped: %w", ErrUnsupported)))
	require.True(t, IsUnsupported(&Error{Provider: types.PaymentProviderApple, Code: "refund", Message: ErrUnsupported.Error()}))
	require.False(t, IsUnsupported(&Error{Provider: types.PaymentProviderStripe, Code: "x", Message: "boom"}))
	require.False(t, IsUnsupported(fmt.Errorf("plain error")))
}

func TestRegistryGet(t *testing.T) {
	inner := NewInnerClient()
	r := NewRegistry(inner)

	got, err := r.Get(types.PaymentProviderInner)
	require.NoError(t, err)
	require.Equal(t, inner, got)

	_, err = r.Get(types.PaymentProviderStripe)
	require.Error(t, err)
}

func TestInnerClientGrantsLocally(t *testing.T) {
	c := NewInnerClient()
	ctx := context.Background()

	intent, err := c.CreateIntent(ctx, &IntentRequest{Amount: 0, Currency: "usd"})
	require.NoError(t, err)
	require.NotEmpty(t, intent.ProviderTransactionID)

	sub, err := c.CreateSubscription(ctx, &SubscriptionRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, sub.ProviderSubscriptionID)

	require.NoError(t, c.CancelSubscription(ctx, sub.ProviderSubscriptionID, true))

	refund, err := c.Refund(ctx, intent.ProviderTransactionID, 0, "test")
	require.NoError(t, err)
	require.NotEmpty(t, refund.ProviderRefundID)
}
