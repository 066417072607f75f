package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/paywall/internal/app/service/access"
	"github.com/fatflowers/paywall/internal/app/service/ledger"
	"github.com/fatflowers/paywall/internal/app/service/subscription"
	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/internal/platform/db/dbtest"
	"github.com/fatflowers/paywall/internal/platform/provider"
	"github.com/fatflowers/paywall/internal/platform/provider/apple"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/types"
)

type stubReceipts struct {
	lines []*apple.ReceiptLine
	err   error
}

func (s *stubReceipts) VerifyReceipt(ctx context.Context, receiptData string) ([]*apple.ReceiptLine, error) {
	return s.lines, s.err
}

func newAppleFixture(t *testing.T, verifier receiptVerifier) (*Service, *gorm.DB) {
	t.Helper()
	gdb := dbtest.Open(t,
		&models.Transaction{}, &models.TransactionAuditLog{},
		&models.Subscription{}, &models.SubscriptionAuditLog{}, &models.Plan{},
		&models.PremiumContent{}, &models.AccessGrant{})

	log := zap.NewNop().Sugar()
	cfg := &config.Config{}
	registry := provider.NewRegistry(provider.NewInnerClient())
	accessSvc := access.NewService(gdb, log)
	ledgerSvc := ledger.NewService(gdb, log, registry, accessSvc)
	subsSvc := subscription.NewService(cfg, gdb, log, registry)

	require.NoError(t, subsSvc.SavePlan(context.Background(), &models.Plan{
		ID:             "premium",
		Name:           "Premium",
		Price:          999,
		Currency:       "usd",
		BillingPeriod:  types.BillingPeriodMonthly,
		AppleProductID: "app.premium.monthly",
		Active:         true,
	}))

	svc := &Service{
		cfg:       cfg,
		log:       log,
		providers: registry,
		ledger:    ledgerSvc,
		subs:      subsSvc,
		access:    accessSvc,
		apple:     verifier,
	}
	return svc, gdb
}

func premiumLine() *apple.ReceiptLine {
	return &apple.ReceiptLine{
		TransactionID:         "tx_1001",
		OriginalTransactionID: "orig_1000",
		ProductID:             "app.premium.monthly",
	}
}

func TestRedeemAppleReceipt_RegistersSubscription(t *testing.T) {
	svc, gdb := newAppleFixture(t, &stubReceipts{lines: []*apple.ReceiptLine{premiumLine()}})
	ctx := context.Background()

	res, err := svc.RedeemAppleReceipt(ctx, &AppleReceiptRequest{UserID: "u1", ReceiptData: "base64"})
	require.NoError(t, err)
	require.Equal(t, "premium", res.PlanID)
	require.NotEmpty(t, res.SubscriptionID)
	require.NotEmpty(t, res.TransactionID)

	var sub models.Subscription
	require.NoError(t, gdb.Where("id = ?", res.SubscriptionID).First(&sub).Error)
	require.Equal(t, types.PaymentProviderApple, sub.Provider)
	require.NotNil(t, sub.ProviderSubscriptionID)
	require.Equal(t, "orig_1000", *sub.ProviderSubscriptionID,
		"the original transaction id keys later server notifications")

	var txn models.Transaction
	require.NoError(t, gdb.Where("id = ?", res.TransactionID).First(&txn).Error)
	require.Equal(t, types.TransactionStatusCompleted, txn.Status)
	require.NotNil(t, txn.ProviderTransactionID)
	require.Equal(t, "tx_1001", *txn.ProviderTransactionID)
}

func TestRedeemAppleReceipt_ReplayReturnsExisting(t *testing.T) {
	svc, gdb := newAppleFixture(t, &stubReceipts{lines: []*apple.ReceiptLine{premiumLine()}})
	ctx := context.Background()

	first, err := svc.RedeemAppleReceipt(ctx, &AppleReceiptRequest{UserID: "u1", ReceiptData: "base64"})
	require.NoError(t, err)

	second, err := svc.RedeemAppleReceipt(ctx, &AppleReceiptRequest{UserID: "u1", ReceiptData: "base64"})
	require.NoError(t, err)
	require.Equal(t, first.SubscriptionID, second.SubscriptionID)

	var subs int64
	require.NoError(t, gdb.Model(&models.Subscription{}).Count(&subs).Error)
	require.EqualValues(t, 1, subs)

	var txns int64
	require.NoError(t, gdb.Model(&models.Transaction{}).Count(&txns).Error)
	require.EqualValues(t, 1, txns, "a replayed receipt must not double-book the charge")
}

func TestRedeemAppleReceipt_RejectsForeignToken(t *testing.T) {
	line := premiumLine()
	line.AppAccountToken = "0189d2c0-0000-7000-8000-000000000001"
	svc, _ := newAppleFixture(t, &stubReceipts{lines: []*apple.ReceiptLine{line}})

	_, err := svc.RedeemAppleReceipt(context.Background(),
		&AppleReceiptRequest{UserID: "0189d2c0-ffff-7000-8000-00000000ffff", ReceiptData: "base64"})
	require.ErrorIs(t, err, ErrReceiptMismatch)
}

func TestRedeemAppleReceipt_MatchingTokenPasses(t *testing.T) {
	userID := "0189d2c0-0000-7000-8000-000000000001"
	line := premiumLine()
	line.AppAccountToken = userID
	svc, _ := newAppleFixture(t, &stubReceipts{lines: []*apple.ReceiptLine{line}})

	_, err := svc.RedeemAppleReceipt(context.Background(),
		&AppleReceiptRequest{UserID: userID, ReceiptData: "base64"})
	require.NoError(t, err)
}

func TestRedeemAppleReceipt_UnknownProduct(t *testing.T) {
	line := premiumLine()
	line.ProductID = "app.unknown"
	svc, _ := newAppleFixture(t, &stubReceipts{lines: []*apple.ReceiptLine{line}})

	_, err := svc.RedeemAppleReceipt(context.Background(),
		&AppleReceiptRequest{UserID: "u1", ReceiptData: "base64"})
	require.ErrorIs(t, err, subscription.ErrPlanNotFound)
}

func TestRedeemAppleReceipt_EmptyReceipt(t *testing.T) {
	svc, _ := newAppleFixture(t, &stubReceipts{})

	_, err := svc.RedeemAppleReceipt(context.Background(),
		&AppleReceiptRequest{UserID: "u1", ReceiptData: "base64"})
	require.ErrorIs(t, err, ErrEmptyReceipt)
}
