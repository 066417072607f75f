package webhook

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/paywall/internal/app/service/access"
	"github.com/fatflowers/paywall/internal/app/service/invoice"
	"github.com/fatflowers/paywall/internal/app/service/ledger"
	"github.com/fatflowers/paywall/internal/app/service/subscription"
	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/internal/platform/db/dbtest"
	"github.com/fatflowers/paywall/internal/platform/mail"
	"github.com/fatflowers/paywall/internal/platform/provider"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/tool"
	"github.com/fatflowers/paywall/pkg/types"
)

type reconcilerFixture struct {
	db     *gorm.DB
	ledger *ledger.Service
	rec    *Reconciler
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	gdb := dbtest.Open(t,
		&models.Transaction{}, &models.TransactionAuditLog{},
		&models.Subscription{}, &models.SubscriptionAuditLog{}, &models.Plan{},
		&models.PremiumContent{}, &models.AccessGrant{},
		&models.Invoice{}, &models.WebhookLog{})

	log := zap.NewNop().Sugar()
	cfg := &config.Config{}
	cfg.Invoice.NumberPrefix = "INV"
	cfg.Invoice.DueDays = 14
	cfg.Invoice.ArtifactDir = t.TempDir()

	registry := provider.NewRegistry(provider.NewInnerClient())
	accessSvc := access.NewService(gdb, log)
	ledgerSvc := ledger.NewService(gdb, log, registry, accessSvc)
	subsSvc := subscription.NewService(cfg, gdb, log, registry)
	invoiceSvc := invoice.NewService(cfg, gdb, log, ledgerSvc, mail.New(cfg))

	return &reconcilerFixture{
		db:     gdb,
		ledger: ledgerSvc,
		rec:    NewReconciler(gdb, log, ledgerSvc, subsSvc, invoiceSvc),
	}
}

func (f *reconcilerFixture) pendingTransaction(t *testing.T, providerRef string) *models.Transaction {
	t.Helper()
	ctx := context.Background()
	txn, err := f.ledger.Create(ctx, &ledger.CreateRequest{
		UserID:   "u1",
		Type:     types.TransactionTypeOneTime,
		Amount:   900,
		Currency: "usd",
		Provider: types.PaymentProviderStripe,
	})
	require.NoError(t, err)
	require.NoError(t, f.ledger.SetProviderRef(ctx, txn.ID, providerRef))
	return txn
}

func paymentSucceededEvent(eventID, providerRef string) *Event {
	return &Event{
		Provider:              types.PaymentProviderStripe,
		ProviderEventID:       eventID,
		RawType:               "payment_intent.succeeded",
		Kind:                  EventPaymentSucceeded,
		ProviderTransactionID: providerRef,
		Payload:               []byte(`{}`),
	}
}

func TestProcess_DuplicateDeliveryIsNoOp(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()
	txn := f.pendingTransaction(t, "pi_dup")
	ev := paymentSucceededEvent("evt_dup", "pi_dup")

	handled, err := f.rec.Process(ctx, ev)
	require.NoError(t, err)
	require.True(t, handled)

	current, err := f.ledger.Get(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusCompleted, current.Status)

	handled, err = f.rec.Process(ctx, ev)
	require.NoError(t, err)
	require.False(t, handled, "processed event id is a true duplicate")

	var logs int64
	require.NoError(t, f.db.Model(&models.WebhookLog{}).Count(&logs).Error)
	require.EqualValues(t, 1, logs)

	var invoices int64
	require.NoError(t, f.db.Model(&models.Invoice{}).
		Where("transaction_id = ?", txn.ID).Count(&invoices).Error)
	require.EqualValues(t, 1, invoices, "redelivery must not issue a second invoice")
}

func TestProcess_RetryAfterFailureDispatchesAgain(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()
	txn := f.pendingTransaction(t, "pi_retry")

	// a prior delivery that errored mid-processing leaves exactly this row
	require.NoError(t, f.db.Create(&models.WebhookLog{
		ID:              tool.GenerateUUIDV7(),
		Provider:        string(types.PaymentProviderStripe),
		ProviderEventID: "evt_retry",
		EventType:       "payment_intent.succeeded",
		Payload:         datatypes.JSON(`{}`),
		Status:          models.WebhookLogStatusFailed,
		Error:           lo.ToPtr("storage briefly unavailable"),
	}).Error)

	handled, err := f.rec.Process(ctx, paymentSucceededEvent("evt_retry", "pi_retry"))
	require.NoError(t, err)
	require.True(t, handled, "redelivery of a failed event must reprocess it")

	current, err := f.ledger.Get(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusCompleted, current.Status,
		"the payment confirmation must not be lost")

	var entry models.WebhookLog
	require.NoError(t, f.db.Where("provider_event_id = ?", "evt_retry").First(&entry).Error)
	require.Equal(t, models.WebhookLogStatusProcessed, entry.Status)

	var logs int64
	require.NoError(t, f.db.Model(&models.WebhookLog{}).Count(&logs).Error)
	require.EqualValues(t, 1, logs, "the retry reuses the logged row")
}

func TestProcess_UnknownReferenceIsAcked(t *testing.T) {
	f := newReconcilerFixture(t)

	handled, err := f.rec.Process(context.Background(), paymentSucceededEvent("evt_orphan", "pi_nowhere"))
	require.NoError(t, err)
	require.True(t, handled)

	var entry models.WebhookLog
	require.NoError(t, f.db.Where("provider_event_id = ?", "evt_orphan").First(&entry).Error)
	require.Equal(t, models.WebhookLogStatusProcessed, entry.Status)
}
