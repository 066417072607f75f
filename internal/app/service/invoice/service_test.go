package invoice

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/paywall/internal/app/service/access"
	"github.com/fatflowers/paywall/internal/app/service/ledger"
	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/internal/platform/db/dbtest"
	"github.com/fatflowers/paywall/internal/platform/mail"
	"github.com/fatflowers/paywall/internal/platform/provider"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/tool"
	"github.com/fatflowers/paywall/pkg/types"
)

type invoiceFixture struct {
	db     *gorm.DB
	ledger *ledger.Service
	svc    *Service
}

func newInvoiceFixture(t *testing.T) *invoiceFixture {
	t.Helper()
	gdb := dbtest.Open(t,
		&models.Transaction{}, &models.TransactionAuditLog{},
		&models.PremiumContent{}, &models.AccessGrant{}, &models.Subscription{},
		&models.Invoice{})

	log := zap.NewNop().Sugar()
	cfg := &config.Config{}
	cfg.Invoice.NumberPrefix = "INV"
	cfg.Invoice.DueDays = 14
	cfg.Invoice.ArtifactDir = t.TempDir()

	accessSvc := access.NewService(gdb, log)
	ledgerSvc := ledger.NewService(gdb, log, provider.NewRegistry(provider.NewInnerClient()), accessSvc)
	return &invoiceFixture{
		db:     gdb,
		ledger: ledgerSvc,
		svc:    NewService(cfg, gdb, log, ledgerSvc, mail.New(cfg)),
	}
}

func (f *invoiceFixture) completedTransaction(t *testing.T, providerRef string) *models.Transaction {
	t.Helper()
	ctx := context.Background()
	txn, err := f.ledger.Create(ctx, &ledger.CreateRequest{
		UserID:   "u1",
		Type:     types.TransactionTypeOneTime,
		Amount:   2000,
		Currency: "usd",
		Provider: types.PaymentProviderStripe,
	})
	require.NoError(t, err)
	completed, err := f.ledger.Complete(ctx, txn.ID, lo.ToPtr(providerRef))
	require.NoError(t, err)
	return completed
}

func TestCreateForTransaction_Idempotent(t *testing.T) {
	f := newInvoiceFixture(t)
	ctx := context.Background()
	txn := f.completedTransaction(t, "pi_inv1")

	first, err := f.svc.CreateForTransaction(ctx, txn.ID, nil)
	require.NoError(t, err)
	require.Equal(t, models.InvoiceStatusPaid, first.Status)
	require.NotNil(t, first.PaidAt)

	second, err := f.svc.CreateForTransaction(ctx, txn.ID, nil)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "one invoice per transaction")
	require.Equal(t, first.Number, second.Number)

	var count int64
	require.NoError(t, f.db.Model(&models.Invoice{}).
		Where("transaction_id = ?", txn.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateForTransaction_PendingIsNotBillable(t *testing.T) {
	f := newInvoiceFixture(t)
	ctx := context.Background()
	txn, err := f.ledger.Create(ctx, &ledger.CreateRequest{
		UserID:   "u1",
		Type:     types.TransactionTypeOneTime,
		Amount:   2000,
		Currency: "usd",
		Provider: types.PaymentProviderStripe,
	})
	require.NoError(t, err)

	_, err = f.svc.CreateForTransaction(ctx, txn.ID, nil)
	require.ErrorIs(t, err, ErrTransactionNotBillable)
}

func TestCreateForTransaction_NumbersAreUniqueAndSequential(t *testing.T) {
	f := newInvoiceFixture(t)
	ctx := context.Background()

	seen := map[string]bool{}
	var lastSeq int
	for i := 0; i < 3; i++ {
		txn := f.completedTransaction(t, fmt.Sprintf("pi_seq%d", i))
		inv, err := f.svc.CreateForTransaction(ctx, txn.ID, nil)
		require.NoError(t, err)
		require.False(t, seen[inv.Number], "number %s minted twice", inv.Number)
		seen[inv.Number] = true

		_, seq, err := ParseNumber(inv.Number)
		require.NoError(t, err)
		require.Greater(t, seq, lastSeq, "sequence must be strictly increasing")
		lastSeq = seq
	}
}

func TestNextSequence_CountsPastFourDigits(t *testing.T) {
	f := newInvoiceFixture(t)
	now := time.Now()
	month := now.Format("200601")

	// a month that has already widened the counter past four digits
	for _, seq := range []int{9998, 9999, 10000} {
		require.NoError(t, f.db.Create(&models.Invoice{
			ID:            tool.GenerateUUIDV7(),
			UserID:        "u1",
			TransactionID: tool.GenerateUUIDV7(),
			Number:        fmt.Sprintf("INV-%s%04d", month, seq),
			Amount:        100,
			Total:         100,
			Currency:      "usd",
			Status:        models.InvoiceStatusPaid,
			IssuedAt:      now,
			DueAt:         now,
		}).Error)
	}

	seq, err := f.svc.nextSequence(f.db, now)
	require.NoError(t, err)
	require.Equal(t, 10001, seq, "a five-digit counter must not restart below the widened maximum")
}
