package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/paywall/internal/app/service/ledger"
	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/internal/platform/mail"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/logctx"
	"github.com/fatflowers/paywall/pkg/tool"
	"github.com/fatflowers/paywall/pkg/types"
)

// Service issues invoices for completed transactions. One invoice per
// transaction; numbers are unique and strictly increasing within a month.
type Service struct {
	cfg    *config.Config
	db     *gorm.DB
	log    *zap.SugaredLogger
	ledger *ledger.Service
	mail   *mail.Sender
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, ledgerSvc *ledger.Service, sender *mail.Sender) *Service {
	return &Service{cfg: cfg, db: db, log: log, ledger: ledgerSvc, mail: sender}
}

// BillingDetails carries the buyer information an invoice needs beyond the
// transaction row. Values missing here fall back to transaction metadata.
type BillingDetails struct {
	Email   string
	Country string
	VATID   string
}

// CreateForTransaction issues the invoice for a completed transaction.
// Idempotent: a second call returns the existing invoice. Numbering is
// serialized through a row lock on the month's latest invoice, with the
// unique index as backstop.
func (s *Service) CreateForTransaction(ctx context.Context, transactionID string, details *BillingDetails) (*models.Invoice, error) {
	txn, err := s.ledger.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status != types.TransactionStatusCompleted {
		return nil, ErrTransactionNotBillable
	}

	if existing, err := s.GetByTransaction(ctx, transactionID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrInvoiceNotFound) {
		return nil, err
	}

	d := s.resolveDetails(txn, details)

	now := time.Now()
	subtotal := txn.NetAmount()
	taxRate := s.cfg.TaxRateFor(d.Country, d.VATID)
	tax := subtotal * taxRate / 10000

	inv := &models.Invoice{
		ID:            tool.GenerateUUIDV7(),
		UserID:        txn.UserID,
		TransactionID: txn.ID,
		Amount:        subtotal,
		TaxAmount:     tax,
		Total:         subtotal + tax,
		Currency:      txn.Currency,
		Status:        models.InvoiceStatusPaid,
		IssuedAt:      now,
		DueAt:         now.AddDate(0, 0, s.cfg.Invoice.DueDays),
		PaidAt:        lo.ToPtr(now),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := s.nextSequence(tx, now)
		if err != nil {
			return err
		}
		inv.Number = FormatNumber(s.cfg.Invoice.NumberPrefix, now, seq)
		return tx.Create(inv).Error
	})
	if err != nil {
		// concurrent issuance for the same transaction loses the unique-index
		// race; hand back the winner
		if existing, gerr := s.GetByTransaction(ctx, transactionID); gerr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	if err := s.ledger.SetInvoiceID(ctx, txn.ID, inv.ID); err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to backlink invoice %s to transaction %s: %v", inv.ID, txn.ID, err)
	}

	// rendering and delivery are best effort; the invoice row is the record
	go s.renderArtifact(ctx, inv, txn, d)
	if d.Email != "" {
		go s.deliver(ctx, inv, txn, d)
	}

	logctx.FromCtx(ctx, s.log).Infow("invoice_issued",
		"invoice_id", inv.ID, "number", inv.Number, "transaction_id", txn.ID, "total", inv.Total)
	return inv, nil
}

// nextSequence computes the next per-month sequence while holding a lock on
// the month's newest invoice row so two issuers cannot read the same value.
// Ordering is by length first: the counter widens past four digits, so a
// plain lexicographic sort would rank 10000 below 9999.
func (s *Service) nextSequence(tx *gorm.DB, issued time.Time) (int, error) {
	prefix := fmt.Sprintf("%s-%s", s.cfg.Invoice.NumberPrefix, issued.Format("200601"))
	q := tx
	if tx.Dialector.Name() == "postgres" {
		// sqlite has no SELECT ... FOR UPDATE; its single-writer lock covers
		// the transaction
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var last models.Invoice
	err := q.
		Where("number LIKE ?", prefix+"%").
		Order("length(number) desc, number desc").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock invoice sequence: %w", err)
	}
	_, seq, err := ParseNumber(last.Number)
	if err != nil {
		return 0, err
	}
	return seq + 1, nil
}

func (s *Service) resolveDetails(txn *models.Transaction, details *BillingDetails) *BillingDetails {
	d := &BillingDetails{}
	if details != nil {
		*d = *details
	}
	meta := func(key string) string {
		if v, ok := txn.Metadata[key].(string); ok {
			return v
		}
		return ""
	}
	if d.Email == "" {
		d.Email = meta("email")
	}
	if d.Country == "" {
		d.Country = meta("country")
	}
	if d.VATID == "" {
		d.VATID = meta("vat_id")
	}
	return d
}

func (s *Service) Get(ctx context.Context, id string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	return &inv, nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Where("number = ?", number).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	return &inv, nil
}

func (s *Service) GetByTransaction(ctx context.Context, transactionID string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	return &inv, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]*models.Invoice, error) {
	var invoices []*models.Invoice
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at desc").
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

// CancelForTransaction voids the invoice after a refund. The number is never
// reused.
func (s *Service) CancelForTransaction(ctx context.Context, transactionID string) error {
	res := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("transaction_id = ? AND status <> ?", transactionID, models.InvoiceStatusCancelled).
		Update("status", models.InvoiceStatusCancelled)
	if res.Error != nil {
		return fmt.Errorf("failed to cancel invoice: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		logctx.FromCtx(ctx, s.log).Infow("invoice_cancelled", "transaction_id", transactionID)
	}
	return nil
}
