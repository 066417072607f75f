package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/paywall/internal/app/service/access"
	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/internal/platform/provider"
	"github.com/fatflowers/paywall/pkg/logctx"
	"github.com/fatflowers/paywall/pkg/metrics"
	"github.com/fatflowers/paywall/pkg/tool"
	"github.com/fatflowers/paywall/pkg/types"
)

// Service is the transaction ledger: the single source of truth for whether
// money moved. Every monetary operation starts as a pending row here; status
// changes are compare-and-set so a delayed duplicate webhook can never
// resurrect a terminal transaction.
type Service struct {
	db        *gorm.DB
	log       *zap.SugaredLogger
	providers *provider.Registry
	accessSvc *access.Service
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, providers *provider.Registry, accessSvc *access.Service) *Service {
	return &Service{db: db, log: log, providers: providers, accessSvc: accessSvc}
}

// CreateRequest describes a new ledger entry. Exactly one of ContentRef and
// PlanID must be set, depending on Type.
type CreateRequest struct {
	UserID         string
	Type           types.TransactionType
	Amount         int64
	Currency       string
	Provider       types.PaymentProvider
	ContentRef     *types.ContentRef
	PlanID         *string
	SubscriptionID *string
	CouponCode     string
	DiscountAmount int64
	Metadata       map[string]any
}

// Create inserts a pending transaction. No side effects beyond the insert.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.Transaction, error) {
	if req == nil || req.UserID == "" {
		return nil, fmt.Errorf("invalid request: user id required")
	}
	if req.Amount < 0 {
		return nil, fmt.Errorf("invalid request: negative amount")
	}

	txn := &models.Transaction{
		ID:             tool.GenerateUUIDV7(),
		UserID:         req.UserID,
		Type:           req.Type,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Status:         types.TransactionStatusPending,
		Provider:       req.Provider,
		PlanID:         req.PlanID,
		SubscriptionID: req.SubscriptionID,
		CouponCode:     req.CouponCode,
		DiscountAmount: req.DiscountAmount,
		Metadata:       datatypes.JSONMap(req.Metadata),
	}
	if req.ContentRef != nil {
		txn.ContentType = lo.ToPtr(req.ContentRef.Type)
		txn.ContentID = lo.ToPtr(req.ContentRef.ID)
	}

	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("transaction_created",
		"transaction_id", txn.ID, "user_id", txn.UserID, "type", txn.Type, "amount", txn.Amount)
	return txn, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return &txn, nil
}

// GetByProviderRef resolves a webhook's provider transaction id to the ledger
// row it concerns.
func (s *Service) GetByProviderRef(ctx context.Context, p types.PaymentProvider, providerTransactionID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_transaction_id = ?", p, providerTransactionID).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction by provider ref: %w", err)
	}
	return &txn, nil
}

// UpdateStatus moves a transaction from its current non-terminal status to
// newStatus. The update is an atomic conditional write: it applies only while
// the row is still in a status the transition is legal from, so concurrent or
// replayed updates cannot overwrite a terminal result.
func (s *Service) UpdateStatus(ctx context.Context, id string, newStatus types.TransactionStatus, providerRef *string, failureReason *string) error {
	txn, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if txn.Status == newStatus {
		// idempotent replay
		return nil
	}
	if txn.Status.Terminal() {
		logctx.FromCtx(ctx, s.log).Warnw("transaction_transition_rejected",
			"transaction_id", id, "from", txn.Status, "to", newStatus)
		return ErrInvalidStateTransition
	}

	updates := map[string]any{"status": newStatus}
	if providerRef != nil {
		updates["provider_transaction_id"] = *providerRef
	}
	if failureReason != nil {
		updates["failure_reason"] = *failureReason
	}

	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, txn.Status).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update transaction status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// lost the race; reload and decide
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == newStatus {
			return nil
		}
		return ErrInvalidStateTransition
	}

	s.auditAsync(ctx, txn, newStatus, string(newStatus))

	if newStatus == types.TransactionStatusCompleted {
		metrics.PaymentsCompleted.WithLabelValues(string(txn.Provider)).Inc()
	}

	logctx.FromCtx(ctx, s.log).Infow("transaction_status_updated",
		"transaction_id", id, "from", txn.Status, "to", newStatus)
	return nil
}

// Complete marks a transaction completed and writes the access grant for
// one-time content purchases. Invoice creation is the caller's concern.
func (s *Service) Complete(ctx context.Context, id string, providerRef *string) (*models.Transaction, error) {
	if err := s.UpdateStatus(ctx, id, types.TransactionStatusCompleted, providerRef, nil); err != nil {
		return nil, err
	}

	txn, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if txn.Type == types.TransactionTypeOneTime {
		if ref := txn.ContentRef(); ref != nil {
			method := access.GrantMethodPurchase
			if txn.Provider == types.PaymentProviderInner {
				method = access.GrantMethodGift
			}
			if err := s.accessSvc.Grant(ctx, txn.UserID, *ref, method, lo.ToPtr(txn.ID), nil); err != nil {
				return nil, fmt.Errorf("failed to grant access: %w", err)
			}
		}
	}
	return txn, nil
}

// ProcessRefund refunds a completed transaction through its provider, then
// marks it refunded and revokes any one-time grant it funded. A provider
// failure leaves the transaction completed and is surfaced to the caller.
func (s *Service) ProcessRefund(ctx context.Context, id string, reason string) error {
	txn, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if txn.Status != types.TransactionStatusCompleted {
		return ErrNotRefundable
	}
	if txn.Type == types.TransactionTypeSubscription {
		// recurring charges are reversed by the provider and reconciled via
		// webhook, not through this path
		return ErrNotRefundable
	}

	client, err := s.providers.Get(txn.Provider)
	if err != nil {
		return err
	}

	providerRef := ""
	if txn.ProviderTransactionID != nil {
		providerRef = *txn.ProviderTransactionID
	}
	if _, err := client.Refund(ctx, providerRef, txn.NetAmount(), reason); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("refund_provider_error",
			"transaction_id", id, "error", err.Error())
		return fmt.Errorf("provider refund failed: %w", err)
	}

	return s.ApplyRefund(ctx, txn, time.Now())
}

// ApplyRefund records a refund that the provider has already executed (either
// via ProcessRefund or reported by webhook) and revokes dependent grants.
func (s *Service) ApplyRefund(ctx context.Context, txn *models.Transaction, refundedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", txn.ID, types.TransactionStatusCompleted).
		Updates(map[string]any{
			"status":      types.TransactionStatusRefunded,
			"refunded_at": refundedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark transaction refunded: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.Get(ctx, txn.ID)
		if err != nil {
			return err
		}
		if current.Status == types.TransactionStatusRefunded {
			return nil
		}
		return ErrInvalidStateTransition
	}

	if err := s.accessSvc.RevokeByTransaction(ctx, txn.ID); err != nil {
		return err
	}

	s.auditAsync(ctx, txn, types.TransactionStatusRefunded, "refund")

	logctx.FromCtx(ctx, s.log).Infow("transaction_refunded",
		"transaction_id", txn.ID, "user_id", txn.UserID)
	return nil
}

// SetProviderRef attaches the provider's transaction id to a still-pending
// row once the provider has acknowledged the charge.
func (s *Service) SetProviderRef(ctx context.Context, id, providerRef string) error {
	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, types.TransactionStatusPending).
		Update("provider_transaction_id", providerRef)
	if res.Error != nil {
		return fmt.Errorf("failed to set provider ref: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidStateTransition
	}
	return nil
}

// SetInvoiceID back-references the invoice issued for the transaction.
func (s *Service) SetInvoiceID(ctx context.Context, id, invoiceID string) error {
	return s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("invoice_id", invoiceID).Error
}

// auditAsync writes a before/after snapshot without blocking the caller.
func (s *Service) auditAsync(ctx context.Context, before *models.Transaction, newStatus types.TransactionStatus, reason string) {
	after := *before
	after.Status = newStatus
	go func() {
		entry := &models.TransactionAuditLog{
			ID:            tool.GenerateUUIDV7(),
			UserID:        before.UserID,
			TransactionID: before.ID,
			Reason:        reason,
			Before:        datatypes.NewJSONType(before),
			After:         datatypes.NewJSONType(&after),
		}
		if err := s.db.Save(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save transaction audit log: %v", err)
		}
	}()
}
