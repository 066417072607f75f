package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/paywall/internal/app/service/invoice"
	"github.com/fatflowers/paywall/internal/app/service/ledger"
	"github.com/fatflowers/paywall/internal/app/service/subscription"
	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/pkg/logctx"
	"github.com/fatflowers/paywall/pkg/metrics"
	"github.com/fatflowers/paywall/pkg/tool"
	"github.com/fatflowers/paywall/pkg/types"
)

// Reconciler turns verified provider events into ledger and subscription
// state. Every event is logged before processing; the unique
// (provider, provider_event_id) index makes redelivery a no-op.
type Reconciler struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	ledger   *ledger.Service
	subs     *subscription.Service
	invoices *invoice.Service
}

func NewReconciler(db *gorm.DB, log *zap.SugaredLogger, ledgerSvc *ledger.Service, subs *subscription.Service, invoices *invoice.Service) *Reconciler {
	return &Reconciler{db: db, log: log, ledger: ledgerSvc, subs: subs, invoices: invoices}
}

// Process reconciles one event. A delivery whose event id already reached
// processed returns (false, nil) without side effects. A processing failure
// marks the log row failed and returns the error so the handler replies
// non-2xx and the provider retries; the retry reclaims the failed row and
// dispatches again.
func (r *Reconciler) Process(ctx context.Context, ev *Event) (bool, error) {
	log := logctx.FromCtx(ctx, r.log)

	entry := &models.WebhookLog{
		ID:              tool.GenerateUUIDV7(),
		Provider:        string(ev.Provider),
		ProviderEventID: ev.ProviderEventID,
		EventType:       ev.RawType,
		Payload:         datatypes.JSON(ev.Payload),
		Status:          models.WebhookLogStatusReceived,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry)
	if res.Error != nil {
		return false, fmt.Errorf("failed to log webhook event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		claimed, id, err := r.reclaim(ctx, ev)
		if err != nil {
			return false, err
		}
		if !claimed {
			log.Infow("webhook_duplicate", "provider", ev.Provider, "event_id", ev.ProviderEventID)
			return false, nil
		}
		entry.ID = id
		log.Infow("webhook_retry", "provider", ev.Provider, "event_id", ev.ProviderEventID)
	}

	if err := r.dispatch(ctx, ev); err != nil {
		r.finishLog(ctx, entry.ID, models.WebhookLogStatusFailed, lo.ToPtr(err.Error()))
		metrics.WebhookEventsFailed.WithLabelValues(string(ev.Provider)).Inc()
		log.Errorw("webhook_failed",
			"provider", ev.Provider, "event_id", ev.ProviderEventID, "type", ev.RawType, "error", err)
		return true, err
	}

	r.finishLog(ctx, entry.ID, models.WebhookLogStatusProcessed, nil)
	metrics.WebhookEventsProcessed.WithLabelValues(string(ev.Provider)).Inc()
	log.Infow("webhook_processed",
		"provider", ev.Provider, "event_id", ev.ProviderEventID, "type", ev.RawType, "kind", ev.Kind)
	return true, nil
}

// reclaim decides what a redelivery means: a row that reached processed is a
// true duplicate, a failed (or stranded received) row is an unfinished
// delivery the retry must run again. The take-back is compare-and-set so two
// concurrent redeliveries cannot both dispatch.
func (r *Reconciler) reclaim(ctx context.Context, ev *Event) (bool, string, error) {
	var prior models.WebhookLog
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", ev.Provider, ev.ProviderEventID).
		First(&prior).Error
	if err != nil {
		return false, "", fmt.Errorf("failed to load webhook log: %w", err)
	}
	if prior.Status == models.WebhookLogStatusProcessed {
		return false, "", nil
	}

	res := r.db.WithContext(ctx).Model(&models.WebhookLog{}).
		Where("id = ? AND status = ?", prior.ID, prior.Status).
		Updates(map[string]any{
			"status":       models.WebhookLogStatusReceived,
			"error":        nil,
			"processed_at": nil,
		})
	if res.Error != nil {
		return false, "", fmt.Errorf("failed to reclaim webhook log: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// a concurrent delivery holds the row
		return false, "", nil
	}
	return true, prior.ID, nil
}

func (r *Reconciler) dispatch(ctx context.Context, ev *Event) error {
	switch ev.Kind {
	case EventPaymentSucceeded:
		return r.onPaymentSucceeded(ctx, ev)
	case EventPaymentFailed:
		return r.onPaymentFailed(ctx, ev)
	case EventRefundApplied:
		return r.onRefund(ctx, ev)
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCancelled:
		return r.onSubscriptionEvent(ctx, ev)
	default:
		// outside the handled set; acknowledged so the provider stops retrying
		logctx.FromCtx(ctx, r.log).Infow("webhook_ignored",
			"provider", ev.Provider, "type", ev.RawType)
		return nil
	}
}

func (r *Reconciler) onPaymentSucceeded(ctx context.Context, ev *Event) error {
	txn, err := r.ledger.GetByProviderRef(ctx, ev.Provider, ev.ProviderTransactionID)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		if ev.ProviderSubscriptionID != "" {
			return r.onRenewalCharge(ctx, ev)
		}
		// no ledger row references this charge; acknowledged so the provider
		// stops retrying, flagged for manual review
		logctx.FromCtx(ctx, r.log).Warnw("webhook_unknown_reference",
			"provider", ev.Provider, "provider_transaction_id", ev.ProviderTransactionID)
		return nil
	}
	if err != nil {
		return err
	}

	completed, err := r.ledger.Complete(ctx, txn.ID, nil)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidStateTransition) {
			// stale delivery against a terminal row; nothing to do
			return nil
		}
		return err
	}

	if completed.SubscriptionID != nil {
		if err := r.subs.ApplyProviderState(ctx, *completed.SubscriptionID,
			types.SubscriptionStatusActive, ev.PeriodEnd); err != nil &&
			!errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return err
		}
	}

	if _, err := r.invoices.CreateForTransaction(ctx, completed.ID, nil); err != nil {
		// the payment stands regardless; invoice issuance can be replayed
		logctx.FromCtx(ctx, r.log).Errorw("webhook_invoice_failed",
			"transaction_id", completed.ID, "error", err)
	}
	return nil
}

// onRenewalCharge records a recurring charge that has no pending ledger row:
// the provider billed the period on its own schedule.
func (r *Reconciler) onRenewalCharge(ctx context.Context, ev *Event) error {
	sub, err := r.subs.GetByProviderRef(ctx, ev.ProviderSubscriptionID)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		logctx.FromCtx(ctx, r.log).Warnw("webhook_unknown_reference",
			"provider", ev.Provider, "provider_subscription_id", ev.ProviderSubscriptionID)
		return nil
	}
	if err != nil {
		return err
	}

	plan, err := r.subs.Plan(ctx, sub.PlanID)
	if err != nil {
		return err
	}

	txn, err := r.ledger.Create(ctx, &ledger.CreateRequest{
		UserID:         sub.UserID,
		Type:           types.TransactionTypeSubscription,
		Amount:         plan.Price,
		Currency:       plan.Currency,
		Provider:       ev.Provider,
		PlanID:         lo.ToPtr(sub.PlanID),
		SubscriptionID: lo.ToPtr(sub.ID),
		Metadata:       map[string]any{"renewal": true},
	})
	if err != nil {
		return err
	}
	if _, err := r.ledger.Complete(ctx, txn.ID, lo.ToPtr(ev.ProviderTransactionID)); err != nil {
		return err
	}

	if err := r.subs.ApplyProviderState(ctx, sub.ID, types.SubscriptionStatusActive, ev.PeriodEnd); err != nil {
		return err
	}

	if _, err := r.invoices.CreateForTransaction(ctx, txn.ID, nil); err != nil {
		logctx.FromCtx(ctx, r.log).Errorw("webhook_invoice_failed",
			"transaction_id", txn.ID, "error", err)
	}
	return nil
}

func (r *Reconciler) onPaymentFailed(ctx context.Context, ev *Event) error {
	txn, err := r.ledger.GetByProviderRef(ctx, ev.Provider, ev.ProviderTransactionID)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		if ev.ProviderSubscriptionID != "" {
			return r.suspendByProviderRef(ctx, ev)
		}
		logctx.FromCtx(ctx, r.log).Warnw("webhook_unknown_reference",
			"provider", ev.Provider, "provider_transaction_id", ev.ProviderTransactionID)
		return nil
	}
	if err != nil {
		return err
	}

	reason := ev.FailureReason
	if reason == "" {
		reason = "payment failed"
	}
	if err := r.ledger.UpdateStatus(ctx, txn.ID, types.TransactionStatusFailed, nil, lo.ToPtr(reason)); err != nil {
		if errors.Is(err, ledger.ErrInvalidStateTransition) {
			return nil
		}
		return err
	}

	if txn.SubscriptionID != nil {
		if err := r.subs.MarkPastDue(ctx, *txn.SubscriptionID, reason); err != nil &&
			!errors.Is(err, subscription.ErrSubscriptionNotFound) &&
			!errors.Is(err, subscription.ErrInvalidTransition) {
			return err
		}
	}
	return nil
}

func (r *Reconciler) suspendByProviderRef(ctx context.Context, ev *Event) error {
	sub, err := r.subs.GetByProviderRef(ctx, ev.ProviderSubscriptionID)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		logctx.FromCtx(ctx, r.log).Warnw("webhook_unknown_reference",
			"provider", ev.Provider, "provider_subscription_id", ev.ProviderSubscriptionID)
		return nil
	}
	if err != nil {
		return err
	}
	reason := ev.FailureReason
	if reason == "" {
		reason = "renewal charge failed"
	}
	err = r.subs.MarkPastDue(ctx, sub.ID, reason)
	if errors.Is(err, subscription.ErrInvalidTransition) {
		return nil
	}
	return err
}

func (r *Reconciler) onRefund(ctx context.Context, ev *Event) error {
	txn, err := r.ledger.GetByProviderRef(ctx, ev.Provider, ev.ProviderTransactionID)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		logctx.FromCtx(ctx, r.log).Warnw("webhook_unknown_reference",
			"provider", ev.Provider, "provider_transaction_id", ev.ProviderTransactionID)
		return nil
	}
	if err != nil {
		return err
	}

	if err := r.ledger.ApplyRefund(ctx, txn, time.Now()); err != nil {
		if errors.Is(err, ledger.ErrInvalidStateTransition) {
			// already refunded or never completed; the log row records it
			return nil
		}
		return err
	}

	if err := r.invoices.CancelForTransaction(ctx, txn.ID); err != nil {
		logctx.FromCtx(ctx, r.log).Errorw("webhook_invoice_cancel_failed",
			"transaction_id", txn.ID, "error", err)
	}

	// a refunded subscription charge also ends the subscription
	if txn.Type == types.TransactionTypeSubscription && txn.SubscriptionID != nil {
		if err := r.subs.Cancel(ctx, *txn.SubscriptionID, true, "charge refunded"); err != nil &&
			!errors.Is(err, subscription.ErrInvalidTransition) &&
			!errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return err
		}
	}
	return nil
}

func (r *Reconciler) onSubscriptionEvent(ctx context.Context, ev *Event) error {
	sub, err := r.subs.GetByProviderRef(ctx, ev.ProviderSubscriptionID)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		logctx.FromCtx(ctx, r.log).Warnw("webhook_unknown_reference",
			"provider", ev.Provider, "provider_subscription_id", ev.ProviderSubscriptionID)
		return nil
	}
	if err != nil {
		return err
	}

	if ev.RenewalDisabled {
		if err := r.subs.DisableRenewal(ctx, sub.ID, "disabled at provider"); err != nil {
			return err
		}
	}

	if ev.SubscriptionStatus == "" {
		return nil
	}
	err = r.subs.ApplyProviderState(ctx, sub.ID, ev.SubscriptionStatus, ev.PeriodEnd)
	if errors.Is(err, subscription.ErrInvalidTransition) {
		// provider state lags a local terminal transition; keep ours
		logctx.FromCtx(ctx, r.log).Warnw("webhook_state_conflict",
			"subscription_id", sub.ID, "local", sub.Status, "provider", ev.SubscriptionStatus)
		return nil
	}
	return err
}

func (r *Reconciler) finishLog(ctx context.Context, id string, status models.WebhookLogStatus, errMsg *string) {
	updates := map[string]any{
		"status":       status,
		"processed_at": time.Now(),
	}
	if errMsg != nil {
		updates["error"] = *errMsg
	}
	if err := r.db.WithContext(ctx).Model(&models.WebhookLog{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		logctx.FromCtx(ctx, r.log).Errorf("failed to update webhook log %s: %v", id, err)
	}
}
