package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/internal/platform/provider"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/logctx"
	"github.com/fatflowers/paywall/pkg/tool"
	"github.com/fatflowers/paywall/pkg/types"
)

// Service owns the recurring-subscription lifecycle: creation with optional
// trial, cancellation (immediate or at period end), renewal, plan changes and
// the period sweep that expires or renews rows whose period end has passed.
type Service struct {
	cfg       *config.Config
	db        *gorm.DB
	log       *zap.SugaredLogger
	providers *provider.Registry
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, providers *provider.Registry) *Service {
	return &Service{cfg: cfg, db: db, log: log, providers: providers}
}

// Plan loads a plan by id.
func (s *Service) Plan(ctx context.Context, id string) (*models.Plan, error) {
	var plan models.Plan
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return &plan, nil
}

// PlanByAppleProduct resolves the plan an App Store product id is sold as.
func (s *Service) PlanByAppleProduct(ctx context.Context, productID string) (*models.Plan, error) {
	if productID == "" {
		return nil, ErrPlanNotFound
	}
	var plan models.Plan
	err := s.db.WithContext(ctx).Where("apple_product_id = ?", productID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan by product id: %w", err)
	}
	return &plan, nil
}

// SavePlan upserts a plan definition. Plans with subscribers are deactivated,
// never deleted.
func (s *Service) SavePlan(ctx context.Context, plan *models.Plan) error {
	if plan == nil || plan.ID == "" || plan.Price < 0 {
		return fmt.Errorf("invalid plan")
	}
	if err := s.db.WithContext(ctx).Save(plan).Error; err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("plan_saved", "plan_id", plan.ID, "active", plan.Active)
	return nil
}

// ListPlans returns plans, optionally including deactivated ones.
func (s *Service) ListPlans(ctx context.Context, includeInactive bool) ([]*models.Plan, error) {
	q := s.db.WithContext(ctx).Model(&models.Plan{})
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	var plans []*models.Plan
	if err := q.Order("price asc").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

type CreateRequest struct {
	UserID                 string
	PlanID                 string
	Provider               types.PaymentProvider
	ProviderSubscriptionID *string
	// TrialDays overrides the plan's trial when >= 0; -1 uses the plan value.
	TrialDays int
}

// Create starts a subscription. The first period end is computed from the
// plan's billing period; with a trial the subscription starts trialing and
// the trial end is recorded separately.
//
// One effective subscription per user is enforced here at write time: the
// insert happens in a transaction that re-checks for an existing effective
// row.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.Subscription, error) {
	if req == nil || req.UserID == "" || req.PlanID == "" {
		return nil, fmt.Errorf("invalid request: user id and plan id required")
	}

	plan, err := s.Plan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, ErrPlanInactive
	}

	trialDays := plan.TrialDays
	if req.TrialDays >= 0 {
		trialDays = req.TrialDays
	}

	now := time.Now()
	sub := &models.Subscription{
		ID:                     tool.GenerateUUIDV7(),
		UserID:                 req.UserID,
		PlanID:                 plan.ID,
		Provider:               req.Provider,
		ProviderSubscriptionID: req.ProviderSubscriptionID,
		Status:                 types.SubscriptionStatusActive,
		CurrentPeriodStart:     now,
		CurrentPeriodEnd:       plan.BillingPeriod.Advance(now),
		AutoRenew:              true,
	}
	if plan.BillingPeriod == types.BillingPeriodLifetime {
		sub.AutoRenew = false
	}
	if trialDays > 0 {
		sub.Status = types.SubscriptionStatusTrialing
		sub.TrialEndsAt = lo.ToPtr(now.AddDate(0, 0, trialDays))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.Subscription{}).
			Where("user_id = ? AND status IN ?", req.UserID,
				[]types.SubscriptionStatus{types.SubscriptionStatusActive, types.SubscriptionStatusTrialing}).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to check existing subscriptions: %w", err)
		}
		if count > 0 {
			return ErrSubscriptionExists
		}
		return tx.Create(sub).Error
	})
	if err != nil {
		return nil, err
	}

	s.auditAsync(ctx, nil, sub, types.SubscriptionChangeReasonCheckout)

	logctx.FromCtx(ctx, s.log).Infow("subscription_created",
		"subscription_id", sub.ID, "user_id", sub.UserID, "plan_id", sub.PlanID, "status", sub.Status)
	return sub, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

// GetByProviderRef resolves a provider subscription id; webhooks carry no
// internal id.
func (s *Service) GetByProviderRef(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("provider_subscription_id = ?", providerSubscriptionID).
		Order("created_at desc").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription by provider ref: %w", err)
	}
	return &sub, nil
}

// ActiveForUser returns the user's effective subscription, most recent first
// if legacy data holds several.
func (s *Service) ActiveForUser(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID,
			[]types.SubscriptionStatus{types.SubscriptionStatusActive, types.SubscriptionStatusTrialing}).
		Order("created_at desc").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active subscription: %w", err)
	}
	return &sub, nil
}

// Cancel ends a subscription. Immediate cancellation collapses the period end
// to now; deferred cancellation only flags the row and renewal stops at the
// period end.
func (s *Service) Cancel(ctx context.Context, id string, immediately bool, reason string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status.Terminal() {
		return ErrInvalidTransition
	}

	if client, err := s.providers.Get(sub.Provider); err == nil && sub.ProviderSubscriptionID != nil {
		if err := client.CancelSubscription(ctx, *sub.ProviderSubscriptionID, immediately); err != nil {
			// The App Store has no server-side cancel; anything else is a real
			// provider failure and the local state must not diverge.
			if !provider.IsUnsupported(err) {
				return fmt.Errorf("provider cancel failed: %w", err)
			}
		}
	}

	now := time.Now()
	updates := map[string]any{
		"auto_renew":           false,
		"cancel_at_period_end": true,
		"cancel_reason":        reason,
	}
	reasonKind := types.SubscriptionChangeReasonCancel
	if immediately {
		updates["status"] = types.SubscriptionStatusCancelled
		updates["cancelled_at"] = now
		updates["current_period_end"] = now
	}

	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, sub.Status).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to cancel subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}

	after, err := s.Get(ctx, id)
	if err == nil {
		s.auditAsync(ctx, sub, after, reasonKind)
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription_cancelled",
		"subscription_id", id, "immediately", immediately, "reason", reason)
	return nil
}

// Renew advances the current period and reactivates the subscription. It is a
// no-op when auto-renew is off; it is invoked by the period sweep or by a
// webhook confirming a successful recurring charge.
func (s *Service) Renew(ctx context.Context, id string) (bool, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !sub.AutoRenew || sub.CancelAtPeriodEnd {
		return false, nil
	}
	if !CanTransition(sub.Status, types.SubscriptionStatusActive) {
		return false, ErrInvalidTransition
	}

	plan, err := s.Plan(ctx, sub.PlanID)
	if err != nil {
		return false, err
	}

	start := sub.CurrentPeriodEnd
	if now := time.Now(); start.Before(now.AddDate(0, -1, 0)) {
		// long-dormant row (e.g. past_due recovered late): restart from now
		start = now
	}

	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, sub.Status).
		Updates(map[string]any{
			"status":               types.SubscriptionStatusActive,
			"current_period_start": start,
			"current_period_end":   plan.BillingPeriod.Advance(start),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to renew subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	after, err := s.Get(ctx, id)
	if err == nil {
		s.auditAsync(ctx, sub, after, types.SubscriptionChangeReasonRenewal)
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription_renewed", "subscription_id", id)
	return true, nil
}

// MarkPastDue suspends a subscription after a failed renewal charge. Access
// is cut immediately; a later successful charge moves it back to active.
func (s *Service) MarkPastDue(ctx context.Context, id string, reason string) error {
	return s.transition(ctx, id, types.SubscriptionStatusPastDue, types.SubscriptionChangeReasonPastDue, reason)
}

// Expire finalizes a subscription whose period ended without renewal.
func (s *Service) Expire(ctx context.Context, id string) error {
	return s.transition(ctx, id, types.SubscriptionStatusExpired, types.SubscriptionChangeReasonExpire, "")
}

// FinalizeCancellation completes a deferred cancel once the period end is
// reached.
func (s *Service) FinalizeCancellation(ctx context.Context, id string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(sub.Status, types.SubscriptionStatusCancelled) {
		return ErrInvalidTransition
	}

	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, sub.Status).
		Updates(map[string]any{
			"status":       types.SubscriptionStatusCancelled,
			"cancelled_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to finalize cancellation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}

	after, err := s.Get(ctx, id)
	if err == nil {
		s.auditAsync(ctx, sub, after, types.SubscriptionChangeReasonCancel)
	}
	return nil
}

func (s *Service) transition(ctx context.Context, id string, to types.SubscriptionStatus, reason types.SubscriptionChangeReason, note string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status == to {
		return nil
	}
	if !CanTransition(sub.Status, to) {
		logctx.FromCtx(ctx, s.log).Warnw("subscription_transition_rejected",
			"subscription_id", id, "from", sub.Status, "to", to)
		return ErrInvalidTransition
	}

	updates := map[string]any{"status": to}
	if note != "" {
		updates["cancel_reason"] = note
	}
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, sub.Status).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to transition subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == to {
			return nil
		}
		return ErrInvalidTransition
	}

	after, err := s.Get(ctx, id)
	if err == nil {
		s.auditAsync(ctx, sub, after, reason)
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription_transitioned",
		"subscription_id", id, "from", sub.Status, "to", to, "reason", reason)
	return nil
}

// DisableRenewal records a provider-reported auto-renew switch-off. The
// subscription stays effective until its period end; no provider call is made
// because the change originated there.
func (s *Service) DisableRenewal(ctx context.Context, id, reason string) error {
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND auto_renew = ?", id, true).
		Updates(map[string]any{
			"auto_renew":           false,
			"cancel_at_period_end": true,
			"cancel_reason":        reason,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to disable renewal: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		logctx.FromCtx(ctx, s.log).Infow("subscription_renewal_disabled",
			"subscription_id", id, "reason", reason)
	}
	return nil
}

// ChangePlan reassigns the plan. Proration against the provider is delegated;
// only the local assignment changes here.
func (s *Service) ChangePlan(ctx context.Context, id, newPlanID string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status.Terminal() {
		return ErrInvalidTransition
	}
	if sub.PlanID == newPlanID {
		return nil
	}

	plan, err := s.Plan(ctx, newPlanID)
	if err != nil {
		return err
	}
	if !plan.Active {
		return ErrPlanInactive
	}

	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("plan_id", plan.ID).Error; err != nil {
		return fmt.Errorf("failed to change plan: %w", err)
	}

	after, err := s.Get(ctx, id)
	if err == nil {
		s.auditAsync(ctx, sub, after, types.SubscriptionChangeReasonPlanChange)
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription_plan_changed",
		"subscription_id", id, "from_plan", sub.PlanID, "to_plan", newPlanID)
	return nil
}

// ApplyProviderState reconciles a webhook-reported subscription state. Status
// mapping happens at the webhook boundary; this applies period data and the
// already-validated status move.
func (s *Service) ApplyProviderState(ctx context.Context, id string, status types.SubscriptionStatus, periodEnd *time.Time) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if periodEnd != nil && periodEnd.After(sub.CurrentPeriodEnd) {
		res := s.db.WithContext(ctx).Model(&models.Subscription{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"current_period_start": sub.CurrentPeriodEnd,
				"current_period_end":   *periodEnd,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to apply provider period: %w", res.Error)
		}
	}

	if sub.Status == status {
		return nil
	}
	return s.transition(ctx, id, status, types.SubscriptionChangeReasonWebhook, "")
}

func (s *Service) auditAsync(ctx context.Context, before, after *models.Subscription, reason types.SubscriptionChangeReason) {
	go func() {
		entry := &models.SubscriptionAuditLog{
			ID:             tool.GenerateUUIDV7(),
			UserID:         after.UserID,
			SubscriptionID: after.ID,
			Reason:         reason,
			Before:         datatypes.NewJSONType(before),
			After:          datatypes.NewJSONType(after),
		}
		if err := s.db.Save(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save subscription audit log: %v", err)
		}
	}()
}
