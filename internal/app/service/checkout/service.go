package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/paywall/internal/app/service/access"
	"github.com/fatflowers/paywall/internal/app/service/ledger"
	"github.com/fatflowers/paywall/internal/app/service/subscription"
	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/internal/platform/provider"
	"github.com/fatflowers/paywall/internal/platform/provider/apple"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/logctx"
	"github.com/fatflowers/paywall/pkg/types"
)

var (
	ErrContentNotPurchasable = errors.New("content is not purchasable")
	ErrAlreadyOwned          = errors.New("content already owned")
	ErrInvalidCoupon         = errors.New("coupon code is not valid")
)

// providerTimeout bounds the synchronous provider call during checkout. On
// expiry the transaction stays pending and completion arrives by webhook.
const providerTimeout = 15 * time.Second

// Service drives the purchase flows: it prices the item, opens the pending
// ledger row, asks the provider for a payment handle and returns what the
// frontend needs to finish paying.
type Service struct {
	cfg       *config.Config
	log       *zap.SugaredLogger
	providers *provider.Registry
	ledger    *ledger.Service
	subs      *subscription.Service
	access    *access.Service
	apple     receiptVerifier
}

// receiptVerifier is the App Store surface receipt redemption needs.
type receiptVerifier interface {
	VerifyReceipt(ctx context.Context, receiptData string) ([]*apple.ReceiptLine, error)
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, providers *provider.Registry, ledgerSvc *ledger.Service, subs *subscription.Service, accessSvc *access.Service, appleIAP *apple.Client) *Service {
	return &Service{cfg: cfg, log: log, providers: providers, ledger: ledgerSvc, subs: subs, access: accessSvc, apple: appleIAP}
}

type OneTimeRequest struct {
	UserID     string
	ContentRef types.ContentRef
	Provider   types.PaymentProvider
	CouponCode string
	Email      string
	Country    string
}

// OneTimeResult carries the provider handle the frontend completes payment
// with; the transaction id is this system's reference for polling.
type OneTimeResult struct {
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Discount      int64  `json:"discount"`
	Currency      string `json:"currency"`
	ClientSecret  string `json:"client_secret,omitempty"`
	ApprovalURL   string `json:"approval_url,omitempty"`
}

// OneTime starts a one-time content purchase.
func (s *Service) OneTime(ctx context.Context, req *OneTimeRequest) (*OneTimeResult, error) {
	if req == nil || req.UserID == "" || !req.ContentRef.Valid() {
		return nil, fmt.Errorf("invalid request: user id and content reference required")
	}

	rule, err := s.access.Rule(ctx, req.ContentRef)
	if err != nil {
		return nil, err
	}
	if rule == nil || rule.AccessType != types.AccessTypeOneTime || rule.Price <= 0 {
		return nil, ErrContentNotPurchasable
	}

	owned, err := s.access.HasAccess(ctx, req.UserID, req.ContentRef)
	if err != nil {
		return nil, err
	}
	if owned {
		return nil, ErrAlreadyOwned
	}

	var discount int64
	if req.CouponCode != "" {
		coupon := s.cfg.GetCoupon(req.CouponCode)
		if coupon == nil {
			return nil, ErrInvalidCoupon
		}
		discount = coupon.Discount(rule.Price)
	}

	txn, err := s.ledger.Create(ctx, &ledger.CreateRequest{
		UserID:         req.UserID,
		Type:           types.TransactionTypeOneTime,
		Amount:         rule.Price,
		Currency:       rule.Currency,
		Provider:       req.Provider,
		ContentRef:     &req.ContentRef,
		CouponCode:     req.CouponCode,
		DiscountAmount: discount,
		Metadata:       billingMetadata(req.Email, req.Country),
	})
	if err != nil {
		return nil, err
	}

	client, err := s.providers.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	intent, err := client.CreateIntent(pctx, &provider.IntentRequest{
		Amount:      txn.NetAmount(),
		Currency:    txn.Currency,
		Description: fmt.Sprintf("%s %s", req.ContentRef.Type, req.ContentRef.ID),
		Metadata:    map[string]string{"transaction_id": txn.ID, "user_id": req.UserID},
	})
	if err != nil {
		// on timeout the charge may still exist provider-side; the row stays
		// pending and a webhook settles it either way
		if !errors.Is(err, context.DeadlineExceeded) && !retryable(err) {
			s.failPending(ctx, txn.ID, err)
		}
		return nil, fmt.Errorf("provider intent failed: %w", err)
	}

	if err := s.ledger.SetProviderRef(ctx, txn.ID, intent.ProviderTransactionID); err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("checkout_one_time_started",
		"transaction_id", txn.ID, "user_id", req.UserID, "provider", req.Provider, "amount", txn.NetAmount())

	return &OneTimeResult{
		TransactionID: txn.ID,
		Amount:        txn.NetAmount(),
		Discount:      discount,
		Currency:      txn.Currency,
		ClientSecret:  intent.ClientSecret,
		ApprovalURL:   intent.ApprovalURL,
	}, nil
}

type SubscribeRequest struct {
	UserID string
	PlanID string
	Provider types.PaymentProvider
	// ProviderPlanID is the plan's identifier on the provider side (a Stripe
	// price id, a PayPal billing plan id).
	ProviderPlanID string
	Email          string
	Country        string
}

type SubscribeResult struct {
	SubscriptionID string `json:"subscription_id"`
	TransactionID  string `json:"transaction_id"`
	Status         string `json:"status"`
	ApprovalURL    string `json:"approval_url,omitempty"`
}

// Subscribe starts a subscription checkout: the provider-side subscription is
// created first, then the local row and the pending first-charge ledger entry.
func (s *Service) Subscribe(ctx context.Context, req *SubscribeRequest) (*SubscribeResult, error) {
	if req == nil || req.UserID == "" || req.PlanID == "" {
		return nil, fmt.Errorf("invalid request: user id and plan id required")
	}

	plan, err := s.subs.Plan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, subscription.ErrPlanInactive
	}

	// reject before touching the provider when a subscription already runs
	if _, err := s.subs.ActiveForUser(ctx, req.UserID); err == nil {
		return nil, subscription.ErrSubscriptionExists
	} else if !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return nil, err
	}

	client, err := s.providers.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	psub, err := client.CreateSubscription(pctx, &provider.SubscriptionRequest{
		ProviderPlanID: req.ProviderPlanID,
		TrialDays:      plan.TrialDays,
		Metadata:       map[string]string{"user_id": req.UserID, "plan_id": plan.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("provider subscription failed: %w", err)
	}

	sub, err := s.subs.Create(ctx, &subscription.CreateRequest{
		UserID:                 req.UserID,
		PlanID:                 plan.ID,
		Provider:               req.Provider,
		ProviderSubscriptionID: lo.ToPtr(psub.ProviderSubscriptionID),
		TrialDays:              -1,
	})
	if err != nil {
		// the provider-side subscription is orphaned; cancel best effort
		if cerr := client.CancelSubscription(ctx, psub.ProviderSubscriptionID, true); cerr != nil {
			logctx.FromCtx(ctx, s.log).Errorw("checkout_orphan_cancel_failed",
				"provider_subscription_id", psub.ProviderSubscriptionID, "error", cerr)
		}
		return nil, err
	}

	txn, err := s.ledger.Create(ctx, &ledger.CreateRequest{
		UserID:         req.UserID,
		Type:           types.TransactionTypeSubscription,
		Amount:         plan.Price,
		Currency:       plan.Currency,
		Provider:       req.Provider,
		PlanID:         lo.ToPtr(plan.ID),
		SubscriptionID: lo.ToPtr(sub.ID),
		Metadata:       billingMetadata(req.Email, req.Country),
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("checkout_subscription_started",
		"subscription_id", sub.ID, "transaction_id", txn.ID, "user_id", req.UserID, "plan_id", plan.ID)

	return &SubscribeResult{
		SubscriptionID: sub.ID,
		TransactionID:  txn.ID,
		Status:         string(sub.Status),
		ApprovalURL:    psub.ApprovalURL,
	}, nil
}

// Gift grants content or a plan through the inner provider, recording a
// zero-amount completed transaction.
func (s *Service) Gift(ctx context.Context, userID string, ref *types.ContentRef, planID *string, note string) (*models.Transaction, error) {
	if userID == "" || (ref == nil) == (planID == nil) {
		return nil, fmt.Errorf("invalid request: user id plus exactly one of content and plan required")
	}

	req := &ledger.CreateRequest{
		UserID:   userID,
		Type:     types.TransactionTypeOneTime,
		Amount:   0,
		Currency: "usd",
		Provider: types.PaymentProviderInner,
		Metadata: map[string]any{"note": note},
	}
	if ref != nil {
		req.ContentRef = ref
	}

	if planID != nil {
		plan, err := s.subs.Plan(ctx, *planID)
		if err != nil {
			return nil, err
		}
		sub, err := s.subs.Create(ctx, &subscription.CreateRequest{
			UserID:    userID,
			PlanID:    plan.ID,
			Provider:  types.PaymentProviderInner,
			TrialDays: 0,
		})
		if err != nil {
			return nil, err
		}
		req.Type = types.TransactionTypeSubscription
		req.PlanID = planID
		req.SubscriptionID = lo.ToPtr(sub.ID)
		req.Currency = plan.Currency
	}

	txn, err := s.ledger.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	completed, err := s.ledger.Complete(ctx, txn.ID, lo.ToPtr("inner-"+txn.ID))
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("gift_granted",
		"transaction_id", completed.ID, "user_id", userID)
	return completed, nil
}

func (s *Service) failPending(ctx context.Context, txnID string, cause error) {
	if err := s.ledger.UpdateStatus(ctx, txnID, types.TransactionStatusFailed, nil, lo.ToPtr(cause.Error())); err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to fail pending transaction %s: %v", txnID, err)
	}
}

func retryable(err error) bool {
	var perr *provider.Error
	return errors.As(err, &perr) && perr.Retryable
}

func billingMetadata(email, country string) map[string]any {
	m := map[string]any{}
	if email != "" {
		m["email"] = email
	}
	if country != "" {
		m["country"] = country
	}
	return m
}
