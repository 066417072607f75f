package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/fatflowers/paywall/internal/app/service/ledger"
	"github.com/fatflowers/paywall/internal/app/service/subscription"
	"github.com/fatflowers/paywall/internal/platform/provider/apple"
	"github.com/fatflowers/paywall/pkg/logctx"
	"github.com/fatflowers/paywall/pkg/types"
)

var (
	ErrReceiptMismatch = errors.New("receipt belongs to a different user")
	ErrEmptyReceipt    = errors.New("receipt has no transactions")
)

type AppleReceiptRequest struct {
	UserID      string
	ReceiptData string
}

type AppleReceiptResult struct {
	SubscriptionID string `json:"subscription_id"`
	TransactionID  string `json:"transaction_id"`
	PlanID         string `json:"plan_id"`
	Status         string `json:"status"`
}

// RedeemAppleReceipt registers a purchase made on-device: the receipt is
// verified with the App Store, its product id resolved to a plan and a local
// subscription created under the original transaction id so later server
// notifications find it. Replaying the same receipt returns the existing
// subscription.
func (s *Service) RedeemAppleReceipt(ctx context.Context, req *AppleReceiptRequest) (*AppleReceiptResult, error) {
	if req == nil || req.UserID == "" || req.ReceiptData == "" {
		return nil, fmt.Errorf("invalid request: user id and receipt data required")
	}

	pctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()
	lines, err := s.apple.VerifyReceipt(pctx, req.ReceiptData)
	if err != nil {
		return nil, fmt.Errorf("receipt verification failed: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyReceipt
	}
	line := lines[0]

	if line.AppAccountToken != "" && !tokenMatchesUser(line.AppAccountToken, req.UserID) {
		return nil, ErrReceiptMismatch
	}

	plan, err := s.subs.PlanByAppleProduct(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}

	// the original transaction id is the stable subscription key; a replayed
	// receipt resolves to the row it already created
	if sub, err := s.subs.GetByProviderRef(ctx, line.OriginalTransactionID); err == nil {
		res := &AppleReceiptResult{
			SubscriptionID: sub.ID,
			PlanID:         sub.PlanID,
			Status:         string(sub.Status),
		}
		if txn, terr := s.ledger.GetByProviderRef(ctx, types.PaymentProviderApple, line.TransactionID); terr == nil {
			res.TransactionID = txn.ID
		}
		return res, nil
	} else if !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return nil, err
	}

	trialDays := 0
	if line.IsTrialPeriod == "true" {
		trialDays = plan.TrialDays
	}
	sub, err := s.subs.Create(ctx, &subscription.CreateRequest{
		UserID:                 req.UserID,
		PlanID:                 plan.ID,
		Provider:               types.PaymentProviderApple,
		ProviderSubscriptionID: lo.ToPtr(line.OriginalTransactionID),
		TrialDays:              trialDays,
	})
	if err != nil {
		return nil, err
	}

	amount := plan.Price
	if trialDays > 0 {
		amount = 0
	}
	txn, err := s.ledger.Create(ctx, &ledger.CreateRequest{
		UserID:         req.UserID,
		Type:           types.TransactionTypeSubscription,
		Amount:         amount,
		Currency:       plan.Currency,
		Provider:       types.PaymentProviderApple,
		PlanID:         lo.ToPtr(plan.ID),
		SubscriptionID: lo.ToPtr(sub.ID),
		Metadata:       map[string]any{"apple_product_id": line.ProductID},
	})
	if err != nil {
		return nil, err
	}
	completed, err := s.ledger.Complete(ctx, txn.ID, lo.ToPtr(line.TransactionID))
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("checkout_apple_receipt_redeemed",
		"subscription_id", sub.ID, "transaction_id", completed.ID,
		"user_id", req.UserID, "product_id", line.ProductID)

	return &AppleReceiptResult{
		SubscriptionID: sub.ID,
		TransactionID:  completed.ID,
		PlanID:         plan.ID,
		Status:         string(sub.Status),
	}, nil
}

// tokenMatchesUser accepts either form of the app account token: UUID user
// ids ride through unchanged, shorter ids use the packing scheme.
func tokenMatchesUser(token, userID string) bool {
	if strings.EqualFold(token, userID) {
		return true
	}
	uid, err := apple.TokenToUserID(token)
	return err == nil && uid == strings.ToLower(strings.ReplaceAll(userID, "-", ""))
}
