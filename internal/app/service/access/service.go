package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/pkg/logctx"
	"github.com/fatflowers/paywall/pkg/tool"
	"github.com/fatflowers/paywall/pkg/types"
)

// GrantMethod records how an access grant came to exist.
const (
	GrantMethodPurchase = "purchase"
	GrantMethodGift     = "gift"
)

// Service resolves whether a user may access a content item and maintains the
// one-time grants backing that decision. Resolution is read-only and safe to
// call on every content view; each call re-evaluates current state with
// indexed lookups.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// HasAccess answers "may access?" for a user and content item.
func (s *Service) HasAccess(ctx context.Context, userID string, ref types.ContentRef) (bool, error) {
	rule, err := s.Rule(ctx, ref)
	if err != nil {
		return false, err
	}

	subs, err := s.effectiveSubscriptions(ctx, userID)
	if err != nil {
		return false, err
	}

	var grant *models.AccessGrant
	if rule != nil && rule.AccessType == types.AccessTypeOneTime {
		grant, err = s.grantFor(ctx, userID, ref)
		if err != nil {
			return false, err
		}
	}

	return Evaluate(rule, grant, subs, time.Now()), nil
}

// Evaluate applies the access rules to already-loaded state. Ungated content
// (no rule) is always accessible.
func Evaluate(rule *models.PremiumContent, grant *models.AccessGrant, subs []*models.Subscription, at time.Time) bool {
	if rule == nil {
		return true
	}

	switch rule.AccessType {
	case types.AccessTypeOneTime:
		return grant.ValidAt(at)
	case types.AccessTypeSubscription:
		return anyEffective(subs, at)
	case types.AccessTypePlanRequired:
		if len(rule.RequiredPlanIDs) == 0 {
			return anyEffective(subs, at)
		}
		for _, sub := range subs {
			if sub.EffectiveAt(at) && rule.RequiresPlan(sub.PlanID) {
				return true
			}
		}
		return false
	}
	return false
}

func anyEffective(subs []*models.Subscription, at time.Time) bool {
	for _, sub := range subs {
		if sub.EffectiveAt(at) {
			return true
		}
	}
	return false
}

// Rule loads the gating rule for a content item; nil means not gated.
func (s *Service) Rule(ctx context.Context, ref types.ContentRef) (*models.PremiumContent, error) {
	var rule models.PremiumContent
	err := s.db.WithContext(ctx).
		Where("content_type = ? AND content_id = ?", ref.Type, ref.ID).
		First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load content rule: %w", err)
	}
	return &rule, nil
}

// SaveRule upserts the gating rule keyed by the content reference.
func (s *Service) SaveRule(ctx context.Context, rule *models.PremiumContent) error {
	if rule == nil || !(types.ContentRef{Type: rule.ContentType, ID: rule.ContentID}).Valid() {
		return fmt.Errorf("invalid content rule")
	}
	if rule.ID == "" {
		rule.ID = tool.GenerateUUIDV7()
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "content_type"}, {Name: "content_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_type", "price", "currency", "required_plan_ids", "preview_policy", "updated_at",
		}),
	}).Create(rule).Error
	if err != nil {
		return fmt.Errorf("failed to upsert content rule: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("content_rule_saved",
		"content_type", rule.ContentType, "content_id", rule.ContentID, "access_type", rule.AccessType)
	return nil
}

func (s *Service) grantFor(ctx context.Context, userID string, ref types.ContentRef) (*models.AccessGrant, error) {
	var grant models.AccessGrant
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND content_type = ? AND content_id = ?", userID, ref.Type, ref.ID).
		First(&grant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load access grant: %w", err)
	}
	return &grant, nil
}

func (s *Service) effectiveSubscriptions(ctx context.Context, userID string) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID,
			[]types.SubscriptionStatus{types.SubscriptionStatusActive, types.SubscriptionStatusTrialing}).
		Order("created_at desc").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	return subs, nil
}

// Grant records a one-time unlock. Granting the same (user, content) key
// again overwrites the existing row rather than duplicating it.
func (s *Service) Grant(ctx context.Context, userID string, ref types.ContentRef, method string, transactionID *string, expiresAt *time.Time) error {
	if !ref.Valid() {
		return fmt.Errorf("invalid content reference")
	}

	grant := &models.AccessGrant{
		ID:            tool.GenerateUUIDV7(),
		UserID:        userID,
		ContentType:   ref.Type,
		ContentID:     ref.ID,
		Method:        method,
		TransactionID: transactionID,
		ExpiresAt:     expiresAt,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "content_type"}, {Name: "content_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"method", "transaction_id", "expires_at", "updated_at",
		}),
	}).Create(grant).Error
	if err != nil {
		return fmt.Errorf("failed to upsert access grant: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("access_granted",
		"user_id", userID, "content_type", ref.Type, "content_id", ref.ID, "method", method)
	return nil
}

// Revoke removes a grant outright. Missing grants are not an error.
func (s *Service) Revoke(ctx context.Context, userID string, ref types.ContentRef) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND content_type = ? AND content_id = ?", userID, ref.Type, ref.ID).
		Delete(&models.AccessGrant{}).Error
	if err != nil {
		return fmt.Errorf("failed to revoke access grant: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("access_revoked",
		"user_id", userID, "content_type", ref.Type, "content_id", ref.ID)
	return nil
}

// RevokeByTransaction removes any grants created by the given transaction;
// used when a purchase is refunded.
func (s *Service) RevokeByTransaction(ctx context.Context, transactionID string) error {
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Delete(&models.AccessGrant{}).Error
	if err != nil {
		return fmt.Errorf("failed to revoke grants for transaction: %w", err)
	}
	return nil
}
