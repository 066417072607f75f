package subscription

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/types"
)

// Worker sweeps subscriptions whose current period has ended and resolves
// each one: deferred cancels become cancelled, non-renewing rows expire,
// inner-billed rows renew locally, and provider-billed rows that the provider
// has not confirmed in time go past_due.
type Worker struct {
	svc      *Service
	log      *zap.SugaredLogger
	interval time.Duration
	// grace is how long past the period end a provider-billed row may wait
	// for its renewal webhook before being suspended.
	grace time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(cfg *config.Config, svc *Service, log *zap.SugaredLogger) *Worker {
	interval := time.Duration(cfg.RenewalIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Worker{
		svc:      svc,
		log:      log,
		interval: interval,
		grace:    24 * time.Hour,
		done:     make(chan struct{}),
	}
}

func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.run(ctx)
}

func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep processes one batch of due subscriptions. Exported so tests and
// admin tooling can trigger a pass directly.
func (w *Worker) Sweep(ctx context.Context) {
	now := time.Now()
	var due []*models.Subscription
	err := w.svc.db.WithContext(ctx).
		Where("status IN ? AND current_period_end <= ?",
			[]types.SubscriptionStatus{
				types.SubscriptionStatusTrialing,
				types.SubscriptionStatusActive,
				types.SubscriptionStatusPastDue,
			}, now).
		Order("current_period_end asc").
		Limit(500).
		Find(&due).Error
	if err != nil {
		w.log.Errorf("renewal sweep query failed: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	w.log.Infow("renewal_sweep_start", "due", len(due))
	for _, sub := range due {
		if err := w.resolve(ctx, sub, now); err != nil {
			w.log.Errorw("renewal_sweep_item_failed",
				"subscription_id", sub.ID, "status", sub.Status, "error", err)
		}
	}
}

func (w *Worker) resolve(ctx context.Context, sub *models.Subscription, now time.Time) error {
	switch {
	case sub.CancelAtPeriodEnd:
		return w.svc.FinalizeCancellation(ctx, sub.ID)

	case !sub.AutoRenew:
		return w.svc.Expire(ctx, sub.ID)

	case sub.Provider == types.PaymentProviderInner:
		// Inner-billed subscriptions (gifts, internal comps) have no external
		// charge to wait on.
		_, err := w.svc.Renew(ctx, sub.ID)
		return err

	default:
		// Provider-billed: the renewal webhook advances the period. Only
		// suspend once the grace window has passed without one.
		if now.Sub(sub.CurrentPeriodEnd) < w.grace {
			return nil
		}
		if sub.Status == types.SubscriptionStatusPastDue {
			return w.svc.Expire(ctx, sub.ID)
		}
		return w.svc.MarkPastDue(ctx, sub.ID, "renewal charge not confirmed")
	}
}

func registerWorker(lc fx.Lifecycle, w *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			w.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return w.Stop(ctx)
		},
	})
}
