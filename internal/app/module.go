package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/paywall/internal/app/api/server"
	"github.com/fatflowers/paywall/internal/app/service/access"
	"github.com/fatflowers/paywall/internal/app/service/checkout"
	"github.com/fatflowers/paywall/internal/app/service/invoice"
	"github.com/fatflowers/paywall/internal/app/service/ledger"
	"github.com/fatflowers/paywall/internal/app/service/subscription"
	"github.com/fatflowers/paywall/internal/app/service/webhook"
	"github.com/fatflowers/paywall/internal/platform/db"
	"github.com/fatflowers/paywall/internal/platform/mail"
	"github.com/fatflowers/paywall/internal/platform/provider"
	"github.com/fatflowers/paywall/internal/platform/provider/apple"
	"github.com/fatflowers/paywall/internal/platform/provider/paypal"
	"github.com/fatflowers/paywall/internal/platform/provider/stripe"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

func newProviderRegistry(s *stripe.Client, p *paypal.Client, a *apple.Client) *provider.Registry {
	return provider.NewRegistry(s, p, a, provider.NewInnerClient())
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	mail.Module,
	stripe.Module,
	paypal.Module,
	apple.Module,
	fx.Provide(newProviderRegistry),
	server.Module,
	access.Module,
	ledger.Module,
	subscription.Module,
	invoice.Module,
	checkout.Module,
	webhook.Module,
)
