package paypal

import (
	"go.uber.org/fx"

	"github.com/fatflowers/paywall/pkg/config"
)

func newClient(cfg *config.Config) *Client {
	return New(cfg.PayPal.ClientID, cfg.PayPal.Secret, cfg.PayPal.WebhookID, cfg.PayPal.Sandbox)
}

var Module = fx.Options(
	fx.Provide(newClient),
)
