package stripe

import (
	"go.uber.org/fx"

	"github.com/fatflowers/paywall/pkg/config"
)

func newClient(cfg *config.Config) *Client {
	return New(cfg.Stripe.SecretKey)
}

var Module = fx.Options(
	fx.Provide(newClient),
)
