package apple

import (
	"go.uber.org/fx"

	"github.com/fatflowers/paywall/pkg/config"
)

func newClient(cfg *config.Config) *Client {
	return New(cfg.AppleIAP)
}

var Module = fx.Options(
	fx.Provide(newClient),
)
