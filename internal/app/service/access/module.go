package access

import "go.uber.org/fx"

// Module exposes the access resolver via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
