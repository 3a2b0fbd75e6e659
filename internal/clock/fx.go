package clock

import "go.uber.org/fx"

// Module provides the real clock. Tests substitute Fixed directly.
var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)
