package reviewer

import "go.uber.org/fx"

var Module = fx.Module("reviewer",
	fx.Provide(NewGemini),
)
