package reviewjob

import (
	"github.com/smallbiznis/reviewmeter/internal/reviewjob/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reviewjob.service",
	fx.Provide(service.NewRunner),
	fx.Provide(service.NewService),
)
