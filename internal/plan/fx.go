package plan

import (
	"context"

	"github.com/smallbiznis/reviewmeter/internal/config"
	plandomain "github.com/smallbiznis/reviewmeter/internal/plan/domain"
	"github.com/smallbiznis/reviewmeter/internal/plan/repository"
	"github.com/smallbiznis/reviewmeter/internal/plan/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Invoke(syncCatalog),
)

// syncCatalog seeds the plan table from the catalog file on start and
// again after every hot reload.
func syncCatalog(lc fx.Lifecycle, holder *config.PlanCatalogHolder, svc plandomain.Service, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.SyncCatalog(ctx, holder.Get())
		},
	})
	holder.OnChange(func(catalog config.PlanCatalog) {
		if err := svc.SyncCatalog(context.Background(), catalog); err != nil {
			log.Warn("plan catalog sync failed", zap.Error(err))
		}
	})
}
