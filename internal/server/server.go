package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/reviewmeter/internal/auth"
	"github.com/smallbiznis/reviewmeter/internal/authorization"
	"github.com/smallbiznis/reviewmeter/internal/config"
	"github.com/smallbiznis/reviewmeter/internal/observability"
	obsmiddleware "github.com/smallbiznis/reviewmeter/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/reviewmeter/internal/observability/metrics"
	obstracing "github.com/smallbiznis/reviewmeter/internal/observability/tracing"
	plandomain "github.com/smallbiznis/reviewmeter/internal/plan/domain"
	"github.com/smallbiznis/reviewmeter/internal/progress"
	"github.com/smallbiznis/reviewmeter/internal/ratelimit"
	reviewjobdomain "github.com/smallbiznis/reviewmeter/internal/reviewjob/domain"
	subscriptiondomain "github.com/smallbiznis/reviewmeter/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	verifier        *auth.Verifier
	authzSvc        authorization.Service
	planSvc         plandomain.Service
	subscriptionSvc subscriptiondomain.Service
	reviewJobSvc    reviewjobdomain.Service
	progress        *progress.Registry
	analysisLimiter *ratelimit.AnalysisLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Verifier        *auth.Verifier
	AuthzSvc        authorization.Service
	PlanSvc         plandomain.Service
	SubscriptionSvc subscriptiondomain.Service
	ReviewJobSvc    reviewjobdomain.Service
	Progress        *progress.Registry
	AnalysisLimiter *ratelimit.AnalysisLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		verifier:        p.Verifier,
		authzSvc:        p.AuthzSvc,
		planSvc:         p.PlanSvc,
		subscriptionSvc: p.SubscriptionSvc,
		reviewJobSvc:    p.ReviewJobSvc,
		progress:        p.Progress,
		analysisLimiter: p.AnalysisLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/plans", s.ListPlans)

	api.GET("/progress/stream", s.AuthRequired(), s.StreamProgress)

	api.POST("/analysis",
		s.AuthRequired(),
		s.authorize(authorization.ObjectAnalysis, authorization.ActionAnalysisRun),
		s.AnalysisRateLimit(),
		s.Analyze,
	)
	api.POST("/analysis/contributors",
		s.AuthRequired(),
		s.authorize(authorization.ObjectAnalysis, authorization.ActionAnalysisRun),
		s.ListContributors,
	)

	api.GET("/subscription",
		s.AuthRequired(),
		s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionView),
		s.GetCurrentSubscription,
	)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin")
	admin.Use(s.AuthRequired())

	// -------- Plans --------
	admin.GET("/plans", s.authorize(authorization.ObjectPlan, authorization.ActionPlanView), s.ListPlans)
	admin.GET("/plans/:id", s.authorize(authorization.ObjectPlan, authorization.ActionPlanView), s.GetPlanByID)
	admin.POST("/plans", s.authorize(authorization.ObjectPlan, authorization.ActionPlanCreate), s.CreatePlan)
	admin.PUT("/plans/:id", s.authorize(authorization.ObjectPlan, authorization.ActionPlanUpdate), s.UpdatePlan)
	admin.DELETE("/plans/:id", s.authorize(authorization.ObjectPlan, authorization.ActionPlanDelete), s.DeletePlan)

	// -------- Subscriptions --------
	admin.POST("/subscriptions", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionCreate), s.CreateSubscription)
	admin.GET("/subscriptions/:subscriberId", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionViewAny), s.GetSubscriptionBySubscriber)
	admin.POST("/subscriptions/:subscriberId/renew", s.authorize(authorization.ObjectSubscription, authorization.ActionSubscriptionRenew), s.RenewSubscription)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
