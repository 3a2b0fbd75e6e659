// Package server exposes the billing subsystem over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	auditdomain "github.com/PsiTechC/medai-billing/internal/audit/domain"
	authdomain "github.com/PsiTechC/medai-billing/internal/auth/domain"
	catalogdomain "github.com/PsiTechC/medai-billing/internal/catalog/domain"
	"github.com/PsiTechC/medai-billing/internal/config"
	ledgerdomain "github.com/PsiTechC/medai-billing/internal/ledger/domain"
	"github.com/PsiTechC/medai-billing/internal/observability/logger"
	"github.com/PsiTechC/medai-billing/internal/observability/metrics"
	"github.com/PsiTechC/medai-billing/internal/observability/tracing"
	paymentdomain "github.com/PsiTechC/medai-billing/internal/payment/domain"
	scheduledomain "github.com/PsiTechC/medai-billing/internal/schedule/domain"
)

const serviceName = "medai-billing"

type Params struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	AuthSvc     authdomain.Service
	LedgerSvc   ledgerdomain.Service
	CatalogSvc  catalogdomain.Service
	PaymentSvc  paymentdomain.Service
	ScheduleSvc scheduledomain.Service
	AuditSvc    auditdomain.Service
	Metrics     *metrics.BillingMetrics `optional:"true"`
}

type Server struct {
	cfg         config.Config
	log         *zap.Logger
	authSvc     authdomain.Service
	ledgerSvc   ledgerdomain.Service
	catalogSvc  catalogdomain.Service
	paymentSvc  paymentdomain.Service
	scheduleSvc scheduledomain.Service
	auditSvc    auditdomain.Service
	metrics     *metrics.BillingMetrics
	authLimiter *rateLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:         p.Cfg,
		log:         p.Log.Named("server"),
		authSvc:     p.AuthSvc,
		ledgerSvc:   p.LedgerSvc,
		catalogSvc:  p.CatalogSvc,
		paymentSvc:  p.PaymentSvc,
		scheduleSvc: p.ScheduleSvc,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
		authLimiter: newRateLimiter(10, time.Minute),
	}
}

func NewEngine(s *Server) *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	engine.Use(tracing.GinMiddleware(serviceName))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := engine.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.Use(s.RateLimitAuth())
		{
			auth.POST("/signup", s.Signup)
			auth.POST("/verify-otp", s.VerifyOTP)
			auth.POST("/login", s.Login)
		}

		authed := v1.Group("")
		authed.Use(s.Authenticate())
		{
			authed.GET("/auth/me", s.Me)
			authed.POST("/auth/logout", s.Logout)

			authed.POST("/minutes/deduct", s.DeductMinutes)
			authed.GET("/minutes/balance", s.GetBalance)

			authed.POST("/payments/orders", s.InitiatePayment)
			authed.POST("/payments/verify", s.VerifyPayment)
			authed.PUT("/payments/confirm", s.ConfirmPayment)
			authed.GET("/payments", s.ListPayments)

			authed.GET("/services", s.ListMediaServices)
			authed.GET("/services/:id/plans", s.ListPlans)

			admin := authed.Group("")
			admin.Use(s.RequireAdmin())
			{
				admin.POST("/services", s.CreateMediaService)
				admin.POST("/plans", s.CreatePlan)
				admin.PUT("/plans/:id", s.UpdatePlan)
				admin.DELETE("/plans/:id", s.DeletePlan)

				admin.GET("/schedules", s.ListSchedules)

				admin.GET("/users", s.ListUsers)
				admin.PUT("/users/:id/access", s.SetUserAccess)
				admin.GET("/audit-logs", s.ListAuditLogs)
			}
		}
	}
	return engine
}

// RunHTTP starts the listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http listener starting", zap.String("addr", cfg.HTTP.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http listener stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Provide(NewEngine),
	fx.Invoke(RunHTTP),
)
