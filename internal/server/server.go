package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/aruspay/aruspay/internal/config"
	"github.com/aruspay/aruspay/internal/idempotency"
	ledgerdomain "github.com/aruspay/aruspay/internal/ledger/domain"
	obsmetrics "github.com/aruspay/aruspay/internal/observability/metrics"
	paymentdomain "github.com/aruspay/aruspay/internal/payment/domain"
	"github.com/aruspay/aruspay/internal/payment/webhook"
	"github.com/aruspay/aruspay/internal/reconcile"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func registerGin(cfg config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(ErrorHandlingMiddleware())
	return engine
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	genID      *snowflake.Node
	paymentSvc paymentdomain.Service
	ledgerSvc  ledgerdomain.Service
	webhookSvc webhook.Service
	idemStore  idempotency.Store
	poller     *reconcile.Poller
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	GenID      *snowflake.Node
	PaymentSvc paymentdomain.Service
	LedgerSvc  ledgerdomain.Service
	WebhookSvc webhook.Service
	IdemStore  idempotency.Store
	Poller     *reconcile.Poller
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		paymentSvc: p.PaymentSvc,
		ledgerSvc:  p.LedgerSvc,
		webhookSvc: p.WebhookSvc,
		idemStore:  p.IdemStore,
		poller:     p.Poller,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerOpsRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	// -------- Intake --------
	api.POST("/merchants/:merchantId/deposits", s.CreateDeposit)
	api.POST("/merchants/:merchantId/withdrawals", s.CreateWithdrawal)
	api.GET("/merchants/:merchantId/balance", s.GetMerchantBalance)

	// -------- Payments --------
	api.GET("/payments/:id", s.GetPayment)
	api.POST("/payments/:id/approve", s.ApprovePayment)
	api.POST("/payments/:id/reject", s.RejectPayment)

	// -------- Provider Webhooks --------
	api.POST("/webhooks/payments/:provider", s.HandlePaymentWebhook)
}

func (s *Server) registerOpsRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
