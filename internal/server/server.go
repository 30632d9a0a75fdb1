// Package server wires the HTTP surface: the inbound webhook, the
// simulation endpoint and the management API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chatwire/chatwire/internal/aiprovider"
	"github.com/chatwire/chatwire/internal/billing"
	"github.com/chatwire/chatwire/internal/cache"
	"github.com/chatwire/chatwire/internal/chataccount"
	chatdomain "github.com/chatwire/chatwire/internal/chataccount/domain"
	"github.com/chatwire/chatwire/internal/config"
	"github.com/chatwire/chatwire/internal/conversation"
	convdomain "github.com/chatwire/chatwire/internal/conversation/domain"
	"github.com/chatwire/chatwire/internal/events"
	"github.com/chatwire/chatwire/internal/ledger"
	ledgerdomain "github.com/chatwire/chatwire/internal/ledger/domain"
	"github.com/chatwire/chatwire/internal/observability"
	"github.com/chatwire/chatwire/internal/orchestrator"
	"github.com/chatwire/chatwire/internal/product"
	productdomain "github.com/chatwire/chatwire/internal/product/domain"
	"github.com/chatwire/chatwire/internal/ratelimit"
	"github.com/chatwire/chatwire/internal/scheduler"
	"github.com/chatwire/chatwire/internal/usage"
	usagedomain "github.com/chatwire/chatwire/internal/usage/domain"
	"github.com/chatwire/chatwire/internal/wallet"
	walletdomain "github.com/chatwire/chatwire/internal/wallet/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	observability.Module,
	fx.Provide(registerGin),
	events.Module,
	cache.Module,
	chataccount.Module,
	conversation.Module,
	product.Module,
	wallet.Module,
	usage.Module,
	billing.Module,
	ledger.Module,
	aiprovider.Module,
	orchestrator.Module,
	ratelimit.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func registerGin(metrics *observability.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
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
	log        *zap.Logger
	cfg        config.Config
	genID      *snowflake.Node
	accountSvc chatdomain.Service
	store      convdomain.Store
	productSvc productdomain.Service
	usageSvc   usagedomain.Service
	walletSvc  walletdomain.Service
	ledgerSvc  ledgerdomain.Service
	pipeline   *orchestrator.Orchestrator
	limiter    *ratelimit.WebhookLimiter
}

type ServerParams struct {
	fx.In

	Engine     *gin.Engine
	Log        *zap.Logger
	Config     config.Config
	GenID      *snowflake.Node
	AccountSvc chatdomain.Service
	Store      convdomain.Store
	ProductSvc productdomain.Service
	UsageSvc   usagedomain.Service
	WalletSvc  walletdomain.Service
	LedgerSvc  ledgerdomain.Service
	Pipeline   *orchestrator.Orchestrator
	Limiter    *ratelimit.WebhookLimiter
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Engine,
		log:        p.Log.Named("http.server"),
		cfg:        p.Config,
		genID:      p.GenID,
		accountSvc: p.AccountSvc,
		store:      p.Store,
		productSvc: p.ProductSvc,
		usageSvc:   p.UsageSvc,
		walletSvc:  p.WalletSvc,
		ledgerSvc:  p.LedgerSvc,
		pipeline:   p.Pipeline,
		limiter:    p.Limiter,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/webhook/messages", s.HandleInboundMessage)
	v1.POST("/messages/simulate", s.SimulateMessage)

	accounts := v1.Group("/accounts/:accountID")
	accounts.GET("/config", s.GetAIConfig)
	accounts.PUT("/config", s.UpdateAIConfig)
	accounts.POST("/ai-enabled", s.SetAIEnabled)
	accounts.POST("/products/:productID", s.LinkProduct)
	accounts.DELETE("/products/:productID", s.UnlinkProduct)
	accounts.GET("/products", s.ListLinkedProducts)
	accounts.GET("/ledger", s.ListLedger)

	orgs := v1.Group("/orgs/:orgID")
	orgs.GET("/wallet", s.GetWallet)
	orgs.POST("/wallet/credit", s.CreditWallet)

	subs := v1.Group("/subscriptions/:subscriptionID")
	subs.GET("/cycle", s.GetCurrentCycle)
	subs.POST("/cycle", s.OpenCycle)
}
