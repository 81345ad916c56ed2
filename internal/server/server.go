package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	linkdomain "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
	attributiondomain "github.com/smallbiznis/kolaffiliate/internal/attribution/domain"
	"github.com/smallbiznis/kolaffiliate/internal/auth"
	authdomain "github.com/smallbiznis/kolaffiliate/internal/auth/domain"
	"github.com/smallbiznis/kolaffiliate/internal/auth/session"
	"github.com/smallbiznis/kolaffiliate/internal/authorization"
	clickdomain "github.com/smallbiznis/kolaffiliate/internal/click/domain"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	dashboarddomain "github.com/smallbiznis/kolaffiliate/internal/dashboard/domain"
	koldomain "github.com/smallbiznis/kolaffiliate/internal/kol/domain"
	"github.com/smallbiznis/kolaffiliate/internal/observability"
	obsmiddleware "github.com/smallbiznis/kolaffiliate/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/kolaffiliate/internal/observability/metrics"
	obstracing "github.com/smallbiznis/kolaffiliate/internal/observability/tracing"
	"github.com/smallbiznis/kolaffiliate/internal/ratelimit"
	"github.com/smallbiznis/kolaffiliate/internal/realtime"
	realtimedomain "github.com/smallbiznis/kolaffiliate/internal/realtime/domain"
	reconciliationdomain "github.com/smallbiznis/kolaffiliate/internal/reconciliation/domain"
	"github.com/smallbiznis/kolaffiliate/internal/scheduler"
	tierdomain "github.com/smallbiznis/kolaffiliate/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module serves the HTTP surface. Domain services are assembled by the
// binary that includes it.
var Module = fx.Module("http.server",
	auth.Module,
	authorization.Module,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
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
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	verifier       authdomain.Verifier
	sessions       *session.Manager
	authzSvc       authorization.Service
	kolSvc         koldomain.Service
	linkSvc        linkdomain.Service
	clickSvc       clickdomain.Service
	attribution    attributiondomain.Cache
	reconciliation reconciliationdomain.Service
	dashboardSvc   dashboarddomain.Service
	tierSvc        tierdomain.Service
	statsSvc       realtimedomain.StatsService
	broadcaster    *realtime.Broadcaster
	clickLimiter   *ratelimit.ClickLimiter
	obsMetrics     *obsmetrics.Metrics
	scheduler      *scheduler.Scheduler
	upgrader       websocket.Upgrader
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	Verifier       authdomain.Verifier
	Sessions       *session.Manager
	AuthzSvc       authorization.Service
	KolSvc         koldomain.Service
	LinkSvc        linkdomain.Service
	ClickSvc       clickdomain.Service
	Attribution    attributiondomain.Cache
	Reconciliation reconciliationdomain.Service
	DashboardSvc   dashboarddomain.Service
	TierSvc        tierdomain.Service
	StatsSvc       realtimedomain.StatsService
	Broadcaster    *realtime.Broadcaster   `optional:"true"`
	ClickLimiter   *ratelimit.ClickLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics     `optional:"true"`
	Scheduler      *scheduler.Scheduler    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		verifier:       p.Verifier,
		sessions:       p.Sessions,
		authzSvc:       p.AuthzSvc,
		kolSvc:         p.KolSvc,
		linkSvc:        p.LinkSvc,
		clickSvc:       p.ClickSvc,
		attribution:    p.Attribution,
		reconciliation: p.Reconciliation,
		dashboardSvc:   p.DashboardSvc,
		tierSvc:        p.TierSvc,
		statsSvc:       p.StatsSvc,
		broadcaster:    p.Broadcaster,
		clickLimiter:   p.ClickLimiter,
		obsMetrics:     p.ObsMetrics,
		scheduler:      p.Scheduler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// subscriptions are authorized per message by token, not by origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	svc.engine.Use(svc.CaptureAttribution())

	svc.registerTrackingRoutes()
	svc.registerAffiliateRoutes()
	svc.registerRealtimeRoutes()
	svc.registerAdminRoutes()
	svc.registerDevRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerTrackingRoutes() {
	s.engine.GET("/a/:shortCode", s.ClickRateLimit(), s.Redirect)

	affiliate := s.engine.Group("/affiliate")
	affiliate.POST("/track", s.ClickRateLimit(), s.TrackClick)
	affiliate.GET("/attribution", s.GetAttribution)
	affiliate.DELETE("/attribution", s.ClearAttribution)
	affiliate.POST("/checkout", s.Checkout)
}

func (s *Server) registerAffiliateRoutes() {
	kol := s.engine.Group("/affiliate", s.AuthRequired(), s.RequireApprovedKol())
	{
		kol.POST("/links", s.CreateLink)
		kol.GET("/links", s.ListLinks)
		kol.GET("/dashboard", s.GetDashboard)
		kol.GET("/realtime-stats", s.GetRealtimeStats)
	}

	// admins read any order, KOLs only their own rows
	s.engine.GET("/affiliate/orders/:orderId/attribution", s.AuthRequired(), s.GetOrderAttribution)
}

func (s *Server) registerRealtimeRoutes() {
	rt := s.engine.Group("/realtime")
	rt.GET("/ws", s.ServeRealtimeWebsocket)
	rt.GET("/stream", s.AuthRequired(), s.RequireApprovedKol(), s.StreamRealtimeStats)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AuthRequired())

	admin.POST("/orders/:orderId/complete", s.authorizeAction(authorization.ObjectLedger, authorization.ActionLedgerTransition), s.CompleteOrder)
	admin.POST("/orders/:orderId/cancel", s.authorizeAction(authorization.ObjectLedger, authorization.ActionLedgerTransition), s.CancelOrder)

	tiers := admin.Group("/tiers")
	{
		tiers.POST("/recalculate", s.authorizeAction(authorization.ObjectTier, authorization.ActionTierRecalculate), s.RecalculateAllTiers)
		tiers.POST("/:kolId/recalculate", s.authorizeAction(authorization.ObjectTier, authorization.ActionTierRecalculate), s.RecalculateKolTier)
		tiers.GET("/statistics", s.authorizeAction(authorization.ObjectTier, authorization.ActionTierView), s.GetTierStatistics)
		tiers.GET("/eligible", s.authorizeAction(authorization.ObjectTier, authorization.ActionTierView), s.ListEligibleKols)
	}

	admin.GET("/scheduler/status", s.authorizeAction(authorization.ObjectScheduler, authorization.ActionSchedulerView), s.GetSchedulerStatus)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
	s.engine.NoMethod(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
