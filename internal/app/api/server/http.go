package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/paywall/docs"
	"github.com/fatflowers/paywall/internal/app/api/handlers"
	mw "github.com/fatflowers/paywall/internal/app/api/middleware"
	"github.com/fatflowers/paywall/internal/app/service/access"
	"github.com/fatflowers/paywall/internal/app/service/checkout"
	"github.com/fatflowers/paywall/internal/app/service/invoice"
	"github.com/fatflowers/paywall/internal/app/service/ledger"
	subsvc "github.com/fatflowers/paywall/internal/app/service/subscription"
	"github.com/fatflowers/paywall/internal/app/service/webhook"
	"github.com/fatflowers/paywall/internal/platform/provider/paypal"
	cfgpkg "github.com/fatflowers/paywall/pkg/config"
	metrics "github.com/fatflowers/paywall/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeDeps struct {
	fx.In

	Log      *zap.SugaredLogger
	Cfg      *cfgpkg.Config
	PayPal   *paypal.Client
	Checkout *checkout.Service
	Ledger   *ledger.Service
	Subs     *subsvc.Service
	Access   *access.Service
	Invoices *invoice.Service
	Webhooks *webhook.Reconciler
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	// Prometheus metrics
	if d.Cfg != nil && d.Cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: d.Log,
		})
		p.SetListenAddress(d.Cfg.MetricsAddr)
		p.Use(r)

		d.Log.Infow("metrics started", "addr", d.Cfg.MetricsAddr)
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(d.Log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Provider webhooks; authenticated by signature, not by session
	webhooks := r.Group("/webhook")
	webhooks.Use(mw.RequestLoggerMiddleware(d.Log), mw.AccessLogMiddleware())
	handlers.RegisterWebhookRoutes(webhooks, d.Cfg, d.PayPal, d.Webhooks, d.Log)

	// User-facing APIs
	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(d.Log), mw.AccessLogMiddleware())
	handlers.RegisterCheckoutRoutes(apiV1, d.Checkout, d.Ledger, d.Invoices)
	handlers.RegisterAccessRoutes(apiV1, d.Access)
	handlers.RegisterSubscriptionRoutes(apiV1, d.Subs)

	// Admin APIs behind the admin bearer token
	admin := apiV1.Group("/admin")
	admin.Use(mw.AdminAuthMiddleware(d.Cfg))
	handlers.RegisterAdminRoutes(admin, d.Ledger, d.Checkout, d.Subs, d.Access)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
