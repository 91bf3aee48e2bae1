package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deeplink/internal/config"
	"deeplink/internal/handler"
	"deeplink/internal/service"
	"deeplink/internal/storage"
	"deeplink/internal/utils"
	"deeplink/internal/view"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.InitLogger(false)
		utils.Log.Fatal("invalid configuration", utils.Field("error", err.Error()))
	}
	utils.InitLogger(cfg.Debug)
	defer func() { _ = utils.Log.Sync() }()

	e, sched := NewServer(cfg)
	if err := sched.Start(cfg.WatchSchedule); err != nil {
		utils.Log.Fatal("invalid watch schedule", utils.Field("schedule", cfg.WatchSchedule), utils.Field("error", err.Error()))
	}

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			utils.Log.Fatal("shutting down the server", utils.Field("error", err.Error()))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sched.Stop()
	if err := e.Shutdown(ctx); err != nil {
		utils.Log.Error("shutdown failed", utils.Field("error", err.Error()))
	}
}

// NewServer wires storage, the validator and the handlers into an echo
// instance. The returned scheduler is not started.
func NewServer(cfg *config.Config) (*echo.Echo, *service.Scheduler) {
	store := storage.NewStorage(cfg.RedisHost, cfg.RedisPort)
	store.HistoryLimit = cfg.HistoryLimit
	store.HistoryTTL = cfg.HistoryTTL

	client := service.NewHTTPClient()
	metrics := service.NewMetrics()

	files := service.NewFetcher(client, service.DefaultProxies(), cfg.ProxyTimeout)
	files.Metrics = metrics
	dns := service.NewDNSService(client, cfg.DNSResolver, cfg.ProxyTimeout)
	dns.Metrics = metrics
	worker := service.NewWorkerClient(cfg.WorkerURL, client, cfg.WorkerTimeout, cfg.WorkerRPS, cfg.WorkerBurst)
	worker.Metrics = metrics

	v := service.NewValidator(files, dns, worker)
	v.TLS = service.NewTLSProbe()
	v.Metrics = metrics

	h := handler.NewHandler(store, v, cfg)
	sched := service.NewScheduler(h.Monitor)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self' ws: wss:;",
	}))
	if cfg.RateLimit > 0 {
		proxy := utils.ProxyConfig{TrustProxy: cfg.TrustProxy, UseCloudflare: cfg.UseCloudflare}
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit)),
			IdentifierExtractor: func(c echo.Context) (string, error) {
				return utils.ExtractIP(c, proxy), nil
			},
		}))
	}

	renderer, err := view.NewRenderer()
	if err != nil {
		utils.Log.Fatal("template parse failed", utils.Field("error", err.Error()))
	}
	e.Renderer = renderer

	// Custom HTTP Error Handler
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		} else {
			utils.Log.Error("request failed", utils.Field("path", c.Request().URL.Path), utils.Field("error", err.Error()))
		}

		errorData := map[string]interface{}{
			"Code":    code,
			"Message": http.StatusText(code),
			"title":   http.StatusText(code),
			"theme":   handler.Theme(c),
			"themes":  view.Themes,
			"path":    c.Request().URL.Path,
		}

		if renderErr := c.Render(code, "error.html", errorData); renderErr != nil {
			utils.Log.Error("error page render failed", utils.Field("error", renderErr.Error()))
		}
	}

	h.Register(e)
	return e, sched
}
