package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slanderwatch/slanderwatch/config"
	"github.com/slanderwatch/slanderwatch/internal/detect"
	"github.com/slanderwatch/slanderwatch/internal/index"
	"github.com/slanderwatch/slanderwatch/internal/runtime"
	"github.com/slanderwatch/slanderwatch/internal/store"
	"github.com/slanderwatch/slanderwatch/provider"
	"github.com/slanderwatch/slanderwatch/repository"
	"github.com/slanderwatch/slanderwatch/tools/twitter"
	"github.com/slanderwatch/slanderwatch/tools/webpage"
	"github.com/slanderwatch/slanderwatch/tools/youtube"
)

// Run wires the full service and blocks serving HTTP on the configured
// address.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	cache, err := repository.NewRunCache(ctx, repository.RepoTypeRedis, cfg.Storage.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	det, err := BuildDetector(cfg)
	if err != nil {
		return err
	}

	idx, err := index.Open(cfg.Storage.Index.Path)
	if err != nil {
		return err
	}
	defer idx.Close()

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}

	api := e.Group("/api")
	auth := &AuthHandler{Store: st, Secret: secret}
	auth.Register(api.Group("/auth"))

	protected := api.Group("")
	protected.Use(runtime.EchoAuthMiddleware(secret))
	protected.GET("/me", func(c echo.Context) error {
		sub, ok := runtime.Subject(c.Request().Context())
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		return c.JSON(200, map[string]string{"user_id": sub})
	})

	rh := &RunsHandler{
		Store:    st,
		Detector: det,
		Cache:    cache,
		Index:    idx,
		Logger:   log.New(log.Writer(), "[RUNS] ", log.LstdFlags),
	}
	rh.Register(protected.Group("/runs"))

	wh := &WatchesHandler{Store: st}
	wh.Register(protected.Group("/watches"))

	eh := &EvidenceHandler{Index: idx}
	eh.Register(protected.Group("/evidence"))

	sched := &Scheduler{
		Store: st,
		Runs:  rh,
		Cache: cache,
		Cfg:   cfg.Watch,
		Stop:  make(chan struct{}),
	}
	sched.Start()

	if addr == "" {
		addr = cfg.Server.Address
		if addr == "" {
			addr = ":10010"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// BuildDetector constructs the detection pipeline from config. Platform
// clients without credentials are left out; provider credentials are
// mandatory.
func BuildDetector(cfg *config.Config) (*detect.Detector, error) {
	prov, err := provider.NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	timeout := cfg.General.DefaultTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var yt detect.YouTubeSource
	if cfg.Sources.YouTube.APIKey != "" {
		client, err := youtube.NewClient(cfg.Sources.YouTube.APIKey, cfg.Sources.YouTube.Endpoint, cfg.Sources.YouTube.MaxResults, timeout)
		if err != nil {
			return nil, err
		}
		yt = client
	}

	var tw detect.TwitterSource
	if cfg.Sources.Twitter.BearerToken != "" {
		client, err := twitter.NewClient(cfg.Sources.Twitter.BearerToken, cfg.Sources.Twitter.Endpoint, cfg.Sources.Twitter.MaxResults, timeout)
		if err != nil {
			return nil, err
		}
		tw = client
	}

	if yt == nil && tw == nil {
		return nil, fmt.Errorf("no platform credentials configured (YOUTUBE_API_KEY or TWITTER_BEARER_TOKEN)")
	}

	var pages detect.PageFetcher
	if cfg.Detection.EnrichLinks {
		pages = webpage.NewFetcher(timeout, 0)
	}

	return detect.New(cfg.Detection, prov, yt, tw, pages, cfg.Sources.YouTube.MaxComments), nil
}
