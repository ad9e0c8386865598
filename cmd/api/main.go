package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/naxeeb/news-aggregator-live/internal/aggregator"
	"github.com/naxeeb/news-aggregator-live/internal/api"
	"github.com/naxeeb/news-aggregator-live/internal/collector"
	"github.com/naxeeb/news-aggregator-live/internal/config"
	"github.com/naxeeb/news-aggregator-live/internal/logger"
	"github.com/naxeeb/news-aggregator-live/internal/publisher"
	"github.com/naxeeb/news-aggregator-live/internal/scheduler"
	"github.com/naxeeb/news-aggregator-live/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "news-aggregator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.InfoObj("config loaded", "config_loaded", map[string]any{
		"port":          cfg.AppPort,
		"sites":         len(cfg.Sites),
		"fetch_backend": cfg.FetchBackend,
		"cache_ttl":     cfg.CacheTTL.String(),
		"redis":         cfg.RedisAddr != "",
		"refresh_cron":  cfg.RefreshCron,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pages, err := collector.NewPageFetcher(cfg.FetchBackend, cfg.FetchOptions(), log)
	if err != nil {
		return err
	}
	fetchers := collector.NewSiteFetchers(cfg.Sites, pages, cfg.LinksPerSite, cfg.LinkConcurrency, log)

	store := storage.NewStore(cfg.RedisAddr, log)
	defer store.Close()

	svc := aggregator.New(fetchers, store, aggregator.Options{
		TTL:          cfg.CacheTTL,
		BuildTimeout: cfg.BuildTimeout,
		ResultLimit:  cfg.ResultLimit,
	}, log)

	notifier, err := publisher.NotifierFromFile(ctx, cfg.PublishersFile, log)
	if err != nil {
		return fmt.Errorf("init publishers: %w", err)
	}
	if notifier != nil {
		svc.Notifier = notifier
	}

	// 配置了 REFRESH_CRON 时定时预热缓存
	if cfg.RefreshCron != "" {
		s, err := scheduler.New(cfg.RefreshCron, svc, cfg.BuildTimeout, log)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		s.StartupDelay = 15 * time.Second
		s.Start()
		defer s.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	r := api.NewEngine(api.NewServer(svc, log), api.Options{
		WebRoot:          cfg.WebRoot,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
		BasicAuthUser:    cfg.BasicAuthUser,
		BasicAuthPass:    cfg.BasicAuthPass,
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoObj("starting api server", "server_start", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server exit: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.InfoObj("shutting down api server", "server_stop", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
