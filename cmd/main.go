package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ArticleManager/internal/articles"
	"ArticleManager/internal/config"
	"ArticleManager/internal/db"
	"ArticleManager/internal/handlers"
	mw "ArticleManager/internal/middleware"
	"ArticleManager/internal/sessions"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("boot: opening store")
	store, err := db.Open(ctx, db.Config{
		URL:    cfg.Database.URL,
		Name:   cfg.Database.Name,
		Bucket: cfg.Database.Bucket,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn("store close", "err", err)
		}
	}()

	authOpts := []sessions.Option{sessions.WithSecureCookie(cfg.CookieSecure)}
	if cfg.RedisAddr != "" {
		revoker, err := sessions.NewRedisRevoker(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer revoker.Close()
		authOpts = append(authOpts, sessions.WithRevoker(revoker))
		log.Info("session revocation enabled", "redis", cfg.RedisAddr)
	}
	auth, err := sessions.New(store, cfg.SessionSecret, authOpts...)
	if err != nil {
		return err
	}

	// метрики процесса и приложения в отдельном реестре
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	articles.RegisterMetrics(reg)
	mw.RegisterMetrics(reg)

	deps := articles.Deps{Store: store, Guard: auth, Log: log}
	h := handlers.New(handlers.Deps{
		Submission:     articles.NewSubmission(deps),
		Review:         articles.NewReview(deps),
		Delivery:       articles.NewDelivery(deps),
		Auth:           auth,
		Log:            log,
		Ready:          store,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		LoginLimiter:   mw.NewRateLimiter(cfg.LoginRatePerMinute, cfg.LoginRatePerMinute),
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}
