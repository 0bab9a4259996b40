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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/bryanwahyu/automaton-review/internal/application"
	appanalysis "github.com/bryanwahyu/automaton-review/internal/application/analysis"
	"github.com/bryanwahyu/automaton-review/internal/bootstrap"
	"github.com/bryanwahyu/automaton-review/internal/config"
	"github.com/bryanwahyu/automaton-review/internal/infra/httpserver"
	"github.com/bryanwahyu/automaton-review/internal/infra/queue"
	"github.com/bryanwahyu/automaton-review/internal/logging"
	"github.com/bryanwahyu/automaton-review/internal/middleware"
)

// worker is the lifecycle shared by both queue backends.
type worker interface {
	OnGiveUp(f queue.FailFunc)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

func main() {
	app := &cli.App{
		Name:  "automaton-review-api",
		Usage: "HTTP API and background workers for pull-request analysis",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config.yaml",
				Value:   "config.yaml",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "override server.port",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("api exited")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	pipeline, closeModel, err := bootstrap.NewPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeModel()

	artifacts, err := bootstrap.NewArtifacts(ctx, cfg)
	if err != nil {
		return err
	}

	metrics := middleware.NewMetrics()
	svc := &appanalysis.Service{
		Repo:      stores.Jobs,
		Events:    stores.Events,
		Runner:    pipeline,
		Artifacts: artifacts,
		Metrics:   metrics,
		Clock:     application.SystemClock{},
	}

	checks := map[string]middleware.HealthChecker{}
	if stores.DB != nil {
		checks["database"] = &middleware.DatabaseHealthChecker{DB: stores.DB}
	}

	var q worker
	switch cfg.Queue.Backend {
	case "river":
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN())
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()
		sealer, err := queue.NewSealer(cfg.Queue.SealKey)
		if err != nil {
			return err
		}
		if cfg.Queue.SealKey == "" {
			log.Warn().Msg("queue.seal_key is empty, queued jobs cannot be resumed after restart")
		}
		rq, err := queue.NewRiver(pool, cfg.Queue.Workers, cfg.Queue.MaxAttempts, sealer, svc.Execute)
		if err != nil {
			return err
		}
		checks["queue"] = middleware.CheckFunc(pool.Ping)
		svc.Queue, q = rq, rq
	default:
		mq := queue.NewMemory(cfg.Queue.Workers, cfg.Queue.Buffer, cfg.Queue.MaxAttempts, svc.Execute)
		svc.Queue, q = mq, mq
	}

	q.OnGiveUp(svc.Fail)
	// worker ctx tidak ikut signal supaya job yang jalan bisa selesai saat shutdown
	if err := q.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("queue start: %w", err)
	}

	handler := httpserver.NewRouter(svc, httpserver.Options{
		CORSOrigins:       cfg.Server.CORSOrigins,
		APIKeys:           cfg.Server.APIKeys,
		RateLimitRPS:      cfg.Server.RateLimitRPS,
		RateLimitBurst:    cfg.Server.RateLimitBurst,
		AllowPrivateHosts: cfg.Server.AllowPrivateHosts,
		Metrics:           metrics,
		Checks:            checks,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("queue", cfg.Queue.Backend).Str("database", cfg.Database.Driver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	if err := q.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("queue stop error")
	}
	return nil
}
