// Command devrank runs the contribution acquisition and scoring engine:
// it pulls developer contributions from the configured platforms, scores
// them and serves the ranking over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devrank/devrank/internal/adapters/http/api"
	"github.com/devrank/devrank/internal/adapters/provider"
	"github.com/devrank/devrank/internal/adapters/provider/bitbucket"
	"github.com/devrank/devrank/internal/adapters/provider/github"
	"github.com/devrank/devrank/internal/adapters/provider/gitlab"
	"github.com/devrank/devrank/internal/adapters/provider/rest"
	"github.com/devrank/devrank/internal/adapters/store"
	"github.com/devrank/devrank/internal/app"
	"github.com/devrank/devrank/internal/config"
	"github.com/devrank/devrank/internal/domain/scoring"
	"github.com/devrank/devrank/internal/domain/window"
	"github.com/devrank/devrank/pkg/logger"
	"github.com/devrank/devrank/pkg/metrics"
	"github.com/devrank/devrank/pkg/ratelimit"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get().Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Error(ctx, "load configuration failed", logger.Error(err))
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "unknown log level, keeping info", logger.String("level", cfg.LogLevel))
	}

	st, err := newStore(cfg)
	if err != nil {
		log.Error(ctx, "open store failed", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()

	limiter := ratelimit.New(
		ratelimit.WithRate(cfg.RateLimitRPS),
		ratelimit.WithBurst(cfg.RateLimitBurst),
	)
	httpClient := &http.Client{Timeout: time.Duration(cfg.RequestTimeoutMS) * time.Millisecond}
	restOpts := []rest.Option{
		rest.WithHTTPClient(httpClient),
		rest.WithLimiter(limiter),
		rest.WithRetryMax(cfg.RetryMax),
	}

	primary := github.NewCollector(github.NewClient(
		github.WithBaseURL(cfg.GitHubAPIBase),
		github.WithHTTPClient(httpClient),
		github.WithLimiter(limiter),
		github.WithRetryMax(cfg.RetryMax),
		github.WithMaxEventPages(cfg.MaxEventPages),
		github.WithMaxCommitPagesPerRepo(cfg.MaxCommitPagesPerRepo),
		github.WithQueryVariants(cfg.QueryVariants),
		github.WithConfidenceFloor(cfg.FallbackConfidenceFloor),
	))
	secondaries := []provider.Collector{
		gitlab.NewCollector(
			gitlab.WithBaseURL(cfg.GitLabAPIBase),
			gitlab.WithMaxEventPages(cfg.MaxEventPages),
			gitlab.WithRESTOptions(restOpts...),
		),
		bitbucket.NewCollector(
			bitbucket.WithBaseURL(cfg.BitbucketAPIBase),
			bitbucket.WithMaxCommitPages(cfg.MaxCommitPagesPerRepo),
			bitbucket.WithRESTOptions(restOpts...),
		),
	}

	svc, err := app.New(
		app.WithStore(st),
		app.WithPrimaryCollector(primary),
		app.WithSecondaryCollectors(secondaries...),
		app.WithResolver(window.NewResolver(
			cfg.EpochDate, cfg.EpochTimezone,
			window.WithCutoffSource(st),
		)),
		app.WithScorer(scoring.NewScorer(scoring.WithWeightsFromConfig(cfg.ScoreWeights))),
		app.WithBatchSize(cfg.BatchSize),
		app.WithBatchPause(time.Duration(cfg.BatchPauseMS)*time.Millisecond),
		app.WithRefreshInterval(time.Duration(cfg.RefreshIntervalMinutes)*time.Minute),
	)
	if err != nil {
		log.Error(ctx, "build service failed", logger.Error(err))
		os.Exit(1)
	}
	svc.Start(ctx)
	defer svc.Stop()

	mux := http.NewServeMux()
	api.NewServer(svc).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "http server listening", logger.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info(ctx, "shutdown signal received")
	case err := <-errCh:
		log.Error(ctx, "http server failed", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "graceful shutdown failed", logger.Error(err))
	}
	log.Info(context.Background(), "engine stopped")
}

func newStore(cfg *config.Config) (store.Store, error) {
	if cfg.Storage == "postgres" {
		return store.NewGormStore(cfg.PostgresDSN)
	}
	return store.NewMemStore(), nil
}
