package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"example.com/fittracker/internal/config"
	"example.com/fittracker/internal/logging"
	"example.com/fittracker/internal/outbox"
	httptransport "example.com/fittracker/internal/transport/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Errorf("fittracker dlq manager: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.Log.File,
		LogToStdout:   cfg.Log.ToStdout,
		LogLevel:      cfg.Log.Level,
		LogFormatJSON: cfg.Log.JSON,
	})

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQ.MaxRetries, cfg.DLQ.BaseDelay, log.StandardLogger())

	g, ctx := errgroup.WithContext(ctx)

	metricsSrv := httptransport.NewServer(httptransport.ServerConfig{Address: cfg.MetricsAddress}, promhttp.Handler())
	g.Go(func() error { return metricsSrv.Run(ctx, "dlq manager metrics") })

	g.Go(func() error {
		log.Infof("dlq manager started (interval=%s, maxRetries=%d)", cfg.DLQ.PollInterval, cfg.DLQ.MaxRetries)
		manager.Run(ctx, cfg.DLQ.PollInterval, cfg.DLQ.BatchSize)
		return nil
	})

	return g.Wait()
}
