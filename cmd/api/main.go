package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"example.com/fittracker/internal/api"
	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/bootstrap"
	"example.com/fittracker/internal/config"
	"example.com/fittracker/internal/logging"
	"example.com/fittracker/internal/outbox"
	"example.com/fittracker/internal/stats"
	httptransport "example.com/fittracker/internal/transport/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Errorf("fittracker api: %v", err)
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

	targets, err := cfg.Targets()
	if err != nil {
		return err
	}

	store, err := bootstrap.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnf("close storage: %v", err)
		}
	}()

	tr, err := bootstrap.RestoreTracker(ctx, cfg, store.Store)
	if err != nil {
		return err
	}

	handler := api.NewHandler(api.Deps{
		Tracker:    tr,
		Goals:      stats.NewGoalEvaluator(targets),
		Auth:       auth.Config{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.JWTIssuer, TTL: cfg.Auth.TokenTTL},
		Location:   cfg.Location(),
		Limiter:    api.NewRateLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst),
		CORSOrigin: cfg.CORSOrigin,
	})

	g, ctx := errgroup.WithContext(ctx)

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), handler.Router())
	g.Go(func() error { return server.Run(ctx, "fittracker api") })

	if cfg.MetricsAddress != "" {
		metricsSrv := httptransport.NewServer(httptransport.ServerConfig{Address: cfg.MetricsAddress}, promhttp.Handler())
		g.Go(func() error { return metricsSrv.Run(ctx, "metrics") })
	}

	if cfg.Outbox.Enabled {
		producer := outbox.NewKafkaProducer(cfg.Kafka.Brokers)
		defer func() {
			if err := producer.Close(); err != nil {
				log.Warnf("close kafka producer: %v", err)
			}
		}()

		registry := outbox.NewSchemaRegistryClient(cfg.Kafka.SchemaRegistryURL)
		dispatcher := outbox.NewDispatcher(store.Pool, producer, registry, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, log.StandardLogger())
		g.Go(func() error {
			dispatcher.Start(ctx)
			return nil
		})
		log.Infof("outbox dispatcher started (interval=%s, batch=%d)", cfg.Outbox.PollInterval, cfg.Outbox.BatchSize)
	}

	return g.Wait()
}
