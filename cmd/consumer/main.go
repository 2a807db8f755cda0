package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"example.com/fittracker/internal/config"
	"example.com/fittracker/internal/consumer"
	"example.com/fittracker/internal/logging"
	"example.com/fittracker/internal/storage/postgres"
	httptransport "example.com/fittracker/internal/transport/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Errorf("fittracker consumer: %v", err)
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

	if cfg.Postgres.MigrateOnStart {
		if err := postgres.Migrate(cfg.Postgres.URL); err != nil {
			return err
		}
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	handler := consumer.NewPersistenceHandler(pool)

	g, ctx := errgroup.WithContext(ctx)

	metricsSrv := httptransport.NewServer(httptransport.ServerConfig{Address: cfg.MetricsAddress}, promhttp.Handler())
	g.Go(func() error { return metricsSrv.Run(ctx, "consumer metrics") })

	for _, topic := range cfg.Kafka.ConsumerTopics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.Kafka.Brokers,
			GroupID:         cfg.Kafka.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})
		logger := log.WithFields(log.Fields{"topic": topic, "group": cfg.Kafka.ConsumerGroupID})
		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger))

		g.Go(func() error {
			defer reader.Close()

			logger.Info("consumer started")
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("consumer stopped")
			return nil
		})
	}

	return g.Wait()
}
