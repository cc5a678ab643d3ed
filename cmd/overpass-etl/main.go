// Command overpass-etl runs one scheduled extract: it executes the Overpass
// QL query from the configured query file against the mirror list, converts
// the response to a GeoJSON FeatureCollection, and atomically replaces the
// artifact file when the guard checks pass.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tap-in-osm/overpass-etl/internal/adapter/artifact"
	kafkaadapter "github.com/tap-in-osm/overpass-etl/internal/adapter/kafka"
	"github.com/tap-in-osm/overpass-etl/internal/adapter/overpass"
	"github.com/tap-in-osm/overpass-etl/internal/adapter/queryfile"
	"github.com/tap-in-osm/overpass-etl/internal/config"
	"github.com/tap-in-osm/overpass-etl/internal/observability"
	"github.com/tap-in-osm/overpass-etl/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := queryfile.NewLoader(cfg.QueryFile, logger)
	fetcher := overpass.NewClient(cfg, logger, metrics)
	store := artifact.NewStore(cfg.OutputFile, logger)

	// Update notifications are feature-flagged via KAFKA_BROKERS.
	var notifier pipeline.Notifier
	if cfg.KafkaEnabled() {
		n := kafkaadapter.NewNotifier(cfg, logger)
		defer func() {
			if err := n.Close(); err != nil {
				logger.Error("kafka notifier close error", "error", err)
			}
		}()
		notifier = n
		logger.Info("update notifications enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("update notifications disabled")
	}

	p := pipeline.New(source, fetcher, store, notifier, cfg.DropThreshold, logger, metrics)

	runErr := p.Run(ctx)

	if cfg.PushEnabled() {
		if err := metrics.Push(cfg.PushgatewayURL, cfg.PushJobName); err != nil {
			logger.Warn("metrics push failed", "gateway", cfg.PushgatewayURL, "error", err)
		}
	}

	if runErr != nil {
		logger.Error("run failed", "error", runErr)
		return 1
	}

	logger.Info("run complete", "artifact", cfg.OutputFile)
	return 0
}
