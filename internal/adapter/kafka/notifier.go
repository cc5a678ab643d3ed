// Package kafka publishes dataset-update notifications so downstream
// consumers can react to a refreshed artifact without polling the repo.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/tap-in-osm/overpass-etl/internal/config"
	"github.com/tap-in-osm/overpass-etl/internal/domain"
)

// Notifier produces one run-summary message per successful artifact replace.
// It implements pipeline.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured update topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, clock: clockwork.NewRealClock(), logger: logger}
}

// SetClock swaps the time source for generated_at. Tests inject a fake
// clock; pass nil to reset to real time.
func (n *Notifier) SetClock(clk clockwork.Clock) {
	if clk == nil {
		n.clock = clockwork.NewRealClock()
		return
	}
	n.clock = clk
}

// NotifyUpdated publishes the run summary, stamped with the current time.
func (n *Notifier) NotifyUpdated(ctx context.Context, summary domain.RunSummary) error {
	summary.GeneratedAt = n.clock.Now().UTC()

	msg, err := serializeSummary(summary)
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, msg)
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeSummary marshals a RunSummary into a Kafka message keyed by the
// artifact path so updates for the same artifact land in one partition.
func serializeSummary(summary domain.RunSummary) (kafkago.Message, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(summary.Artifact),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "feature_count", Value: []byte(strconv.Itoa(summary.FeatureCount))},
			{Key: "generated_at", Value: []byte(summary.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
