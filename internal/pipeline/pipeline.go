// Package pipeline orchestrates one scheduled run: load query, fetch from
// Overpass, convert to GeoJSON, guard, replace the artifact, notify.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/tap-in-osm/overpass-etl/internal/domain"
	"github.com/tap-in-osm/overpass-etl/internal/observability"
)

// QuerySource provides the Overpass QL query for the run.
type QuerySource interface {
	Load() (domain.Query, error)
}

// Fetcher executes a query against the Overpass API.
type Fetcher interface {
	Fetch(ctx context.Context, query domain.Query) (*domain.Response, error)
}

// Artifact manages the committed output file.
type Artifact interface {
	Path() string
	PreviousCount() (count int, ok bool)
	Replace(fc *geojson.FeatureCollection) error
}

// Notifier announces a successful artifact replacement.
type Notifier interface {
	NotifyUpdated(ctx context.Context, summary domain.RunSummary) error
}

// Pipeline wires the run stages together. A nil Notifier disables
// notifications.
type Pipeline struct {
	source    QuerySource
	fetcher   Fetcher
	store     Artifact
	notifier  Notifier
	threshold int
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Pipeline with the given stages and observability.
func New(source QuerySource, fetcher Fetcher, store Artifact, notifier Notifier, dropThreshold int, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:    source,
		fetcher:   fetcher,
		store:     store,
		notifier:  notifier,
		threshold: dropThreshold,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes a single sequential pass. Every failure is terminal and
// leaves the previous artifact in place.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	defer func() {
		outcome := observability.OutcomeSuccess
		if err != nil {
			outcome = "failure"
		}
		p.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	}()

	query, err := p.source.Load()
	if err != nil {
		return err
	}

	fetchStart := time.Now()
	resp, err := p.fetcher.Fetch(ctx, query)
	if err != nil {
		return err
	}
	p.metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())

	for _, e := range resp.Elements {
		p.metrics.ElementsTotal.WithLabelValues(e.Type).Inc()
	}

	fc, skipped := domain.Convert(resp.Elements)
	if skipped > 0 {
		p.metrics.SkippedElements.Add(float64(skipped))
		p.logger.Warn("skipped elements without usable geometry", "count", skipped)
	}
	for _, f := range fc.Features {
		p.metrics.FeaturesTotal.WithLabelValues(f.Geometry.GeoJSONType()).Inc()
	}

	newCount := len(fc.Features)
	p.metrics.FeatureCount.Set(float64(newCount))
	p.logger.Info("converted features", "features", newCount, "elements", len(resp.Elements))

	previous, havePrevious := p.store.PreviousCount()
	if havePrevious {
		p.metrics.PreviousCount.Set(float64(previous))
	} else {
		p.logger.Info("no previous artifact, skipping drop check", "path", p.store.Path())
		previous = 0
	}

	if err := domain.CheckFeatureCount(newCount, previous, p.threshold); err != nil {
		p.metrics.GuardFailures.WithLabelValues(guardReason(err)).Inc()
		return err
	}

	if err := p.store.Replace(fc); err != nil {
		return err
	}

	if p.notifier != nil {
		summary := domain.RunSummary{
			Artifact:      p.store.Path(),
			FeatureCount:  newCount,
			PreviousCount: previous,
			SkippedCount:  skipped,
			DataTimestamp: resp.OSM3S.TimestampOSMBase,
		}
		// The artifact is already committed; a lost notification is not
		// worth failing the run over.
		if err := p.notifier.NotifyUpdated(ctx, summary); err != nil {
			p.logger.Warn("update notification failed", "error", err)
		}
	}

	return nil
}

func guardReason(err error) string {
	var dropErr *domain.DropError
	switch {
	case errors.Is(err, domain.ErrNoFeatures):
		return "zero_features"
	case errors.As(err, &dropErr):
		return "excessive_drop"
	default:
		return "unknown"
	}
}
