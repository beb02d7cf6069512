// Package occupancy turns the latest entry of the remote channel into an
// OccupancyReading.
package occupancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"canteen-occupancy-backend/config"
	"canteen-occupancy-backend/internal/metrics"
	"canteen-occupancy-backend/internal/model"
	"canteen-occupancy-backend/internal/parse"
	"canteen-occupancy-backend/internal/thingspeak"
)

// FeedSource returns the latest raw channel entry.
type FeedSource interface {
	LastFeed(ctx context.Context) (thingspeak.Feed, error)
}

// Fetcher performs exactly one remote round trip per Fetch. It holds no
// mutable state and may be shared between goroutines.
type Fetcher struct {
	source         FeedSource
	countField     string
	timestampField string
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

// NewFetcher creates a Fetcher reading the configured count and timestamp fields.
func NewFetcher(cfg *config.ThingSpeakConfig, source FeedSource, logger *zap.Logger, m *metrics.Metrics) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		source:         source,
		countField:     cfg.CountField,
		timestampField: cfg.TimestampField,
		logger:         logger.Named("fetcher"),
		metrics:        m,
	}
}

// Fetch never returns an error: every failure becomes a reading with
// status "error", zero occupancy and an empty timestamp.
func (f *Fetcher) Fetch(ctx context.Context) (reading model.OccupancyReading) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("unexpected error: %v", r)
			f.logFailure("unexpected", err)
			reading = model.NewErrorReading(err)
		}
		f.metrics.ObserveFetch(reading, time.Since(start))
	}()

	feed, err := f.source.LastFeed(ctx)
	if err != nil {
		kind := "transport"
		if errors.Is(err, thingspeak.ErrMalformedFeed) {
			kind = "unexpected"
		}
		f.logFailure(kind, err)
		return model.NewErrorReading(err)
	}

	return model.NewSuccessReading(
		parse.Count(feed.Value(f.countField)),
		parse.Timestamp(feed.Value(f.timestampField)),
	)
}

func (f *Fetcher) logFailure(kind string, err error) {
	f.logger.Error("error fetching occupancy from thingspeak",
		zap.String("kind", kind),
		zap.Error(err),
	)
}
