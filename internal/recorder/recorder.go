package recorder

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"canteen-occupancy-backend/internal/metrics"
	"canteen-occupancy-backend/internal/model"
	"canteen-occupancy-backend/internal/notification"
	"canteen-occupancy-backend/internal/store"
)

// Fetcher returns the current reading of the remote channel.
type Fetcher interface {
	Fetch(ctx context.Context) model.OccupancyReading
}

// Dispatcher receives occupancy drops; *notification.WorkerPool satisfies it.
type Dispatcher interface {
	Start(ctx context.Context)
	Dispatch(drop notification.Drop)
}

// Service polls the channel on a fixed interval and keeps a history of
// distinct readings.
type Service struct {
	interval   time.Duration
	fetcher    Fetcher
	store      store.Store
	dispatcher Dispatcher
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	previous *int // occupancy of the last stored sample
}

// NewService creates a recorder. dispatcher may be nil when push is disabled.
func NewService(interval time.Duration, fetcher Fetcher, s store.Store, dispatcher Dispatcher, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		interval:   interval,
		fetcher:    fetcher,
		store:      s,
		dispatcher: dispatcher,
		logger:     logger.Named("recorder"),
		metrics:    m,
		now:        time.Now,
	}
}

// Run records once immediately and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("starting recorder", zap.Duration("interval", s.interval))

	if s.dispatcher != nil {
		s.dispatcher.Start(ctx)
	}
	s.loadPrevious(ctx)

	s.RecordOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("recorder shutting down")
			return
		case <-timer.C:
			s.RecordOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

func (s *Service) loadPrevious(ctx context.Context) {
	latest, err := s.store.LatestSample(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Warn("could not load latest sample", zap.Error(err))
		return
	}
	prev := latest.Occupancy
	s.previous = &prev
}

// RecordOnce performs one fetch and stores the reading if it is new.
// It reports whether a sample was written.
func (s *Service) RecordOnce(ctx context.Context) bool {
	reading := s.fetcher.Fetch(ctx)
	if !reading.OK() {
		s.logger.Debug("skipping failed reading", zap.String("error", reading.ErrorMessage))
		return false
	}
	if reading.LastUpdated == "" {
		s.logger.Debug("skipping reading without timestamp")
		return false
	}

	sample := &model.OccupancySample{
		Occupancy:      reading.Occupancy,
		EntryCreatedAt: reading.LastUpdated,
		ObservedAt:     s.now().UTC(),
	}
	inserted, err := s.store.RecordSample(ctx, sample)
	if err != nil {
		s.logger.Error("error recording sample", zap.Error(err))
		return false
	}
	if !inserted {
		return false
	}

	s.metrics.SampleRecorded()
	s.logger.Debug("sample recorded",
		zap.Int("occupancy", sample.Occupancy),
		zap.String("entry_created_at", sample.EntryCreatedAt),
	)

	if s.previous != nil && sample.Occupancy < *s.previous && s.dispatcher != nil {
		s.dispatcher.Dispatch(notification.Drop{Previous: *s.previous, Current: sample.Occupancy})
	}
	current := sample.Occupancy
	s.previous = &current
	return true
}
