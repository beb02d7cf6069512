package api

import (
	"context"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"canteen-occupancy-backend/config"
	"canteen-occupancy-backend/internal/model"
	"canteen-occupancy-backend/internal/store"
)

// OccupancyFetcher returns a fresh reading on every call.
type OccupancyFetcher interface {
	Fetch(ctx context.Context) model.OccupancyReading
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	fetcher   OccupancyFetcher
	store     store.Store      // nil when no database is configured
	webpush   *webpush.Options // nil when push is disabled
	channelID string
	dashboard config.DashboardConfig
	now       func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(cfg *config.Config, fetcher OccupancyFetcher, s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		fetcher:   fetcher,
		store:     s,
		webpush:   webpushOptions,
		channelID: cfg.ThingSpeak.ChannelID,
		dashboard: cfg.Dashboard,
		now:       time.Now,
	}
}
