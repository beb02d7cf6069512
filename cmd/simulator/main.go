// Command simulator writes synthetic occupancy counts to the ThingSpeak
// channel and reads them back through the same fetcher the server uses.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"canteen-occupancy-backend/config"
	"canteen-occupancy-backend/internal/logging"
	"canteen-occupancy-backend/internal/occupancy"
	"canteen-occupancy-backend/internal/thingspeak"
)

// writeInterval respects the one-write-per-15s limit of free channels.
const writeInterval = 16 * time.Second

type scenario struct {
	name     string
	min, max int
}

var scenarios = []scenario{
	{name: "Morning Rush", min: 25, max: 35},
	{name: "Mid-Morning", min: 5, max: 15},
	{name: "Lunch Peak", min: 30, max: 45},
	{name: "Afternoon", min: 8, max: 18},
	{name: "Evening", min: 20, max: 30},
	{name: "Night", min: 3, max: 10},
}

type simulator struct {
	client  *thingspeak.Client
	fetcher *occupancy.Fetcher
	field   string
	logger  *zap.Logger
	rnd     *rand.Rand
}

func main() {
	mode := flag.String("mode", "get", "one of send, get, simulate")
	count := flag.Int("count", -1, "count to send; negative picks a random value in [0, 50]")
	configPath := flag.String("config", "", "config file (defaults to $CONFIG_PATH or ./config/config.yaml)")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./config/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", path, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := thingspeak.NewClient(&cfg.ThingSpeak, logger)
	sim := &simulator{
		client:  client,
		fetcher: occupancy.NewFetcher(&cfg.ThingSpeak, client, logger, nil),
		field:   cfg.ThingSpeak.CountField,
		logger:  logger,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	switch *mode {
	case "send":
		n := *count
		if n < 0 {
			n = sim.rnd.Intn(51)
		}
		err = sim.send(ctx, n)
	case "get":
		sim.get(ctx)
	case "simulate":
		err = sim.simulate(ctx)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("simulator failed", zap.String("mode", *mode), zap.Error(err))
		os.Exit(1)
	}
}

func (s *simulator) send(ctx context.Context, n int) error {
	entryID, err := s.client.Update(ctx, map[string]int{s.field: n})
	if err != nil {
		return fmt.Errorf("failed to send count %d: %w", n, err)
	}
	s.logger.Info("sent occupancy count", zap.Int("count", n), zap.Int64("entry_id", entryID))
	return nil
}

func (s *simulator) get(ctx context.Context) {
	reading := s.fetcher.Fetch(ctx)
	s.logger.Info("latest occupancy",
		zap.Int("occupancy", reading.Occupancy),
		zap.String("last_updated", reading.LastUpdated),
		zap.String("status", string(reading.Status)),
		zap.String("error", reading.ErrorMessage),
	)
}

func (s *simulator) simulate(ctx context.Context) error {
	first := true
	for _, sc := range scenarios {
		s.logger.Info("scenario", zap.String("name", sc.name), zap.Int("min", sc.min), zap.Int("max", sc.max))
		points := 3 + s.rnd.Intn(3)
		for i := 0; i < points; i++ {
			if !first {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(writeInterval):
				}
			}
			first = false

			n := sc.min + s.rnd.Intn(sc.max-sc.min+1)
			if err := s.send(ctx, n); err != nil {
				// Rejected writes are skipped.
				if errors.Is(err, thingspeak.ErrRejected) {
					s.logger.Warn("write rejected by channel", zap.Int("count", n))
					continue
				}
				return err
			}
		}
	}
	s.logger.Info("simulation complete")
	return nil
}
