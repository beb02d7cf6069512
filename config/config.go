package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate when a value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	ThingSpeak ThingSpeakConfig `yaml:"thingspeak"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	Recorder   RecorderConfig   `yaml:"recorder"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	Debug           bool     `yaml:"debug"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	TrustedProxies  []string `yaml:"trusted_proxies"` // empty trusts no X-Forwarded-For
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// ThingSpeakConfig describes the remote channel holding the occupancy series.
type ThingSpeakConfig struct {
	BaseURL        string        `yaml:"base_url"`
	ChannelID      string        `yaml:"channel_id"`
	ReadAPIKey     string        `yaml:"read_api_key"`
	WriteAPIKey    string        `yaml:"write_api_key"`
	CountField     string        `yaml:"count_field"`
	TimestampField string        `yaml:"timestamp_field"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
	HTTPProxy      string        `yaml:"http_proxy"`
}

// Configured reports whether a channel id and read key were supplied.
func (t ThingSpeakConfig) Configured() bool {
	return t.ChannelID != "" && t.ReadAPIKey != ""
}

// DashboardConfig holds settings for the rendered page.
type DashboardConfig struct {
	Title                  string        `yaml:"title"`
	RefreshIntervalSeconds int           `yaml:"refresh_interval_seconds"`
	RefreshInterval        time.Duration `yaml:"-"`
}

// RecorderConfig toggles the background history recorder.
type RecorderConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DatabaseConfig holds the database connection configuration.
// An empty DSN disables persistence.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey      string        `yaml:"vapid_public_key"`
	PrivateKey     string        `yaml:"vapid_private_key"`
	Subject        string        `yaml:"subject"`
	TTL            int           `yaml:"ttl"`
	TimeoutSeconds int           `yaml:"timeout_seconds"` // per delivery
	Timeout        time.Duration `yaml:"-"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path, applies environment
// overrides and fills in defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// env and defaults only
		case err != nil:
			return nil, err
		default:
			defer f.Close()
			decoder := yaml.NewDecoder(f)
			if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
		}
		*dst = n
		return nil
	}

	str("THINGSPEAK_CHANNEL_ID", &c.ThingSpeak.ChannelID)
	str("THINGSPEAK_READ_API_KEY", &c.ThingSpeak.ReadAPIKey)
	str("THINGSPEAK_API_KEY", &c.ThingSpeak.WriteAPIKey)
	str("LOG_LEVEL", &c.Log.Level)
	str("DATABASE_DSN", &c.Database.DSN)

	if err := num("REFRESH_INTERVAL", &c.Dashboard.RefreshIntervalSeconds); err != nil {
		return err
	}
	if err := num("PORT", &c.Server.Port); err != nil {
		return err
	}
	if v, ok := lookup("DEBUG"); ok && v != "" {
		c.Server.Debug = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5002
	}
	if c.Server.RateLimitPerSec <= 0 {
		c.Server.RateLimitPerSec = 10
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 5
	}
	if c.Server.CacheTTLSeconds <= 0 {
		c.Server.CacheTTLSeconds = 60
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Server.Debug {
		c.Log.Level = "debug"
	}

	if c.ThingSpeak.BaseURL == "" {
		c.ThingSpeak.BaseURL = "https://api.thingspeak.com"
	}
	c.ThingSpeak.BaseURL = strings.TrimRight(c.ThingSpeak.BaseURL, "/")
	if c.ThingSpeak.CountField == "" {
		c.ThingSpeak.CountField = "field1"
	}
	if c.ThingSpeak.TimestampField == "" {
		c.ThingSpeak.TimestampField = "created_at"
	}
	if c.ThingSpeak.TimeoutSeconds == 0 {
		c.ThingSpeak.TimeoutSeconds = 10
	}
	c.ThingSpeak.Timeout = time.Duration(c.ThingSpeak.TimeoutSeconds) * time.Second

	if c.Dashboard.Title == "" {
		c.Dashboard.Title = "Canteen Occupancy"
	}
	if c.Dashboard.RefreshIntervalSeconds == 0 {
		c.Dashboard.RefreshIntervalSeconds = 30
	}
	c.Dashboard.RefreshInterval = time.Duration(c.Dashboard.RefreshIntervalSeconds) * time.Second

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}

	if c.Push.TTL <= 0 {
		c.Push.TTL = 3600
	}
	if c.Push.TimeoutSeconds <= 0 {
		c.Push.TimeoutSeconds = 10
	}
	c.Push.Timeout = time.Duration(c.Push.TimeoutSeconds) * time.Second
	if c.WorkerPool.Size <= 0 {
		c.WorkerPool.Size = 1
	}
}

// Validate checks value ranges that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.ThingSpeak.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: thingspeak.timeout_seconds must be positive", ErrInvalidConfig)
	}
	if c.Dashboard.RefreshIntervalSeconds < 0 {
		return fmt.Errorf("%w: dashboard.refresh_interval_seconds must be positive", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.ThingSpeak.CountField) == "" || strings.TrimSpace(c.ThingSpeak.TimestampField) == "" {
		return fmt.Errorf("%w: thingspeak field names must not be blank", ErrInvalidConfig)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: database.driver %q is not supported", ErrInvalidConfig, c.Database.Driver)
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding values that are already set. Missing files
// are skipped.
func LoadDotEnv(files ...string) error {
	for _, name := range files {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}
