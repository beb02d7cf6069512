package thingspeak

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"canteen-occupancy-backend/config"
)

// Client talks to a single ThingSpeak channel. It is safe for concurrent use.
type Client struct {
	cfg  *config.ThingSpeakConfig
	http *resty.Client
}

// NewClient creates a client for the configured channel. Requests are never
// retried and each one is bounded by cfg.Timeout.
func NewClient(cfg *config.ThingSpeakConfig, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	if cfg.HTTPProxy != "" {
		if _, err := url.Parse(cfg.HTTPProxy); err != nil {
			logger.Warn("invalid proxy URL, thingspeak client will not use a proxy",
				zap.String("proxy", cfg.HTTPProxy),
				zap.Error(err),
			)
		} else {
			httpClient.SetProxy(cfg.HTTPProxy)
		}
	}

	return &Client{cfg: cfg, http: httpClient}
}

// LastFeed fetches the most recent entry of the channel.
func (c *Client) LastFeed(ctx context.Context) (Feed, error) {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("channel", c.cfg.ChannelID)
	if c.cfg.ReadAPIKey != "" {
		req.SetQueryParam("api_key", c.cfg.ReadAPIKey)
	}

	resp, err := req.Get("/channels/{channel}/feeds/last.json")
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status())
	}
	return decodeFeed(resp.Body())
}

// Update writes one entry to the channel and returns its entry id.
func (c *Client) Update(ctx context.Context, fields map[string]int) (int64, error) {
	if c.cfg.WriteAPIKey == "" {
		return 0, ErrMissingWriteKey
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("api_key", c.cfg.WriteAPIKey)
	for _, name := range names {
		req.SetQueryParam(name, strconv.Itoa(fields[name]))
	}

	resp, err := req.Get("/update")
	if err != nil {
		return 0, fmt.Errorf("http request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return 0, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status())
	}

	entryID, err := strconv.ParseInt(strings.TrimSpace(resp.String()), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unexpected update body %q", ErrMalformedFeed, resp.String())
	}
	if entryID == 0 {
		return 0, ErrRejected
	}
	return entryID, nil
}
