package api

import (
	"embed"
	"html/template"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"canteen-occupancy-backend/config"
	"canteen-occupancy-backend/internal/metrics"
	"canteen-occupancy-backend/internal/mw"
)

//go:embed templates/*.html
var templatesFS embed.FS

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg *config.ServerConfig, logger *zap.Logger, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Warn("invalid trusted proxies, trusting none", zap.Strings("proxies", cfg.TrustedProxies), zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery(), mw.RequestID(), mw.AccessLog(logger.Named("http"), m))
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	rateLimiter := mw.RateLimiter(
		mw.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, 10*time.Minute),
	)

	// Only history is cached; occupancy must hit the channel on every request.
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	r.GET("/", handler.Index)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")
	{
		// Dashboards and health checks poll these; they are never throttled.
		api.GET("/occupancy", handler.GetOccupancy)
		api.GET("/status", handler.GetStatus)

		limited := api.Group("", rateLimiter)
		limited.GET("/history", caching, handler.GetHistory)
		limited.GET("/subscriptions", handler.GetSubscription)
		limited.PUT("/subscriptions", handler.PutSubscription)
		limited.DELETE("/subscriptions", handler.DeleteSubscription)
		limited.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
