package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Index renders the dashboard page with a freshly fetched reading.
func (h *Handler) Index(c *gin.Context) {
	reading := h.fetcher.Fetch(c.Request.Context())
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Title":             h.dashboard.Title,
		"Reading":           reading,
		"RefreshIntervalMS": h.dashboard.RefreshInterval.Milliseconds(),
	})
}

// GetOccupancy handles GET /api/occupancy. Fetch failures are reported in
// the body, never as an HTTP error.
func (h *Handler) GetOccupancy(c *gin.Context) {
	c.JSON(http.StatusOK, h.fetcher.Fetch(c.Request.Context()))
}

// GetStatus handles GET /api/status. It never contacts the remote channel.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"timestamp":          h.now().Format(time.RFC3339Nano),
		"thingspeak_channel": h.channelID,
	})
}
