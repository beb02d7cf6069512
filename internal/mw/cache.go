package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// CacheHeader reports whether a response came from the cache.
const CacheHeader = "X-Cache"

// cachedBody is a stored 200 response.
type cachedBody struct {
	contentType string
	data        []byte
}

// teeWriter copies everything the handler writes into buf.
type teeWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *teeWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache keeps successful GET responses in memory for duration, keyed by the
// full request URI.
func Cache(store *cache.Cache, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if v, found := store.Get(key); found {
			hit := v.(cachedBody)
			c.Header(CacheHeader, "HIT")
			c.Data(http.StatusOK, hit.contentType, hit.data)
			c.Abort()
			return
		}

		c.Header(CacheHeader, "MISS")
		tee := &teeWriter{ResponseWriter: c.Writer}
		c.Writer = tee
		c.Next()

		if tee.Status() != http.StatusOK {
			return
		}
		store.Set(key, cachedBody{
			contentType: tee.Header().Get("Content-Type"),
			data:        bytes.Clone(tee.buf.Bytes()),
		}, duration)
	}
}
