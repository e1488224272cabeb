package api

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/gin-gonic/gin"
)

const (
	defaultCacheSize = 64 << 20
	cacheHeader      = "X-Cache"
	// Run state changes without a write through the API.
	uncachedPrefix = "/runs"
)

type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

// responseCache keeps successful GET responses for a fixed TTL.
type responseCache struct {
	cache *ristretto.Cache[string, *cachedResponse]
	ttl   time.Duration
}

func newResponseCache(ttl time.Duration, maxBytes int64) (*responseCache, error) {
	if ttl <= 0 {
		return nil, nil
	}
	if maxBytes <= 0 {
		maxBytes = defaultCacheSize
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *cachedResponse]{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &responseCache{cache: cache, ttl: ttl}, nil
}

func (rc *responseCache) get(key string) (*cachedResponse, bool) {
	if rc == nil {
		return nil, false
	}
	return rc.cache.Get(key)
}

func (rc *responseCache) set(key string, resp *cachedResponse) {
	if rc == nil {
		return
	}
	rc.cache.SetWithTTL(key, resp, int64(len(resp.body))+1, rc.ttl)
	rc.cache.Wait()
}

func (rc *responseCache) clear() {
	if rc == nil {
		return
	}
	rc.cache.Clear()
}

func (rc *responseCache) close() {
	if rc == nil {
		return
	}
	rc.cache.Close()
}

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// middleware serves GET requests from the cache and clears it after any
// successful write.
func (rc *responseCache) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rc == nil {
			c.Next()
			return
		}

		if c.Request.Method != http.MethodGet {
			c.Next()
			if status := c.Writer.Status(); status >= 200 && status < 300 {
				rc.clear()
			}
			return
		}

		if strings.HasPrefix(c.Request.URL.Path, uncachedPrefix) {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if resp, ok := rc.get(key); ok {
			c.Header(cacheHeader, "HIT")
			c.Data(resp.status, resp.contentType, resp.body)
			c.Abort()
			return
		}

		writer := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Header(cacheHeader, "MISS")
		c.Next()

		if writer.Status() == http.StatusOK {
			rc.set(key, &cachedResponse{
				status:      http.StatusOK,
				contentType: writer.Header().Get("Content-Type"),
				body:        append([]byte(nil), writer.body.Bytes()...),
			})
		}
	}
}
