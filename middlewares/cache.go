package middlewares

import (
	"bytes"
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/yeremiapane/table-points/services"
	"github.com/yeremiapane/table-points/utils"
)

const (
	cachePrefix    = "tp:cache:"
	cacheOpTimeout = 500 * time.Millisecond
)

// ResponseCache stores successful GET bodies in Redis. Every committed
// change purges the whole namespace, so readers never see a stale ranking
// for longer than a purge round trip. A body rendered across a purge is
// never kept.
type ResponseCache struct {
	rdb        *redis.Client
	ttl        time.Duration
	generation atomic.Uint64
}

// NewResponseCache returns a cache that passes everything through when rdb
// is nil.
func NewResponseCache(rdb *redis.Client, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ResponseCache{rdb: rdb, ttl: ttl}
}

type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapture) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func (rc *ResponseCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rc == nil || rc.rdb == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := cacheKey(c.Request.URL.RequestURI())
		ctx, cancel := context.WithTimeout(c.Request.Context(), cacheOpTimeout)
		cached, err := rc.rdb.Get(ctx, key).Bytes()
		cancel()
		if err == nil {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			c.Abort()
			return
		}
		if err != redis.Nil {
			utils.ErrorLogger.WithField("key", key).Debugf("cache read failed: %v", err)
		}

		gen := rc.generation.Load()
		w := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = w
		c.Header("X-Cache", "MISS")
		c.Next()

		if w.Status() != http.StatusOK || w.buf.Len() == 0 || rc.purgedSince(gen) {
			return
		}
		ctx, cancel = context.WithTimeout(context.Background(), cacheOpTimeout)
		defer cancel()
		if err := rc.rdb.Set(ctx, key, w.buf.Bytes(), rc.ttl).Err(); err != nil {
			utils.ErrorLogger.WithField("key", key).Debugf("cache write failed: %v", err)
			return
		}
		// A purge that ran between the check and the write may have missed it.
		if rc.purgedSince(gen) {
			rc.rdb.Del(ctx, key)
		}
	}
}

func (rc *ResponseCache) purgedSince(gen uint64) bool {
	return rc.generation.Load() != gen
}

// Purge deletes every cached response. Requests already in flight will not
// store what they render.
func (rc *ResponseCache) Purge(ctx context.Context) error {
	if rc == nil || rc.rdb == nil {
		return nil
	}
	rc.generation.Add(1)
	iter := rc.rdb.Scan(ctx, 0, cachePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rc.rdb.Del(ctx, keys...).Err()
}

func (rc *ResponseCache) OnChange(ctx context.Context, ev services.ChangeEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := rc.Purge(ctx); err != nil {
		utils.ErrorLogger.WithField("event", ev.Type).Warnf("cache purge failed: %v", err)
	}
}

func cacheKey(requestURI string) string {
	return cachePrefix + requestURI
}
