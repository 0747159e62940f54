package http

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "github.com/allisson/tenantkeys/internal/errors"
	"github.com/allisson/tenantkeys/internal/httputil"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTimeout   = time.Hour
)

// siteLimiters hands out one token bucket per site and forgets idle ones.
type siteLimiters struct {
	mu      sync.Mutex
	buckets map[string]*siteBucket
	limit   rate.Limit
	burst   int
}

type siteBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newSiteLimiters(rps float64, burst int) *siteLimiters {
	return &siteLimiters{buckets: make(map[string]*siteBucket), limit: rate.Limit(rps), burst: burst}
}

// reserve takes a token for siteID at now. It returns zero when the request
// may proceed, otherwise how long the caller should wait.
func (s *siteLimiters) reserve(siteID string, now time.Time) time.Duration {
	s.mu.Lock()
	b, ok := s.buckets[siteID]
	if !ok {
		b = &siteBucket{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[siteID] = b
	}
	b.lastSeen = now
	s.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return limiterIdleTimeout
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
	}
	return delay
}

// sweep drops buckets not used since threshold.
func (s *siteLimiters) sweep(threshold time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for siteID, b := range s.buckets {
		if b.lastSeen.Before(threshold) {
			delete(s.buckets, siteID)
		}
	}
}

func (s *siteLimiters) sweepEvery(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now.Add(-idle))
		}
	}
}

// RateLimitMiddleware enforces a token bucket per site and must run after
// TenantMiddleware. An empty bucket answers 429 with Retry-After in whole
// seconds. The idle bucket sweep stops when ctx is done.
func RateLimitMiddleware(ctx context.Context, rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	limiters := newSiteLimiters(rps, burst)
	go limiters.sweepEvery(ctx, limiterSweepInterval, limiterIdleTimeout)

	return func(c *gin.Context) {
		siteID, ok := GetSiteID(c.Request.Context())
		if !ok {
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		wait := limiters.reserve(siteID, time.Now())
		if wait <= 0 {
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(wait.Seconds()))
		logger.Debug("rate limit exceeded", slog.String("site_id", siteID), slog.Int("retry_after", retryAfter))

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, httputil.ErrorResponse{
			Error:   "rate_limit_exceeded",
			Message: "too many requests for this site, retry later",
		})
	}
}
