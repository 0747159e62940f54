package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTenantRouter(extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TenantMiddleware(testLogger()))
	router.Use(extra...)
	router.GET("/whoami", func(c *gin.Context) {
		siteID, _ := GetSiteID(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"site_id":      siteID,
			"principal_id": GetPrincipalID(c.Request.Context()),
		})
	})
	return router
}

func TestTenantMiddleware(t *testing.T) {
	router := newTenantRouter()

	t.Run("Success", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(SiteIDHeader, "site-1")
		req.Header.Set(PrincipalIDHeader, "user-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"site_id":"site-1","principal_id":"user-1"}`, w.Body.String())
	})

	t.Run("Error_MissingSite", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(PrincipalIDHeader, "user-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Error_BlankSite", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(SiteIDHeader, "   ")
		req.Header.Set(PrincipalIDHeader, "user-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Error_MissingPrincipal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(SiteIDHeader, "site-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Error_BlankPrincipal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(SiteIDHeader, "site-1")
		req.Header.Set(PrincipalIDHeader, " ")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router := newTenantRouter(RateLimitMiddleware(ctx, 1, 1, testLogger()))

	request := func(siteID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(SiteIDHeader, siteID)
		req.Header.Set(PrincipalIDHeader, "user-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, request("site-1").Code)

	limited := request("site-1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, request("site-2").Code, "limits are per site")
}

func TestSiteLimiters(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("burst then wait", func(t *testing.T) {
		limiters := newSiteLimiters(2, 2)

		assert.Zero(t, limiters.reserve("site-1", now))
		assert.Zero(t, limiters.reserve("site-1", now))

		wait := limiters.reserve("site-1", now)
		assert.Equal(t, 500*time.Millisecond, wait)

		assert.Zero(t, limiters.reserve("site-1", now.Add(wait)), "refused requests do not consume tokens")
	})

	t.Run("sweep drops idle sites", func(t *testing.T) {
		limiters := newSiteLimiters(1, 1)
		limiters.reserve("site-1", now)

		limiters.sweep(now.Add(-time.Hour))
		assert.Contains(t, limiters.buckets, "site-1", "recently used bucket is kept")

		limiters.sweep(now.Add(time.Second))
		assert.NotContains(t, limiters.buckets, "site-1")
	})
}
