package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/allisson/tenantkeys/internal/keys/usecase/mocks"
)

const (
	testSiteID      = "site-1"
	testPrincipalID = "user-1"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestContext builds a Gin context as if TenantMiddleware had already run.
func createTestContext(method, url string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	ctx := WithPrincipalID(WithSiteID(req.Context(), testSiteID), testPrincipalID)
	c.Request = req.WithContext(ctx)

	return c, w
}

func setupLifecycleMock(t *testing.T) *mocks.MockLifecycleUseCase {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return mocks.NewMockLifecycleUseCase(t)
}

func setupInsightsMock(t *testing.T) *mocks.MockInsightsUseCase {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return mocks.NewMockInsightsUseCase(t)
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}
