package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/tenantkeys/internal/httputil"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	"github.com/allisson/tenantkeys/internal/keys/http/dto"
	keysUsecase "github.com/allisson/tenantkeys/internal/keys/usecase"
)

// InsightsHandler serves read-only usage metrics and the audit trail.
type InsightsHandler struct {
	insights keysUsecase.InsightsUseCase
	logger   *slog.Logger
}

// NewInsightsHandler creates an InsightsHandler.
func NewInsightsHandler(insights keysUsecase.InsightsUseCase, logger *slog.Logger) *InsightsHandler {
	return &InsightsHandler{
		insights: insights,
		logger:   logger,
	}
}

// MetricsHandler reports operation counts and the rotation schedule.
// GET /v1/encryption/metrics?days=30
func (h *InsightsHandler) MetricsHandler(c *gin.Context) {
	days, err := dto.ParseMetricsDays(c.Query("days"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	ctx := c.Request.Context()
	siteID, _ := GetSiteID(ctx)

	metrics, err := h.insights.GetEncryptionMetrics(ctx, siteID, days)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapMetricsToResponse(metrics))
}

// ListAuditLogsHandler pages through the site's audit records, newest first.
// GET /v1/encryption/audit-logs?offset=0&limit=50&from=...&to=...
func (h *InsightsHandler) ListAuditLogsHandler(c *gin.Context) {
	page, err := httputil.ParsePage(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	query, err := dto.ParseAuditLogQuery(c.Query("from"), c.Query("to"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	ctx := c.Request.Context()
	siteID, _ := GetSiteID(ctx)

	records, err := h.insights.ListAuditRecords(ctx, keysDomain.AuditFilter{
		SiteID: siteID,
		From:   query.From,
		To:     query.To,
		Offset: page.Offset,
		Limit:  page.Limit,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapAuditRecordsToListResponse(records))
}
