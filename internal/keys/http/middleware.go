package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/tenantkeys/internal/errors"
	"github.com/allisson/tenantkeys/internal/httputil"
	customValidation "github.com/allisson/tenantkeys/internal/validation"
)

const (
	// SiteIDHeader carries the tenant resolved by the upstream auth layer.
	SiteIDHeader = "X-Site-Id"
	// PrincipalIDHeader carries the authenticated principal.
	PrincipalIDHeader = "X-Principal-Id"
)

// TenantMiddleware reads the tenant and principal set by the trusted upstream
// and stores them in the request context. Requests without a valid site id
// or principal id are rejected with 401 Unauthorized.
func TenantMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		siteID := c.GetHeader(SiteIDHeader)
		if err := validation.Validate(siteID, customValidation.SiteID...); err != nil {
			logger.Debug("rejected request without valid site id", slog.Any("error", err))
			httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrUnauthorized, "missing or invalid site id"), logger)
			c.Abort()
			return
		}

		principalID := c.GetHeader(PrincipalIDHeader)
		if err := validation.Validate(principalID, customValidation.PrincipalID...); err != nil {
			logger.Debug("rejected request without valid principal id",
				slog.String("site_id", siteID),
				slog.Any("error", err),
			)
			httputil.HandleErrorGin(c, apperrors.Wrap(apperrors.ErrUnauthorized, "missing or invalid principal id"), logger)
			c.Abort()
			return
		}

		ctx := WithSiteID(c.Request.Context(), siteID)
		ctx = WithPrincipalID(ctx, principalID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
