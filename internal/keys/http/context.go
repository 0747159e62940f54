// Package http exposes the tenant key lifecycle over Gin.
package http

import (
	"context"
)

type siteIDKey struct{}

type principalIDKey struct{}

// WithSiteID stores the caller's tenant in the context.
func WithSiteID(ctx context.Context, siteID string) context.Context {
	return context.WithValue(ctx, siteIDKey{}, siteID)
}

// GetSiteID returns the tenant set by TenantMiddleware.
func GetSiteID(ctx context.Context) (string, bool) {
	siteID, ok := ctx.Value(siteIDKey{}).(string)
	return siteID, ok && siteID != ""
}

// WithPrincipalID stores the authenticated principal in the context.
func WithPrincipalID(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, principalIDKey{}, principalID)
}

// GetPrincipalID returns the principal set by TenantMiddleware.
func GetPrincipalID(ctx context.Context) string {
	principalID, _ := ctx.Value(principalIDKey{}).(string)
	return principalID
}
