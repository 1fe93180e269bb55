package service

import (
	"context"

	"github.com/kursd/kursd/internal/middleware"
)

// tenantID extracts the tenant scope every service operates under.
func tenantID(ctx context.Context) string {
	return middleware.TenantIDFromContext(ctx)
}

// rateCacheKey is the in-process cache key for a tenant's current rate.
func rateCacheKey(tenant string) string {
	return "rate:" + tenant
}
