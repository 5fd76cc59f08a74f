package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docquery/docquery-backend/internal/domain"
	"github.com/docquery/docquery-backend/internal/http/response"
	"github.com/docquery/docquery-backend/internal/platform/logger"
	"github.com/docquery/docquery-backend/internal/tenant"
)

const tenantContextKey = "request_tenant"

// ResolveTenant identifies the tenant behind every request and stores it on
// the gin context. Resolution never fails a request outright: when no
// strategy matches, the shared default tenant is used.
func ResolveTenant(log *logger.Logger, tenants *tenant.Service) gin.HandlerFunc {
	mwLog := log.With("middleware", "ResolveTenant")

	return func(c *gin.Context) {
		in := tenant.ResolveInput{
			APIKey:          bearerToken(c.GetHeader("Authorization")),
			Host:            c.Request.Host,
			QueryTenantID:   c.Query("tenant_id"),
			PathTenantID:    c.Param("tenant_id"),
			DevelopmentMode: strings.EqualFold(c.GetHeader("X-Development-Mode"), "true"),
		}

		t, err := tenants.Resolve(c.Request.Context(), in)
		if err != nil {
			mwLog.Error("Tenant resolution failed", "error", err)
			response.RespondError(c, http.StatusInternalServerError, "tenant_resolution_failed", err)
			c.Abort()
			return
		}

		c.Set(tenantContextKey, t)
		c.Next()
	}
}

// TenantFromContext returns the tenant the middleware resolved.
func TenantFromContext(c *gin.Context) (*domain.Tenant, bool) {
	v, ok := c.Get(tenantContextKey)
	if !ok {
		return nil, false
	}
	t, ok := v.(*domain.Tenant)
	return t, ok
}

// MustTenant fetches the resolved tenant or aborts with a 500; handlers
// behind ResolveTenant can rely on it.
func MustTenant(c *gin.Context) (*domain.Tenant, bool) {
	t, ok := TenantFromContext(c)
	if !ok {
		response.RespondError(c, http.StatusInternalServerError, "tenant_missing",
			fmt.Errorf("no tenant resolved for request"))
		c.Abort()
		return nil, false
	}
	return t, true
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
