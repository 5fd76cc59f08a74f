package tenant

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/docquery/docquery-backend/internal/domain"
	"github.com/docquery/docquery-backend/internal/pkg/dbctx"
	apperrors "github.com/docquery/docquery-backend/internal/pkg/errors"
)

var subdomainRe = regexp.MustCompile(`^([^.]+)\.`)

// ResolveInput carries the request attributes the resolver inspects. The
// HTTP layer fills it; the resolver itself never sees a request object.
type ResolveInput struct {
	// APIKey is the bearer credential from the Authorization header.
	APIKey string
	// Host is the request Host header, port included.
	Host string
	// QueryTenantID is the tenant_id query parameter.
	QueryTenantID string
	// PathTenantID is the tenant_id path parameter on routes that carry one.
	PathTenantID string
	// DevelopmentMode is set when the X-Development-Mode header is "true".
	DevelopmentMode bool
}

// Resolve identifies the tenant a request belongs to, trying strategies in
// fixed order: API key, subdomain, query parameter, path parameter, the
// development-mode default, and finally the shared default tenant. Inactive
// tenants never match; a strategy that misses falls through to the next.
func (s *Service) Resolve(ctx context.Context, in ResolveInput) (*domain.Tenant, error) {
	dbc := dbctx.Context{Ctx: ctx}

	if key := strings.TrimSpace(in.APIKey); key != "" {
		t, err := s.tenants.GetByAPIKey(dbc, key)
		if err == nil && t.Active {
			return t, nil
		}
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}

	if sub := subdomain(in.Host); sub != "" {
		if t := s.activeByID(dbc, sub); t != nil {
			return t, nil
		}
	}

	if id := strings.TrimSpace(in.QueryTenantID); id != "" {
		if t := s.activeByID(dbc, id); t != nil {
			return t, nil
		}
	}

	if id := strings.TrimSpace(in.PathTenantID); id != "" {
		if t := s.activeByID(dbc, id); t != nil {
			return t, nil
		}
	}

	if in.DevelopmentMode {
		if t, err := s.tenants.GetByID(dbc, DefaultTenantID); err == nil {
			return t, nil
		}
	}

	return s.EnsureDefault(ctx)
}

func (s *Service) activeByID(dbc dbctx.Context, id string) *domain.Tenant {
	t, err := s.tenants.GetByID(dbc, id)
	if err != nil || !t.Active {
		return nil
	}
	return t
}

// subdomain extracts the leftmost host label: tenant1.localhost:8000 yields
// tenant1. A bare host has no subdomain.
func subdomain(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	m := subdomainRe.FindStringSubmatch(host)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
