package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docquery/docquery-backend/internal/domain"
	"github.com/docquery/docquery-backend/internal/http/middleware"
	"github.com/docquery/docquery-backend/internal/http/response"
	"github.com/docquery/docquery-backend/internal/tenant"
)

type TenantHandler struct {
	tenants *tenant.Service
}

func NewTenantHandler(tenants *tenant.Service) *TenantHandler {
	return &TenantHandler{tenants: tenants}
}

// tenantView is the administrative representation. It includes the API key,
// unlike the embedded JSON tags on the model, because these endpoints are
// how operators hand keys out.
type tenantView struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Domain          string   `json:"domain,omitempty"`
	APIKey          string   `json:"api_key"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
	Active          bool     `json:"is_active"`
	MaxDocuments    int      `json:"max_documents"`
	MaxChatMessages int      `json:"max_chat_messages"`
	MaxStorageMB    int      `json:"max_storage_mb"`
	Features        []string `json:"features_enabled"`
}

func toTenantView(t *domain.Tenant) tenantView {
	return tenantView{
		ID:              t.ID,
		Name:            t.Name,
		Domain:          t.Domain,
		APIKey:          t.APIKey,
		CreatedAt:       t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       t.UpdatedAt.UTC().Format(time.RFC3339),
		Active:          t.Active,
		MaxDocuments:    t.MaxDocuments,
		MaxChatMessages: t.MaxChatMessages,
		MaxStorageMB:    t.MaxStorageMB,
		Features:        tenant.FeatureList(t),
	}
}

// POST /api/tenants
func (h *TenantHandler) Create(c *gin.Context) {
	var req tenant.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	t, err := h.tenants.Create(c.Request.Context(), req)
	if err != nil {
		response.RespondMapped(c, "create_tenant_failed", err)
		return
	}
	response.RespondCreated(c, toTenantView(t))
}

// GET /api/tenants
func (h *TenantHandler) List(c *gin.Context) {
	activeOnly := c.DefaultQuery("active_only", "true") != "false"

	rows, err := h.tenants.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.RespondMapped(c, "list_tenants_failed", err)
		return
	}
	out := make([]tenantView, 0, len(rows))
	for _, t := range rows {
		out = append(out, toTenantView(t))
	}
	response.RespondOK(c, out)
}

// GET /api/tenants/:tenant_id
func (h *TenantHandler) Get(c *gin.Context) {
	t, err := h.tenants.Get(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		response.RespondMapped(c, "tenant_not_found", err)
		return
	}
	response.RespondOK(c, toTenantView(t))
}

// PUT /api/tenants/:tenant_id
func (h *TenantHandler) Update(c *gin.Context) {
	var req tenant.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	t, err := h.tenants.Update(c.Request.Context(), c.Param("tenant_id"), req)
	if err != nil {
		response.RespondMapped(c, "update_tenant_failed", err)
		return
	}
	response.RespondOK(c, toTenantView(t))
}

// DELETE /api/tenants/:tenant_id
func (h *TenantHandler) Delete(c *gin.Context) {
	if err := h.tenants.Delete(c.Request.Context(), c.Param("tenant_id")); err != nil {
		response.RespondMapped(c, "delete_tenant_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/tenants/:tenant_id/regenerate-api-key
func (h *TenantHandler) RegenerateAPIKey(c *gin.Context) {
	key, err := h.tenants.RegenerateAPIKey(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		response.RespondMapped(c, "regenerate_api_key_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"message": "API key regenerated successfully",
		"api_key": key,
	})
}

// GET /api/tenants/:tenant_id/usage
func (h *TenantHandler) Usage(c *gin.Context) {
	usage, err := h.tenants.Usage(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		response.RespondMapped(c, "tenant_usage_failed", err)
		return
	}
	response.RespondOK(c, usage)
}

// GET /api/tenants/current/usage
func (h *TenantHandler) CurrentUsage(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}
	usage, err := h.tenants.Usage(c.Request.Context(), t.ID)
	if err != nil {
		response.RespondMapped(c, "tenant_usage_failed", err)
		return
	}
	response.RespondOK(c, usage)
}
