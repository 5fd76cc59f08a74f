package app

import (
	internalhttp "github.com/docquery/docquery-backend/internal/http"
	"github.com/docquery/docquery-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, svcs Services, h Handlers) *internalhttp.Server {
	return internalhttp.NewServer(internalhttp.RouterConfig{
		Log:           log,
		TenantService: svcs.Tenants,

		HealthHandler:   h.Health,
		DocumentHandler: h.Documents,
		ChatHandler:     h.Chat,
		LLMHandler:      h.LLM,
		TenantHandler:   h.Tenants,
	})
}
