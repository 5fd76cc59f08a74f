package app

import (
	"os"
	"strings"

	"github.com/docquery/docquery-backend/internal/data/db"
	httpH "github.com/docquery/docquery-backend/internal/http/handlers"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Documents *httpH.DocumentHandler
	Chat      *httpH.ChatHandler
	LLM       *httpH.LLMHandler
	Tenants   *httpH.TenantHandler
}

func wireHandlers(dbService *db.Service, cfg Config, svcs Services) Handlers {
	openaiConfigured := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")) != ""

	return Handlers{
		Health:    httpH.NewHealthHandler(dbService, cfg.UploadDir, cfg.VectorProvider, openaiConfigured),
		Documents: httpH.NewDocumentHandler(svcs.Documents, svcs.Index),
		Chat:      httpH.NewChatHandler(svcs.Chat),
		LLM:       httpH.NewLLMHandler(svcs.RAG),
		Tenants:   httpH.NewTenantHandler(svcs.Tenants),
	}
}
