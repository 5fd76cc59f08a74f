package app

import (
	"fmt"

	"github.com/docquery/docquery-backend/internal/ingestion/chunker"
	"github.com/docquery/docquery-backend/internal/platform/logger"
	"github.com/docquery/docquery-backend/internal/platform/openai"
	"github.com/docquery/docquery-backend/internal/rag"
	"github.com/docquery/docquery-backend/internal/retrieval"
	"github.com/docquery/docquery-backend/internal/services"
	"github.com/docquery/docquery-backend/internal/storage"
	"github.com/docquery/docquery-backend/internal/tenant"
	"github.com/docquery/docquery-backend/internal/vectorindex"
)

type Services struct {
	OpenAI    openai.Client
	Index     *vectorindex.Index
	Retrieval *retrieval.Service
	RAG       *rag.Service
	Files     *storage.Store
	Tenants   *tenant.Service
	Documents services.DocumentService
	Chat      services.ChatService
}

func wireServices(log *logger.Logger, cfg Config, repos Repos) (Services, error) {
	llm, err := openai.NewClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init openai client: %w", err)
	}

	store, err := resolveVectorStore(log, cfg)
	if err != nil {
		return Services{}, fmt.Errorf("init vector store: %w", err)
	}

	files, err := storage.New(log, cfg.UploadDir)
	if err != nil {
		return Services{}, fmt.Errorf("init file store: %w", err)
	}

	chk, err := chunker.New(log, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return Services{}, fmt.Errorf("init chunker: %w", err)
	}

	index := vectorindex.New(log, store, llm, cfg.VectorCollection)
	retrievalSvc := retrieval.New(log, index)
	ragSvc := rag.New(log, retrievalSvc, llm)

	tenants := tenant.NewService(log, repos.Tenants, repos.Documents, repos.Sessions, repos.Messages, index, files)

	documents := services.NewDocumentService(log, repos.Documents, files, chk, index, tenants)
	chat := services.NewChatService(log, repos.Sessions, repos.Messages, ragSvc, tenants)

	return Services{
		OpenAI:    llm,
		Index:     index,
		Retrieval: retrievalSvc,
		RAG:       ragSvc,
		Files:     files,
		Tenants:   tenants,
		Documents: documents,
		Chat:      chat,
	}, nil
}
