package app

import (
	"fmt"
	"strings"

	"github.com/docquery/docquery-backend/internal/platform/chromem"
	"github.com/docquery/docquery-backend/internal/platform/logger"
	"github.com/docquery/docquery-backend/internal/platform/qdrant"
	"github.com/docquery/docquery-backend/internal/platform/vectorstore"
)

// resolveVectorStore selects the vector backend from configuration: an
// in-memory store for development, embedded chromem for single-node
// durability, or Qdrant for a standalone server.
func resolveVectorStore(log *logger.Logger, cfg Config) (vectorstore.VectorStore, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.VectorProvider))

	switch provider {
	case "", "memory":
		log.Info("Selecting vector store provider", "provider", "memory")
		return vectorstore.NewMemoryStore(log), nil

	case "chromem":
		log.Info("Selecting vector store provider",
			"provider", "chromem",
			"path", cfg.ChromemPath,
			"collection", cfg.VectorCollection,
			"vector_dim", cfg.VectorDim,
		)
		return chromem.NewStore(log, chromem.Config{
			Path:       cfg.ChromemPath,
			Collection: cfg.VectorCollection,
			VectorDim:  cfg.VectorDim,
			Compress:   cfg.ChromemCompress,
		})

	case "qdrant":
		qcfg, err := qdrant.ResolveConfigFromEnv()
		if err != nil {
			return nil, fmt.Errorf("resolve qdrant config: %w", err)
		}
		log.Info("Selecting vector store provider",
			"provider", "qdrant",
			"qdrant_url", qcfg.URL,
			"qdrant_collection", qcfg.Collection,
			"qdrant_vector_dim", qcfg.VectorDim,
		)
		return qdrant.NewStore(log, qcfg)

	default:
		return nil, fmt.Errorf("unknown vector provider %q (expected memory, chromem or qdrant)", cfg.VectorProvider)
	}
}
