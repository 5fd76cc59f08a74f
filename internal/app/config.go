package app

import (
	"github.com/docquery/docquery-backend/internal/platform/logger"
	"github.com/docquery/docquery-backend/internal/utils"
)

type Config struct {
	Port      string
	UploadDir string

	ChunkSize    int
	ChunkOverlap int

	VectorProvider   string
	VectorCollection string
	VectorDim        int

	ChromemPath     string
	ChromemCompress bool
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:      utils.GetEnv("PORT", "8000", log),
		UploadDir: utils.GetEnv("UPLOAD_DIR", "uploads", log),

		ChunkSize:    utils.GetEnvAsInt("CHUNK_SIZE", 1000, log),
		ChunkOverlap: utils.GetEnvAsInt("CHUNK_OVERLAP", 200, log),

		VectorProvider:   utils.GetEnv("VECTOR_PROVIDER", "memory", log),
		VectorCollection: utils.GetEnv("VECTOR_COLLECTION", "documents", log),
		VectorDim:        utils.GetEnvAsInt("VECTOR_DIM", 1536, log),

		ChromemPath:     utils.GetEnv("CHROMEM_PATH", "./chromem", log),
		ChromemCompress: utils.GetEnvAsBool("CHROMEM_COMPRESS", false, log),
	}
}
