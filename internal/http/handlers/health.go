package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/docquery/docquery-backend/internal/data/db"
	"github.com/docquery/docquery-backend/internal/http/response"
)

const (
	serviceName    = "Doc Query API"
	serviceVersion = "1.0.0"
)

type HealthHandler struct {
	db               *db.Service
	uploadDir        string
	vectorProvider   string
	openaiConfigured bool
}

func NewHealthHandler(dbService *db.Service, uploadDir, vectorProvider string, openaiConfigured bool) *HealthHandler {
	return &HealthHandler{
		db:               dbService,
		uploadDir:        uploadDir,
		vectorProvider:   vectorProvider,
		openaiConfigured: openaiConfigured,
	}
}

// GET /api/health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response.RespondOK(c, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// GET /api/health/detailed
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	dbStatus := "connected"
	if h.db == nil {
		dbStatus = "not configured"
	} else if err := h.db.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
	}

	response.RespondOK(c, gin.H{
		"status":   "healthy",
		"service":  serviceName,
		"version":  serviceVersion,
		"database": dbStatus,
		"config": gin.H{
			"upload_dir":        h.uploadDir,
			"vector_provider":   h.vectorProvider,
			"openai_configured": h.openaiConfigured,
		},
	})
}
