package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docquery/docquery-backend/internal/http/middleware"
	"github.com/docquery/docquery-backend/internal/http/response"
	"github.com/docquery/docquery-backend/internal/services"
	"github.com/docquery/docquery-backend/internal/vectorindex"
)

// IndexStats exposes collection-wide vector statistics to the API.
type IndexStats interface {
	Stats(ctx context.Context) vectorindex.Stats
}

type DocumentHandler struct {
	documents services.DocumentService
	stats     IndexStats
}

func NewDocumentHandler(documents services.DocumentService, stats IndexStats) *DocumentHandler {
	return &DocumentHandler{documents: documents, stats: stats}
}

// POST /api/documents/upload
func (h *DocumentHandler) Upload(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", fmt.Errorf("multipart field 'file' is required"))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()

	doc, err := h.documents.Upload(c.Request.Context(), t.ID, fileHeader.Filename, f)
	if err != nil {
		response.RespondMapped(c, "upload_failed", err)
		return
	}

	response.RespondOK(c, gin.H{
		"message":     "Document uploaded successfully",
		"document_id": doc.ID.String(),
		"filename":    doc.Filename,
	})
}

// GET /api/documents
func (h *DocumentHandler) List(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}

	docs, total, err := h.documents.List(c.Request.Context(), t.ID)
	if err != nil {
		response.RespondMapped(c, "list_documents_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"documents": docs,
		"total":     total,
	})
}

// GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}

	doc, err := h.documents.Get(c.Request.Context(), t.ID, id)
	if err != nil {
		response.RespondMapped(c, "document_not_found", err)
		return
	}
	response.RespondOK(c, doc)
}

// DELETE /api/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}

	if err := h.documents.Delete(c.Request.Context(), t.ID, id); err != nil {
		response.RespondMapped(c, "delete_document_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Document deleted successfully"})
}

// POST /api/documents/:id/process
func (h *DocumentHandler) Process(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}

	result, err := h.documents.Process(c.Request.Context(), t.ID, id)
	if err != nil {
		response.RespondMapped(c, "process_document_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"message":     "Document processed successfully",
		"document_id": result.DocumentID,
		"title":       result.Title,
		"chunk_count": result.ChunkCount,
		"indexed":     result.Indexed,
	})
}

// GET /api/documents/:id/chunks
func (h *DocumentHandler) Chunks(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}

	chunks, err := h.documents.Chunks(c.Request.Context(), t.ID, id)
	if err != nil {
		response.RespondMapped(c, "document_chunks_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"document_id": id.String(),
		"chunks":      chunks,
		"total":       len(chunks),
	})
}

// GET /api/documents/stats
func (h *DocumentHandler) VectorStats(c *gin.Context) {
	response.RespondOK(c, h.stats.Stats(c.Request.Context()))
}
