package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docquery/docquery-backend/internal/http/middleware"
	"github.com/docquery/docquery-backend/internal/http/response"
	"github.com/docquery/docquery-backend/internal/rag"
)

type LLMHandler struct {
	rag *rag.Service
}

func NewLLMHandler(ragService *rag.Service) *LLMHandler {
	return &LLMHandler{rag: ragService}
}

type ragQueryRequest struct {
	Query          string   `json:"query" binding:"required"`
	NContextChunks int      `json:"n_context_chunks"`
	SystemPrompt   string   `json:"system_prompt"`
	Temperature    *float64 `json:"temperature"`
	MaxTokens      int      `json:"max_tokens"`
}

// validate applies the documented parameter bounds; unset values mean the
// caller wants the defaults and pass through. Temperature is a pointer so an
// explicit 0 survives to the model instead of falling back to the default.
func (r ragQueryRequest) validate() error {
	if r.NContextChunks != 0 && (r.NContextChunks < 1 || r.NContextChunks > 20) {
		return fmt.Errorf("n_context_chunks must be between 1 and 20")
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0.0 and 1.0")
	}
	if r.MaxTokens != 0 && (r.MaxTokens < 100 || r.MaxTokens > 4000) {
		return fmt.Errorf("max_tokens must be between 100 and 4000")
	}
	return nil
}

func (r ragQueryRequest) options() rag.QueryOptions {
	return rag.QueryOptions{
		NContextChunks: r.NContextChunks,
		SystemPrompt:   r.SystemPrompt,
		Temperature:    r.Temperature,
		MaxTokens:      r.MaxTokens,
	}
}

// POST /api/llm/query
func (h *LLMHandler) Query(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}

	var req ragQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := req.validate(); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_parameters", err)
		return
	}

	answer := h.rag.Answer(c.Request.Context(), t.ID, req.Query, req.options())
	response.RespondOK(c, answer)
}

// POST /api/llm/query/stream
func (h *LLMHandler) QueryStream(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}

	var req ragQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := req.validate(); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_parameters", err)
		return
	}

	setSSEHeaders(c)
	h.rag.Stream(c.Request.Context(), t.ID, req.Query, req.options(), func(ev rag.StreamEvent) {
		writeSSEEvent(c, ev)
	})
}

type analyzeRequest struct {
	DocumentID   string `json:"document_id" binding:"required"`
	AnalysisType string `json:"analysis_type" binding:"required"`
	MaxLength    int    `json:"max_length"`
	MaxKeywords  int    `json:"max_keywords"`
}

// POST /api/llm/analyze
func (h *LLMHandler) Analyze(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if _, err := uuid.Parse(req.DocumentID); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}

	switch req.AnalysisType {
	case "summary":
		result := h.rag.Summarize(c.Request.Context(), t.ID, req.DocumentID, req.MaxLength)
		response.RespondOK(c, gin.H{
			"success":  result.Success,
			"result":   result.Summary,
			"metadata": result.Metadata,
		})
	case "keywords":
		result := h.rag.Keywords(c.Request.Context(), t.ID, req.DocumentID, req.MaxKeywords)
		response.RespondOK(c, gin.H{
			"success":  result.Success,
			"result":   strings.Join(result.Keywords, ", "),
			"metadata": result.Metadata,
		})
	default:
		response.RespondError(c, http.StatusBadRequest, "invalid_analysis_type",
			fmt.Errorf("invalid analysis type, use 'summary' or 'keywords'"))
	}
}

// GET /api/llm/status
func (h *LLMHandler) Status(c *gin.Context) {
	model, err := h.rag.TestConnection(c.Request.Context())
	if err != nil {
		response.RespondOK(c, gin.H{
			"success": false,
			"status":  "Failed",
			"error":   err.Error(),
		})
		return
	}
	response.RespondOK(c, gin.H{
		"success": true,
		"status":  "Connected",
		"model":   model,
	})
}

// POST /api/llm/chat/simple
func (h *LLMHandler) SimpleChat(c *gin.Context) {
	var req ragQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := req.validate(); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_parameters", err)
		return
	}

	answer, err := h.rag.SimpleChat(c.Request.Context(), req.Query, req.options())
	if err != nil {
		response.RespondMapped(c, "simple_chat_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"success":  answer.Success,
		"response": answer.Response,
		"metadata": answer.Metadata,
	})
}
