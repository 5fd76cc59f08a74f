package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docquery/docquery-backend/internal/http/middleware"
	"github.com/docquery/docquery-backend/internal/http/response"
	"github.com/docquery/docquery-backend/internal/services"
)

type ChatHandler struct {
	chat services.ChatService
}

func NewChatHandler(chat services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type sendMessageRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

func (r sendMessageRequest) sessionID(c *gin.Context) (*uuid.UUID, bool) {
	if r.SessionID == "" {
		return nil, true
	}
	id, err := uuid.Parse(r.SessionID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return nil, false
	}
	return &id, true
}

// POST /api/chat/send
func (h *ChatHandler) Send(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sid, ok := req.sessionID(c)
	if !ok {
		return
	}

	reply, err := h.chat.SendMessage(c.Request.Context(), t.ID, sid, req.Message)
	if err != nil {
		response.RespondMapped(c, "send_message_failed", err)
		return
	}
	response.RespondOK(c, reply)
}

// POST /api/chat/send/stream
func (h *ChatHandler) SendStream(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sid, ok := req.sessionID(c)
	if !ok {
		return
	}

	setSSEHeaders(c)
	err := h.chat.SendMessageStream(c.Request.Context(), t.ID, sid, req.Message, func(ev services.ChatStreamEvent) {
		writeSSEEvent(c, ev)
	})
	if err != nil {
		// Headers are already out; report the failure as the stream's
		// single terminal event.
		writeSSEEvent(c, services.ChatStreamEvent{
			Type:    "error",
			Content: err.Error(),
		})
	}
}

// GET /api/chat/sessions
func (h *ChatHandler) Sessions(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	sessions, err := h.chat.Sessions(c.Request.Context(), t.ID, limit)
	if err != nil {
		response.RespondMapped(c, "list_sessions_failed", err)
		return
	}
	response.RespondOK(c, sessions)
}

// GET /api/chat/sessions/:session_id/messages
func (h *ChatHandler) SessionMessages(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}
	sid, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	messages, err := h.chat.SessionMessages(c.Request.Context(), t.ID, sid)
	if err != nil {
		response.RespondMapped(c, "list_messages_failed", err)
		return
	}
	response.RespondOK(c, messages)
}

type feedbackRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

// POST /api/chat/messages/:message_id/feedback
func (h *ChatHandler) SubmitFeedback(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}
	mid, err := uuid.Parse(c.Param("message_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_message_id", err)
		return
	}

	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	if err := h.chat.SubmitFeedback(c.Request.Context(), t.ID, mid, req.Feedback); err != nil {
		response.RespondMapped(c, "submit_feedback_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Feedback submitted successfully"})
}

// GET /api/chat/feedback/stats
func (h *ChatHandler) FeedbackStats(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}

	stats, err := h.chat.FeedbackStats(c.Request.Context(), t.ID)
	if err != nil {
		response.RespondMapped(c, "feedback_stats_failed", err)
		return
	}
	response.RespondOK(c, stats)
}

// GET /api/chat/feedback/trends
func (h *ChatHandler) FeedbackTrends(c *gin.Context) {
	t, ok := middleware.MustTenant(c)
	if !ok {
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	trends, err := h.chat.FeedbackTrends(c.Request.Context(), t.ID, days)
	if err != nil {
		response.RespondMapped(c, "feedback_trends_failed", err)
		return
	}
	response.RespondOK(c, trends)
}
