package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	chatrepo "github.com/docquery/docquery-backend/internal/data/repos/chat"
	"github.com/docquery/docquery-backend/internal/domain"
	"github.com/docquery/docquery-backend/internal/pkg/dbctx"
	apperrors "github.com/docquery/docquery-backend/internal/pkg/errors"
	"github.com/docquery/docquery-backend/internal/platform/logger"
	"github.com/docquery/docquery-backend/internal/rag"
	"github.com/docquery/docquery-backend/internal/tenant"
)

const sessionTitleMax = 60

type ChatReply struct {
	Response  string         `json:"response"`
	SessionID string         `json:"session_id"`
	MessageID string         `json:"message_id"`
	Citations []rag.Citation `json:"citations"`
}

// ChatStreamEvent is one SSE payload of the streaming chat path. Terminal
// events ("complete" or "error") carry the persisted message identifiers.
type ChatStreamEvent struct {
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	SessionID string         `json:"session_id,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
	Citations []rag.Citation `json:"citations,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int64     `json:"message_count"`
}

type MessageView struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
	Feedback  *int      `json:"feedback"`
}

type FeedbackStats struct {
	TotalMessages      int64   `json:"total_messages"`
	PositiveFeedback   int64   `json:"positive_feedback"`
	NegativeFeedback   int64   `json:"negative_feedback"`
	NoFeedback         int64   `json:"no_feedback"`
	PositivePercentage float64 `json:"positive_percentage"`
	NegativePercentage float64 `json:"negative_percentage"`
	AverageRating      float64 `json:"average_rating"`
	FeedbackRate       float64 `json:"feedback_rate"`
}

type FeedbackTrend struct {
	Date     string `json:"date"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
	Total    int    `json:"total"`
}

type ChatService interface {
	SendMessage(ctx context.Context, tenantID string, sessionID *uuid.UUID, message string) (ChatReply, error)
	SendMessageStream(ctx context.Context, tenantID string, sessionID *uuid.UUID, message string, emit func(ChatStreamEvent)) error
	Sessions(ctx context.Context, tenantID string, limit int) ([]SessionSummary, error)
	SessionMessages(ctx context.Context, tenantID string, sessionID uuid.UUID) ([]MessageView, error)
	SubmitFeedback(ctx context.Context, tenantID string, messageID uuid.UUID, feedback string) error
	FeedbackStats(ctx context.Context, tenantID string) (FeedbackStats, error)
	FeedbackTrends(ctx context.Context, tenantID string, days int) ([]FeedbackTrend, error)
}

type chatService struct {
	log      *logger.Logger
	sessions chatrepo.SessionRepo
	messages chatrepo.MessageRepo
	rag      *rag.Service
	quotas   QuotaChecker
}

func NewChatService(
	log *logger.Logger,
	sessions chatrepo.SessionRepo,
	messages chatrepo.MessageRepo,
	ragService *rag.Service,
	quotas QuotaChecker,
) ChatService {
	return &chatService{
		log:      log.With("service", "ChatService"),
		sessions: sessions,
		messages: messages,
		rag:      ragService,
		quotas:   quotas,
	}
}

// ensureSession creates a session on the first message or refreshes the
// timestamp of an existing one. A session id owned by another tenant reads
// as not found, never as a crossover.
func (s *chatService) ensureSession(ctx context.Context, tenantID string, sessionID *uuid.UUID, message string) (uuid.UUID, error) {
	dbc := dbctx.Context{Ctx: ctx}

	if sessionID == nil || *sessionID == uuid.Nil {
		row := &domain.ChatSession{
			TenantID: tenantID,
			Title:    sessionTitle(message),
		}
		if err := s.sessions.Create(dbc, row); err != nil {
			return uuid.Nil, fmt.Errorf("create chat session: %w", err)
		}
		return row.ID, nil
	}

	if _, err := s.sessions.GetByID(dbc, tenantID, *sessionID); err != nil {
		return uuid.Nil, err
	}
	if err := s.sessions.Touch(dbc, tenantID, *sessionID); err != nil {
		return uuid.Nil, err
	}
	return *sessionID, nil
}

func sessionTitle(message string) string {
	title := strings.TrimSpace(message)
	if len(title) > sessionTitleMax {
		title = strings.TrimSpace(title[:sessionTitleMax])
	}
	return title
}

func (s *chatService) persistMessage(ctx context.Context, tenantID string, sessionID uuid.UUID, message, response string, citations []rag.Citation) (*domain.ChatMessage, error) {
	row := &domain.ChatMessage{
		TenantID:  tenantID,
		SessionID: sessionID,
		Message:   message,
		Response:  response,
	}
	if len(citations) > 0 {
		if raw, err := json.Marshal(citations); err == nil {
			row.Citations = raw
		}
	}
	if err := s.messages.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		return nil, fmt.Errorf("persist chat message: %w", err)
	}
	return row, nil
}

// SendMessage answers one message on the blocking path and persists the
// exchange. A no-context or model failure still persists; the user sees the
// explanatory response either way.
func (s *chatService) SendMessage(ctx context.Context, tenantID string, sessionID *uuid.UUID, message string) (ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		return ChatReply{}, fmt.Errorf("message is required: %w", apperrors.ErrInvalidArgument)
	}
	if err := s.quotas.CheckQuota(ctx, tenantID, tenant.ResourceChatMessages, 1); err != nil {
		return ChatReply{}, err
	}

	sid, err := s.ensureSession(ctx, tenantID, sessionID, message)
	if err != nil {
		return ChatReply{}, err
	}

	answer := s.rag.Answer(ctx, tenantID, message, rag.QueryOptions{})

	row, err := s.persistMessage(ctx, tenantID, sid, message, answer.Response, answer.Citations)
	if err != nil {
		return ChatReply{}, err
	}

	return ChatReply{
		Response:  answer.Response,
		SessionID: sid.String(),
		MessageID: row.ID.String(),
		Citations: answer.Citations,
	}, nil
}

// SendMessageStream answers one message on the streaming path. Content
// events pass through untouched; the terminal event is persisted first so it
// can carry the message id. Exactly one terminal event reaches emit.
func (s *chatService) SendMessageStream(ctx context.Context, tenantID string, sessionID *uuid.UUID, message string, emit func(ChatStreamEvent)) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message is required: %w", apperrors.ErrInvalidArgument)
	}
	if err := s.quotas.CheckQuota(ctx, tenantID, tenant.ResourceChatMessages, 1); err != nil {
		return err
	}

	sid, err := s.ensureSession(ctx, tenantID, sessionID, message)
	if err != nil {
		return err
	}

	s.rag.Stream(ctx, tenantID, message, rag.QueryOptions{}, func(ev rag.StreamEvent) {
		out := ChatStreamEvent{
			Type:     ev.Type,
			Content:  ev.Content,
			Metadata: ev.Metadata,
		}

		if ev.Type == "complete" || ev.Type == "error" {
			out.SessionID = sid.String()
			out.Citations = ev.Citations
			if row, perr := s.persistMessage(ctx, tenantID, sid, message, ev.Content, ev.Citations); perr == nil {
				out.MessageID = row.ID.String()
			} else {
				s.log.Error("Streamed message persistence failed", "tenant_id", tenantID, "session_id", sid, "error", perr)
			}
		}
		emit(out)
	})
	return nil
}

func (s *chatService) Sessions(ctx context.Context, tenantID string, limit int) ([]SessionSummary, error) {
	rows, err := s.sessions.List(dbctx.Context{Ctx: ctx}, tenantID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, SessionSummary{
			SessionID:    r.Session.ID.String(),
			Title:        r.Session.Title,
			CreatedAt:    r.Session.CreatedAt,
			UpdatedAt:    r.Session.UpdatedAt,
			MessageCount: r.MessageCount,
		})
	}
	return out, nil
}

func (s *chatService) SessionMessages(ctx context.Context, tenantID string, sessionID uuid.UUID) ([]MessageView, error) {
	dbc := dbctx.Context{Ctx: ctx}

	if _, err := s.sessions.GetByID(dbc, tenantID, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.messages.ListBySession(dbc, tenantID, sessionID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]MessageView, 0, len(rows))
	for _, m := range rows {
		out = append(out, MessageView{
			ID:        m.ID.String(),
			Message:   m.Message,
			Response:  m.Response,
			CreatedAt: m.CreatedAt,
			Feedback:  m.Feedback,
		})
	}
	return out, nil
}

// SubmitFeedback records a thumbs up or down on a message.
func (s *chatService) SubmitFeedback(ctx context.Context, tenantID string, messageID uuid.UUID, feedback string) error {
	var rating int
	switch feedback {
	case "positive":
		rating = 1
	case "negative":
		rating = -1
	default:
		return fmt.Errorf("feedback must be 'positive' or 'negative': %w", apperrors.ErrInvalidArgument)
	}
	return s.messages.SetFeedback(dbctx.Context{Ctx: ctx}, tenantID, messageID, rating)
}

// FeedbackStats aggregates ratings across all of the tenant's messages.
// Percentages are over all messages; average rating is net sentiment.
func (s *chatService) FeedbackStats(ctx context.Context, tenantID string) (FeedbackStats, error) {
	counts, err := s.messages.FeedbackCounts(dbctx.Context{Ctx: ctx}, tenantID)
	if err != nil {
		return FeedbackStats{}, err
	}

	out := FeedbackStats{
		TotalMessages:    counts.Total,
		PositiveFeedback: counts.Positive,
		NegativeFeedback: counts.Negative,
		NoFeedback:       counts.Total - counts.Positive - counts.Negative,
	}
	if counts.Total > 0 {
		total := float64(counts.Total)
		out.PositivePercentage = float64(counts.Positive) / total * 100
		out.NegativePercentage = float64(counts.Negative) / total * 100
		out.AverageRating = float64(counts.Positive-counts.Negative) / total
		out.FeedbackRate = float64(counts.Positive+counts.Negative) / total * 100
	}
	return out, nil
}

// FeedbackTrends buckets feedback per UTC day over the trailing window,
// oldest day first. Days without messages appear with zero counts. Bucketing
// happens here rather than in SQL so both database drivers behave the same.
func (s *chatService) FeedbackTrends(ctx context.Context, tenantID string, days int) ([]FeedbackTrend, error) {
	if days <= 0 {
		days = 30
	}

	now := time.Now().UTC()
	start := now.Truncate(24 * time.Hour).AddDate(0, 0, -(days - 1))

	rows, err := s.messages.ListSince(dbctx.Context{Ctx: ctx}, tenantID, start)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*FeedbackTrend, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		buckets[date] = &FeedbackTrend{Date: date}
	}

	for _, m := range rows {
		date := m.CreatedAt.UTC().Format("2006-01-02")
		b, ok := buckets[date]
		if !ok {
			continue
		}
		b.Total++
		if m.Feedback != nil {
			switch *m.Feedback {
			case 1:
				b.Positive++
			case -1:
				b.Negative++
			}
		}
	}

	out := make([]FeedbackTrend, 0, days)
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Date < out[b].Date })
	return out, nil
}
