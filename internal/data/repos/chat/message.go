package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/docquery/docquery-backend/internal/domain"
	"github.com/docquery/docquery-backend/internal/pkg/dbctx"
	apperrors "github.com/docquery/docquery-backend/internal/pkg/errors"
	"github.com/docquery/docquery-backend/internal/platform/logger"
)

// FeedbackCounts aggregates per-tenant feedback; ratios are computed by the
// chat service.
type FeedbackCounts struct {
	Total    int64
	Positive int64
	Negative int64
}

type MessageRepo interface {
	Create(dbc dbctx.Context, row *domain.ChatMessage) error
	GetByID(dbc dbctx.Context, tenantID string, id uuid.UUID) (*domain.ChatMessage, error)
	ListBySession(dbc dbctx.Context, tenantID string, sessionID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
	SetFeedback(dbc dbctx.Context, tenantID string, id uuid.UUID, rating int) error
	CountByTenant(dbc dbctx.Context, tenantID string) (int64, error)
	FeedbackCounts(dbc dbctx.Context, tenantID string) (FeedbackCounts, error)
	ListSince(dbc dbctx.Context, tenantID string, since time.Time) ([]*domain.ChatMessage, error)
	DeleteByTenant(dbc dbctx.Context, tenantID string) error
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "ChatMessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, row *domain.ChatMessage) error {
	if row == nil {
		return fmt.Errorf("missing message row")
	}
	if strings.TrimSpace(row.TenantID) == "" {
		return fmt.Errorf("missing tenant_id")
	}
	if row.SessionID == uuid.Nil {
		return fmt.Errorf("missing session_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).Create(row).Error
}

func (r *messageRepo) GetByID(dbc dbctx.Context, tenantID string, id uuid.UUID) (*domain.ChatMessage, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("missing tenant_id")
	}
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing message id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out domain.ChatMessage
	if err := txx.WithContext(dbc.Ctx).
		First(&out, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("chat message %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &out, nil
}

func (r *messageRepo) ListBySession(dbc dbctx.Context, tenantID string, sessionID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("missing tenant_id")
	}
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("missing session_id")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*domain.ChatMessage
	if err := txx.WithContext(dbc.Ctx).
		Where("session_id = ? AND tenant_id = ?", sessionID, tenantID).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SetFeedback only accepts +1 or -1. A cross-tenant message id behaves the
// same as a missing one.
func (r *messageRepo) SetFeedback(dbc dbctx.Context, tenantID string, id uuid.UUID, rating int) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("missing tenant_id")
	}
	if id == uuid.Nil {
		return fmt.Errorf("missing message id")
	}
	if rating != 1 && rating != -1 {
		return fmt.Errorf("rating must be +1 or -1: %w", apperrors.ErrInvalidArgument)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Model(&domain.ChatMessage{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(map[string]interface{}{
			"feedback":   rating,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("chat message %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *messageRepo) CountByTenant(dbc dbctx.Context, tenantID string) (int64, error) {
	if strings.TrimSpace(tenantID) == "" {
		return 0, fmt.Errorf("missing tenant_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&domain.ChatMessage{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *messageRepo) FeedbackCounts(dbc dbctx.Context, tenantID string) (FeedbackCounts, error) {
	var out FeedbackCounts
	if strings.TrimSpace(tenantID) == "" {
		return out, fmt.Errorf("missing tenant_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	base := txx.WithContext(dbc.Ctx).Model(&domain.ChatMessage{}).Where("tenant_id = ?", tenantID)
	if err := base.Session(&gorm.Session{}).Count(&out.Total).Error; err != nil {
		return out, err
	}
	if err := base.Session(&gorm.Session{}).Where("feedback = ?", 1).Count(&out.Positive).Error; err != nil {
		return out, err
	}
	if err := base.Session(&gorm.Session{}).Where("feedback = ?", -1).Count(&out.Negative).Error; err != nil {
		return out, err
	}
	return out, nil
}

// ListSince returns messages created at or after the cutoff; trend bucketing
// happens in the chat service so the query stays portable across drivers.
func (r *messageRepo) ListSince(dbc dbctx.Context, tenantID string, since time.Time) ([]*domain.ChatMessage, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("missing tenant_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*domain.ChatMessage
	if err := txx.WithContext(dbc.Ctx).
		Where("tenant_id = ? AND created_at >= ?", tenantID, since).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) DeleteByTenant(dbc dbctx.Context, tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("missing tenant_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Delete(&domain.ChatMessage{}, "tenant_id = ?", tenantID).Error
}
