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

type SessionWithCount struct {
	Session      *domain.ChatSession
	MessageCount int64
}

type SessionRepo interface {
	Create(dbc dbctx.Context, row *domain.ChatSession) error
	GetByID(dbc dbctx.Context, tenantID string, id uuid.UUID) (*domain.ChatSession, error)
	List(dbc dbctx.Context, tenantID string, limit int) ([]SessionWithCount, error)
	Touch(dbc dbctx.Context, tenantID string, id uuid.UUID) error
	CountByTenant(dbc dbctx.Context, tenantID string) (int64, error)
	DeleteByTenant(dbc dbctx.Context, tenantID string) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, log *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: log.With("repo", "ChatSessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, row *domain.ChatSession) error {
	if row == nil {
		return fmt.Errorf("missing session row")
	}
	if strings.TrimSpace(row.TenantID) == "" {
		return fmt.Errorf("missing tenant_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).Create(row).Error
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, tenantID string, id uuid.UUID) (*domain.ChatSession, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("missing tenant_id")
	}
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing session id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out domain.ChatSession
	if err := txx.WithContext(dbc.Ctx).
		First(&out, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("chat session %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepo) List(dbc dbctx.Context, tenantID string, limit int) ([]SessionWithCount, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("missing tenant_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}

	var sessions []*domain.ChatSession
	if err := txx.WithContext(dbc.Ctx).
		Where("tenant_id = ?", tenantID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, err
	}

	out := make([]SessionWithCount, 0, len(sessions))
	for _, s := range sessions {
		var count int64
		if err := txx.WithContext(dbc.Ctx).
			Model(&domain.ChatMessage{}).
			Where("session_id = ? AND tenant_id = ?", s.ID, tenantID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		out = append(out, SessionWithCount{Session: s, MessageCount: count})
	}
	return out, nil
}

func (r *sessionRepo) Touch(dbc dbctx.Context, tenantID string, id uuid.UUID) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("missing tenant_id")
	}
	if id == uuid.Nil {
		return fmt.Errorf("missing session id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&domain.ChatSession{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Update("updated_at", time.Now().UTC()).Error
}

func (r *sessionRepo) CountByTenant(dbc dbctx.Context, tenantID string) (int64, error) {
	if strings.TrimSpace(tenantID) == "" {
		return 0, fmt.Errorf("missing tenant_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&domain.ChatSession{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *sessionRepo) DeleteByTenant(dbc dbctx.Context, tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("missing tenant_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Delete(&domain.ChatSession{}, "tenant_id = ?", tenantID).Error
}
