package document

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

// Repo is tenant-scoped: every read and write is keyed by tenant id so one
// tenant can never observe another tenant's rows.
type Repo interface {
	Create(dbc dbctx.Context, row *domain.Document) error
	GetByID(dbc dbctx.Context, tenantID string, id uuid.UUID) (*domain.Document, error)
	List(dbc dbctx.Context, tenantID string) ([]*domain.Document, error)
	UpdateFields(dbc dbctx.Context, tenantID string, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, tenantID string, id uuid.UUID) error
	DeleteByTenant(dbc dbctx.Context, tenantID string) error
	CountByTenant(dbc dbctx.Context, tenantID string) (int64, error)
	SumFileSize(dbc dbctx.Context, tenantID string) (int64, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, log *logger.Logger) Repo {
	return &repo{db: db, log: log.With("repo", "DocumentRepo")}
}

func (r *repo) Create(dbc dbctx.Context, row *domain.Document) error {
	if row == nil {
		return fmt.Errorf("missing document row")
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

func (r *repo) GetByID(dbc dbctx.Context, tenantID string, id uuid.UUID) (*domain.Document, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("missing tenant_id")
	}
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing document id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out domain.Document
	if err := txx.WithContext(dbc.Ctx).
		First(&out, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("document %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &out, nil
}

func (r *repo) List(dbc dbctx.Context, tenantID string) ([]*domain.Document, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("missing tenant_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*domain.Document
	if err := txx.WithContext(dbc.Ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) UpdateFields(dbc dbctx.Context, tenantID string, id uuid.UUID, updates map[string]interface{}) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("missing tenant_id")
	}
	if id == uuid.Nil {
		return fmt.Errorf("missing document id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Model(&domain.Document{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("document %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *repo) Delete(dbc dbctx.Context, tenantID string, id uuid.UUID) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("missing tenant_id")
	}
	if id == uuid.Nil {
		return fmt.Errorf("missing document id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Delete(&domain.Document{}, "id = ? AND tenant_id = ?", id, tenantID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("document %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *repo) DeleteByTenant(dbc dbctx.Context, tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("missing tenant_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Delete(&domain.Document{}, "tenant_id = ?", tenantID).Error
}

func (r *repo) CountByTenant(dbc dbctx.Context, tenantID string) (int64, error) {
	if strings.TrimSpace(tenantID) == "" {
		return 0, fmt.Errorf("missing tenant_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&domain.Document{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) SumFileSize(dbc dbctx.Context, tenantID string) (int64, error) {
	if strings.TrimSpace(tenantID) == "" {
		return 0, fmt.Errorf("missing tenant_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var total int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&domain.Document{}).
		Select("COALESCE(SUM(file_size), 0)").
		Where("tenant_id = ?", tenantID).
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
