package tenant

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/docquery/docquery-backend/internal/domain"
	"github.com/docquery/docquery-backend/internal/pkg/dbctx"
	apperrors "github.com/docquery/docquery-backend/internal/pkg/errors"
	"github.com/docquery/docquery-backend/internal/platform/logger"
)

type Repo interface {
	Create(dbc dbctx.Context, row *domain.Tenant) error
	GetByID(dbc dbctx.Context, id string) (*domain.Tenant, error)
	GetByAPIKey(dbc dbctx.Context, apiKey string) (*domain.Tenant, error)
	GetByDomain(dbc dbctx.Context, domainName string) (*domain.Tenant, error)
	List(dbc dbctx.Context, activeOnly bool) ([]*domain.Tenant, error)
	UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id string) error
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, log *logger.Logger) Repo {
	return &repo{db: db, log: log.With("repo", "TenantRepo")}
}

func (r *repo) Create(dbc dbctx.Context, row *domain.Tenant) error {
	if row == nil {
		return fmt.Errorf("missing tenant row")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).Create(row).Error
}

func (r *repo) GetByID(dbc dbctx.Context, id string) (*domain.Tenant, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("missing tenant id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out domain.Tenant
	if err := txx.WithContext(dbc.Ctx).First(&out, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tenant %q: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &out, nil
}

func (r *repo) GetByAPIKey(dbc dbctx.Context, apiKey string) (*domain.Tenant, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("missing api key")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out domain.Tenant
	if err := txx.WithContext(dbc.Ctx).First(&out, "api_key = ?", apiKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *repo) GetByDomain(dbc dbctx.Context, domainName string) (*domain.Tenant, error) {
	if strings.TrimSpace(domainName) == "" {
		return nil, fmt.Errorf("missing domain")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out domain.Tenant
	if err := txx.WithContext(dbc.Ctx).First(&out, "domain = ?", domainName).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tenant domain %q: %w", domainName, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &out, nil
}

func (r *repo) List(dbc dbctx.Context, activeOnly bool) ([]*domain.Tenant, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).Model(&domain.Tenant{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var out []*domain.Tenant
	if err := q.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("missing tenant id")
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
		Model(&domain.Tenant{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("tenant %q: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *repo) Delete(dbc dbctx.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("missing tenant id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).Delete(&domain.Tenant{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("tenant %q: %w", id, apperrors.ErrNotFound)
	}
	return nil
}
