package tenant

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"

	chatrepo "github.com/docquery/docquery-backend/internal/data/repos/chat"
	documentrepo "github.com/docquery/docquery-backend/internal/data/repos/document"
	tenantrepo "github.com/docquery/docquery-backend/internal/data/repos/tenant"
	"github.com/docquery/docquery-backend/internal/domain"
	"github.com/docquery/docquery-backend/internal/pkg/dbctx"
	apperrors "github.com/docquery/docquery-backend/internal/pkg/errors"
	"github.com/docquery/docquery-backend/internal/platform/logger"
)

const (
	DefaultTenantID   = "default"
	DefaultTenantName = "Default Tenant"

	defaultMaxDocuments    = 100
	defaultMaxChatMessages = 10000
	defaultMaxStorageMB    = 1000
)

// Resource names a quota-limited dimension of tenant usage.
type Resource string

const (
	ResourceDocuments    Resource = "documents"
	ResourceChatMessages Resource = "chat_messages"
	ResourceStorage      Resource = "storage"
)

var defaultFeatures = []string{"basic", "chat", "documents"}

// VectorPurger removes a tenant's vectors when the tenant is deleted.
type VectorPurger interface {
	DeleteByTenant(ctx context.Context, tenantID string) int
}

// FileStore is the slice of the upload store the tenant service needs.
type FileStore interface {
	RemoveTenant(tenantID string) error
	TenantUsage(tenantID string) (int64, error)
}

type CreateInput struct {
	Name            string   `json:"name"`
	Domain          string   `json:"domain"`
	APIKey          string   `json:"api_key"`
	MaxDocuments    int      `json:"max_documents"`
	MaxChatMessages int      `json:"max_chat_messages"`
	MaxStorageMB    int      `json:"max_storage_mb"`
	Features        []string `json:"features_enabled"`
}

// UpdateInput carries partial tenant updates; nil fields stay untouched.
type UpdateInput struct {
	Name            *string   `json:"name"`
	Domain          *string   `json:"domain"`
	MaxDocuments    *int      `json:"max_documents"`
	MaxChatMessages *int      `json:"max_chat_messages"`
	MaxStorageMB    *int      `json:"max_storage_mb"`
	Features        *[]string `json:"features_enabled"`
	Active          *bool     `json:"active"`
}

type UsageLimits struct {
	MaxDocuments    int `json:"max_documents"`
	MaxChatMessages int `json:"max_chat_messages"`
	MaxStorageMB    int `json:"max_storage_mb"`
}

type UsageCounters struct {
	Documents    int64   `json:"documents"`
	ChatMessages int64   `json:"chat_messages"`
	ChatSessions int64   `json:"chat_sessions"`
	StorageMB    float64 `json:"storage_mb"`
}

type Usage struct {
	TenantID   string        `json:"tenant_id"`
	TenantName string        `json:"tenant_name"`
	Limits     UsageLimits   `json:"limits"`
	Usage      UsageCounters `json:"usage"`
	Features   []string      `json:"features_enabled"`
}

// Service owns tenant lifecycle and quota enforcement. Every other service
// goes through it to learn which tenant a request belongs to and whether
// that tenant may consume more resources.
type Service struct {
	log       *logger.Logger
	tenants   tenantrepo.Repo
	documents documentrepo.Repo
	sessions  chatrepo.SessionRepo
	messages  chatrepo.MessageRepo
	vectors   VectorPurger
	files     FileStore

	group singleflight.Group
}

func NewService(
	log *logger.Logger,
	tenants tenantrepo.Repo,
	documents documentrepo.Repo,
	sessions chatrepo.SessionRepo,
	messages chatrepo.MessageRepo,
	vectors VectorPurger,
	files FileStore,
) *Service {
	return &Service{
		log:       log.With("service", "TenantService"),
		tenants:   tenants,
		documents: documents,
		sessions:  sessions,
		messages:  messages,
		vectors:   vectors,
		files:     files,
	}
}

func newAPIKey() string {
	u := uuid.New()
	return "sk_" + hex.EncodeToString(u[:])
}

func featuresJSON(features []string) datatypes.JSON {
	if features == nil {
		features = defaultFeatures
	}
	raw, err := json.Marshal(features)
	if err != nil {
		raw = []byte(`["basic"]`)
	}
	return datatypes.JSON(raw)
}

// FeatureList decodes a tenant's feature column; a missing or broken value
// degrades to the minimal feature set.
func FeatureList(t *domain.Tenant) []string {
	if t == nil || len(t.Features) == 0 {
		return []string{"basic"}
	}
	var out []string
	if err := json.Unmarshal(t.Features, &out); err != nil || len(out) == 0 {
		return []string{"basic"}
	}
	return out
}

// domainAvailable verifies no other tenant holds the domain. Empty domains
// never collide.
func (s *Service) domainAvailable(dbc dbctx.Context, domainName, selfID string) error {
	if domainName == "" {
		return nil
	}
	existing, err := s.tenants.GetByDomain(dbc, domainName)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != selfID {
		return fmt.Errorf("tenant domain %q: %w", domainName, apperrors.ErrAlreadyExists)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Tenant, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("tenant name: %w", apperrors.ErrInvalidArgument)
	}
	if err := s.domainAvailable(dbctx.Context{Ctx: ctx}, strings.TrimSpace(in.Domain), ""); err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(in.APIKey)
	if apiKey == "" {
		apiKey = newAPIKey()
	}
	if in.MaxDocuments <= 0 {
		in.MaxDocuments = defaultMaxDocuments
	}
	if in.MaxChatMessages <= 0 {
		in.MaxChatMessages = defaultMaxChatMessages
	}
	if in.MaxStorageMB <= 0 {
		in.MaxStorageMB = defaultMaxStorageMB
	}

	row := &domain.Tenant{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(in.Name),
		Domain:          strings.TrimSpace(in.Domain),
		APIKey:          apiKey,
		Active:          true,
		Features:        featuresJSON(in.Features),
		MaxDocuments:    in.MaxDocuments,
		MaxChatMessages: in.MaxChatMessages,
		MaxStorageMB:    in.MaxStorageMB,
	}
	if err := s.tenants.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	s.log.Info("Tenant created", "tenant_id", row.ID, "name", row.Name)
	return row, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	return s.tenants.GetByID(dbctx.Context{Ctx: ctx}, id)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*domain.Tenant, error) {
	return s.tenants.List(dbctx.Context{Ctx: ctx}, activeOnly)
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*domain.Tenant, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, fmt.Errorf("tenant name: %w", apperrors.ErrInvalidArgument)
		}
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Domain != nil {
		d := strings.TrimSpace(*in.Domain)
		if err := s.domainAvailable(dbctx.Context{Ctx: ctx}, d, id); err != nil {
			return nil, err
		}
		updates["domain"] = d
	}
	if in.MaxDocuments != nil {
		updates["max_documents"] = *in.MaxDocuments
	}
	if in.MaxChatMessages != nil {
		updates["max_chat_messages"] = *in.MaxChatMessages
	}
	if in.MaxStorageMB != nil {
		updates["max_storage_mb"] = *in.MaxStorageMB
	}
	if in.Features != nil {
		updates["features"] = featuresJSON(*in.Features)
	}
	if in.Active != nil {
		updates["active"] = *in.Active
	}

	if len(updates) > 0 {
		if err := s.tenants.UpdateFields(dbctx.Context{Ctx: ctx}, id, updates); err != nil {
			return nil, err
		}
	}
	return s.tenants.GetByID(dbctx.Context{Ctx: ctx}, id)
}

// Delete removes the tenant and all of its data: rows, vectors and uploaded
// files. Vector and file cleanup run best-effort after the rows are gone.
func (s *Service) Delete(ctx context.Context, id string) error {
	dbc := dbctx.Context{Ctx: ctx}

	if _, err := s.tenants.GetByID(dbc, id); err != nil {
		return err
	}

	if err := s.messages.DeleteByTenant(dbc, id); err != nil {
		return fmt.Errorf("delete tenant messages: %w", err)
	}
	if err := s.sessions.DeleteByTenant(dbc, id); err != nil {
		return fmt.Errorf("delete tenant sessions: %w", err)
	}
	if err := s.documents.DeleteByTenant(dbc, id); err != nil {
		return fmt.Errorf("delete tenant documents: %w", err)
	}
	if err := s.tenants.Delete(dbc, id); err != nil {
		return err
	}

	if s.vectors != nil {
		s.vectors.DeleteByTenant(ctx, id)
	}
	if s.files != nil {
		if err := s.files.RemoveTenant(id); err != nil {
			s.log.Warn("Tenant upload cleanup failed", "tenant_id", id, "error", err)
		}
	}

	s.log.Info("Tenant deleted", "tenant_id", id)
	return nil
}

func (s *Service) RegenerateAPIKey(ctx context.Context, id string) (string, error) {
	key := newAPIKey()
	if err := s.tenants.UpdateFields(dbctx.Context{Ctx: ctx}, id, map[string]interface{}{"api_key": key}); err != nil {
		return "", err
	}
	s.log.Info("Tenant API key regenerated", "tenant_id", id)
	return key, nil
}

// Usage reports current consumption against the tenant's limits. Storage is
// measured from the files actually on disk.
func (s *Service) Usage(ctx context.Context, id string) (Usage, error) {
	dbc := dbctx.Context{Ctx: ctx}

	t, err := s.tenants.GetByID(dbc, id)
	if err != nil {
		return Usage{}, err
	}

	docs, err := s.documents.CountByTenant(dbc, id)
	if err != nil {
		return Usage{}, err
	}
	msgs, err := s.messages.CountByTenant(dbc, id)
	if err != nil {
		return Usage{}, err
	}
	sessions, err := s.sessions.CountByTenant(dbc, id)
	if err != nil {
		return Usage{}, err
	}

	var storageMB float64
	if s.files != nil {
		bytes, err := s.files.TenantUsage(id)
		if err != nil {
			return Usage{}, fmt.Errorf("storage usage: %w", err)
		}
		storageMB = float64(bytes) / (1024 * 1024)
	}

	return Usage{
		TenantID:   t.ID,
		TenantName: t.Name,
		Limits: UsageLimits{
			MaxDocuments:    t.MaxDocuments,
			MaxChatMessages: t.MaxChatMessages,
			MaxStorageMB:    t.MaxStorageMB,
		},
		Usage: UsageCounters{
			Documents:    docs,
			ChatMessages: msgs,
			ChatSessions: sessions,
			StorageMB:    storageMB,
		},
		Features: FeatureList(t),
	}, nil
}

// CheckQuota verifies the tenant can absorb the requested amount of a
// resource. Admission requires current + requested <= limit; violations
// return ErrQuotaExceeded.
func (s *Service) CheckQuota(ctx context.Context, id string, resource Resource, amount float64) error {
	usage, err := s.Usage(ctx, id)
	if err != nil {
		return err
	}

	var current, limit float64
	switch resource {
	case ResourceDocuments:
		current, limit = float64(usage.Usage.Documents), float64(usage.Limits.MaxDocuments)
	case ResourceChatMessages:
		current, limit = float64(usage.Usage.ChatMessages), float64(usage.Limits.MaxChatMessages)
	case ResourceStorage:
		current, limit = usage.Usage.StorageMB, float64(usage.Limits.MaxStorageMB)
	default:
		return nil
	}

	if current+amount > limit {
		return fmt.Errorf("tenant %s %s quota: %.0f of %.0f used: %w",
			id, resource, current, limit, apperrors.ErrQuotaExceeded)
	}
	return nil
}

// EnsureDefault returns the shared default tenant, creating it on first use.
// Concurrent callers collapse into one creation attempt.
func (s *Service) EnsureDefault(ctx context.Context) (*domain.Tenant, error) {
	out, err, _ := s.group.Do("default-tenant", func() (interface{}, error) {
		dbc := dbctx.Context{Ctx: ctx}

		t, err := s.tenants.GetByID(dbc, DefaultTenantID)
		if err == nil {
			return t, nil
		}

		row := &domain.Tenant{
			ID:              DefaultTenantID,
			Name:            DefaultTenantName,
			APIKey:          newAPIKey(),
			Active:          true,
			Features:        featuresJSON(defaultFeatures),
			MaxDocuments:    defaultMaxDocuments,
			MaxChatMessages: defaultMaxChatMessages,
			MaxStorageMB:    defaultMaxStorageMB,
		}
		if createErr := s.tenants.Create(dbc, row); createErr != nil {
			// Lost a race against another instance; re-read.
			if t, err := s.tenants.GetByID(dbc, DefaultTenantID); err == nil {
				return t, nil
			}
			return nil, createErr
		}
		s.log.Info("Default tenant created", "tenant_id", row.ID)
		return row, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*domain.Tenant), nil
}
