package tenant

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	chatrepo "github.com/docquery/docquery-backend/internal/data/repos/chat"
	"github.com/docquery/docquery-backend/internal/domain"
	"github.com/docquery/docquery-backend/internal/pkg/dbctx"
	apperrors "github.com/docquery/docquery-backend/internal/pkg/errors"
	"github.com/docquery/docquery-backend/internal/platform/logger"
)

type fakeTenantRepo struct {
	rows map[string]*domain.Tenant

	createErr error
	deleted   []string
}

func newFakeTenantRepo() *fakeTenantRepo {
	return &fakeTenantRepo{rows: make(map[string]*domain.Tenant)}
}

func (f *fakeTenantRepo) Create(dbc dbctx.Context, row *domain.Tenant) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.rows[row.ID]; ok {
		return fmt.Errorf("duplicate tenant %s", row.ID)
	}
	cp := *row
	f.rows[row.ID] = &cp
	return nil
}

func (f *fakeTenantRepo) GetByID(dbc dbctx.Context, id string) (*domain.Tenant, error) {
	if t, ok := f.rows[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, fmt.Errorf("tenant %q: %w", id, apperrors.ErrNotFound)
}

func (f *fakeTenantRepo) GetByAPIKey(dbc dbctx.Context, apiKey string) (*domain.Tenant, error) {
	for _, t := range f.rows {
		if t.APIKey == apiKey {
			cp := *t
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeTenantRepo) GetByDomain(dbc dbctx.Context, domainName string) (*domain.Tenant, error) {
	for _, t := range f.rows {
		if t.Domain != "" && t.Domain == domainName {
			cp := *t
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("tenant domain %q: %w", domainName, apperrors.ErrNotFound)
}

func (f *fakeTenantRepo) List(dbc dbctx.Context, activeOnly bool) ([]*domain.Tenant, error) {
	var out []*domain.Tenant
	for _, t := range f.rows {
		if activeOnly && !t.Active {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeTenantRepo) UpdateFields(dbc dbctx.Context, id string, updates map[string]interface{}) error {
	t, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("tenant %q: %w", id, apperrors.ErrNotFound)
	}
	for k, v := range updates {
		switch k {
		case "name":
			t.Name = v.(string)
		case "domain":
			t.Domain = v.(string)
		case "api_key":
			t.APIKey = v.(string)
		case "active":
			t.Active = v.(bool)
		case "max_documents":
			t.MaxDocuments = v.(int)
		case "max_chat_messages":
			t.MaxChatMessages = v.(int)
		case "max_storage_mb":
			t.MaxStorageMB = v.(int)
		case "features":
			t.Features = v.(datatypes.JSON)
		}
	}
	return nil
}

func (f *fakeTenantRepo) Delete(dbc dbctx.Context, id string) error {
	if _, ok := f.rows[id]; !ok {
		return fmt.Errorf("tenant %q: %w", id, apperrors.ErrNotFound)
	}
	delete(f.rows, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeDocRepo struct {
	count         int64
	tenantDeletes []string
}

func (f *fakeDocRepo) Create(dbc dbctx.Context, row *domain.Document) error { return nil }
func (f *fakeDocRepo) GetByID(dbc dbctx.Context, tenantID string, id uuid.UUID) (*domain.Document, error) {
	return nil, apperrors.ErrNotFound
}
func (f *fakeDocRepo) List(dbc dbctx.Context, tenantID string) ([]*domain.Document, error) {
	return nil, nil
}
func (f *fakeDocRepo) UpdateFields(dbc dbctx.Context, tenantID string, id uuid.UUID, updates map[string]interface{}) error {
	return nil
}
func (f *fakeDocRepo) Delete(dbc dbctx.Context, tenantID string, id uuid.UUID) error { return nil }
func (f *fakeDocRepo) DeleteByTenant(dbc dbctx.Context, tenantID string) error {
	f.tenantDeletes = append(f.tenantDeletes, tenantID)
	return nil
}
func (f *fakeDocRepo) CountByTenant(dbc dbctx.Context, tenantID string) (int64, error) {
	return f.count, nil
}
func (f *fakeDocRepo) SumFileSize(dbc dbctx.Context, tenantID string) (int64, error) { return 0, nil }

type fakeSessionRepo struct {
	count         int64
	tenantDeletes []string
}

func (f *fakeSessionRepo) Create(dbc dbctx.Context, row *domain.ChatSession) error { return nil }
func (f *fakeSessionRepo) GetByID(dbc dbctx.Context, tenantID string, id uuid.UUID) (*domain.ChatSession, error) {
	return nil, apperrors.ErrNotFound
}
func (f *fakeSessionRepo) List(dbc dbctx.Context, tenantID string, limit int) ([]chatrepo.SessionWithCount, error) {
	return nil, nil
}
func (f *fakeSessionRepo) Touch(dbc dbctx.Context, tenantID string, id uuid.UUID) error { return nil }
func (f *fakeSessionRepo) CountByTenant(dbc dbctx.Context, tenantID string) (int64, error) {
	return f.count, nil
}
func (f *fakeSessionRepo) DeleteByTenant(dbc dbctx.Context, tenantID string) error {
	f.tenantDeletes = append(f.tenantDeletes, tenantID)
	return nil
}

type fakeMessageRepo struct {
	count         int64
	tenantDeletes []string
}

func (f *fakeMessageRepo) Create(dbc dbctx.Context, row *domain.ChatMessage) error { return nil }
func (f *fakeMessageRepo) GetByID(dbc dbctx.Context, tenantID string, id uuid.UUID) (*domain.ChatMessage, error) {
	return nil, apperrors.ErrNotFound
}
func (f *fakeMessageRepo) ListBySession(dbc dbctx.Context, tenantID string, sessionID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	return nil, nil
}
func (f *fakeMessageRepo) SetFeedback(dbc dbctx.Context, tenantID string, id uuid.UUID, rating int) error {
	return nil
}
func (f *fakeMessageRepo) CountByTenant(dbc dbctx.Context, tenantID string) (int64, error) {
	return f.count, nil
}
func (f *fakeMessageRepo) FeedbackCounts(dbc dbctx.Context, tenantID string) (chatrepo.FeedbackCounts, error) {
	return chatrepo.FeedbackCounts{}, nil
}
func (f *fakeMessageRepo) ListSince(dbc dbctx.Context, tenantID string, since time.Time) ([]*domain.ChatMessage, error) {
	return nil, nil
}
func (f *fakeMessageRepo) DeleteByTenant(dbc dbctx.Context, tenantID string) error {
	f.tenantDeletes = append(f.tenantDeletes, tenantID)
	return nil
}

type fakeVectors struct {
	purged []string
}

func (f *fakeVectors) DeleteByTenant(ctx context.Context, tenantID string) int {
	f.purged = append(f.purged, tenantID)
	return 0
}

type fakeFiles struct {
	usageBytes int64
	removed    []string
}

func (f *fakeFiles) RemoveTenant(tenantID string) error {
	f.removed = append(f.removed, tenantID)
	return nil
}

func (f *fakeFiles) TenantUsage(tenantID string) (int64, error) {
	return f.usageBytes, nil
}

type testEnv struct {
	svc      *Service
	tenants  *fakeTenantRepo
	docs     *fakeDocRepo
	sessions *fakeSessionRepo
	messages *fakeMessageRepo
	vectors  *fakeVectors
	files    *fakeFiles
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	env := &testEnv{
		tenants:  newFakeTenantRepo(),
		docs:     &fakeDocRepo{},
		sessions: &fakeSessionRepo{},
		messages: &fakeMessageRepo{},
		vectors:  &fakeVectors{},
		files:    &fakeFiles{},
	}
	env.svc = NewService(log, env.tenants, env.docs, env.sessions, env.messages, env.vectors, env.files)
	return env
}

func seedTenant(t *testing.T, env *testEnv, row *domain.Tenant) *domain.Tenant {
	t.Helper()
	if err := env.tenants.Create(dbctx.Context{}, row); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return row
}

func TestNewAPIKeyFormat(t *testing.T) {
	key := newAPIKey()
	if !strings.HasPrefix(key, "sk_") {
		t.Fatalf("api key prefix: got=%q", key)
	}
	raw := strings.TrimPrefix(key, "sk_")
	if len(raw) != 32 {
		t.Fatalf("api key hex length: want=32 got=%d", len(raw))
	}
	if _, err := hex.DecodeString(raw); err != nil {
		t.Fatalf("api key not hex: %v", err)
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	env := newTestEnv(t)

	got, err := env.svc.Create(context.Background(), CreateInput{Name: "  Acme  "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.Name != "Acme" {
		t.Fatalf("name: want=Acme got=%q", got.Name)
	}
	if !got.Active {
		t.Fatalf("new tenant not active")
	}
	if got.MaxDocuments != defaultMaxDocuments {
		t.Fatalf("max documents: want=%d got=%d", defaultMaxDocuments, got.MaxDocuments)
	}
	if got.MaxChatMessages != defaultMaxChatMessages {
		t.Fatalf("max chat messages: want=%d got=%d", defaultMaxChatMessages, got.MaxChatMessages)
	}
	if got.MaxStorageMB != defaultMaxStorageMB {
		t.Fatalf("max storage: want=%d got=%d", defaultMaxStorageMB, got.MaxStorageMB)
	}
	if !strings.HasPrefix(got.APIKey, "sk_") {
		t.Fatalf("api key not generated: %q", got.APIKey)
	}
	features := FeatureList(got)
	if len(features) != 3 {
		t.Fatalf("default features: want=3 got=%v", features)
	}
}

func TestCreateRequiresName(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Create(context.Background(), CreateInput{Name: "   "}); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("blank name: want=ErrInvalidArgument got=%v", err)
	}
}

func TestCreateRejectsDuplicateDomain(t *testing.T) {
	env := newTestEnv(t)
	seedTenant(t, env, &domain.Tenant{ID: "t1", Name: "Acme", Domain: "acme", APIKey: "sk_a", Active: true})

	if _, err := env.svc.Create(context.Background(), CreateInput{Name: "Other", Domain: "acme"}); !errors.Is(err, apperrors.ErrAlreadyExists) {
		t.Fatalf("duplicate domain: want=ErrAlreadyExists got=%v", err)
	}
	if _, err := env.svc.Create(context.Background(), CreateInput{Name: "Other", Domain: "other"}); err != nil {
		t.Fatalf("distinct domain rejected: %v", err)
	}
}

func TestCreateAllowsMultipleEmptyDomains(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Create(context.Background(), CreateInput{Name: "First"}); err != nil {
		t.Fatalf("first tenant: %v", err)
	}
	if _, err := env.svc.Create(context.Background(), CreateInput{Name: "Second"}); err != nil {
		t.Fatalf("second empty-domain tenant: %v", err)
	}
}

func TestUpdateRejectsTakenDomain(t *testing.T) {
	env := newTestEnv(t)
	seedTenant(t, env, &domain.Tenant{ID: "t1", Name: "Acme", Domain: "acme", APIKey: "sk_a", Active: true})
	seedTenant(t, env, &domain.Tenant{ID: "t2", Name: "Beta", Domain: "beta", APIKey: "sk_b", Active: true})

	taken := "acme"
	if _, err := env.svc.Update(context.Background(), "t2", UpdateInput{Domain: &taken}); !errors.Is(err, apperrors.ErrAlreadyExists) {
		t.Fatalf("domain takeover: want=ErrAlreadyExists got=%v", err)
	}

	// Re-submitting a tenant's own domain is not a conflict.
	own := "beta"
	got, err := env.svc.Update(context.Background(), "t2", UpdateInput{Domain: &own})
	if err != nil {
		t.Fatalf("own domain update: %v", err)
	}
	if got.Domain != "beta" {
		t.Fatalf("domain after update: want=beta got=%q", got.Domain)
	}
}

func TestFeatureListDegradesToBasic(t *testing.T) {
	if got := FeatureList(nil); len(got) != 1 || got[0] != "basic" {
		t.Fatalf("nil tenant features: got=%v", got)
	}
	broken := &domain.Tenant{Features: datatypes.JSON([]byte("{not json"))}
	if got := FeatureList(broken); len(got) != 1 || got[0] != "basic" {
		t.Fatalf("broken features column: got=%v", got)
	}
}

func TestCheckQuotaBoundary(t *testing.T) {
	env := newTestEnv(t)
	seedTenant(t, env, &domain.Tenant{ID: "t1", Name: "T1", APIKey: "sk_x", Active: true, MaxDocuments: 10, MaxChatMessages: 100, MaxStorageMB: 1})
	env.docs.count = 9

	// 9 + 1 == 10 is still admitted; the limit is inclusive.
	if err := env.svc.CheckQuota(context.Background(), "t1", ResourceDocuments, 1); err != nil {
		t.Fatalf("at-limit request rejected: %v", err)
	}

	env.docs.count = 10
	err := env.svc.CheckQuota(context.Background(), "t1", ResourceDocuments, 1)
	if !errors.Is(err, apperrors.ErrQuotaExceeded) {
		t.Fatalf("over-limit request: want=ErrQuotaExceeded got=%v", err)
	}
}

func TestCheckQuotaStorageUsesDiskBytes(t *testing.T) {
	env := newTestEnv(t)
	seedTenant(t, env, &domain.Tenant{ID: "t1", Name: "T1", APIKey: "sk_x", Active: true, MaxDocuments: 10, MaxChatMessages: 100, MaxStorageMB: 1})

	env.files.usageBytes = 512 * 1024
	if err := env.svc.CheckQuota(context.Background(), "t1", ResourceStorage, 0.25); err != nil {
		t.Fatalf("storage within limit rejected: %v", err)
	}

	env.files.usageBytes = 2 * 1024 * 1024
	if err := env.svc.CheckQuota(context.Background(), "t1", ResourceStorage, 0); !errors.Is(err, apperrors.ErrQuotaExceeded) {
		t.Fatalf("storage over limit: want=ErrQuotaExceeded got=%v", err)
	}
}

func TestUsageReportsCountersAndLimits(t *testing.T) {
	env := newTestEnv(t)
	seedTenant(t, env, &domain.Tenant{ID: "t1", Name: "T1", APIKey: "sk_x", Active: true, MaxDocuments: 10, MaxChatMessages: 100, MaxStorageMB: 50})
	env.docs.count = 3
	env.messages.count = 7
	env.sessions.count = 2
	env.files.usageBytes = 3 * 1024 * 1024

	got, err := env.svc.Usage(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if got.Usage.Documents != 3 || got.Usage.ChatMessages != 7 || got.Usage.ChatSessions != 2 {
		t.Fatalf("counters: got=%+v", got.Usage)
	}
	if got.Usage.StorageMB != 3 {
		t.Fatalf("storage MB: want=3 got=%f", got.Usage.StorageMB)
	}
	if got.Limits.MaxDocuments != 10 {
		t.Fatalf("limits: got=%+v", got.Limits)
	}
}

func TestDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	seedTenant(t, env, &domain.Tenant{ID: "t1", Name: "T1", APIKey: "sk_x", Active: true})

	if err := env.svc.Delete(context.Background(), "t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(env.messages.tenantDeletes) != 1 || env.messages.tenantDeletes[0] != "t1" {
		t.Fatalf("messages not deleted: %v", env.messages.tenantDeletes)
	}
	if len(env.sessions.tenantDeletes) != 1 {
		t.Fatalf("sessions not deleted")
	}
	if len(env.docs.tenantDeletes) != 1 {
		t.Fatalf("documents not deleted")
	}
	if len(env.vectors.purged) != 1 || env.vectors.purged[0] != "t1" {
		t.Fatalf("vectors not purged: %v", env.vectors.purged)
	}
	if len(env.files.removed) != 1 || env.files.removed[0] != "t1" {
		t.Fatalf("files not removed: %v", env.files.removed)
	}
	if _, err := env.svc.Get(context.Background(), "t1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("tenant row still readable: %v", err)
	}
}

func TestDeleteMissingTenant(t *testing.T) {
	env := newTestEnv(t)
	if err := env.svc.Delete(context.Background(), "nope"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing tenant delete: want=ErrNotFound got=%v", err)
	}
	if len(env.messages.tenantDeletes) != 0 {
		t.Fatalf("cascade ran for missing tenant")
	}
}

func TestRegenerateAPIKeyReplacesKey(t *testing.T) {
	env := newTestEnv(t)
	seedTenant(t, env, &domain.Tenant{ID: "t1", Name: "T1", APIKey: "sk_old", Active: true})

	key, err := env.svc.RegenerateAPIKey(context.Background(), "t1")
	if err != nil {
		t.Fatalf("RegenerateAPIKey: %v", err)
	}
	if key == "sk_old" {
		t.Fatalf("api key unchanged")
	}
	got, err := env.svc.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.APIKey != key {
		t.Fatalf("stored key: want=%q got=%q", key, got.APIKey)
	}
}

func TestEnsureDefaultCreatesOnce(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.svc.EnsureDefault(context.Background())
	if err != nil {
		t.Fatalf("EnsureDefault: %v", err)
	}
	if first.ID != DefaultTenantID {
		t.Fatalf("default id: want=%s got=%s", DefaultTenantID, first.ID)
	}
	if first.Name != DefaultTenantName {
		t.Fatalf("default name: want=%q got=%q", DefaultTenantName, first.Name)
	}
	if first.MaxDocuments != defaultMaxDocuments {
		t.Fatalf("default quota: want=%d got=%d", defaultMaxDocuments, first.MaxDocuments)
	}

	second, err := env.svc.EnsureDefault(context.Background())
	if err != nil {
		t.Fatalf("second EnsureDefault: %v", err)
	}
	if second.APIKey != first.APIKey {
		t.Fatalf("default tenant recreated with a new key")
	}
	if len(env.tenants.rows) != 1 {
		t.Fatalf("tenant count: want=1 got=%d", len(env.tenants.rows))
	}
}

func TestEnsureDefaultSurvivesCreateRace(t *testing.T) {
	env := newTestEnv(t)
	seedTenant(t, env, &domain.Tenant{ID: DefaultTenantID, Name: DefaultTenantName, APIKey: "sk_seed", Active: true})
	env.tenants.createErr = fmt.Errorf("unique constraint violation")

	got, err := env.svc.EnsureDefault(context.Background())
	if err != nil {
		t.Fatalf("EnsureDefault after race: %v", err)
	}
	if got.APIKey != "sk_seed" {
		t.Fatalf("race re-read returned wrong row: %+v", got)
	}
}
