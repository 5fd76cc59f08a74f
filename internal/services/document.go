package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	documentrepo "github.com/docquery/docquery-backend/internal/data/repos/document"
	"github.com/docquery/docquery-backend/internal/domain"
	"github.com/docquery/docquery-backend/internal/ingestion/chunker"
	"github.com/docquery/docquery-backend/internal/ingestion/extractor"
	"github.com/docquery/docquery-backend/internal/pkg/dbctx"
	apperrors "github.com/docquery/docquery-backend/internal/pkg/errors"
	"github.com/docquery/docquery-backend/internal/platform/logger"
	"github.com/docquery/docquery-backend/internal/storage"
	"github.com/docquery/docquery-backend/internal/tenant"
	"github.com/docquery/docquery-backend/internal/vectorindex"
)

// Indexer is the slice of the vector index the document service needs.
type Indexer interface {
	IndexDocument(ctx context.Context, documentID string, chunks []chunker.Chunk, meta vectorindex.DocumentMeta) bool
	GetChunks(ctx context.Context, documentID string) []vectorindex.ChunkRecord
	DeleteDocument(ctx context.Context, documentID string) bool
}

// QuotaChecker admits or rejects resource consumption for a tenant.
type QuotaChecker interface {
	CheckQuota(ctx context.Context, tenantID string, resource tenant.Resource, amount float64) error
}

type ProcessResult struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	ChunkCount int    `json:"chunk_count"`
	Indexed    bool   `json:"indexed"`
}

type DocumentService interface {
	Upload(ctx context.Context, tenantID, filename string, content io.Reader) (*domain.Document, error)
	Process(ctx context.Context, tenantID string, id uuid.UUID) (ProcessResult, error)
	List(ctx context.Context, tenantID string) ([]*domain.Document, int64, error)
	Get(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Document, error)
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
	Chunks(ctx context.Context, tenantID string, id uuid.UUID) ([]vectorindex.ChunkRecord, error)
}

type documentService struct {
	log     *logger.Logger
	docs    documentrepo.Repo
	files   *storage.Store
	chunker *chunker.Chunker
	index   Indexer
	quotas  QuotaChecker
}

func NewDocumentService(
	log *logger.Logger,
	docs documentrepo.Repo,
	files *storage.Store,
	chk *chunker.Chunker,
	index Indexer,
	quotas QuotaChecker,
) DocumentService {
	return &documentService{
		log:     log.With("service", "DocumentService"),
		docs:    docs,
		files:   files,
		chunker: chk,
		index:   index,
		quotas:  quotas,
	}
}

// Upload validates the file type, enforces document and storage quotas, and
// stores the file plus its database row. The document starts unprocessed.
func (s *documentService) Upload(ctx context.Context, tenantID, filename string, content io.Reader) (*domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !extractor.IsSupportedUploadType(ext) {
		return nil, fmt.Errorf("file type %q not supported, allowed types: %s: %w",
			ext, strings.Join(extractor.SupportedUploadTypes, ", "), apperrors.ErrInvalidArgument)
	}

	if err := s.quotas.CheckQuota(ctx, tenantID, tenant.ResourceDocuments, 1); err != nil {
		return nil, err
	}

	path, size, err := s.files.Save(tenantID, filename, content)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	// The file is already on disk, so its size counts toward current usage;
	// an amount of zero checks the new total against the limit.
	if err := s.quotas.CheckQuota(ctx, tenantID, tenant.ResourceStorage, 0); err != nil {
		_ = s.files.Remove(path)
		return nil, err
	}

	row := &domain.Document{
		TenantID: tenantID,
		Filename: filepath.Base(filename),
		FileType: strings.TrimPrefix(ext, "."),
		FilePath: path,
		FileSize: size,
	}
	if err := s.docs.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		_ = s.files.Remove(path)
		return nil, fmt.Errorf("create document row: %w", err)
	}

	s.log.Info("Document uploaded", "tenant_id", tenantID, "document_id", row.ID, "filename", row.Filename, "bytes", size)
	return row, nil
}

// Process runs the ingestion pipeline: extract text, clean it, chunk it and
// push the chunks into the vector index. Processed records that extraction
// succeeded; Indexed records that the chunks are searchable. A document can
// end up processed but unindexed when the index rejects the batch.
func (s *documentService) Process(ctx context.Context, tenantID string, id uuid.UUID) (ProcessResult, error) {
	dbc := dbctx.Context{Ctx: ctx}

	doc, err := s.docs.GetByID(dbc, tenantID, id)
	if err != nil {
		return ProcessResult{}, err
	}
	if doc.Processed {
		return ProcessResult{}, fmt.Errorf("document already processed: %w", apperrors.ErrInvalidArgument)
	}

	extracted, err := extractor.Extract(doc.FilePath)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("extract %s: %w", doc.Filename, err)
	}

	text := extractor.CleanText(extracted.Text)
	if strings.TrimSpace(text) == "" {
		return ProcessResult{}, fmt.Errorf("document %s has no extractable text: %w", doc.Filename, apperrors.ErrInvalidArgument)
	}

	title := extracted.Title
	if title == "" {
		title = doc.Filename
	}

	chunks := s.chunker.Chunk(text)
	indexed := s.index.IndexDocument(ctx, doc.ID.String(), chunks, vectorindex.DocumentMeta{
		TenantID: tenantID,
		Filename: doc.Filename,
		FileType: doc.FileType,
		Title:    title,
	})

	updates := map[string]interface{}{
		"processed":   true,
		"indexed":     indexed,
		"title":       title,
		"chunk_count": len(chunks),
	}
	if err := s.docs.UpdateFields(dbc, tenantID, id, updates); err != nil {
		return ProcessResult{}, err
	}

	s.log.Info("Document processed",
		"tenant_id", tenantID,
		"document_id", id,
		"chunks", len(chunks),
		"indexed", indexed,
	)
	return ProcessResult{
		DocumentID: id.String(),
		Title:      title,
		ChunkCount: len(chunks),
		Indexed:    indexed,
	}, nil
}

func (s *documentService) List(ctx context.Context, tenantID string) ([]*domain.Document, int64, error) {
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.docs.List(dbc, tenantID)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.docs.CountByTenant(dbc, tenantID)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *documentService) Get(ctx context.Context, tenantID string, id uuid.UUID) (*domain.Document, error) {
	return s.docs.GetByID(dbctx.Context{Ctx: ctx}, tenantID, id)
}

// Delete removes the stored file, the indexed vectors and the database row.
// File and vector cleanup tolerate partial failure so a document can always
// be deleted.
func (s *documentService) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}

	doc, err := s.docs.GetByID(dbc, tenantID, id)
	if err != nil {
		return err
	}

	if err := s.files.Remove(doc.FilePath); err != nil {
		s.log.Warn("Upload file removal failed", "document_id", id, "path", doc.FilePath, "error", err)
	}
	if doc.Indexed {
		if ok := s.index.DeleteDocument(ctx, id.String()); !ok {
			s.log.Warn("Vector removal incomplete", "document_id", id)
		}
	}
	if err := s.docs.Delete(dbc, tenantID, id); err != nil {
		return err
	}

	s.log.Info("Document deleted", "tenant_id", tenantID, "document_id", id)
	return nil
}

// Chunks returns a document's indexed chunks, verifying ownership first.
func (s *documentService) Chunks(ctx context.Context, tenantID string, id uuid.UUID) ([]vectorindex.ChunkRecord, error) {
	if _, err := s.docs.GetByID(dbctx.Context{Ctx: ctx}, tenantID, id); err != nil {
		return nil, err
	}
	return s.index.GetChunks(ctx, id.String()), nil
}
