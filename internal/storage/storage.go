package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/docquery/docquery-backend/internal/platform/logger"
)

// Store keeps uploaded files on local disk, one subdirectory per tenant, so
// storage usage and cleanup stay tenant-scoped.
type Store struct {
	log  *logger.Logger
	root string
}

func New(log *logger.Logger, root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		root = "uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %q: %w", root, err)
	}
	return &Store{
		log:  log.With("service", "FileStore"),
		root: root,
	}, nil
}

func (s *Store) Root() string { return s.root }

// Save writes an upload under the tenant's directory and returns the stored
// path and byte count. An existing file with the same name is replaced.
func (s *Store) Save(tenantID, filename string, r io.Reader) (string, int64, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", 0, fmt.Errorf("invalid filename %q", filename)
	}

	dir := filepath.Join(s.root, tenantID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create tenant dir: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write file: %w", err)
	}

	s.log.Debug("File stored", "tenant_id", tenantID, "path", path, "bytes", size)
	return path, size, nil
}

// Remove deletes a stored file; a missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveTenant deletes the tenant's entire upload directory.
func (s *Store) RemoveTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id required")
	}
	return os.RemoveAll(filepath.Join(s.root, tenantID))
}

// TenantUsage reports the tenant's on-disk footprint in bytes.
func (s *Store) TenantUsage(tenantID string) (int64, error) {
	dir := filepath.Join(s.root, tenantID)
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	return total, nil
}
