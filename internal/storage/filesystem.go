package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quillsync/quillsync/internal/service"
)

// FilesystemStore stores one tenant's backup archive as a local file. Used
// for non-hosted runs; the retrieval link is the static backup route.
type FilesystemStore struct {
	dir      string
	tenantID string
}

// NewFilesystemStore creates a filesystem-backed archive store.
func NewFilesystemStore(dir, tenantID string) (*FilesystemStore, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FilesystemStore{dir: dir, tenantID: tenantID}, nil
}

func (s *FilesystemStore) path() string {
	return filepath.Join(s.dir, filepath.Base(s.tenantID)+".zip")
}

// Put writes the finished archive to disk.
func (s *FilesystemStore) Put(_ context.Context, data io.Reader) error {
	f, err := os.Create(s.path())
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	return f.Close()
}

// Link returns the static backup route; local files need no signing.
func (s *FilesystemStore) Link(_ context.Context) (string, error) {
	return "/backup", nil
}

// Meta reports the archive file's modification time; a missing file means
// no backup exists yet.
func (s *FilesystemStore) Meta(_ context.Context) (service.ArchiveMeta, error) {
	info, err := os.Stat(s.path())
	if err != nil {
		return service.ArchiveMeta{}, nil
	}
	return service.ArchiveMeta{LastModified: info.ModTime()}, nil
}

// Ensure FilesystemStore implements the archive sink contract.
var _ service.ArchiveStore = (*FilesystemStore)(nil)
