// Package sync wires tenants, providers and stores together: it builds the
// per-request scope, resolves the provider variant, and exposes the HTTP
// surface and the scheduler on top.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/quillsync/quillsync/internal/backup"
	"github.com/quillsync/quillsync/internal/common"
	"github.com/quillsync/quillsync/internal/gbooks"
	"github.com/quillsync/quillsync/internal/gocardless"
	"github.com/quillsync/quillsync/internal/model"
	"github.com/quillsync/quillsync/internal/service"
	"github.com/quillsync/quillsync/internal/storage"
	"github.com/quillsync/quillsync/internal/tmdb"
	"github.com/quillsync/quillsync/internal/workspace"
)

// Options holds the process-level settings shared by every scope.
type Options struct {
	// WorkspaceBaseURL points at the target workspace API.
	WorkspaceBaseURL string
	// MovieAPIKey authenticates against the movie catalog.
	MovieAPIKey string
	// BankBaseURL points at the bank aggregator API; empty means production.
	BankBaseURL string
	// SnapshotDir is the root directory for account fallback snapshots.
	SnapshotDir string
	// ArchiveBucket selects the S3 archive sink when non-empty.
	ArchiveBucket string
	// ArchiveDir is the filesystem archive sink used when no bucket is set.
	ArchiveDir string
}

// Scope carries everything one sync call needs. It is built once per call
// and passed by parameter; nothing in it outlives the call.
type Scope struct {
	Workspace service.Workspace
	Config    *model.SyncConfig
	Snapshots service.SnapshotStore
	Archives  service.ArchiveStore
	TenantID  string
	Domain    service.Domain
}

// Service builds scopes and providers for tenants.
type Service struct {
	tenants service.TenantStore
	logger  *slog.Logger
	opts    Options
}

// NewService creates the orchestration service.
func NewService(tenants service.TenantStore, opts Options) *Service {
	return &Service{
		tenants: tenants,
		logger:  slog.Default().With("component", "sync"),
		opts:    opts,
	}
}

// ScopeFor loads a tenant and assembles its request scope.
func (s *Service) ScopeFor(ctx context.Context, tenantID string) (*Scope, error) {
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	domain := service.Domain(tenant.Domain)
	if !domain.Valid() {
		return nil, fmt.Errorf("%w: unknown domain %q for tenant %s", common.ErrInvalidConfig, tenant.Domain, tenantID)
	}

	ws, err := workspace.NewClient(s.opts.WorkspaceBaseURL, tenant.WorkspaceToken)
	if err != nil {
		return nil, err
	}

	snapshots, err := storage.NewSnapshotStore(filepath.Join(s.opts.SnapshotDir, tenantID))
	if err != nil {
		return nil, err
	}

	archives, err := s.archiveStore(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return &Scope{
		Workspace: ws,
		Config:    tenant.Config,
		Snapshots: snapshots,
		Archives:  archives,
		TenantID:  tenantID,
		Domain:    domain,
	}, nil
}

func (s *Service) archiveStore(ctx context.Context, tenantID string) (service.ArchiveStore, error) {
	if s.opts.ArchiveBucket != "" {
		store, err := storage.NewS3Store(ctx, s.opts.ArchiveBucket, tenantID)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := storage.NewFilesystemStore(s.opts.ArchiveDir, tenantID)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// ResolveProvider maps the scope's domain to its provider variant.
func (s *Service) ResolveProvider(ctx context.Context, scope *Scope) (service.DataProvider, error) {
	switch scope.Domain {
	case service.DomainTMDB:
		client, err := tmdb.NewClient(tmdb.Config{APIKey: s.opts.MovieAPIKey})
		if err != nil {
			return nil, err
		}
		return client, nil
	case service.DomainGBook:
		client, err := gbooks.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		return client, nil
	case service.DomainGoCardless:
		return gocardless.NewProvider(gocardless.NewClient(s.opts.BankBaseURL), scope.Snapshots), nil
	case service.DomainBackup:
		return backup.NewProvider(scope.Archives), nil
	}
	return nil, fmt.Errorf("%w: unknown domain %q", common.ErrInvalidConfig, scope.Domain)
}
