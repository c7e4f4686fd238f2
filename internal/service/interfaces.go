// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/quillsync/quillsync/internal/model"
	"github.com/quillsync/quillsync/internal/workspace"
)

// Domain selects one of the closed set of data-provider variants. It is
// resolved per tenant, outside of the sync core.
type Domain string

// Known provider domains.
const (
	DomainTMDB       Domain = "TMDB"
	DomainGBook      Domain = "GBook"
	DomainGoCardless Domain = "GoCardless"
	DomainBackup     Domain = "backup"
)

// Valid reports whether the domain names a known provider variant.
func (d Domain) Valid() bool {
	switch d {
	case DomainTMDB, DomainGBook, DomainGoCardless, DomainBackup:
		return true
	}
	return false
}

// RecordPage is one external record translated into workspace field values,
// ready to be created or updated in the target database.
type RecordPage struct {
	Page  workspace.Page
	Title string
}

// DataProvider is one synchronization strategy for one class of external
// data. All variants implement the same three operations; operations that
// are meaningless for a variant fail with common.ErrNotImplemented.
type DataProvider interface {
	// Search returns ranked candidate matches for interactive lookup. It
	// must not mutate state; an empty query yields an empty result.
	Search(ctx context.Context, query string) ([]model.Suggestion, error)

	// LoadRecord fetches one external record and maps it to workspace field
	// values according to the config. Mappings absent from the config are
	// omitted from the output, never written as null.
	LoadRecord(ctx context.Context, id string, cfg *model.SyncConfig) (*RecordPage, error)

	// SyncAll performs the provider's full reconciliation strategy as a
	// lazy, finite, non-restartable sequence of progress messages. A
	// non-nil error is terminal and is the last element produced.
	SyncAll(ctx context.Context, ws Workspace, cfg *model.SyncConfig) iter.Seq2[string, error]
}

// BackupProvider is implemented by the workspace-backup variant on top of
// the DataProvider contract.
type BackupProvider interface {
	DataProvider

	// BackupDate reports when the most recent archive was stored.
	BackupDate(ctx context.Context) (time.Time, error)

	// Link returns a time-limited retrieval URL for the stored archive.
	Link(ctx context.Context) (string, error)
}

// Workspace is the target third-party system whose records are created and
// updated.
type Workspace interface {
	// ListPendingEntries returns the database entries whose identifier field
	// is non-empty and whose status is still "Not started".
	ListPendingEntries(ctx context.Context, cfg *model.SyncConfig) ([]workspace.Item, error)

	// QueryByIdentifier returns existing records whose identifier field
	// matches any of the given values, following pagination. Callers must
	// keep one call at or below the upstream filter-expression limit of
	// 100 values.
	QueryByIdentifier(ctx context.Context, cfg *model.SyncConfig, ids []string) ([]workspace.Item, error)

	// CreateRecord creates a new record in the given database.
	CreateRecord(ctx context.Context, databaseID string, page workspace.Page) error

	// UpdateRecord updates an existing record in place.
	UpdateRecord(ctx context.Context, pageID string, page workspace.Page) error

	// ListContent walks the whole workspace tree: every page and database
	// from top-level search, and for every page its block children, each
	// item exactly once. Restartable per call.
	ListContent(ctx context.Context) iter.Seq2[workspace.Item, error]
}

// ArchiveStore is the sink that receives finished backup archives.
type ArchiveStore interface {
	Put(ctx context.Context, data io.Reader) error
	Link(ctx context.Context) (string, error)
	Meta(ctx context.Context) (ArchiveMeta, error)
}

// ArchiveMeta describes the stored archive.
type ArchiveMeta struct {
	LastModified time.Time
}

// SnapshotStore persists the last successfully fetched transaction list per
// account, read back when a live fetch fails.
type SnapshotStore interface {
	Read(accountID string) ([]model.Transaction, error)
	Write(accountID string, transactions []model.Transaction) error
}

// TenantStore provides access to the configured tenants.
type TenantStore interface {
	GetTenant(ctx context.Context, id string) (*model.Tenant, error)
	ListConfiguredTenants(ctx context.Context) ([]model.Tenant, error)
	PutTenantConfig(ctx context.Context, id string, cfg *model.SyncConfig) error
	Close() error
}
