// Package backup provides the workspace-backup data provider: it walks the
// whole workspace tree into a compressed archive and hands it to a storage
// sink.
package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/quillsync/quillsync/internal/common"
	"github.com/quillsync/quillsync/internal/model"
	"github.com/quillsync/quillsync/internal/service"
	"github.com/quillsync/quillsync/internal/workspace"
)

// Provider implements the DataProvider contract for workspace backups.
type Provider struct {
	store      service.ArchiveStore
	httpClient *http.Client
	logger     *slog.Logger
}

// NewProvider creates the backup provider on top of an archive sink.
func NewProvider(store service.ArchiveStore) *Provider {
	return &Provider{
		store: store,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		logger: slog.Default().With("component", "backup"),
	}
}

// Search is not supported for backups.
func (p *Provider) Search(_ context.Context, _ string) ([]model.Suggestion, error) {
	return nil, fmt.Errorf("%w: search is not supported for backups", common.ErrNotImplemented)
}

// LoadRecord is not supported for backups.
func (p *Provider) LoadRecord(_ context.Context, _ string, _ *model.SyncConfig) (*service.RecordPage, error) {
	return nil, fmt.Errorf("%w: single-record load is not supported for backups", common.ErrNotImplemented)
}

// SyncAll drains the workspace's content tree into a zip archive together
// with every hosted binary asset, then stores the finished archive.
func (p *Provider) SyncAll(ctx context.Context, ws service.Workspace, _ *model.SyncConfig) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var items []workspace.Item

		itemCounter := 0
		for item, err := range ws.ListContent(ctx) {
			if err != nil {
				yield("", common.NewUserError("could not list workspace content", err))
				return
			}
			items = append(items, item)
			itemCounter++
			if !yield(fmt.Sprintf("Processed item %d.", itemCounter), nil) {
				return
			}
		}
		if !yield("Done processing items.", nil) {
			return
		}

		var buf bytes.Buffer
		archive := zip.NewWriter(&buf)

		data, err := json.Marshal(items)
		if err != nil {
			yield("", fmt.Errorf("failed to encode content list: %w", err))
			return
		}
		if err := appendEntry(archive, "data.json", data); err != nil {
			yield("", err)
			return
		}

		assetCounter := 0
		for _, item := range items {
			for _, asset := range itemAssets(&item) {
				if err := p.appendAsset(ctx, archive, asset); err != nil {
					yield("", common.NewUserError(fmt.Sprintf("could not back up asset %s", asset.name), err))
					return
				}
				assetCounter++
				if !yield(fmt.Sprintf("Processed asset %d.", assetCounter), nil) {
					return
				}
			}
		}

		if err := archive.Close(); err != nil {
			yield("", fmt.Errorf("failed to finalize archive: %w", err))
			return
		}
		if !yield("Done generating archive.", nil) {
			return
		}

		if err := p.store.Put(ctx, bytes.NewReader(buf.Bytes())); err != nil {
			yield("", common.NewUserError("could not store archive", err))
			return
		}
		yield("Done storing archive.", nil)
	}
}

// BackupDate reports when the most recent archive was stored.
func (p *Provider) BackupDate(ctx context.Context) (time.Time, error) {
	meta, err := p.store.Meta(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return meta.LastModified, nil
}

// Link returns a time-limited retrieval URL for the stored archive.
func (p *Provider) Link(ctx context.Context) (string, error) {
	return p.store.Link(ctx)
}

// asset is one workspace-hosted binary belonging to an item.
type asset struct {
	name string
	url  string
}

// itemAssets collects the hosted binaries of one item: icon and cover for
// pages and databases, the inline file payload for blocks. Archive entries
// are named {kind}_{itemID}.
func itemAssets(item *workspace.Item) []asset {
	var assets []asset

	if item.Object != workspace.ObjectBlock {
		if url := item.Icon.HostedURL(); url != "" {
			assets = append(assets, asset{name: "icon_" + item.ID, url: url})
		}
		if url := item.Cover.HostedURL(); url != "" {
			assets = append(assets, asset{name: "cover_" + item.ID, url: url})
		}
		return assets
	}

	if url := item.BlockAsset().HostedURL(); url != "" {
		assets = append(assets, asset{name: item.Type + "_" + item.ID, url: url})
	}
	return assets
}

// appendAsset fetches one binary asset and appends it to the archive. The
// fetch goes through the single-retry wrapper; a second failure propagates
// and aborts the pass.
func (p *Provider) appendAsset(ctx context.Context, archive *zip.Writer, a asset) error {
	fetch := common.Retriable(func() ([]byte, error) {
		return p.fetch(ctx, a.url)
	})

	data, err := fetch()
	if err != nil {
		return err
	}
	return appendEntry(archive, a.name, data)
}

func appendEntry(archive *zip.Writer, name string, data []byte) error {
	w, err := archive.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create archive entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}

// fetch downloads one asset into memory.
func (p *Provider) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: asset fetch returned %d", common.ErrUpstreamUnavailable, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Ensure Provider implements the backup contract.
var _ service.BackupProvider = (*Provider)(nil)
