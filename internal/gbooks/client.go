// Package gbooks provides the book-catalog data provider on top of the
// Google Books API.
package gbooks

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/books/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/quillsync/quillsync/internal/common"
	"github.com/quillsync/quillsync/internal/model"
	"github.com/quillsync/quillsync/internal/service"
	"github.com/quillsync/quillsync/internal/workspace"
)

var volumeURLPattern = regexp.MustCompile(`(?i)\?id=(.*)$`)

// Genre fragments too generic to be worth a tag.
var ignoredGenres = map[string]bool{
	"General":  true,
	"Literary": true,
}

// Client implements the DataProvider contract for the book catalog.
type Client struct {
	svc    *books.Service
	logger *slog.Logger
}

// NewClient creates a book catalog client. The volumes API needs no
// credentials; extra options (endpoint, HTTP client) are for tests.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithoutAuthentication()}, opts...)
	svc, err := books.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create books service: %w", err)
	}

	return &Client{
		svc:    svc,
		logger: slog.Default().With("component", "gbooks"),
	}, nil
}

// Search returns ranked book candidates for the query. An empty query
// yields an empty result, not an error.
func (c *Client) Search(ctx context.Context, query string) ([]model.Suggestion, error) {
	if query == "" {
		return []model.Suggestion{}, nil
	}

	volumes, err := c.svc.Volumes.List(query).Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError(err)
	}

	suggestions := make([]model.Suggestion, 0, len(volumes.Items))
	for _, volume := range volumes.Items {
		info := volume.VolumeInfo
		if info == nil {
			continue
		}

		subtitle := "NA"
		if len(info.Authors) > 0 {
			subtitle = strings.Join(info.Authors, ", ")
		}
		if info.Subtitle != "" {
			subtitle += " - " + info.Subtitle
		}

		releaseDate := info.PublishedDate
		if releaseDate == "" {
			releaseDate = "NA"
		}

		poster := ""
		if info.ImageLinks != nil {
			poster = info.ImageLinks.Thumbnail
		}

		suggestions = append(suggestions, model.Suggestion{
			ID:          volume.Id,
			Title:       info.Title,
			ReleaseDate: releaseDate,
			PosterPath:  poster,
			Subtitle:    subtitle,
		})
	}
	return suggestions, nil
}

// LoadRecord fetches one volume and maps it to workspace field values.
// Fields without a mapping in the config are omitted entirely.
func (c *Client) LoadRecord(ctx context.Context, id string, cfg *model.SyncConfig) (*service.RecordPage, error) {
	volume, err := c.svc.Volumes.Get(id).Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError(err)
	}
	info := volume.VolumeInfo
	if info == nil {
		return nil, fmt.Errorf("%w: volume %s has no metadata", common.ErrNotFound, id)
	}

	thumbnail := ""
	if info.ImageLinks != nil {
		thumbnail = info.ImageLinks.Thumbnail
	}

	page := workspace.Page{
		Icon:  workspace.ExternalFile(thumbnail),
		Cover: workspace.ExternalFile(thumbnail),
		Properties: workspace.Properties{
			cfg.IdentifierField: workspace.URLProperty(info.CanonicalVolumeLink),
			cfg.StatusField:     workspace.TimestampProperty(time.Now()),
		},
	}

	if cfg.TitleField != "" {
		page.Properties[cfg.TitleField] = workspace.TitleProperty(info.Title)
	}
	if cfg.ReleaseDateField != "" && info.PublishedDate != "" {
		page.Properties[cfg.ReleaseDateField] = workspace.PropertyValue{
			Date: &workspace.DateValue{Start: info.PublishedDate},
		}
	}
	if cfg.AuthorField != "" {
		authors := "NA"
		if len(info.Authors) > 0 {
			authors = strings.Join(info.Authors, ", ")
		}
		page.Properties[cfg.AuthorField] = workspace.RichTextProperty(authors, info.CanonicalVolumeLink)
	}
	if cfg.GenreField != "" {
		page.Properties[cfg.GenreField] = workspace.MultiSelectProperty(splitGenres(info.Categories))
	}

	return &service.RecordPage{Page: page, Title: info.Title}, nil
}

// SyncAll loads every pending workspace entry from the book catalog and
// updates it in place, yielding one message per record.
func (c *Client) SyncAll(ctx context.Context, ws service.Workspace, cfg *model.SyncConfig) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		entries, err := ws.ListPendingEntries(ctx, cfg)
		if err != nil {
			yield("", err)
			return
		}

		for _, entry := range entries {
			identifier, ok := entry.Properties.Find(cfg.IdentifierField)
			if !ok {
				yield("", fmt.Errorf("entry %s has no identifier field", entry.ID))
				return
			}
			id, err := ExtractID(identifier.URL)
			if err != nil {
				yield("", err)
				return
			}

			record, err := c.LoadRecord(ctx, id, cfg)
			if err != nil {
				yield("", err)
				return
			}

			if err := ws.UpdateRecord(ctx, entry.ID, record.Page); err != nil {
				yield("", err)
				return
			}

			if !yield(fmt.Sprintf("Updated %s", record.Title), nil) {
				return
			}
		}

		yield("Finished synching books.", nil)
	}
}

// ExtractID pulls the volume id out of a book URL.
func ExtractID(recordURL string) (string, error) {
	matches := volumeURLPattern.FindStringSubmatch(recordURL)
	if len(matches) < 2 || matches[1] == "" {
		return "", fmt.Errorf("%w: not a volume URL: %s", common.ErrNotFound, recordURL)
	}
	return matches[1], nil
}

// splitGenres expands "Fiction / Thrillers" style categories into individual
// tags, dropping fragments too generic to be useful.
func splitGenres(categories []string) []string {
	var names []string
	for _, category := range categories {
		for _, part := range strings.Split(category, " / ") {
			if !ignoredGenres[part] {
				names = append(names, part)
			}
		}
	}
	return names
}

// wrapAPIError converts Google API errors into the application taxonomy.
func wrapAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusNotFound {
			return fmt.Errorf("%w: %v", common.ErrNotFound, err)
		}
		return fmt.Errorf("%w: book catalog returned %d: %s", common.ErrUpstreamUnavailable, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
}

// Ensure Client implements the DataProvider contract.
var _ service.DataProvider = (*Client)(nil)
