package gbooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/books/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/quillsync/quillsync/internal/common"
	"github.com/quillsync/quillsync/internal/model"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, func()) {
	t.Helper()

	server := httptest.NewServer(handler)
	c, err := NewClient(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return c, server.Close
}

func testCfg() *model.SyncConfig {
	return &model.SyncConfig{
		DatabaseID:      "db-1",
		IdentifierField: "field-url",
		StatusField:     "field-status",
	}
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{
			name: "canonical volume link",
			url:  "https://books.google.com/books/about/Dune.html?id=B1hSG45JCX4C",
			want: "B1hSG45JCX4C",
		},
		{
			name: "query only",
			url:  "?id=abc",
			want: "abc",
		},
		{
			name:    "no id parameter",
			url:     "https://books.google.com/books/about/Dune.html",
			wantErr: true,
		},
		{
			name:    "empty id",
			url:     "https://books.google.com/books?id=",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractID(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitGenres(t *testing.T) {
	tests := []struct {
		name       string
		categories []string
		want       []string
	}{
		{
			name:       "slash separated parts",
			categories: []string{"Fiction / Thrillers / Suspense"},
			want:       []string{"Fiction", "Thrillers", "Suspense"},
		},
		{
			name:       "generic fragments dropped",
			categories: []string{"Fiction / General", "Literary"},
			want:       []string{"Fiction"},
		},
		{
			name:       "empty input",
			categories: nil,
			want:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitGenres(tt.categories))
		})
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	c, err := NewClient(context.Background())
	require.NoError(t, err)

	got, err := c.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchMapsVolumes(t *testing.T) {
	c, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dune", r.URL.Query().Get("q"))
		_ = json.NewEncoder(w).Encode(books.Volumes{Items: []*books.Volume{
			{
				Id: "vol-1",
				VolumeInfo: &books.VolumeVolumeInfo{
					Title:         "Dune",
					Subtitle:      "Deluxe Edition",
					Authors:       []string{"Frank Herbert"},
					PublishedDate: "1965",
					ImageLinks:    &books.VolumeVolumeInfoImageLinks{Thumbnail: "https://img.test/dune"},
				},
			},
			{
				Id:         "vol-2",
				VolumeInfo: &books.VolumeVolumeInfo{Title: "Untitled Draft"},
			},
		}})
	}))
	defer done()

	got, err := c.Search(context.Background(), "dune")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "vol-1", got[0].ID)
	assert.Equal(t, "Frank Herbert - Deluxe Edition", got[0].Subtitle)
	assert.Equal(t, "1965", got[0].ReleaseDate)
	assert.Equal(t, "https://img.test/dune", got[0].PosterPath)

	// Missing metadata degrades to the NA placeholders.
	assert.Equal(t, "NA", got[1].Subtitle)
	assert.Equal(t, "NA", got[1].ReleaseDate)
}

func TestLoadRecordMapsConfiguredFields(t *testing.T) {
	c, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(books.Volume{
			Id: "vol-1",
			VolumeInfo: &books.VolumeVolumeInfo{
				Title:               "Dune",
				Authors:             []string{"Frank Herbert"},
				PublishedDate:       "1965-08-01",
				Categories:          []string{"Fiction / Science Fiction / General"},
				CanonicalVolumeLink: "https://books.google.com/books/about/Dune.html?id=vol-1",
				ImageLinks:          &books.VolumeVolumeInfoImageLinks{Thumbnail: "https://img.test/dune"},
			},
		})
	}))
	defer done()

	cfg := testCfg()
	cfg.TitleField = "field-title"
	cfg.ReleaseDateField = "field-release"
	cfg.AuthorField = "field-author"
	cfg.GenreField = "field-genre"

	record, err := c.LoadRecord(context.Background(), "vol-1", cfg)
	require.NoError(t, err)
	assert.Equal(t, "Dune", record.Title)

	props := record.Page.Properties
	assert.Equal(t, "https://books.google.com/books/about/Dune.html?id=vol-1", props["field-url"].URL)
	assert.Equal(t, "Dune", props["field-title"].PlainText())
	assert.Equal(t, "1965-08-01", props["field-release"].Date.Start)

	author := props["field-author"]
	assert.Equal(t, "Frank Herbert", author.PlainText())
	require.NotNil(t, author.RichText[0].Text.Link)

	genres := props["field-genre"].MultiSelect
	require.Len(t, genres, 2)
	assert.Equal(t, "Fiction", genres[0].Name)
	assert.Equal(t, "Science Fiction", genres[1].Name)
}

func TestLoadRecordOmitsUnmappedFields(t *testing.T) {
	c, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(books.Volume{
			Id:         "vol-1",
			VolumeInfo: &books.VolumeVolumeInfo{Title: "Dune"},
		})
	}))
	defer done()

	record, err := c.LoadRecord(context.Background(), "vol-1", testCfg())
	require.NoError(t, err)

	assert.Len(t, record.Page.Properties, 2)
}

func TestWrapAPIError(t *testing.T) {
	notFound := &googleapi.Error{Code: http.StatusNotFound}
	assert.ErrorIs(t, wrapAPIError(notFound), common.ErrNotFound)

	rateLimited := &googleapi.Error{Code: http.StatusTooManyRequests, Message: "slow down"}
	assert.ErrorIs(t, wrapAPIError(rateLimited), common.ErrUpstreamUnavailable)
}
