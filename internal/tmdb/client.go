// Package tmdb provides the movie-catalog data provider.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"golang.org/x/oauth2"

	"github.com/quillsync/quillsync/internal/common"
	"github.com/quillsync/quillsync/internal/model"
	"github.com/quillsync/quillsync/internal/service"
	"github.com/quillsync/quillsync/internal/workspace"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	defaultImageURL = "https://image.tmdb.org/t/p"
	movieURLPrefix  = "https://www.themoviedb.org/movie/"
	personURLPrefix = "https://www.themoviedb.org/person/"
)

var movieURLPattern = regexp.MustCompile(`(?i)https://www\.themoviedb\.org/movie/(.*)$`)

// Config holds movie catalog API configuration.
type Config struct {
	APIKey   string
	BaseURL  string
	ImageURL string
	Language string
}

// Client implements the DataProvider contract for the movie catalog.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	imageURL   string
	language   string
}

// NewClient creates a movie catalog client. The API key is sent as a bearer
// token on every request.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tmdb API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ImageURL == "" {
		cfg.ImageURL = defaultImageURL
	}
	if cfg.Language == "" {
		cfg.Language = "fr-FR"
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.APIKey,
		TokenType:   "Bearer",
	})
	httpClient := oauth2.NewClient(context.Background(), source)
	httpClient.Timeout = 30 * time.Second

	return &Client{
		httpClient: httpClient,
		logger:     slog.Default().With("component", "tmdb"),
		baseURL:    cfg.BaseURL,
		imageURL:   cfg.ImageURL,
		language:   cfg.Language,
	}, nil
}

type movie struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	ReleaseDate   string  `json:"release_date"`
	PosterPath    string  `json:"poster_path"`
	VoteAverage   float64 `json:"vote_average"`
	Genres        []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Credits struct {
		Crew []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
}

type searchResponse struct {
	Results []movie `json:"results"`
}

// Search returns ranked movie candidates for the query. An empty query
// yields an empty result, not an error.
func (c *Client) Search(ctx context.Context, query string) ([]model.Suggestion, error) {
	if query == "" {
		return []model.Suggestion{}, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	params.Set("language", c.language)
	params.Set("page", "1")

	var resp searchResponse
	if err := c.get(ctx, "/search/movie?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	suggestions := make([]model.Suggestion, 0, len(resp.Results))
	for _, m := range resp.Results {
		subtitle := ""
		if m.OriginalTitle != m.Title {
			subtitle = m.OriginalTitle
		}
		suggestions = append(suggestions, model.Suggestion{
			ID:          fmt.Sprintf("%d", m.ID),
			Title:       m.Title,
			ReleaseDate: m.ReleaseDate,
			PosterPath:  c.imageURL + "/w500" + m.PosterPath,
			Subtitle:    subtitle,
		})
	}
	return suggestions, nil
}

// LoadRecord fetches one movie and maps it to workspace field values. Fields
// without a mapping in the config are omitted entirely.
func (c *Client) LoadRecord(ctx context.Context, id string, cfg *model.SyncConfig) (*service.RecordPage, error) {
	params := url.Values{}
	params.Set("append_to_response", "credits")
	params.Set("language", c.language)

	var m movie
	path := fmt.Sprintf("/movie/%s?%s", url.PathEscape(id), params.Encode())
	if err := c.get(ctx, path, &m); err != nil {
		return nil, err
	}

	poster := c.imageURL + "/original" + m.PosterPath
	page := workspace.Page{
		Icon:  workspace.ExternalFile(poster),
		Cover: workspace.ExternalFile(poster),
		Properties: workspace.Properties{
			cfg.IdentifierField: workspace.URLProperty(movieURLPrefix + id),
			cfg.StatusField:     workspace.TimestampProperty(time.Now()),
		},
	}

	if cfg.TitleField != "" {
		page.Properties[cfg.TitleField] = workspace.TitleProperty(m.Title)
	}
	if cfg.ReleaseDateField != "" && m.ReleaseDate != "" {
		page.Properties[cfg.ReleaseDateField] = workspace.PropertyValue{
			Date: &workspace.DateValue{Start: m.ReleaseDate},
		}
	}
	if cfg.DirectorField != "" {
		for _, member := range m.Credits.Crew {
			if member.Job == "Director" {
				link := fmt.Sprintf("%s%d", personURLPrefix, member.ID)
				page.Properties[cfg.DirectorField] = workspace.RichTextProperty(member.Name, link)
				break
			}
		}
	}
	if cfg.GenreField != "" {
		names := make([]string, 0, len(m.Genres))
		for _, genre := range m.Genres {
			names = append(names, genre.Name)
		}
		page.Properties[cfg.GenreField] = workspace.MultiSelectProperty(names)
	}
	if cfg.RatingField != "" {
		page.Properties[cfg.RatingField] = workspace.NumberProperty(m.VoteAverage)
	}

	return &service.RecordPage{Page: page, Title: m.Title}, nil
}

// SyncAll loads every pending workspace entry from the movie catalog and
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

			if !yield(fmt.Sprintf("Loaded %s.", record.Title), nil) {
				return
			}
		}

		yield("Finished synching movies.", nil)
	}
}

// ExtractID pulls the catalog id out of a movie URL.
func ExtractID(recordURL string) (string, error) {
	matches := movieURLPattern.FindStringSubmatch(recordURL)
	if len(matches) < 2 || matches[1] == "" {
		return "", fmt.Errorf("%w: not a movie URL: %s", common.ErrNotFound, recordURL)
	}
	return matches[1], nil
}

// get performs one JSON GET against the catalog API.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUpstreamUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", common.ErrNotFound, path)
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: movie catalog returned %d: %s", common.ErrUpstreamUnavailable, resp.StatusCode, string(payload))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Ensure Client implements the DataProvider contract.
var _ service.DataProvider = (*Client)(nil)
