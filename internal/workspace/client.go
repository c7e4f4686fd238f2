package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/quillsync/quillsync/internal/common"
	"github.com/quillsync/quillsync/internal/model"
)

// StatusNotStarted is the status value marking a record that has never been
// synchronized.
const StatusNotStarted = "Not started"

// identifierBatchLimit is the upstream limit on the number of conditions in
// one filter expression.
const identifierBatchLimit = 100

// Client talks to the workspace API on behalf of one tenant.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a workspace client for the given tenant access token.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("workspace base URL is required")
	}
	if token == "" {
		return nil, fmt.Errorf("workspace access token is required")
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default().With("component", "workspace"),
	}, nil
}

// queryPage is one page of a paginated listing response.
type queryPage struct {
	Results    []Item `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// filter mirrors the API's filter expression tree.
type filter struct {
	And      []filter         `json:"and,omitempty"`
	Or       []filter         `json:"or,omitempty"`
	Property string           `json:"property,omitempty"`
	URL      *valueCondition  `json:"url,omitempty"`
	RichText *valueCondition  `json:"rich_text,omitempty"`
	Status   *statusCondition `json:"status,omitempty"`
}

type valueCondition struct {
	Equals     string `json:"equals,omitempty"`
	IsNotEmpty bool   `json:"is_not_empty,omitempty"`
}

type statusCondition struct {
	Equals string `json:"equals"`
}

type queryRequest struct {
	Filter      *filter `json:"filter,omitempty"`
	StartCursor string  `json:"start_cursor,omitempty"`
}

// ListPendingEntries returns every entry of the configured database whose
// identifier field is set and whose status is still "Not started".
func (c *Client) ListPendingEntries(ctx context.Context, cfg *model.SyncConfig) ([]Item, error) {
	pending := filter{
		And: []filter{
			{Property: cfg.IdentifierField, URL: &valueCondition{IsNotEmpty: true}},
			{Property: cfg.StatusField, Status: &statusCondition{Equals: StatusNotStarted}},
		},
	}

	return c.queryAll(ctx, cfg.DatabaseID, &pending)
}

// QueryByIdentifier returns existing records whose identifier field equals
// any of the given values. One call may carry at most 100 values, the
// upstream filter-expression size limit.
func (c *Client) QueryByIdentifier(ctx context.Context, cfg *model.SyncConfig, ids []string) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > identifierBatchLimit {
		return nil, fmt.Errorf("identifier batch of %d exceeds the filter limit of %d", len(ids), identifierBatchLimit)
	}

	conditions := make([]filter, 0, len(ids))
	for _, id := range ids {
		conditions = append(conditions, filter{
			Property: cfg.IdentifierField,
			RichText: &valueCondition{Equals: id},
		})
	}

	return c.queryAll(ctx, cfg.DatabaseID, &filter{Or: conditions})
}

// queryAll drains every page of a database query.
func (c *Client) queryAll(ctx context.Context, databaseID string, f *filter) ([]Item, error) {
	var items []Item
	cursor := ""

	for {
		var page queryPage
		req := queryRequest{Filter: f, StartCursor: cursor}
		path := fmt.Sprintf("/databases/%s/query", url.PathEscape(databaseID))
		if err := c.do(ctx, http.MethodPost, path, req, &page); err != nil {
			return nil, err
		}

		items = append(items, page.Results...)
		if !page.HasMore {
			return items, nil
		}
		cursor = page.NextCursor
	}
}

type createRequest struct {
	Parent struct {
		DatabaseID string `json:"database_id"`
	} `json:"parent"`
	Icon       *FileRef   `json:"icon,omitempty"`
	Cover      *FileRef   `json:"cover,omitempty"`
	Properties Properties `json:"properties"`
}

// CreateRecord creates a new record in the given database.
func (c *Client) CreateRecord(ctx context.Context, databaseID string, page Page) error {
	var req createRequest
	req.Parent.DatabaseID = databaseID
	req.Icon = page.Icon
	req.Cover = page.Cover
	req.Properties = page.Properties

	return c.do(ctx, http.MethodPost, "/pages", req, nil)
}

// UpdateRecord updates an existing record in place.
func (c *Client) UpdateRecord(ctx context.Context, pageID string, page Page) error {
	path := fmt.Sprintf("/pages/%s", url.PathEscape(pageID))
	return c.do(ctx, http.MethodPatch, path, page, nil)
}

// searchPage fetches one page of the top-level workspace search.
func (c *Client) searchPage(ctx context.Context, cursor string) (*queryPage, error) {
	var page queryPage
	req := queryRequest{StartCursor: cursor}
	if err := c.do(ctx, http.MethodPost, "/search", req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// blockChildrenPage fetches one page of a block's children.
func (c *Client) blockChildrenPage(ctx context.Context, blockID, cursor string) (*queryPage, error) {
	path := fmt.Sprintf("/blocks/%s/children", url.PathEscape(blockID))
	if cursor != "" {
		path += "?start_cursor=" + url.QueryEscape(cursor)
	}

	var page queryPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// do performs one JSON request against the workspace API.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
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
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("Workspace API error",
			"method", method,
			"path", path,
			"status", resp.StatusCode)
		return fmt.Errorf("%w: workspace API returned %d: %s", common.ErrUpstreamUnavailable, resp.StatusCode, string(payload))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
