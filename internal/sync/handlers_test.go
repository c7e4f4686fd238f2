package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsync/quillsync/internal/common"
	"github.com/quillsync/quillsync/internal/model"
	"github.com/quillsync/quillsync/internal/stream"
)

type fakeTenantStore struct {
	tenants map[string]*model.Tenant
}

func (f *fakeTenantStore) GetTenant(_ context.Context, id string) (*model.Tenant, error) {
	tenant, ok := f.tenants[id]
	if !ok {
		return nil, fmt.Errorf("%w: tenant %s", common.ErrNotFound, id)
	}
	return tenant, nil
}

func (f *fakeTenantStore) ListConfiguredTenants(_ context.Context) ([]model.Tenant, error) {
	var tenants []model.Tenant
	for _, tenant := range f.tenants {
		tenants = append(tenants, *tenant)
	}
	return tenants, nil
}

func (f *fakeTenantStore) PutTenantConfig(_ context.Context, id string, cfg *model.SyncConfig) error {
	tenant, ok := f.tenants[id]
	if !ok {
		return common.ErrNotFound
	}
	tenant.Config = cfg
	return nil
}

func (f *fakeTenantStore) Close() error { return nil }

// emptyWorkspaceServer serves a workspace whose search yields one childless
// database, enough for a full backup pass.
func emptyWorkspaceServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results": [{"id": "d1", "object": "database"}]}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestHandler(t *testing.T, tenants map[string]*model.Tenant) *http.ServeMux {
	t.Helper()

	ws := emptyWorkspaceServer(t)
	svc := NewService(&fakeTenantStore{tenants: tenants}, Options{
		WorkspaceBaseURL: ws.URL,
		SnapshotDir:      t.TempDir(),
		ArchiveDir:       t.TempDir(),
	})

	mux := http.NewServeMux()
	NewHandler(svc).Register(mux)
	return mux
}

func backupTenant(id string) *model.Tenant {
	return &model.Tenant{
		ID:             id,
		Domain:         "backup",
		WorkspaceToken: "token-1",
	}
}

func TestHandleSyncStreamsBackupPass(t *testing.T) {
	mux := newTestHandler(t, map[string]*model.Tenant{"tenant-1": backupTenant("tenant-1")})

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "multipart/text", rec.Header().Get("Content-Type"))

	messages, err := stream.DecodeAll(rec.Body)
	require.NoError(t, err)
	require.NotEmpty(t, messages)

	var texts []string
	for _, m := range messages {
		require.Equal(t, model.ProgressMessage, m.Type)
		texts = append(texts, m.Data)
	}
	assert.Equal(t, []string{
		"Processed item 1.",
		"Done processing items.",
		"Done generating archive.",
		"Done storing archive.",
	}, texts)
}

func TestHandleSyncUnknownTenantFailsInBand(t *testing.T) {
	mux := newTestHandler(t, map[string]*model.Tenant{})

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	req.Header.Set("X-Tenant-ID", "ghost")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	// The status is committed before the failure; the error travels in-band
	// and the stream still terminates gracefully.
	assert.Equal(t, http.StatusOK, rec.Code)

	messages, err := stream.DecodeAll(rec.Body)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, model.ProgressError, messages[0].Type)
}

func TestHandleSyncUnknownDomainFailsInBand(t *testing.T) {
	mux := newTestHandler(t, map[string]*model.Tenant{
		"tenant-1": {ID: "tenant-1", Domain: "bogus", WorkspaceToken: "token-1"},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	messages, err := stream.DecodeAll(rec.Body)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, model.ProgressError, messages[0].Type)
}

func TestHandleBackupReturnsLink(t *testing.T) {
	mux := newTestHandler(t, map[string]*model.Tenant{"tenant-1": backupTenant("tenant-1")})

	req := httptest.NewRequest(http.MethodGet, "/api/backup", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	assert.Equal(t, "/backup", payload["link"])
}

func TestHandleSearchRejectsUnsupportedDomain(t *testing.T) {
	mux := newTestHandler(t, map[string]*model.Tenant{
		"tenant-1": {ID: "tenant-1", Domain: "GoCardless", WorkspaceToken: "token-1"},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/search?query=dune", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHandleSearchUnknownTenant(t *testing.T) {
	mux := newTestHandler(t, map[string]*model.Tenant{})

	req := httptest.NewRequest(http.MethodGet, "/api/search?query=dune", nil)
	req.Header.Set("X-Tenant-ID", "ghost")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: common.ErrNotFound, want: http.StatusNotFound},
		{name: "not implemented", err: common.ErrNotImplemented, want: http.StatusNotImplemented},
		{name: "missing config", err: common.ErrMissingConfig, want: http.StatusUnprocessableEntity},
		{name: "upstream", err: common.ErrUpstreamUnavailable, want: http.StatusBadGateway},
		{name: "anything else", err: fmt.Errorf("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}
