package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quillsync/quillsync/internal/common"
	"github.com/quillsync/quillsync/internal/model"
	"github.com/quillsync/quillsync/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteTenantStore implements the TenantStore interface using SQLite.
type SQLiteTenantStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteTenantStore creates a new SQLite tenant store instance.
func NewSQLiteTenantStore(dbPath string) (*SQLiteTenantStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath is required")
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteTenantStore{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteTenantStore) Close() error {
	return s.db.Close()
}

// GetTenant loads one tenant by id.
func (s *SQLiteTenantStore) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, domain, workspace_token, config
		FROM tenants
		WHERE id = ?`, tenantID)

	tenant, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: tenant %s", common.ErrNotFound, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant %s: %w", tenantID, err)
	}
	return tenant, nil
}

// ListConfiguredTenants returns every tenant that has a stored sync
// configuration, in stable id order. These are the tenants the scheduler
// visits.
func (s *SQLiteTenantStore) ListConfiguredTenants(ctx context.Context) ([]model.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, domain, workspace_token, config
		FROM tenants
		WHERE config IS NOT NULL AND config != ''
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var tenants []model.Tenant
	for rows.Next() {
		tenant, scanErr := scanTenant(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", scanErr)
		}
		tenants = append(tenants, *tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}
	return tenants, nil
}

// SaveTenant inserts or replaces a tenant row.
func (s *SQLiteTenantStore) SaveTenant(ctx context.Context, tenant *model.Tenant) error {
	if tenant == nil || tenant.ID == "" {
		return fmt.Errorf("tenant with an id is required")
	}

	config, err := encodeConfig(tenant.Config)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, domain, workspace_token, config)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			domain = excluded.domain,
			workspace_token = excluded.workspace_token,
			config = excluded.config`,
		tenant.ID, tenant.Domain, tenant.WorkspaceToken, config)
	if err != nil {
		return fmt.Errorf("failed to save tenant %s: %w", tenant.ID, err)
	}
	return nil
}

// PutTenantConfig replaces an existing tenant's sync configuration.
func (s *SQLiteTenantStore) PutTenantConfig(ctx context.Context, tenantID string, cfg *model.SyncConfig) error {
	config, err := encodeConfig(cfg)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET config = ? WHERE id = ?`, config, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update tenant %s: %w", tenantID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: tenant %s", common.ErrNotFound, tenantID)
	}
	return nil
}

func encodeConfig(cfg *model.SyncConfig) (string, error) {
	if cfg == nil {
		return "", nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode sync configuration: %w", err)
	}
	return string(data), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*model.Tenant, error) {
	var (
		tenant model.Tenant
		config sql.NullString
	)
	if err := row.Scan(&tenant.ID, &tenant.Domain, &tenant.WorkspaceToken, &config); err != nil {
		return nil, err
	}

	if config.Valid && config.String != "" {
		cfg := &model.SyncConfig{}
		if err := json.Unmarshal([]byte(config.String), cfg); err != nil {
			return nil, fmt.Errorf("failed to decode sync configuration: %w", err)
		}
		tenant.Config = cfg
	}
	return &tenant, nil
}

// Ensure SQLiteTenantStore implements the tenant store contract.
var _ service.TenantStore = (*SQLiteTenantStore)(nil)
