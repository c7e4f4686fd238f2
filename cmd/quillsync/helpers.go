package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/quillsync/quillsync/internal/storage"
	"github.com/quillsync/quillsync/internal/sync"
)

// dataDir resolves the application's local state directory.
func dataDir() (string, error) {
	if dir := viper.GetString("data.dir"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "quillsync"), nil
}

// openTenantStore opens the SQLite tenant database from config.
func openTenantStore() (*storage.SQLiteTenantStore, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dir, err := dataDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(dir, "quillsync.db")
	}
	return storage.NewSQLiteTenantStore(dbPath)
}

// serviceOptions assembles the process-level sync options from config.
func serviceOptions() (sync.Options, error) {
	dir, err := dataDir()
	if err != nil {
		return sync.Options{}, err
	}

	opts := sync.Options{
		WorkspaceBaseURL: viper.GetString("workspace.base_url"),
		MovieAPIKey:      viper.GetString("movies.api_key"),
		BankBaseURL:      viper.GetString("bank.base_url"),
		SnapshotDir:      viper.GetString("snapshots.dir"),
		ArchiveBucket:    viper.GetString("archive.bucket"),
		ArchiveDir:       viper.GetString("archive.dir"),
	}
	if opts.SnapshotDir == "" {
		opts.SnapshotDir = filepath.Join(dir, "snapshots")
	}
	if opts.ArchiveDir == "" {
		opts.ArchiveDir = filepath.Join(dir, "archives")
	}
	return opts, nil
}
