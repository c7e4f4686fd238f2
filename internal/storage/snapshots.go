package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quillsync/quillsync/internal/model"
	"github.com/quillsync/quillsync/internal/service"
)

// SnapshotStore keeps the last successfully fetched transaction list per
// account, one JSON file per account id. Snapshots are read when a live
// fetch fails and written only on the success path, so fallback data never
// overwrites good data.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore creates a snapshot store rooted at dir.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &SnapshotStore{dir: dir}, nil
}

func (s *SnapshotStore) path(accountID string) string {
	return filepath.Join(s.dir, filepath.Base(accountID)+".json")
}

// Read loads the last known-good transactions of an account.
func (s *SnapshotStore) Read(accountID string) ([]model.Transaction, error) {
	data, err := os.ReadFile(s.path(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for %s: %w", accountID, err)
	}

	var transactions []model.Transaction
	if err := json.Unmarshal(data, &transactions); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", accountID, err)
	}
	return transactions, nil
}

// Write replaces the account's snapshot with a freshly fetched list.
func (s *SnapshotStore) Write(accountID string, transactions []model.Transaction) error {
	data, err := json.Marshal(transactions)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for %s: %w", accountID, err)
	}
	if err := os.WriteFile(s.path(accountID), data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot for %s: %w", accountID, err)
	}
	return nil
}

// Ensure SnapshotStore implements the snapshot contract.
var _ service.SnapshotStore = (*SnapshotStore)(nil)
