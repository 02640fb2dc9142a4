// Package file implements the snapshot store as a single JSON document on
// disk, the default persistence for the portfolio ledger.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// SnapshotStore persists the portfolio state to one JSON file.
type SnapshotStore struct {
	path string
}

// NewSnapshotStore creates a snapshot store writing to path.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Load reads the snapshot document. Returns ErrNotFound when the file does
// not exist yet.
func (s *SnapshotStore) Load(_ context.Context) (*domain.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	if snap.Peer == nil {
		snap.Peer = make(domain.Portfolio)
	}
	if snap.Own == nil {
		snap.Own = make(domain.Portfolio)
	}
	return &snap, nil
}

// Save overwrites the snapshot. The document is written to a temp file and
// renamed so a crash mid-write cannot leave a torn snapshot.
func (s *SnapshotStore) Save(_ context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}
	return nil
}
