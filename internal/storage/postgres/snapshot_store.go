package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore on PostgreSQL. The
// document is stored as one jsonb row, overwritten on every save, so the
// file-based default and the durable variant stay interchangeable.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Load reads the latest snapshot. Returns ErrNotFound when none was saved.
func (s *SnapshotStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	start := time.Now()
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM portfolio_snapshots WHERE id = 1`,
	).Scan(&data)
	observe("snapshot_load", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Peer == nil {
		snap.Peer = make(domain.Portfolio)
	}
	if snap.Own == nil {
		snap.Own = make(domain.Portfolio)
	}
	return &snap, nil
}

// Save overwrites the snapshot row.
func (s *SnapshotStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	start := time.Now()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO portfolio_snapshots (id, state, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()
	`, data)
	observe("snapshot_save", start, err)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
