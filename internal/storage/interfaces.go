// Package storage defines the persistence interfaces of the copy-trader and
// the sentinel errors all implementations share.
package storage

import (
	"context"

	"solana-copy-trader/internal/domain"
)

// SnapshotStore persists the portfolio state document. Write-through: the
// ledger saves after every mutation, no batching.
type SnapshotStore interface {
	// Load reads the latest snapshot. Returns ErrNotFound when none was
	// ever saved.
	Load(ctx context.Context) (*domain.Snapshot, error)

	// Save overwrites the snapshot.
	Save(ctx context.Context, s *domain.Snapshot) error
}

// TradeRecordStore provides access to executed mirror trades.
type TradeRecordStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if the signature exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// GetBySignature retrieves a trade by its signature. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.TradeRecord, error)

	// GetByMint retrieves all trades for a mint, ordered by submission time ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.TradeRecord, error)

	// GetByPeerWallet retrieves all trades mirrored from one watched wallet.
	GetByPeerWallet(ctx context.Context, wallet string) ([]*domain.TradeRecord, error)
}

// TradeHistoryStore keeps every decoded peer trade for analytics.
type TradeHistoryStore interface {
	// Insert adds one observation.
	Insert(ctx context.Context, o *domain.TradeObservation) error

	// InsertBulk adds multiple observations in one batch.
	InsertBulk(ctx context.Context, obs []*domain.TradeObservation) error

	// GetByWallet retrieves observations for a wallet within [start, end] ms, ordered ASC.
	GetByWallet(ctx context.Context, wallet string, start, end int64) ([]*domain.TradeObservation, error)
}
