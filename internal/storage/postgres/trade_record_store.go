package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const tradeRecordColumns = `
	signature, peer_signature, peer_wallet, mint, venue, side,
	sol_amount, token_amount, status, submitted_at, confirmed_at
`

// Insert adds a new trade. Returns ErrDuplicateKey if the signature exists.
func (s *TradeRecordStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	if t == nil || t.Signature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_records (` + tradeRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		t.Signature, t.PeerSignature, t.PeerWallet, t.Mint, t.Venue, t.Side,
		t.SolAmount, t.TokenAmount, t.Status, t.SubmittedAt, t.ConfirmedAt,
	)
	observe("trade_record_insert", start, err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// GetBySignature retrieves a trade by its signature. Returns ErrNotFound if
// not exists.
func (s *TradeRecordStore) GetBySignature(ctx context.Context, signature string) (*domain.TradeRecord, error) {
	query := `SELECT ` + tradeRecordColumns + ` FROM trade_records WHERE signature = $1`

	start := time.Now()
	t, err := scanTradeRecord(s.pool.QueryRow(ctx, query, signature))
	if err != nil {
		if isNotFoundError(err) {
			// A miss is a valid outcome, not a query failure.
			observe("trade_record_get", start, nil)
			return nil, storage.ErrNotFound
		}
		observe("trade_record_get", start, err)
		return nil, fmt.Errorf("get trade record %s: %w", signature, err)
	}
	observe("trade_record_get", start, nil)
	return t, nil
}

// GetByMint retrieves all trades for a mint, ordered by submission time ASC.
func (s *TradeRecordStore) GetByMint(ctx context.Context, mint string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeRecordColumns + `
		FROM trade_records WHERE mint = $1 ORDER BY submitted_at ASC
	`
	return s.queryTradeRecords(ctx, "trade_record_by_mint", query, mint)
}

// GetByPeerWallet retrieves all trades mirrored from one watched wallet.
func (s *TradeRecordStore) GetByPeerWallet(ctx context.Context, wallet string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeRecordColumns + `
		FROM trade_records WHERE peer_wallet = $1 ORDER BY submitted_at ASC
	`
	return s.queryTradeRecords(ctx, "trade_record_by_wallet", query, wallet)
}

func (s *TradeRecordStore) queryTradeRecords(ctx context.Context, op, query string, args ...interface{}) ([]*domain.TradeRecord, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	observe(op, start, err)
	if err != nil {
		return nil, fmt.Errorf("query trade records: %w", err)
	}
	defer rows.Close()

	var out []*domain.TradeRecord
	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var t domain.TradeRecord
	err := row.Scan(
		&t.Signature, &t.PeerSignature, &t.PeerWallet, &t.Mint, &t.Venue, &t.Side,
		&t.SolAmount, &t.TokenAmount, &t.Status, &t.SubmittedAt, &t.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
