package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// TradeHistoryStore implements storage.TradeHistoryStore using ClickHouse.
type TradeHistoryStore struct {
	conn *Conn
}

// NewTradeHistoryStore creates a new TradeHistoryStore.
func NewTradeHistoryStore(conn *Conn) *TradeHistoryStore {
	return &TradeHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeHistoryStore = (*TradeHistoryStore)(nil)

// Insert adds one observation.
func (s *TradeHistoryStore) Insert(ctx context.Context, o *domain.TradeObservation) error {
	if o == nil {
		return storage.ErrInvalidInput
	}
	return s.InsertBulk(ctx, []*domain.TradeObservation{o})
}

// InsertBulk adds multiple observations in one native batch.
func (s *TradeHistoryStore) InsertBulk(ctx context.Context, obs []*domain.TradeObservation) error {
	if len(obs) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_observations (
			signature, slot, wallet, mint, venue,
			is_buy, sol_amount, token_amount, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare observation batch: %w", err)
	}

	for _, o := range obs {
		if o == nil {
			return storage.ErrInvalidInput
		}
		isBuy := uint8(0)
		if o.IsBuy {
			isBuy = 1
		}
		if err := batch.Append(
			o.Signature, o.Slot, o.Wallet, o.Mint, o.Venue,
			isBuy, o.SolAmount, o.TokenAmount, o.ObservedAt,
		); err != nil {
			return fmt.Errorf("append observation: %w", err)
		}
	}

	start := time.Now()
	err = batch.Send()
	observe("observations_insert", start, err)
	if err != nil {
		return fmt.Errorf("send observation batch: %w", err)
	}
	return nil
}

// GetByWallet retrieves observations for a wallet within [start, end] ms,
// ordered by observation time ASC.
func (s *TradeHistoryStore) GetByWallet(ctx context.Context, wallet string, start, end int64) ([]*domain.TradeObservation, error) {
	began := time.Now()
	rows, err := s.conn.Query(ctx, `
		SELECT signature, slot, wallet, mint, venue,
		       is_buy, sol_amount, token_amount, observed_at
		FROM trade_observations
		WHERE wallet = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`, wallet, start, end)
	observe("observations_by_wallet", began, err)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []*domain.TradeObservation
	for rows.Next() {
		var o domain.TradeObservation
		var isBuy uint8
		if err := rows.Scan(
			&o.Signature, &o.Slot, &o.Wallet, &o.Mint, &o.Venue,
			&isBuy, &o.SolAmount, &o.TokenAmount, &o.ObservedAt,
		); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.IsBuy = isBuy != 0
		out = append(out, &o)
	}
	return out, rows.Err()
}
