package memory

import (
	"context"
	"sort"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// TradeHistoryStore is an in-memory implementation of storage.TradeHistoryStore.
type TradeHistoryStore struct {
	mu   sync.RWMutex
	data []*domain.TradeObservation
}

// NewTradeHistoryStore creates a new in-memory trade history store.
func NewTradeHistoryStore() *TradeHistoryStore {
	return &TradeHistoryStore{}
}

// Compile-time interface check.
var _ storage.TradeHistoryStore = (*TradeHistoryStore)(nil)

// Insert adds one observation.
func (s *TradeHistoryStore) Insert(_ context.Context, o *domain.TradeObservation) error {
	if o == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.data = append(s.data, &cp)
	return nil
}

// InsertBulk adds multiple observations.
func (s *TradeHistoryStore) InsertBulk(ctx context.Context, obs []*domain.TradeObservation) error {
	for _, o := range obs {
		if err := s.Insert(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

// GetByWallet retrieves observations for a wallet within [start, end] ms.
func (s *TradeHistoryStore) GetByWallet(_ context.Context, wallet string, start, end int64) ([]*domain.TradeObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.TradeObservation
	for _, o := range s.data {
		if o.Wallet == wallet && o.ObservedAt >= start && o.ObservedAt <= end {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt < out[j].ObservedAt })
	return out, nil
}
