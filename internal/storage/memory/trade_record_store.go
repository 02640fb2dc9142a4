package memory

import (
	"context"
	"sort"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// TradeRecordStore is an in-memory implementation of storage.TradeRecordStore.
type TradeRecordStore struct {
	mu   sync.RWMutex
	data []*domain.TradeRecord
	keys map[string]bool
}

// NewTradeRecordStore creates a new in-memory trade record store.
func NewTradeRecordStore() *TradeRecordStore {
	return &TradeRecordStore{keys: make(map[string]bool)}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if the signature exists.
func (s *TradeRecordStore) Insert(_ context.Context, t *domain.TradeRecord) error {
	if t == nil || t.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys[t.Signature] {
		return storage.ErrDuplicateKey
	}

	cp := *t
	s.data = append(s.data, &cp)
	s.keys[t.Signature] = true
	return nil
}

// GetBySignature retrieves a trade by its signature.
func (s *TradeRecordStore) GetBySignature(_ context.Context, signature string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.data {
		if t.Signature == signature {
			cp := *t
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByMint retrieves all trades for a mint, ordered by submission time ASC.
func (s *TradeRecordStore) GetByMint(_ context.Context, mint string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.TradeRecord
	for _, t := range s.data {
		if t.Mint == mint {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt < out[j].SubmittedAt })
	return out, nil
}

// GetByPeerWallet retrieves all trades mirrored from one watched wallet.
func (s *TradeRecordStore) GetByPeerWallet(_ context.Context, wallet string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.TradeRecord
	for _, t := range s.data {
		if t.PeerWallet == wallet {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt < out[j].SubmittedAt })
	return out, nil
}
