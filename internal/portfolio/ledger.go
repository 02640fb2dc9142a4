// Package portfolio holds the mutable shared state of the copy-trader: the
// peer shadow portfolio, the operator's own portfolio, and the sizing
// policy that converts peer sells into own sells.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// Ledger owns both portfolio maps. Every mutation is written through to the
// snapshot store before the call returns; a mutex serializes writers so
// concurrent pipelines cannot tear the snapshot.
type Ledger struct {
	mu    sync.Mutex
	snap  *domain.Snapshot
	store storage.SnapshotStore
}

// Load restores the ledger from the snapshot store, starting empty when no
// snapshot was ever saved.
func Load(ctx context.Context, store storage.SnapshotStore) (*Ledger, error) {
	snap, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			snap = domain.NewSnapshot()
		} else {
			return nil, fmt.Errorf("load portfolio snapshot: %w", err)
		}
	}
	return &Ledger{snap: snap, store: store}, nil
}

// Side selects which portfolio map a mutation targets.
type Side int

const (
	// Peer is the watched wallet's inferred portfolio.
	Peer Side = iota
	// Own is the operator's portfolio, mutated only after an own trade
	// confirms.
	Own
)

// ApplyTrade mutates one portfolio with a ledger entry and persists the
// snapshot. A buy adds to the position, creating it if absent; a sell
// subtracts, clamped at zero. A sell against an asset the portfolio never
// tracked returns an empty portfolio as a sentinel: the caller skips
// further action for that side.
func (l *Ledger) ApplyTrade(ctx context.Context, side Side, entry domain.LedgerEntry) (domain.Portfolio, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.portfolio(side)
	switch entry.Type {
	case domain.EntryBuy:
		pos, ok := p[entry.Asset]
		if !ok {
			pos = &domain.Position{Asset: entry.Asset}
			p[entry.Asset] = pos
		}
		pos.Amount += entry.Amount
	case domain.EntrySell:
		pos, ok := p[entry.Asset]
		if !ok {
			return domain.Portfolio{}, nil
		}
		pos.Amount -= entry.Amount
		if pos.Amount < 0 {
			pos.Amount = 0
		}
	default:
		return nil, fmt.Errorf("unknown entry type %q", entry.Type)
	}

	if err := l.store.Save(ctx, l.snap); err != nil {
		return nil, fmt.Errorf("persist portfolio snapshot: %w", err)
	}
	return p.Clone(), nil
}

// Amount returns the held amount of asset on the given side.
func (l *Ledger) Amount(side Side, asset string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.portfolio(side).Amount(asset)
}

// Snapshot returns a deep copy of the current state.
func (l *Ledger) Snapshot() *domain.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap.Clone()
}

func (l *Ledger) portfolio(side Side) domain.Portfolio {
	if side == Own {
		return l.snap.Own
	}
	return l.snap.Peer
}

// SellProportion sizes the operator's sell after a peer sell. A peer that
// sold its whole prior position (or more, under rounding drift) liquidates
// the mirrored position entirely; otherwise the own holding is scaled by
// the fraction the peer sold, rounded down. The result never exceeds
// ownAmount.
func SellProportion(peerPriorAmount, ownAmount, peerSoldAmount float64) float64 {
	if peerPriorAmount <= 0 || peerSoldAmount >= peerPriorAmount {
		return math.Floor(ownAmount)
	}
	return math.Floor(ownAmount * (peerSoldAmount / peerPriorAmount))
}
