// Package venue turns raw parsed transactions into canonical trade events,
// one decoder per supported trading venue, dispatched through an ordered
// router.
package venue

import (
	"context"
	"errors"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// Known venue program IDs.
const (
	// RaydiumV4Program is the Raydium AMM v4 program ID.
	RaydiumV4Program = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	// RaydiumV4Authority is the vault authority all Raydium v4 pools share.
	RaydiumV4Authority = "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1"
	// PumpFunProgram is the pump.fun bonding curve program ID.
	PumpFunProgram = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	// JupiterProgram is the Jupiter v6 aggregator program ID.
	JupiterProgram = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
)

// ErrNoEvent signals that a decoder examined the transaction and found no
// trade attributable to the trader. Not retryable: the transaction content
// cannot change.
var ErrNoEvent = errors.New("no trade event decoded")

// Decoder recognizes and decodes swaps of one venue.
type Decoder interface {
	// Name identifies the venue in logs and metrics.
	Name() string

	// CanHandle reports whether this decoder applies to a transaction
	// touching the given account keys.
	CanHandle(accountKeys []string) bool

	// Decode extracts the trader's swap from a parsed transaction.
	// Returns ErrNoEvent when the transaction holds no decodable trade.
	Decode(ctx context.Context, tx *solana.ParsedTransaction, trader string) (*domain.TradeEvent, error)
}

// Router dispatches transactions to venue decoders in a fixed priority
// order. First match wins.
type Router struct {
	decoders []Decoder
}

// NewRouter creates a router over the given decoders. Order matters: the
// aggregator decoder must precede the AMM decoder because aggregator routes
// touch AMM pools internally and would otherwise be double-counted.
func NewRouter(decoders ...Decoder) *Router {
	return &Router{decoders: decoders}
}

// DefaultRouter wires the three production decoders in their required
// precedence order.
func DefaultRouter(rpc solana.RPCClient) *Router {
	return NewRouter(
		NewJupiterDecoder(rpc),
		NewPumpFunDecoder(),
		NewRaydiumDecoder(rpc),
	)
}

// Select returns the first decoder whose CanHandle accepts the account
// keys, or nil when the transaction belongs to no supported venue.
func (r *Router) Select(accountKeys []string) Decoder {
	for _, d := range r.decoders {
		if d.CanHandle(accountKeys) {
			return d
		}
	}
	return nil
}

func containsKey(keys []string, want string) bool {
	for _, k := range keys {
		if k == want {
			return true
		}
	}
	return false
}
