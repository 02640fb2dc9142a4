// Package domain holds the core types shared across the copy-trading
// pipeline: canonical trade events, ledger entries and portfolios.
package domain

import "strconv"

// Well-known mints and unit constants.
const (
	// SOLMint is the wrapped SOL mint, the quote asset all trades are
	// priced against.
	SOLMint = "So11111111111111111111111111111111111111112"

	// SOLDecimals is the decimal scale of SOL/WSOL.
	SOLDecimals = 9

	// LamportsPerSOL is the number of base units in one SOL.
	LamportsPerSOL = 1_000_000_000
)

// TradeEvent is the canonical view of one swap, produced only by venue
// decoders. Amounts are decimal-adjusted, not raw base units.
type TradeEvent struct {
	Mint        string  // traded (non-SOL) asset
	User        string  // trader address
	IsBuy       bool    // true when SOL was spent to acquire Mint
	SolAmount   float64 // SOL side of the swap
	TokenAmount float64 // token side of the swap
}

// EntryType classifies a ledger entry.
type EntryType string

const (
	EntryBuy  EntryType = "buy"
	EntrySell EntryType = "sell"
)

// LedgerEntry is the normalized form of a TradeEvent used to mutate a
// portfolio.
type LedgerEntry struct {
	Type   EntryType
	Asset  string
	Amount float64 // token amount
	Price  float64 // SOL amount paid or received
}

// EntryFromEvent converts a decoded trade event into a ledger entry.
func EntryFromEvent(ev *TradeEvent) LedgerEntry {
	typ := EntrySell
	if ev.IsBuy {
		typ = EntryBuy
	}
	return LedgerEntry{
		Type:   typ,
		Asset:  ev.Mint,
		Amount: ev.TokenAmount,
		Price:  ev.SolAmount,
	}
}

// FromBaseUnits converts a raw on-chain integer amount to its decimal form.
// Every venue-specific scale (9 for SOL, 6 fixed for bonding-curve tokens,
// queried for the rest) funnels through here so the conversion cannot
// diverge between venues.
func FromBaseUnits(raw uint64, decimals int) float64 {
	return float64(raw) / pow10(decimals)
}

// ToBaseUnits converts a decimal amount back to raw base units, truncating
// toward zero.
func ToBaseUnits(amount float64, decimals int) uint64 {
	if amount <= 0 {
		return 0
	}
	return uint64(amount * pow10(decimals))
}

func pow10(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// ParseBaseUnits parses a stringified raw amount as returned by jsonParsed
// RPC token balances.
func ParseBaseUnits(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
