package venue

import (
	"context"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// PumpTokenDecimals is the fixed decimal scale of every bonding curve
// token; it is a venue-wide constant, never queried.
const PumpTokenDecimals = 6

// PumpFunDecoder decodes swaps against pump.fun bonding curves from the
// program's self-CPI trade events.
type PumpFunDecoder struct{}

// NewPumpFunDecoder creates the bonding curve decoder.
func NewPumpFunDecoder() *PumpFunDecoder {
	return &PumpFunDecoder{}
}

func (d *PumpFunDecoder) Name() string { return "pumpfun" }

func (d *PumpFunDecoder) CanHandle(accountKeys []string) bool {
	return containsKey(accountKeys, PumpFunProgram)
}

// Decode collects every inner-instruction payload, decodes those carrying
// the trade event layout and returns the first one attributed to the
// trader.
func (d *PumpFunDecoder) Decode(_ context.Context, tx *solana.ParsedTransaction, trader string) (*domain.TradeEvent, error) {
	if tx == nil || tx.Meta == nil {
		return nil, ErrNoEvent
	}

	for _, set := range tx.Meta.InnerInstructions {
		for _, ix := range set.Instructions {
			if ix.Data == "" {
				continue
			}
			ev, ok := decodePumpTrade(ix.Data)
			if !ok || ev.User != trader {
				continue
			}
			return &domain.TradeEvent{
				Mint:        ev.Mint,
				User:        ev.User,
				IsBuy:       ev.IsBuy,
				SolAmount:   domain.FromBaseUnits(ev.SolAmount, domain.SOLDecimals),
				TokenAmount: domain.FromBaseUnits(ev.TokenAmount, PumpTokenDecimals),
			}, nil
		}
	}
	return nil, ErrNoEvent
}
