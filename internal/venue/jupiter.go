package venue

import (
	"context"
	"fmt"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// JupiterDecoder decodes aggregator-routed swaps. A route may hold 1..N
// internal legs; the decoder collapses them into one net trade against the
// single target asset.
type JupiterDecoder struct {
	rpc solana.RPCClient
}

// NewJupiterDecoder creates the aggregator decoder.
func NewJupiterDecoder(rpc solana.RPCClient) *JupiterDecoder {
	return &JupiterDecoder{rpc: rpc}
}

func (d *JupiterDecoder) Name() string { return "jupiter" }

func (d *JupiterDecoder) CanHandle(accountKeys []string) bool {
	return containsKey(accountKeys, JupiterProgram)
}

// Decode gathers the route's swap legs and reduces them to a net event.
// Single-leg routes are read directly; multi-leg routes prefer a single
// direct SOL/target leg, fall back to summing all direct legs, and as a
// last resort accumulate across every leg. The accumulation path exists
// because intermediate hops (SOL→X→target) expose no one leg carrying the
// true net price.
func (d *JupiterDecoder) Decode(ctx context.Context, tx *solana.ParsedTransaction, trader string) (*domain.TradeEvent, error) {
	if tx == nil || tx.Meta == nil {
		return nil, ErrNoEvent
	}

	var legs []*swapLeg
	for _, set := range tx.Meta.InnerInstructions {
		for _, ix := range set.Instructions {
			if ix.ProgramID != JupiterProgram || ix.Data == "" {
				continue
			}
			if leg, ok := decodeSwapLeg(ix.Data); ok {
				legs = append(legs, leg)
			}
		}
	}
	if len(legs) == 0 {
		return nil, ErrNoEvent
	}

	if len(legs) == 1 {
		return d.singleLegEvent(ctx, legs[0], trader)
	}

	// The target asset is the trader's held non-SOL asset from the
	// pre-trade balance records.
	target := ""
	for _, b := range tx.Meta.PreTokenBalances {
		if b.Mint != domain.SOLMint && b.Owner == trader {
			target = b.Mint
			break
		}
	}
	if target == "" {
		return nil, ErrNoEvent
	}

	decimals, err := d.rpc.GetTokenDecimals(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("token decimals for %s: %w", target, err)
	}

	direct := filterDirectLegs(legs, target)
	switch {
	case len(direct) == 1:
		isBuy := direct[0].InputMint == domain.SOLMint
		return legEvent(direct[0], target, trader, decimals, isBuy), nil
	case len(direct) > 1:
		return sumLegs(direct, target, trader, decimals,
			direct[0].InputMint == domain.SOLMint), nil
	default:
		return accumulateLegs(legs, target, trader, decimals), nil
	}
}

func (d *JupiterDecoder) singleLegEvent(ctx context.Context, leg *swapLeg, trader string) (*domain.TradeEvent, error) {
	isBuy := leg.InputMint == domain.SOLMint
	mint := leg.InputMint
	if isBuy {
		mint = leg.OutputMint
	}
	decimals, err := d.rpc.GetTokenDecimals(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("token decimals for %s: %w", mint, err)
	}
	return legEvent(leg, mint, trader, decimals, isBuy), nil
}

// filterDirectLegs keeps legs that touch both SOL and the target asset, the
// only legs carrying a directly readable net price.
func filterDirectLegs(legs []*swapLeg, target string) []*swapLeg {
	var direct []*swapLeg
	for _, leg := range legs {
		touchesSOL := leg.InputMint == domain.SOLMint || leg.OutputMint == domain.SOLMint
		touchesTarget := leg.InputMint == target || leg.OutputMint == target
		if touchesSOL && touchesTarget {
			direct = append(direct, leg)
		}
	}
	return direct
}

func legEvent(leg *swapLeg, mint, trader string, decimals int, isBuy bool) *domain.TradeEvent {
	ev := &domain.TradeEvent{Mint: mint, User: trader, IsBuy: isBuy}
	if isBuy {
		ev.SolAmount = domain.FromBaseUnits(leg.InputAmount, domain.SOLDecimals)
		ev.TokenAmount = domain.FromBaseUnits(leg.OutputAmount, decimals)
	} else {
		ev.SolAmount = domain.FromBaseUnits(leg.OutputAmount, domain.SOLDecimals)
		ev.TokenAmount = domain.FromBaseUnits(leg.InputAmount, decimals)
	}
	return ev
}

// sumLegs totals SOL and target amounts across the given direct legs.
func sumLegs(legs []*swapLeg, target, trader string, decimals int, isBuy bool) *domain.TradeEvent {
	var solTotal, tokenTotal float64
	for _, leg := range legs {
		if leg.InputMint == domain.SOLMint {
			solTotal += domain.FromBaseUnits(leg.InputAmount, domain.SOLDecimals)
		} else {
			solTotal += domain.FromBaseUnits(leg.OutputAmount, domain.SOLDecimals)
		}
		if leg.InputMint == target {
			tokenTotal += domain.FromBaseUnits(leg.InputAmount, decimals)
		} else {
			tokenTotal += domain.FromBaseUnits(leg.OutputAmount, decimals)
		}
	}
	return &domain.TradeEvent{
		Mint:        target,
		User:        trader,
		IsBuy:       isBuy,
		SolAmount:   solTotal,
		TokenAmount: tokenTotal,
	}
}

// accumulateLegs reconstructs the net trade when no leg touches SOL and the
// target together: every SOL-side amount and every target-side amount is
// summed independently, with direction taken from the last leg touching
// SOL.
func accumulateLegs(legs []*swapLeg, target, trader string, decimals int) *domain.TradeEvent {
	var solTotal, tokenTotal float64
	var lastSOLLeg *swapLeg

	for _, leg := range legs {
		if leg.InputMint == domain.SOLMint || leg.OutputMint == domain.SOLMint {
			if leg.InputMint == domain.SOLMint {
				solTotal += domain.FromBaseUnits(leg.InputAmount, domain.SOLDecimals)
			} else {
				solTotal += domain.FromBaseUnits(leg.OutputAmount, domain.SOLDecimals)
			}
			lastSOLLeg = leg
		}
		if leg.InputMint == target || leg.OutputMint == target {
			if leg.InputMint == target {
				tokenTotal += domain.FromBaseUnits(leg.InputAmount, decimals)
			} else {
				tokenTotal += domain.FromBaseUnits(leg.OutputAmount, decimals)
			}
		}
	}

	return &domain.TradeEvent{
		Mint:        target,
		User:        trader,
		IsBuy:       lastSOLLeg != nil && lastSOLLeg.InputMint == domain.SOLMint,
		SolAmount:   solTotal,
		TokenAmount: tokenTotal,
	}
}
