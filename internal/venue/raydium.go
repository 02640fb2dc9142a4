package venue

import (
	"context"
	"fmt"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// RaydiumDecoder decodes direct swaps against Raydium AMM v4 pools.
type RaydiumDecoder struct {
	rpc solana.RPCClient
}

// NewRaydiumDecoder creates the AMM pool decoder.
func NewRaydiumDecoder(rpc solana.RPCClient) *RaydiumDecoder {
	return &RaydiumDecoder{rpc: rpc}
}

func (d *RaydiumDecoder) Name() string { return "raydium" }

// CanHandle matches Raydium transactions that were NOT routed through the
// aggregator. Aggregator routes touch Raydium pools internally and must be
// attributed to the aggregator decoder instead.
func (d *RaydiumDecoder) CanHandle(accountKeys []string) bool {
	return containsKey(accountKeys, RaydiumV4Program) &&
		!containsKey(accountKeys, JupiterProgram)
}

// Decode classifies the swap direction from the pool authority's WSOL
// balance delta, resolves the traded mint, then reads both legs from the
// trader's inner transfer pair.
func (d *RaydiumDecoder) Decode(ctx context.Context, tx *solana.ParsedTransaction, trader string) (*domain.TradeEvent, error) {
	if tx == nil || tx.Meta == nil {
		return nil, ErrNoEvent
	}

	isBuy, ok := classifyByAuthorityDelta(tx.Meta)
	if !ok {
		return nil, ErrNoEvent
	}

	mint := resolveMint(tx.Meta, trader)
	if mint == "" {
		return nil, ErrNoEvent
	}

	decimals, err := d.rpc.GetTokenDecimals(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("token decimals for %s: %w", mint, err)
	}

	solAmount, tokenAmount, ok := findSwapAmounts(tx.Meta, trader, isBuy, decimals)
	if !ok {
		return nil, ErrNoEvent
	}

	return &domain.TradeEvent{
		Mint:        mint,
		User:        trader,
		IsBuy:       isBuy,
		SolAmount:   solAmount,
		TokenAmount: tokenAmount,
	}, nil
}

// classifyByAuthorityDelta compares the pool authority's WSOL balance
// before and after the transaction. An increase means the trader paid SOL
// in (buy); a decrease means SOL flowed out (sell).
func classifyByAuthorityDelta(meta *solana.ParsedMeta) (isBuy, ok bool) {
	pre := findTokenBalance(meta.PreTokenBalances, domain.SOLMint, RaydiumV4Authority)
	post := findTokenBalance(meta.PostTokenBalances, domain.SOLMint, RaydiumV4Authority)
	if pre == nil || post == nil {
		return false, false
	}

	preAmount, err1 := domain.ParseBaseUnits(pre.UITokenAmount.Amount)
	postAmount, err2 := domain.ParseBaseUnits(post.UITokenAmount.Amount)
	if err1 != nil || err2 != nil || preAmount == postAmount {
		return false, false
	}
	return postAmount > preAmount, true
}

// resolveMint finds the traded asset: the trader's pre-trade non-SOL token
// balance, or, on a first-ever acquisition, the mint declared by an
// account-initialization inner instruction.
func resolveMint(meta *solana.ParsedMeta, trader string) string {
	for _, b := range meta.PreTokenBalances {
		if b.Mint != domain.SOLMint && b.Owner == trader {
			return b.Mint
		}
	}
	for _, set := range meta.InnerInstructions {
		for _, ix := range set.Instructions {
			if ix.Parsed != nil && ix.Parsed.Type == "initializeAccount3" {
				if mint := ix.Parsed.InfoString("mint"); mint != "" {
					return mint
				}
			}
		}
	}
	return ""
}

// findSwapAmounts scans inner transfer instructions for the trader's swap
// pair. On a buy the trader authorizes the SOL leg and the pool authority
// the token leg; on a sell the attribution flips. Returns on the first
// complete pair. When a route contains several transfers between the same
// parties this is an approximation, not an exact reconstruction.
func findSwapAmounts(meta *solana.ParsedMeta, trader string, isBuy bool, decimals int) (solAmount, tokenAmount float64, ok bool) {
	var haveSol, haveToken bool

	for _, set := range meta.InnerInstructions {
		for _, ix := range set.Instructions {
			if ix.Parsed == nil || ix.Parsed.Type != "transfer" {
				continue
			}
			raw, err := domain.ParseBaseUnits(ix.Parsed.InfoString("amount"))
			if err != nil {
				continue
			}
			byTrader := ix.Parsed.InfoString("authority") == trader

			if byTrader == isBuy {
				solAmount = domain.FromBaseUnits(raw, domain.SOLDecimals)
				haveSol = true
			} else {
				tokenAmount = domain.FromBaseUnits(raw, decimals)
				haveToken = true
			}
			if haveSol && haveToken {
				return solAmount, tokenAmount, true
			}
		}
	}
	return 0, 0, false
}

func findTokenBalance(balances []solana.TokenBalance, mint, owner string) *solana.TokenBalance {
	for i := range balances {
		if balances[i].Mint == mint && balances[i].Owner == owner {
			return &balances[i]
		}
	}
	return nil
}
