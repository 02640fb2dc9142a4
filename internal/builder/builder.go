// Package builder assembles signed swap transactions for each trading venue.
package builder

import (
	"context"
	"math/rand"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// TradeIntent describes a swap to execute with the bot's own wallet.
type TradeIntent struct {
	Mint  string
	IsBuy bool
	// SolAmount is the SOL to spend on a buy. TokenAmount is the token
	// quantity to sell, in UI units.
	SolAmount   float64
	TokenAmount float64
}

// Builder turns a trade intent into a signed transaction ready for
// submission.
type Builder interface {
	Name() string
	Build(ctx context.Context, intent TradeIntent) (*solana.Transaction, error)
}

// Fees configures the priority fee and relay tip attached to every built
// transaction.
type Fees struct {
	PriorityFeeSOL float64
	RelayTipSOL    float64
}

// Swaps route through bundles, so the limit stays pinned at the network
// maximum rather than a simulated estimate.
const computeUnitLimit = 1_400_000

// Validators accepting bundle tips.
var relayTipAccounts = []string{
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
}

// RandomTipAccount picks a tip recipient at random so tips spread across
// validators.
func RandomTipAccount() string {
	return relayTipAccounts[rand.Intn(len(relayTipAccounts))]
}

// assemble wraps venue instructions with the compute budget, optional
// priority fee and the relay tip, then compiles and signs the transaction.
func assemble(wallet solana.Signer, blockhash string, instrs []solana.Instruction, fees Fees) (*solana.Transaction, error) {
	all := make([]solana.Instruction, 0, len(instrs)+3)
	all = append(all, solana.ComputeUnitLimitInstruction(computeUnitLimit))
	if fees.PriorityFeeSOL > 0 {
		microLamports := uint64(fees.PriorityFeeSOL * float64(domain.LamportsPerSOL))
		all = append(all, solana.ComputeUnitPriceInstruction(microLamports))
	}
	all = append(all, instrs...)
	all = append(all, tipInstruction(wallet.PublicKey(), fees))

	tx, err := solana.CompileTransaction(wallet.PublicKey(), blockhash, all)
	if err != nil {
		return nil, err
	}
	if err := tx.Sign(wallet); err != nil {
		return nil, err
	}
	return tx, nil
}

func tipInstruction(from string, fees Fees) solana.Instruction {
	lamports := uint64(fees.RelayTipSOL * float64(domain.LamportsPerSOL))
	return solana.TransferInstruction(from, RandomTipAccount(), lamports)
}

// applySlippage discounts an output amount by a percentage tolerance.
func applySlippage(amount uint64, slippagePercent float64) uint64 {
	if slippagePercent <= 0 {
		return amount
	}
	return uint64(float64(amount) * (100 - slippagePercent) / 100)
}
