package builder

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// tokenAccount is the account a swap reads from or writes to for one mint,
// plus the instructions that bring it into existence when it is missing.
type tokenAccount struct {
	Address string
	Setup   []solana.Instruction
	// Ephemeral accounts are seeded wrapped-SOL accounts that must be
	// closed at the end of the transaction.
	Ephemeral bool
}

// resolveTokenAccount returns the owner's token account for mint, creating
// one when none exists. Wrapped SOL gets a throwaway seeded account funded
// with rent plus wrapLamports; other mints get the associated token account.
func resolveTokenAccount(ctx context.Context, rpc solana.RPCClient, owner, mint string, wrapLamports uint64) (tokenAccount, error) {
	existing, err := rpc.GetTokenAccountsByOwner(ctx, owner, mint)
	if err != nil {
		return tokenAccount{}, fmt.Errorf("list token accounts: %w", err)
	}
	if mint != domain.SOLMint && len(existing) > 0 {
		return tokenAccount{Address: existing[0].Pubkey}, nil
	}

	rent, err := rpc.GetMinimumBalanceForRentExemption(ctx, solana.TokenAccountSize)
	if err != nil {
		return tokenAccount{}, fmt.Errorf("rent exemption: %w", err)
	}

	if mint == domain.SOLMint {
		seed, err := randomSeed()
		if err != nil {
			return tokenAccount{}, err
		}
		addr, err := solana.CreateWithSeedAddress(owner, seed, solana.TokenProgram)
		if err != nil {
			return tokenAccount{}, err
		}
		create, err := solana.CreateAccountWithSeedInstruction(
			owner, addr, owner, seed, solana.TokenProgram,
			rent+wrapLamports, solana.TokenAccountSize,
		)
		if err != nil {
			return tokenAccount{}, err
		}
		return tokenAccount{
			Address: addr,
			Setup: []solana.Instruction{
				create,
				solana.InitializeTokenAccountInstruction(addr, mint, owner),
			},
			Ephemeral: true,
		}, nil
	}

	ata, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return tokenAccount{}, err
	}
	return tokenAccount{
		Address: ata,
		Setup: []solana.Instruction{
			solana.CreateAssociatedTokenAccountInstruction(owner, ata, owner, mint),
		},
	}, nil
}

// randomSeed produces a fresh seed for a throwaway wrapped-SOL account.
func randomSeed() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate account seed: %w", err)
	}
	s := base58.Encode(raw)
	if len(s) > 32 {
		s = s[:32]
	}
	return s, nil
}
