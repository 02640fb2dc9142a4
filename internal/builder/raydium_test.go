package builder

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/venue"
)

const (
	rayTestMint        = "Fw5KdYvFgue4q1HAQ264JTZax6VUr3jDVBJ1szuQ7dHE"
	rayTestPool        = "4Ss5JMkXAD9Z7cktFEdrqeMuT6jGMF1pVozTyPHZ6zT4"
	rayTestBaseVault   = "5bV6jUfhDHCQVA1WfKBUnXUsboJgoKgkzkKcxr3joew5"
	rayTestQuoteVault  = "6k78AbasGMFFrhG95Pj6jQbqkVt7FQMhVgemxJovWKR6"
	rayTestOpenOrders  = "7tj9biW3KRJ7EEWmVUGigHiouCTXhV2dzcyvwma7Cyu7"
	rayTestTarget      = "93MB2qRDNVLxbmmPuYpLdAqn3u2x9ZhaVZK5wELHueP8"
	rayTestMarket      = "29d2S7vB453rNYFdR5Ycwt7y9haRT5fwVwL9zTmBhfV2"
	rayTestMarketProg  = "3JF3sEqM796hk5WFqA6EtmEwJQ9quALszsfJyvXNQKy3"
	rayTestMktBase     = "AByCTxLPRZPoyK22KdMxa3xkCbcNbeNWzVeEvh6UcJs9"
	rayTestMktQuote    = "BLbDu5FZUdSfLrGejhuaWw5iMJBo3j3TVRyPv9rfJyMA"
	rayTestBids        = "CVDFLCAjXhVWiPXH9nTCTpCgVzmDVoiPzNJYuccr1dqB"
	rayTestAsks        = "DdqGmK5uamYN5vmuZrzpQhKeehLdwtPLVJdhu5P2iJKC"
	rayTestEventQueue  = "EnTJCS15dqbDTU2XywYSMaScoPv4Py4GzExrtY9DQxoD"
	rayTestVaultSigner = "3MVUDQZRD2yzYk3krCpmgRnPzdAVNFw1L1wUE8Q6WT58"
)

func putKey(data []byte, offset int, pubkey string) {
	raw, err := base58.Decode(pubkey)
	if err != nil || len(raw) != 32 {
		panic("bad test pubkey: " + pubkey)
	}
	copy(data[offset:], raw)
}

// rayPoolData synthesizes a V4 pool state with the token as base and SOL as
// quote.
func rayPoolData() []byte {
	data := make([]byte, raydiumPoolStateSize)
	binary.LittleEndian.PutUint64(data[poolBaseDecimalOffset:], 6)
	binary.LittleEndian.PutUint64(data[poolQuoteDecimalOffset:], 9)
	binary.LittleEndian.PutUint64(data[poolSwapFeeNumOffset:], 25)
	binary.LittleEndian.PutUint64(data[poolSwapFeeDenOffset:], 10000)
	putKey(data, poolBaseVaultOffset, rayTestBaseVault)
	putKey(data, poolQuoteVaultOffset, rayTestQuoteVault)
	putKey(data, poolBaseMintOffset, rayTestMint)
	putKey(data, poolQuoteMintOffset, domain.SOLMint)
	putKey(data, poolOpenOrdersOffset, rayTestOpenOrders)
	putKey(data, poolMarketIDOffset, rayTestMarket)
	putKey(data, poolMarketProgramOffset, rayTestMarketProg)
	putKey(data, poolTargetOrdersOffset, rayTestTarget)
	return data
}

func rayMarketData() []byte {
	data := make([]byte, 388)
	putKey(data, marketOwnAddressOffset, rayTestMarket)
	// vault signer nonce zero
	putKey(data, marketBaseVaultOffset, rayTestMktBase)
	putKey(data, marketQuoteVaultOffset, rayTestMktQuote)
	putKey(data, marketEventQueueOffset, rayTestEventQueue)
	putKey(data, marketBidsOffset, rayTestBids)
	putKey(data, marketAsksOffset, rayTestAsks)
	return data
}

func tokenAccountData(amount uint64) []byte {
	data := make([]byte, 165)
	binary.LittleEndian.PutUint64(data[tokenAccountAmountOffset:], amount)
	return data
}

// rayFakeRPC wires the pool, market and vault fixtures together. The pool
// only turns up when the base-mint filter matches the token.
func rayFakeRPC() *fakeRPC {
	return &fakeRPC{
		accountInfos: map[string]*solana.AccountInfo{
			rayTestMarket:     {Data: rayMarketData()},
			rayTestBaseVault:  {Data: tokenAccountData(1_000_000_000_000)},
			rayTestQuoteVault: {Data: tokenAccountData(100_000_000_000)},
		},
		programAccounts: func(program string, filters []solana.AccountFilter) []solana.ProgramAccount {
			if program != venue.RaydiumV4Program || len(filters) != 3 {
				return nil
			}
			if filters[1].Memcmp.Bytes != rayTestMint {
				return nil
			}
			return []solana.ProgramAccount{{Pubkey: rayTestPool, Data: rayPoolData()}}
		},
	}
}

func TestAmmAmountOut(t *testing.T) {
	// A 0.25% fee comes off one SOL of input before the product rule.
	got := ammAmountOut(100_000_000_000, 1_000_000_000_000, 1_000_000_000, 25, 10000)
	if got != 9876482091 {
		t.Errorf("ammAmountOut = %d, want 9876482091", got)
	}
	// Zeroed fee fields fall back to the 0.25% default.
	if got := ammAmountOut(100_000_000_000, 1_000_000_000_000, 1_000_000_000, 0, 0); got != 9876482091 {
		t.Errorf("ammAmountOut with defaulted fee = %d, want 9876482091", got)
	}
}

func TestRaydiumBuilder_FindPool(t *testing.T) {
	b := NewRaydiumBuilder(rayFakeRPC(), testKeypair(t), Fees{}, 1)

	keys, err := b.FindPool(context.Background(), rayTestMint)
	if err != nil {
		t.Fatalf("find pool: %v", err)
	}
	if keys.ID != rayTestPool {
		t.Errorf("pool id = %s, want %s", keys.ID, rayTestPool)
	}
	if keys.BaseMint != rayTestMint || keys.QuoteMint != domain.SOLMint {
		t.Errorf("pool mints = %s/%s", keys.BaseMint, keys.QuoteMint)
	}
	if keys.BaseDecimals != 6 || keys.QuoteDecimals != 9 {
		t.Errorf("pool decimals = %d/%d, want 6/9", keys.BaseDecimals, keys.QuoteDecimals)
	}
	if keys.MarketBids != rayTestBids || keys.MarketAsks != rayTestAsks {
		t.Errorf("market sides = %s/%s", keys.MarketBids, keys.MarketAsks)
	}
	if keys.MarketVaultSigner != rayTestVaultSigner {
		t.Errorf("vault signer = %s, want %s", keys.MarketVaultSigner, rayTestVaultSigner)
	}
}

func TestRaydiumBuilder_FindPool_OrientationFallback(t *testing.T) {
	// Pool registered with SOL as base and the token as quote; only the
	// second query orientation matches.
	data := rayPoolData()
	putKey(data, poolBaseMintOffset, domain.SOLMint)
	putKey(data, poolQuoteMintOffset, rayTestMint)

	rpc := rayFakeRPC()
	rpc.programAccounts = func(program string, filters []solana.AccountFilter) []solana.ProgramAccount {
		if filters[1].Memcmp.Bytes == domain.SOLMint && filters[2].Memcmp.Bytes == rayTestMint {
			return []solana.ProgramAccount{{Pubkey: rayTestPool, Data: data}}
		}
		return nil
	}

	b := NewRaydiumBuilder(rpc, testKeypair(t), Fees{}, 1)
	keys, err := b.FindPool(context.Background(), rayTestMint)
	if err != nil {
		t.Fatalf("find pool: %v", err)
	}
	if keys.BaseMint != domain.SOLMint || keys.QuoteMint != rayTestMint {
		t.Errorf("pool mints = %s/%s, want flipped orientation", keys.BaseMint, keys.QuoteMint)
	}
}

func TestRaydiumBuilder_FindPool_NoPool(t *testing.T) {
	b := NewRaydiumBuilder(&fakeRPC{}, testKeypair(t), Fees{}, 1)
	if _, err := b.FindPool(context.Background(), rayTestMint); err == nil {
		t.Fatal("expected an error when no pool exists")
	}
}

func TestRaydiumBuilder_BuildBuy(t *testing.T) {
	kp := testKeypair(t)
	b := NewRaydiumBuilder(rayFakeRPC(), kp, Fees{PriorityFeeSOL: 0.0001, RelayTipSOL: 0.0001}, 1)

	tx, err := b.Build(context.Background(), TradeIntent{Mint: rayTestMint, IsBuy: true, SolAmount: 1})
	if err != nil {
		t.Fatalf("build buy: %v", err)
	}

	swap, idx := findInstruction(decompile(t, tx), venue.RaydiumV4Program)
	if idx < 0 {
		t.Fatalf("no pool swap instruction in transaction")
	}
	if len(swap.Accounts) != 18 {
		t.Fatalf("swap carries %d accounts, want 18", len(swap.Accounts))
	}
	if swap.Accounts[2].Pubkey != venue.RaydiumV4Authority {
		t.Errorf("account 2 = %s, want the AMM authority", swap.Accounts[2].Pubkey)
	}
	if swap.Accounts[8].Pubkey != rayTestMarket {
		t.Errorf("account 8 = %s, want the market", swap.Accounts[8].Pubkey)
	}
	if swap.Accounts[14].Pubkey != rayTestVaultSigner {
		t.Errorf("account 14 = %s, want the vault signer", swap.Accounts[14].Pubkey)
	}
	if swap.Accounts[17].Pubkey != kp.PublicKey() {
		t.Errorf("account 17 = %s, want the wallet", swap.Accounts[17].Pubkey)
	}

	if swap.Data[0] != raySwapBaseIn {
		t.Errorf("discriminator = %d, want swapBaseIn", swap.Data[0])
	}
	if amountIn := binary.LittleEndian.Uint64(swap.Data[1:]); amountIn != 1_000_000_000 {
		t.Errorf("amount in = %d, want 1000000000", amountIn)
	}
	if minOut := binary.LittleEndian.Uint64(swap.Data[9:]); minOut != 9777717270 {
		t.Errorf("minimum out = %d, want 9777717270", minOut)
	}
}

func TestRaydiumBuilder_BuildSell(t *testing.T) {
	kp := testKeypair(t)
	b := NewRaydiumBuilder(rayFakeRPC(), kp, Fees{RelayTipSOL: 0.0001}, 1)

	tx, err := b.Build(context.Background(), TradeIntent{Mint: rayTestMint, TokenAmount: 123.456789})
	if err != nil {
		t.Fatalf("build sell: %v", err)
	}

	swap, idx := findInstruction(decompile(t, tx), venue.RaydiumV4Program)
	if idx < 0 {
		t.Fatalf("no pool swap instruction in transaction")
	}
	if amountIn := binary.LittleEndian.Uint64(swap.Data[1:]); amountIn != 123_456_789 {
		t.Errorf("amount in = %d base units, want 123456789", amountIn)
	}
	// Selling into SOL prices against the token-side reserve.
	want := applySlippage(ammAmountOut(1_000_000_000_000, 100_000_000_000, 123_456_789, 25, 10000), 1)
	if minOut := binary.LittleEndian.Uint64(swap.Data[9:]); minOut != want {
		t.Errorf("minimum out = %d, want %d", minOut, want)
	}
}
