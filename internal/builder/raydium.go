package builder

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/mr-tron/base58"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/venue"
)

// Raydium V4 AMM state layout (752 bytes).
const (
	raydiumPoolStateSize = 752

	poolBaseDecimalOffset   = 32
	poolQuoteDecimalOffset  = 40
	poolSwapFeeNumOffset    = 176
	poolSwapFeeDenOffset    = 184
	poolBaseNeedTakePnl     = 192
	poolQuoteNeedTakePnl    = 200
	poolBaseVaultOffset     = 336
	poolQuoteVaultOffset    = 368
	poolBaseMintOffset      = 400
	poolQuoteMintOffset     = 432
	poolOpenOrdersOffset    = 496
	poolMarketIDOffset      = 528
	poolMarketProgramOffset = 560
	poolTargetOrdersOffset  = 592
)

// Serum/OpenBook market state v3 layout.
const (
	marketOwnAddressOffset = 13
	marketVaultNonceOffset = 45
	marketBaseVaultOffset  = 117
	marketQuoteVaultOffset = 165
	marketEventQueueOffset = 253
	marketBidsOffset       = 285
	marketAsksOffset       = 317
	marketStateMinSize     = 349
)

const raySwapBaseIn byte = 9

// SPL token account balance lives at a fixed offset in the raw layout.
const tokenAccountAmountOffset = 64

// PoolKeys is everything needed to hit a Raydium V4 pool: the AMM state
// accounts plus the serum market accounts the program cranks against.
type PoolKeys struct {
	ID            string
	BaseMint      string
	QuoteMint     string
	BaseDecimals  int
	QuoteDecimals int
	BaseVault     string
	QuoteVault    string
	OpenOrders    string
	TargetOrders  string

	MarketProgram     string
	MarketID          string
	MarketBids        string
	MarketAsks        string
	MarketEventQueue  string
	MarketBaseVault   string
	MarketQuoteVault  string
	MarketVaultSigner string

	SwapFeeNumerator   uint64
	SwapFeeDenominator uint64
	baseNeedTakePnl    uint64
	quoteNeedTakePnl   uint64
}

// RaydiumBuilder assembles swaps against Raydium V4 constant-product pools.
type RaydiumBuilder struct {
	rpc      solana.RPCClient
	wallet   solana.Signer
	fees     Fees
	slippage float64 // percent
}

func NewRaydiumBuilder(rpc solana.RPCClient, wallet solana.Signer, fees Fees, slippagePercent float64) *RaydiumBuilder {
	return &RaydiumBuilder{rpc: rpc, wallet: wallet, fees: fees, slippage: slippagePercent}
}

func (b *RaydiumBuilder) Name() string { return "raydium" }

// FindPool locates the SOL pool for a mint, trying both base/quote
// orientations.
func (b *RaydiumBuilder) FindPool(ctx context.Context, mint string) (*PoolKeys, error) {
	keys, err := b.findPoolOriented(ctx, mint, domain.SOLMint)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys, err = b.findPoolOriented(ctx, domain.SOLMint, mint)
		if err != nil {
			return nil, err
		}
	}
	if keys == nil {
		return nil, fmt.Errorf("no raydium pool for %s", mint)
	}
	return keys, nil
}

func (b *RaydiumBuilder) findPoolOriented(ctx context.Context, baseMint, quoteMint string) (*PoolKeys, error) {
	accounts, err := b.rpc.GetProgramAccounts(ctx, venue.RaydiumV4Program, []solana.AccountFilter{
		{DataSize: raydiumPoolStateSize},
		{Memcmp: &solana.MemcmpFilter{Offset: poolBaseMintOffset, Bytes: baseMint}},
		{Memcmp: &solana.MemcmpFilter{Offset: poolQuoteMintOffset, Bytes: quoteMint}},
	})
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	if len(accounts) == 0 {
		return nil, nil
	}

	pool := accounts[0]
	keys, err := parsePoolState(pool.Pubkey, pool.Data)
	if err != nil {
		return nil, err
	}

	market, err := b.rpc.GetAccountInfo(ctx, keys.MarketID)
	if err != nil {
		return nil, fmt.Errorf("fetch market %s: %w", keys.MarketID, err)
	}
	if market == nil {
		return nil, fmt.Errorf("market %s not found", keys.MarketID)
	}
	if err := parseMarketState(keys, market.Data); err != nil {
		return nil, err
	}
	return keys, nil
}

func parsePoolState(pubkey string, data []byte) (*PoolKeys, error) {
	if len(data) < raydiumPoolStateSize {
		return nil, fmt.Errorf("pool %s: state is %d bytes, want %d", pubkey, len(data), raydiumPoolStateSize)
	}
	return &PoolKeys{
		ID:                 pubkey,
		BaseMint:           pubkeyAt(data, poolBaseMintOffset),
		QuoteMint:          pubkeyAt(data, poolQuoteMintOffset),
		BaseDecimals:       int(binary.LittleEndian.Uint64(data[poolBaseDecimalOffset:])),
		QuoteDecimals:      int(binary.LittleEndian.Uint64(data[poolQuoteDecimalOffset:])),
		BaseVault:          pubkeyAt(data, poolBaseVaultOffset),
		QuoteVault:         pubkeyAt(data, poolQuoteVaultOffset),
		OpenOrders:         pubkeyAt(data, poolOpenOrdersOffset),
		TargetOrders:       pubkeyAt(data, poolTargetOrdersOffset),
		MarketProgram:      pubkeyAt(data, poolMarketProgramOffset),
		MarketID:           pubkeyAt(data, poolMarketIDOffset),
		SwapFeeNumerator:   binary.LittleEndian.Uint64(data[poolSwapFeeNumOffset:]),
		SwapFeeDenominator: binary.LittleEndian.Uint64(data[poolSwapFeeDenOffset:]),
		baseNeedTakePnl:    binary.LittleEndian.Uint64(data[poolBaseNeedTakePnl:]),
		quoteNeedTakePnl:   binary.LittleEndian.Uint64(data[poolQuoteNeedTakePnl:]),
	}, nil
}

func parseMarketState(keys *PoolKeys, data []byte) error {
	if len(data) < marketStateMinSize {
		return fmt.Errorf("market %s: state is %d bytes", keys.MarketID, len(data))
	}
	keys.MarketBaseVault = pubkeyAt(data, marketBaseVaultOffset)
	keys.MarketQuoteVault = pubkeyAt(data, marketQuoteVaultOffset)
	keys.MarketEventQueue = pubkeyAt(data, marketEventQueueOffset)
	keys.MarketBids = pubkeyAt(data, marketBidsOffset)
	keys.MarketAsks = pubkeyAt(data, marketAsksOffset)

	nonce := make([]byte, 8)
	copy(nonce, data[marketVaultNonceOffset:marketVaultNonceOffset+8])
	marketRaw := data[marketOwnAddressOffset : marketOwnAddressOffset+32]
	signer, err := solana.CreateProgramAddress([][]byte{marketRaw, nonce}, keys.MarketProgram)
	if err != nil {
		return fmt.Errorf("derive vault signer for %s: %w", keys.MarketID, err)
	}
	keys.MarketVaultSigner = signer
	return nil
}

func pubkeyAt(data []byte, offset int) string {
	return base58.Encode(data[offset : offset+32])
}

// reserves fetches the live vault balances, net of protocol fees pending
// withdrawal.
func (b *RaydiumBuilder) reserves(ctx context.Context, keys *PoolKeys) (base, quote uint64, err error) {
	base, err = b.vaultBalance(ctx, keys.BaseVault)
	if err != nil {
		return 0, 0, err
	}
	quote, err = b.vaultBalance(ctx, keys.QuoteVault)
	if err != nil {
		return 0, 0, err
	}
	if base > keys.baseNeedTakePnl {
		base -= keys.baseNeedTakePnl
	}
	if quote > keys.quoteNeedTakePnl {
		quote -= keys.quoteNeedTakePnl
	}
	return base, quote, nil
}

func (b *RaydiumBuilder) vaultBalance(ctx context.Context, vault string) (uint64, error) {
	info, err := b.rpc.GetAccountInfo(ctx, vault)
	if err != nil {
		return 0, fmt.Errorf("fetch vault %s: %w", vault, err)
	}
	if info == nil || len(info.Data) < tokenAccountAmountOffset+8 {
		return 0, fmt.Errorf("vault %s: missing or truncated account", vault)
	}
	return binary.LittleEndian.Uint64(info.Data[tokenAccountAmountOffset:]), nil
}

// ammAmountOut prices a swap through a constant-product pool. The 0.25%
// swap fee comes off the input before the product rule applies.
func ammAmountOut(reserveIn, reserveOut, amountIn, feeNum, feeDen uint64) uint64 {
	if feeDen == 0 {
		feeDen = 10000
		feeNum = 25
	}
	in := new(big.Int).SetUint64(amountIn)
	in.Mul(in, new(big.Int).SetUint64(feeDen-feeNum))
	in.Div(in, new(big.Int).SetUint64(feeDen))

	num := new(big.Int).Mul(new(big.Int).SetUint64(reserveOut), in)
	den := new(big.Int).Add(new(big.Int).SetUint64(reserveIn), in)
	return new(big.Int).Div(num, den).Uint64()
}

// Build assembles and signs a pool swap for the intent.
func (b *RaydiumBuilder) Build(ctx context.Context, intent TradeIntent) (*solana.Transaction, error) {
	keys, err := b.FindPool(ctx, intent.Mint)
	if err != nil {
		return nil, err
	}

	baseReserve, quoteReserve, err := b.reserves(ctx, keys)
	if err != nil {
		return nil, err
	}

	inputMint := domain.SOLMint
	if !intent.IsBuy {
		inputMint = intent.Mint
	}

	tokenDecimals := keys.BaseDecimals
	if keys.BaseMint == domain.SOLMint {
		tokenDecimals = keys.QuoteDecimals
	}
	var amountIn uint64
	if intent.IsBuy {
		amountIn = uint64(intent.SolAmount * float64(domain.LamportsPerSOL))
	} else {
		amountIn = domain.ToBaseUnits(intent.TokenAmount, tokenDecimals)
	}

	reserveIn, reserveOut := baseReserve, quoteReserve
	if keys.BaseMint != inputMint {
		reserveIn, reserveOut = quoteReserve, baseReserve
	}
	out := ammAmountOut(reserveIn, reserveOut, amountIn, keys.SwapFeeNumerator, keys.SwapFeeDenominator)
	minOut := applySlippage(out, b.slippage)

	var wrapLamports uint64
	if intent.IsBuy {
		wrapLamports = amountIn
	}
	wsolAccount, err := resolveTokenAccount(ctx, b.rpc, b.wallet.PublicKey(), domain.SOLMint, wrapLamports)
	if err != nil {
		return nil, err
	}
	mintAccount, err := resolveTokenAccount(ctx, b.rpc, b.wallet.PublicKey(), intent.Mint, 0)
	if err != nil {
		return nil, err
	}

	source, dest := wsolAccount, mintAccount
	if inputMint != domain.SOLMint {
		source, dest = mintAccount, wsolAccount
	}

	instrs := append([]solana.Instruction{}, wsolAccount.Setup...)
	instrs = append(instrs, mintAccount.Setup...)
	instrs = append(instrs, b.swapInstruction(keys, source.Address, dest.Address, amountIn, minOut))
	if wsolAccount.Ephemeral {
		instrs = append(instrs, solana.CloseTokenAccountInstruction(
			wsolAccount.Address, b.wallet.PublicKey(), b.wallet.PublicKey(),
		))
	}

	blockhash, err := b.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest blockhash: %w", err)
	}
	return assemble(b.wallet, blockhash.Blockhash, instrs, b.fees)
}

// swapInstruction encodes swapBaseIn against the pool and its serum market.
func (b *RaydiumBuilder) swapInstruction(keys *PoolKeys, source, dest string, amountIn, minOut uint64) solana.Instruction {
	data := make([]byte, 17)
	data[0] = raySwapBaseIn
	binary.LittleEndian.PutUint64(data[1:], amountIn)
	binary.LittleEndian.PutUint64(data[9:], minOut)

	return solana.Instruction{
		ProgramID: venue.RaydiumV4Program,
		Accounts: []solana.AccountMeta{
			solana.MetaReadonly(solana.TokenProgram, false),
			solana.Meta(keys.ID, false),
			solana.MetaReadonly(venue.RaydiumV4Authority, false),
			solana.Meta(keys.OpenOrders, false),
			solana.Meta(keys.TargetOrders, false),
			solana.Meta(keys.BaseVault, false),
			solana.Meta(keys.QuoteVault, false),
			solana.MetaReadonly(keys.MarketProgram, false),
			solana.Meta(keys.MarketID, false),
			solana.Meta(keys.MarketBids, false),
			solana.Meta(keys.MarketAsks, false),
			solana.Meta(keys.MarketEventQueue, false),
			solana.Meta(keys.MarketBaseVault, false),
			solana.Meta(keys.MarketQuoteVault, false),
			solana.MetaReadonly(keys.MarketVaultSigner, false),
			solana.Meta(source, false),
			solana.Meta(dest, false),
			solana.MetaReadonly(b.wallet.PublicKey(), true),
		},
		Data: data,
	}
}
