package builder

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/venue"
)

// Bonding-curve accounts shared by every pump.fun swap.
const (
	pumpGlobal       = "4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf"
	pumpFeeRecipient = "CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM"
	pumpEventAccount = "Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1"
)

// Anchor instruction discriminators for the bonding-curve program.
const (
	pumpBuyDiscriminator  uint64 = 16927863322537952870
	pumpSellDiscriminator uint64 = 12502976635542562355
)

const defaultPumpAPIBase = "https://frontend-api-v3.pump.fun"

// ProjectInfo is the bonding-curve state served by the pump.fun frontend
// API.
type ProjectInfo struct {
	Mint                   string `json:"mint"`
	BondingCurve           string `json:"bonding_curve"`
	AssociatedBondingCurve string `json:"associated_bonding_curve"`
	VirtualSolReserves     uint64 `json:"virtual_sol_reserves"`
	VirtualTokenReserves   uint64 `json:"virtual_token_reserves"`
	Complete               bool   `json:"complete"`
}

// PumpFunBuilder assembles bonding-curve swaps against the pump.fun
// program.
type PumpFunBuilder struct {
	rpc      solana.RPCClient
	wallet   solana.Signer
	fees     Fees
	slippage float64 // percent
	apiBase  string
	http     *http.Client
}

// PumpFunOption customizes a PumpFunBuilder.
type PumpFunOption func(*PumpFunBuilder)

// WithPumpAPIBase overrides the frontend API endpoint.
func WithPumpAPIBase(base string) PumpFunOption {
	return func(b *PumpFunBuilder) { b.apiBase = base }
}

// WithPumpHTTPClient overrides the HTTP client used for the frontend API.
func WithPumpHTTPClient(c *http.Client) PumpFunOption {
	return func(b *PumpFunBuilder) { b.http = c }
}

func NewPumpFunBuilder(rpc solana.RPCClient, wallet solana.Signer, fees Fees, slippagePercent float64, opts ...PumpFunOption) *PumpFunBuilder {
	b := &PumpFunBuilder{
		rpc:      rpc,
		wallet:   wallet,
		fees:     fees,
		slippage: slippagePercent,
		apiBase:  defaultPumpAPIBase,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *PumpFunBuilder) Name() string { return "pumpfun" }

// ProjectInfo fetches the current bonding-curve state for a mint.
func (b *PumpFunBuilder) ProjectInfo(ctx context.Context, mint string) (*ProjectInfo, error) {
	url := fmt.Sprintf("%s/coins/%s", b.apiBase, mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", "https://pump.fun")
	req.Header.Set("Referer", "https://pump.fun/")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch project info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("project info for %s: status %d", mint, resp.StatusCode)
	}

	var info ProjectInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode project info: %w", err)
	}
	if info.Mint == "" || info.BondingCurve == "" {
		return nil, fmt.Errorf("project info for %s: incomplete response", mint)
	}
	return &info, nil
}

// Build assembles and signs a bonding-curve swap for the intent.
func (b *PumpFunBuilder) Build(ctx context.Context, intent TradeIntent) (*solana.Transaction, error) {
	info, err := b.ProjectInfo(ctx, intent.Mint)
	if err != nil {
		return nil, err
	}
	if info.Complete {
		return nil, fmt.Errorf("bonding curve for %s has graduated", intent.Mint)
	}

	var amountIn uint64
	var data []byte
	if intent.IsBuy {
		amountIn = uint64(intent.SolAmount * float64(domain.LamportsPerSOL))
		out := curveAmountOut(info.VirtualSolReserves, info.VirtualTokenReserves, amountIn)
		minOut := applySlippage(out, b.slippage)
		data = pumpInstructionData(pumpBuyDiscriminator, minOut, amountIn)
	} else {
		amountIn = domain.ToBaseUnits(intent.TokenAmount, venue.PumpTokenDecimals)
		// Sells take whatever the curve gives; amountIn alone bounds
		// the trade.
		data = pumpInstructionData(pumpSellDiscriminator, amountIn, 0)
	}

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

	instrs := append([]solana.Instruction{}, wsolAccount.Setup...)
	instrs = append(instrs, mintAccount.Setup...)
	instrs = append(instrs, b.swapInstruction(info, mintAccount.Address, intent.IsBuy, data))
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

func (b *PumpFunBuilder) swapInstruction(info *ProjectInfo, userTokenAccount string, isBuy bool, data []byte) solana.Instruction {
	tokenOrATA := solana.TokenProgram
	rentOrToken := solana.RentSysvar
	if !isBuy {
		tokenOrATA = solana.AssociatedTokenProgram
		rentOrToken = solana.TokenProgram
	}
	return solana.Instruction{
		ProgramID: venue.PumpFunProgram,
		Accounts: []solana.AccountMeta{
			solana.MetaReadonly(pumpGlobal, false),
			solana.Meta(pumpFeeRecipient, false),
			solana.MetaReadonly(info.Mint, false),
			solana.Meta(info.BondingCurve, false),
			solana.Meta(info.AssociatedBondingCurve, false),
			solana.Meta(userTokenAccount, false),
			solana.Meta(b.wallet.PublicKey(), true),
			solana.MetaReadonly(solana.SystemProgram, false),
			solana.MetaReadonly(tokenOrATA, false),
			solana.MetaReadonly(rentOrToken, false),
			solana.MetaReadonly(pumpEventAccount, false),
			solana.MetaReadonly(venue.PumpFunProgram, false),
		},
		Data: data,
	}
}

func pumpInstructionData(discriminator, amount, limit uint64) []byte {
	data := make([]byte, 24)
	binary.LittleEndian.PutUint64(data[0:], discriminator)
	binary.LittleEndian.PutUint64(data[8:], amount)
	binary.LittleEndian.PutUint64(data[16:], limit)
	return data
}

// curveAmountOut prices a swap against virtual reserves with the
// constant-product rule out = quote*in/(base+in).
func curveAmountOut(baseReserve, quoteReserve, amountIn uint64) uint64 {
	in := new(big.Int).SetUint64(amountIn)
	num := new(big.Int).Mul(new(big.Int).SetUint64(quoteReserve), in)
	den := new(big.Int).Add(new(big.Int).SetUint64(baseReserve), in)
	return new(big.Int).Div(num, den).Uint64()
}
