package builder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

const defaultJupiterAPIBase = "https://quote-api.jup.ag/v6"

// JupiterBuilder routes swaps through the aggregator's quote/swap API. The
// API returns a serialized transaction, so building means deserializing it,
// appending the relay tip and re-signing.
type JupiterBuilder struct {
	rpc         solana.RPCClient
	wallet      solana.Signer
	fees        Fees
	slippageBps int
	apiBase     string
	http        *http.Client
}

// JupiterOption customizes a JupiterBuilder.
type JupiterOption func(*JupiterBuilder)

// WithJupiterAPIBase overrides the quote API endpoint.
func WithJupiterAPIBase(base string) JupiterOption {
	return func(b *JupiterBuilder) { b.apiBase = base }
}

// WithJupiterHTTPClient overrides the HTTP client used for the quote API.
func WithJupiterHTTPClient(c *http.Client) JupiterOption {
	return func(b *JupiterBuilder) { b.http = c }
}

func NewJupiterBuilder(rpc solana.RPCClient, wallet solana.Signer, fees Fees, slippageBps int, opts ...JupiterOption) *JupiterBuilder {
	b := &JupiterBuilder{
		rpc:         rpc,
		wallet:      wallet,
		fees:        fees,
		slippageBps: slippageBps,
		apiBase:     defaultJupiterAPIBase,
		http:        &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *JupiterBuilder) Name() string { return "jupiter" }

// Quote asks the aggregator for a route. The response is kept opaque and
// passed back verbatim to the swap endpoint.
func (b *JupiterBuilder) Quote(ctx context.Context, inputMint, outputMint string, amount uint64) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(b.slippageBps))
	q.Set("asLegacyTransaction", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.apiBase+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote %s->%s: status %d", inputMint, outputMint, resp.StatusCode)
	}

	var quote json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	return quote, nil
}

type jupiterSwapRequest struct {
	QuoteResponse             json.RawMessage      `json:"quoteResponse"`
	UserPublicKey             string               `json:"userPublicKey"`
	WrapAndUnwrapSol          bool                 `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool                 `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports uint64               `json:"prioritizationFeeLamports"`
	DynamicSlippage           jupiterSlippageParam `json:"dynamicSlippage"`
	AsLegacyTransaction       bool                 `json:"asLegacyTransaction"`
}

type jupiterSlippageParam struct {
	MaxBps int `json:"maxBps"`
}

type jupiterSwapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// swapTransaction exchanges a quote for the serialized transaction.
func (b *JupiterBuilder) swapTransaction(ctx context.Context, quote json.RawMessage) ([]byte, error) {
	body, err := json.Marshal(jupiterSwapRequest{
		QuoteResponse:             quote,
		UserPublicKey:             b.wallet.PublicKey(),
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: uint64(b.fees.PriorityFeeSOL * float64(domain.LamportsPerSOL)),
		DynamicSlippage:           jupiterSlippageParam{MaxBps: b.slippageBps},
		AsLegacyTransaction:       true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiBase+"/swap", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch swap transaction: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swap request: status %d", resp.StatusCode)
	}

	var swap jupiterSwapResponse
	if err := json.NewDecoder(resp.Body).Decode(&swap); err != nil {
		return nil, fmt.Errorf("decode swap response: %w", err)
	}
	if swap.SwapTransaction == "" {
		return nil, fmt.Errorf("swap response carried no transaction")
	}
	return base64.StdEncoding.DecodeString(swap.SwapTransaction)
}

// Build quotes the route, fetches the aggregator's transaction, appends the
// relay tip and re-signs it.
func (b *JupiterBuilder) Build(ctx context.Context, intent TradeIntent) (*solana.Transaction, error) {
	var inputMint, outputMint string
	var amount uint64
	if intent.IsBuy {
		inputMint, outputMint = domain.SOLMint, intent.Mint
		amount = uint64(intent.SolAmount * float64(domain.LamportsPerSOL))
	} else {
		inputMint, outputMint = intent.Mint, domain.SOLMint
		decimals, err := b.rpc.GetTokenDecimals(ctx, intent.Mint)
		if err != nil {
			return nil, fmt.Errorf("token decimals for %s: %w", intent.Mint, err)
		}
		amount = domain.ToBaseUnits(intent.TokenAmount, decimals)
	}

	quote, err := b.Quote(ctx, inputMint, outputMint, amount)
	if err != nil {
		return nil, err
	}
	raw, err := b.swapTransaction(ctx, quote)
	if err != nil {
		return nil, err
	}

	tx, err := solana.DeserializeTransaction(raw)
	if err != nil {
		return nil, fmt.Errorf("deserialize swap transaction: %w", err)
	}
	feePayer, blockhash, instrs, err := tx.Decompile()
	if err != nil {
		return nil, fmt.Errorf("decompile swap transaction: %w", err)
	}
	if feePayer != b.wallet.PublicKey() {
		return nil, fmt.Errorf("swap transaction fee payer %s is not the wallet", feePayer)
	}

	instrs = append(instrs, tipInstruction(b.wallet.PublicKey(), b.fees))
	tipped, err := solana.CompileTransaction(feePayer, blockhash, instrs)
	if err != nil {
		return nil, err
	}
	if err := tipped.Sign(b.wallet); err != nil {
		return nil, err
	}
	return tipped, nil
}
