package venue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"

	"solana-copy-trader/internal/solana"
)

// fakeRPC satisfies the ledger client interface with canned responses.
type fakeRPC struct {
	decimals map[string]int
}

func (f *fakeRPC) GetParsedTransaction(ctx context.Context, signature string) (*solana.ParsedTransaction, error) {
	return nil, nil
}

func (f *fakeRPC) GetTokenDecimals(ctx context.Context, mint string) (int, error) {
	d, ok := f.decimals[mint]
	if !ok {
		return 0, fmt.Errorf("unknown mint %s", mint)
	}
	return d, nil
}

func (f *fakeRPC) GetSignatureStatus(ctx context.Context, signature string) (*solana.SignatureStatus, error) {
	return nil, nil
}

func (f *fakeRPC) GetLatestBlockhash(ctx context.Context) (*solana.Blockhash, error) {
	return &solana.Blockhash{Blockhash: "SysvarRent111111111111111111111111111111111"}, nil
}

func (f *fakeRPC) GetProgramAccounts(ctx context.Context, program string, filters []solana.AccountFilter) ([]solana.ProgramAccount, error) {
	return nil, nil
}

func (f *fakeRPC) GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]solana.TokenAccount, error) {
	return nil, nil
}

func (f *fakeRPC) GetMinimumBalanceForRentExemption(ctx context.Context, size int) (uint64, error) {
	return 2039280, nil
}

func (f *fakeRPC) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	return nil, nil
}

// mustDecodeKey decodes a base58 pubkey or panics; test fixtures only use
// well-formed keys.
func mustDecodeKey(s string) []byte {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != 32 {
		panic("bad test pubkey: " + s)
	}
	return raw
}

// encodeSwapLegPayload builds the base58 self-CPI payload of one aggregator
// swap event.
func encodeSwapLegPayload(inputMint string, inputAmount uint64, outputMint string, outputAmount uint64) string {
	buf := make([]byte, 0, 16+112)
	buf = append(buf, make([]byte, 8)...) // instruction prefix
	buf = append(buf, jupiterSwapEventDisc[:]...)
	buf = append(buf, make([]byte, 32)...) // amm
	buf = append(buf, mustDecodeKey(inputMint)...)
	buf = binary.LittleEndian.AppendUint64(buf, inputAmount)
	buf = append(buf, mustDecodeKey(outputMint)...)
	buf = binary.LittleEndian.AppendUint64(buf, outputAmount)
	return base58.Encode(buf)
}

// encodePumpTradePayload builds the base58 self-CPI payload of one bonding
// curve trade event.
func encodePumpTradePayload(mint string, solAmount, tokenAmount uint64, isBuy bool, user string) string {
	buf := make([]byte, 0, 16+105)
	buf = append(buf, make([]byte, 8)...) // instruction prefix
	buf = append(buf, pumpTradeEventDisc[:]...)
	buf = append(buf, mustDecodeKey(mint)...)
	buf = binary.LittleEndian.AppendUint64(buf, solAmount)
	buf = binary.LittleEndian.AppendUint64(buf, tokenAmount)
	if isBuy {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, mustDecodeKey(user)...)
	buf = binary.LittleEndian.AppendUint64(buf, 1700000000) // timestamp
	buf = binary.LittleEndian.AppendUint64(buf, 30_000_000_000)
	buf = binary.LittleEndian.AppendUint64(buf, 1_000_000_000_000)
	return base58.Encode(buf)
}

func infoMap(kv map[string]string) map[string]json.RawMessage {
	info := make(map[string]json.RawMessage, len(kv))
	for k, v := range kv {
		b, _ := json.Marshal(v)
		info[k] = b
	}
	return info
}

func parsedTransfer(authority, amount string) solana.ParsedInstruction {
	return solana.ParsedInstruction{
		Program:   "spl-token",
		ProgramID: "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
		Parsed: &solana.InstructionDetail{
			Type: "transfer",
			Info: infoMap(map[string]string{
				"authority": authority,
				"amount":    amount,
			}),
		},
	}
}

func wsolBalance(owner, amount string) solana.TokenBalance {
	return solana.TokenBalance{
		Mint:          "So11111111111111111111111111111111111111112",
		Owner:         owner,
		UITokenAmount: solana.UITokenAmount{Amount: amount, Decimals: 9},
	}
}
