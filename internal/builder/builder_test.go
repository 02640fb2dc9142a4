package builder

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/wallet"
)

const testBlockhash = "SysvarRent111111111111111111111111111111111"

// fakeRPC satisfies the ledger client interface with canned responses and
// optional per-method hooks.
type fakeRPC struct {
	decimals        map[string]int
	tokenAccounts   map[string][]solana.TokenAccount
	accountInfos    map[string]*solana.AccountInfo
	programAccounts func(program string, filters []solana.AccountFilter) []solana.ProgramAccount
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
	return &solana.Blockhash{Blockhash: testBlockhash}, nil
}

func (f *fakeRPC) GetProgramAccounts(ctx context.Context, program string, filters []solana.AccountFilter) ([]solana.ProgramAccount, error) {
	if f.programAccounts == nil {
		return nil, nil
	}
	return f.programAccounts(program, filters), nil
}

func (f *fakeRPC) GetTokenAccountsByOwner(ctx context.Context, owner, mint string) ([]solana.TokenAccount, error) {
	return f.tokenAccounts[mint], nil
}

func (f *fakeRPC) GetMinimumBalanceForRentExemption(ctx context.Context, size int) (uint64, error) {
	return 2039280, nil
}

func (f *fakeRPC) GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	return f.accountInfos[pubkey], nil
}

// testKeypair derives a deterministic wallet for builder tests.
func testKeypair(t *testing.T) *wallet.Keypair {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	kp, err := wallet.FromSeed(seed)
	if err != nil {
		t.Fatalf("keypair from seed: %v", err)
	}
	return kp
}

// decompile unpacks a built transaction back into its instruction list.
func decompile(t *testing.T, tx *solana.Transaction) []solana.Instruction {
	t.Helper()
	_, _, instrs, err := tx.Decompile()
	if err != nil {
		t.Fatalf("decompile built transaction: %v", err)
	}
	return instrs
}

// findInstruction returns the first instruction for a program, with its
// index.
func findInstruction(instrs []solana.Instruction, programID string) (solana.Instruction, int) {
	for i, in := range instrs {
		if in.ProgramID == programID {
			return in, i
		}
	}
	return solana.Instruction{}, -1
}

func TestRandomTipAccount(t *testing.T) {
	for i := 0; i < 20; i++ {
		got := RandomTipAccount()
		found := false
		for _, acct := range relayTipAccounts {
			if acct == got {
				found = true
			}
		}
		if !found {
			t.Fatalf("tip account %s not in the validator list", got)
		}
	}
}

func TestApplySlippage(t *testing.T) {
	if got := applySlippage(10000, 1); got != 9900 {
		t.Errorf("applySlippage(10000, 1) = %d, want 9900", got)
	}
	if got := applySlippage(10000, 0); got != 10000 {
		t.Errorf("applySlippage(10000, 0) = %d, want 10000", got)
	}
	if got := applySlippage(32258064516, 1); got != 31935483870 {
		t.Errorf("applySlippage(32258064516, 1) = %d, want 31935483870", got)
	}
}

func TestAssemble_InstructionEnvelope(t *testing.T) {
	kp := testKeypair(t)
	swap := solana.TransferInstruction(kp.PublicKey(), solana.RentSysvar, 1)

	tx, err := assemble(kp, testBlockhash, []solana.Instruction{swap}, Fees{
		PriorityFeeSOL: 0.0001,
		RelayTipSOL:    0.0002,
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	instrs := decompile(t, tx)
	if len(instrs) != 4 {
		t.Fatalf("got %d instructions, want 4", len(instrs))
	}
	if instrs[0].ProgramID != solana.ComputeBudgetProgram || instrs[0].Data[0] != 2 {
		t.Errorf("instruction 0 is not the compute unit limit")
	}
	if units := binary.LittleEndian.Uint32(instrs[0].Data[1:]); units != computeUnitLimit {
		t.Errorf("compute unit limit = %d, want %d", units, computeUnitLimit)
	}
	if instrs[1].ProgramID != solana.ComputeBudgetProgram || instrs[1].Data[0] != 3 {
		t.Errorf("instruction 1 is not the compute unit price")
	}
	if micro := binary.LittleEndian.Uint64(instrs[1].Data[1:]); micro != 100000 {
		t.Errorf("priority fee = %d micro-lamports, want 100000", micro)
	}

	tip := instrs[3]
	if tip.ProgramID != solana.SystemProgram {
		t.Fatalf("last instruction is not a system transfer")
	}
	if lamports := binary.LittleEndian.Uint64(tip.Data[4:]); lamports != 200000 {
		t.Errorf("tip = %d lamports, want 200000", lamports)
	}
}

func TestAssemble_NoPriorityFee(t *testing.T) {
	kp := testKeypair(t)
	swap := solana.TransferInstruction(kp.PublicKey(), solana.RentSysvar, 1)

	tx, err := assemble(kp, testBlockhash, []solana.Instruction{swap}, Fees{RelayTipSOL: 0.0001})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	instrs := decompile(t, tx)
	if len(instrs) != 3 {
		t.Fatalf("got %d instructions, want 3 when no priority fee is set", len(instrs))
	}
}
