package builder

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mr-tron/base58"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/wallet"
)

const jupTestMint = "Fw5KdYvFgue4q1HAQ264JTZax6VUr3jDVBJ1szuQ7dHE"

// jupiterAPIServer fakes the v6 quote/swap endpoints. The swap endpoint
// returns a pre-signed legacy transaction paying fees from feePayer.
func jupiterAPIServer(t *testing.T, feePayer *wallet.Keypair, quoteQuery *map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			if quoteQuery != nil {
				captured := map[string]string{}
				for k, v := range r.URL.Query() {
					captured[k] = v[0]
				}
				*quoteQuery = captured
			}
			w.Write([]byte(`{"inAmount":"1000000000","outAmount":"32000000"}`))
		case "/swap":
			var req struct {
				QuoteResponse json.RawMessage `json:"quoteResponse"`
				UserPublicKey string          `json:"userPublicKey"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode swap request: %v", err)
			}
			if quoteQuery != nil && req.UserPublicKey != feePayer.PublicKey() {
				t.Errorf("swap request user = %s, want %s", req.UserPublicKey, feePayer.PublicKey())
			}
			if len(req.QuoteResponse) == 0 {
				t.Error("swap request carried no quote")
			}

			instrs := []solana.Instruction{
				solana.TransferInstruction(feePayer.PublicKey(), solana.RentSysvar, 1),
			}
			tx, err := solana.CompileTransaction(feePayer.PublicKey(), testBlockhash, instrs)
			if err != nil {
				t.Errorf("compile route transaction: %v", err)
				return
			}
			if err := tx.Sign(feePayer); err != nil {
				t.Errorf("sign route transaction: %v", err)
				return
			}
			raw, err := tx.Serialize()
			if err != nil {
				t.Errorf("serialize route transaction: %v", err)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"swapTransaction": base64.StdEncoding.EncodeToString(raw),
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestJupiterBuilder_BuildBuy(t *testing.T) {
	kp := testKeypair(t)
	var query map[string]string
	srv := jupiterAPIServer(t, kp, &query)
	defer srv.Close()

	b := NewJupiterBuilder(&fakeRPC{}, kp, Fees{RelayTipSOL: 0.0001}, 150,
		WithJupiterAPIBase(srv.URL))

	tx, err := b.Build(context.Background(), TradeIntent{Mint: jupTestMint, IsBuy: true, SolAmount: 2})
	if err != nil {
		t.Fatalf("build buy: %v", err)
	}

	if query["inputMint"] != domain.SOLMint || query["outputMint"] != jupTestMint {
		t.Errorf("quote route = %s->%s", query["inputMint"], query["outputMint"])
	}
	if query["amount"] != "2000000000" {
		t.Errorf("quote amount = %s, want 2000000000", query["amount"])
	}
	if query["slippageBps"] != "150" {
		t.Errorf("quote slippageBps = %s, want 150", query["slippageBps"])
	}
	if query["asLegacyTransaction"] != "true" {
		t.Error("quote did not request a legacy transaction")
	}

	instrs := decompile(t, tx)
	if len(instrs) != 2 {
		t.Fatalf("got %d instructions, want route transfer plus tip", len(instrs))
	}
	tip := instrs[len(instrs)-1]
	if tip.ProgramID != solana.SystemProgram {
		t.Fatalf("appended instruction is not a system transfer")
	}
	if lamports := binary.LittleEndian.Uint64(tip.Data[4:]); lamports != 100000 {
		t.Errorf("tip = %d lamports, want 100000", lamports)
	}

	// Re-signing must produce a valid signature over the new message.
	msg, err := tx.Message.Serialize()
	if err != nil {
		t.Fatalf("serialize message: %v", err)
	}
	pub, err := base58.Decode(kp.PublicKey())
	if err != nil {
		t.Fatalf("decode wallet pubkey: %v", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, tx.Signatures[0]) {
		t.Error("rebuilt transaction signature does not verify")
	}
}

func TestJupiterBuilder_BuildSell(t *testing.T) {
	kp := testKeypair(t)
	var query map[string]string
	srv := jupiterAPIServer(t, kp, &query)
	defer srv.Close()

	rpc := &fakeRPC{decimals: map[string]int{jupTestMint: 6}}
	b := NewJupiterBuilder(rpc, kp, Fees{RelayTipSOL: 0.0001}, 150, WithJupiterAPIBase(srv.URL))

	if _, err := b.Build(context.Background(), TradeIntent{Mint: jupTestMint, TokenAmount: 250}); err != nil {
		t.Fatalf("build sell: %v", err)
	}
	if query["inputMint"] != jupTestMint || query["outputMint"] != domain.SOLMint {
		t.Errorf("quote route = %s->%s", query["inputMint"], query["outputMint"])
	}
	if query["amount"] != "250000000" {
		t.Errorf("quote amount = %s, want 250000000", query["amount"])
	}
}

func TestJupiterBuilder_RejectsForeignFeePayer(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(0x80 + i)
	}
	other, err := wallet.FromSeed(seed)
	if err != nil {
		t.Fatalf("keypair from seed: %v", err)
	}

	srv := jupiterAPIServer(t, other, nil)
	defer srv.Close()

	kp := testKeypair(t)
	b := NewJupiterBuilder(&fakeRPC{}, kp, Fees{}, 150, WithJupiterAPIBase(srv.URL))
	if _, err := b.Build(context.Background(), TradeIntent{Mint: jupTestMint, IsBuy: true, SolAmount: 1}); err == nil {
		t.Fatal("expected an error when the route pays fees from another wallet")
	}
}
