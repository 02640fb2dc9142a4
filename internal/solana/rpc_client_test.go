package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPClient_GetParsedTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != "getTransaction" {
			t.Errorf("expected method getTransaction, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"slot":      int64(123456),
				"blockTime": int64(1700000000),
				"meta": map[string]interface{}{
					"err":         nil,
					"logMessages": []string{"Program log: Instruction: Swap"},
					"preTokenBalances": []map[string]interface{}{
						{
							"accountIndex":  2,
							"mint":          "So11111111111111111111111111111111111111112",
							"owner":         "trader1",
							"uiTokenAmount": map[string]interface{}{"amount": "1000000000", "decimals": 9},
						},
					},
				},
				"transaction": map[string]interface{}{
					"message": map[string]interface{}{
						"accountKeys": []map[string]interface{}{
							{"pubkey": "trader1", "signer": true, "writable": true},
							{"pubkey": "pool1", "signer": false, "writable": true},
						},
					},
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	tx, err := client.GetParsedTransaction(ctx, "testsig123")
	if err != nil {
		t.Fatalf("GetParsedTransaction: %v", err)
	}

	if tx == nil {
		t.Fatal("expected transaction, got nil")
	}

	if tx.Slot != 123456 {
		t.Errorf("expected slot 123456, got %d", tx.Slot)
	}

	if tx.Signature != "testsig123" {
		t.Errorf("expected signature testsig123, got %s", tx.Signature)
	}

	if tx.Meta == nil {
		t.Fatal("expected meta, got nil")
	}

	if len(tx.Meta.PreTokenBalances) != 1 {
		t.Fatalf("expected 1 pre token balance, got %d", len(tx.Meta.PreTokenBalances))
	}

	if tx.Meta.PreTokenBalances[0].UITokenAmount.Amount != "1000000000" {
		t.Errorf("unexpected pre balance amount %s", tx.Meta.PreTokenBalances[0].UITokenAmount.Amount)
	}

	if tx.Message == nil {
		t.Fatal("expected message, got nil")
	}

	keys := tx.Message.Pubkeys()
	if len(keys) != 2 || keys[0] != "trader1" {
		t.Errorf("unexpected account keys %v", keys)
	}
}

func TestHTTPClient_GetParsedTransaction_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  nil,
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	tx, err := client.GetParsedTransaction(context.Background(), "unknownsig")
	if err != nil {
		t.Fatalf("GetParsedTransaction: %v", err)
	}
	if tx != nil {
		t.Error("expected nil for unknown signature")
	}
}

func TestHTTPClient_GetTokenDecimals(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getTokenSupply" {
			t.Errorf("expected method getTokenSupply, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": map[string]interface{}{
					"amount":   "1000000000000000",
					"decimals": 6,
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	decimals, err := client.GetTokenDecimals(context.Background(), "mint1")
	if err != nil {
		t.Fatalf("GetTokenDecimals: %v", err)
	}
	if decimals != 6 {
		t.Errorf("expected 6 decimals, got %d", decimals)
	}
}

func TestHTTPClient_GetSignatureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getSignatureStatuses" {
			t.Errorf("expected method getSignatureStatuses, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": []map[string]interface{}{
					{
						"slot":               int64(999),
						"confirmations":      10,
						"err":                nil,
						"confirmationStatus": "confirmed",
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	status, err := client.GetSignatureStatus(context.Background(), "sig1")
	if err != nil {
		t.Fatalf("GetSignatureStatus: %v", err)
	}
	if status == nil {
		t.Fatal("expected status, got nil")
	}
	if status.ConfirmationStatus != CommitmentConfirmed {
		t.Errorf("expected confirmed, got %s", status.ConfirmationStatus)
	}
}

func TestHTTPClient_GetProgramAccounts_Filters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getProgramAccounts" {
			t.Errorf("expected method getProgramAccounts, got %s", req.Method)
		}

		cfg, ok := req.Params[1].(map[string]interface{})
		if !ok {
			t.Fatalf("expected config object, got %T", req.Params[1])
		}
		filters, ok := cfg["filters"].([]interface{})
		if !ok || len(filters) != 2 {
			t.Fatalf("expected 2 filters, got %v", cfg["filters"])
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": []map[string]interface{}{
				{
					"pubkey": "pool1",
					"account": map[string]interface{}{
						"data":  []string{"AQID", "base64"},
						"owner": "program1",
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	accounts, err := client.GetProgramAccounts(context.Background(), "program1", []AccountFilter{
		{DataSize: 752},
		{Memcmp: &MemcmpFilter{Offset: 400, Bytes: "mint1"}},
	})
	if err != nil {
		t.Fatalf("GetProgramAccounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	if accounts[0].Pubkey != "pool1" {
		t.Errorf("expected pubkey pool1, got %s", accounts[0].Pubkey)
	}
	if len(accounts[0].Data) != 3 || accounts[0].Data[0] != 1 {
		t.Errorf("unexpected decoded data %v", accounts[0].Data)
	}
}

func TestHTTPClient_RetriesOn429(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  uint64(2039280),
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(3), WithRetryDelay(10*time.Millisecond))

	rent, err := client.GetMinimumBalanceForRentExemption(context.Background(), TokenAccountSize)
	if err != nil {
		t.Fatalf("GetMinimumBalanceForRentExemption: %v", err)
	}
	if rent != 2039280 {
		t.Errorf("expected 2039280 lamports, got %d", rent)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32602,
				"message": "invalid params",
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(10*time.Millisecond))

	_, err := client.GetLatestBlockhash(context.Background())
	if err == nil {
		t.Fatal("expected RPC error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}
