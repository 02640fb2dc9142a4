package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

func sampleTrade(signature string) *domain.TradeRecord {
	return &domain.TradeRecord{
		Signature:     signature,
		PeerSignature: "peerSig1",
		PeerWallet:    "walletA",
		Mint:          "MintA",
		Venue:         "raydium",
		Side:          domain.EntryBuy,
		SolAmount:     1.5,
		TokenAmount:   48000,
		Status:        domain.TradeConfirmed,
		SubmittedAt:   1700000000000,
		ConfirmedAt:   ptr(int64(1700000002000)),
	}
}

func TestTradeRecordStore_InsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeRecordStore(pool)
	ctx := context.Background()

	trade := sampleTrade("sig1")
	require.NoError(t, store.Insert(ctx, trade))

	got, err := store.GetBySignature(ctx, "sig1")
	require.NoError(t, err)
	assert.Equal(t, trade, got)

	// Duplicate signature rejected.
	err = store.Insert(ctx, sampleTrade("sig1"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetBySignature(ctx, "unknown")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeRecordStore_Queries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeRecordStore(pool)
	ctx := context.Background()

	first := sampleTrade("sig1")
	first.SubmittedAt = 1000

	second := sampleTrade("sig2")
	second.SubmittedAt = 2000
	second.Side = domain.EntrySell
	second.Status = domain.TradeTimedOut
	second.ConfirmedAt = nil

	other := sampleTrade("sig3")
	other.Mint = "MintB"
	other.PeerWallet = "walletB"

	for _, tr := range []*domain.TradeRecord{second, first, other} {
		require.NoError(t, store.Insert(ctx, tr))
	}

	byMint, err := store.GetByMint(ctx, "MintA")
	require.NoError(t, err)
	require.Len(t, byMint, 2)
	assert.Equal(t, "sig1", byMint[0].Signature)
	assert.Equal(t, "sig2", byMint[1].Signature)
	assert.Nil(t, byMint[1].ConfirmedAt)

	byWallet, err := store.GetByPeerWallet(ctx, "walletB")
	require.NoError(t, err)
	require.Len(t, byWallet, 1)
	assert.Equal(t, "sig3", byWallet[0].Signature)
}

func TestSnapshotStore_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	snap := domain.NewSnapshot()
	snap.Peer["MintA"] = &domain.Position{Asset: "MintA", Amount: 100}
	snap.Own["MintA"] = &domain.Position{Asset: "MintA", Amount: 7.5}
	require.NoError(t, store.Save(ctx, snap))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Peer, loaded.Peer)
	assert.Equal(t, snap.Own, loaded.Own)

	// Save overwrites the single row.
	snap.Own["MintA"].Amount = 3
	require.NoError(t, store.Save(ctx, snap))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, loaded.Own.Amount("MintA"))
}
