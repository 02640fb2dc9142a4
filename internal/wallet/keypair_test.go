package wallet

import (
	"bytes"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeypair(t *testing.T) *Keypair {
	t.Helper()
	seed := bytes.Repeat([]byte{0x42}, ed25519.SeedSize)
	kp, err := FromSeed(seed)
	require.NoError(t, err)
	return kp
}

func TestFromBase58_RoundTrip(t *testing.T) {
	kp := testKeypair(t)

	secret := base58.Encode(kp.priv)
	loaded, err := FromBase58(secret)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), loaded.PublicKey())
}

func TestFromBase58_Invalid(t *testing.T) {
	_, err := FromBase58("not-base58-!!!")
	assert.Error(t, err)

	_, err = FromBase58(base58.Encode([]byte{1, 2, 3}))
	assert.Error(t, err)
}

func TestKeypair_Sign(t *testing.T) {
	kp := testKeypair(t)

	msg := []byte("bundle payload")
	sig := kp.Sign(msg)
	require.Len(t, sig, ed25519.SignatureSize)

	pub, err := base58.Decode(kp.PublicKey())
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(pub), msg, sig))
}

func TestValidateAddress(t *testing.T) {
	kp := testKeypair(t)

	assert.NoError(t, ValidateAddress(kp.PublicKey()))
	assert.Error(t, ValidateAddress("tooshort"))
	assert.Error(t, ValidateAddress("not+base58"))
}

func TestLoadWatchlist(t *testing.T) {
	kp := testKeypair(t)
	other, err := FromSeed(bytes.Repeat([]byte{0x07}, ed25519.SeedSize))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wallet_list.txt")
	content := "# tracked traders\n" +
		kp.PublicKey() + "\n" +
		"\n" +
		other.PublicKey() + "\n" +
		kp.PublicKey() + "\n" // duplicate
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	addrs, err := LoadWatchlist(path)
	require.NoError(t, err)
	assert.Equal(t, []string{kp.PublicKey(), other.PublicKey()}, addrs)
}

func TestLoadWatchlist_InvalidEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet_list.txt")
	require.NoError(t, os.WriteFile(path, []byte("garbage-line\n"), 0o644))

	_, err := LoadWatchlist(path)
	assert.Error(t, err)
}

func TestLoadWatchlist_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet_list.txt")
	require.NoError(t, os.WriteFile(path, []byte("# nothing here\n"), 0o644))

	_, err := LoadWatchlist(path)
	assert.Error(t, err)
}
