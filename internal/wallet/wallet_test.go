package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aman-zulfiqar/escrow-solver/internal/ledger"
	"github.com/fxamacker/cbor/v2"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func testSeed() []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func TestParsePrivateKey_Formats(t *testing.T) {
	seed := testSeed()
	want := ed25519.NewKeyFromSeed(seed)

	ints := make([]int, len(want))
	for i, b := range want {
		ints[i] = int(b)
	}
	jsonKey, err := json.Marshal(ints)
	require.NoError(t, err)

	inputs := map[string]string{
		"hex seed":     hex.EncodeToString(seed),
		"cbor hex":     "5820" + hex.EncodeToString(seed),
		"hex key":      hex.EncodeToString(want),
		"base58 key":   base58.Encode(want),
		"json array":   string(jsonKey),
		"padded input": "  " + hex.EncodeToString(seed) + "\n",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got, err := parsePrivateKey(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParsePrivateKey_Invalid(t *testing.T) {
	_, err := parsePrivateKey("abcd")
	assert.Error(t, err)

	_, err = parsePrivateKey("[1, 2, 300]")
	assert.Error(t, err)

	_, err = parsePrivateKey("not-a-key-0OIl")
	assert.Error(t, err)
}

func TestNewWallet(t *testing.T) {
	_, err := NewWallet(WalletConfig{})
	assert.ErrorIs(t, err, ErrNoKey)

	w, err := NewWallet(WalletConfig{PrivateKey: hex.EncodeToString(testSeed()), Network: ledger.Testnet})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(w.Address(), "addr_test1v"))

	want, err := ledger.KeyAddress(KeyHash(w.PublicKey()), ledger.Testnet)
	require.NoError(t, err)
	assert.Equal(t, want, w.Address())

	w, err = NewWallet(WalletConfig{PrivateKey: hex.EncodeToString(testSeed()), Address: "addr_test1override"})
	require.NoError(t, err)
	assert.Equal(t, "addr_test1override", w.Address())
}

func unsignedTx(t *testing.T, witnessSet any) (string, []byte) {
	t.Helper()
	body := map[uint64]any{0: []any{}, 2: uint64(170_000)}
	bodyRaw, err := cbor.Marshal(body)
	require.NoError(t, err)

	raw, err := cbor.Marshal([]any{cbor.RawMessage(bodyRaw), witnessSet, true, nil})
	require.NoError(t, err)
	return hex.EncodeToString(raw), bodyRaw
}

func decodeWitnesses(t *testing.T, signed []byte) ([]cbor.RawMessage, []vkeyWitness, bool) {
	t.Helper()
	var tx []cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(signed, &tx))
	require.Len(t, tx, 4)

	set := map[uint64]cbor.RawMessage{}
	require.NoError(t, cbor.Unmarshal(tx[1], &set))
	wits, tagged, err := decodeVKeyWitnesses(set[vkeyWitnessKey])
	require.NoError(t, err)
	return tx, wits, tagged
}

func TestSignTx(t *testing.T) {
	w, err := NewWallet(WalletConfig{PrivateKey: hex.EncodeToString(testSeed())})
	require.NoError(t, err)

	txHex, body := unsignedTx(t, map[uint64]any{})
	signed, txHash, err := w.SignTx(txHex)
	require.NoError(t, err)

	hash := blake2b.Sum256(body)
	assert.Equal(t, hex.EncodeToString(hash[:]), txHash)

	tx, wits, tagged := decodeWitnesses(t, signed)
	assert.Equal(t, body, []byte(tx[0]))
	assert.False(t, tagged)
	require.Len(t, wits, 1)
	assert.Equal(t, []byte(w.PublicKey()), wits[0].VKey)
	assert.True(t, ed25519.Verify(w.PublicKey(), hash[:], wits[0].Sig))

	// signing again does not duplicate the witness
	again, _, err := w.SignTx(hex.EncodeToString(signed))
	require.NoError(t, err)
	_, wits, _ = decodeWitnesses(t, again)
	assert.Len(t, wits, 1)
}

func TestSignTx_KeepsTaggedSetAndOtherWitnesses(t *testing.T) {
	w, err := NewWallet(WalletConfig{PrivateKey: hex.EncodeToString(testSeed())})
	require.NoError(t, err)

	other := vkeyWitness{VKey: make([]byte, 32), Sig: make([]byte, 64)}
	txHex, _ := unsignedTx(t, map[uint64]any{
		0: cbor.Tag{Number: setTag, Content: []vkeyWitness{other}},
	})

	signed, _, err := w.SignTx(txHex)
	require.NoError(t, err)

	_, wits, tagged := decodeWitnesses(t, signed)
	assert.True(t, tagged)
	require.Len(t, wits, 2)
	assert.Equal(t, other.VKey, wits[0].VKey)
	assert.Equal(t, []byte(w.PublicKey()), wits[1].VKey)
}

func TestSignTx_Malformed(t *testing.T) {
	w, err := NewWallet(WalletConfig{PrivateKey: hex.EncodeToString(testSeed())})
	require.NoError(t, err)

	_, _, err = w.SignTx("zz")
	assert.Error(t, err)

	raw, _ := cbor.Marshal([]any{uint64(1)})
	_, _, err = w.SignTx(hex.EncodeToString(raw))
	assert.Error(t, err)
}
