package datum

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	policy     = bytes.Repeat([]byte{0xab}, 28)
	owner      = bytes.Repeat([]byte{0x01}, 28)
	hosky      = models.AssetClass{PolicyID: strings.Repeat("ab", 28), AssetName: "484f534b59"}
	deadlineMs = int64(1_735_689_600_000)
)

func sampleFields() []any {
	return []any{
		owner,
		Constr(0, []byte{}, []byte{}),
		uint64(5_000_000),
		Constr(0, policy, []byte("HOSKY")),
		uint64(1_000),
		uint64(deadlineMs),
		Bool(true),
		uint64(5_000_000),
		uint64(0),
		uint64(0),
	}
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	b, err := cbor.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDecodeEscrow(t *testing.T) {
	d, err := DecodeEscrow(encode(t, Constr(0, sampleFields()...)))
	require.NoError(t, err)

	assert.Equal(t, owner, d.Owner)
	assert.True(t, d.InputAsset.IsNative())
	assert.Equal(t, hosky, d.OutputAsset)
	assert.Equal(t, uint64(5_000_000), d.InputAmount)
	assert.Equal(t, uint64(1_000), d.MinOutput)
	assert.Equal(t, deadlineMs, d.DeadlineMs)
	assert.True(t, d.PartialFill)

	ref := models.OutRef{TxHash: "aa", Index: 1}
	intent := d.Intent(ref)
	assert.Equal(t, ref, intent.Ref)
	assert.Equal(t, time.UnixMilli(deadlineMs), intent.Deadline)
}

func TestDecodeEscrow_IndefiniteLengthFields(t *testing.T) {
	// d879 = tag 121, 9f..ff = indefinite array
	raw := []byte{0xd8, 0x79, 0x9f}
	for _, f := range sampleFields() {
		raw = append(raw, encode(t, f)...)
	}
	raw = append(raw, 0xff)

	d, err := DecodeEscrow(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000), d.InputAmount)
}

func TestDecodeEscrow_EncodeEscrowMatchesLayout(t *testing.T) {
	want := EscrowDatum{
		Owner:          owner,
		InputAsset:     models.Lovelace,
		InputAmount:    42,
		OutputAsset:    hosky,
		MinOutput:      7,
		DeadlineMs:     deadlineMs,
		RemainingInput: 42,
	}
	raw, err := EncodeEscrow(want)
	require.NoError(t, err)

	got, err := DecodeEscrow(raw)
	require.NoError(t, err)
	assert.Equal(t, want.OutputAsset, got.OutputAsset)
	assert.Equal(t, want.InputAmount, got.InputAmount)
	assert.False(t, got.PartialFill)
}

func TestDecodeEscrow_SchemaErrors(t *testing.T) {
	mutate := func(i int, v any) []byte {
		f := sampleFields()
		f[i] = v
		return encode(t, Constr(0, f...))
	}

	cases := []struct {
		name  string
		raw   []byte
		field string
	}{
		{"wrong constructor", encode(t, Constr(1, sampleFields()...)), "datum"},
		{"missing field", encode(t, Constr(0, sampleFields()[:9]...)), "datum"},
		{"not a constructor", encode(t, []any{uint64(1)}), "datum"},
		{"owner as text", mutate(0, "owner"), "owner"},
		{"negative amount", mutate(2, int64(-5)), "inputAmount"},
		{"asset arity", mutate(3, Constr(0, policy)), "outputAsset"},
		{"short policy", mutate(3, Constr(0, []byte{1, 2}, []byte{})), "outputAsset.policyId"},
		{"bool with fields", mutate(6, Constr(1, uint64(1))), "partialFill"},
		{"bool constructor", mutate(6, Constr(2)), "partialFill"},
		{"remaining above input", mutate(7, uint64(6_000_000)), "remainingInput"},
		{"zero input", mutate(2, uint64(0)), "inputAmount"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEscrow(tc.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchema)

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tc.field, de.Field)
		})
	}
}

func TestDecodeEscrow_NoDatum(t *testing.T) {
	_, err := DecodeEscrow(nil)
	assert.ErrorIs(t, err, ErrNoDatum)
	assert.NotErrorIs(t, err, ErrSchema)

	_, err = DecodeEscrowHex("")
	assert.ErrorIs(t, err, ErrNoDatum)
}

func TestDecodeEscrowHex_InvalidHex(t *testing.T) {
	_, err := DecodeEscrowHex("zz")
	assert.ErrorIs(t, err, ErrSchema)
}
