package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// Signer signs unsigned ledger transactions
type Signer interface {
	// SignTx adds a vkey witness to the hex CBOR transaction and returns
	// the signed bytes together with the transaction hash
	SignTx(unsignedHex string) ([]byte, string, error)
	Address() string
}

var _ Signer = (*Wallet)(nil)

// witness set key holding vkey witnesses
const vkeyWitnessKey = 0

// tag 258 marks a set in newer ledger eras
const setTag = 258

var encMode, _ = cbor.EncOptions{Sort: cbor.SortCoreDeterministic}.EncMode()

type vkeyWitness struct {
	_    struct{} `cbor:",toarray"`
	VKey []byte
	Sig  []byte
}

// SignTx signs the blake2b-256 hash of the transaction body and attaches the
// witness. A transaction already carrying this key's witness is returned as is.
func (w *Wallet) SignTx(unsignedHex string) ([]byte, string, error) {
	raw, err := hex.DecodeString(unsignedHex)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode transaction: %w", err)
	}

	var tx []cbor.RawMessage
	if err := cbor.Unmarshal(raw, &tx); err != nil {
		return nil, "", fmt.Errorf("failed to decode transaction: %w", err)
	}
	if len(tx) < 2 {
		return nil, "", fmt.Errorf("failed to decode transaction: %d elements", len(tx))
	}

	bodyHash := blake2b.Sum256(tx[0])
	txHash := hex.EncodeToString(bodyHash[:])

	witnesses := map[uint64]cbor.RawMessage{}
	if err := cbor.Unmarshal(tx[1], &witnesses); err != nil {
		return nil, "", fmt.Errorf("failed to decode witness set: %w", err)
	}

	existing, tagged, err := decodeVKeyWitnesses(witnesses[vkeyWitnessKey])
	if err != nil {
		return nil, "", err
	}
	for _, wit := range existing {
		if bytes.Equal(wit.VKey, w.pub) {
			return raw, txHash, nil
		}
	}

	existing = append(existing, vkeyWitness{
		VKey: w.pub,
		Sig:  ed25519.Sign(w.priv, bodyHash[:]),
	})

	var list any = existing
	if tagged {
		list = cbor.Tag{Number: setTag, Content: existing}
	}
	encoded, err := encMode.Marshal(list)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode witnesses: %w", err)
	}
	witnesses[vkeyWitnessKey] = encoded

	if tx[1], err = encMode.Marshal(witnesses); err != nil {
		return nil, "", fmt.Errorf("failed to encode witness set: %w", err)
	}

	signed, err := encMode.Marshal(tx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode transaction: %w", err)
	}
	return signed, txHash, nil
}

func decodeVKeyWitnesses(raw cbor.RawMessage) ([]vkeyWitness, bool, error) {
	if len(raw) == 0 {
		return nil, false, nil
	}

	tagged := false
	var tag cbor.RawTag
	if err := cbor.Unmarshal(raw, &tag); err == nil {
		if tag.Number != setTag {
			return nil, false, fmt.Errorf("unexpected tag %d on vkey witnesses", tag.Number)
		}
		raw, tagged = tag.Content, true
	}

	var out []vkeyWitness
	if err := cbor.Unmarshal(raw, &out); err != nil {
		return nil, false, fmt.Errorf("failed to decode vkey witnesses: %w", err)
	}
	return out, tagged, nil
}
