package models

import (
	"fmt"
	"strconv"
	"strings"
)

// AssetClass identifies a ledger asset by minting policy and asset name (both hex)
type AssetClass struct {
	PolicyID  string `json:"policy_id"`
	AssetName string `json:"asset_name"`
}

// Lovelace is the native asset
var Lovelace = AssetClass{}

// IsNative reports whether the asset is the chain's native currency
func (a AssetClass) IsNative() bool {
	return a.PolicyID == "" && a.AssetName == ""
}

// String returns "lovelace" for the native asset, otherwise policy.name
func (a AssetClass) String() string {
	if a.IsNative() {
		return "lovelace"
	}
	return a.PolicyID + "." + a.AssetName
}

// ParseAssetClass is the inverse of AssetClass.String
func ParseAssetClass(s string) (AssetClass, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "lovelace" {
		return Lovelace, nil
	}
	policy, name, ok := strings.Cut(s, ".")
	if !ok {
		// policy-only asset with an empty name
		return AssetClass{PolicyID: s}, nil
	}
	if policy == "" {
		return AssetClass{}, fmt.Errorf("invalid asset class %q", s)
	}
	return AssetClass{PolicyID: policy, AssetName: name}, nil
}

// OutRef points to a transaction output
type OutRef struct {
	TxHash string `json:"tx_hash"`
	Index  uint32 `json:"index"`
}

func (r OutRef) String() string {
	return r.TxHash + "#" + strconv.FormatUint(uint64(r.Index), 10)
}

// IsZero reports whether the reference is unset
func (r OutRef) IsZero() bool {
	return r.TxHash == ""
}

// ParseOutRef parses a "txhash#index" reference
func ParseOutRef(s string) (OutRef, error) {
	hash, idx, ok := strings.Cut(s, "#")
	if !ok || hash == "" {
		return OutRef{}, fmt.Errorf("invalid out ref %q", s)
	}
	n, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return OutRef{}, fmt.Errorf("invalid out ref index %q: %w", idx, err)
	}
	return OutRef{TxHash: hash, Index: uint32(n)}, nil
}

// UTxO is an unspent output as reported by the ledger query service
type UTxO struct {
	Ref         OutRef            `json:"ref"`
	Address     string            `json:"address"`
	Value       map[string]uint64 `json:"value"` // keyed by AssetClass.String()
	DatumHash   string            `json:"datum_hash,omitempty"`
	InlineDatum string            `json:"inline_datum,omitempty"` // hex CBOR
}

// Amount returns the quantity of the given asset held by the output
func (u UTxO) Amount(asset AssetClass) uint64 {
	return u.Value[asset.String()]
}

// ChainTip is the latest block known to the ledger service
type ChainTip struct {
	Slot   uint64 `json:"slot"`
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
}
