package datum

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/fxamacker/cbor/v2"
)

const escrowArity = 10

// EscrowDatum is the on-chain escrow state:
//
//	Constr 0 [ owner, inputAsset, inputAmount, outputAsset, minOutput,
//	           deadline, partialFill, remainingInput, filledOutput, fillCount ]
//
// where assets are Constr 0 [policyId, assetName].
type EscrowDatum struct {
	Owner          []byte
	InputAsset     models.AssetClass
	InputAmount    uint64
	OutputAsset    models.AssetClass
	MinOutput      uint64
	DeadlineMs     int64
	PartialFill    bool
	RemainingInput uint64
	FilledOutput   uint64
	FillCount      uint64
}

// DecodeEscrow strictly decodes an escrow datum. Any mismatch in
// constructor, arity or field type returns a *DecodeError.
func DecodeEscrow(raw []byte) (EscrowDatum, error) {
	if len(raw) == 0 {
		return EscrowDatum{}, ErrNoDatum
	}

	fields, err := expectConstr("datum", cbor.RawMessage(raw), 0, escrowArity)
	if err != nil {
		return EscrowDatum{}, err
	}

	var d EscrowDatum
	if d.Owner, err = decodeBytes("owner", fields[0]); err != nil {
		return EscrowDatum{}, err
	}
	if d.InputAsset, err = decodeAsset("inputAsset", fields[1]); err != nil {
		return EscrowDatum{}, err
	}
	if d.InputAmount, err = decodeNat("inputAmount", fields[2]); err != nil {
		return EscrowDatum{}, err
	}
	if d.OutputAsset, err = decodeAsset("outputAsset", fields[3]); err != nil {
		return EscrowDatum{}, err
	}
	if d.MinOutput, err = decodeNat("minOutput", fields[4]); err != nil {
		return EscrowDatum{}, err
	}
	if d.DeadlineMs, err = decodeTimestamp("deadline", fields[5]); err != nil {
		return EscrowDatum{}, err
	}
	if d.PartialFill, err = decodeBool("partialFill", fields[6]); err != nil {
		return EscrowDatum{}, err
	}
	if d.RemainingInput, err = decodeNat("remainingInput", fields[7]); err != nil {
		return EscrowDatum{}, err
	}
	if d.FilledOutput, err = decodeNat("filledOutput", fields[8]); err != nil {
		return EscrowDatum{}, err
	}
	if d.FillCount, err = decodeNat("fillCount", fields[9]); err != nil {
		return EscrowDatum{}, err
	}

	if d.InputAmount == 0 {
		return EscrowDatum{}, fieldErr("inputAmount", "zero input")
	}
	if d.RemainingInput > d.InputAmount {
		return EscrowDatum{}, fieldErr("remainingInput", "%d exceeds input %d", d.RemainingInput, d.InputAmount)
	}
	return d, nil
}

// DecodeEscrowHex decodes a hex-encoded inline datum
func DecodeEscrowHex(s string) (EscrowDatum, error) {
	if s == "" {
		return EscrowDatum{}, ErrNoDatum
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return EscrowDatum{}, fieldErr("datum", "invalid hex: %v", err)
	}
	return DecodeEscrow(raw)
}

func decodeAsset(field string, raw cbor.RawMessage) (models.AssetClass, error) {
	fields, err := expectConstr(field, raw, 0, 2)
	if err != nil {
		return models.AssetClass{}, err
	}
	policy, err := decodeBytes(field+".policyId", fields[0])
	if err != nil {
		return models.AssetClass{}, err
	}
	name, err := decodeBytes(field+".assetName", fields[1])
	if err != nil {
		return models.AssetClass{}, err
	}
	if len(policy) != 0 && len(policy) != 28 {
		return models.AssetClass{}, fieldErr(field+".policyId", "length %d", len(policy))
	}
	if len(name) > 32 {
		return models.AssetClass{}, fieldErr(field+".assetName", "length %d", len(name))
	}
	return models.AssetClass{
		PolicyID:  hex.EncodeToString(policy),
		AssetName: hex.EncodeToString(name),
	}, nil
}

// Intent turns the datum into a domain intent located at ref
func (d EscrowDatum) Intent(ref models.OutRef) *models.EscrowIntent {
	return &models.EscrowIntent{
		Ref:            ref,
		Owner:          d.Owner,
		InputAsset:     d.InputAsset,
		InputAmount:    d.InputAmount,
		OutputAsset:    d.OutputAsset,
		MinOutput:      d.MinOutput,
		Deadline:       time.UnixMilli(d.DeadlineMs),
		PartialFill:    d.PartialFill,
		RemainingInput: d.RemainingInput,
		FilledOutput:   d.FilledOutput,
		FillCount:      d.FillCount,
	}
}

// EncodeEscrow serializes the datum in the layout DecodeEscrow reads
func EncodeEscrow(d EscrowDatum) ([]byte, error) {
	in, err := assetValue(d.InputAsset)
	if err != nil {
		return nil, err
	}
	out, err := assetValue(d.OutputAsset)
	if err != nil {
		return nil, err
	}
	owner := d.Owner
	if owner == nil {
		owner = []byte{}
	}
	v := Constr(0,
		owner,
		in,
		d.InputAmount,
		out,
		d.MinOutput,
		uint64(d.DeadlineMs),
		Bool(d.PartialFill),
		d.RemainingInput,
		d.FilledOutput,
		d.FillCount,
	)
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode escrow datum: %w", err)
	}
	return b, nil
}

func assetValue(a models.AssetClass) (cbor.Tag, error) {
	policy, err := hex.DecodeString(a.PolicyID)
	if err != nil {
		return cbor.Tag{}, fmt.Errorf("policy id: %w", err)
	}
	name, err := hex.DecodeString(a.AssetName)
	if err != nil {
		return cbor.Tag{}, fmt.Errorf("asset name: %w", err)
	}
	return Constr(0, policy, name), nil
}
