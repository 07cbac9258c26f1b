package datum

import (
	"math"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// Plutus data constructors 0..6 are CBOR tags 121..127
const (
	constrTagBase = 121
	constrTagMax  = 127
)

var decMode, _ = cbor.DecOptions{
	MaxNestedLevels: 16,
	IndefLength:     cbor.IndefLengthAllowed,
}.DecMode()

// CBOR major types, taken from the high 3 bits of the initial byte
const (
	majorUint  = 0
	majorNint  = 1
	majorBytes = 2
	majorArray = 4
	majorTag   = 6
)

func majorType(raw cbor.RawMessage) byte {
	if len(raw) == 0 {
		return 0xff
	}
	return raw[0] >> 5
}

// constr decodes a Plutus constructor and returns its index and fields
func constr(field string, raw cbor.RawMessage) (uint64, []cbor.RawMessage, error) {
	if majorType(raw) != majorTag {
		return 0, nil, fieldErr(field, "expected constructor, got major type %d", majorType(raw))
	}
	var tag cbor.RawTag
	if err := decMode.Unmarshal(raw, &tag); err != nil {
		return 0, nil, fieldErr(field, "invalid tag: %v", err)
	}
	if tag.Number < constrTagBase || tag.Number > constrTagMax {
		return 0, nil, fieldErr(field, "unexpected tag %d", tag.Number)
	}
	if majorType(tag.Content) != majorArray {
		return 0, nil, fieldErr(field, "constructor fields are not a list")
	}
	var fields []cbor.RawMessage
	if err := decMode.Unmarshal(tag.Content, &fields); err != nil {
		return 0, nil, fieldErr(field, "invalid field list: %v", err)
	}
	return tag.Number - constrTagBase, fields, nil
}

// expectConstr checks the constructor index and arity
func expectConstr(field string, raw cbor.RawMessage, index uint64, arity int) ([]cbor.RawMessage, error) {
	idx, fields, err := constr(field, raw)
	if err != nil {
		return nil, err
	}
	if idx != index {
		return nil, fieldErr(field, "constructor %d, want %d", idx, index)
	}
	if len(fields) != arity {
		return nil, fieldErr(field, "%d fields, want %d", len(fields), arity)
	}
	return fields, nil
}

func decodeBytes(field string, raw cbor.RawMessage) ([]byte, error) {
	if majorType(raw) != majorBytes {
		return nil, fieldErr(field, "expected bytes, got major type %d", majorType(raw))
	}
	var b []byte
	if err := decMode.Unmarshal(raw, &b); err != nil {
		return nil, fieldErr(field, "invalid bytes: %v", err)
	}
	return b, nil
}

// decodeNat decodes a non-negative integer that fits in uint64
func decodeNat(field string, raw cbor.RawMessage) (uint64, error) {
	switch majorType(raw) {
	case majorUint:
		var n uint64
		if err := decMode.Unmarshal(raw, &n); err != nil {
			return 0, fieldErr(field, "invalid integer: %v", err)
		}
		return n, nil
	case majorNint:
		return 0, fieldErr(field, "negative integer")
	case majorTag:
		// bignums arrive as tag 2 / tag 3
		var n big.Int
		if err := decMode.Unmarshal(raw, &n); err != nil {
			return 0, fieldErr(field, "expected integer: %v", err)
		}
		if n.Sign() < 0 {
			return 0, fieldErr(field, "negative integer")
		}
		if !n.IsUint64() {
			return 0, fieldErr(field, "integer out of range")
		}
		return n.Uint64(), nil
	default:
		return 0, fieldErr(field, "expected integer, got major type %d", majorType(raw))
	}
}

func decodeTimestamp(field string, raw cbor.RawMessage) (int64, error) {
	n, err := decodeNat(field, raw)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt64 {
		return 0, fieldErr(field, "timestamp out of range")
	}
	return int64(n), nil
}

// decodeBool decodes Plutus Bool: False = Constr 0 [], True = Constr 1 []
func decodeBool(field string, raw cbor.RawMessage) (bool, error) {
	idx, fields, err := constr(field, raw)
	if err != nil {
		return false, err
	}
	if len(fields) != 0 {
		return false, fieldErr(field, "bool constructor has fields")
	}
	switch idx {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fieldErr(field, "bool constructor %d", idx)
	}
}

// Constr builds a Plutus constructor value for encoding
func Constr(index uint64, fields ...any) cbor.Tag {
	if fields == nil {
		fields = []any{}
	}
	return cbor.Tag{Number: constrTagBase + index, Content: fields}
}

// Bool builds a Plutus Bool value for encoding
func Bool(v bool) cbor.Tag {
	if v {
		return Constr(1)
	}
	return Constr(0)
}
