package amm

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid swap input")

// Quote is the result of pricing one constant-product hop
type Quote struct {
	AmountOut   uint64
	AfterFee    uint64 // input remaining once the fee is taken
	Fee         uint64
	PriceImpact decimal.Decimal
}

// SwapOutput prices a swap against a constant-product pool.
// The fee is taken from the input before x*y=k is applied:
//
//	afterFee = amountIn * (den - num) / den
//	out      = afterFee * reserveOut / (reserveIn + afterFee)
//	impact   = afterFee / (reserveIn + afterFee)
func SwapOutput(
	amountIn uint64,
	reserveIn uint64,
	reserveOut uint64,
	feeNumerator uint64,
	feeDenominator uint64,
) (Quote, error) {

	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return Quote{}, fmt.Errorf("%w: amounts and reserves must be > 0", ErrInvalidInput)
	}
	if feeDenominator == 0 || feeNumerator >= feeDenominator {
		return Quote{}, fmt.Errorf("%w: fee %d/%d", ErrInvalidInput, feeNumerator, feeDenominator)
	}

	// big.Int keeps amount*reserve products from overflowing
	in := new(big.Int).SetUint64(amountIn)
	afterFee := new(big.Int).Mul(in, new(big.Int).SetUint64(feeDenominator-feeNumerator))
	afterFee.Div(afterFee, new(big.Int).SetUint64(feeDenominator))

	numerator := new(big.Int).Mul(afterFee, new(big.Int).SetUint64(reserveOut))
	denominator := new(big.Int).Add(new(big.Int).SetUint64(reserveIn), afterFee)
	out := new(big.Int).Div(numerator, denominator)

	if !out.IsUint64() {
		return Quote{}, fmt.Errorf("output amount overflow")
	}

	impact := decimal.NewFromBigInt(afterFee, 0).Div(decimal.NewFromBigInt(denominator, 0))

	return Quote{
		AmountOut:   out.Uint64(),
		AfterFee:    afterFee.Uint64(),
		Fee:         amountIn - afterFee.Uint64(),
		PriceImpact: impact,
	}, nil
}

// bpsScale is one whole in basis points
const bpsScale = 10_000

var ErrPriceImpact = errors.New("price impact above limit")

// MinReceived is amountOut less slippageBps, rounded down
func MinReceived(amountOut uint64, slippageBps uint16) uint64 {
	if slippageBps >= bpsScale {
		return 0
	}
	v := new(big.Int).SetUint64(amountOut)
	v.Mul(v, big.NewInt(int64(bpsScale-slippageBps)))
	return v.Div(v, big.NewInt(bpsScale)).Uint64()
}

// CheckPriceImpact fails with ErrPriceImpact when impact exceeds maxBps.
// A zero maxBps disables the check.
func CheckPriceImpact(impact decimal.Decimal, maxBps uint16) error {
	if maxBps == 0 {
		return nil
	}
	limit := decimal.New(int64(maxBps), -4)
	if impact.GreaterThan(limit) {
		return fmt.Errorf("%w: %s > %s", ErrPriceImpact, impact.StringFixed(6), limit.StringFixed(4))
	}
	return nil
}

// RatioBps expresses part/whole in basis points, rounded down
func RatioBps(part, whole uint64) uint64 {
	if whole == 0 {
		return 0
	}
	v := new(big.Int).SetUint64(part)
	v.Mul(v, big.NewInt(bpsScale))
	return v.Div(v, new(big.Int).SetUint64(whole)).Uint64()
}
