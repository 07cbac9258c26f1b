package models

import "time"

// Pool is a constant-product reserve pair
type Pool struct {
	ID           string     `json:"id"`
	AssetA       AssetClass `json:"asset_a"`
	AssetB       AssetClass `json:"asset_b"`
	ReserveA     uint64     `json:"reserve_a"`
	ReserveB     uint64     `json:"reserve_b"`
	FeeNumerator uint64     `json:"fee_numerator"`
	Ref          OutRef     `json:"ref"`
	Active       bool       `json:"active"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Matches reports whether the pool trades the unordered pair (x, y)
func (p *Pool) Matches(x, y AssetClass) bool {
	return (p.AssetA == x && p.AssetB == y) || (p.AssetA == y && p.AssetB == x)
}

// Reserves returns (reserveIn, reserveOut) for a swap from assetIn
func (p *Pool) Reserves(assetIn AssetClass) (uint64, uint64) {
	if p.AssetA == assetIn {
		return p.ReserveA, p.ReserveB
	}
	return p.ReserveB, p.ReserveA
}
