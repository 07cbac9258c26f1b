package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RouteHop is one pool traversal
type RouteHop struct {
	PoolID    string     `json:"pool_id"`
	PoolRef   OutRef     `json:"pool_ref"`
	AssetIn   AssetClass `json:"asset_in"`
	AssetOut  AssetClass `json:"asset_out"`
	AmountIn  uint64     `json:"amount_in"`
	AmountOut uint64     `json:"amount_out"`
	Fee       uint64     `json:"fee"`
}

// SwapRoute is an ordered list of hops with aggregates
type SwapRoute struct {
	Hops        []RouteHop      `json:"hops"`
	TotalOutput uint64          `json:"total_output"`
	TotalFee    uint64          `json:"total_fee"`
	PriceImpact decimal.Decimal `json:"price_impact"`
}

// PrimaryPool is the first hop's pool
func (r *SwapRoute) PrimaryPool() RouteHop {
	return r.Hops[0]
}

// PoolRefs returns the pool outputs the route spends, in hop order
func (r *SwapRoute) PoolRefs() []OutRef {
	refs := make([]OutRef, len(r.Hops))
	for i, h := range r.Hops {
		refs[i] = h.PoolRef
	}
	return refs
}

// BatchGroup is a set of intents settled together against one pool
type BatchGroup struct {
	ID          uuid.UUID       `json:"id"`
	PoolID      string          `json:"pool_id"`
	PoolRef     OutRef          `json:"pool_ref"`
	Intents     []*EscrowIntent `json:"-"`
	Routes      []*SwapRoute    `json:"-"`
	TotalInput  uint64          `json:"total_input"`
	TotalOutput uint64          `json:"total_output"`
}

// Refs returns the escrow references in batch order
func (g *BatchGroup) Refs() []OutRef {
	refs := make([]OutRef, 0, len(g.Intents))
	for _, in := range g.Intents {
		refs = append(refs, in.Ref)
	}
	return refs
}
