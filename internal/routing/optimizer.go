package routing

import (
	"context"

	"github.com/aman-zulfiqar/escrow-solver/internal/amm"
	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultFeeDenominator applies to every pool's fee numerator
const DefaultFeeDenominator = 1000

// Optimizer picks the best direct or bridged route for an intent
type Optimizer struct {
	pools          *PoolCache
	bridge         models.AssetClass
	feeDenominator uint64
	maxImpactBps   uint16
	logger         *logrus.Logger
}

type OptimizerConfig struct {
	Pools             *PoolCache
	Bridge            models.AssetClass
	FeeDenominator    uint64
	MaxPriceImpactBps uint16 // drops candidates whose summed impact is above it; 0 keeps all
	Logger            *logrus.Logger
}

func NewOptimizer(cfg OptimizerConfig) *Optimizer {
	if cfg.FeeDenominator == 0 {
		cfg.FeeDenominator = DefaultFeeDenominator
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Optimizer{
		pools:          cfg.Pools,
		bridge:         cfg.Bridge,
		feeDenominator: cfg.FeeDenominator,
		maxImpactBps:   cfg.MaxPriceImpactBps,
		logger:         cfg.Logger,
	}
}

// FindBestRoute returns the route with the greatest output, or nil when no
// route exists or the best output is below the intent's minimum.
// Equal outputs keep the route with fewer hops.
func (o *Optimizer) FindBestRoute(ctx context.Context, intent *models.EscrowIntent) *models.SwapRoute {
	return o.bestRoute(o.pools.Snapshot(ctx), intent)
}

// FindRoutes routes each intent against one snapshot, keyed by OutRef
// string; intents without a viable route are omitted.
func (o *Optimizer) FindRoutes(ctx context.Context, intents []*models.EscrowIntent) map[string]*models.SwapRoute {
	pools := o.pools.Snapshot(ctx)
	out := make(map[string]*models.SwapRoute, len(intents))
	for _, intent := range intents {
		if r := o.bestRoute(pools, intent); r != nil {
			out[intent.Key()] = r
		}
	}
	return out
}

func (o *Optimizer) bestRoute(pools []*models.Pool, intent *models.EscrowIntent) *models.SwapRoute {
	if intent.InputAsset == intent.OutputAsset {
		return nil
	}
	amountIn := intent.EffectiveInput()

	candidates := make([]*models.SwapRoute, 0, 2)
	if p := lookup(pools, intent.InputAsset, intent.OutputAsset); p != nil {
		if r := o.price(amountIn, intent.InputAsset, intent.OutputAsset, p); r != nil {
			candidates = append(candidates, r)
		}
	}
	if intent.InputAsset != o.bridge && intent.OutputAsset != o.bridge {
		first := lookup(pools, intent.InputAsset, o.bridge)
		second := lookup(pools, o.bridge, intent.OutputAsset)
		if first != nil && second != nil {
			if r := o.price(amountIn, intent.InputAsset, intent.OutputAsset, first, second); r != nil {
				candidates = append(candidates, r)
			}
		}
	}

	log := o.logger.WithField("ref", intent.Key())

	var best *models.SwapRoute
	for _, c := range candidates {
		if err := amm.CheckPriceImpact(c.PriceImpact, o.maxImpactBps); err != nil {
			log.WithError(err).WithField("hops", len(c.Hops)).Debug("route rejected")
			continue
		}
		if best == nil || c.TotalOutput > best.TotalOutput {
			best = c
		}
	}

	if best == nil {
		log.Debug("no route for intent")
		return nil
	}
	if best.TotalOutput < intent.EffectiveMinOutput() {
		log.WithFields(logrus.Fields{
			"output":     best.TotalOutput,
			"min_output": intent.EffectiveMinOutput(),
		}).Debug("best route below minimum output")
		return nil
	}
	return best
}

// price walks the hops in order, feeding each output into the next hop
func (o *Optimizer) price(amountIn uint64, from, to models.AssetClass, hops ...*models.Pool) *models.SwapRoute {
	route := &models.SwapRoute{PriceImpact: decimal.Zero}
	asset, amount := from, amountIn

	for i, p := range hops {
		next := to
		if i < len(hops)-1 {
			next = o.bridge
		}
		reserveIn, reserveOut := p.Reserves(asset)
		q, err := amm.SwapOutput(amount, reserveIn, reserveOut, p.FeeNumerator, o.feeDenominator)
		if err != nil || q.AmountOut == 0 {
			return nil
		}
		route.Hops = append(route.Hops, models.RouteHop{
			PoolID:    p.ID,
			PoolRef:   p.Ref,
			AssetIn:   asset,
			AssetOut:  next,
			AmountIn:  amount,
			AmountOut: q.AmountOut,
			Fee:       q.Fee,
		})
		route.TotalFee += q.Fee
		route.PriceImpact = route.PriceImpact.Add(q.PriceImpact)
		asset, amount = next, q.AmountOut
	}

	route.TotalOutput = amount
	return route
}
