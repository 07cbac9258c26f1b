package routing

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/amm"
	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePools struct {
	pools []*models.Pool
	err   error
	calls atomic.Int32
}

func (f *fakePools) FindAllActive(ctx context.Context) ([]*models.Pool, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.pools, nil
}

func (f *fakePools) FindByPair(ctx context.Context, a, b models.AssetClass) (*models.Pool, error) {
	return nil, errors.New("unused")
}

func (f *fakePools) Save(ctx context.Context, p *models.Pool) error { return nil }

var (
	tokA = models.AssetClass{PolicyID: strings.Repeat("aa", 28), AssetName: "41"}
	tokB = models.AssetClass{PolicyID: strings.Repeat("bb", 28), AssetName: "42"}
)

func pool(id string, a, b models.AssetClass, ra, rb uint64) *models.Pool {
	return &models.Pool{ID: id, AssetA: a, AssetB: b, ReserveA: ra, ReserveB: rb, FeeNumerator: 3, Active: true,
		Ref: models.OutRef{TxHash: strings.Repeat("0", 64), Index: 0}}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newOptimizer(repo *fakePools) *Optimizer {
	return NewOptimizer(OptimizerConfig{
		Pools:  NewPoolCache(repo, time.Minute, quietLogger()),
		Bridge: models.Lovelace,
		Logger: quietLogger(),
	})
}

func intent(idx uint32, in, out models.AssetClass, amount, minOut uint64) *models.EscrowIntent {
	return &models.EscrowIntent{
		Ref:         models.OutRef{TxHash: strings.Repeat("1", 64), Index: idx},
		InputAsset:  in,
		InputAmount: amount,
		OutputAsset: out,
		MinOutput:   minOut,
		Deadline:    time.Now().Add(time.Hour),
	}
}

func TestFindBestRoute_DirectReferenceQuote(t *testing.T) {
	repo := &fakePools{pools: []*models.Pool{pool("p1", tokA, tokB, 1_000_000, 2_000_000)}}
	o := newOptimizer(repo)

	r := o.FindBestRoute(context.Background(), intent(0, tokA, tokB, 10_000, 19_000))
	require.NotNil(t, r)
	require.Len(t, r.Hops, 1)
	assert.Equal(t, uint64(19_743), r.TotalOutput)
	assert.Equal(t, uint64(30), r.TotalFee)
	assert.Equal(t, "p1", r.PrimaryPool().PoolID)
	assert.Equal(t, tokA, r.Hops[0].AssetIn)
	assert.Equal(t, tokB, r.Hops[0].AssetOut)
}

func TestFindBestRoute_ReversedPoolOrientation(t *testing.T) {
	repo := &fakePools{pools: []*models.Pool{pool("p1", tokB, tokA, 2_000_000, 1_000_000)}}
	o := newOptimizer(repo)

	r := o.FindBestRoute(context.Background(), intent(0, tokA, tokB, 10_000, 1))
	require.NotNil(t, r)
	assert.Equal(t, uint64(19_743), r.TotalOutput)
}

func TestFindBestRoute_BelowMinimum(t *testing.T) {
	repo := &fakePools{pools: []*models.Pool{pool("p1", tokA, tokB, 1_000_000, 2_000_000)}}
	o := newOptimizer(repo)

	assert.Nil(t, o.FindBestRoute(context.Background(), intent(0, tokA, tokB, 10_000, 19_744)))
	assert.NotNil(t, o.FindBestRoute(context.Background(), intent(0, tokA, tokB, 10_000, 19_743)))
}

func TestFindBestRoute_NoPool(t *testing.T) {
	o := newOptimizer(&fakePools{})
	assert.Nil(t, o.FindBestRoute(context.Background(), intent(0, tokA, tokB, 10_000, 1)))
}

func TestFindBestRoute_BridgeOnly(t *testing.T) {
	repo := &fakePools{pools: []*models.Pool{
		pool("a-ada", tokA, models.Lovelace, 1_000_000, 5_000_000),
		pool("ada-b", models.Lovelace, tokB, 5_000_000, 2_000_000),
	}}
	o := newOptimizer(repo)

	r := o.FindBestRoute(context.Background(), intent(0, tokA, tokB, 10_000, 1))
	require.NotNil(t, r)
	require.Len(t, r.Hops, 2)
	assert.Equal(t, "a-ada", r.PrimaryPool().PoolID)
	assert.Equal(t, models.Lovelace, r.Hops[0].AssetOut)
	assert.Equal(t, r.Hops[0].AmountOut, r.Hops[1].AmountIn)
	assert.Equal(t, r.Hops[1].AmountOut, r.TotalOutput)
	assert.Equal(t, r.Hops[0].Fee+r.Hops[1].Fee, r.TotalFee)

	first, err := amm.SwapOutput(10_000, 1_000_000, 5_000_000, 3, 1000)
	require.NoError(t, err)
	second, err := amm.SwapOutput(first.AmountOut, 5_000_000, 2_000_000, 3, 1000)
	require.NoError(t, err)
	assert.Equal(t, second.AmountOut, r.TotalOutput)
	assert.True(t, first.PriceImpact.Add(second.PriceImpact).Equal(r.PriceImpact))
}

func TestFindBestRoute_PicksGreatestOutput(t *testing.T) {
	// shallow direct pool loses to deep bridge pools
	shallow := []*models.Pool{
		pool("direct", tokA, tokB, 20_000, 40_000),
		pool("a-ada", tokA, models.Lovelace, 10_000_000, 50_000_000),
		pool("ada-b", models.Lovelace, tokB, 50_000_000, 20_000_000),
	}
	r := newOptimizer(&fakePools{pools: shallow}).FindBestRoute(context.Background(), intent(0, tokA, tokB, 10_000, 1))
	require.NotNil(t, r)
	assert.Len(t, r.Hops, 2)

	// a deep direct pool beats the bridge
	deep := []*models.Pool{
		pool("direct", tokA, tokB, 10_000_000, 20_000_000),
		pool("a-ada", tokA, models.Lovelace, 100_000, 500_000),
		pool("ada-b", models.Lovelace, tokB, 500_000, 200_000),
	}
	r = newOptimizer(&fakePools{pools: deep}).FindBestRoute(context.Background(), intent(0, tokA, tokB, 10_000, 1))
	require.NotNil(t, r)
	assert.Len(t, r.Hops, 1)
}

func TestFindBestRoute_PriceImpactLimit(t *testing.T) {
	repo := &fakePools{pools: []*models.Pool{pool("p1", tokA, tokB, 1_000_000, 2_000_000)}}
	guarded := func(maxBps uint16) *Optimizer {
		return NewOptimizer(OptimizerConfig{
			Pools:             NewPoolCache(repo, time.Minute, quietLogger()),
			Bridge:            models.Lovelace,
			MaxPriceImpactBps: maxBps,
			Logger:            quietLogger(),
		})
	}

	// 9970 / 1009970 is just under 99 bps
	in := intent(0, tokA, tokB, 10_000, 1)
	assert.Nil(t, guarded(50).FindBestRoute(context.Background(), in))

	r := guarded(100).FindBestRoute(context.Background(), in)
	require.NotNil(t, r)
	assert.Equal(t, uint64(19_743), r.TotalOutput)
	assert.NoError(t, amm.CheckPriceImpact(r.PriceImpact, 100))
}

func TestFindBestRoute_NoBridgeWhenSideIsBridge(t *testing.T) {
	repo := &fakePools{pools: []*models.Pool{
		pool("ada-b", models.Lovelace, tokB, 5_000_000, 2_000_000),
	}}
	o := newOptimizer(repo)

	r := o.FindBestRoute(context.Background(), intent(0, models.Lovelace, tokB, 10_000, 1))
	require.NotNil(t, r)
	assert.Len(t, r.Hops, 1)
}

func TestFindBestRoute_UsesRemainingInputForPartialFill(t *testing.T) {
	repo := &fakePools{pools: []*models.Pool{pool("p1", tokA, tokB, 1_000_000, 2_000_000)}}
	o := newOptimizer(repo)

	in := intent(0, tokA, tokB, 20_000, 39_000)
	in.PartialFill = true
	in.FillCount = 1
	in.RemainingInput = 10_000

	r := o.FindBestRoute(context.Background(), in)
	require.NotNil(t, r)
	assert.Equal(t, uint64(10_000), r.Hops[0].AmountIn)
	assert.Equal(t, uint64(19_743), r.TotalOutput)
}

func TestFindRoutes_OmitsUnroutable(t *testing.T) {
	repo := &fakePools{pools: []*models.Pool{pool("p1", tokA, tokB, 1_000_000, 2_000_000)}}
	o := newOptimizer(repo)

	ok := intent(0, tokA, tokB, 10_000, 1)
	tooGreedy := intent(1, tokA, tokB, 10_000, 1_000_000)
	noPool := intent(2, tokA, models.Lovelace, 10_000, 1)

	routes := o.FindRoutes(context.Background(), []*models.EscrowIntent{ok, tooGreedy, noPool})
	assert.Len(t, routes, 1)
	assert.Contains(t, routes, ok.Key())
	assert.Equal(t, int32(1), repo.calls.Load())
}

func TestPoolCache_TTLAndStaleFallback(t *testing.T) {
	repo := &fakePools{pools: []*models.Pool{pool("p1", tokA, tokB, 1, 2)}}
	now := time.Unix(1_700_000_000, 0)
	c := NewPoolCache(repo, 5*time.Second, quietLogger()).WithClock(func() time.Time { return now })
	ctx := context.Background()

	assert.Len(t, c.Snapshot(ctx), 1)
	assert.Len(t, c.Snapshot(ctx), 1)
	assert.Equal(t, int32(1), repo.calls.Load())

	now = now.Add(5 * time.Second)
	repo.err = errors.New("db down")
	pools := c.Snapshot(ctx)
	assert.Len(t, pools, 1, "stale snapshot served on refresh failure")
	assert.Equal(t, int32(2), repo.calls.Load())

	repo.err = nil
	repo.pools = nil
	assert.Empty(t, c.Snapshot(ctx))
	assert.Equal(t, int32(3), repo.calls.Load())

	c.Invalidate()
	c.Snapshot(ctx)
	assert.Equal(t, int32(4), repo.calls.Load())
}

func TestPoolCache_ColdFailure(t *testing.T) {
	repo := &fakePools{err: errors.New("db down")}
	c := NewPoolCache(repo, time.Second, quietLogger())
	assert.Empty(t, c.Snapshot(context.Background()))
}
