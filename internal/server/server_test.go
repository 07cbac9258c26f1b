package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/flags"
	"github.com/aman-zulfiqar/escrow-solver/internal/mocks"
	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/aman-zulfiqar/escrow-solver/internal/routing"
	"github.com/aman-zulfiqar/escrow-solver/internal/scheduler"
	"github.com/aman-zulfiqar/escrow-solver/internal/storage"
	"github.com/aman-zulfiqar/escrow-solver/internal/storage/badgerstore"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hosky = models.AssetClass{PolicyID: strings.Repeat("0a", 28), AssetName: "484f534b59"}

type fakeFeed struct {
	events []*models.LedgerEvent
}

func (f *fakeFeed) RecentEvents(_ context.Context, limit int64) ([]*models.LedgerEvent, error) {
	if int64(len(f.events)) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}
func (f *fakeFeed) Ping(context.Context) error { return nil }
func (f *fakeFeed) Close() error               { return nil }

func newTestServer(t *testing.T, apiKey string) (*Server, *Handlers) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	db, err := badgerstore.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	require.NoError(t, db.Pools().Save(ctx, &models.Pool{
		ID: "ada-hosky", AssetA: models.Lovelace, AssetB: hosky,
		ReserveA: 1_000_000, ReserveB: 2_000_000, FeeNumerator: 3, Active: true,
	}))
	require.NoError(t, db.Intents().Save(ctx, &models.Intent{ID: "i1", Status: models.IntentStatusPending}))
	require.NoError(t, db.Intents().Save(ctx, &models.Intent{ID: "i2", Status: models.IntentStatusExpired}))

	l := mocks.NewLedger()
	l.Tip = models.ChainTip{Slot: 42}
	pools := routing.NewPoolCache(db.Pools(), time.Minute, logger)

	h := &Handlers{
		Events:   &fakeFeed{events: []*models.LedgerEvent{{TxHash: "a"}, {TxHash: "b"}}},
		Switches: flags.NewMemoryStore(),
		Jobs: []*scheduler.Job{
			scheduler.NewJob(flags.JobSolver, func(context.Context) {}, scheduler.JobConfig{Logger: logger}),
		},
		Ledger:       l,
		Pools:        pools,
		Optimizer:    routing.NewOptimizer(routing.OptimizerConfig{Pools: pools, Bridge: models.Lovelace, Logger: logger}),
		Intents:      db.Intents(),
		Orders:       db.Orders(),
		MaxBatchSize: 10,
		Logger:       logger,
	}
	s, err := NewServer(ServerDeps{Handlers: h, Config: ServerConfig{APIKey: apiKey}})
	require.NoError(t, err)
	return s, h
}

func do(t *testing.T, s *Server, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := do(t, s, http.MethodGet, "/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := do(t, s, http.MethodGet, "/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Tip)
	assert.Equal(t, uint64(42), resp.Tip.Slot)
	assert.Equal(t, 1, resp.Pools)
	assert.Equal(t, 10, resp.MaxBatchSize)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, flags.JobSolver, resp.Jobs[0].Name)
}

func TestRecentEvents(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := do(t, s, http.MethodGet, "/v1/events/recent?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListResponse[*models.LedgerEvent]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "a", resp.Items[0].TxHash)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/v1/events/recent?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/v1/events/recent?limit=x", "").Code)
}

func TestIntentsFilter(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := do(t, s, http.MethodGet, "/v1/intents?status=expired", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListResponse[*models.Intent]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "i2", resp.Items[0].ID)
}

func TestOrdersFilter(t *testing.T) {
	s, h := newTestServer(t, "")
	ctx := context.Background()
	require.NoError(t, h.Orders.Save(ctx, &models.Order{ID: "o1", Type: models.OrderTypeInterval, Status: models.OrderStatusActive}))
	require.NoError(t, h.Orders.Save(ctx, &models.Order{ID: "o2", Type: models.OrderTypeLimit, Status: models.OrderStatusActive}))
	require.NoError(t, h.Orders.Save(ctx, &models.Order{ID: "o3", Type: models.OrderTypeInterval, Status: models.OrderStatusFilled}))

	rec := do(t, s, http.MethodGet, "/v1/orders?type=interval&status=active,partially_filled", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListResponse[*models.Order]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "o1", resp.Items[0].ID)

	rec = do(t, s, http.MethodGet, "/v1/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 3)
}

func TestQuote(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := do(t, s, http.MethodGet, "/v1/quote?in=lovelace&out="+hosky.String()+"&amount=10000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp QuoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Route)
	assert.Equal(t, uint64(19_743), resp.Route.TotalOutput)
	assert.Equal(t, uint16(50), resp.SlippageBps)
	assert.Equal(t, uint64(19_644), resp.MinReceived)
	assert.Equal(t, []uint64{30}, resp.HopFeeBps)
	assert.Equal(t, int64(99), resp.PriceImpactBps)

	rec = do(t, s, http.MethodGet, "/v1/quote?in=lovelace&out="+hosky.String()+"&amount=10000&minOutput=20000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/v1/quote?in=lovelace&out=lovelace&amount=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/v1/quote?in=lovelace&out="+hosky.String()+"&amount=-5", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuoteSlippage(t *testing.T) {
	s, _ := newTestServer(t, "")
	base := "/v1/quote?in=lovelace&out=" + hosky.String() + "&amount=10000"

	rec := do(t, s, http.MethodGet, base+"&slippageBps=100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp QuoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint16(100), resp.SlippageBps)
	assert.Equal(t, uint64(19_545), resp.MinReceived)

	rec = do(t, s, http.MethodGet, base+"&slippageBps=10000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.MinReceived)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, base+"&slippageBps=10001", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, base+"&slippageBps=-1", "").Code)
}

func TestJobSwitches(t *testing.T) {
	s, h := newTestServer(t, "")

	rec := do(t, s, http.MethodGet, "/v1/jobs/solver", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paused":false`)

	rec = do(t, s, http.MethodPut, "/v1/jobs/solver", `{"paused":true,"reason":"upgrade"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	paused, err := flags.IsPaused(context.Background(), h.Switches, flags.JobSolver)
	require.NoError(t, err)
	assert.True(t, paused)

	rec = do(t, s, http.MethodGet, "/v1/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "upgrade")

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPut, "/v1/jobs/nope", `{"paused":true}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPut, "/v1/jobs/solver", `{bad`).Code)
}

func TestAPIKey(t *testing.T) {
	s, _ := newTestServer(t, "secret")

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/v1/health", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/metrics", "").Code)
	assert.NotEqual(t, http.StatusOK, do(t, s, http.MethodGet, "/v1/jobs", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/v1/jobs", "", "X-API-Key", "secret").Code)
}

func TestNotFoundIsJSON(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := do(t, s, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found","code":404}`, rec.Body.String())
}

func TestClassifyErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{echo.NewHTTPError(http.StatusUnauthorized, "missing key"), http.StatusUnauthorized, "missing key"},
		{echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "Method Not Allowed"},
		{fmt.Errorf("get intent: %w", storage.ErrNotFound), http.StatusNotFound, "not found"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "upstream timed out"},
		{errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		code, msg := classify(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.Equal(t, tt.msg, msg)
	}
}
