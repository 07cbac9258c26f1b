package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/amm"
	"github.com/aman-zulfiqar/escrow-solver/internal/flags"
	"github.com/aman-zulfiqar/escrow-solver/internal/ledger"
	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/aman-zulfiqar/escrow-solver/internal/routing"
	"github.com/aman-zulfiqar/escrow-solver/internal/scheduler"
	"github.com/aman-zulfiqar/escrow-solver/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Handlers holds the dependencies of the ops endpoints; nil ones disable
// the endpoints that need them
type Handlers struct {
	Events       storage.EventFeed
	Switches     flags.Store
	Jobs         []*scheduler.Job
	Ledger       ledger.Service
	Pools        *routing.PoolCache
	Optimizer    *routing.Optimizer
	Intents      storage.IntentRepository
	Orders       storage.OrderRepository
	Signing      bool
	MaxBatchSize int
	DevMode      bool
	Logger       *logrus.Logger
}

// err returns a standardized JSON error response
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Status reports the chain tip, job states and routing inputs
func (h *Handlers) Status(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := StatusResponse{Signing: h.Signing, MaxBatchSize: h.MaxBatchSize, Jobs: []JobStatus{}}

	if h.Ledger != nil {
		tip, err := h.Ledger.GetChainTip(ctx)
		if err != nil {
			resp.TipError = err.Error()
		} else {
			resp.Tip = &tip
		}
	}
	if h.Pools != nil {
		resp.Pools = len(h.Pools.Snapshot(ctx))
	}
	for _, j := range h.Jobs {
		js := JobStatus{Name: j.Name(), Running: j.Running()}
		if h.Switches != nil {
			paused, err := flags.IsPaused(ctx, h.Switches, j.Name())
			if err != nil && h.Logger != nil {
				h.Logger.WithError(err).WithField("job", j.Name()).Warn("failed to read pause switch")
			}
			js.Paused = paused
		}
		resp.Jobs = append(resp.Jobs, js)
	}
	return c.JSON(http.StatusOK, resp)
}

// RecentEvents returns confirmed ledger events, newest first.
// Accepts limit (default 50, range 1-200).
func (h *Handlers) RecentEvents(c echo.Context) error {
	if h.Events == nil {
		return h.err(c, http.StatusServiceUnavailable, "event feed is not configured", nil)
	}
	limit, err := parseLimit(c.QueryParam("limit"), 50)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Events.RecentEvents(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get events", nil)
	}
	return c.JSON(http.StatusOK, ListResponse[*models.LedgerEvent]{Items: items})
}

// ListIntents lists persisted intents, filtered by ?status=A,B
func (h *Handlers) ListIntents(c echo.Context) error {
	if h.Intents == nil {
		return h.err(c, http.StatusServiceUnavailable, "intent store is not configured", nil)
	}
	limit, err := parseLimit(c.QueryParam("limit"), 100)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": err.Error()})
	}
	filter := storage.IntentFilter{Limit: limit}
	for _, s := range splitCSVQuery(c.QueryParams()["status"]) {
		filter.Statuses = append(filter.Statuses, models.IntentStatus(strings.ToUpper(s)))
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Intents.FindMany(ctx, filter)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list intents", nil)
	}
	return c.JSON(http.StatusOK, ListResponse[*models.Intent]{Items: items})
}

// ListOrders lists persisted orders, filtered by ?status= and ?type=
func (h *Handlers) ListOrders(c echo.Context) error {
	if h.Orders == nil {
		return h.err(c, http.StatusServiceUnavailable, "order store is not configured", nil)
	}
	limit, err := parseLimit(c.QueryParam("limit"), 100)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": err.Error()})
	}
	filter := storage.OrderFilter{Limit: limit}
	for _, s := range splitCSVQuery(c.QueryParams()["status"]) {
		filter.Statuses = append(filter.Statuses, models.OrderStatus(strings.ToUpper(s)))
	}
	for _, t := range splitCSVQuery(c.QueryParams()["type"]) {
		filter.Types = append(filter.Types, models.OrderType(strings.ToUpper(t)))
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Orders.FindMany(ctx, filter)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list orders", nil)
	}
	return c.JSON(http.StatusOK, ListResponse[*models.Order]{Items: items})
}

const defaultQuoteSlippageBps uint16 = 50

// Quote prices a hypothetical intent against the current pool snapshot.
// Query: in, out (asset classes), amount, optional minOutput and
// slippageBps (default 50) used for min_received.
func (h *Handlers) Quote(c echo.Context) error {
	if h.Optimizer == nil {
		return h.err(c, http.StatusServiceUnavailable, "router is not configured", nil)
	}

	in, err := models.ParseAssetClass(c.QueryParam("in"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid input asset", map[string]any{"in": err.Error()})
	}
	out, err := models.ParseAssetClass(c.QueryParam("out"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid output asset", map[string]any{"out": err.Error()})
	}
	if in == out {
		return h.err(c, http.StatusBadRequest, "input and output assets must differ", nil)
	}
	amount, err := strconv.ParseUint(strings.TrimSpace(c.QueryParam("amount")), 10, 64)
	if err != nil || amount == 0 {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "positive integer required"})
	}
	var minOut uint64
	if v := strings.TrimSpace(c.QueryParam("minOutput")); v != "" {
		if minOut, err = strconv.ParseUint(v, 10, 64); err != nil {
			return h.err(c, http.StatusBadRequest, "invalid minOutput", nil)
		}
	}
	slippage := defaultQuoteSlippageBps
	if v := strings.TrimSpace(c.QueryParam("slippageBps")); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil || n > 10_000 {
			return h.err(c, http.StatusBadRequest, "invalid slippageBps", map[string]any{"slippageBps": "integer between 0 and 10000 required"})
		}
		slippage = uint16(n)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	route := h.Optimizer.FindBestRoute(ctx, &models.EscrowIntent{
		InputAsset:  in,
		InputAmount: amount,
		OutputAsset: out,
		MinOutput:   minOut,
	})
	if route == nil {
		return h.err(c, http.StatusNotFound, "no route", nil)
	}
	feeBps := make([]uint64, len(route.Hops))
	for i, hop := range route.Hops {
		feeBps[i] = amm.RatioBps(hop.Fee, hop.AmountIn)
	}
	return c.JSON(http.StatusOK, QuoteResponse{
		InputAsset:     in.String(),
		OutputAsset:    out.String(),
		AmountIn:       amount,
		SlippageBps:    slippage,
		MinReceived:    amm.MinReceived(route.TotalOutput, slippage),
		PriceImpactBps: route.PriceImpact.Shift(4).Round(0).IntPart(),
		HopFeeBps:      feeBps,
		Route:          route,
	})
}

func (h *Handlers) JobsList(c echo.Context) error {
	if h.Switches == nil {
		return h.err(c, http.StatusServiceUnavailable, "switches are not configured", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	items, err := h.Switches.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list switches", nil)
	}
	return c.JSON(http.StatusOK, ListResponse[*flags.Switch]{Items: items})
}

func (h *Handlers) JobsGet(c echo.Context) error {
	if h.Switches == nil {
		return h.err(c, http.StatusServiceUnavailable, "switches are not configured", nil)
	}
	job := c.Param("job")
	if err := flags.ValidateJob(job); err != nil {
		return h.err(c, http.StatusNotFound, "unknown job", map[string]any{"jobs": flags.Jobs})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	sw, err := h.Switches.Get(ctx, job)
	if errors.Is(err, flags.ErrNotFound) {
		return c.JSON(http.StatusOK, flags.Switch{Job: job})
	}
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get switch", nil)
	}
	return c.JSON(http.StatusOK, sw)
}

// JobsUpdate pauses or resumes a job
func (h *Handlers) JobsUpdate(c echo.Context) error {
	if h.Switches == nil {
		return h.err(c, http.StatusServiceUnavailable, "switches are not configured", nil)
	}
	job := c.Param("job")
	if err := flags.ValidateJob(job); err != nil {
		return h.err(c, http.StatusNotFound, "unknown job", map[string]any{"jobs": flags.Jobs})
	}
	var req JobUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	sw, err := h.Switches.Set(ctx, job, req.Paused, strings.TrimSpace(req.Reason))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update switch", nil)
	}
	if h.Logger != nil {
		h.Logger.WithFields(logrus.Fields{"job": job, "paused": sw.Paused, "reason": sw.Reason}).Info("job switch updated")
	}
	return c.JSON(http.StatusOK, sw)
}

func parseLimit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if n < 1 || n > 200 {
		return 0, errors.New("min 1 max 200")
	}
	return n, nil
}
