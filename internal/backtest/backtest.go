// Package backtest wires a bar source, the Bollinger indicator, the
// simulation engine and the metrics into a single backtest run.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"bandtest/internal/broker"
	"bandtest/internal/domain"
	"bandtest/internal/engine"
	"bandtest/internal/gather"
	"bandtest/internal/indicator"
	"bandtest/internal/strategy"
	"bandtest/internal/trace"
	"bandtest/internal/util"
)

var (
	// ErrUnknownStrategy is returned when the requested strategy is not registered.
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrUnknownSource is returned when the requested bar source is not registered.
	ErrUnknownSource = errors.New("unknown bar source")
)

// DefaultLotSize is used when a request leaves LotSize unset.
const DefaultLotSize = 100

// Upper bounds on a single run. Band computation costs O(bars*period), so
// both are capped to keep one request cheap.
const (
	MaxPeriod    = 250
	MaxRangeDays = 30 * 366
)

// Request describes one backtest run.
type Request struct {
	Strategy       string    `json:"strategy"`
	Symbol         string    `json:"symbol"`
	Source         string    `json:"source"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	InitialCapital float64   `json:"initial_capital"`
	Period         int       `json:"period"`
	Multiplier     float64   `json:"multiplier"`
	LotSize        int64     `json:"lot_size"`
}

// Validate checks the request parameters. It reports ErrInvalidRange before
// ErrInvalidParameters.
func (r Request) Validate() error {
	if r.End.Before(r.Start) {
		return domain.NewFieldError(domain.ErrInvalidRange, "end",
			fmt.Sprintf("%s before %s", r.End.Format(util.DateLayout), r.Start.Format(util.DateLayout)))
	}
	if days := util.DaysBetween(r.Start, r.End); days > MaxRangeDays {
		return domain.NewFieldError(domain.ErrInvalidParameters, "end",
			fmt.Sprintf("range of %d days exceeds %d", days, MaxRangeDays))
	}
	if !(r.InitialCapital > 0) {
		return domain.NewFieldError(domain.ErrInvalidParameters, "initial_capital", r.InitialCapital)
	}
	if r.Period < 1 || r.Period > MaxPeriod {
		return domain.NewFieldError(domain.ErrInvalidParameters, "period", r.Period)
	}
	if !(r.Multiplier > 0) {
		return domain.NewFieldError(domain.ErrInvalidParameters, "multiplier", r.Multiplier)
	}
	if r.LotSize < 0 {
		return domain.NewFieldError(domain.ErrInvalidParameters, "lot_size", r.LotSize)
	}
	return nil
}

// Backtester replays daily bars through a strategy and computes performance
// metrics. It holds no per-run state, so one Backtester serves concurrent
// runs.
type Backtester struct {
	registry *strategy.Registry
	sources  map[string]gather.BarSource
	log      *slog.Logger
}

// NewBacktester creates a Backtester that looks up strategies in registry and
// reads bars from the given sources, keyed by their Name().
func NewBacktester(registry *strategy.Registry, log *slog.Logger, sources ...gather.BarSource) *Backtester {
	if log == nil {
		log = slog.Default()
	}
	bt := &Backtester{
		registry: registry,
		sources:  make(map[string]gather.BarSource, len(sources)),
		log:      log,
	}
	for _, s := range sources {
		bt.sources[s.Name()] = s
	}
	return bt
}

// Sources returns the names of the registered bar sources, sorted.
func (bt *Backtester) Sources() []string {
	names := make([]string, 0, len(bt.sources))
	for name := range bt.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Strategies returns the names of the registered strategies, sorted.
func (bt *Backtester) Strategies() []string {
	return bt.registry.List()
}

// Bars fetches the bars the named source supplies for a run over
// [start, end], warm-up window included.
func (bt *Backtester) Bars(ctx context.Context, source, symbol string, start, end time.Time) ([]domain.Bar, error) {
	src, ok := bt.sources[source]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	bars, err := src.Bars(ctx, symbol, util.Truncate(start), util.Truncate(end))
	if err != nil {
		return nil, fmt.Errorf("fetching %s bars from %s: %w", symbol, source, err)
	}
	return bars, nil
}

// Run executes req against its bar source.
func (bt *Backtester) Run(ctx context.Context, req Request) (*domain.Result, error) {
	req = normalize(req)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	strat, err := bt.lookupStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}
	bars, err := bt.Bars(ctx, req.Source, req.Symbol, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	return bt.run(ctx, req, strat, bars)
}

// RunBars executes req against a caller-supplied bar sequence. Bars dated
// before req.Start only warm up the indicator. req.Source is ignored.
func (bt *Backtester) RunBars(ctx context.Context, req Request, bars []domain.Bar) (*domain.Result, error) {
	req = normalize(req)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	strat, err := bt.lookupStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}
	return bt.run(ctx, req, strat, bars)
}

func (bt *Backtester) lookupStrategy(name string) (strategy.Strategy, error) {
	strat, ok := bt.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return strat, nil
}

func (bt *Backtester) run(ctx context.Context, req Request, strat strategy.Strategy, bars []domain.Bar) (*domain.Result, error) {
	ctx, span := trace.StartSpan(ctx, "backtest.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", req.Symbol),
		attribute.String("strategy", req.Strategy),
		attribute.Int("period", req.Period),
	)

	if err := domain.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("validating %s bars: %w", req.Symbol, err)
	}
	last := sort.Search(len(bars), func(i int) bool { return bars[i].Date.After(req.End) })
	bars = bars[:last]
	if len(bars) == 0 {
		return nil, domain.NewFieldError(domain.ErrEmptyDataset, "symbol", req.Symbol)
	}

	banded, err := indicator.Bollinger(bars, req.Period, req.Multiplier)
	if err != nil {
		return nil, err
	}

	sim := broker.NewSimulatorBroker(req.InitialCapital, req.LotSize)
	eng := engine.NewEngine(sim, engine.NewRiskManager(req.LotSize), bt.log)
	out, err := eng.Run(ctx, strat, banded, req.Start, req.InitialCapital)
	if err != nil {
		return nil, err
	}

	res := &domain.Result{
		Symbol:         req.Symbol,
		Strategy:       req.Strategy,
		Start:          req.Start,
		End:            req.End,
		InitialCapital: req.InitialCapital,
		Period:         req.Period,
		Multiplier:     req.Multiplier,
		LotSize:        req.LotSize,
		EquityCurve:    out.EquityCurve,
		Trades:         out.Trades,
		Metrics:        out.Metrics,
	}

	log := bt.log
	if traceID, spanID, ok := trace.TraceFields(ctx); ok {
		log = log.With("trace_id", traceID, "span_id", spanID)
	}
	log.Info("backtest complete",
		"symbol", res.Symbol,
		"strategy", res.Strategy,
		"start", res.Start.Format(util.DateLayout),
		"end", res.End.Format(util.DateLayout),
		"bars", len(res.EquityCurve),
		"fills", sim.Fills(),
		"total_return_pct", res.Metrics.TotalReturnPct,
		"max_drawdown_pct", res.Metrics.MaxDrawdownPct,
	)
	return res, nil
}

func normalize(req Request) Request {
	req.Start, req.End = util.Truncate(req.Start), util.Truncate(req.End)
	if req.LotSize == 0 {
		req.LotSize = DefaultLotSize
	}
	return req
}
