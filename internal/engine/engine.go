// Package engine runs the bar-by-bar trading simulation: it feeds banded bars
// to a strategy, sizes and risk-checks the resulting orders, executes them on
// a broker and records trades and the equity curve.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"bandtest/internal/broker"
	"bandtest/internal/domain"
	"bandtest/internal/metrics"
	"bandtest/internal/strategy"
)

// Engine orchestrates one simulation run. It is not reusable: the broker it
// wraps carries the run's cash and position.
type Engine struct {
	broker      broker.Broker
	riskChecker *RiskManager
	log         *slog.Logger
}

// NewEngine creates a new Engine wired with the given dependencies.
func NewEngine(b broker.Broker, riskChecker *RiskManager, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		broker:      b,
		riskChecker: riskChecker,
		log:         log,
	}
}

// Outcome is the raw product of a simulation pass.
type Outcome struct {
	EquityCurve []domain.EquityPoint
	Trades      []domain.Trade
	Sells       int
	Wins        int
	Metrics     domain.Metrics
}

// Run simulates strat over bars dated on or after start. Bars before start are
// skipped; they exist only to warm up the indicator. It fails with
// ErrInvalidParameters for non-positive initialCapital and ErrEmptyDataset
// when no bar remains.
func (e *Engine) Run(
	ctx context.Context,
	strat strategy.Strategy,
	bars []domain.BandedBar,
	start time.Time,
	initialCapital float64,
) (*Outcome, error) {
	if !(initialCapital > 0) {
		return nil, domain.NewFieldError(domain.ErrInvalidParameters, "initial_capital", initialCapital)
	}

	first := sort.Search(len(bars), func(i int) bool { return !bars[i].Date.Before(start) })
	active := bars[first:]
	if len(active) == 0 {
		return nil, domain.NewFieldError(domain.ErrEmptyDataset, "start", start.Format("2006-01-02"))
	}

	acct, err := e.broker.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading account: %w", err)
	}
	if acct.LotSize != e.riskChecker.LotSize() {
		return nil, fmt.Errorf("broker lot %d does not match risk lot %d", acct.LotSize, e.riskChecker.LotSize())
	}

	if err := strat.Init(ctx); err != nil {
		return nil, fmt.Errorf("initialising strategy %s: %w", strat.Name(), err)
	}

	out := &Outcome{
		EquityCurve: make([]domain.EquityPoint, 0, len(active)),
	}
	lastBuy := 0.0
	hasBuy := false

	for _, bar := range active {
		point := domain.EquityPoint{
			Date:   bar.Date,
			Close:  bar.Close,
			Action: domain.ActionNone,
		}

		if bar.HasBands {
			point.Mid, point.Upper, point.Lower = ptr(bar.Mid), ptr(bar.Upper), ptr(bar.Lower)

			acct, err := e.broker.GetAccount(ctx)
			if err != nil {
				return nil, fmt.Errorf("reading account: %w", err)
			}
			signals, err := strat.OnBar(ctx, bar, *acct)
			if err != nil {
				return nil, fmt.Errorf("strategy %s on %s: %w", strat.Name(), bar.Date.Format("2006-01-02"), err)
			}

			for _, sig := range signals {
				trade, err := e.execute(ctx, bar, sig, len(out.Trades)+1)
				if err != nil {
					return nil, err
				}
				if trade == nil {
					continue
				}
				out.Trades = append(out.Trades, *trade)

				switch trade.Side {
				case domain.SideBuy:
					lastBuy, hasBuy = trade.Price, true
					point.Action = domain.ActionBuy
					point.BuyMarker = ptr(trade.Price)
				case domain.SideSell:
					out.Sells++
					if hasBuy && trade.Price > lastBuy {
						out.Wins++
					}
					point.Action = domain.ActionSell
					point.SellMarker = ptr(trade.Price)
				}
				e.log.Debug("trade",
					"date", trade.Date.Format("2006-01-02"),
					"side", trade.Side,
					"price", trade.Price,
					"shares", trade.Shares,
				)
				// One action per bar.
				break
			}
		}

		acct, err := e.broker.GetAccount(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading account: %w", err)
		}
		point.Equity = acct.Equity(bar.Close)
		out.EquityCurve = append(out.EquityCurve, point)
	}

	out.Metrics = metrics.Compute(out.EquityCurve, initialCapital, out.Sells, out.Wins)
	return out, nil
}

// execute sizes a signal into an order, risk-checks it and submits it. It
// returns a nil trade when the signal sizes to zero shares.
func (e *Engine) execute(ctx context.Context, bar domain.BandedBar, sig domain.Signal, seq int) (*domain.Trade, error) {
	acct, err := e.broker.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading account: %w", err)
	}

	order := &domain.Order{
		ID:        strconv.Itoa(seq),
		Symbol:    bar.Symbol,
		Price:     sig.Price,
		Status:    domain.OrderStatusNew,
		CreatedAt: bar.Date,
	}
	switch sig.Type {
	case domain.SignalTypeBuy:
		order.Side = domain.SideBuy
		order.Qty = e.riskChecker.BuyQty(acct.Cash, sig.Price, acct.Shares)
	case domain.SignalTypeSell:
		order.Side = domain.SideSell
		order.Qty = acct.Shares
	default:
		return nil, fmt.Errorf("unknown signal type %q", sig.Type)
	}
	if order.Qty == 0 {
		return nil, nil
	}

	if err := e.riskChecker.CheckOrder(order, acct); err != nil {
		return nil, fmt.Errorf("risk check on %s: %w", bar.Date.Format("2006-01-02"), err)
	}
	filled, err := e.broker.SubmitOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("submitting order on %s: %w", bar.Date.Format("2006-01-02"), err)
	}

	return &domain.Trade{
		Date:   bar.Date,
		Side:   filled.Side,
		Price:  filled.FilledAvgPrice,
		Shares: filled.FilledQty,
		Reason: sig.Reason,
	}, nil
}

func ptr(v float64) *float64 { return &v }
