package engine

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"bandtest/internal/broker"
	"bandtest/internal/domain"
	"bandtest/internal/indicator"
	"bandtest/internal/strategy/builtins"
)

var day0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func bandedCloses(t *testing.T, window int, k float64, closes ...float64) []domain.BandedBar {
	t.Helper()
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Symbol: "TEST", Date: day0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	banded, err := indicator.Bollinger(bars, window, k)
	if err != nil {
		t.Fatalf("Bollinger: %v", err)
	}
	return banded
}

func newTestEngine(capital float64) *Engine {
	return NewEngine(broker.NewSimulatorBroker(capital, 100), NewRiskManager(100), nil)
}

func TestNewEngine(t *testing.T) {
	e := NewEngine(nil, nil, nil)
	if e == nil {
		t.Fatal("NewEngine returned nil")
	}
}

func TestRunWorkedScenario(t *testing.T) {
	bars := bandedCloses(t, 3, 1, 100, 101, 99, 98, 97, 103, 108, 95, 90)

	out, err := newTestEngine(10000).Run(context.Background(), builtins.NewBollingerReversion(), bars, day0, 10000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantEquity := []float64{10000, 10000, 10000, 9900, 9800, 10400, 10400, 10400, 9900}
	if len(out.EquityCurve) != len(wantEquity) {
		t.Fatalf("equity curve has %d points, want %d", len(out.EquityCurve), len(wantEquity))
	}
	for i, want := range wantEquity {
		if got := out.EquityCurve[i].Equity; math.Abs(got-want) > 1e-9 {
			t.Errorf("equity[%d] = %v, want %v", i, got, want)
		}
	}

	wantTrades := []struct {
		day    int
		side   domain.Side
		price  float64
		shares int64
	}{
		{2, domain.SideBuy, 99, 100},
		{5, domain.SideSell, 103, 100},
		{7, domain.SideBuy, 95, 100},
	}
	if len(out.Trades) != len(wantTrades) {
		t.Fatalf("got %d trades, want %d: %+v", len(out.Trades), len(wantTrades), out.Trades)
	}
	for i, w := range wantTrades {
		tr := out.Trades[i]
		if !tr.Date.Equal(day0.AddDate(0, 0, w.day)) || tr.Side != w.side || tr.Price != w.price || tr.Shares != w.shares {
			t.Errorf("trade %d = %+v, want day %d %s %d@%v", i, tr, w.day+1, w.side, w.shares, w.price)
		}
	}
	if out.Trades[0].Reason != "price (99) touched lower band" {
		t.Errorf("buy reason = %q", out.Trades[0].Reason)
	}
	if out.Trades[1].Reason != "price (103) touched upper band" {
		t.Errorf("sell reason = %q", out.Trades[1].Reason)
	}

	wantActions := []domain.Action{
		domain.ActionNone, domain.ActionNone, domain.ActionBuy, domain.ActionNone, domain.ActionNone,
		domain.ActionSell, domain.ActionNone, domain.ActionBuy, domain.ActionNone,
	}
	for i, want := range wantActions {
		p := out.EquityCurve[i]
		if p.Action != want {
			t.Errorf("action[%d] = %q, want %q", i, p.Action, want)
		}
		if (p.BuyMarker != nil) != (want == domain.ActionBuy) || (p.SellMarker != nil) != (want == domain.ActionSell) {
			t.Errorf("markers[%d] = (%v, %v) inconsistent with action %q", i, p.BuyMarker, p.SellMarker, want)
		}
	}
	if *out.EquityCurve[2].BuyMarker != 99 || *out.EquityCurve[5].SellMarker != 103 {
		t.Error("markers do not carry the fill price")
	}
	if out.EquityCurve[0].Mid != nil || out.EquityCurve[2].Mid == nil {
		t.Error("band values on equity points do not follow band definedness")
	}

	m := out.Metrics
	if m.FinalEquity != 9900 || m.TotalTrades != 1 || m.WinRatePct != 100 {
		t.Errorf("metrics = %+v, want final 9900, 1 trade, 100%% wins", m)
	}
	if math.Abs(m.TotalReturnPct-(-1)) > 1e-9 {
		t.Errorf("TotalReturnPct = %v, want -1", m.TotalReturnPct)
	}
	if math.Abs(m.MaxDrawdownPct-5.769230769) > 1e-6 {
		t.Errorf("MaxDrawdownPct = %v, want ~5.77", m.MaxDrawdownPct)
	}
}

func TestRunDropsBarsBeforeStart(t *testing.T) {
	bars := bandedCloses(t, 3, 1, 100, 101, 99, 98, 97, 103, 108, 95, 90)
	start := day0.AddDate(0, 0, 3)

	out, err := newTestEngine(10000).Run(context.Background(), builtins.NewBollingerReversion(), bars, start, 10000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.EquityCurve) != 6 {
		t.Fatalf("equity curve has %d points, want 6", len(out.EquityCurve))
	}
	if !out.EquityCurve[0].Date.Equal(start) {
		t.Errorf("first simulated date = %v, want %v", out.EquityCurve[0].Date, start)
	}
	// Warm-up bars give the first simulated bar defined bands; day 4 (98)
	// touches the lower band with full cash.
	if out.Trades[0].Price != 98 || out.Trades[0].Side != domain.SideBuy {
		t.Errorf("first trade = %+v, want buy at 98", out.Trades[0])
	}
}

func TestRunInvariants(t *testing.T) {
	closes := []float64{50, 48, 47, 52, 55, 49, 45, 44, 50, 58, 61, 57, 52, 50, 49, 60, 62, 40, 39, 41, 50, 65}
	bars := bandedCloses(t, 4, 1.2, closes...)

	b := broker.NewSimulatorBroker(12345, 100)
	e := NewEngine(b, NewRiskManager(100), nil)
	out, err := e.Run(context.Background(), builtins.NewBollingerReversion(), bars, day0, 12345)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Trades) == 0 {
		t.Fatal("expected at least one trade")
	}

	cash, shares := 12345.0, int64(0)
	for i, tr := range out.Trades {
		if tr.Shares <= 0 || tr.Shares%100 != 0 {
			t.Errorf("trade %d shares %d not a positive lot multiple", i, tr.Shares)
		}
		if tr.Side == domain.SideBuy {
			cash -= float64(tr.Shares) * tr.Price
			shares += tr.Shares
		} else {
			cash += float64(tr.Shares) * tr.Price
			shares -= tr.Shares
		}
		if cash < 0 {
			t.Errorf("cash negative after trade %d: %v", i, cash)
		}
		if shares < 0 {
			t.Errorf("shares negative after trade %d: %d", i, shares)
		}
	}
	if b.Fills() != len(out.Trades) {
		t.Errorf("broker fills %d != trades %d", b.Fills(), len(out.Trades))
	}
}

func TestRunIsReproducible(t *testing.T) {
	bars := bandedCloses(t, 3, 1, 100, 101, 99, 98, 97, 103, 108, 95, 90)
	a, err := newTestEngine(10000).Run(context.Background(), builtins.NewBollingerReversion(), bars, day0, 10000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := newTestEngine(10000).Run(context.Background(), builtins.NewBollingerReversion(), bars, day0, 10000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("two runs over identical input differ")
	}
}

func TestRunErrors(t *testing.T) {
	bars := bandedCloses(t, 3, 1, 100, 101, 99)
	strat := builtins.NewBollingerReversion()

	if _, err := newTestEngine(0).Run(context.Background(), strat, bars, day0, 0); !errors.Is(err, domain.ErrInvalidParameters) {
		t.Errorf("zero capital error = %v, want ErrInvalidParameters", err)
	}
	if _, err := newTestEngine(100).Run(context.Background(), strat, nil, day0, 100); !errors.Is(err, domain.ErrEmptyDataset) {
		t.Errorf("no bars error = %v, want ErrEmptyDataset", err)
	}
	late := day0.AddDate(0, 1, 0)
	if _, err := newTestEngine(100).Run(context.Background(), strat, bars, late, 100); !errors.Is(err, domain.ErrEmptyDataset) {
		t.Errorf("start after data error = %v, want ErrEmptyDataset", err)
	}
}

func TestRiskManagerBuyQty(t *testing.T) {
	rm := NewRiskManager(100)
	tests := []struct {
		cash, price float64
		want        int64
	}{
		{10000, 99, 100},
		{10400, 95, 100},
		{20000, 99, 200},
		{9899, 99, 0},
		{9900, 99, 100},
		{0, 10, 0},
		{100, 0, 0},
		{math.NaN(), 10, 0},
	}
	for _, tt := range tests {
		if got := rm.BuyQty(tt.cash, tt.price, 0); got != tt.want {
			t.Errorf("BuyQty(%v, %v) = %d, want %d", tt.cash, tt.price, got, tt.want)
		}
	}
}

func TestRiskManagerBuyQtyClampsToInt64(t *testing.T) {
	rm := NewRiskManager(100)
	maxQty := int64(math.MaxInt64/100) * 100

	tests := []struct {
		name        string
		cash, price float64
		held        int64
		want        int64
	}{
		{"huge cash", 1e30, 99, 0, maxQty},
		{"tiny price", 1e6, 1e-300, 0, maxQty},
		{"infinite cash", math.Inf(1), 99, 0, maxQty},
		{"headroom shrinks with holdings", 1e30, 99, maxQty - 500, 500},
		{"no headroom", 1e30, 99, maxQty, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rm.BuyQty(tt.cash, tt.price, tt.held)
			if got != tt.want {
				t.Errorf("BuyQty = %d, want %d", got, tt.want)
			}
			if got < 0 || got%100 != 0 {
				t.Errorf("BuyQty = %d is not a non-negative whole lot", got)
			}
		})
	}
}

func TestRunHugeCapitalStillTrades(t *testing.T) {
	bars := bandedCloses(t, 3, 1, 100, 101, 99, 98, 97, 103, 108, 95, 90)

	for _, capital := range []float64{1e15, 1e19, 1e30} {
		out, err := newTestEngine(capital).Run(context.Background(), builtins.NewBollingerReversion(), bars, day0, capital)
		if err != nil {
			t.Fatalf("Run(%g): %v", capital, err)
		}
		var sides []domain.Side
		for _, tr := range out.Trades {
			if tr.Shares <= 0 || tr.Shares%100 != 0 {
				t.Errorf("capital %g: trade %+v is not a positive whole lot", capital, tr)
			}
			sides = append(sides, tr.Side)
		}
		want := []domain.Side{domain.SideBuy, domain.SideSell, domain.SideBuy}
		if !reflect.DeepEqual(sides, want) {
			t.Errorf("capital %g: trade sides = %v, want %v", capital, sides, want)
		}
	}
}

func TestRunLotMismatch(t *testing.T) {
	bars := bandedCloses(t, 3, 1, 100, 101, 99)
	e := NewEngine(broker.NewSimulatorBroker(10000, 100), NewRiskManager(10), nil)
	if _, err := e.Run(context.Background(), builtins.NewBollingerReversion(), bars, day0, 10000); err == nil {
		t.Error("Run with mismatched lot sizes should fail")
	}
}

func TestRiskManagerCheckOrder(t *testing.T) {
	rm := NewRiskManager(100)
	account := &domain.AccountInfo{Cash: 10000, Shares: 200, LotSize: 100}

	ok := &domain.Order{ID: "1", Side: domain.SideBuy, Qty: 100, Price: 99}
	if err := rm.CheckOrder(ok, account); err != nil {
		t.Fatalf("CheckOrder returned unexpected error: %v", err)
	}

	bad := []*domain.Order{
		{ID: "2", Side: domain.SideBuy, Qty: 200, Price: 99},
		{ID: "3", Side: domain.SideBuy, Qty: 50, Price: 1},
		{ID: "4", Side: domain.SideSell, Qty: 300, Price: 1},
	}
	for _, o := range bad {
		if err := rm.CheckOrder(o, account); err == nil {
			t.Errorf("CheckOrder(%+v) returned nil, want error", o)
		}
	}
}
