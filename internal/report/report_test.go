package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"bandtest/internal/domain"
)

var day0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func sampleResult() *domain.Result {
	return &domain.Result{
		Symbol:         "600519",
		Strategy:       "bollinger-reversion",
		Start:          day0,
		End:            day0.AddDate(0, 0, 1),
		InitialCapital: 10000,
		EquityCurve: []domain.EquityPoint{
			{Date: day0, Close: 100, Equity: 10000, Action: domain.ActionNone},
			{Date: day0.AddDate(0, 0, 1), Close: 99, Mid: ptr(100), Upper: ptr(100.816), Lower: ptr(99.1835), Equity: 10000, Action: domain.ActionBuy, BuyMarker: ptr(99)},
		},
		Trades: []domain.Trade{
			{Date: day0.AddDate(0, 0, 1), Side: domain.SideBuy, Price: 99, Shares: 100, Reason: "price (99) touched lower band"},
		},
		Metrics: domain.Metrics{
			TotalReturnPct: -1.005,
			FinalEquity:    9899.5,
			MaxDrawdownPct: 5.769230769,
			WinRatePct:     100.0 / 3,
			TotalTrades:    3,
			WinningTrades:  1,
		},
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{5.769230769, "5.77"},
		{-1.005, "-1.01"},
		{2.5, "2.50"},
		{0, "0.00"},
		{33.333333, "33.33"},
	}
	for _, tt := range tests {
		if got := Round2(tt.in).StringFixed(2); got != tt.want {
			t.Errorf("Round2(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleResult())
	if s.MaxDrawdownPct != "5.77" || s.WinRatePct != "33.33" || s.FinalEquity != "9899.50" {
		t.Errorf("Summarize = %+v", s)
	}
	if s.Start != "2023-01-01" || s.End != "2023-01-02" {
		t.Errorf("range = %s..%s", s.Start, s.End)
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"600519", "5.77", "3 (1 winning)", "2023-01-01 .. 2023-01-02"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteTradesCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTradesCSV(&buf, sampleResult().Trades); err != nil {
		t.Fatalf("WriteTradesCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(rows))
	}
	want := []string{"2023-01-02", "buy", "99", "100", "9900.00", "price (99) touched lower band"}
	for i, w := range want {
		if rows[1][i] != w {
			t.Errorf("row[1][%d] = %q, want %q", i, rows[1][i], w)
		}
	}
}

func TestWriteEquityCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEquityCSV(&buf, sampleResult().EquityCurve); err != nil {
		t.Fatalf("WriteEquityCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[1][2] != "" || rows[1][6] != "none" {
		t.Errorf("first row = %v, want empty bands and action none", rows[1])
	}
	if rows[2][2] != "100.00" || rows[2][3] != "100.82" || rows[2][4] != "99.18" || rows[2][6] != "buy" {
		t.Errorf("second row = %v", rows[2])
	}
}

func TestSummarizeDrawdowns(t *testing.T) {
	res := sampleResult()
	res.EquityCurve = nil
	for _, e := range []float64{100, 120, 90, 130} {
		res.EquityCurve = append(res.EquityCurve, domain.EquityPoint{Equity: e})
	}
	res.Metrics.MaxDrawdownPct = 30.769230769

	s := Summarize(res)
	if s.MaxDrawdownPct != "30.77" {
		t.Errorf("MaxDrawdownPct = %s, want 30.77", s.MaxDrawdownPct)
	}
	if s.PeakDrawdownPct != "25.00" {
		t.Errorf("PeakDrawdownPct = %s, want 25.00", s.PeakDrawdownPct)
	}

	var buf bytes.Buffer
	if err := WriteSummary(&buf, res); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	if !strings.Contains(buf.String(), "peak-to-trough drawdown %") {
		t.Errorf("summary missing the peak-to-trough line:\n%s", buf.String())
	}
}
