// Package report renders backtest results as CSV files and a plain-text
// summary.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"bandtest/internal/domain"
	"bandtest/internal/metrics"
	"bandtest/internal/util"
)

// Summary holds the headline metrics rounded to two decimal places.
// MaxDrawdownPct spans the global equity max and min; PeakDrawdownPct is the
// conventional largest fall from a running equity peak.
type Summary struct {
	Symbol          string `json:"symbol"`
	Strategy        string `json:"strategy"`
	Start           string `json:"start"`
	End             string `json:"end"`
	InitialCapital  string `json:"initial_capital"`
	FinalEquity     string `json:"final_equity"`
	TotalReturnPct  string `json:"total_return_pct"`
	MaxDrawdownPct  string `json:"max_drawdown_pct"`
	PeakDrawdownPct string `json:"peak_drawdown_pct"`
	WinRatePct      string `json:"win_rate_pct"`
	TotalTrades     int    `json:"total_trades"`
	WinningTrades   int    `json:"winning_trades"`
}

// Round2 rounds v half away from zero to two decimal places.
func Round2(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func fixed2(v float64) string { return Round2(v).StringFixed(2) }

// Summarize builds the rounded Summary of res.
func Summarize(res *domain.Result) Summary {
	m := res.Metrics
	return Summary{
		Symbol:          res.Symbol,
		Strategy:        res.Strategy,
		Start:           res.Start.Format(util.DateLayout),
		End:             res.End.Format(util.DateLayout),
		InitialCapital:  fixed2(res.InitialCapital),
		FinalEquity:     fixed2(m.FinalEquity),
		TotalReturnPct:  fixed2(m.TotalReturnPct),
		MaxDrawdownPct:  fixed2(m.MaxDrawdownPct),
		PeakDrawdownPct: fixed2(metrics.RunningMaxDrawdownPct(res.EquityCurve)),
		WinRatePct:      fixed2(m.WinRatePct),
		TotalTrades:     m.TotalTrades,
		WinningTrades:   m.WinningTrades,
	}
}

// WriteSummary prints the summary of res as aligned key/value lines.
func WriteSummary(w io.Writer, res *domain.Result) error {
	s := Summarize(res)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"symbol", s.Symbol},
		{"strategy", s.Strategy},
		{"range", s.Start + " .. " + s.End},
		{"initial capital", s.InitialCapital},
		{"final equity", s.FinalEquity},
		{"total return %", s.TotalReturnPct},
		{"max drawdown % (global max-min)", s.MaxDrawdownPct},
		{"peak-to-trough drawdown %", s.PeakDrawdownPct},
		{"win rate %", s.WinRatePct},
		{"closed trades", fmt.Sprintf("%d (%d winning)", s.TotalTrades, s.WinningTrades)},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteTradesCSV writes one row per executed trade.
func WriteTradesCSV(w io.Writer, trades []domain.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "side", "price", "shares", "amount", "reason"}); err != nil {
		return err
	}
	for _, t := range trades {
		err := cw.Write([]string{
			t.Date.Format(util.DateLayout),
			string(t.Side),
			formatF(t.Price),
			strconv.FormatInt(t.Shares, 10),
			fixed2(t.Price * float64(t.Shares)),
			t.Reason,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes one row per simulated day. Undefined bands are
// written as empty cells.
func WriteEquityCSV(w io.Writer, curve []domain.EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "close", "mid", "upper", "lower", "equity", "action"}); err != nil {
		return err
	}
	for _, p := range curve {
		err := cw.Write([]string{
			p.Date.Format(util.DateLayout),
			formatF(p.Close),
			formatPtr(p.Mid),
			formatPtr(p.Upper),
			formatPtr(p.Lower),
			fixed2(p.Equity),
			string(p.Action),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func formatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return fixed2(*f)
}
