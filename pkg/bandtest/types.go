package bandtest

import "time"

// BacktestRequest describes a backtest. Empty or nil fields take the
// server's defaults.
type BacktestRequest struct {
	Symbol         string   `json:"symbol,omitempty"`
	Strategy       string   `json:"strategy,omitempty"`
	Source         string   `json:"source,omitempty"`
	StartDate      string   `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate        string   `json:"end_date,omitempty"`   // YYYY-MM-DD
	InitialCapital *float64 `json:"initial_capital,omitempty"`
	Period         *int     `json:"period,omitempty"`
	Multiplier     *float64 `json:"multiplier,omitempty"`
	LotSize        *int64   `json:"lot_size,omitempty"`
}

// Float64 returns a pointer to v, for optional request fields.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for optional request fields.
func Int(v int) *int { return &v }

// Bar is one day's OHLCV record.
type Bar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

type Trade struct {
	Date   time.Time `json:"date"`
	Side   string    `json:"side"`
	Price  float64   `json:"price"`
	Shares int64     `json:"shares"`
	Reason string    `json:"reason"`
}

// EquityPoint is the account value after one simulated day. Band fields are
// nil until the indicator window fills.
type EquityPoint struct {
	Date       time.Time `json:"date"`
	Close      float64   `json:"close"`
	Mid        *float64  `json:"mid_band,omitempty"`
	Upper      *float64  `json:"upper_band,omitempty"`
	Lower      *float64  `json:"lower_band,omitempty"`
	Equity     float64   `json:"equity"`
	Action     string    `json:"action"`
	BuyMarker  *float64  `json:"buy_marker,omitempty"`
	SellMarker *float64  `json:"sell_marker,omitempty"`
}

type Metrics struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	FinalEquity    float64 `json:"final_equity"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	WinRatePct     float64 `json:"win_rate_pct"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
}

type Result struct {
	Symbol         string        `json:"symbol"`
	Strategy       string        `json:"strategy"`
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	InitialCapital float64       `json:"initial_capital"`
	Period         int           `json:"bollinger_period"`
	Multiplier     float64       `json:"bollinger_multiplier"`
	LotSize        int64         `json:"lot_size"`
	EquityCurve    []EquityPoint `json:"equity_curve"`
	Trades         []Trade       `json:"trades"`
	Metrics        Metrics       `json:"metrics"`
}

// Summary holds the headline metrics as two-decimal strings.
// PeakDrawdownPct is the conventional running-peak drawdown; MaxDrawdownPct
// spans the global equity max and min.
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

type BacktestResponse struct {
	RunID   string  `json:"run_id"`
	Summary Summary `json:"summary"`
	Result  *Result `json:"result"`
}

// Profile parameterises the synthetic price generator for a symbol.
type Profile struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Code       string  `json:"code"`
	Market     string  `json:"market"`
	StartPrice float64 `json:"start_price"`
	Volatility float64 `json:"volatility"`
	Trend      float64 `json:"trend"`
}

// Strategies lists what the server can run.
type Strategies struct {
	Strategies []string `json:"strategies"`
	Sources    []string `json:"sources"`
}
