// Package domain defines the core value types shared across the bandtest
// packages: bars, band-augmented bars, signals, orders, trades, equity points
// and backtest results.
package domain

import "time"

// Market identifies the exchange group a symbol trades on.
type Market string

const (
	MarketCN Market = "cn"
	MarketUS Market = "us"
)

// Bar is one day's OHLCV record. Date is a UTC calendar date (midnight).
type Bar struct {
	Symbol string    `json:"symbol,omitempty"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// BandedBar is a Bar extended with Bollinger band values. When HasBands is
// false the window had insufficient history and Mid/Upper/Lower are zero.
type BandedBar struct {
	Bar
	Mid      float64 `json:"mid_band"`
	Upper    float64 `json:"upper_band"`
	Lower    float64 `json:"lower_band"`
	HasBands bool    `json:"has_bands"`
}

// SymbolProfile parameterises the synthetic price generator for one symbol.
type SymbolProfile struct {
	Symbol     string  `json:"symbol" yaml:"symbol"`
	Name       string  `json:"name" yaml:"name"`
	Code       string  `json:"code" yaml:"code"` // exchange-qualified code, e.g. 600519.SH
	Market     Market  `json:"market" yaml:"market"`
	StartPrice float64 `json:"start_price" yaml:"start_price"`
	Volatility float64 `json:"volatility" yaml:"volatility"`
	Trend      float64 `json:"trend" yaml:"trend"`
}

// Side is the direction of an order or trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Action is the simulator decision recorded on an equity point.
type Action string

const (
	ActionNone Action = "none"
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// SignalType is the kind of trading signal a strategy emits.
type SignalType string

const (
	SignalTypeBuy  SignalType = "buy"
	SignalTypeSell SignalType = "sell"
)

// Signal is a strategy's request to act on the current bar.
type Signal struct {
	Type   SignalType
	Price  float64
	Reason string
}

// OrderStatus tracks an order through the simulator broker.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "new"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusRejected OrderStatus = "rejected"
)

// Order is a market order filled at Price by the simulator broker.
type Order struct {
	ID             string
	Symbol         string
	Side           Side
	Qty            int64
	Price          float64
	Status         OrderStatus
	FilledQty      int64
	FilledAvgPrice float64
	CreatedAt      time.Time
}

// AccountInfo is a snapshot of the simulated cash account.
type AccountInfo struct {
	Cash    float64
	Shares  int64
	LotSize int64
}

// Equity marks the account to market at price.
func (a AccountInfo) Equity(price float64) float64 {
	return a.Cash + float64(a.Shares)*price
}

// Trade is an executed fill. Trades are immutable once recorded.
type Trade struct {
	Date   time.Time `json:"date"`
	Side   Side      `json:"side"`
	Price  float64   `json:"price"`
	Shares int64     `json:"shares"`
	Reason string    `json:"reason"`
}

// EquityPoint is the account value after processing one bar.
type EquityPoint struct {
	Date       time.Time `json:"date"`
	Close      float64   `json:"close"`
	Mid        *float64  `json:"mid_band,omitempty"`
	Upper      *float64  `json:"upper_band,omitempty"`
	Lower      *float64  `json:"lower_band,omitempty"`
	Equity     float64   `json:"equity"`
	Action     Action    `json:"action"`
	BuyMarker  *float64  `json:"buy_marker,omitempty"`
	SellMarker *float64  `json:"sell_marker,omitempty"`
}

// Metrics summarises a backtest run.
type Metrics struct {
	TotalReturnPct float64 `json:"total_return_pct"`
	FinalEquity    float64 `json:"final_equity"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	WinRatePct     float64 `json:"win_rate_pct"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
}

// Result is the output of one backtest invocation.
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
