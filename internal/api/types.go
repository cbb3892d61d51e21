package api

import (
	"strings"
	"time"

	"bandtest/internal/backtest"
	"bandtest/internal/config"
	"bandtest/internal/domain"
	"bandtest/internal/report"
	"bandtest/internal/util"
)

// RunRequest is the wire form of a backtest request. Omitted fields take the
// server's configured defaults; numeric fields are pointers so an explicit
// zero still reaches validation.
type RunRequest struct {
	Symbol         string   `json:"symbol,omitempty"`
	Strategy       string   `json:"strategy,omitempty"`
	Source         string   `json:"source,omitempty"`
	StartDate      string   `json:"start_date,omitempty"`
	EndDate        string   `json:"end_date,omitempty"`
	InitialCapital *float64 `json:"initial_capital,omitempty"`
	Period         *int     `json:"period,omitempty"`
	Multiplier     *float64 `json:"multiplier,omitempty"`
	LotSize        *int64   `json:"lot_size,omitempty"`
}

// RunResponse carries the full result plus a rounded summary.
type RunResponse struct {
	RunID   string         `json:"run_id"`
	Summary report.Summary `json:"summary"`
	Result  *domain.Result `json:"result"`
}

// BarsResponse is returned by GET /api/v1/bars.
type BarsResponse struct {
	Symbol string       `json:"symbol"`
	Source string       `json:"source"`
	Bars   []domain.Bar `json:"bars"`
}

// ProfilesResponse is returned by GET /api/v1/profiles.
type ProfilesResponse struct {
	Profiles []domain.SymbolProfile `json:"profiles"`
}

// StrategiesResponse is returned by GET /api/v1/strategies.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
	Sources    []string `json:"sources"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func pick(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func parseDate(field, v string) (time.Time, error) {
	t, err := util.ParseDate(v)
	if err != nil {
		return time.Time{}, domain.NewFieldError(domain.ErrInvalidParameters, field, v)
	}
	return t, nil
}

// toRequest fills r from defaults and converts it to a backtest.Request.
func (r RunRequest) toRequest(def config.BacktestConfig) (backtest.Request, error) {
	start, err := parseDate("start_date", pick(r.StartDate, def.StartDate))
	if err != nil {
		return backtest.Request{}, err
	}
	end, err := parseDate("end_date", pick(r.EndDate, def.EndDate))
	if err != nil {
		return backtest.Request{}, err
	}

	req := backtest.Request{
		Strategy:       pick(r.Strategy, def.Strategy),
		Symbol:         pick(r.Symbol, def.Symbol),
		Source:         pick(r.Source, def.Source),
		Start:          start,
		End:            end,
		InitialCapital: def.InitialCapital,
		Period:         def.BollingerPeriod,
		Multiplier:     def.BollingerMultiplier,
		LotSize:        def.LotSize,
	}
	if r.InitialCapital != nil {
		req.InitialCapital = *r.InitialCapital
	}
	if r.Period != nil {
		req.Period = *r.Period
	}
	if r.Multiplier != nil {
		req.Multiplier = *r.Multiplier
	}
	if r.LotSize != nil {
		req.LotSize = *r.LotSize
	}
	return req, nil
}
