package us

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"bandtest/internal/domain"
	"bandtest/internal/gather"
	"bandtest/internal/util"
)

// ---------------------------------------------------------------------------
// Compile-time interface checks
// ---------------------------------------------------------------------------

var _ gather.BarSource = (*AlpacaSource)(nil)

// multiBarsClient is the subset of *marketdata.Client used by AlpacaSource.
type multiBarsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// ---------------------------------------------------------------------------
// AlpacaSource: daily OHLCV bars from the Alpaca market-data API.
// ---------------------------------------------------------------------------

// AlpacaSource serves US equity daily bars from the Alpaca market-data API.
// Calls are rate limited and retried with exponential backoff.
type AlpacaSource struct {
	client      multiBarsClient
	feed        string
	limiter     *util.RateLimiter
	maxAttempts int
	baseDelay   time.Duration
	log         *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource configured with the given Alpaca
// credentials and data feed ("iex" or "sip").
func NewAlpacaSource(apiKey, apiSecret, dataURL, feed string, rateLimitPerMin, maxAttempts int) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return newAlpacaSource(marketdata.NewClient(opts), feed, rateLimitPerMin, maxAttempts)
}

func newAlpacaSource(client multiBarsClient, feed string, rateLimitPerMin, maxAttempts int) *AlpacaSource {
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 200
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &AlpacaSource{
		client:      client,
		feed:        feed,
		limiter:     util.NewRateLimiter(rateLimitPerMin),
		maxAttempts: maxAttempts,
		baseDelay:   time.Second,
		log:         slog.Default().With("source", "alpaca"),
	}
}

// Name returns "alpaca".
func (s *AlpacaSource) Name() string { return "alpaca" }

// Bars fetches daily bars for [start - WarmupDays, end]. Bar timestamps are
// truncated to their UTC calendar date.
func (s *AlpacaSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)
	r := gather.DateRange{Start: start, End: end}.WithWarmup()

	var multiBars map[string][]marketdata.Bar
	err := util.Retry(ctx, s.maxAttempts, s.baseDelay, func(attempt int) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		multiBars, err = s.client.GetMultiBars([]string{symbol}, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     r.Start,
			// End is exclusive on the API side.
			End:  r.End.AddDate(0, 0, 1),
			Feed: marketdata.Feed(s.feed),
		})
		if err != nil {
			s.log.Warn("GetMultiBars failed", "symbol", symbol, "attempt", attempt, "err", err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars %s: %w", symbol, err)
	}

	alpacaBars := multiBars[symbol]
	bars := make([]domain.Bar, 0, len(alpacaBars))
	for _, ab := range alpacaBars {
		bars = append(bars, domain.Bar{
			Symbol: symbol,
			Date:   util.Truncate(ab.Timestamp),
			Open:   ab.Open,
			High:   ab.High,
			Low:    ab.Low,
			Close:  ab.Close,
			Volume: int64(ab.Volume),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	s.log.Debug("fetched bars", "symbol", symbol, "count", len(bars))
	return bars, nil
}
