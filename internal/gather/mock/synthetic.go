// Package mock generates deterministic synthetic daily bars. The series for a
// symbol is a pure function of the symbol, its profile and the date range.
package mock

import (
	"context"
	"fmt"
	"math"
	"time"

	"bandtest/internal/domain"
	"bandtest/internal/gather"
	"bandtest/internal/util"
)

// Compile-time interface check.
var _ gather.BarSource = (*Source)(nil)

// DefaultSalt is appended to the symbol before hashing. Changing it refreshes
// every synthetic series.
const DefaultSalt = "2024"

// minPrice floors the random walk so prices stay positive.
const minPrice = 0.01

// Generator produces synthetic OHLCV series.
type Generator struct {
	salt string
}

// NewGenerator creates a Generator that salts symbol seeds with salt.
func NewGenerator(salt string) *Generator {
	return &Generator{salt: salt}
}

// Generate returns one bar per calendar day over
// [start - gather.WarmupDays, end]. It fails with ErrInvalidRange when end is
// before start.
func (g *Generator) Generate(profile domain.SymbolProfile, start, end time.Time) ([]domain.Bar, error) {
	start, end = util.Truncate(start), util.Truncate(end)
	if end.Before(start) {
		return nil, domain.NewFieldError(domain.ErrInvalidRange, "end",
			fmt.Sprintf("%s before %s", end.Format(util.DateLayout), start.Format(util.DateLayout)))
	}
	if profile.StartPrice <= 0 {
		return nil, domain.NewFieldError(domain.ErrInvalidParameters, "start_price", profile.StartPrice)
	}
	if profile.Volatility < 0 {
		return nil, domain.NewFieldError(domain.ErrInvalidParameters, "volatility", profile.Volatility)
	}

	rng := NewLCG(SeedFromSymbol(profile.Symbol + g.salt))
	total := util.DaysBetween(start, end) + gather.WarmupDays
	date := util.AddDays(start, -gather.WarmupDays)
	price := profile.StartPrice

	bars := make([]domain.Bar, 0, total+1)
	for i := 0; i <= total; i++ {
		r1, r2, r3 := rng.Next(), rng.Next(), rng.Next()
		change := (r1-0.48)*profile.Volatility + profile.Trend
		price *= 1 + change
		if price < minPrice {
			price = minPrice
		}

		rounded := round2(price)
		bars = append(bars, domain.Bar{
			Symbol: profile.Symbol,
			Date:   date,
			Open:   rounded,
			Close:  rounded,
			High:   round2(price * (1 + r2*0.015)),
			Low:    round2(price * (1 - r3*0.015)),
			Volume: int64(math.Floor(rng.Next() * 1_000_000)),
		})
		date = util.AddDays(date, 1)
	}
	return bars, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Source is a gather.BarSource backed by the synthetic Generator.
type Source struct {
	gen      *Generator
	profiles ProfileLookup
}

// NewSource creates a synthetic Source. profiles may be nil, in which case
// every symbol uses the builtin profiles.
func NewSource(salt string, profiles ProfileLookup) *Source {
	if profiles == nil {
		profiles = BuiltinLookup{}
	}
	return &Source{gen: NewGenerator(salt), profiles: profiles}
}

// Name returns "mock".
func (s *Source) Name() string { return "mock" }

// Bars resolves the symbol's profile and generates its series including the
// warm-up window.
func (s *Source) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	profile, err := resolveProfile(ctx, s.profiles, symbol)
	if err != nil {
		return nil, fmt.Errorf("resolving profile for %s: %w", symbol, err)
	}
	return s.gen.Generate(profile, start, end)
}
