package mock

import (
	"context"
	"sort"

	"bandtest/internal/domain"
)

// DefaultSymbol is the profile used for symbols with no registered profile.
const DefaultSymbol = "600519"

var builtinProfiles = map[string]domain.SymbolProfile{
	"600519": {Symbol: "600519", Name: "贵州茅台", Code: "600519.SH", Market: domain.MarketCN, StartPrice: 1800, Volatility: 0.015, Trend: 0.0002},
	"300750": {Symbol: "300750", Name: "宁德时代", Code: "300750.SZ", Market: domain.MarketCN, StartPrice: 200, Volatility: 0.035, Trend: 0.0005},
	"000001": {Symbol: "000001", Name: "平安银行", Code: "000001.SZ", Market: domain.MarketCN, StartPrice: 15, Volatility: 0.02, Trend: 0.0001},
	"601127": {Symbol: "601127", Name: "赛力斯", Code: "601127.SH", Market: domain.MarketCN, StartPrice: 80, Volatility: 0.05, Trend: 0.001},
}

// BuiltinProfiles returns the shipped symbol profiles sorted by symbol.
func BuiltinProfiles() []domain.SymbolProfile {
	out := make([]domain.SymbolProfile, 0, len(builtinProfiles))
	for _, p := range builtinProfiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ProfileLookup resolves a symbol to its generator profile. A nil profile
// with a nil error means the symbol is unknown.
type ProfileLookup interface {
	GetProfile(ctx context.Context, symbol string) (*domain.SymbolProfile, error)
}

// BuiltinLookup serves the shipped profiles.
type BuiltinLookup struct{}

// GetProfile returns the builtin profile for symbol, or nil if there is none.
func (BuiltinLookup) GetProfile(_ context.Context, symbol string) (*domain.SymbolProfile, error) {
	p, ok := builtinProfiles[symbol]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// resolveProfile looks symbol up and falls back to the DefaultSymbol profile.
// The returned profile always carries the requested symbol.
func resolveProfile(ctx context.Context, lookup ProfileLookup, symbol string) (domain.SymbolProfile, error) {
	if lookup != nil {
		p, err := lookup.GetProfile(ctx, symbol)
		if err != nil {
			return domain.SymbolProfile{}, err
		}
		if p != nil {
			return *p, nil
		}
	}
	p := builtinProfiles[DefaultSymbol]
	p.Symbol = symbol
	return p, nil
}
