package gather

import (
	"context"
	"time"

	"bandtest/internal/domain"
	"bandtest/internal/store"
)

// Compile-time interface check.
var _ BarSource = (*StoreSource)(nil)

// StoreSource serves bars previously imported into a BarStore.
type StoreSource struct {
	store  store.BarStore
	market domain.Market
}

// NewStoreSource creates a StoreSource reading the given market.
func NewStoreSource(s store.BarStore, market domain.Market) *StoreSource {
	return &StoreSource{store: s, market: market}
}

// Name returns "store".
func (s *StoreSource) Name() string { return "store" }

// Bars reads the stored bars for [start - WarmupDays, end].
func (s *StoreSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	r := DateRange{Start: start, End: end}.WithWarmup()
	return s.store.ReadBars(ctx, symbol, s.market, r.Start, r.End)
}
