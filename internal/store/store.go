// Package store defines storage interfaces for persisting and retrieving
// daily bars and symbol profiles.
package store

import (
	"context"
	"time"

	"bandtest/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bars.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar, market domain.Market) error

	// ReadBars returns bars for the given symbol and market within [start, end]
	// in ascending date order.
	ReadBars(ctx context.Context, symbol string, market domain.Market, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)
}

// ProfileStore persists and retrieves synthetic-generator symbol profiles.
type ProfileStore interface {
	// SaveProfile inserts or replaces the profile for its symbol.
	SaveProfile(ctx context.Context, p *domain.SymbolProfile) error

	// GetProfile returns the profile for symbol, or nil if none is stored.
	GetProfile(ctx context.Context, symbol string) (*domain.SymbolProfile, error)

	// ListProfiles returns all stored profiles ordered by symbol.
	ListProfiles(ctx context.Context) ([]domain.SymbolProfile, error)
}
