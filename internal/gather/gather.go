// Package gather defines the sources that supply daily bars to the backtest
// pipeline and the gatherers that import bars into local storage.
package gather

import (
	"context"
	"time"

	"bandtest/internal/domain"
)

// WarmupDays is the number of calendar days a source returns before the
// requested start so rolling indicators are fully formed at the start date.
const WarmupDays = 50

// BarSource supplies ascending daily bars for a symbol.
type BarSource interface {
	// Name returns the source identifier used in requests ("mock", "store", ...).
	Name() string

	// Bars returns bars covering [start - WarmupDays, end] in ascending date
	// order. Sources backed by real markets may return fewer bars.
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// Gatherer is the interface for data import processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs the import. It returns early if ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// WithWarmup returns the range extended backwards by WarmupDays.
func (r DateRange) WithWarmup() DateRange {
	return DateRange{Start: r.Start.AddDate(0, 0, -WarmupDays), End: r.End}
}
