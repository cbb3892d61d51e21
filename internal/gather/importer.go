package gather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bandtest/internal/domain"
	"bandtest/internal/store"
)

// Compile-time interface check.
var _ Gatherer = (*Importer)(nil)

// Importer copies bars from a BarSource into a BarStore for a list of
// symbols. Re-running it is safe: the store merges bars by date.
type Importer struct {
	source  BarSource
	store   store.BarStore
	market  domain.Market
	symbols []string
	rng     DateRange
	log     *slog.Logger

	progressDir string
}

// NewImporter creates an Importer for symbols over [start, end]. The source
// decides how much warm-up history comes with the range.
func NewImporter(src BarSource, dst store.BarStore, market domain.Market, symbols []string, start, end time.Time) *Importer {
	return &Importer{
		source:  src,
		store:   dst,
		market:  market,
		symbols: symbols,
		rng:     DateRange{Start: start, End: end},
		log:     slog.Default().With("gatherer", "import-"+src.Name()),
	}
}

// WithProgress makes Run record handled symbols under dir so that an
// interrupted run skips them when restarted. The record is removed once a
// run completes.
func (g *Importer) WithProgress(dir string) *Importer {
	g.progressDir = dir
	return g
}

// progressKey identifies a run by source and requested range.
func (g *Importer) progressKey() string {
	return g.source.Name() + "_" + g.rng.Start.Format("20060102") + "_" + g.rng.End.Format("20060102")
}

// Name returns the gatherer identifier.
func (g *Importer) Name() string { return "import-" + g.source.Name() }

// Run fetches, validates and stores bars symbol by symbol. A symbol that
// fails aborts the run; earlier symbols stay stored.
func (g *Importer) Run(ctx context.Context) error {
	runStart := time.Now()
	total, skipped := 0, 0

	var progress *progressTracker
	if g.progressDir != "" {
		pt, err := newProgressTracker(g.progressDir, g.progressKey())
		if err != nil {
			return err
		}
		defer pt.Close()
		progress = pt
	}

	for i, sym := range g.symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		if progress != nil && progress.Handled(sym) {
			skipped++
			continue
		}

		bars, err := g.source.Bars(ctx, sym, g.rng.Start, g.rng.End)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", sym, err)
		}
		if err := domain.ValidateBars(bars); err != nil {
			return fmt.Errorf("validating %s: %w", sym, err)
		}
		if len(bars) == 0 {
			g.log.Warn("no bars", "symbol", sym)
			if progress != nil {
				if err := progress.MarkEmpty(sym); err != nil {
					return err
				}
			}
			continue
		}
		if err := g.store.WriteBars(ctx, bars, g.market); err != nil {
			return fmt.Errorf("writing %s: %w", sym, err)
		}
		total += len(bars)
		if progress != nil {
			if err := progress.MarkDone(sym); err != nil {
				return err
			}
		}

		g.log.Info("symbol done",
			"symbol", sym,
			"progress", fmt.Sprintf("%d/%d", i+1, len(g.symbols)),
			"bars", len(bars),
		)
	}

	if progress != nil {
		if err := progress.Finish(); err != nil {
			return fmt.Errorf("clearing progress: %w", err)
		}
	}

	g.log.Info("complete",
		"symbols", len(g.symbols),
		"skipped", skipped,
		"bars", total,
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	return nil
}
