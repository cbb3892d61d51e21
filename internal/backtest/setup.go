package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bandtest/internal/config"
	"bandtest/internal/domain"
	"bandtest/internal/gather"
	"bandtest/internal/gather/mock"
	"bandtest/internal/gather/us"
	"bandtest/internal/store"
	"bandtest/internal/strategy"
	"bandtest/internal/strategy/builtins"
	"bandtest/internal/util"
)

// Env bundles a Backtester with the stores behind it.
type Env struct {
	Backtester *Backtester
	Profiles   *store.SQLiteStore
	Bars       *store.ParquetStore

	dataDir string
}

// Close releases the profile database.
func (e *Env) Close() error {
	return e.Profiles.Close()
}

// Setup opens the stores named in cfg, seeds the builtin and configured
// profiles and registers the bar sources: mock and store always, alpaca
// when credentials are present.
func Setup(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Env, error) {
	if log == nil {
		log = slog.Default()
	}

	if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	profiles, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening profile store: %w", err)
	}

	if err := profiles.SeedProfiles(ctx, mock.BuiltinProfiles()); err != nil {
		profiles.Close()
		return nil, err
	}
	for i := range cfg.Profiles {
		if err := profiles.SaveProfile(ctx, &cfg.Profiles[i]); err != nil {
			profiles.Close()
			return nil, fmt.Errorf("saving configured profile: %w", err)
		}
	}

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	market := domain.Market(cfg.Backtest.Market)
	if market != domain.MarketCN && market != domain.MarketUS {
		profiles.Close()
		return nil, domain.NewFieldError(domain.ErrInvalidParameters, "market", cfg.Backtest.Market)
	}

	sources := []gather.BarSource{
		mock.NewSource(cfg.Backtest.SeedSalt, profiles),
		gather.NewStoreSource(bars, market),
	}
	if cfg.Alpaca.APIKey != "" && cfg.Alpaca.APISecret != "" {
		sources = append(sources, us.NewAlpacaSource(
			cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Alpaca.Feed,
			cfg.Import.RateLimitPerMin, cfg.Import.MaxAttempts,
		))
	} else {
		log.Debug("alpaca source disabled: no credentials")
	}

	reg := strategy.NewRegistry()
	builtins.Register(reg)

	return &Env{
		Backtester: NewBacktester(reg, log, sources...),
		Profiles:   profiles,
		Bars:       bars,
		dataDir:    cfg.Storage.DataDir,
	}, nil
}

// Source returns the registered source with the given name.
func (e *Env) Source(name string) (gather.BarSource, error) {
	src, ok := e.Backtester.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return src, nil
}

// Symbols lists the symbols with bars in the parquet store under market.
func (e *Env) Symbols(ctx context.Context, market domain.Market) ([]string, error) {
	if market != domain.MarketCN && market != domain.MarketUS {
		return nil, domain.NewFieldError(domain.ErrInvalidParameters, "market", market)
	}
	symbols, err := e.Bars.ListSymbols(ctx, market)
	if err != nil {
		return nil, fmt.Errorf("listing %s symbols: %w", market, err)
	}
	return symbols, nil
}

var errNoSymbols = errors.New("no symbols to import")

// Importer builds an Importer copying symbols from src into the parquet
// store under market. Progress is kept beside the market's daily bars so
// an interrupted import resumes.
func (e *Env) Importer(src gather.BarSource, market domain.Market, symbols []string, start, end time.Time) (*gather.Importer, error) {
	if len(symbols) == 0 {
		return nil, errNoSymbols
	}
	if market != domain.MarketCN && market != domain.MarketUS {
		return nil, domain.NewFieldError(domain.ErrInvalidParameters, "market", market)
	}
	start, end = util.Truncate(start), util.Truncate(end)
	if end.Before(start) {
		return nil, domain.NewFieldError(domain.ErrInvalidRange, "end", end.Format(util.DateLayout))
	}
	imp := gather.NewImporter(src, e.Bars, market, symbols, start, end)
	return imp.WithProgress(filepath.Join(e.dataDir, string(market), "daily")), nil
}
