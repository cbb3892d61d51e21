package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bandtest/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ ProfileStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	symbol      TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	code        TEXT NOT NULL DEFAULT '',
	market      TEXT NOT NULL DEFAULT '',
	start_price REAL NOT NULL,
	volatility  REAL NOT NULL,
	trend       REAL NOT NULL
);`

// SQLiteStore implements ProfileStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SeedProfiles inserts each profile whose symbol is not stored yet. Existing
// rows are left untouched.
func (s *SQLiteStore) SeedProfiles(ctx context.Context, profiles []domain.SymbolProfile) error {
	for _, p := range profiles {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO profiles (symbol, name, code, market, start_price, volatility, trend)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.Symbol, p.Name, p.Code, string(p.Market), p.StartPrice, p.Volatility, p.Trend)
		if err != nil {
			return fmt.Errorf("seeding profile %s: %w", p.Symbol, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// ProfileStore implementation
// ---------------------------------------------------------------------------

// SaveProfile inserts or replaces the profile for its symbol.
func (s *SQLiteStore) SaveProfile(ctx context.Context, p *domain.SymbolProfile) error {
	if p.Symbol == "" {
		return domain.NewFieldError(domain.ErrInvalidParameters, "symbol", p.Symbol)
	}
	if !(p.StartPrice > 0) {
		return domain.NewFieldError(domain.ErrInvalidParameters, "start_price", p.StartPrice)
	}
	if p.Volatility < 0 {
		return domain.NewFieldError(domain.ErrInvalidParameters, "volatility", p.Volatility)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO profiles (symbol, name, code, market, start_price, volatility, trend)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Symbol, p.Name, p.Code, string(p.Market), p.StartPrice, p.Volatility, p.Trend)
	if err != nil {
		return fmt.Errorf("saving profile %s: %w", p.Symbol, err)
	}
	return nil
}

// GetProfile returns the profile for symbol, or nil if none is stored.
func (s *SQLiteStore) GetProfile(ctx context.Context, symbol string) (*domain.SymbolProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT symbol, name, code, market, start_price, volatility, trend
		 FROM profiles WHERE symbol = ?`, symbol)

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", symbol, err)
	}
	return &p, nil
}

// ListProfiles returns all stored profiles ordered by symbol.
func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]domain.SymbolProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, name, code, market, start_price, volatility, trend
		 FROM profiles ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	var out []domain.SymbolProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(sc scanner) (domain.SymbolProfile, error) {
	var (
		p      domain.SymbolProfile
		market string
	)
	err := sc.Scan(&p.Symbol, &p.Name, &p.Code, &market, &p.StartPrice, &p.Volatility, &p.Trend)
	p.Market = domain.Market(market)
	return p, err
}
