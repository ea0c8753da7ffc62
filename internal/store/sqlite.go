// Package store persists imported bar history in SQLite so that
// recomputation never needs to re-read the source files.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mihcharts/chartcore/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// BarStore is a SQLite-backed repository of bar series keyed by
// symbol and interval.
type BarStore struct {
	db *sql.DB
}

// Open opens (and if needed creates) the bar store at path.
func Open(path string) (*BarStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &BarStore{db: db}

	if err := s.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *BarStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			open TEXT NOT NULL,
			high TEXT NOT NULL,
			low TEXT NOT NULL,
			close TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (symbol, interval, timestamp)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bars_symbol_interval ON bars(symbol, interval)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// SaveBars upserts bars for a symbol and interval in one transaction.
// Re-importing the same file is idempotent.
func (s *BarStore) SaveBars(ctx context.Context, symbol, interval string, bars []types.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO bars (symbol, interval, timestamp, open, high, low, close)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, bar := range bars {
		if _, err := stmt.ExecContext(ctx,
			symbol,
			interval,
			bar.Timestamp.UTC(),
			bar.Open.String(),
			bar.High.String(),
			bar.Low.String(),
			bar.Close.String(),
		); err != nil {
			return fmt.Errorf("insert bar at %s: %w", bar.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// LoadSeries loads the full stored history for a symbol and interval
// as a validated series. Returns ErrEmptySeries when nothing is
// stored under the key.
func (s *BarStore) LoadSeries(ctx context.Context, symbol, interval string) (*types.Series, error) {
	query := `SELECT timestamp, open, high, low, close
		FROM bars WHERE symbol = ? AND interval = ? ORDER BY timestamp`

	rows, err := s.db.QueryContext(ctx, query, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bars []types.Bar
	for rows.Next() {
		var (
			bar                   types.Bar
			open, high, low, clos string
		)
		if err := rows.Scan(&bar.Timestamp, &open, &high, &low, &clos); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if bar.Open, err = decimal.NewFromString(open); err != nil {
			return nil, fmt.Errorf("parse open at %s: %w", bar.Timestamp, err)
		}
		if bar.High, err = decimal.NewFromString(high); err != nil {
			return nil, fmt.Errorf("parse high at %s: %w", bar.Timestamp, err)
		}
		if bar.Low, err = decimal.NewFromString(low); err != nil {
			return nil, fmt.Errorf("parse low at %s: %w", bar.Timestamp, err)
		}
		if bar.Close, err = decimal.NewFromString(clos); err != nil {
			return nil, fmt.Errorf("parse close at %s: %w", bar.Timestamp, err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s %s", types.ErrEmptySeries, symbol, interval)
	}

	return types.NewSeries(bars)
}

// CountBars returns the number of stored bars for a symbol and interval.
func (s *BarStore) CountBars(ctx context.Context, symbol, interval string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bars WHERE symbol = ? AND interval = ?`,
		symbol, interval,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bars: %w", err)
	}
	return n, nil
}

// Symbols lists the distinct symbol/interval pairs in the store.
func (s *BarStore) Symbols(ctx context.Context) ([]SeriesKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, interval, COUNT(*) FROM bars GROUP BY symbol, interval ORDER BY symbol, interval`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []SeriesKey
	for rows.Next() {
		var k SeriesKey
		if err := rows.Scan(&k.Symbol, &k.Interval, &k.Bars); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// SeriesKey identifies one stored series.
type SeriesKey struct {
	Symbol   string
	Interval string
	Bars     int
}

// Close closes the underlying database.
func (s *BarStore) Close() error {
	return s.db.Close()
}
