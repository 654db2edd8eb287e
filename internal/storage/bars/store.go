// Package bars reads and writes OHLCV bar files (parquet or CSV) through an
// embedded DuckDB connection.
package bars

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/newthinker/quantlab/internal/core"
)

const (
	sourceView = "bars_source"
	outTable   = "bars_out"
	insertRows = 500
)

// Accepted header spellings per field, lower-cased. The yfinance CSV
// export uses "Date" and "Adj Close".
var aliases = map[string][]string{
	"time":      {"time", "date", "datetime", "timestamp"},
	"open":      {"open"},
	"high":      {"high"},
	"low":       {"low"},
	"close":     {"close"},
	"adj_close": {"adj_close", "adj close", "adjclose"},
	"volume":    {"volume"},
}

var fields = []string{"time", "open", "high", "low", "close", "adj_close", "volume"}

// Range bounds a load; either end may be absent.
type Range struct {
	Start optional.Option[time.Time]
	End   optional.Option[time.Time]
}

// Store loads and saves bar files.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	sq     squirrel.StatementBuilderType
	logger *zap.Logger
}

// Open creates a store backed by a DuckDB database at path. An empty path
// uses an in-memory database.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	// Views and staging tables live on one connection.
	db.SetMaxOpenConns(1)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: logger,
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads bars from a parquet or CSV file, ordered by time. Files without
// an adjusted close column get AdjClose = Close.
func (s *Store) Load(ctx context.Context, path string, r Range) ([]core.Bar, error) {
	reader, err := readerFor(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("loading bars", zap.String("path", path))

	// Squirrel doesn't support CREATE VIEW
	view := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM %s('%s')`, sourceView, reader, quote(path))
	if _, err := s.db.ExecContext(ctx, view); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("opening %s: %w", path, err))
	}

	columns, err := s.sourceColumns(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := s.buildLoadQuery(columns, r)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("querying %s: %w", path, err))
	}
	defer rows.Close()

	var out []core.Bar
	for rows.Next() {
		var b core.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &b.Volume); err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("failed to scan row: %w", err))
		}
		b.Time = b.Time.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}

	s.logger.Info("loaded bars", zap.String("path", path), zap.Int("bars", len(out)))
	return out, nil
}

// sourceColumns maps each field to the source column that holds it.
func (s *Store) sourceColumns(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", sourceView))
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}

	found := make(map[string]string, len(fields))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		for field, spellings := range aliases {
			for _, sp := range spellings {
				if key == sp {
					if _, ok := found[field]; !ok {
						found[field] = name
					}
				}
			}
		}
	}

	for _, field := range fields {
		if _, ok := found[field]; !ok && field != "adj_close" {
			return nil, core.Errorf(core.ErrMissingColumn, "bar file has no %s column (columns: %v)", field, names)
		}
	}
	return found, nil
}

func (s *Store) buildLoadQuery(columns map[string]string, r Range) (string, []any, error) {
	ident := func(field string) string {
		return `"` + strings.ReplaceAll(columns[field], `"`, `""`) + `"`
	}

	adj := ident("close")
	if _, ok := columns["adj_close"]; ok {
		adj = ident("adj_close")
	}

	sel := s.sq.Select(
		fmt.Sprintf("CAST(%s AS TIMESTAMP) AS time", ident("time")),
		fmt.Sprintf("CAST(%s AS DOUBLE) AS open", ident("open")),
		fmt.Sprintf("CAST(%s AS DOUBLE) AS high", ident("high")),
		fmt.Sprintf("CAST(%s AS DOUBLE) AS low", ident("low")),
		fmt.Sprintf("CAST(%s AS DOUBLE) AS close", ident("close")),
		fmt.Sprintf("CAST(%s AS DOUBLE) AS adj_close", adj),
		fmt.Sprintf("CAST(%s AS DOUBLE) AS volume", ident("volume")),
	).From(sourceView)

	timeExpr := fmt.Sprintf("CAST(%s AS TIMESTAMP)", ident("time"))
	if r.Start.IsSome() {
		sel = sel.Where(squirrel.GtOrEq{timeExpr: r.Start.Unwrap().UTC()})
	}
	if r.End.IsSome() {
		sel = sel.Where(squirrel.LtOrEq{timeExpr: r.End.Unwrap().UTC()})
	}

	query, args, err := sel.OrderBy("time ASC").ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build query: %w", err)
	}
	return query, args, nil
}

// Save writes bars to a parquet or CSV file chosen by extension.
func (s *Store) Save(ctx context.Context, path string, bars []core.Bar) error {
	format, err := formatFor(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	create := fmt.Sprintf(`CREATE OR REPLACE TABLE %s (
		time TIMESTAMP, open DOUBLE, high DOUBLE, low DOUBLE,
		close DOUBLE, adj_close DOUBLE, volume DOUBLE
	)`, outTable)
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	defer s.db.ExecContext(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+outTable) //nolint:errcheck

	for startRow := 0; startRow < len(bars); startRow += insertRows {
		ins := s.sq.Insert(outTable).Columns(fields...)
		for _, b := range bars[startRow:min(startRow+insertRows, len(bars))] {
			ins = ins.Values(b.Time.UTC(), b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return core.WrapError(core.ErrStorageFailed, fmt.Errorf("inserting bars: %w", err))
		}
	}

	copyStmt := fmt.Sprintf(`COPY (SELECT * FROM %s ORDER BY time) TO '%s' (%s)`, outTable, quote(path), format)
	if _, err := s.db.ExecContext(ctx, copyStmt); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("writing %s: %w", path, err))
	}

	s.logger.Info("saved bars", zap.String("path", path), zap.Int("bars", len(bars)))
	return nil
}

func readerFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return "read_parquet", nil
	case ".csv":
		return "read_csv_auto", nil
	default:
		return "", core.Errorf(core.ErrInvalidParameter, "unsupported bar file %q: want .parquet or .csv", path)
	}
}

func formatFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return "FORMAT PARQUET", nil
	case ".csv":
		return "FORMAT CSV, HEADER", nil
	default:
		return "", core.Errorf(core.ErrInvalidParameter, "unsupported bar file %q: want .parquet or .csv", path)
	}
}

func quote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
