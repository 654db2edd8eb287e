// Package series holds an ordered, time-indexed OHLCV table that indicator
// columns are attached to by name.
package series

import (
	"math"
	"slices"
	"time"

	"github.com/newthinker/quantlab/internal/core"
)

// Base column names.
const (
	Open     = "open"
	High     = "high"
	Low      = "low"
	Close    = "close"
	AdjClose = "adj_close"
	Volume   = "volume"
)

var baseColumns = []string{Open, High, Low, Close, AdjClose, Volume}

// Series is an ordered table of bars plus derived numeric columns.
// It is not safe for concurrent mutation; compute into private buffers and
// merge with SetColumn from a single goroutine.
type Series struct {
	times   []time.Time
	columns map[string][]float64
	order   []string
}

// New validates bars and builds a Series. Timestamps must be strictly
// increasing and every bar must satisfy the OHLC range invariants.
func New(bars []core.Bar) (*Series, error) {
	s := &Series{
		times:   make([]time.Time, len(bars)),
		columns: make(map[string][]float64, len(baseColumns)),
	}
	for _, name := range baseColumns {
		s.columns[name] = make([]float64, len(bars))
		s.order = append(s.order, name)
	}

	for i, b := range bars {
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return nil, core.Errorf(core.ErrMalformedSeries,
				"timestamp at row %d (%s) is not after row %d (%s)",
				i, b.Time.Format(time.RFC3339), i-1, bars[i-1].Time.Format(time.RFC3339))
		}
		if !b.IsValid() {
			return nil, core.Errorf(core.ErrMalformedSeries,
				"bar at row %d (%s) violates OHLCV invariants", i, b.Time.Format(time.RFC3339))
		}
		s.times[i] = b.Time
		s.columns[Open][i] = b.Open
		s.columns[High][i] = b.High
		s.columns[Low][i] = b.Low
		s.columns[Close][i] = b.Close
		s.columns[AdjClose][i] = b.AdjClose
		s.columns[Volume][i] = b.Volume
	}
	return s, nil
}

// Len returns the number of rows.
func (s *Series) Len() int {
	return len(s.times)
}

// Times returns a copy of the row timestamps.
func (s *Series) Times() []time.Time {
	return slices.Clone(s.times)
}

// Time returns the timestamp of row i.
func (s *Series) Time(i int) time.Time {
	return s.times[i]
}

// Columns returns column names in insertion order, base columns first.
func (s *Series) Columns() []string {
	return slices.Clone(s.order)
}

// Has reports whether the named column exists.
func (s *Series) Has(name string) bool {
	_, ok := s.columns[name]
	return ok
}

// Column returns a copy of the named column.
func (s *Series) Column(name string) ([]float64, error) {
	col, ok := s.columns[name]
	if !ok {
		return nil, core.Errorf(core.ErrMissingColumn, "%q", name)
	}
	return slices.Clone(col), nil
}

// SetColumn writes or replaces a derived column. Base OHLCV columns are
// read-only and values must align 1:1 with the rows.
func (s *Series) SetColumn(name string, values []float64) error {
	if isBase(name) {
		return core.Errorf(core.ErrInvalidParameter, "column %q is read-only", name)
	}
	if len(values) != len(s.times) {
		return core.Errorf(core.ErrInvalidParameter,
			"column %q has %d values, series has %d rows", name, len(values), len(s.times))
	}
	if _, ok := s.columns[name]; !ok {
		s.order = append(s.order, name)
	}
	s.columns[name] = slices.Clone(values)
	return nil
}

// Bar reconstructs the OHLCV bar at row i.
func (s *Series) Bar(i int) core.Bar {
	return core.Bar{
		Time:     s.times[i],
		Open:     s.columns[Open][i],
		High:     s.columns[High][i],
		Low:      s.columns[Low][i],
		Close:    s.columns[Close][i],
		AdjClose: s.columns[AdjClose][i],
		Volume:   s.columns[Volume][i],
	}
}

// Matrix returns the named columns as a row-major table.
func (s *Series) Matrix(names []string) ([][]float64, error) {
	cols := make([][]float64, len(names))
	for j, name := range names {
		col, ok := s.columns[name]
		if !ok {
			return nil, core.Errorf(core.ErrMissingColumn, "%q", name)
		}
		cols[j] = col
	}

	rows := make([][]float64, len(s.times))
	for i := range rows {
		row := make([]float64, len(names))
		for j := range names {
			row[j] = cols[j][i]
		}
		rows[i] = row
	}
	return rows, nil
}

// Clone returns a deep copy.
func (s *Series) Clone() *Series {
	c := &Series{
		times:   slices.Clone(s.times),
		columns: make(map[string][]float64, len(s.columns)),
		order:   slices.Clone(s.order),
	}
	for name, col := range s.columns {
		c.columns[name] = slices.Clone(col)
	}
	return c
}

// Trim returns a new Series keeping only rows where every named column is
// defined. The receiver is left unchanged.
func (s *Series) Trim(names ...string) (*Series, error) {
	check := make([][]float64, len(names))
	for j, name := range names {
		col, ok := s.columns[name]
		if !ok {
			return nil, core.Errorf(core.ErrMissingColumn, "%q", name)
		}
		check[j] = col
	}

	keep := make([]int, 0, len(s.times))
	for i := range s.times {
		defined := true
		for _, col := range check {
			if math.IsNaN(col[i]) || math.IsInf(col[i], 0) {
				defined = false
				break
			}
		}
		if defined {
			keep = append(keep, i)
		}
	}

	out := &Series{
		times:   make([]time.Time, len(keep)),
		columns: make(map[string][]float64, len(s.columns)),
		order:   slices.Clone(s.order),
	}
	for k, i := range keep {
		out.times[k] = s.times[i]
	}
	for name, col := range s.columns {
		trimmed := make([]float64, len(keep))
		for k, i := range keep {
			trimmed[k] = col[i]
		}
		out.columns[name] = trimmed
	}
	return out, nil
}

func isBase(name string) bool {
	return slices.Contains(baseColumns, name)
}
