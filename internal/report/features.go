package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"time"

	"github.com/newthinker/quantlab/internal/series"
	"github.com/newthinker/quantlab/internal/storage/archive"
)

// WriteFeaturesCSV writes a time column followed by the named columns.
// Undefined cells are written empty.
func WriteFeaturesCSV(w io.Writer, s *series.Series, columns []string) error {
	cols := make([][]float64, len(columns))
	for j, name := range columns {
		col, err := s.Column(name)
		if err != nil {
			return err
		}
		cols[j] = col
	}

	cw := csv.NewWriter(w)
	header := append([]string{"time"}, columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(columns)+1)
	for i := 0; i < s.Len(); i++ {
		record[0] = s.Time(i).Format(time.RFC3339)
		for j := range cols {
			record[j+1] = formatCell(cols[j][i])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FeaturesPath is where a run's feature table is stored.
func FeaturesPath(symbol, id string) string {
	return path.Join("features", symbol, id+".csv")
}

// SaveFeatures writes the feature table for a run to st.
func SaveFeatures(ctx context.Context, st archive.Storage, symbol, id string, s *series.Series, columns []string) (string, error) {
	var buf bytes.Buffer
	if err := WriteFeaturesCSV(&buf, s, columns); err != nil {
		return "", err
	}
	p := FeaturesPath(symbol, id)
	if err := st.Write(ctx, p, buf.Bytes()); err != nil {
		return "", err
	}
	return p, nil
}

func formatCell(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
