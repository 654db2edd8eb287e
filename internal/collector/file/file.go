// Package file serves bar history from local parquet or CSV files, one file
// per symbol.
package file

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/moznion/go-optional"

	"github.com/newthinker/quantlab/internal/collector"
	"github.com/newthinker/quantlab/internal/core"
	"github.com/newthinker/quantlab/internal/storage/bars"
)

// Loader reads bar files.
type Loader interface {
	Load(ctx context.Context, path string, r bars.Range) ([]core.Bar, error)
}

// File looks up <dir>/<symbol>.parquet, then <dir>/<symbol>.csv.
type File struct {
	dir    string
	loader Loader
}

// New creates a file collector reading through loader.
func New(loader Loader) *File {
	return &File{dir: "data", loader: loader}
}

func (f *File) Name() string {
	return "file"
}

// Init reads the directory from Extra["dir"].
func (f *File) Init(cfg collector.Config) error {
	if dir, ok := cfg.Extra["dir"].(string); ok && dir != "" {
		f.dir = dir
	}
	return nil
}

// Path returns the file that holds symbol's bars, or an error if none exists.
func (f *File) Path(symbol string) (string, error) {
	for _, ext := range []string{".parquet", ".csv"} {
		p := filepath.Join(f.dir, symbol+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", core.Errorf(core.ErrNoData, "no bar file for %s in %s", symbol, f.dir)
}

// FetchHistory loads bars in [start, end]; zero times leave that end open.
// The interval is fixed by the file and ignored.
func (f *File) FetchHistory(ctx context.Context, symbol string, start, end time.Time, _ string) ([]core.Bar, error) {
	path, err := f.Path(symbol)
	if err != nil {
		return nil, err
	}

	r := bars.Range{Start: optional.None[time.Time](), End: optional.None[time.Time]()}
	if !start.IsZero() {
		r.Start = optional.Some(start)
	}
	if !end.IsZero() {
		r.End = optional.Some(end)
	}

	out, err := f.loader.Load(ctx, path, r)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, core.Errorf(core.ErrNoData, "%s has no bars in range", path)
	}
	return out, nil
}
