package collector

import (
	"context"
	"time"

	"github.com/newthinker/quantlab/internal/core"
)

// Config holds collector configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Extra   map[string]any
}

// Collector fetches historical bars for a symbol.
type Collector interface {
	Name() string
	Init(cfg Config) error

	// FetchHistory returns bars in [start, end] at the given interval.
	FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.Bar, error)
}
