package collector

import (
	"context"
	"testing"
	"time"

	"github.com/newthinker/quantlab/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCollector for testing
type mockCollector struct {
	name string
}

func (m *mockCollector) Name() string          { return m.name }
func (m *mockCollector) Init(cfg Config) error { return nil }
func (m *mockCollector) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.Bar, error) {
	return nil, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockCollector{name: "mock"})

	c, ok := r.Get("mock")
	require.True(t, ok, "expected to find registered collector")
	assert.Equal(t, "mock", c.Name())
}

func TestRegistry_GetAll(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockCollector{name: "b"})
	r.Register(&mockCollector{name: "a"})

	assert.Len(t, r.GetAll(), 2)
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRegistry_MustGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockCollector{name: "file"})

	c, err := r.MustGet("file")
	require.NoError(t, err)
	assert.Equal(t, "file", c.Name())

	_, err = r.MustGet("bloomberg")
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "file")
}
