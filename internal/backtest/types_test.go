package backtest

import (
	"testing"

	"github.com/newthinker/quantlab/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrade_IsWin(t *testing.T) {
	tests := []struct {
		name     string
		trade    Trade
		wantWin  bool
		wantLoss bool
	}{
		{"positive return", Trade{Return: 0.05}, true, false},
		{"negative return", Trade{Return: -0.02}, false, true},
		{"zero return", Trade{Return: 0}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantWin, tt.trade.IsWin())
			assert.Equal(t, tt.wantLoss, tt.trade.IsLoss())
		})
	}
}

func TestTrade_Bars(t *testing.T) {
	assert.Equal(t, 3, Trade{EntryIndex: 2, ExitIndex: 5}.Bars())
}

func TestTradeReturn(t *testing.T) {
	assert.InDelta(t, 0.10, tradeReturn(core.SideLong, 100, 110), 1e-12)
	assert.InDelta(t, -0.10, tradeReturn(core.SideLong, 100, 90), 1e-12)
	assert.InDelta(t, 0.10, tradeReturn(core.SideShort, 100, 90), 1e-12)
	assert.InDelta(t, -0.10, tradeReturn(core.SideShort, 100, 110), 1e-12)
}

func TestParseFlipPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want FlipPolicy
	}{
		{"", FlipReverse},
		{"reverse", FlipReverse},
		{"Through_Flat", FlipThroughFlat},
		{"flat", FlipThroughFlat},
	}
	for _, tt := range tests {
		got, err := ParseFlipPolicy(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseFlipPolicy("hold")
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	assert.Equal(t, "reverse", FlipReverse.String())
	assert.Equal(t, "through_flat", FlipThroughFlat.String())
}
