package series

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocess_SortsAndFills(t *testing.T) {
	bars := makeBars(100, 101, 102)
	bars[0], bars[2] = bars[2], bars[0]
	bars[1].Close = math.NaN()
	bars[1].AdjClose = math.NaN()

	out := Preprocess(bars)
	require.Len(t, out, 3)

	assert.True(t, out[0].Time.Before(out[1].Time))
	assert.True(t, out[1].Time.Before(out[2].Time))
	assert.Equal(t, 100.0, out[0].Close)
	// row 1 had NaN close; filled from row 0
	assert.Equal(t, 100.0, out[1].Close)
	assert.Equal(t, 100.0, out[1].AdjClose)
}

func TestPreprocess_DropsUnfillableLeadingBars(t *testing.T) {
	bars := makeBars(100, 101)
	bars[0].Open = math.NaN()

	out := Preprocess(bars)
	require.Len(t, out, 1)
	assert.Equal(t, 101.0, out[0].Close)
}

func TestPreprocess_DuplicateTimestamps(t *testing.T) {
	bars := makeBars(100, 101)
	dup := bars[1]
	dup.Close = 101.5
	dup.AdjClose = 101.5
	bars = append(bars, dup)

	out := Preprocess(bars)
	require.Len(t, out, 2)
	assert.Equal(t, 101.5, out[1].Close)

	_, err := New(out)
	assert.NoError(t, err)
}

func TestAddDailyReturn(t *testing.T) {
	s, err := New(makeBars(100, 110, 99))
	require.NoError(t, err)
	require.NoError(t, AddDailyReturn(s, AdjClose))

	r, err := s.Column(DailyReturn)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r[0])
	assert.InDelta(t, 0.10, r[1], 1e-12)
	assert.InDelta(t, -0.10, r[2], 1e-12)
}
