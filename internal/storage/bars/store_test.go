package bars

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/newthinker/quantlab/internal/core"
)

type StoreTestSuite struct {
	suite.Suite
	store *Store
	dir   string
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) SetupTest() {
	store, err := Open("", nil)
	suite.Require().NoError(err)
	suite.store = store
	suite.dir = suite.T().TempDir()
}

func (suite *StoreTestSuite) TearDownTest() {
	suite.Require().NoError(suite.store.Close())
}

func testBars() []core.Bar {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 102, 101, 105, 103}
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{
			Time:     base.AddDate(0, 0, i),
			Open:     c - 0.5,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			AdjClose: c * 0.98,
			Volume:   float64(1000 * (i + 1)),
		}
	}
	return bars
}

func (suite *StoreTestSuite) TestSaveLoadParquet() {
	ctx := context.Background()
	path := filepath.Join(suite.dir, "AAPL.parquet")

	suite.Require().NoError(suite.store.Save(ctx, path, testBars()))

	got, err := suite.store.Load(ctx, path, Range{})
	suite.Require().NoError(err)
	suite.assertBars(testBars(), got)
}

func (suite *StoreTestSuite) assertBars(want, got []core.Bar) {
	suite.Require().Len(got, len(want))
	for i := range want {
		suite.Truef(want[i].Time.Equal(got[i].Time), "row %d: time %s != %s", i, want[i].Time, got[i].Time)
		w, g := want[i], got[i]
		w.Time, g.Time = time.Time{}, time.Time{}
		suite.Equalf(w, g, "row %d", i)
	}
}

func (suite *StoreTestSuite) TestSaveLoadCSV() {
	ctx := context.Background()
	path := filepath.Join(suite.dir, "AAPL.csv")

	suite.Require().NoError(suite.store.Save(ctx, path, testBars()))

	got, err := suite.store.Load(ctx, path, Range{})
	suite.Require().NoError(err)
	suite.Require().Len(got, 5)
	suite.Equal(testBars()[3].Close, got[3].Close)
	suite.InDelta(testBars()[3].AdjClose, got[3].AdjClose, 1e-9)
}

func (suite *StoreTestSuite) TestLoadRange() {
	ctx := context.Background()
	path := filepath.Join(suite.dir, "AAPL.parquet")
	suite.Require().NoError(suite.store.Save(ctx, path, testBars()))

	got, err := suite.store.Load(ctx, path, Range{
		Start: optional.Some(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)),
		End:   optional.Some(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)),
	})
	suite.Require().NoError(err)
	suite.Require().Len(got, 3)
	suite.Equal(102.0, got[0].Close)
	suite.Equal(105.0, got[2].Close)

	got, err = suite.store.Load(ctx, path, Range{Start: optional.Some(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))})
	suite.Require().NoError(err)
	suite.Len(got, 2)
}

func (suite *StoreTestSuite) TestLoadYahooCSVHeader() {
	path := filepath.Join(suite.dir, "yf.csv")
	data := "Date,Open,High,Low,Close,Adj Close,Volume\n" +
		"2024-01-03,184.22,185.88,183.43,184.25,183.35,58414500\n" +
		"2024-01-02,187.15,188.44,183.89,185.64,184.73,82488700\n"
	suite.Require().NoError(os.WriteFile(path, []byte(data), 0o644))

	got, err := suite.store.Load(context.Background(), path, Range{})
	suite.Require().NoError(err)
	suite.Require().Len(got, 2)

	// Sorted by time on load.
	suite.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got[0].Time)
	suite.Equal(184.73, got[0].AdjClose)
	suite.Equal(82488700.0, got[0].Volume)
}

func (suite *StoreTestSuite) TestLoadWithoutAdjClose() {
	path := filepath.Join(suite.dir, "plain.csv")
	data := "time,open,high,low,close,volume\n" +
		"2024-01-02 00:00:00,10,11,9,10.5,100\n"
	suite.Require().NoError(os.WriteFile(path, []byte(data), 0o644))

	got, err := suite.store.Load(context.Background(), path, Range{})
	suite.Require().NoError(err)
	suite.Require().Len(got, 1)
	suite.Equal(10.5, got[0].AdjClose)
}

func (suite *StoreTestSuite) TestLoadMissingColumn() {
	path := filepath.Join(suite.dir, "broken.csv")
	suite.Require().NoError(os.WriteFile(path, []byte("time,open,close\n2024-01-02,1,2\n"), 0o644))

	_, err := suite.store.Load(context.Background(), path, Range{})
	suite.ErrorIs(err, core.ErrMissingColumn)
}

func (suite *StoreTestSuite) TestUnsupportedExtension() {
	_, err := suite.store.Load(context.Background(), "bars.json", Range{})
	suite.ErrorIs(err, core.ErrInvalidParameter)

	err = suite.store.Save(context.Background(), "bars.xlsx", testBars())
	suite.ErrorIs(err, core.ErrInvalidParameter)
}

func (suite *StoreTestSuite) TestLoadMissingFile() {
	_, err := suite.store.Load(context.Background(), filepath.Join(suite.dir, "nope.parquet"), Range{})
	suite.ErrorIs(err, core.ErrStorageFailed)
}
