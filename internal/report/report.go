// Package report renders a backtest run into a YAML document and stores it
// with the run's feature table.
package report

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"path"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/newthinker/quantlab/internal/backtest"
	"github.com/newthinker/quantlab/internal/core"
	"github.com/newthinker/quantlab/internal/predictor"
	"github.com/newthinker/quantlab/internal/storage/archive"
)

// Places is the rounding applied to every reported number.
const Places = 6

// Report summarizes one run.
type Report struct {
	ID          string             `yaml:"id"`
	Symbol      string             `yaml:"symbol"`
	GeneratedAt time.Time          `yaml:"generated_at"`
	Start       time.Time          `yaml:"start"`
	End         time.Time          `yaml:"end"`
	Bars        int                `yaml:"bars"`
	Features    []string           `yaml:"features,omitempty"`
	Settings    Settings           `yaml:"settings"`
	Model       *predictor.Metrics `yaml:"model,omitempty"`
	Continuous  *Continuous        `yaml:"continuous,omitempty"`
	Stats       Stats              `yaml:"stats"`
	Trades      []Trade            `yaml:"trades"`
}

// Settings records the knobs the run used.
type Settings struct {
	Threshold float64 `yaml:"threshold"`
	Flip      string  `yaml:"flip"`
	Lag       int     `yaml:"lag"`
}

// Continuous is the prediction-weighted return mode.
type Continuous struct {
	FinalReturn decimal.Decimal `yaml:"final_return"`
}

// Stats mirrors backtest.Stats with rounded decimals.
type Stats struct {
	TotalTrades   int             `yaml:"total_trades"`
	WinningTrades int             `yaml:"winning_trades"`
	LosingTrades  int             `yaml:"losing_trades"`
	WinRate       decimal.Decimal `yaml:"win_rate"`
	AvgWin        decimal.Decimal `yaml:"avg_win"`
	AvgLoss       decimal.Decimal `yaml:"avg_loss"`
	TotalReturn   decimal.Decimal `yaml:"total_return"`
	MaxDrawdown   decimal.Decimal `yaml:"max_drawdown"`
	SharpeRatio   decimal.Decimal `yaml:"sharpe_ratio"`
}

// Trade is one ledger row.
type Trade struct {
	Side       string          `yaml:"side"`
	EntryTime  time.Time       `yaml:"entry_time"`
	ExitTime   time.Time       `yaml:"exit_time"`
	EntryPrice decimal.Decimal `yaml:"entry_price"`
	ExitPrice  decimal.Decimal `yaml:"exit_price"`
	Return     decimal.Decimal `yaml:"return"`
	Synthetic  bool            `yaml:"synthetic,omitempty"`
}

// Input gathers everything a report is built from.
type Input struct {
	Symbol     string
	Features   []string
	Settings   Settings
	Result     *backtest.Result
	Continuous *backtest.ReturnsTable
	Model      *predictor.Metrics
	Now        time.Time
}

// Build assembles a report.
func Build(in Input) (*Report, error) {
	res := in.Result
	if res == nil || len(res.Times) == 0 {
		return nil, core.ErrEmptySeries
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	r := &Report{
		ID:          res.ID.String(),
		Symbol:      in.Symbol,
		GeneratedAt: now,
		Start:       res.Times[0],
		End:         res.Times[len(res.Times)-1],
		Bars:        len(res.Times),
		Features:    in.Features,
		Settings:    in.Settings,
		Model:       in.Model,
		Stats: Stats{
			TotalTrades:   res.Stats.TotalTrades,
			WinningTrades: res.Stats.WinningTrades,
			LosingTrades:  res.Stats.LosingTrades,
			WinRate:       Round(res.Stats.WinRate),
			AvgWin:        Round(res.Stats.AvgWin),
			AvgLoss:       Round(res.Stats.AvgLoss),
			TotalReturn:   Round(res.Stats.TotalReturn),
			MaxDrawdown:   Round(res.Stats.MaxDrawdown),
			SharpeRatio:   Round(res.Stats.SharpeRatio),
		},
		Trades: make([]Trade, len(res.Trades)),
	}
	if in.Continuous != nil {
		r.Continuous = &Continuous{FinalReturn: Round(in.Continuous.Final())}
	}
	for i, t := range res.Trades {
		r.Trades[i] = Trade{
			Side:       string(t.Side),
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			EntryPrice: Round(t.EntryPrice),
			ExitPrice:  Round(t.ExitPrice),
			Return:     Round(t.Return),
			Synthetic:  t.Synthetic,
		}
	}
	return r, nil
}

// Round converts v to a decimal rounded to Places. Non-finite values
// become zero.
func Round(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(Places)
}

// Encode renders the report as YAML.
func Encode(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a YAML report.
func Decode(data []byte) (*Report, error) {
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &r, nil
}

// Path is where a report is stored: reports/<symbol>/<id>.yaml.
func Path(r *Report) string {
	return path.Join("reports", r.Symbol, r.ID+".yaml")
}

// Save encodes r and writes it to st, returning the storage path.
func Save(ctx context.Context, st archive.Storage, r *Report) (string, error) {
	data, err := Encode(r)
	if err != nil {
		return "", err
	}
	p := Path(r)
	if err := st.Write(ctx, p, data); err != nil {
		return "", err
	}
	return p, nil
}
