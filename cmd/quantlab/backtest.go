package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/newthinker/quantlab/internal/app"
)

var (
	backtestThreshold float64
	backtestFlip      string
	backtestLag       int
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the model over history and simulate its signals",
	Long: `Load bars, compute indicators, predict, turn predictions into signals and
simulate the trades. A YAML report and the feature table are stored per
symbol.`,
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().Float64Var(&backtestThreshold, "threshold", 0, "signal threshold (overrides signal.threshold)")
	backtestCmd.Flags().StringVar(&backtestFlip, "flip", "", "flip policy: reverse or through_flat (overrides backtest.flip_policy)")
	backtestCmd.Flags().IntVar(&backtestLag, "lag", 1, "prediction lag in bars (overrides model.lag)")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	flags := cmd.Flags()
	if flags.Changed("threshold") {
		e.cfg.Signal.Threshold = backtestThreshold
	}
	if flags.Changed("flip") {
		e.cfg.Backtest.FlipPolicy = backtestFlip
	}
	if flags.Changed("lag") {
		e.cfg.Model.Lag = backtestLag
	}
	if err := e.cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	for _, symbol := range e.cfg.Data.Symbols {
		o, err := e.runner.Backtest(ctx, symbol)
		if err != nil {
			return fmt.Errorf("%s: %w", symbol, err)
		}
		printOutcome(out, o)
	}
	return nil
}

func printOutcome(w io.Writer, o *app.Outcome) {
	res := o.Result
	st := res.Stats

	fmt.Fprintln(w, "=== quantlab backtest ===")
	fmt.Fprintf(w, "Symbol:   %s\n", o.Symbol)
	fmt.Fprintf(w, "Run:      %s\n", res.ID)
	fmt.Fprintf(w, "Period:   %s to %s (%d bars)\n",
		res.Times[0].Format("2006-01-02"), res.Times[len(res.Times)-1].Format("2006-01-02"), len(res.Times))
	fmt.Fprintf(w, "Features: %v\n", o.Features.Columns)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Trades:        %d (%d won, %d lost)\n", st.TotalTrades, st.WinningTrades, st.LosingTrades)
	fmt.Fprintf(w, "Win rate:      %.2f%%\n", st.WinRate*100)
	fmt.Fprintf(w, "Avg win/loss:  %.4f / %.4f\n", st.AvgWin, st.AvgLoss)
	fmt.Fprintf(w, "Total return:  %.2f%%\n", st.TotalReturn*100)
	fmt.Fprintf(w, "Max drawdown:  %.2f%%\n", st.MaxDrawdown*100)
	fmt.Fprintf(w, "Sharpe:        %.3f\n", st.SharpeRatio)
	fmt.Fprintf(w, "Continuous:    %.2f%%\n", o.Returns.Final()*100)
	if o.Model != nil {
		fmt.Fprintf(w, "Model RMSE:    %.6f (R2 %.4f)\n", o.Model.RMSE, o.Model.R2)
	}
	if o.ReportPath != "" {
		fmt.Fprintf(w, "Report:        %s\n", o.ReportPath)
	}
	fmt.Fprintln(w)
}
