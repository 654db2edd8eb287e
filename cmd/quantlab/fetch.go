package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/quantlab/internal/series"
)

var (
	fetchSource string
	fetchOut    string
	fetchFormat string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download bar history to local files",
	Long: `Download bars for every configured symbol and write them as
<out>/<symbol>.parquet (or .csv), ready for the file data source.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchSource, "source", "yahoo", "data source to download from")
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "output directory (default data.path)")
	fetchCmd.Flags().StringVar(&fetchFormat, "format", "parquet", "file format: parquet or csv")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	if fetchFormat != "parquet" && fetchFormat != "csv" {
		return fmt.Errorf("unknown format %q", fetchFormat)
	}

	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	e.cfg.Data.Source = fetchSource
	out := fetchOut
	if out == "" {
		out = e.cfg.Data.Path
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	ctx := cmd.Context()
	bar := progressbar.Default(int64(len(e.cfg.Data.Symbols)), "fetching")
	var failed int
	for _, symbol := range e.cfg.Data.Symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := e.runner.Fetch(ctx, symbol)
		if err != nil {
			e.log.Error("fetch failed", zap.String("symbol", symbol), zap.Error(err))
			failed++
			_ = bar.Add(1)
			continue
		}

		path := filepath.Join(out, symbol+"."+fetchFormat)
		if err := e.store.Save(ctx, path, series.Preprocess(raw)); err != nil {
			return fmt.Errorf("saving %s: %w", symbol, err)
		}
		e.log.Debug("saved bars", zap.String("symbol", symbol), zap.String("path", path))
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if failed > 0 {
		return fmt.Errorf("%d of %d symbols failed", failed, len(e.cfg.Data.Symbols))
	}
	return nil
}
