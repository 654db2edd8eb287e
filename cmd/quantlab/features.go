package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var featuresStdout bool

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Compute indicator columns and write the feature table",
	RunE:  runFeatures,
}

func init() {
	featuresCmd.Flags().BoolVar(&featuresStdout, "stdout", false, "print the table instead of storing it")

	rootCmd.AddCommand(featuresCmd)
}

func runFeatures(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	for _, symbol := range e.cfg.Data.Symbols {
		f, err := e.runner.Features(ctx, symbol)
		if err != nil {
			return fmt.Errorf("%s: %w", symbol, err)
		}

		if featuresStdout {
			if err := e.runner.WriteFeatures(os.Stdout, f); err != nil {
				return err
			}
			continue
		}

		path, err := e.runner.SaveFeatures(ctx, f, uuid.NewString())
		if err != nil {
			return fmt.Errorf("%s: %w", symbol, err)
		}
		e.log.Info("features written",
			zap.String("symbol", symbol),
			zap.String("path", path),
			zap.Int("rows", f.Series.Len()),
			zap.Int("dropped", f.Dropped),
		)
	}
	return nil
}
