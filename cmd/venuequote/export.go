package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"venuequote/engine"
	"venuequote/internal/artifacts"
)

var (
	exportDir    string
	exportPrefix string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Start the engine, wait for a warmup period, write a book/arbitrage snapshot to disk, and exit",
}

var exportBookCmd = &cobra.Command{
	Use:   "book",
	Short: "Write the full price book as JSON and CSV",
	RunE:  runExportBook,
}

var exportArbitrageCmd = &cobra.Command{
	Use:   "arbitrage",
	Short: "Write cross-venue spread opportunities for a symbol as JSON and CSV",
	RunE:  runExportArbitrage,
}

func init() {
	exportCmd.PersistentFlags().DurationVar(&queryWarmup, "warmup", 5*time.Second, "how long to let the book fill before exporting")
	exportCmd.PersistentFlags().StringVar(&exportDir, "dir", "", "output directory (default artifacts/snapshots)")
	exportCmd.PersistentFlags().StringVar(&exportPrefix, "prefix", "snapshot", "filename prefix for written artifacts")
	exportArbitrageCmd.Flags().StringVar(&querySymbol, "symbol", "", "display symbol (required)")
	exportArbitrageCmd.Flags().Float64Var(&queryMinPct, "min-pct", 0.1, "minimum spread percentage to report")

	exportCmd.AddCommand(exportBookCmd, exportArbitrageCmd)
}

func runExportBook(cmd *cobra.Command, args []string) error {
	return withWarmedEngine(func(eng *engine.Engine) error {
		w := artifacts.NewWriter(exportDir)
		jsonPath, csvPath, err := w.WriteBookSnapshot(eng.QueryPricesAll(), exportPrefix)
		if err != nil {
			return fmt.Errorf("export book: %w", err)
		}
		fmt.Println(jsonPath)
		fmt.Println(csvPath)
		return nil
	})
}

func runExportArbitrage(cmd *cobra.Command, args []string) error {
	if querySymbol == "" {
		return fmt.Errorf("--symbol is required")
	}
	return withWarmedEngine(func(eng *engine.Engine) error {
		opps := eng.QueryArbitrage(querySymbol, queryMinPct)
		w := artifacts.NewWriter(exportDir)
		jsonPath, csvPath, err := w.WriteArbitrageReport(querySymbol, opps, exportPrefix)
		if err != nil {
			return fmt.Errorf("export arbitrage: %w", err)
		}
		fmt.Println(jsonPath)
		fmt.Println(csvPath)
		return nil
	})
}
