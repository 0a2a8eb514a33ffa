package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"venuequote/engine"
)

var (
	queryWarmup time.Duration
	querySymbol string
	queryVenueA string
	queryVenueB string
	queryMinPct float64
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Start the engine, wait for a warmup period, print a snapshot, and exit",
}

var querySummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print book-wide symbol/exchange counts",
	RunE:  runQuerySummary,
}

var queryPricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Print every exchange's quote for a symbol",
	RunE:  runQueryPrices,
}

var querySpreadCmd = &cobra.Command{
	Use:   "spread",
	Short: "Compare a symbol's last price between two exchanges",
	RunE:  runQuerySpread,
}

var queryArbitrageCmd = &cobra.Command{
	Use:   "arbitrage",
	Short: "List cross-venue spread opportunities for a symbol",
	RunE:  runQueryArbitrage,
}

func init() {
	queryCmd.PersistentFlags().DurationVar(&queryWarmup, "warmup", 5*time.Second, "how long to let the book fill before querying")
	queryPricesCmd.Flags().StringVar(&querySymbol, "symbol", "", "display symbol, e.g. BTC-USDT (required)")
	querySpreadCmd.Flags().StringVar(&querySymbol, "symbol", "", "display symbol (required)")
	querySpreadCmd.Flags().StringVar(&queryVenueA, "a", "", "first exchange (required)")
	querySpreadCmd.Flags().StringVar(&queryVenueB, "b", "", "second exchange (required)")
	queryArbitrageCmd.Flags().StringVar(&querySymbol, "symbol", "", "display symbol (required)")
	queryArbitrageCmd.Flags().Float64Var(&queryMinPct, "min-pct", 0.1, "minimum spread percentage to report")

	queryCmd.AddCommand(querySummaryCmd, queryPricesCmd, querySpreadCmd, queryArbitrageCmd)
}

func withWarmedEngine(fn func(*engine.Engine) error) error {
	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}
	eng := engine.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx, cfg); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	log.Info().Dur("warmup", queryWarmup).Msg("warming up")
	time.Sleep(queryWarmup)

	err = fn(eng)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopGrace)
	defer stopCancel()
	eng.Stop(stopCtx)
	return err
}

func runQuerySummary(cmd *cobra.Command, args []string) error {
	return withWarmedEngine(func(eng *engine.Engine) error {
		s := eng.QuerySummary()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "symbols\t%d\n", s.SymbolCount)
		fmt.Fprintf(w, "exchanges\t%d\n", s.ExchangeCount)
		fmt.Fprintf(w, "entries\t%d\n", s.EntryCount)
		w.Flush()
		return nil
	})
}

func runQueryPrices(cmd *cobra.Command, args []string) error {
	if querySymbol == "" {
		return fmt.Errorf("--symbol is required")
	}
	return withWarmedEngine(func(eng *engine.Engine) error {
		quotes := eng.QueryPricesBySymbol(querySymbol)
		if len(quotes) == 0 {
			fmt.Println("no quotes for", querySymbol)
			return nil
		}
		exchanges := make([]string, 0, len(quotes))
		for ex := range quotes {
			exchanges = append(exchanges, ex)
		}
		sort.Strings(exchanges)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "exchange\tlast\tbid\task\tts_ms")
		for _, ex := range exchanges {
			q := quotes[ex]
			fmt.Fprintf(w, "%s\t%g\t%g\t%g\t%d\n", ex, q.Last, q.Bid, q.Ask, q.RecvTsMs)
		}
		w.Flush()
		return nil
	})
}

func runQuerySpread(cmd *cobra.Command, args []string) error {
	if querySymbol == "" || queryVenueA == "" || queryVenueB == "" {
		return fmt.Errorf("--symbol, --a, and --b are required")
	}
	return withWarmedEngine(func(eng *engine.Engine) error {
		s, ok := eng.QuerySpread(querySymbol, queryVenueA, queryVenueB)
		if !ok {
			fmt.Println("no spread available for", querySymbol, queryVenueA, queryVenueB)
			return nil
		}
		fmt.Printf("higher=%s@%g lower=%s@%g spread=%g spread_pct=%.4f%%\n",
			s.Higher, s.HigherPrice, s.Lower, s.LowerPrice, s.Spread, s.SpreadPct)
		return nil
	})
}

func runQueryArbitrage(cmd *cobra.Command, args []string) error {
	if querySymbol == "" {
		return fmt.Errorf("--symbol is required")
	}
	return withWarmedEngine(func(eng *engine.Engine) error {
		opps := eng.QueryArbitrage(querySymbol, queryMinPct)
		if len(opps) == 0 {
			fmt.Println("no opportunities above", queryMinPct, "% for", querySymbol)
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "buy\tsell\tbuy_price\tsell_price\tspread_pct")
		for _, o := range opps {
			fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%.4f\n", o.BuyExchange, o.SellExchange, o.BuyPrice, o.SellPrice, o.SpreadPct)
		}
		w.Flush()
		return nil
	})
}
