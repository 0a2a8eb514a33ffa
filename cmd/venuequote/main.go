// Command venuequote is the reference CLI embedder of the engine
// package: it loads venue/symbol configuration, runs the ingestion
// engine in-process, and exposes run/query/probe subcommands. Grounded
// on the teacher's cmd/cprotocol root.go (cobra root + persistent
// flags) and cmd/cryptorun's "providers probe" command.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagPairsFile   string
	flagRuntimeFile string
	flagRedisAddr   string
	flagPitPath     string
	flagLogFormat   string
)

const stopGrace = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:   "venuequote",
	Short: "Multi-exchange futures price ingestion and arbitrage detection",
	Long: `venuequote connects to multiple cryptocurrency futures venues over
websocket (and REST polling where a venue has no stream), maintains a
concurrent in-memory price book keyed by display symbol and exchange, and
surfaces cross-venue arbitrage opportunities.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPairsFile, "pairs", "config/pairs.csv", "path to the venue/symbol pair file (.csv or .json)")
	rootCmd.PersistentFlags().StringVar(&flagRuntimeFile, "runtime", "", "path to the optional YAML runtime tunables file")
	rootCmd.PersistentFlags().StringVar(&flagRedisAddr, "redis-addr", "", "redis host:port for the warm cache (empty uses an in-memory cache)")
	rootCmd.PersistentFlags().StringVar(&flagPitPath, "pit-dir", "", "directory for gzip point-in-time snapshot flush (empty disables disk flush)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "console", "log output format: console or json")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(exportCmd)
}

func setupLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if flagLogFormat == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

func main() {
	log.Logger = setupLogger()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
