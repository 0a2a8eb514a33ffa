package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"venuequote/engine"
	"venuequote/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingestion engine until interrupted",
	RunE:  runRun,
}

func loadEngineConfig() (engine.Config, error) {
	pairs, warnings, err := config.LoadPairs(flagPairsFile)
	if err != nil {
		return engine.Config{}, fmt.Errorf("load pairs: %w", err)
	}
	for _, w := range warnings {
		log.Warn().Msg(w)
	}
	runtime, err := config.LoadRuntime(flagRuntimeFile)
	if err != nil {
		return engine.Config{}, fmt.Errorf("load runtime: %w", err)
	}
	return engine.Config{
		Pairs:       pairs,
		Runtime:     runtime,
		RedisAddr:   flagRedisAddr,
		PitBasePath: flagPitPath,
		Logger:      log.Logger,
	}, nil
}

func runRun(cmd *cobra.Command, args []string) error {
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
	log.Info().Int("pairs", len(cfg.Pairs)).Msg("venuequote engine started")

	unsubArb := eng.Subscribe("arbitrage-found", func(payload interface{}) {
		log.Info().Interface("event", payload).Msg("arbitrage opportunity")
	})
	defer unsubArb()
	unsubExh := eng.Subscribe("supervisor-exhausted", func(payload interface{}) {
		log.Warn().Interface("event", payload).Msg("venue reconnect attempts exhausted")
	})
	defer unsubExh()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopGrace)
	defer stopCancel()
	return eng.Stop(stopCtx)
}
