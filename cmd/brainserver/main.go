package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/CLIAIBRAIN/internal/logging"
	"github.com/CLIAIBRAIN/internal/metadata"
	"github.com/CLIAIBRAIN/internal/notebook"
	"github.com/CLIAIBRAIN/internal/server"
	"github.com/CLIAIBRAIN/internal/types"
)

func main() {
	configPath := flag.String("config", "brain.yaml", "Configuration file")
	host := flag.String("host", "", "Listen host (overrides config)")
	port := flag.Int("port", 0, "Listen port (overrides config)")
	brainDir := flag.String("brain-dir", "", "Notebook root directory (overrides config)")
	stateDir := flag.String("state-dir", "", "State directory (overrides config)")
	zkBinary := flag.String("zk", "", "zk binary for the rich notebook backend")
	logLevel := flag.String("log-level", "", "Log level: debug|info|warn|error")
	logFormat := flag.String("log-format", "", "Log format: console|json")
	flag.Parse()

	// .env fills BRAIN_* defaults before config and flags
	godotenv.Load()

	cfg, err := types.LoadServerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *brainDir != "" {
		cfg.BrainDir = *brainDir
	}
	if *stateDir != "" {
		cfg.StateDir = *stateDir
	}
	if *zkBinary != "" {
		cfg.ZKBinary = *zkBinary
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}

	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to determine home directory: %v\n", err)
			os.Exit(1)
		}
		cfg.StateDir = filepath.Join(home, ".brain")
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:      logging.Level(cfg.LogLevel),
		JSONOutput: cfg.LogFormat == "json",
	})
	log := logging.WithComponent("main")

	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.StateDir).Msg("cannot create state directory")
	}

	meta, err := metadata.Open(filepath.Join(cfg.StateDir, "metadata.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open metadata store")
	}

	nb := notebook.New(cfg.BrainDir, notebook.NewZKBackend(cfg.BrainDir, cfg.ZKBinary, nil))
	srv := server.NewServer(cfg, nb, meta)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("shutdown requested")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown incomplete")
			os.Exit(1)
		}
	}
}
