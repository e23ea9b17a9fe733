package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/streetwise/internal/domain/market"
	"github.com/okian/streetwise/internal/simulate"
	"github.com/okian/streetwise/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	defaults := simulate.DefaultConfig()
	var (
		games    = flag.Int("games", defaults.Games, "Number of games to play")
		workers  = flag.Int("workers", runtime.NumCPU(), "Number of concurrent games")
		seed     = flag.Uint64("seed", defaults.Seed, "Base seed; game i uses seed+i")
		baseURL  = flag.String("url", "", "Play against a running server instead of the in-process engine")
		timeout  = flag.Duration("timeout", defaults.Timeout, "HTTP request timeout (remote mode)")
		declared = flag.Duration("declared", defaults.DeclaredDuration, "Run length claimed in score submissions (remote mode)")
		hashLen  = flag.Int("hash-length", defaults.HashLength, "Integrity hash length expected by the server (remote mode)")
		topN     = flag.Int("top", defaults.TopN, "Leaderboard entries to verify (remote mode)")
		catalog  = flag.String("catalog", "", "YAML catalog to price against")
		output   = flag.String("output", "", "Write the report as JSON to this file")
		format   = flag.String("log-format", "text", "Log format: text or json")
		verbose  = flag.Bool("verbose", false, "Log every finished game")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*format)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := simulate.Config{
		Games:            *games,
		Workers:          *workers,
		Seed:             *seed,
		BaseURL:          *baseURL,
		Timeout:          *timeout,
		DeclaredDuration: *declared,
		HashLength:       *hashLen,
		TopN:             *topN,
		OutputFile:       *output,
		Verbose:          *verbose,
	}
	if err := run(ctx, cfg, *catalog); err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg simulate.Config, catalogPath string) error {
	var cat *market.Catalog
	if catalogPath != "" {
		c, err := market.LoadCatalog(catalogPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		cat = c
	}

	var (
		report *simulate.Report
		err    error
	)
	if cfg.BaseURL != "" {
		report, err = simulate.RunRemote(ctx, cfg, cat)
	} else {
		report, err = simulate.RunLocal(ctx, cfg, cat)
	}
	if err != nil {
		return err
	}

	report.Log(ctx)
	if cfg.OutputFile != "" {
		if err := report.Save(cfg.OutputFile); err != nil {
			return err
		}
		logger.Get().Info(ctx, "report saved", logger.String("file", cfg.OutputFile))
	}
	return nil
}
