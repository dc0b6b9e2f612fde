package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/meghna-verma/ENISI-MSM-control/internal/config"
	"github.com/meghna-verma/ENISI-MSM-control/internal/logging"
	"github.com/meghna-verma/ENISI-MSM-control/internal/observability"
	"github.com/meghna-verma/ENISI-MSM-control/internal/report"
	"github.com/meghna-verma/ENISI-MSM-control/internal/server"
	"github.com/meghna-verma/ENISI-MSM-control/internal/sim"
	"github.com/meghna-verma/ENISI-MSM-control/internal/snapshot"
)

type flags struct {
	config     string
	ranks      int
	steps      int
	rank       int
	peers      string
	chart      string
	table      bool
	statusAddr string
}

func parseFlags(args []string) (flags, map[string]bool, error) {
	var f flags
	fs := flag.NewFlagSet("enisictl", flag.ContinueOnError)
	fs.StringVar(&f.config, "config", "", "path to run config (TOML); defaults plus ENISI_* env when empty")
	fs.IntVar(&f.ranks, "ranks", 0, "number of ranks")
	fs.IntVar(&f.steps, "steps", 0, "number of steps")
	fs.IntVar(&f.rank, "rank", 0, "this process's rank in mesh mode")
	fs.StringVar(&f.peers, "peers", "", "comma separated rank listen addresses; enables mesh mode")
	fs.StringVar(&f.chart, "chart", "", "write a PNG chart of agent counts to this path")
	fs.BoolVar(&f.table, "table", false, "print per-step agent counts when the run ends")
	fs.StringVar(&f.statusAddr, "status-addr", "", "serve status and metrics on this address")
	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

// applyFlags overlays explicitly set flags on cfg.
func applyFlags(cfg *config.Config, f flags, set map[string]bool) error {
	if set["ranks"] {
		cfg.Run.Ranks = f.ranks
	}
	if set["steps"] {
		cfg.Run.Steps = f.steps
	}
	if set["peers"] {
		cfg.Mesh.Peers = nil
		for _, p := range strings.Split(f.peers, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Mesh.Peers = append(cfg.Mesh.Peers, p)
			}
		}
		if !set["ranks"] {
			cfg.Run.Ranks = len(cfg.Mesh.Peers)
		}
	}
	if set["rank"] {
		cfg.Mesh.Rank = f.rank
	}
	if set["status-addr"] {
		cfg.Status.Addr = f.statusAddr
	}
	return config.Validate(*cfg)
}

func main() {
	logging.ConfigureRuntime()
	f, set, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	cfg, err := config.Load(f.config)
	if err != nil {
		log.Fatal().Err(err).Str("path", f.config).Msg("failed to load config")
	}
	if err := applyFlags(&cfg, f, set); err != nil {
		log.Fatal().Err(err).Msg("invalid flags")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.SetupTracing(ctx, "enisictl")
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}
	defer func() { _ = shutdown(context.Background()) }()

	var store snapshot.Store
	if cfg.Storage.Driver != "" {
		store, err = snapshot.Open(ctx, storageOptions(cfg.Storage))
		if err != nil {
			log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open snapshot store")
		}
		defer func() { _ = store.Close() }()
	}

	series := report.NewSeries()
	opts := sim.Options{RunID: snapshot.NewRunID(), Store: store, Series: series}
	rank := 0
	var (
		provider server.Provider
		run      func(context.Context) error
		closer   func() error
	)
	if len(cfg.Mesh.Peers) > 0 {
		rank = cfg.Mesh.Rank
		runner, err := sim.DialRunner(ctx, cfg, opts)
		if err != nil {
			log.Fatal().Err(err).Int("rank", rank).Msg("failed to join mesh")
		}
		provider, run, closer = runner, runner.Run, runner.Close
	} else {
		cluster, err := sim.NewLocalCluster(cfg, opts)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build run")
		}
		provider, run, closer = cluster, cluster.Run, cluster.Close
	}
	defer func() { _ = closer() }()

	if cfg.Status.Addr != "" {
		srv := server.New(rank, cfg.Status.Addr, provider, series, cfg.Status.CorsOrigins, server.WithToken(cfg.Status.Token))
		go func() {
			if err := srv.Serve(ctx); err != nil {
				log.Error().Err(err).Str("addr", cfg.Status.Addr).Msg("status server stopped")
			}
		}()
	}

	log.Info().
		Str("run", opts.RunID).
		Int("ranks", cfg.Run.Ranks).
		Int("steps", cfg.Run.Steps).
		Bool("mesh", len(cfg.Mesh.Peers) > 0).
		Msg("run started")
	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Str("run", opts.RunID).Msg("run failed")
	}
	log.Info().Str("run", opts.RunID).Msg("run finished")

	if f.table {
		if err := series.WriteTable(os.Stdout, cfg.Run.Separator); err != nil {
			log.Error().Err(err).Msg("failed to write counts")
		}
	}
	if f.chart != "" {
		if err := writeChart(f.chart, series); err != nil {
			log.Error().Err(err).Str("path", f.chart).Msg("failed to write chart")
		} else {
			log.Info().Str("path", f.chart).Msg("wrote chart")
		}
	}
}

func storageOptions(s config.StorageConfig) snapshot.Options {
	return snapshot.Options{
		Driver:    s.Driver,
		DSN:       s.DSN,
		Bucket:    s.Bucket,
		Prefix:    s.Prefix,
		Region:    s.Region,
		Endpoint:  s.Endpoint,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		PathStyle: s.PathStyle,
	}
}

func writeChart(path string, series *report.Series) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := series.RenderPNG(out, 800, 400); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
