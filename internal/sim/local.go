package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/meghna-verma/ENISI-MSM-control/internal/config"
	"github.com/meghna-verma/ENISI-MSM-control/internal/exchange"
	"github.com/meghna-verma/ENISI-MSM-control/internal/logging"
	"github.com/meghna-verma/ENISI-MSM-control/internal/server"
	"github.com/meghna-verma/ENISI-MSM-control/internal/snapshot"
)

// Cluster is every rank of an in-process run.
type Cluster []*Runner

// NewLocalCluster builds one runner per rank over a shared Hub.
func NewLocalCluster(cfg config.Config, opts Options) (Cluster, error) {
	if cfg.Run.Ranks < 1 {
		return nil, fmt.Errorf("%w: ranks=%d", config.ErrInvalidConfig, cfg.Run.Ranks)
	}
	if opts.Logger == nil {
		logger := logging.Component("sim")
		opts.Logger = &logger
	}
	if opts.RunID == "" {
		opts.RunID = snapshot.NewRunID()
	}
	hub := exchange.NewHub(cfg.Run.Ranks)
	cluster := make(Cluster, 0, cfg.Run.Ranks)
	for rank := 0; rank < cfg.Run.Ranks; rank++ {
		r, err := NewRunner(cfg, hub.Endpoint(rank), opts)
		if err != nil {
			_ = cluster.Close()
			return nil, fmt.Errorf("rank %d: %w", rank, err)
		}
		cluster = append(cluster, r)
	}
	return cluster, nil
}

// Run drives every rank on its own goroutine. The first failure cancels the
// rest so no rank is left waiting at a barrier.
func (c Cluster) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range c {
		g.Go(func() error { return r.Run(ctx) })
	}
	return g.Wait()
}

func (c Cluster) Close() error {
	var errs []error
	for _, r := range c {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

// Status merges the per-rank views. Counts are summed per compartment and
// the step reported is the slowest rank's.
func (c Cluster) Status() server.Status {
	if len(c) == 0 {
		return server.Status{}
	}
	out := c[0].Status()
	out.Rank = -1
	out.Compartments = nil
	index := make(map[string]int)
	for i, r := range c {
		st := r.Status()
		if i > 0 {
			out.Step = min(out.Step, st.Step)
			out.Done = out.Done && st.Done
		}
		if out.Error == "" {
			out.Error = st.Error
		}
		for _, cs := range st.Compartments {
			j, ok := index[cs.Name]
			if !ok {
				index[cs.Name] = len(out.Compartments)
				out.Compartments = append(out.Compartments, cs)
				continue
			}
			out.Compartments[j].LocalAgents += cs.LocalAgents
			out.Compartments[j].LocalCells += cs.LocalCells
		}
	}
	sort.Slice(out.Compartments, func(i, j int) bool { return out.Compartments[i].Name < out.Compartments[j].Name })
	return out
}

func (c Cluster) Ready() bool {
	for _, r := range c {
		if !r.Ready() {
			return false
		}
	}
	return len(c) > 0
}

// RunLocal builds, runs and closes an in-process cluster.
func RunLocal(ctx context.Context, cfg config.Config, opts Options) error {
	cluster, err := NewLocalCluster(cfg, opts)
	if err != nil {
		return err
	}
	defer func() { _ = cluster.Close() }()
	return cluster.Run(ctx)
}

// DialRunner joins a TCP mesh as cfg.Mesh.Rank and builds that rank's runner.
func DialRunner(ctx context.Context, cfg config.Config, opts Options) (*Runner, error) {
	logger := logging.Component("sim")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	mc := exchange.DefaultMeshConfig()
	mc.Rank = cfg.Mesh.Rank
	mc.Peers = cfg.Mesh.Peers
	mc.Listener = opts.Listener
	if cfg.Mesh.DialTimeout > 0 {
		mc.DialTimeout = cfg.Mesh.DialTimeout
	}
	mc.IOTimeout = cfg.Mesh.IOTimeout
	if cfg.Mesh.MaxAttempts > 0 {
		mc.MaxAttempts = cfg.Mesh.MaxAttempts
	}
	mesh, err := exchange.DialMesh(ctx, mc, logger)
	if err != nil {
		return nil, err
	}
	return NewRunner(cfg, mesh, opts)
}
