package sim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/meghna-verma/ENISI-MSM-control/internal/agent"
	"github.com/meghna-verma/ENISI-MSM-control/internal/compartment"
	"github.com/meghna-verma/ENISI-MSM-control/internal/config"
	"github.com/meghna-verma/ENISI-MSM-control/internal/exchange"
	"github.com/meghna-verma/ENISI-MSM-control/internal/logging"
	"github.com/meghna-verma/ENISI-MSM-control/internal/observability"
	"github.com/meghna-verma/ENISI-MSM-control/internal/report"
	"github.com/meghna-verma/ENISI-MSM-control/internal/server"
	"github.com/meghna-verma/ENISI-MSM-control/internal/snapshot"
)

var ErrAlreadyRunning = errors.New("sim: runner already started")

// Options are shared by every runner of a run. Store and Series may be nil.
type Options struct {
	RunID  string
	Store  snapshot.Store
	Series *report.Series
	// Logger defaults to the global logger tagged component=sim.
	Logger *zerolog.Logger
	// Listener, when set, is used for this rank's mesh address.
	Listener net.Listener
}

// Runner steps one rank's registry.
type Runner struct {
	cfg      config.Config
	reg      *compartment.Registry
	opts     Options
	logger   zerolog.Logger
	started  bool
	startMu  sync.Mutex
	statusMu sync.RWMutex
	status   server.Status
	ready    bool
}

// NewRunner builds the registry for transport's rank. The runner takes
// ownership of transport.
func NewRunner(cfg config.Config, transport exchange.Transport, opts Options) (*Runner, error) {
	if opts.RunID == "" {
		opts.RunID = snapshot.NewRunID()
	}
	logger := logging.Component("sim")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("run", opts.RunID).Logger()
	reg, err := BuildRegistry(cfg, transport, logger)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	r := &Runner{cfg: cfg, reg: reg, opts: opts, logger: logger.With().Int("rank", reg.Rank()).Logger()}
	r.publish(0, "init", false, nil)
	if opts.Series != nil {
		opts.Series.Add(0, reg.LocalCounts())
	}
	return r, nil
}

func (r *Runner) Registry() *compartment.Registry { return r.reg }
func (r *Runner) RunID() string                   { return r.opts.RunID }

// Run executes the configured number of steps. It may be called once.
func (r *Runner) Run(ctx context.Context) error {
	r.startMu.Lock()
	if r.started {
		r.startMu.Unlock()
		return ErrAlreadyRunning
	}
	r.started = true
	r.startMu.Unlock()

	steps := uint64(r.cfg.Run.Steps)
	r.logger.Info().Uint64("steps", steps).Msg("sim.Runner.Run start")
	r.setReady(true)
	for step := uint64(1); step <= steps; step++ {
		if err := r.Step(ctx, step); err != nil {
			r.publish(step, "failed", true, err)
			r.setReady(false)
			return fmt.Errorf("rank %d step %d: %w", r.reg.Rank(), step, err)
		}
	}
	r.publish(steps, "done", true, nil)
	r.logger.Info().Uint64("steps", steps).Msg("sim.Runner.Run done")
	return nil
}

// Step runs one full step: act, entity sync, intervene, diffuse, value
// sync, then the optional snapshot and count sample.
func (r *Runner) Step(ctx context.Context, step uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.cfg.Run.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Run.StepTimeout)
		defer cancel()
	}
	ctx, span := observability.Tracer().Start(ctx, "sim.step", trace.WithAttributes(
		attribute.Int64("enisi.step", int64(step)),
		attribute.Int("enisi.rank", r.reg.Rank()),
	))
	defer span.End()

	phases := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"act", func(context.Context) error { return r.reg.Act() }},
		{"sync_cells", r.reg.SynchronizeCells},
		{"intervene", func(context.Context) error { return r.reg.Intervene() }},
		{"diffuse", r.reg.Diffuse},
		{"sync_values", r.reg.SynchronizeDiffuser},
	}
	for _, p := range phases {
		r.publish(step, p.name, false, nil)
		if err := r.phase(ctx, p.name, p.fn); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	if err := r.snapshot(ctx, step); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if r.opts.Series != nil {
		r.opts.Series.Add(step, r.reg.LocalCounts())
	}
	observability.RecordStep()
	r.publish(step, "idle", false, nil)
	r.logger.Debug().Uint64("step", step).Msg("sim.Runner.Step")
	return nil
}

func (r *Runner) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := observability.Tracer().Start(ctx, "sim."+name)
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	observability.ObservePhase(name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (r *Runner) snapshot(ctx context.Context, step uint64) error {
	every := uint64(r.cfg.Run.SnapshotEvery)
	if r.opts.Store == nil || every == 0 || step%every != 0 {
		return nil
	}
	ctx, span := observability.Tracer().Start(ctx, "sim.snapshot")
	defer span.End()
	sep := r.cfg.Run.Separator
	for _, c := range r.reg.Compartments() {
		var buf bytes.Buffer
		if err := c.Write(&buf, sep); err != nil {
			return fmt.Errorf("write %s: %w", c.Name(), err)
		}
		rec := snapshot.Record{
			RunID:       r.opts.RunID,
			Step:        step,
			Rank:        r.reg.Rank(),
			Compartment: c.Name(),
			Separator:   sep,
			Payload:     buf.Bytes(),
		}
		if err := r.opts.Store.Save(ctx, rec); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}
	return nil
}

// Close releases the registry and its transport.
func (r *Runner) Close() error { return r.reg.Close() }

func (r *Runner) Status() server.Status {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	out := r.status
	out.Compartments = append([]server.CompartmentStatus(nil), r.status.Compartments...)
	return out
}

func (r *Runner) Ready() bool {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.ready
}

func (r *Runner) setReady(v bool) {
	r.statusMu.Lock()
	r.ready = v
	r.statusMu.Unlock()
}

// publish snapshots registry state for status readers. It runs on the
// runner goroutine so readers never touch compartments directly.
func (r *Runner) publish(step uint64, phase string, done bool, err error) {
	st := server.Status{
		RunID: r.opts.RunID,
		Rank:  r.reg.Rank(),
		Ranks: r.reg.Size(),
		Step:  step,
		Steps: uint64(r.cfg.Run.Steps),
		Phase: phase,
		Done:  done,
	}
	if err != nil {
		st.Error = err.Error()
	}
	for _, c := range r.reg.Compartments() {
		st.Compartments = append(st.Compartments, server.CompartmentStatus{
			Name:        c.Name(),
			LocalAgents: len(c.LocalAgents(agent.AnyKind)),
			LocalCells:  c.LocalGridDimensions().Cells(),
			Cytokines:   c.Cytokines(),
		})
	}
	r.statusMu.Lock()
	r.status = st
	r.statusMu.Unlock()
}
