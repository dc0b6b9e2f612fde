package compartment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/meghna-verma/ENISI-MSM-control/internal/border"
	"github.com/meghna-verma/ENISI-MSM-control/internal/exchange"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

var (
	ErrCompartmentExists  = errors.New("compartment: type already registered")
	ErrUnknownCompartment = errors.New("compartment: unknown compartment")
	ErrWrongPhase         = errors.New("compartment: wrong lifecycle phase")
	ErrInvalidProperties  = errors.New("compartment: invalid properties")
	ErrNoOwner            = errors.New("compartment: no owner")
	ErrNotLocal           = errors.New("compartment: location not in local partition")
)

// Phase is the registry lifecycle: compartments and groups are added while
// configuring, steps run while ready.
type Phase int

const (
	PhaseConfigure Phase = iota
	PhaseReady
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseConfigure:
		return "configure"
	case PhaseReady:
		return "ready"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Registry holds the single compartment of each type on one rank. It is
// handed to every compartment so cross-compartment lookups never go through
// package state.
type Registry struct {
	transport exchange.Transport
	logger    zerolog.Logger

	mu     sync.RWMutex
	phase  Phase
	byType map[tissue.Type]*Compartment
}

type Option func(*Registry)

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func NewRegistry(transport exchange.Transport, opts ...Option) *Registry {
	r := &Registry{
		transport: transport,
		logger:    log.Logger,
		byType:    make(map[tissue.Type]*Compartment),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Int("rank", transport.Rank()).Logger()
	return r
}

func (r *Registry) Rank() int { return r.transport.Rank() }
func (r *Registry) Size() int { return r.transport.Size() }

func (r *Registry) Phase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase
}

// Register constructs the compartment for p.Type.
func (r *Registry) Register(p Properties) (*Compartment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseConfigure {
		return nil, fmt.Errorf("%w: register %s during %s", ErrWrongPhase, p.Type, r.phase)
	}
	if _, ok := r.byType[p.Type]; ok {
		return nil, fmt.Errorf("%w: %s", ErrCompartmentExists, p.Type)
	}
	c, err := newCompartment(r, p)
	if err != nil {
		return nil, err
	}
	r.byType[p.Type] = c
	r.logger.Debug().
		Str("compartment", c.Type().String()).
		Str("grid", c.GridDimensions().String()).
		Str("local", c.LocalGridDimensions().String()).
		Msg("compartment.Registry.Register")
	return c, nil
}

func (r *Registry) Instance(t tissue.Type) (*Compartment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byType[t]
	return c, ok
}

// Compartments returns every compartment in type order. Collective steps
// walk this order so barrier rounds line up on every rank.
func (r *Registry) Compartments() []*Compartment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Compartment, 0, len(r.byType))
	for _, c := range r.byType {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type() < out[j].Type() })
	return out
}

// Init validates border symmetry, seals every field store and moves the
// registry to PhaseReady. Validation failures are fatal for the run.
func (r *Registry) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhaseConfigure {
		return fmt.Errorf("%w: init during %s", ErrWrongPhase, r.phase)
	}
	if len(r.byType) == 0 {
		return fmt.Errorf("%w: no compartments registered", ErrInvalidProperties)
	}
	sets := make(map[tissue.Type]border.Set, len(r.byType))
	for t, c := range r.byType {
		sets[t] = c.props.Borders
	}
	if err := border.CheckSymmetry(sets); err != nil {
		return err
	}
	for _, c := range r.byType {
		c.fields.InitializeDiffuserData()
		c.refreshNoLocal()
	}
	r.phase = PhaseReady
	r.logger.Info().Int("compartments", len(r.byType)).Msg("compartment.Registry.Init ready")
	return nil
}

// Close tears down the registry and its transport.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == PhaseClosed {
		return nil
	}
	r.phase = PhaseClosed
	return r.transport.Close()
}

func (r *Registry) requirePhase(want Phase) error {
	if got := r.Phase(); got != want {
		return fmt.Errorf("%w: need %s, registry is %s", ErrWrongPhase, want, got)
	}
	return nil
}

func (r *Registry) Act() error {
	for _, c := range r.Compartments() {
		if err := c.Act(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Intervene() error {
	for _, c := range r.Compartments() {
		if err := c.Intervene(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Diffuse(ctx context.Context) error {
	for _, c := range r.Compartments() {
		if err := c.Diffuse(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) SynchronizeCells(ctx context.Context) error {
	for _, c := range r.Compartments() {
		if err := c.SynchronizeCells(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) SynchronizeDiffuser(ctx context.Context) error {
	for _, c := range r.Compartments() {
		if err := c.SynchronizeDiffuser(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Write dumps every compartment in type order.
func (r *Registry) Write(w io.Writer, sep string) error {
	for _, c := range r.Compartments() {
		if err := c.Write(w, sep); err != nil {
			return err
		}
	}
	return nil
}

// LocalCounts returns the local agent count per compartment.
func (r *Registry) LocalCounts() map[tissue.Type]int {
	out := make(map[tissue.Type]int)
	for _, c := range r.Compartments() {
		out[c.Type()] = c.dir.Len()
	}
	return out
}
