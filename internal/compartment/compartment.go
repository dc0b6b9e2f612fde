// Package compartment composes the coordinate transform, border registry,
// rank decomposition, entity directory and field store of one tissue region
// into the facade that behavior groups and the step driver call.
package compartment

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/meghna-verma/ENISI-MSM-control/internal/agent"
	"github.com/meghna-verma/ENISI-MSM-control/internal/behavior"
	"github.com/meghna-verma/ENISI-MSM-control/internal/border"
	"github.com/meghna-verma/ENISI-MSM-control/internal/decomp"
	"github.com/meghna-verma/ENISI-MSM-control/internal/field"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

// Compartment is one region type on one rank. It owns the entities and
// concentrations of its local partition and holds replicas of the halo.
// Methods are not safe for concurrent use; each rank drives its own
// registry from a single goroutine.
type Compartment struct {
	props     Properties
	registry  *Registry
	rank      int
	decomp    *decomp.Decomposition
	transform grid.Transform
	local     grid.Rect

	dir      *agent.Directory
	fields   *field.Store
	diffuser field.Diffuser
	groups   []behavior.Group
	pending  map[agent.ID]agent.Move

	minter        *agent.Minter
	rng           *rand.Rand
	noLocalAgents bool
	cellRound     uint64
	valueRound    uint64
	logger        zerolog.Logger
}

var _ behavior.Host = (*Compartment)(nil)

func newCompartment(r *Registry, p Properties) (*Compartment, error) {
	p, err := p.normalize(r.Size())
	if err != nil {
		return nil, err
	}
	d, err := decomp.New(p.Grid, p.Procs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidProperties, p.Type, err)
	}
	local, err := d.Rect(r.Rank())
	if err != nil {
		return nil, err
	}
	seed := p.Seed + int64(r.Rank())*7919 + int64(p.Type)*104729
	return &Compartment{
		props:     p,
		registry:  r,
		rank:      r.Rank(),
		decomp:    d,
		transform: grid.Transform{Origin: p.Origin, CellSize: p.CellSize, Extent: p.Grid},
		local:     local,
		dir:       agent.NewDirectory(),
		fields:    field.NewStore(local, p.Halo),
		pending:   make(map[agent.ID]agent.Move),
		minter:    agent.NewMinter(r.Rank()),
		rng:       rand.New(rand.NewSource(seed)),
		logger: r.logger.With().
			Str("compartment", p.Type.String()).
			Logger(),
	}, nil
}

func (c *Compartment) Type() tissue.Type { return c.props.Type }
func (c *Compartment) Name() string      { return c.props.Type.String() }
func (c *Compartment) Rank() int         { return c.rank }

// Owner returns this partition's (rank, compartment) address.
func (c *Compartment) Owner() tissue.Owner {
	return tissue.Owner{Rank: c.rank, Compartment: c.props.Type}
}

func (c *Compartment) Properties() Properties { return c.props }

// SpaceDimensions returns the global physical bounds [lo, hi).
func (c *Compartment) SpaceDimensions() (lo, hi grid.Vector) {
	return c.transform.SpaceRect(grid.RectOf(c.props.Grid))
}

// LocalSpaceDimensions returns the physical bounds of the local partition.
func (c *Compartment) LocalSpaceDimensions() (lo, hi grid.Vector) {
	return c.transform.SpaceRect(c.local)
}

func (c *Compartment) GridDimensions() grid.Rect      { return grid.RectOf(c.props.Grid) }
func (c *Compartment) LocalGridDimensions() grid.Rect { return c.local }
func (c *Compartment) Transform() grid.Transform      { return c.transform }
func (c *Compartment) Decomposition() *decomp.Decomposition {
	return c.decomp
}
func (c *Compartment) Borders() border.Set { return c.props.Borders }
func (c *Compartment) Halo() int           { return c.props.Halo }

// AdjacentCompartment returns the compartment beyond axis/side, if any.
func (c *Compartment) AdjacentCompartment(axis grid.Axis, side grid.Side) (*Compartment, bool) {
	t, ok := c.props.Borders.AdjacentCompartment(axis, side)
	if !ok {
		return nil, false
	}
	return c.registry.Instance(t)
}

func (c *Compartment) GridToSpace(axis grid.Axis, g int) (float64, error) {
	return c.transform.GridToSpace(axis, g)
}

func (c *Compartment) GridToSpacePoint(p grid.Point) (grid.Vector, error) {
	return c.transform.GridToSpacePoint(p)
}

func (c *Compartment) SpaceToGrid(axis grid.Axis, s float64) (int, error) {
	return c.transform.SpaceToGrid(axis, s)
}

func (c *Compartment) SpaceToGridVector(v grid.Vector) (grid.Point, error) {
	return c.transform.SpaceToGridVector(v)
}

// NoLocalAgents reports whether the local partition is empty.
func (c *Compartment) NoLocalAgents() bool { return c.noLocalAgents }

func (c *Compartment) refreshNoLocal() {
	c.noLocalAgents = c.dir.Len() == 0
}

// AddCytokine registers a named field. It fails with field.ErrDuplicateField
// for a repeated name and field.ErrFieldsSealed once the registry is ready.
func (c *Compartment) AddCytokine(name string) (int, error) {
	return c.fields.AddCytokine(name)
}

func (c *Compartment) Cytokines() []string { return c.fields.Names() }

// CytokineValue returns a mutable reference to a local cell's value.
func (c *Compartment) CytokineValue(name string, cell grid.Point) (*float64, error) {
	return c.fields.Value(name, cell)
}

func (c *Compartment) CytokineValueOffset(name string, cell, offset grid.Point) (*float64, error) {
	return c.fields.Value(name, cell.Add(offset))
}

// ReadCytokine reads a local or halo cell.
func (c *Compartment) ReadCytokine(name string, cell grid.Point) (float64, error) {
	return c.fields.Read(name, cell)
}

func (c *Compartment) CytokineValues(cell grid.Point) ([]float64, error) {
	return c.fields.Values(cell)
}

func (c *Compartment) InitializeDiffuserData() *field.Layer {
	return c.fields.InitializeDiffuserData()
}

func (c *Compartment) GetDiffuserData() *field.Layer { return c.fields.DiffuserData() }

func (c *Compartment) SetDiffuser(d field.Diffuser) { c.diffuser = d }
