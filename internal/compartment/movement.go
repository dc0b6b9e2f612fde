package compartment

import (
	"errors"
	"fmt"
	"math"

	"github.com/meghna-verma/ENISI-MSM-control/internal/agent"
	"github.com/meghna-verma/ENISI-MSM-control/internal/border"
	"github.com/meghna-verma/ENISI-MSM-control/internal/exchange"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/observability"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

// NewAgent mints an unplaced agent of kind. Place it with AddAgent.
func (c *Compartment) NewAgent(kind agent.Kind, state int32) *agent.Agent {
	return &agent.Agent{ID: c.minter.Next(kind), State: state}
}

// AddAgent places a at loc, which must fall inside the local partition.
// On success a carries its location and cell.
func (c *Compartment) AddAgent(a *agent.Agent, loc grid.Vector) error {
	cell, err := c.transform.SpaceToGridVector(loc)
	if err != nil {
		return err
	}
	if !c.local.Contains(cell) {
		return fmt.Errorf("%w: %s cell %s outside %s", ErrNotLocal, c.Type(), cell, c.local)
	}
	a.Location = loc
	a.Cell = cell
	if err := c.dir.Add(*a); err != nil {
		return err
	}
	c.noLocalAgents = false
	return nil
}

// AddAgentToRandomLocation mints an agent and places it uniformly at random
// inside the local partition.
func (c *Compartment) AddAgentToRandomLocation(kind agent.Kind, state int32) (agent.Agent, error) {
	if c.local.Empty() {
		return agent.Agent{}, fmt.Errorf("%w: %s rank %d has no cells", ErrNotLocal, c.Type(), c.rank)
	}
	lo, hi := c.LocalSpaceDimensions()
	var loc grid.Vector
	for _, ax := range grid.Axes {
		loc[ax] = lo[ax] + c.rng.Float64()*(hi[ax]-lo[ax])
		if loc[ax] >= hi[ax] {
			loc[ax] = math.Nextafter(hi[ax], lo[ax])
		}
	}
	a := c.NewAgent(kind, state)
	if err := c.AddAgent(a, loc); err != nil {
		return agent.Agent{}, err
	}
	return *a, nil
}

// adopt takes ownership of an inbound migration.
func (c *Compartment) adopt(pkg exchange.AgentPackage) error {
	cell, err := c.transform.SpaceToGridVector(pkg.Location)
	if err != nil || !c.local.Contains(cell) {
		return fmt.Errorf("%w: %s migration %s lands at %s outside %s", ErrNotLocal, c.Type(), pkg.ID, cell, c.local)
	}
	return c.dir.Add(agent.Agent{ID: pkg.ID, State: pkg.State, Location: pkg.Location, Cell: cell})
}

func (c *Compartment) RemoveAgent(id agent.ID) error {
	if _, ok := c.dir.Remove(id); !ok {
		return fmt.Errorf("%w: %s", agent.ErrUnknownAgent, id)
	}
	delete(c.pending, id)
	c.refreshNoLocal()
	return nil
}

func (c *Compartment) GetLocation(id agent.ID) (grid.Vector, error) {
	a, ok := c.dir.Get(id)
	if !ok {
		return grid.Vector{}, fmt.Errorf("%w: %s", agent.ErrUnknownAgent, id)
	}
	return a.Location, nil
}

// SetState updates the opaque state word of a local agent.
func (c *Compartment) SetState(id agent.ID, state int32) error {
	return c.dir.SetState(id, state)
}

// MoveTo moves a local agent to loc. Crossing a reflective border folds the
// move back in; crossing an adjacent border hands the agent to the next
// compartment. Edge borders block the move with grid.ErrInvalidCoordinate.
// Absorbing borders follow the compartment's absorb policy.
func (c *Compartment) MoveTo(id agent.ID, loc grid.Vector) (agent.Move, error) {
	a, ok := c.dir.Get(id)
	if !ok {
		return agent.Move{}, fmt.Errorf("%w: %s", agent.ErrUnknownAgent, id)
	}
	mv := agent.Move{From: c.Owner()}
	dest, q, err := c.locateSpace(loc)
	switch {
	case err == nil:
	case errors.Is(err, border.ErrAbsorbed):
		return c.absorb(a, loc, err)
	default:
		return agent.Move{}, err
	}

	cell, err := dest.transform.SpaceToGridVector(q)
	if err != nil {
		return agent.Move{}, err
	}
	rank, err := dest.decomp.Rank(cell)
	if err != nil {
		return agent.Move{}, fmt.Errorf("%w: %s", ErrNoOwner, err)
	}
	mv.To = tissue.Owner{Rank: rank, Compartment: dest.Type()}
	mv.Location = q
	mv.Cell = cell

	if mv.To == mv.From {
		mv.Outcome = agent.Moved
		if err := c.dir.Relocate(id, q, cell); err != nil {
			return agent.Move{}, err
		}
		delete(c.pending, id)
	} else {
		mv.Outcome = agent.Transfer
		c.pending[id] = mv
	}
	observability.RecordMove(c.Name(), mv.Outcome.String())
	return mv, nil
}

func (c *Compartment) absorb(a agent.Agent, loc grid.Vector, cause error) (agent.Move, error) {
	switch c.props.Absorb {
	case border.AbsorbReject:
		return agent.Move{}, cause
	case border.AbsorbWarn:
		c.logger.Warn().
			Str("agent", a.ID.String()).
			Str("from", a.Location.String()).
			Str("to", loc.String()).
			Msg("compartment.Compartment.MoveTo absorbed")
	}
	c.dir.Remove(a.ID)
	delete(c.pending, a.ID)
	c.refreshNoLocal()
	observability.RecordMove(c.Name(), agent.Absorbed.String())
	return agent.Move{Outcome: agent.Absorbed, From: c.Owner(), To: c.Owner(), Location: loc}, nil
}

// MoveBy moves a local agent by delta from its current location.
func (c *Compartment) MoveBy(id agent.ID, delta grid.Vector) (agent.Move, error) {
	loc, err := c.GetLocation(id)
	if err != nil {
		return agent.Move{}, err
	}
	return c.MoveTo(id, loc.Add(delta))
}

// MoveRandom moves a local agent in a uniformly random direction by a
// distance drawn from [0, maxSpeed).
func (c *Compartment) MoveRandom(id agent.ID, maxSpeed float64) (agent.Move, error) {
	theta := c.rng.Float64() * 2 * math.Pi
	dist := c.rng.Float64() * maxSpeed
	return c.MoveBy(id, grid.Vector{dist * math.Cos(theta), dist * math.Sin(theta)})
}

// GetAgents returns local agents and replicas in cell matching mask.
func (c *Compartment) GetAgents(cell grid.Point, mask agent.Kind) []agent.Agent {
	return c.dir.Window(grid.Rect{Lo: cell, Hi: cell.Add(grid.Point{1, 1})}, mask)
}

func (c *Compartment) GetAgentsOffset(cell, offset grid.Point, mask agent.Kind) []agent.Agent {
	return c.GetAgents(cell.Add(offset), mask)
}

// GetNeighbors returns local agents and replicas within radius cells of
// cell on both axes, the cell itself included.
func (c *Compartment) GetNeighbors(cell grid.Point, radius int, mask agent.Kind) []agent.Agent {
	r := grid.Rect{Lo: cell, Hi: cell.Add(grid.Point{1, 1})}.Expand(radius)
	return c.dir.Window(r, mask)
}

func (c *Compartment) LocalAgents(mask agent.Kind) []agent.Agent { return c.dir.Local(mask) }

func (c *Compartment) LocalAgentsAt(cell grid.Point, mask agent.Kind) []agent.Agent {
	return c.dir.LocalAt(cell, mask)
}

// Replicas returns the neighbour-owned agents held from the last
// synchronization.
func (c *Compartment) Replicas() []agent.Agent { return c.dir.Replicas() }

// LocalCount converts a per-cell concentration into an agent count for the
// local partition.
func (c *Compartment) LocalCount(concentration float64) int {
	if !(concentration > 0) || math.IsInf(concentration, 1) {
		return 0
	}
	return int(math.Round(concentration * float64(c.local.Cells())))
}

// Pending returns the transfers queued for the next cell synchronization.
func (c *Compartment) Pending() []agent.Move {
	out := make([]agent.Move, 0, len(c.pending))
	for _, id := range c.pendingIDs() {
		out = append(out, c.pending[id])
	}
	return out
}
