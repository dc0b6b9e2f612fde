package compartment

import (
	"context"
	"errors"
	"fmt"

	"github.com/meghna-verma/ENISI-MSM-control/internal/agent"
	"github.com/meghna-verma/ENISI-MSM-control/internal/border"
	"github.com/meghna-verma/ENISI-MSM-control/internal/exchange"
	"github.com/meghna-verma/ENISI-MSM-control/internal/field"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/observability"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

// SynchronizeCells runs one barrier round for this compartment. It pushes
// replicas of border agents and the queued transfers, drops the transferred
// agents, replaces every replica this compartment pushed last round and
// adopts inbound migrations. Every rank must call it for every compartment
// in the same order.
func (c *Compartment) SynchronizeCells(ctx context.Context) error {
	if err := c.registry.requirePhase(PhaseReady); err != nil {
		return err
	}
	c.cellRound++
	tag := exchange.Tag{Step: c.cellRound, Kind: exchange.KindCells, Source: c.Type()}

	sets := make(PushSets)
	c.GetBorderCellsToPush(nil, sets)
	out := make(map[int]exchange.Envelope)
	add := func(rank int, pkg exchange.AgentPackage) {
		env := out[rank]
		env.Agents = append(env.Agents, pkg)
		out[rank] = env
	}
	sent := 0
	for _, owner := range sets.Owners() {
		for _, id := range sets[owner] {
			a, _ := c.dir.Get(id)
			_, loc, ok := c.frameInto(owner.Compartment, a.Cell, a.Location)
			if !ok {
				continue
			}
			add(owner.Rank, exchange.AgentPackage{ID: id, State: a.State, Location: loc, Dest: owner.Compartment})
			sent++
		}
	}
	transfers := c.pendingIDs()
	for _, id := range transfers {
		mv := c.pending[id]
		a, ok := c.dir.Get(id)
		if !ok {
			continue
		}
		add(mv.To.Rank, exchange.AgentPackage{ID: id, State: a.State, Location: mv.Location, Dest: mv.To.Compartment, Migrate: true})
		sent++
	}
	for rank, env := range out {
		env.Tag = tag
		env.From = c.rank
		out[rank] = env
	}

	in, err := c.registry.transport.Exchange(ctx, tag, out)
	if err != nil {
		return fmt.Errorf("compartment: %s synchronize cells: %w", c.Type(), err)
	}
	for _, id := range transfers {
		c.dir.Remove(id)
	}
	clear(c.pending)

	replicas := make(map[tissue.Type][]agent.Agent)
	var migrations []exchange.AgentPackage
	received := 0
	for _, env := range in {
		for _, pkg := range env.Agents {
			received++
			if pkg.Migrate {
				migrations = append(migrations, pkg)
				continue
			}
			dest, ok := c.registry.Instance(pkg.Dest)
			if !ok {
				return fmt.Errorf("%w: replica for %s", ErrUnknownCompartment, pkg.Dest)
			}
			replicas[pkg.Dest] = append(replicas[pkg.Dest], agent.Agent{
				ID:       pkg.ID,
				State:    pkg.State,
				Location: pkg.Location,
				Cell:     dest.transform.CellOf(pkg.Location),
			})
		}
	}
	for _, dest := range c.registry.Compartments() {
		dest.dir.ReplaceReplicas(c.Type(), replicas[dest.Type()])
	}
	for _, pkg := range migrations {
		dest, ok := c.registry.Instance(pkg.Dest)
		if !ok {
			return fmt.Errorf("%w: migration for %s", ErrUnknownCompartment, pkg.Dest)
		}
		if err := dest.adopt(pkg); err != nil {
			return fmt.Errorf("compartment: %s adopt %s: %w", dest.Type(), pkg.ID, err)
		}
	}
	for _, dest := range c.registry.Compartments() {
		dest.refreshNoLocal()
		observability.SetLocalAgents(dest.rank, dest.Name(), dest.dir.Len())
	}

	observability.RecordSyncPackages(c.Name(), exchange.KindCells.String(), sent)
	c.logger.Debug().
		Uint64("round", tag.Step).
		Int("sent", sent).
		Int("received", received).
		Int("transfers", len(transfers)).
		Msg("compartment.Compartment.SynchronizeCells")
	return nil
}

// SynchronizeDiffuser pushes the values of border cells into the halos of
// the owners that need them, then fills halo cells that lie beyond a global
// side with no neighbour: absorbing sides read zero, reflective sides
// mirror, edge sides are left as they are.
func (c *Compartment) SynchronizeDiffuser(ctx context.Context) error {
	if err := c.registry.requirePhase(PhaseReady); err != nil {
		return err
	}
	c.valueRound++
	tag := exchange.Tag{Step: c.valueRound, Kind: exchange.KindValues, Source: c.Type()}

	names := c.fields.Names()
	out := make(map[int]exchange.Envelope)
	sent := 0
	if len(names) > 0 {
		sets := make(CellSets)
		c.GetBorderValuesToPush(nil, sets)
		for _, owner := range sets.Owners() {
			for _, cell := range sets[owner] {
				q, _, ok := c.frameInto(owner.Compartment, cell, c.transform.CellCenter(cell))
				if !ok {
					continue
				}
				values, err := c.fields.Values(cell)
				if err != nil {
					return err
				}
				env := out[owner.Rank]
				env.Values = append(env.Values, exchange.ValuePackage{Dest: owner.Compartment, Cell: q, Names: names, Values: values})
				out[owner.Rank] = env
				sent++
			}
		}
	}
	for rank, env := range out {
		env.Tag = tag
		env.From = c.rank
		out[rank] = env
	}

	in, err := c.registry.transport.Exchange(ctx, tag, out)
	if err != nil {
		return fmt.Errorf("compartment: %s synchronize diffuser: %w", c.Type(), err)
	}
	for _, env := range in {
		for _, pkg := range env.Values {
			dest, ok := c.registry.Instance(pkg.Dest)
			if !ok {
				continue
			}
			if err := dest.applyHalo(pkg); err != nil {
				return err
			}
		}
	}
	c.fillBoundaryHalo()

	observability.RecordSyncPackages(c.Name(), exchange.KindValues.String(), sent)
	return nil
}

func (c *Compartment) applyHalo(pkg exchange.ValuePackage) error {
	for i, name := range pkg.Names {
		if i >= len(pkg.Values) {
			break
		}
		err := c.fields.WriteHalo(name, pkg.Cell, pkg.Values[i])
		switch {
		case err == nil:
		case errors.Is(err, field.ErrUnknownField),
			errors.Is(err, field.ErrNotHalo),
			errors.Is(err, grid.ErrInvalidCoordinate):
		default:
			return err
		}
	}
	return nil
}

func (c *Compartment) fillBoundaryHalo() {
	names := c.fields.Names()
	if len(names) == 0 {
		return
	}
	global := c.GridDimensions()
	c.fields.Buffered().Each(func(p grid.Point) {
		if global.Contains(p) {
			return
		}
		mirror := p
		absorbing, reflective := false, true
		for _, a := range grid.Axes {
			var side grid.Side
			switch {
			case p[a] < 0:
				side = grid.Low
			case p[a] >= c.props.Grid[a]:
				side = grid.High
			default:
				continue
			}
			switch c.props.Borders.BorderKind(a, side) {
			case border.Absorbing:
				absorbing = true
			case border.Reflective:
				mirror[a] = border.ReflectCell(p[a], 0, c.props.Grid[a])
			default:
				reflective = false
			}
		}
		for _, name := range names {
			switch {
			case absorbing:
				_ = c.fields.WriteHalo(name, p, 0)
			case reflective:
				if v, err := c.fields.Read(name, mirror); err == nil {
					_ = c.fields.WriteHalo(name, p, v)
				}
			}
		}
	})
}
