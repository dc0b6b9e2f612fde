package compartment

import (
	"fmt"
	"sort"

	"github.com/meghna-verma/ENISI-MSM-control/internal/border"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

// GetRank returns the rank owning cell p. Cells beyond the grid are
// reflected or carried into the adjacent compartment first, so the rank may
// belong to another compartment; use Resolve to learn which.
func (c *Compartment) GetRank(p grid.Point) (int, error) {
	o, err := c.Resolve(p)
	if err != nil {
		return -1, err
	}
	return o.Rank, nil
}

func (c *Compartment) GetRankOffset(p, offset grid.Point) (int, error) {
	return c.GetRank(p.Add(offset))
}

// Resolve returns the owner of cell p. It fails with grid.ErrInvalidCoordinate
// past an edge border and ErrNoOwner, wrapping border.ErrAbsorbed, past an
// absorbing one.
func (c *Compartment) Resolve(p grid.Point) (tissue.Owner, error) {
	owner, q, err := c.locateCell(p)
	if err != nil {
		return tissue.Owner{}, err
	}
	rank, err := owner.decomp.Rank(q)
	if err != nil {
		return tissue.Owner{}, fmt.Errorf("%w: %s", ErrNoOwner, err)
	}
	return tissue.Owner{Rank: rank, Compartment: owner.Type()}, nil
}

// GetRanks returns the owners, other than this partition, of the halo band
// across side of cell p on axis. The band is Halo cells deep and spans Halo
// cells either way on the other axis so corner neighbours are included.
func (c *Compartment) GetRanks(p grid.Point, axis grid.Axis, side grid.Side) []tissue.Owner {
	w := c.props.Halo
	o := axis.Other()
	var band grid.Rect
	if side == grid.High {
		band.Lo[axis], band.Hi[axis] = p[axis]+1, p[axis]+w+1
	} else {
		band.Lo[axis], band.Hi[axis] = p[axis]-w, p[axis]
	}
	band.Lo[o], band.Hi[o] = p[o]-w, p[o]+w+1

	seen := make(map[tissue.Owner]struct{})
	for _, r := range c.decomp.RanksIn(band) {
		seen[tissue.Owner{Rank: r, Compartment: c.Type()}] = struct{}{}
	}
	global := c.GridDimensions()
	if !global.ContainsRect(band) {
		band.Each(func(q grid.Point) {
			if global.Contains(q) {
				return
			}
			if owner, err := c.Resolve(q); err == nil {
				seen[owner] = struct{}{}
			}
		})
	}
	delete(seen, c.Owner())

	out := make([]tissue.Owner, 0, len(seen))
	for owner := range seen {
		out = append(out, owner)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// locateCell walks p across borders until it lands inside some compartment's
// grid. Each hop settles one axis, so the walk is bounded.
func (c *Compartment) locateCell(p grid.Point) (*Compartment, grid.Point, error) {
	cur := c
	for hop := 0; hop <= 2*len(tissue.All()); hop++ {
		axis, side, out := cur.outsideCell(p)
		if !out {
			return cur, p, nil
		}
		b := cur.props.Borders.Get(axis, side)
		switch b.Kind {
		case border.Reflective:
			p[axis] = border.ReflectCell(p[axis], 0, cur.props.Grid[axis])
		case border.Adjacent:
			next, ok := cur.registry.Instance(b.Compartment)
			if !ok {
				return nil, p, fmt.Errorf("%w: %s beyond %s %s %s", ErrUnknownCompartment, b.Compartment, cur.Type(), axis, side)
			}
			p = crossCell(cur, next, axis, side, p)
			cur = next
		case border.Absorbing:
			return nil, p, fmt.Errorf("%w: %w at %s %s %s", ErrNoOwner, border.ErrAbsorbed, cur.Type(), axis, side)
		default:
			return nil, p, &grid.CoordinateError{Axis: axis, Value: float64(p[axis]), Limit: float64(cur.props.Grid[axis])}
		}
	}
	return nil, p, fmt.Errorf("%w: cell %s did not settle", ErrNoOwner, p)
}

// locateSpace is locateCell for a physical location.
func (c *Compartment) locateSpace(v grid.Vector) (*Compartment, grid.Vector, error) {
	cur := c
	for hop := 0; hop <= 2*len(tissue.All()); hop++ {
		axis, side, out := cur.outsideSpace(v)
		if !out {
			return cur, v, nil
		}
		b := cur.props.Borders.Get(axis, side)
		switch b.Kind {
		case border.Reflective:
			v[axis] = border.ReflectSpace(v[axis], cur.transform.Origin[axis], cur.transform.Upper(axis))
		case border.Adjacent:
			next, ok := cur.registry.Instance(b.Compartment)
			if !ok {
				return nil, v, fmt.Errorf("%w: %s beyond %s %s %s", ErrUnknownCompartment, b.Compartment, cur.Type(), axis, side)
			}
			v = crossSpace(cur, next, axis, side, v)
			cur = next
		case border.Absorbing:
			return nil, v, fmt.Errorf("%w: %w at %s %s %s", ErrNoOwner, border.ErrAbsorbed, cur.Type(), axis, side)
		default:
			return nil, v, &grid.CoordinateError{Axis: axis, Value: v[axis], Limit: cur.transform.Upper(axis)}
		}
	}
	return nil, v, fmt.Errorf("%w: location %s did not settle", ErrNoOwner, v)
}

func (c *Compartment) outsideCell(p grid.Point) (grid.Axis, grid.Side, bool) {
	for _, a := range grid.Axes {
		if p[a] < 0 {
			return a, grid.Low, true
		}
		if p[a] >= c.props.Grid[a] {
			return a, grid.High, true
		}
	}
	return 0, 0, false
}

func (c *Compartment) outsideSpace(v grid.Vector) (grid.Axis, grid.Side, bool) {
	for _, a := range grid.Axes {
		if v[a] < c.transform.Origin[a] {
			return a, grid.Low, true
		}
		if v[a] >= c.transform.Upper(a) {
			return a, grid.High, true
		}
	}
	return 0, 0, false
}

// crossCell maps p from the frame of from into the frame of to, where to lies
// beyond side of from on axis. Overshoot on the crossing axis carries over;
// the other axis scales by the extent ratio. A cell inside from near that
// side maps just beyond the opposite side of to.
func crossCell(from, to *Compartment, axis grid.Axis, side grid.Side, p grid.Point) grid.Point {
	var q grid.Point
	if side == grid.High {
		q[axis] = p[axis] - from.props.Grid[axis]
	} else {
		q[axis] = to.props.Grid[axis] + p[axis]
	}
	o := axis.Other()
	q[o] = floorDiv(p[o]*to.props.Grid[o], from.props.Grid[o])
	return q
}

func crossSpace(from, to *Compartment, axis grid.Axis, side grid.Side, v grid.Vector) grid.Vector {
	var q grid.Vector
	if side == grid.High {
		q[axis] = to.transform.Origin[axis] + (v[axis] - from.transform.Upper(axis))
	} else {
		q[axis] = to.transform.Upper(axis) + (v[axis] - from.transform.Origin[axis])
	}
	o := axis.Other()
	q[o] = to.transform.Origin[o] + (v[o]-from.transform.Origin[o])*to.props.Space[o]/from.props.Space[o]
	return q
}

// frameInto expresses a local cell and location in the frame of dest. It
// picks the adjacent side whose halo band contains cell.
func (c *Compartment) frameInto(dest tissue.Type, cell grid.Point, loc grid.Vector) (grid.Point, grid.Vector, bool) {
	if dest == c.Type() {
		return cell, loc, true
	}
	next, ok := c.registry.Instance(dest)
	if !ok {
		return cell, loc, false
	}
	for _, a := range grid.Axes {
		for _, side := range grid.Sides {
			if t, ok := c.props.Borders.AdjacentCompartment(a, side); !ok || t != dest {
				continue
			}
			if !c.nearGlobalSide(cell, a, side) {
				continue
			}
			return crossCell(c, next, a, side, cell), crossSpace(c, next, a, side, loc), true
		}
	}
	return cell, loc, false
}

func (c *Compartment) nearGlobalSide(cell grid.Point, a grid.Axis, side grid.Side) bool {
	if side == grid.Low {
		return cell[a] < c.props.Halo
	}
	return cell[a] >= c.props.Grid[a]-c.props.Halo
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
