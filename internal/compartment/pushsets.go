package compartment

import (
	"sort"

	"github.com/meghna-verma/ENISI-MSM-control/internal/agent"
	"github.com/meghna-verma/ENISI-MSM-control/internal/border"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

// PushSets lists, per destination owner, the local agents whose replicas it
// needs. Entries are sorted and unique.
type PushSets map[tissue.Owner][]agent.ID

// CellSets lists, per destination owner, the local cells whose values it
// needs. Entries are sorted and unique.
type CellSets map[tissue.Owner][]grid.Point

func (s PushSets) Owners() []tissue.Owner { return sortedOwners(s) }
func (s CellSets) Owners() []tissue.Owner { return sortedOwners(s) }

// ByRank collapses the sets to one list per destination rank.
func (s PushSets) ByRank() map[int][]agent.ID {
	out := make(map[int][]agent.ID)
	for owner, ids := range s {
		out[owner.Rank] = append(out[owner.Rank], ids...)
	}
	for r, ids := range out {
		out[r] = uniqueIDs(ids)
	}
	return out
}

func (s CellSets) ByRank() map[int][]grid.Point {
	out := make(map[int][]grid.Point)
	for owner, cells := range s {
		out[owner.Rank] = append(out[owner.Rank], cells...)
	}
	for r, cells := range out {
		out[r] = uniqueCells(cells)
	}
	return out
}

// GetBorderCellsToPush adds to out every candidate that lies within the halo
// width of a shared side. Nil candidates means every local agent not already
// queued for transfer. Calling it twice yields the same sets.
func (c *Compartment) GetBorderCellsToPush(candidates []agent.ID, out PushSets) {
	if candidates == nil {
		for _, a := range c.dir.Local(agent.AnyKind) {
			if _, queued := c.pending[a.ID]; !queued {
				candidates = append(candidates, a.ID)
			}
		}
	}
	touched := make(map[tissue.Owner]struct{})
	for _, id := range candidates {
		a, ok := c.dir.Get(id)
		if !ok {
			continue
		}
		for _, owner := range c.pushTargets(a.Cell) {
			out[owner] = append(out[owner], id)
			touched[owner] = struct{}{}
		}
	}
	for owner := range touched {
		out[owner] = uniqueIDs(out[owner])
	}
}

// GetBorderValuesToPush is GetBorderCellsToPush for field values. Nil
// candidates means every local cell within the halo width of a local side.
func (c *Compartment) GetBorderValuesToPush(candidates []grid.Point, out CellSets) {
	if candidates == nil {
		candidates = c.borderCells()
	}
	touched := make(map[tissue.Owner]struct{})
	for _, cell := range candidates {
		if !c.local.Contains(cell) {
			continue
		}
		for _, owner := range c.pushTargets(cell) {
			out[owner] = append(out[owner], cell)
			touched[owner] = struct{}{}
		}
	}
	for owner := range touched {
		out[owner] = uniqueCells(out[owner])
	}
}

// pushTargets returns the owners whose halo covers cell. A local side that
// is also a global side only counts when it is adjacent to another
// compartment; reflective or absorbing sides never push.
func (c *Compartment) pushTargets(cell grid.Point) []tissue.Owner {
	w := c.props.Halo
	var out []tissue.Owner
	for _, a := range grid.Axes {
		for _, side := range grid.Sides {
			var near, global bool
			if side == grid.Low {
				near = cell[a] < c.local.Lo[a]+w
				global = c.local.Lo[a] == 0
			} else {
				near = cell[a] >= c.local.Hi[a]-w
				global = c.local.Hi[a] == c.props.Grid[a]
			}
			if !near {
				continue
			}
			if global && c.props.Borders.BorderKind(a, side) != border.Adjacent {
				continue
			}
			out = append(out, c.GetRanks(cell, a, side)...)
		}
	}
	if len(out) < 2 {
		return out
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

func (c *Compartment) borderCells() []grid.Point {
	inner := c.local
	for _, a := range grid.Axes {
		inner.Lo[a] += c.props.Halo
		inner.Hi[a] -= c.props.Halo
	}
	var out []grid.Point
	c.local.Each(func(p grid.Point) {
		if !inner.Contains(p) {
			out = append(out, p)
		}
	})
	return out
}

func (c *Compartment) pendingIDs() []agent.ID {
	ids := make([]agent.ID, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

func sortedOwners[V any](m map[tissue.Owner]V) []tissue.Owner {
	out := make([]tissue.Owner, 0, len(m))
	for owner := range m {
		out = append(out, owner)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func uniqueIDs(ids []agent.ID) []agent.ID {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	n := 0
	for i, id := range ids {
		if i == 0 || id != ids[n-1] {
			ids[n] = id
			n++
		}
	}
	return ids[:n]
}

func uniqueCells(cells []grid.Point) []grid.Point {
	sort.Slice(cells, func(i, j int) bool {
		if cells[i][0] != cells[j][0] {
			return cells[i][0] < cells[j][0]
		}
		return cells[i][1] < cells[j][1]
	})
	n := 0
	for i, p := range cells {
		if i == 0 || p != cells[n-1] {
			cells[n] = p
			n++
		}
	}
	return cells[:n]
}
