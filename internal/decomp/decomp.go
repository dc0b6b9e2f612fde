// Package decomp splits a compartment's global grid into per-rank rectangles
// and resolves cell ownership by bisecting sorted per-axis cut lists.
package decomp

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
)

var (
	ErrAmbiguousOwnership = errors.New("decomp: ambiguous ownership")
	ErrOutOfDomain        = errors.New("decomp: cell outside decomposition")
	ErrInvalidProcs       = errors.New("decomp: invalid process dimensions")
	ErrUnknownRank        = errors.New("decomp: unknown rank")
)

// Decomposition owns the per-axis cut lists of a global grid. Cuts on each
// axis start at 0, end at the extent and strictly increase, so every cell
// falls in exactly one half-open chunk.
type Decomposition struct {
	extent grid.Point
	cuts   [grid.Dims][]int
}

// New splits extent into procs[X]*procs[Y] rectangles as evenly as possible.
// Leading chunks absorb the remainder.
func New(extent, procs grid.Point) (*Decomposition, error) {
	var cuts [grid.Dims][]int
	for _, a := range grid.Axes {
		if procs[a] < 1 || procs[a] > extent[a] {
			return nil, fmt.Errorf("%w: %s has %d processes for extent %d", ErrInvalidProcs, a, procs[a], extent[a])
		}
		base, extra := extent[a]/procs[a], extent[a]%procs[a]
		c := make([]int, 0, procs[a]+1)
		c = append(c, 0)
		at := 0
		for i := 0; i < procs[a]; i++ {
			at += base
			if i < extra {
				at++
			}
			c = append(c, at)
		}
		cuts[a] = c
	}
	return NewFromCuts(extent, cuts)
}

// NewFromCuts builds a decomposition from explicit thresholds.
func NewFromCuts(extent grid.Point, cuts [grid.Dims][]int) (*Decomposition, error) {
	d := &Decomposition{extent: extent}
	for _, a := range grid.Axes {
		d.cuts[a] = append([]int(nil), cuts[a]...)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate reports ErrAmbiguousOwnership when the cut lists do not tile the
// grid exactly once.
func (d *Decomposition) Validate() error {
	for _, a := range grid.Axes {
		c := d.cuts[a]
		if len(c) < 2 {
			return fmt.Errorf("%w: %s has %d thresholds", ErrAmbiguousOwnership, a, len(c))
		}
		if c[0] != 0 || c[len(c)-1] != d.extent[a] {
			return fmt.Errorf("%w: %s cuts span [%d,%d), extent %d", ErrAmbiguousOwnership, a, c[0], c[len(c)-1], d.extent[a])
		}
		for i := 1; i < len(c); i++ {
			if c[i] <= c[i-1] {
				return fmt.Errorf("%w: %s cut %d=%d not above %d", ErrAmbiguousOwnership, a, i, c[i], c[i-1])
			}
		}
	}
	return nil
}

func (d *Decomposition) Extent() grid.Point { return d.extent }

// Procs returns the number of chunks on each axis.
func (d *Decomposition) Procs() grid.Point {
	return grid.Point{len(d.cuts[grid.X]) - 1, len(d.cuts[grid.Y]) - 1}
}

// Size returns the number of ranks.
func (d *Decomposition) Size() int {
	p := d.Procs()
	return p[0] * p[1]
}

// Cuts returns a copy of the thresholds on axis.
func (d *Decomposition) Cuts(axis grid.Axis) []int {
	return append([]int(nil), d.cuts[axis]...)
}

// Rank returns the owner of p: rank = ix*procs[Y] + iy.
func (d *Decomposition) Rank(p grid.Point) (int, error) {
	var idx grid.Point
	for _, a := range grid.Axes {
		i, ok := bisect(d.cuts[a], p[a])
		if !ok {
			return -1, fmt.Errorf("%w: %s", ErrOutOfDomain, p)
		}
		idx[a] = i
	}
	return d.rankOf(idx), nil
}

// Rect returns the local rectangle owned by rank.
func (d *Decomposition) Rect(rank int) (grid.Rect, error) {
	if rank < 0 || rank >= d.Size() {
		return grid.Rect{}, fmt.Errorf("%w: %d of %d", ErrUnknownRank, rank, d.Size())
	}
	py := d.Procs()[grid.Y]
	ix, iy := rank/py, rank%py
	return grid.Rect{
		Lo: grid.Point{d.cuts[grid.X][ix], d.cuts[grid.Y][iy]},
		Hi: grid.Point{d.cuts[grid.X][ix+1], d.cuts[grid.Y][iy+1]},
	}, nil
}

// RanksIn returns the sorted ranks whose rectangles intersect r. Only the
// part of r inside the grid is considered.
func (d *Decomposition) RanksIn(r grid.Rect) []int {
	r = r.Intersect(grid.RectOf(d.extent))
	if r.Empty() {
		return nil
	}
	var lo, hi grid.Point
	for _, a := range grid.Axes {
		lo[a], _ = bisect(d.cuts[a], r.Lo[a])
		hi[a], _ = bisect(d.cuts[a], r.Hi[a]-1)
	}
	out := make([]int, 0, (hi[0]-lo[0]+1)*(hi[1]-lo[1]+1))
	for ix := lo[0]; ix <= hi[0]; ix++ {
		for iy := lo[1]; iy <= hi[1]; iy++ {
			out = append(out, d.rankOf(grid.Point{ix, iy}))
		}
	}
	return out
}

func (d *Decomposition) rankOf(idx grid.Point) int {
	return idx[grid.X]*d.Procs()[grid.Y] + idx[grid.Y]
}

// bisect finds i with cuts[i] <= v < cuts[i+1].
func bisect(cuts []int, v int) (int, bool) {
	if len(cuts) < 2 || v < cuts[0] || v >= cuts[len(cuts)-1] {
		return -1, false
	}
	lo, hi := 0, len(cuts)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if v < cuts[mid] {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo, true
}

// ProcessDims factors ranks into per-axis process counts whose chunks are
// closest to square. Ties keep the factorisation with fewer X chunks.
func ProcessDims(ranks int, extent grid.Point) (grid.Point, error) {
	if ranks < 1 {
		return grid.Point{}, fmt.Errorf("%w: %d ranks", ErrInvalidProcs, ranks)
	}
	type candidate struct {
		procs grid.Point
		score float64
	}
	var found []candidate
	for px := 1; px <= ranks; px++ {
		if ranks%px != 0 {
			continue
		}
		py := ranks / px
		if px > extent[grid.X] || py > extent[grid.Y] {
			continue
		}
		w := float64(extent[grid.X]) / float64(px)
		h := float64(extent[grid.Y]) / float64(py)
		found = append(found, candidate{procs: grid.Point{px, py}, score: math.Abs(w - h)})
	}
	if len(found) == 0 {
		return grid.Point{}, fmt.Errorf("%w: %d ranks cannot tile %s", ErrInvalidProcs, ranks, extent)
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].score < found[j].score })
	return found[0].procs, nil
}
