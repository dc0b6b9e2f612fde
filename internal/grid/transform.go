package grid

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidCoordinate = errors.New("grid: invalid coordinate")

// snap absorbs floating point error when a physical coordinate sits on a
// cell edge.
const snap = 1e-9

// CoordinateError reports an out-of-domain grid index or physical coordinate.
type CoordinateError struct {
	Axis  Axis
	Value float64
	Limit float64
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("grid: invalid coordinate %s=%g (limit %g)", e.Axis, e.Value, e.Limit)
}

func (e *CoordinateError) Unwrap() error { return ErrInvalidCoordinate }

// Transform maps between grid cells and physical space for one compartment:
// space = g*CellSize + Origin on each axis.
type Transform struct {
	Origin   Vector
	CellSize float64
	Extent   Point
}

// GridToSpace returns the physical coordinate of the low corner of cell g.
func (t Transform) GridToSpace(axis Axis, g int) (float64, error) {
	if g < 0 || g >= t.Extent[axis] {
		return 0, &CoordinateError{Axis: axis, Value: float64(g), Limit: float64(t.Extent[axis])}
	}
	return float64(g)*t.CellSize + t.Origin[axis], nil
}

func (t Transform) GridToSpacePoint(p Point) (Vector, error) {
	var out Vector
	for _, a := range Axes {
		v, err := t.GridToSpace(a, p[a])
		if err != nil {
			return Vector{}, err
		}
		out[a] = v
	}
	return out, nil
}

// SpaceToGrid floors s to the enclosing cell index.
func (t Transform) SpaceToGrid(axis Axis, s float64) (int, error) {
	upper := t.Upper(axis)
	if math.IsNaN(s) || s < t.Origin[axis] || s >= upper {
		return 0, &CoordinateError{Axis: axis, Value: s, Limit: upper}
	}
	// s is in range, so a snapped floor can only overshoot by one cell.
	return min(max(t.floor(axis, s), 0), t.Extent[axis]-1), nil
}

func (t Transform) SpaceToGridVector(v Vector) (Point, error) {
	var out Point
	for _, a := range Axes {
		g, err := t.SpaceToGrid(a, v[a])
		if err != nil {
			return Point{}, err
		}
		out[a] = g
	}
	return out, nil
}

// CellOf floors v without a domain check. Replica locations beyond the grid
// use it to compute their halo cell.
func (t Transform) CellOf(v Vector) Point {
	return Point{t.floor(X, v[X]), t.floor(Y, v[Y])}
}

func (t Transform) floor(axis Axis, s float64) int {
	return int(math.Floor((s-t.Origin[axis])/t.CellSize + snap))
}

// CellCenter returns the physical center of cell p.
func (t Transform) CellCenter(p Point) Vector {
	return Vector{
		(float64(p[0])+0.5)*t.CellSize + t.Origin[0],
		(float64(p[1])+0.5)*t.CellSize + t.Origin[1],
	}
}

// Upper returns the exclusive physical upper bound on axis.
func (t Transform) Upper(axis Axis) float64 {
	return t.Origin[axis] + float64(t.Extent[axis])*t.CellSize
}

func (t Transform) Contains(v Vector) bool {
	for _, a := range Axes {
		if v[a] < t.Origin[a] || v[a] >= t.Upper(a) {
			return false
		}
	}
	return true
}

// SpaceRect returns the physical bounds [lo, hi) of cell rectangle r.
func (t Transform) SpaceRect(r Rect) (lo, hi Vector) {
	for _, a := range Axes {
		lo[a] = float64(r.Lo[a])*t.CellSize + t.Origin[a]
		hi[a] = float64(r.Hi[a])*t.CellSize + t.Origin[a]
	}
	return lo, hi
}
