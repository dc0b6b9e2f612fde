// Package grid holds the discrete and continuous coordinate types shared by
// every compartment, plus the affine transform between them.
package grid

import "fmt"

// Axis is a spatial dimension index.
type Axis int

const (
	X Axis = iota
	Y
)

// Dims is the number of spatial axes.
const Dims = 2

// Axes lists every axis in order.
var Axes = [Dims]Axis{X, Y}

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// Other returns the remaining axis of a two dimensional grid.
func (a Axis) Other() Axis {
	if a == X {
		return Y
	}
	return X
}

// Side selects the low or high end of an axis.
type Side int

const (
	Low Side = iota
	High
)

var Sides = [2]Side{Low, High}

func (s Side) String() string {
	if s == High {
		return "high"
	}
	return "low"
}

func (s Side) Opposite() Side {
	if s == High {
		return Low
	}
	return High
}

// Point is a discrete grid cell.
type Point [Dims]int

func (p Point) Add(o Point) Point {
	return Point{p[0] + o[0], p[1] + o[1]}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p[0], p[1])
}

// Vector is a location in continuous physical space.
type Vector [Dims]float64

func (v Vector) Add(o Vector) Vector {
	return Vector{v[0] + o[0], v[1] + o[1]}
}

func (v Vector) String() string {
	return fmt.Sprintf("(%g,%g)", v[0], v[1])
}

// Rect is a half-open cell rectangle [Lo, Hi) on every axis.
type Rect struct {
	Lo Point
	Hi Point
}

// RectOf returns the rectangle [0, extent).
func RectOf(extent Point) Rect {
	return Rect{Hi: extent}
}

func (r Rect) Size() Point {
	return Point{r.Hi[0] - r.Lo[0], r.Hi[1] - r.Lo[1]}
}

func (r Rect) Empty() bool {
	return r.Hi[0] <= r.Lo[0] || r.Hi[1] <= r.Lo[1]
}

// Cells returns the number of cells in r.
func (r Rect) Cells() int {
	if r.Empty() {
		return 0
	}
	s := r.Size()
	return s[0] * s[1]
}

func (r Rect) Contains(p Point) bool {
	return p[0] >= r.Lo[0] && p[0] < r.Hi[0] && p[1] >= r.Lo[1] && p[1] < r.Hi[1]
}

// ContainsRect reports whether o lies entirely inside r.
func (r Rect) ContainsRect(o Rect) bool {
	if o.Empty() {
		return true
	}
	return o.Lo[0] >= r.Lo[0] && o.Lo[1] >= r.Lo[1] && o.Hi[0] <= r.Hi[0] && o.Hi[1] <= r.Hi[1]
}

func (r Rect) Intersect(o Rect) Rect {
	out := r
	for i := 0; i < Dims; i++ {
		out.Lo[i] = max(r.Lo[i], o.Lo[i])
		out.Hi[i] = min(r.Hi[i], o.Hi[i])
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// Expand grows r by w cells on every side.
func (r Rect) Expand(w int) Rect {
	return Rect{
		Lo: Point{r.Lo[0] - w, r.Lo[1] - w},
		Hi: Point{r.Hi[0] + w, r.Hi[1] + w},
	}
}

// Each visits the cells of r with x as the outer loop.
func (r Rect) Each(fn func(Point)) {
	for x := r.Lo[0]; x < r.Hi[0]; x++ {
		for y := r.Lo[1]; y < r.Hi[1]; y++ {
			fn(Point{x, y})
		}
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%s,%s)", r.Lo, r.Hi)
}
