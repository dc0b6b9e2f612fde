package grid

import (
	"errors"
	"testing"
)

func TestTransformRoundTripEveryCell(t *testing.T) {
	tr := Transform{Origin: Vector{0.1, -3}, CellSize: 0.1, Extent: Point{37, 19}}
	for _, a := range Axes {
		for g := 0; g < tr.Extent[a]; g++ {
			s, err := tr.GridToSpace(a, g)
			if err != nil {
				t.Fatalf("grid to space %s=%d: %v", a, g, err)
			}
			back, err := tr.SpaceToGrid(a, s)
			if err != nil {
				t.Fatalf("space to grid %s=%g: %v", a, s, err)
			}
			if back != g {
				t.Fatalf("round trip %s: expected %d, got %d", a, g, back)
			}
		}
	}
}

func TestSpaceToGridFloorsToEnclosingCell(t *testing.T) {
	tr := Transform{CellSize: 2, Extent: Point{5, 5}}
	got, err := tr.SpaceToGridVector(Vector{3.99, 0.5})
	if err != nil {
		t.Fatalf("space to grid: %v", err)
	}
	if got != (Point{1, 0}) {
		t.Fatalf("expected (1,0), got %s", got)
	}
}

func TestTransformRejectsOutOfRange(t *testing.T) {
	tr := Transform{CellSize: 1, Extent: Point{10, 10}}
	if _, err := tr.GridToSpace(X, 10); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate for g=10, got %v", err)
	}
	if _, err := tr.GridToSpace(Y, -1); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate for g=-1, got %v", err)
	}
	if _, err := tr.SpaceToGrid(X, 10); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate for s=10, got %v", err)
	}
	var coordErr *CoordinateError
	_, err := tr.SpaceToGridVector(Vector{1, -0.5})
	if !errors.As(err, &coordErr) || coordErr.Axis != Y {
		t.Fatalf("expected y coordinate error, got %v", err)
	}
}

func TestRectIntersectAndEach(t *testing.T) {
	a := Rect{Lo: Point{0, 0}, Hi: Point{5, 4}}
	b := Rect{Lo: Point{3, 2}, Hi: Point{8, 8}}
	in := a.Intersect(b)
	if in != (Rect{Lo: Point{3, 2}, Hi: Point{5, 4}}) {
		t.Fatalf("unexpected intersection %s", in)
	}
	visited := 0
	in.Each(func(p Point) {
		if !in.Contains(p) {
			t.Fatalf("visited %s outside %s", p, in)
		}
		visited++
	})
	if visited != in.Cells() || visited != 4 {
		t.Fatalf("expected 4 visited cells, got %d", visited)
	}
	if !a.Intersect(Rect{Lo: Point{6, 6}, Hi: Point{7, 7}}).Empty() {
		t.Fatalf("expected empty intersection")
	}
}
