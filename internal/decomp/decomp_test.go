package decomp

import (
	"errors"
	"reflect"
	"testing"

	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
)

func TestTwoRankSplitAtFive(t *testing.T) {
	d, err := New(grid.Point{10, 10}, grid.Point{2, 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := d.Cuts(grid.X); !reflect.DeepEqual(got, []int{0, 5, 10}) {
		t.Fatalf("expected x cuts [0 5 10], got %v", got)
	}
	cases := []struct {
		p    grid.Point
		rank int
	}{
		{grid.Point{4, 3}, 0},
		{grid.Point{5, 3}, 1},
		{grid.Point{0, 0}, 0},
		{grid.Point{9, 9}, 1},
	}
	for _, tc := range cases {
		got, err := d.Rank(tc.p)
		if err != nil {
			t.Fatalf("rank %s: %v", tc.p, err)
		}
		if got != tc.rank {
			t.Fatalf("rank %s: expected %d, got %d", tc.p, tc.rank, got)
		}
	}
	if _, err := d.Rank(grid.Point{10, 3}); !errors.Is(err, ErrOutOfDomain) {
		t.Fatalf("expected ErrOutOfDomain, got %v", err)
	}
}

func TestEveryCellHasExactlyOneOwner(t *testing.T) {
	extent := grid.Point{13, 7}
	d, err := New(extent, grid.Point{3, 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	grid.RectOf(extent).Each(func(p grid.Point) {
		rank, err := d.Rank(p)
		if err != nil {
			t.Fatalf("rank %s: %v", p, err)
		}
		owners := 0
		for r := 0; r < d.Size(); r++ {
			rect, _ := d.Rect(r)
			if rect.Contains(p) {
				owners++
				if r != rank {
					t.Fatalf("cell %s in rect of %d but resolved to %d", p, r, rank)
				}
			}
		}
		if owners != 1 {
			t.Fatalf("cell %s has %d owners", p, owners)
		}
	})
}

func TestRanksInCoversIntersectingRects(t *testing.T) {
	d, err := New(grid.Point{10, 10}, grid.Point{2, 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got := d.RanksIn(grid.Rect{Lo: grid.Point{4, 4}, Hi: grid.Point{6, 6}})
	if !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Fatalf("expected all four ranks, got %v", got)
	}
	got = d.RanksIn(grid.Rect{Lo: grid.Point{5, -3}, Hi: grid.Point{12, 2}})
	if !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("expected rank 2, got %v", got)
	}
	if got := d.RanksIn(grid.Rect{Lo: grid.Point{10, 0}, Hi: grid.Point{12, 2}}); len(got) != 0 {
		t.Fatalf("expected no ranks outside grid, got %v", got)
	}
}

func TestValidateRejectsInconsistentCuts(t *testing.T) {
	cases := [][grid.Dims][]int{
		{{0, 5, 5, 10}, {0, 10}},
		{{0, 4}, {0, 10}},
		{{1, 10}, {0, 10}},
		{{0}, {0, 10}},
	}
	for i, cuts := range cases {
		if _, err := NewFromCuts(grid.Point{10, 10}, cuts); !errors.Is(err, ErrAmbiguousOwnership) {
			t.Fatalf("case %d: expected ErrAmbiguousOwnership, got %v", i, err)
		}
	}
}

func TestProcessDimsPrefersSquareChunks(t *testing.T) {
	got, err := ProcessDims(4, grid.Point{100, 100})
	if err != nil {
		t.Fatalf("process dims: %v", err)
	}
	if got != (grid.Point{2, 2}) {
		t.Fatalf("expected 2x2, got %s", got)
	}
	got, err = ProcessDims(2, grid.Point{10, 10})
	if err != nil {
		t.Fatalf("process dims: %v", err)
	}
	if got != (grid.Point{1, 2}) {
		t.Fatalf("expected 1x2, got %s", got)
	}
	if _, err := ProcessDims(7, grid.Point{3, 2}); !errors.Is(err, ErrInvalidProcs) {
		t.Fatalf("expected ErrInvalidProcs, got %v", err)
	}
}
