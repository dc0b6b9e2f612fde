package agent

import (
	"errors"
	"testing"

	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

func TestDirectoryIndexesByIDAndCell(t *testing.T) {
	d := NewDirectory()
	m := NewMinter(0)
	a := Agent{ID: m.Next(HPylori), Location: grid.Vector{1.5, 2.5}, Cell: grid.Point{1, 2}}
	b := Agent{ID: m.Next(TCell), Location: grid.Vector{1.1, 2.9}, Cell: grid.Point{1, 2}}
	for _, x := range []Agent{a, b} {
		if err := d.Add(x); err != nil {
			t.Fatalf("add %s: %v", x.ID, err)
		}
	}
	if err := d.Add(a); !errors.Is(err, ErrDuplicateAgent) {
		t.Fatalf("expected ErrDuplicateAgent, got %v", err)
	}
	if got := d.LocalAt(grid.Point{1, 2}, AnyKind); len(got) != 2 {
		t.Fatalf("expected 2 agents in cell, got %d", len(got))
	}
	if got := d.LocalAt(grid.Point{1, 2}, TCell); len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("expected only the t cell, got %+v", got)
	}

	if err := d.Relocate(a.ID, grid.Vector{3.2, 2.5}, grid.Point{3, 2}); err != nil {
		t.Fatalf("relocate: %v", err)
	}
	if got := d.LocalAt(grid.Point{1, 2}, HPylori); len(got) != 0 {
		t.Fatalf("old cell still lists relocated agent: %+v", got)
	}
	moved, ok := d.Get(a.ID)
	if !ok || moved.Cell != (grid.Point{3, 2}) {
		t.Fatalf("expected relocated agent at (3,2), got %+v", moved)
	}

	if _, ok := d.Remove(b.ID); !ok {
		t.Fatalf("expected remove to succeed")
	}
	if d.Len() != 1 || d.IsLocal(b.ID) {
		t.Fatalf("unexpected directory state after remove: len=%d", d.Len())
	}
	if err := d.Relocate(b.ID, grid.Vector{}, grid.Point{}); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestReplaceReplicasOverwritesPerSource(t *testing.T) {
	d := NewDirectory()
	m := NewMinter(1)
	lum := []Agent{{ID: m.Next(Bacteria), Cell: grid.Point{-1, 0}}, {ID: m.Next(Bacteria), Cell: grid.Point{-1, 1}}}
	epi := []Agent{{ID: m.Next(Epithelial), Cell: grid.Point{5, 0}}}
	d.ReplaceReplicas(tissue.Lumen, lum)
	d.ReplaceReplicas(tissue.Epithelium, epi)
	if got := d.Replicas(); len(got) != 3 {
		t.Fatalf("expected 3 replicas, got %d", len(got))
	}
	d.ReplaceReplicas(tissue.Lumen, lum[:1])
	if got := d.Replicas(); len(got) != 2 {
		t.Fatalf("expected 2 replicas after replace, got %d", len(got))
	}
	window := d.Window(grid.Rect{Lo: grid.Point{-1, 0}, Hi: grid.Point{0, 2}}, AnyKind)
	if len(window) != 1 || window[0].ID != lum[0].ID {
		t.Fatalf("expected one lumen replica in window, got %+v", window)
	}
	d.ReplaceReplicas(tissue.Lumen, nil)
	if got := d.Window(grid.Rect{Lo: grid.Point{-5, -5}, Hi: grid.Point{10, 10}}, Bacteria); len(got) != 0 {
		t.Fatalf("expected lumen replicas cleared, got %+v", got)
	}
}

func TestKindMaskAndParse(t *testing.T) {
	k, err := ParseKind("hpylori|tcell")
	if err != nil {
		t.Fatalf("parse kind: %v", err)
	}
	if !HPylori.Matches(k) || !TCell.Matches(k) || Macrophage.Matches(k) {
		t.Fatalf("unexpected mask behaviour for %s", k)
	}
	if !Dendritic.Matches(AnyKind) {
		t.Fatalf("AnyKind must match every kind")
	}
	if k.String() != "hpylori|tcell" {
		t.Fatalf("unexpected kind string %q", k.String())
	}
	if _, err := ParseKind("virus"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
