package report

import (
	"bytes"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/meghna-verma/ENISI-MSM-control/internal/testutil/testlog"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

func TestSeriesSumsRanks(t *testing.T) {
	testlog.Start(t)
	s := NewSeries()
	s.Add(2, map[tissue.Type]int{tissue.Lumen: 3})
	s.Add(1, map[tissue.Type]int{tissue.Lumen: 1, tissue.Epithelium: 2})
	s.Add(2, map[tissue.Type]int{tissue.Lumen: 4, tissue.Epithelium: 1})

	steps := s.Steps()
	if len(steps) != 2 || steps[0] != 1 || steps[1] != 2 {
		t.Fatalf("expected steps [1 2], got %v", steps)
	}
	if got := s.Count(2, tissue.Lumen); got != 7 {
		t.Fatalf("expected 7 lumen agents at step 2, got %d", got)
	}
	step, counts, ok := s.Latest()
	if !ok || step != 2 || counts[tissue.Epithelium] != 1 {
		t.Fatalf("unexpected latest %d %v %v", step, counts, ok)
	}

	var buf bytes.Buffer
	if err := s.WriteTable(&buf, ","); err != nil {
		t.Fatalf("write table: %v", err)
	}
	want := "step,lumen,epithelium\n1,1,2\n2,7,1\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestRenderPNG(t *testing.T) {
	testlog.Start(t)
	s := NewSeries()
	var buf bytes.Buffer
	if err := s.RenderPNG(&buf, 640, 320); !errors.Is(err, ErrNotEnoughData) {
		t.Fatalf("expected ErrNotEnoughData, got %v", err)
	}
	for step := uint64(1); step <= 5; step++ {
		s.Add(step, map[tissue.Type]int{tissue.Lumen: int(step) * 2, tissue.Epithelium: 10 - int(step)})
	}
	if err := s.RenderPNG(&buf, 640, 320); err != nil {
		t.Fatalf("render: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 640 || b.Dy() != 320 {
		t.Fatalf("expected 640x320, got %v", b)
	}
}

func TestLatestEmpty(t *testing.T) {
	testlog.Start(t)
	if _, _, ok := NewSeries().Latest(); ok {
		t.Fatalf("expected no latest step")
	}
	var buf bytes.Buffer
	if err := NewSeries().WriteTable(&buf, "\t"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "step" {
		t.Fatalf("expected header only, got %q", buf.String())
	}
}
