// Package report accumulates per-step agent counts and renders them as a
// line chart.
package report

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

var ErrNotEnoughData = errors.New("report: need at least two steps to chart")

var palette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorRed,
	chart.ColorGreen,
	{R: 255, G: 165, B: 0, A: 255},
}

// Series sums counts reported by any number of ranks for the same step.
type Series struct {
	mu     sync.Mutex
	steps  []uint64
	counts map[uint64]map[tissue.Type]int
}

func NewSeries() *Series {
	return &Series{counts: make(map[uint64]map[tissue.Type]int)}
}

// Add merges one rank's counts for step into the series.
func (s *Series) Add(step uint64, counts map[tissue.Type]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.counts[step]
	if !ok {
		row = make(map[tissue.Type]int)
		s.counts[step] = row
		i := sort.Search(len(s.steps), func(i int) bool { return s.steps[i] >= step })
		s.steps = append(s.steps, 0)
		copy(s.steps[i+1:], s.steps[i:])
		s.steps[i] = step
	}
	for t, n := range counts {
		row[t] += n
	}
}

func (s *Series) Steps() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.steps...)
}

// Compartments lists every type that has appeared, in type order.
func (s *Series) Compartments() []tissue.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compartments()
}

func (s *Series) compartments() []tissue.Type {
	seen := make(map[tissue.Type]struct{})
	for _, row := range s.counts {
		for t := range row {
			seen[t] = struct{}{}
		}
	}
	out := make([]tissue.Type, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns the summed count for t at step.
func (s *Series) Count(step uint64, t tissue.Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[step][t]
}

// Latest returns the last recorded step and its counts.
func (s *Series) Latest() (uint64, map[tissue.Type]int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steps) == 0 {
		return 0, nil, false
	}
	step := s.steps[len(s.steps)-1]
	out := make(map[tissue.Type]int, len(s.counts[step]))
	for t, n := range s.counts[step] {
		out[t] = n
	}
	return step, out, true
}

// WriteTable emits a header row then one row per step.
func (s *Series) WriteTable(w io.Writer, sep string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := s.compartments()
	if _, err := io.WriteString(w, "step"); err != nil {
		return err
	}
	for _, t := range types {
		if _, err := io.WriteString(w, sep+t.String()); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	for _, step := range s.steps {
		line := strconv.FormatUint(step, 10)
		for _, t := range types {
			line += sep + strconv.Itoa(s.counts[step][t])
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// RenderPNG draws one line per compartment.
func (s *Series) RenderPNG(w io.Writer, width, height int) error {
	s.mu.Lock()
	types := s.compartments()
	xs := make([]float64, len(s.steps))
	for i, step := range s.steps {
		xs[i] = float64(step)
	}
	ys := make([][]float64, len(types))
	yMax := 1.0
	for j, t := range types {
		ys[j] = make([]float64, len(s.steps))
		for i, step := range s.steps {
			v := float64(s.counts[step][t])
			ys[j][i] = v
			yMax = max(yMax, v)
		}
	}
	s.mu.Unlock()

	if len(xs) < 2 {
		return ErrNotEnoughData
	}
	series := make([]chart.Series, 0, len(types))
	for j, t := range types {
		series = append(series, chart.ContinuousSeries{
			Name:    t.String(),
			XValues: xs,
			YValues: ys[j],
			Style: chart.Style{
				StrokeColor: palette[j%len(palette)],
				StrokeWidth: 3.0,
			},
		})
	}
	graph := chart.Chart{
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			Name:  "step",
			Range: &chart.ContinuousRange{Min: xs[0], Max: xs[len(xs)-1]},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "agents",
			Range: &chart.ContinuousRange{Min: 0, Max: yMax * 1.1},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
