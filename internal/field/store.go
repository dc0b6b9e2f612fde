// Package field stores named cytokine concentrations over a compartment's
// local partition plus a halo of neighbour-owned replica cells.
package field

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
)

var (
	ErrDuplicateField = errors.New("field: duplicate cytokine name")
	ErrUnknownField   = errors.New("field: unknown cytokine")
	ErrEmptyName      = errors.New("field: empty cytokine name")
	ErrFieldsSealed   = errors.New("field: cytokine set sealed")
	ErrHaloReadOnly   = errors.New("field: halo cell is read-only")
	ErrNotHalo        = errors.New("field: cell is not a halo cell")
)

// Layer is the handle a diffuser reads and writes. Buffers cover Buffered
// in x-major order; only cells inside Local may be written by a diffuser.
type Layer struct {
	Local    grid.Rect
	Buffered grid.Rect
	Names    []string
	buffers  [][]float64
}

// Buffer returns the backing slice of cytokine i.
func (l *Layer) Buffer(i int) []float64 { return l.buffers[i] }

// Offset returns the index of p within every buffer.
func (l *Layer) Offset(p grid.Point) (int, bool) {
	if !l.Buffered.Contains(p) {
		return 0, false
	}
	size := l.Buffered.Size()
	return (p[0]-l.Buffered.Lo[0])*size[1] + (p[1] - l.Buffered.Lo[1]), true
}

// Diffuser advances the concentrations held by a layer. The numerical scheme
// belongs to the implementation.
type Diffuser interface {
	Diffuse(ctx context.Context, layer *Layer) error
}

// DiffuserFunc adapts a function to Diffuser.
type DiffuserFunc func(ctx context.Context, layer *Layer) error

func (f DiffuserFunc) Diffuse(ctx context.Context, layer *Layer) error { return f(ctx, layer) }

// Store owns the cytokine buffers of one compartment partition. Names may be
// added until InitializeDiffuserData seals the set.
type Store struct {
	layer  Layer
	halo   int
	index  map[string]int
	sealed bool
}

func NewStore(local grid.Rect, halo int) *Store {
	if halo < 0 {
		halo = 0
	}
	return &Store{
		layer: Layer{Local: local, Buffered: local.Expand(halo)},
		halo:  halo,
		index: make(map[string]int),
	}
}

func (s *Store) Local() grid.Rect    { return s.layer.Local }
func (s *Store) Buffered() grid.Rect { return s.layer.Buffered }
func (s *Store) Halo() int           { return s.halo }
func (s *Store) Len() int            { return len(s.layer.Names) }
func (s *Store) Sealed() bool        { return s.sealed }

// Names returns the cytokine names in index order.
func (s *Store) Names() []string {
	return append([]string(nil), s.layer.Names...)
}

func (s *Store) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// AddCytokine registers name and returns its index. A repeated name fails
// without touching the store.
func (s *Store) AddCytokine(name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1, ErrEmptyName
	}
	if s.sealed {
		return -1, fmt.Errorf("%w: cannot add %q", ErrFieldsSealed, name)
	}
	if _, ok := s.index[name]; ok {
		return -1, fmt.Errorf("%w: %q", ErrDuplicateField, name)
	}
	i := len(s.layer.Names)
	s.index[name] = i
	s.layer.Names = append(s.layer.Names, name)
	s.layer.buffers = append(s.layer.buffers, make([]float64, s.layer.Buffered.Cells()))
	return i, nil
}

// Value returns a mutable reference to a local cell's concentration.
func (s *Store) Value(name string, cell grid.Point) (*float64, error) {
	i, off, err := s.locate(name, cell)
	if err != nil {
		return nil, err
	}
	if !s.layer.Local.Contains(cell) {
		return nil, fmt.Errorf("%w: %s %s", ErrHaloReadOnly, name, cell)
	}
	return &s.layer.buffers[i][off], nil
}

// Read returns the concentration at a local or halo cell.
func (s *Store) Read(name string, cell grid.Point) (float64, error) {
	i, off, err := s.locate(name, cell)
	if err != nil {
		return 0, err
	}
	return s.layer.buffers[i][off], nil
}

// Values returns every concentration at cell in index order.
func (s *Store) Values(cell grid.Point) ([]float64, error) {
	off, ok := s.layer.Offset(cell)
	if !ok {
		return nil, s.outside(cell)
	}
	out := make([]float64, len(s.layer.buffers))
	for i, buf := range s.layer.buffers {
		out[i] = buf[off]
	}
	return out, nil
}

// WriteHalo overwrites a replica value. Only the synchronization step calls it.
func (s *Store) WriteHalo(name string, cell grid.Point, v float64) error {
	i, off, err := s.locate(name, cell)
	if err != nil {
		return err
	}
	if s.layer.Local.Contains(cell) {
		return fmt.Errorf("%w: %s", ErrNotHalo, cell)
	}
	s.layer.buffers[i][off] = v
	return nil
}

// FillHalo sets every halo cell in r, for each cytokine, to fn(name, cell).
func (s *Store) FillHalo(r grid.Rect, fn func(i int, cell grid.Point) float64) {
	r = r.Intersect(s.layer.Buffered)
	r.Each(func(p grid.Point) {
		if s.layer.Local.Contains(p) {
			return
		}
		off, _ := s.layer.Offset(p)
		for i := range s.layer.buffers {
			s.layer.buffers[i][off] = fn(i, p)
		}
	})
}

// InitializeDiffuserData seals the cytokine set and returns the diffuser
// handle. Calling it again returns the same handle.
func (s *Store) InitializeDiffuserData() *Layer {
	s.sealed = true
	return &s.layer
}

// DiffuserData returns the handle, or nil before initialization.
func (s *Store) DiffuserData() *Layer {
	if !s.sealed {
		return nil
	}
	return &s.layer
}

func (s *Store) locate(name string, cell grid.Point) (int, int, error) {
	i, ok := s.index[name]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	off, ok := s.layer.Offset(cell)
	if !ok {
		return 0, 0, s.outside(cell)
	}
	return i, off, nil
}

func (s *Store) outside(cell grid.Point) error {
	for _, a := range grid.Axes {
		if cell[a] < s.layer.Buffered.Lo[a] || cell[a] >= s.layer.Buffered.Hi[a] {
			return &grid.CoordinateError{Axis: a, Value: float64(cell[a]), Limit: float64(s.layer.Buffered.Hi[a])}
		}
	}
	return grid.ErrInvalidCoordinate
}
