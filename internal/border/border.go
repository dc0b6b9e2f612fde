// Package border describes what lies beyond each axis side of a compartment
// and validates that adjacent compartments agree with each other.
package border

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

var (
	ErrBorderMismatch = errors.New("border: mismatch")
	ErrUnknownKind    = errors.New("border: unknown kind")
)

// Kind is the relationship at one side of a compartment's grid.
type Kind int

const (
	Edge Kind = iota
	Adjacent
	Reflective
	Absorbing
)

func (k Kind) String() string {
	switch k {
	case Edge:
		return "edge"
	case Adjacent:
		return "adjacent"
	case Reflective:
		return "reflective"
	case Absorbing:
		return "absorbing"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Border is one axis side. Compartment is only meaningful for Adjacent.
type Border struct {
	Kind        Kind
	Compartment tissue.Type
}

func EdgeBorder() Border { return Border{Kind: Edge, Compartment: tissue.Invalid} }

func AdjacentTo(t tissue.Type) Border { return Border{Kind: Adjacent, Compartment: t} }

func (b Border) String() string {
	if b.Kind == Adjacent {
		return "adjacent:" + b.Compartment.String()
	}
	return b.Kind.String()
}

// Parse reads "edge", "reflective", "absorbing", or "adjacent:<type>".
// A bare compartment type name is shorthand for adjacent.
func Parse(raw string) (Border, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	switch key {
	case "", "edge", "none":
		return EdgeBorder(), nil
	case "reflective", "reflect":
		return Border{Kind: Reflective, Compartment: tissue.Invalid}, nil
	case "absorbing", "absorb":
		return Border{Kind: Absorbing, Compartment: tissue.Invalid}, nil
	}
	name := strings.TrimPrefix(key, "adjacent:")
	t, err := tissue.ParseType(name)
	if err != nil {
		return Border{}, fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
	return AdjacentTo(t), nil
}

func (b Border) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Border) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Set holds the four borders of a two dimensional compartment, indexed by
// axis then side. The zero value is not valid; start from NewSet.
type Set [grid.Dims][2]Border

// NewSet returns a set with every side at the domain edge.
func NewSet() Set {
	var s Set
	for _, a := range grid.Axes {
		for _, side := range grid.Sides {
			s[a][side] = EdgeBorder()
		}
	}
	return s
}

// With returns a copy of s with the border at axis/side replaced.
func (s Set) With(axis grid.Axis, side grid.Side, b Border) Set {
	s[axis][side] = b
	return s
}

func (s Set) Get(axis grid.Axis, side grid.Side) Border { return s[axis][side] }

func (s Set) BorderKind(axis grid.Axis, side grid.Side) Kind { return s[axis][side].Kind }

// AdjacentCompartment returns the compartment beyond axis/side when the
// border is Adjacent.
func (s Set) AdjacentCompartment(axis grid.Axis, side grid.Side) (tissue.Type, bool) {
	b := s[axis][side]
	if b.Kind != Adjacent {
		return tissue.Invalid, false
	}
	return b.Compartment, true
}

// Validate checks the set in isolation for the compartment self.
func (s Set) Validate(self tissue.Type) error {
	for _, a := range grid.Axes {
		for _, side := range grid.Sides {
			b := s[a][side]
			if b.Kind < Edge || b.Kind > Absorbing {
				return fmt.Errorf("%w: %s %s %s", ErrUnknownKind, self, a, side)
			}
			if b.Kind != Adjacent {
				continue
			}
			if !b.Compartment.Valid() || b.Compartment == self {
				return fmt.Errorf("%w: %s %s %s adjacent to %s", ErrBorderMismatch, self, a, side, b.Compartment)
			}
		}
	}
	return nil
}

// CheckSymmetry verifies that whenever A declares B adjacent on side S of
// axis X, B declares A adjacent on the opposite side of X.
func CheckSymmetry(sets map[tissue.Type]Set) error {
	for _, t := range tissue.All() {
		s, ok := sets[t]
		if !ok {
			continue
		}
		if err := s.Validate(t); err != nil {
			return err
		}
		for _, a := range grid.Axes {
			for _, side := range grid.Sides {
				other, ok := s.AdjacentCompartment(a, side)
				if !ok {
					continue
				}
				os, ok := sets[other]
				if !ok {
					return fmt.Errorf("%w: %s %s %s adjacent to unconfigured %s", ErrBorderMismatch, t, a, side, other)
				}
				back, ok := os.AdjacentCompartment(a, side.Opposite())
				if !ok || back != t {
					return fmt.Errorf("%w: %s %s %s adjacent to %s but %s %s %s is %s",
						ErrBorderMismatch, t, a, side, other, other, a, side.Opposite(), os.Get(a, side.Opposite()))
				}
			}
		}
	}
	return nil
}

// ReflectCell folds v back into [lo, hi) by mirroring across the cell
// faces: hi maps to hi-1 and lo-1 maps to lo.
func ReflectCell(v, lo, hi int) int {
	n := hi - lo
	if n <= 0 {
		return lo
	}
	off := (v - lo) % (2 * n)
	if off < 0 {
		off += 2 * n
	}
	if off >= n {
		off = 2*n - 1 - off
	}
	return lo + off
}

// ReflectSpace folds v back into [lo, hi) by mirroring across lo and hi.
func ReflectSpace(v, lo, hi float64) float64 {
	n := hi - lo
	if n <= 0 {
		return lo
	}
	off := math.Mod(v-lo, 2*n)
	if off < 0 {
		off += 2 * n
	}
	if off > n {
		off = 2*n - off
	}
	out := lo + off
	if out >= hi {
		out = math.Nextafter(hi, lo)
	}
	return out
}
