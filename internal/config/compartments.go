package config

import (
	"fmt"

	"github.com/meghna-verma/ENISI-MSM-control/internal/agent"
	"github.com/meghna-verma/ENISI-MSM-control/internal/behavior"
	"github.com/meghna-verma/ENISI-MSM-control/internal/border"
	"github.com/meghna-verma/ENISI-MSM-control/internal/compartment"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

// CompartmentConfig describes one compartment. Space or Grid may be left
// zero; Procs left zero is chosen from the rank count.
type CompartmentConfig struct {
	Type      tissue.Type
	Origin    grid.Vector
	Space     grid.Vector
	CellSize  float64
	Grid      grid.Point
	Procs     grid.Point
	Halo      int
	Absorb    border.AbsorbPolicy
	Borders   border.Set
	Cytokines []string
	Groups    []behavior.Spec
}

func defaultCompartments() []CompartmentConfig {
	return []CompartmentConfig{
		{
			Type:     tissue.Lumen,
			CellSize: 1,
			Grid:     grid.Point{20, 20},
			Borders: border.NewSet().
				With(grid.X, grid.High, border.AdjacentTo(tissue.Epithelium)).
				With(grid.Y, grid.Low, border.Border{Kind: border.Reflective, Compartment: tissue.Invalid}).
				With(grid.Y, grid.High, border.Border{Kind: border.Reflective, Compartment: tissue.Invalid}),
			Groups: []behavior.Spec{
				{Variant: "wander", Kind: agent.HPylori, Concentration: 0.05, MaxSpeed: 0.5},
				{Variant: "secrete", Kind: agent.HPylori, Cytokine: "IL6", Rate: 1},
			},
		},
		{
			Type:     tissue.Epithelium,
			Origin:   grid.Vector{20, 0},
			CellSize: 1,
			Grid:     grid.Point{20, 20},
			Borders: border.NewSet().
				With(grid.X, grid.Low, border.AdjacentTo(tissue.Lumen)).
				With(grid.X, grid.High, border.Border{Kind: border.Absorbing, Compartment: tissue.Invalid}),
			Cytokines: []string{"IL6"},
			Groups: []behavior.Spec{
				{Variant: "wander", Kind: agent.TCell, Concentration: 0.02, MaxSpeed: 0.25},
				{Variant: "uptake", Kind: agent.TCell, Cytokine: "IL6", Rate: 0.5},
			},
		},
	}
}

func (c CompartmentConfig) validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("%w: compartment type %s", ErrInvalidConfig, c.Type)
	}
	if !(c.CellSize > 0) {
		return fmt.Errorf("%w: %s cell_size=%g", ErrInvalidConfig, c.Type, c.CellSize)
	}
	if c.Halo < 0 {
		return fmt.Errorf("%w: %s halo=%d", ErrInvalidConfig, c.Type, c.Halo)
	}
	for i, spec := range c.Groups {
		if _, err := behavior.New(spec); err != nil {
			return fmt.Errorf("%w: %s groups[%d]: %w", ErrInvalidConfig, c.Type, i, err)
		}
	}
	return c.Borders.Validate(c.Type)
}

// Properties converts c into the registry's startup record.
func (c CompartmentConfig) Properties(seed int64) compartment.Properties {
	return compartment.Properties{
		Type:     c.Type,
		Origin:   c.Origin,
		Space:    c.Space,
		CellSize: c.CellSize,
		Grid:     c.Grid,
		Procs:    c.Procs,
		Borders:  c.Borders,
		Halo:     c.Halo,
		Absorb:   c.Absorb,
		Seed:     seed,
	}
}

// BuildGroups constructs c's behavior groups in declaration order.
func (c CompartmentConfig) BuildGroups() ([]behavior.Group, error) {
	out := make([]behavior.Group, 0, len(c.Groups))
	for i, spec := range c.Groups {
		g, err := behavior.New(spec)
		if err != nil {
			return nil, fmt.Errorf("%s groups[%d]: %w", c.Type, i, err)
		}
		out = append(out, g)
	}
	return out, nil
}
