package compartment

import (
	"fmt"
	"math"

	"github.com/meghna-verma/ENISI-MSM-control/internal/border"
	"github.com/meghna-verma/ENISI-MSM-control/internal/decomp"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

// Properties is the immutable startup record of one compartment. Either
// Space or Grid may be left zero and is derived from the other through
// CellSize. Procs left zero is chosen by decomp.ProcessDims.
type Properties struct {
	Type     tissue.Type
	Origin   grid.Vector
	Space    grid.Vector
	CellSize float64
	Grid     grid.Point
	Procs    grid.Point
	Borders  border.Set
	Halo     int
	Absorb   border.AbsorbPolicy
	Seed     int64
}

const extentTolerance = 1e-9

func (p Properties) normalize(ranks int) (Properties, error) {
	if !p.Type.Valid() {
		return p, fmt.Errorf("%w: type %d", ErrInvalidProperties, int(p.Type))
	}
	if !(p.CellSize > 0) {
		return p, fmt.Errorf("%w: %s cell size %g", ErrInvalidProperties, p.Type, p.CellSize)
	}
	for _, a := range grid.Axes {
		switch {
		case p.Grid[a] == 0 && p.Space[a] > 0:
			p.Grid[a] = int(math.Round(p.Space[a] / p.CellSize))
			if math.Abs(float64(p.Grid[a])*p.CellSize-p.Space[a]) > extentTolerance*math.Max(1, p.Space[a]) {
				return p, fmt.Errorf("%w: %s space %s=%g is not a multiple of cell size %g", ErrInvalidProperties, p.Type, a, p.Space[a], p.CellSize)
			}
		case p.Space[a] == 0 && p.Grid[a] > 0:
			p.Space[a] = float64(p.Grid[a]) * p.CellSize
		case p.Grid[a] > 0 && p.Space[a] > 0:
			if math.Abs(float64(p.Grid[a])*p.CellSize-p.Space[a]) > extentTolerance*math.Max(1, p.Space[a]) {
				return p, fmt.Errorf("%w: %s grid %s=%d disagrees with space %g", ErrInvalidProperties, p.Type, a, p.Grid[a], p.Space[a])
			}
		}
		if p.Grid[a] < 1 {
			return p, fmt.Errorf("%w: %s grid %s=%d", ErrInvalidProperties, p.Type, a, p.Grid[a])
		}
	}
	if p.Halo == 0 {
		p.Halo = 1
	}
	if p.Halo < 0 {
		return p, fmt.Errorf("%w: %s halo %d", ErrInvalidProperties, p.Type, p.Halo)
	}
	if p.Procs == (grid.Point{}) {
		procs, err := decomp.ProcessDims(ranks, p.Grid)
		if err != nil {
			return p, fmt.Errorf("%w: %s: %w", ErrInvalidProperties, p.Type, err)
		}
		p.Procs = procs
	} else if p.Procs[0]*p.Procs[1] != ranks {
		return p, fmt.Errorf("%w: %s procs %s do not cover %d ranks", ErrInvalidProperties, p.Type, p.Procs, ranks)
	}
	if err := p.Borders.Validate(p.Type); err != nil {
		return p, err
	}
	return p, nil
}
