package behavior

import (
	"errors"
	"fmt"
	"io"

	"github.com/meghna-verma/ENISI-MSM-control/internal/agent"
	"github.com/meghna-verma/ENISI-MSM-control/internal/border"
	"github.com/meghna-verma/ENISI-MSM-control/internal/field"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
)

// Wander seeds LocalCount(Concentration) agents of Kind and moves each of
// them randomly every step.
type Wander struct {
	Kind          agent.Kind
	Concentration float64
	State         int32
	MaxSpeed      float64
}

func (g *Wander) Name() string { return "wander:" + g.Kind.String() }

func (g *Wander) Init(h Host) error {
	n := h.LocalCount(g.Concentration)
	for i := 0; i < n; i++ {
		if _, err := h.AddAgentToRandomLocation(g.Kind, g.State); err != nil {
			return fmt.Errorf("%s seed %d/%d: %w", g.Name(), i+1, n, err)
		}
	}
	return nil
}

func (g *Wander) Act(Host, grid.Point) error { return nil }

func (g *Wander) Move(h Host) error {
	for _, a := range h.LocalAgents(g.Kind) {
		_, err := h.MoveRandom(a.ID, g.MaxSpeed)
		switch {
		case err == nil:
		case errors.Is(err, grid.ErrInvalidCoordinate), errors.Is(err, border.ErrAbsorbed):
			// blocked moves keep the prior location
		default:
			return fmt.Errorf("%s move %s: %w", g.Name(), a.ID, err)
		}
	}
	return nil
}

func (g *Wander) Intervene(Host, grid.Point) error { return nil }

func (g *Wander) Columns() []string { return []string{g.Kind.String()} }

func (g *Wander) Write(w io.Writer, sep string, h Host, cell grid.Point) error {
	return writeRow(w, sep, len(h.LocalAgentsAt(cell, g.Kind)))
}

func (*Wander) sealed() {}

// Secrete adds Rate per local agent of Kind to Cytokine at the agent's cell.
type Secrete struct {
	Kind     agent.Kind
	Cytokine string
	Rate     float64
}

func (g *Secrete) Name() string { return "secrete:" + g.Kind.String() + ":" + g.Cytokine }

func (g *Secrete) Init(h Host) error { return ensureCytokine(h, g.Cytokine) }

func (g *Secrete) Act(h Host, cell grid.Point) error {
	n := len(h.LocalAgentsAt(cell, g.Kind))
	if n == 0 {
		return nil
	}
	v, err := h.CytokineValue(g.Cytokine, cell)
	if err != nil {
		return err
	}
	*v += g.Rate * float64(n)
	return nil
}

func (g *Secrete) Move(Host) error { return nil }

func (g *Secrete) Intervene(Host, grid.Point) error { return nil }

func (g *Secrete) Columns() []string { return []string{g.Cytokine} }

func (g *Secrete) Write(w io.Writer, sep string, h Host, cell grid.Point) error {
	v, err := h.CytokineValue(g.Cytokine, cell)
	if err != nil {
		return err
	}
	return writeRow(w, sep, *v)
}

func (*Secrete) sealed() {}

// Uptake removes Rate per local agent of Kind from Cytokine during the
// intervention phase, never below zero.
type Uptake struct {
	Kind     agent.Kind
	Cytokine string
	Rate     float64
}

func (g *Uptake) Name() string { return "uptake:" + g.Kind.String() + ":" + g.Cytokine }

func (g *Uptake) Init(h Host) error { return ensureCytokine(h, g.Cytokine) }

func (g *Uptake) Act(Host, grid.Point) error { return nil }

func (g *Uptake) Move(Host) error { return nil }

func (g *Uptake) Intervene(h Host, cell grid.Point) error {
	n := len(h.LocalAgentsAt(cell, g.Kind))
	if n == 0 {
		return nil
	}
	v, err := h.CytokineValue(g.Cytokine, cell)
	if err != nil {
		return err
	}
	*v = max(0, *v-g.Rate*float64(n))
	return nil
}

func (g *Uptake) Columns() []string { return nil }

func (g *Uptake) Write(io.Writer, string, Host, grid.Point) error { return nil }

func (*Uptake) sealed() {}

func isDuplicate(err error) bool {
	return errors.Is(err, field.ErrDuplicateField)
}
