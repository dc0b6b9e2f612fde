// Package behavior holds the closed set of entity groups a compartment
// dispatches each step. The rules exercise the compartment's movement and
// field operations without modelling biology.
package behavior

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/meghna-verma/ENISI-MSM-control/internal/agent"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

var ErrUnknownVariant = errors.New("behavior: unknown variant")

// Host is the compartment surface a group may call.
type Host interface {
	Type() tissue.Type
	LocalAgents(mask agent.Kind) []agent.Agent
	LocalAgentsAt(cell grid.Point, mask agent.Kind) []agent.Agent
	MoveRandom(id agent.ID, maxSpeed float64) (agent.Move, error)
	AddAgentToRandomLocation(kind agent.Kind, state int32) (agent.Agent, error)
	LocalCount(concentration float64) int
	AddCytokine(name string) (int, error)
	CytokineValue(name string, cell grid.Point) (*float64, error)
}

// Group is implemented only by the variants in this package.
type Group interface {
	Name() string
	// Init runs once when the group is attached, before fields are sealed.
	Init(h Host) error
	Act(h Host, cell grid.Point) error
	Move(h Host) error
	Intervene(h Host, cell grid.Point) error
	// Columns names the values Write emits per cell.
	Columns() []string
	Write(w io.Writer, sep string, h Host, cell grid.Point) error
	sealed()
}

// Spec is the configuration form of a group.
type Spec struct {
	Variant       string
	Kind          agent.Kind
	Concentration float64
	State         int32
	MaxSpeed      float64
	Cytokine      string
	Rate          float64
}

// New builds the variant named by spec.Variant.
func New(spec Spec) (Group, error) {
	switch strings.ToLower(strings.TrimSpace(spec.Variant)) {
	case "wander":
		if spec.MaxSpeed < 0 || spec.Concentration < 0 {
			return nil, fmt.Errorf("behavior: wander needs non-negative max_speed and concentration")
		}
		return &Wander{Kind: spec.Kind, Concentration: spec.Concentration, State: spec.State, MaxSpeed: spec.MaxSpeed}, nil
	case "secrete":
		if spec.Cytokine == "" {
			return nil, fmt.Errorf("behavior: secrete needs a cytokine")
		}
		return &Secrete{Kind: spec.Kind, Cytokine: spec.Cytokine, Rate: spec.Rate}, nil
	case "uptake":
		if spec.Cytokine == "" {
			return nil, fmt.Errorf("behavior: uptake needs a cytokine")
		}
		return &Uptake{Kind: spec.Kind, Cytokine: spec.Cytokine, Rate: spec.Rate}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, spec.Variant)
	}
}

func writeRow(w io.Writer, sep string, values ...any) error {
	for i, v := range values {
		if i > 0 {
			if _, err := io.WriteString(w, sep); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprint(w, v); err != nil {
			return err
		}
	}
	return nil
}

func ensureCytokine(h Host, name string) error {
	if _, err := h.AddCytokine(name); err != nil && !isDuplicate(err) {
		return err
	}
	return nil
}
