package compartment

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/meghna-verma/ENISI-MSM-control/internal/agent"
	"github.com/meghna-verma/ENISI-MSM-control/internal/behavior"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
)

// AddGroup attaches g and runs its Init. Groups may only be added while the
// registry is configuring, since Init may register cytokines.
func (c *Compartment) AddGroup(g behavior.Group) error {
	if err := c.registry.requirePhase(PhaseConfigure); err != nil {
		return err
	}
	if err := g.Init(c); err != nil {
		return fmt.Errorf("compartment: %s init %s: %w", c.Type(), g.Name(), err)
	}
	c.groups = append(c.groups, g)
	return nil
}

func (c *Compartment) Groups() []behavior.Group {
	return append([]behavior.Group(nil), c.groups...)
}

// Act runs every group's per-cell action over the local partition, then
// every group's move. An empty partition skips the step.
func (c *Compartment) Act() error {
	if err := c.registry.requirePhase(PhaseReady); err != nil {
		return err
	}
	if c.noLocalAgents {
		return nil
	}
	var err error
	c.local.Each(func(p grid.Point) {
		if err != nil {
			return
		}
		for _, g := range c.groups {
			if err = g.Act(c, p); err != nil {
				err = fmt.Errorf("compartment: %s act %s at %s: %w", c.Type(), g.Name(), p, err)
				return
			}
		}
	})
	if err != nil {
		return err
	}
	for _, g := range c.groups {
		if err := g.Move(c); err != nil {
			return fmt.Errorf("compartment: %s move %s: %w", c.Type(), g.Name(), err)
		}
	}
	return nil
}

func (c *Compartment) Intervene() error {
	if err := c.registry.requirePhase(PhaseReady); err != nil {
		return err
	}
	var err error
	c.local.Each(func(p grid.Point) {
		if err != nil {
			return
		}
		for _, g := range c.groups {
			if err = g.Intervene(c, p); err != nil {
				err = fmt.Errorf("compartment: %s intervene %s at %s: %w", c.Type(), g.Name(), p, err)
				return
			}
		}
	})
	return err
}

// Diffuse hands the field layer to the configured diffuser. Without one the
// fields are left alone.
func (c *Compartment) Diffuse(ctx context.Context) error {
	if err := c.registry.requirePhase(PhaseReady); err != nil {
		return err
	}
	if c.diffuser == nil || c.fields.Len() == 0 {
		return nil
	}
	if err := c.diffuser.Diffuse(ctx, c.fields.DiffuserData()); err != nil {
		return fmt.Errorf("compartment: %s diffuse: %w", c.Type(), err)
	}
	return nil
}

// Write dumps local agents as
//
//	agent sep compartment sep id sep kind sep state sep x sep y
//
// followed by one row per local cell with every cytokine value and the
// columns of each group.
func (c *Compartment) Write(w io.Writer, sep string) error {
	name := c.Name()
	for _, a := range c.dir.Local(agent.AnyKind) {
		_, err := fmt.Fprint(w, "agent", sep, name, sep, a.ID, sep, a.ID.Kind, sep, a.State, sep,
			ftoa(a.Location[0]), sep, ftoa(a.Location[1]), "\n")
		if err != nil {
			return err
		}
	}
	var err error
	c.local.Each(func(p grid.Point) {
		if err != nil {
			return
		}
		err = c.writeCell(w, sep, name, p)
	})
	return err
}

func (c *Compartment) writeCell(w io.Writer, sep, name string, p grid.Point) error {
	if _, err := fmt.Fprint(w, "cell", sep, name, sep, p[0], sep, p[1]); err != nil {
		return err
	}
	values, err := c.fields.Values(p)
	if err != nil {
		return err
	}
	for _, v := range values {
		if _, err := fmt.Fprint(w, sep, ftoa(v)); err != nil {
			return err
		}
	}
	for _, g := range c.groups {
		if len(g.Columns()) == 0 {
			continue
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return err
		}
		if err := g.Write(w, sep, c, p); err != nil {
			return err
		}
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
