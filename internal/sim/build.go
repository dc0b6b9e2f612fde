// Package sim drives registries through the step loop, on one rank or on
// every rank of a run in-process.
package sim

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meghna-verma/ENISI-MSM-control/internal/compartment"
	"github.com/meghna-verma/ENISI-MSM-control/internal/config"
	"github.com/meghna-verma/ENISI-MSM-control/internal/exchange"
	"github.com/meghna-verma/ENISI-MSM-control/internal/field"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
)

// BuildRegistry registers every configured compartment on transport's rank,
// attaches cytokines and groups, and seals the registry.
func BuildRegistry(cfg config.Config, transport exchange.Transport, logger zerolog.Logger) (*compartment.Registry, error) {
	reg := compartment.NewRegistry(transport, compartment.WithLogger(logger))
	for _, cc := range cfg.Compartments {
		c, err := reg.Register(cc.Properties(cfg.Run.Seed))
		if err != nil {
			return nil, err
		}
		for _, name := range cc.Cytokines {
			if _, err := c.AddCytokine(name); err != nil {
				return nil, fmt.Errorf("%s cytokine %q: %w", cc.Type, name, err)
			}
		}
		groups, err := cc.BuildGroups()
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			if err := c.AddGroup(g); err != nil {
				return nil, fmt.Errorf("%s group %s: %w", cc.Type, g.Name(), err)
			}
		}
		if cfg.Run.Decay > 0 {
			c.SetDiffuser(Decay(cfg.Run.Decay))
		}
	}
	if err := reg.Init(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Decay scales every owned concentration by 1-rate per step. Halo cells
// are refreshed by the following value synchronization.
func Decay(rate float64) field.Diffuser {
	keep := 1 - min(max(rate, 0), 1)
	return field.DiffuserFunc(func(ctx context.Context, layer *field.Layer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range layer.Names {
			buf := layer.Buffer(i)
			layer.Local.Each(func(p grid.Point) {
				if off, ok := layer.Offset(p); ok {
					buf[off] *= keep
				}
			})
		}
		return nil
	})
}
