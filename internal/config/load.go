package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/meghna-verma/ENISI-MSM-control/internal/agent"
	"github.com/meghna-verma/ENISI-MSM-control/internal/behavior"
	"github.com/meghna-verma/ENISI-MSM-control/internal/border"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

type fileConfig struct {
	Run struct {
		Ranks         int     `toml:"ranks"`
		Steps         int     `toml:"steps"`
		Seed          int64   `toml:"seed"`
		Separator     string  `toml:"separator"`
		SnapshotEvery int     `toml:"snapshot_every"`
		Decay         float64 `toml:"decay"`
		StepTimeout   string  `toml:"step_timeout"`
	} `toml:"run"`
	Mesh struct {
		Rank        int      `toml:"rank"`
		Peers       []string `toml:"peers"`
		DialTimeout string   `toml:"dial_timeout"`
		IOTimeout   string   `toml:"io_timeout"`
		MaxAttempts int      `toml:"max_connect_attempts"`
	} `toml:"mesh"`
	Storage struct {
		Driver    string `toml:"driver"`
		DSN       string `toml:"dsn"`
		Bucket    string `toml:"bucket"`
		Prefix    string `toml:"prefix"`
		Region    string `toml:"region"`
		Endpoint  string `toml:"endpoint"`
		AccessKey string `toml:"access_key"`
		SecretKey string `toml:"secret_key"`
		PathStyle bool   `toml:"path_style"`
	} `toml:"storage"`
	Status struct {
		Addr        string   `toml:"addr"`
		CorsOrigins []string `toml:"cors_origins"`
		Token       string   `toml:"token"`
	} `toml:"status"`
	Compartments []fileCompartment `toml:"compartments"`
}

type fileCompartment struct {
	Type      string      `toml:"type"`
	Origin    []float64   `toml:"origin"`
	Space     []float64   `toml:"space"`
	CellSize  float64     `toml:"cell_size"`
	Grid      []int       `toml:"grid"`
	Procs     []int       `toml:"procs"`
	Halo      int         `toml:"halo"`
	Absorb    string      `toml:"absorb"`
	Borders   fileBorders `toml:"borders"`
	Cytokines []string    `toml:"cytokines"`
	Groups    []fileGroup `toml:"groups"`
}

type fileBorders struct {
	XLow  string `toml:"x_low"`
	XHigh string `toml:"x_high"`
	YLow  string `toml:"y_low"`
	YHigh string `toml:"y_high"`
}

type fileGroup struct {
	Variant       string  `toml:"variant"`
	Kind          string  `toml:"kind"`
	Concentration float64 `toml:"concentration"`
	State         int32   `toml:"state"`
	MaxSpeed      float64 `toml:"max_speed"`
	Cytokine      string  `toml:"cytokine"`
	Rate          float64 `toml:"rate"`
}

// Load reads path over Default, applies ENISI_* environment overrides and
// validates the result. An empty path loads defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("run", "ranks") {
		cfg.Run.Ranks = raw.Run.Ranks
	}
	if meta.IsDefined("run", "steps") {
		cfg.Run.Steps = raw.Run.Steps
	}
	if meta.IsDefined("run", "seed") {
		cfg.Run.Seed = raw.Run.Seed
	}
	if meta.IsDefined("run", "separator") {
		cfg.Run.Separator = raw.Run.Separator
	}
	if meta.IsDefined("run", "snapshot_every") {
		cfg.Run.SnapshotEvery = raw.Run.SnapshotEvery
	}
	if meta.IsDefined("run", "decay") {
		cfg.Run.Decay = raw.Run.Decay
	}
	if meta.IsDefined("run", "step_timeout") {
		d, err := parseDuration("run.step_timeout", raw.Run.StepTimeout)
		if err != nil {
			return err
		}
		cfg.Run.StepTimeout = d
	}

	if meta.IsDefined("mesh", "rank") {
		cfg.Mesh.Rank = raw.Mesh.Rank
	}
	if meta.IsDefined("mesh", "peers") {
		cfg.Mesh.Peers = normalizeList(raw.Mesh.Peers)
	}
	if meta.IsDefined("mesh", "dial_timeout") {
		d, err := parseDuration("mesh.dial_timeout", raw.Mesh.DialTimeout)
		if err != nil {
			return err
		}
		cfg.Mesh.DialTimeout = d
	}
	if meta.IsDefined("mesh", "io_timeout") {
		d, err := parseDuration("mesh.io_timeout", raw.Mesh.IOTimeout)
		if err != nil {
			return err
		}
		cfg.Mesh.IOTimeout = d
	}
	if meta.IsDefined("mesh", "max_connect_attempts") {
		cfg.Mesh.MaxAttempts = raw.Mesh.MaxAttempts
	}

	if meta.IsDefined("storage") {
		cfg.Storage = StorageConfig{
			Driver:    strings.ToLower(strings.TrimSpace(raw.Storage.Driver)),
			DSN:       strings.TrimSpace(raw.Storage.DSN),
			Bucket:    strings.TrimSpace(raw.Storage.Bucket),
			Prefix:    strings.TrimSpace(raw.Storage.Prefix),
			Region:    strings.TrimSpace(raw.Storage.Region),
			Endpoint:  strings.TrimSpace(raw.Storage.Endpoint),
			AccessKey: strings.TrimSpace(raw.Storage.AccessKey),
			SecretKey: strings.TrimSpace(raw.Storage.SecretKey),
			PathStyle: raw.Storage.PathStyle,
		}
	}
	if meta.IsDefined("status", "addr") {
		cfg.Status.Addr = strings.TrimSpace(raw.Status.Addr)
	}
	if meta.IsDefined("status", "cors_origins") {
		cfg.Status.CorsOrigins = normalizeList(raw.Status.CorsOrigins)
	}
	if meta.IsDefined("status", "token") {
		cfg.Status.Token = strings.TrimSpace(raw.Status.Token)
	}

	if meta.IsDefined("compartments") {
		cfg.Compartments = make([]CompartmentConfig, 0, len(raw.Compartments))
		for i, fc := range raw.Compartments {
			c, err := fc.resolve()
			if err != nil {
				return fmt.Errorf("compartments[%d]: %w", i, err)
			}
			cfg.Compartments = append(cfg.Compartments, c)
		}
	}
	return nil
}

func (fc fileCompartment) resolve() (CompartmentConfig, error) {
	var c CompartmentConfig
	t, err := tissue.ParseType(fc.Type)
	if err != nil {
		return c, err
	}
	c.Type = t
	c.CellSize = fc.CellSize
	c.Halo = fc.Halo
	if c.Origin, err = vector("origin", fc.Origin); err != nil {
		return c, err
	}
	if c.Space, err = vector("space", fc.Space); err != nil {
		return c, err
	}
	if c.Grid, err = point("grid", fc.Grid); err != nil {
		return c, err
	}
	if c.Procs, err = point("procs", fc.Procs); err != nil {
		return c, err
	}
	if strings.TrimSpace(fc.Absorb) != "" {
		if c.Absorb, err = border.ParseAbsorbPolicy(fc.Absorb); err != nil {
			return c, err
		}
	}

	c.Borders = border.NewSet()
	sides := []struct {
		raw  string
		axis grid.Axis
		side grid.Side
	}{
		{fc.Borders.XLow, grid.X, grid.Low},
		{fc.Borders.XHigh, grid.X, grid.High},
		{fc.Borders.YLow, grid.Y, grid.Low},
		{fc.Borders.YHigh, grid.Y, grid.High},
	}
	for _, s := range sides {
		if strings.TrimSpace(s.raw) == "" {
			continue
		}
		b, err := border.Parse(s.raw)
		if err != nil {
			return c, fmt.Errorf("borders %s %s: %w", s.axis, s.side, err)
		}
		c.Borders = c.Borders.With(s.axis, s.side, b)
	}

	c.Cytokines = normalizeList(fc.Cytokines)
	for i, fg := range fc.Groups {
		kind, err := agent.ParseKind(fg.Kind)
		if err != nil {
			return c, fmt.Errorf("groups[%d]: %w", i, err)
		}
		c.Groups = append(c.Groups, behavior.Spec{
			Variant:       strings.TrimSpace(fg.Variant),
			Kind:          kind,
			Concentration: fg.Concentration,
			State:         fg.State,
			MaxSpeed:      fg.MaxSpeed,
			Cytokine:      strings.TrimSpace(fg.Cytokine),
			Rate:          fg.Rate,
		})
	}
	return c, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func vector(key string, in []float64) (grid.Vector, error) {
	var v grid.Vector
	switch len(in) {
	case 0:
		return v, nil
	case grid.Dims:
		copy(v[:], in)
		return v, nil
	default:
		return v, fmt.Errorf("%w: %s needs %d values, got %d", ErrInvalidConfig, key, grid.Dims, len(in))
	}
}

func point(key string, in []int) (grid.Point, error) {
	var p grid.Point
	switch len(in) {
	case 0:
		return p, nil
	case grid.Dims:
		copy(p[:], in)
		return p, nil
	default:
		return p, fmt.Errorf("%w: %s needs %d values, got %d", ErrInvalidConfig, key, grid.Dims, len(in))
	}
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
