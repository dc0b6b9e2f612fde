// Package config loads the run description: ranks, steps, transport, storage,
// status server and the compartments with their groups.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrInvalidConfig = errors.New("config: invalid")

// StorageDrivers lists the snapshot drivers a config may name. An empty
// driver disables snapshots.
var StorageDrivers = []string{"memory", "fs", "sqlite", "postgres", "s3"}

type Config struct {
	Run          RunConfig
	Mesh         MeshConfig
	Storage      StorageConfig
	Status       StatusConfig
	Compartments []CompartmentConfig
}

type RunConfig struct {
	Ranks         int           `env:"ENISI_RANKS"`
	Steps         int           `env:"ENISI_STEPS"`
	Seed          int64         `env:"ENISI_SEED"`
	Separator     string        `env:"ENISI_SEPARATOR"`
	SnapshotEvery int           `env:"ENISI_SNAPSHOT_EVERY"`
	Decay         float64       `env:"ENISI_DECAY"`
	StepTimeout   time.Duration `env:"ENISI_STEP_TIMEOUT"`
}

// MeshConfig selects TCP transport when Peers is non-empty. Peers[i] is the
// listen address of rank i.
type MeshConfig struct {
	Rank        int           `env:"ENISI_RANK"`
	Peers       []string      `env:"ENISI_PEERS" envSeparator:","`
	DialTimeout time.Duration `env:"ENISI_DIAL_TIMEOUT"`
	IOTimeout   time.Duration `env:"ENISI_IO_TIMEOUT"`
	MaxAttempts int           `env:"ENISI_MAX_ATTEMPTS"`
}

type StorageConfig struct {
	Driver   string `env:"ENISI_STORAGE_DRIVER"`
	DSN      string `env:"ENISI_STORAGE_DSN"`
	Bucket   string `env:"ENISI_STORAGE_BUCKET"`
	Prefix   string `env:"ENISI_STORAGE_PREFIX"`
	Region   string `env:"ENISI_STORAGE_REGION"`
	Endpoint string `env:"ENISI_STORAGE_ENDPOINT"`

	// AccessKey and SecretKey, when both set, replace the default AWS
	// credential chain for the s3 driver.
	AccessKey string `env:"ENISI_STORAGE_ACCESS_KEY"`
	SecretKey string `env:"ENISI_STORAGE_SECRET_KEY"`
	PathStyle bool   `env:"ENISI_STORAGE_PATH_STYLE"`
}

// StatusConfig configures the status server. A non-empty Token is required
// as a bearer token on the run data routes.
type StatusConfig struct {
	Addr        string   `env:"ENISI_STATUS_ADDR"`
	CorsOrigins []string `env:"ENISI_STATUS_CORS" envSeparator:","`
	Token       string   `env:"ENISI_STATUS_TOKEN"`
}

// Default returns a single-rank lumen/epithelium run with in-memory
// snapshots and no status server.
func Default() Config {
	return Config{
		Run: RunConfig{
			Ranks:       1,
			Steps:       10,
			Seed:        1,
			Separator:   ",",
			StepTimeout: 30 * time.Second,
		},
		Mesh: MeshConfig{
			DialTimeout: 5 * time.Second,
			IOTimeout:   30 * time.Second,
			MaxAttempts: 20,
		},
		Storage:      StorageConfig{Driver: "memory"},
		Compartments: defaultCompartments(),
	}
}

// ApplyEnv overlays ENISI_* environment variables on cfg.
func ApplyEnv(cfg *Config) error {
	for _, target := range []any{&cfg.Run, &cfg.Mesh, &cfg.Storage, &cfg.Status} {
		if err := env.Parse(target); err != nil {
			return fmt.Errorf("parse env: %w", err)
		}
	}
	return nil
}

// Validate checks cross-field consistency. Geometry is checked again when
// compartments are registered.
func Validate(cfg Config) error {
	if cfg.Run.Ranks < 1 {
		return fmt.Errorf("%w: run.ranks=%d", ErrInvalidConfig, cfg.Run.Ranks)
	}
	if cfg.Run.Steps < 0 {
		return fmt.Errorf("%w: run.steps=%d", ErrInvalidConfig, cfg.Run.Steps)
	}
	if cfg.Run.SnapshotEvery < 0 {
		return fmt.Errorf("%w: run.snapshot_every=%d", ErrInvalidConfig, cfg.Run.SnapshotEvery)
	}
	if cfg.Run.Separator == "" {
		return fmt.Errorf("%w: run.separator is empty", ErrInvalidConfig)
	}
	if len(cfg.Mesh.Peers) > 0 {
		if len(cfg.Mesh.Peers) != cfg.Run.Ranks {
			return fmt.Errorf("%w: mesh.peers has %d entries for %d ranks", ErrInvalidConfig, len(cfg.Mesh.Peers), cfg.Run.Ranks)
		}
		if cfg.Mesh.Rank < 0 || cfg.Mesh.Rank >= cfg.Run.Ranks {
			return fmt.Errorf("%w: mesh.rank=%d outside [0,%d)", ErrInvalidConfig, cfg.Mesh.Rank, cfg.Run.Ranks)
		}
		for i, peer := range cfg.Mesh.Peers {
			if strings.TrimSpace(peer) == "" {
				return fmt.Errorf("%w: mesh.peers[%d] is empty", ErrInvalidConfig, i)
			}
		}
	}
	if err := validateStorage(cfg.Storage); err != nil {
		return err
	}
	if len(cfg.Compartments) == 0 {
		return fmt.Errorf("%w: no compartments", ErrInvalidConfig)
	}
	seen := make(map[string]int)
	for i, c := range cfg.Compartments {
		if prev, ok := seen[c.Type.String()]; ok {
			return fmt.Errorf("%w: compartments[%d] repeats %s from compartments[%d]", ErrInvalidConfig, i, c.Type, prev)
		}
		seen[c.Type.String()] = i
		if err := c.validate(); err != nil {
			return fmt.Errorf("compartments[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStorage(cfg StorageConfig) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		return nil
	}
	known := false
	for _, d := range StorageDrivers {
		known = known || d == driver
	}
	if !known {
		return fmt.Errorf("%w: storage.driver %q (want one of %s)", ErrInvalidConfig, cfg.Driver, strings.Join(StorageDrivers, ", "))
	}
	switch driver {
	case "fs", "sqlite", "postgres":
		if strings.TrimSpace(cfg.DSN) == "" {
			return fmt.Errorf("%w: storage.dsn required for %s", ErrInvalidConfig, driver)
		}
	case "s3":
		if strings.TrimSpace(cfg.Bucket) == "" {
			return fmt.Errorf("%w: storage.bucket required for s3", ErrInvalidConfig)
		}
	}
	return nil
}
