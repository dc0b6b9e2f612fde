package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meghna-verma/ENISI-MSM-control/internal/agent"
	"github.com/meghna-verma/ENISI-MSM-control/internal/border"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/testutil/testlog"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "enisi.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadLocalTemplate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "enisi.toml")
	if err := WriteTemplate(path, "local", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "local", false); err == nil {
		t.Fatalf("expected existing config to be kept")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Run.Ranks != 4 || cfg.Run.Steps != 50 || cfg.Run.Seed != 42 {
		t.Fatalf("unexpected run: %+v", cfg.Run)
	}
	if cfg.Run.StepTimeout != 30*time.Second {
		t.Fatalf("unexpected step timeout: %v", cfg.Run.StepTimeout)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != "enisi.db" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Mesh.MaxAttempts != 20 || cfg.Mesh.DialTimeout != 5*time.Second {
		t.Fatalf("expected mesh defaults kept, got %+v", cfg.Mesh)
	}
	if len(cfg.Compartments) != 2 {
		t.Fatalf("expected 2 compartments, got %d", len(cfg.Compartments))
	}

	lumen := cfg.Compartments[0]
	if lumen.Type != tissue.Lumen || lumen.Grid != (grid.Point{20, 20}) {
		t.Fatalf("unexpected lumen: %+v", lumen)
	}
	if b := lumen.Borders.Get(grid.X, grid.High); b != border.AdjacentTo(tissue.Epithelium) {
		t.Fatalf("unexpected lumen x high border: %s", b)
	}
	if k := lumen.Borders.BorderKind(grid.X, grid.Low); k != border.Edge {
		t.Fatalf("unexpected lumen x low border: %s", k)
	}
	if len(lumen.Groups) != 2 || lumen.Groups[0].Kind != agent.HPylori || lumen.Groups[1].Cytokine != "IL6" {
		t.Fatalf("unexpected lumen groups: %+v", lumen.Groups)
	}

	epi := cfg.Compartments[1]
	if epi.Absorb != border.AbsorbWarn || epi.Space != (grid.Vector{20, 20}) || epi.Origin != (grid.Vector{20, 0}) {
		t.Fatalf("unexpected epithelium: %+v", epi)
	}
	props := epi.Properties(cfg.Run.Seed)
	if props.Type != tissue.Epithelium || props.Seed != 42 || props.CellSize != 1 {
		t.Fatalf("unexpected properties: %+v", props)
	}
	groups, err := epi.BuildGroups()
	if err != nil || len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d err=%v", len(groups), err)
	}
}

func TestLoadMeshTemplate(t *testing.T) {
	testlog.Start(t)
	tpl, err := Template("mesh")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	cfg, err := Load(writeConfig(t, tpl))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Mesh.Peers) != 2 || cfg.Mesh.Peers[1] != "127.0.0.1:7401" || cfg.Mesh.IOTimeout != 30*time.Second {
		t.Fatalf("unexpected mesh: %+v", cfg.Mesh)
	}
	if cfg.Status.Token != "change-me" {
		t.Fatalf("expected status token from template, got %q", cfg.Status.Token)
	}
	if _, err := Template("ghost"); err == nil {
		t.Fatalf("expected unknown template kind to fail")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	testlog.Start(t)
	t.Setenv("ENISI_STEPS", "7")
	t.Setenv("ENISI_STORAGE_DRIVER", "memory")
	t.Setenv("ENISI_STATUS_CORS", "http://a.test,http://b.test")
	cfg, err := Load(writeConfig(t, "[run]\nsteps = 3\nranks = 2\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Run.Steps != 7 || cfg.Run.Ranks != 2 {
		t.Fatalf("expected env steps over file, got %+v", cfg.Run)
	}
	if cfg.Storage.Driver != "memory" || len(cfg.Status.CorsOrigins) != 2 {
		t.Fatalf("unexpected overrides: %+v %+v", cfg.Storage, cfg.Status)
	}
	if len(cfg.Compartments) != 2 {
		t.Fatalf("expected default compartments, got %d", len(cfg.Compartments))
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		body string
	}{
		{"unknown key", "[run]\nstepz = 3\n"},
		{"bad duration", "[run]\nstep_timeout = \"soon\"\n"},
		{"peer count", "[run]\nranks = 3\n[mesh]\npeers = [\"a:1\", \"b:2\"]\n"},
		{"storage driver", "[storage]\ndriver = \"floppy\"\n"},
		{"sqlite dsn", "[storage]\ndriver = \"sqlite\"\n"},
		{"compartment type", "[[compartments]]\ntype = \"stomach\"\ncell_size = 1.0\ngrid = [2, 2]\n"},
		{"grid arity", "[[compartments]]\ntype = \"lumen\"\ncell_size = 1.0\ngrid = [2, 2, 2]\n"},
		{"duplicate type", "[[compartments]]\ntype = \"lumen\"\ncell_size = 1.0\n[[compartments]]\ntype = \"lumen\"\ncell_size = 1.0\n"},
		{"group kind", "[[compartments]]\ntype = \"lumen\"\ncell_size = 1.0\n[[compartments.groups]]\nvariant = \"wander\"\nkind = \"virus\"\n"},
		{"group variant", "[[compartments]]\ntype = \"lumen\"\ncell_size = 1.0\n[[compartments.groups]]\nvariant = \"divide\"\n"},
	}
	for _, tc := range cases {
		if _, err := Load(writeConfig(t, tc.body)); err == nil {
			t.Fatalf("%s: expected load to fail", tc.name)
		}
	}
}

func TestValidateDefault(t *testing.T) {
	testlog.Start(t)
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default invalid: %v", err)
	}
	cfg.Run.Ranks = 0
	if err := Validate(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
