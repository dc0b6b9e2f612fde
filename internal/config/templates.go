package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "local":
		return localTemplate, nil
	case "mesh":
		return meshTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const compartmentsTemplate = `
[[compartments]]
type = "lumen"
cell_size = 1.0
grid = [20, 20]
halo = 1
absorb = "drop"

[compartments.borders]
x_low = "edge"
x_high = "adjacent:epithelium"
y_low = "reflective"
y_high = "reflective"

[[compartments.groups]]
variant = "wander"
kind = "hpylori"
concentration = 0.05
max_speed = 0.5

[[compartments.groups]]
variant = "secrete"
kind = "hpylori"
cytokine = "IL6"
rate = 1.0

[[compartments]]
type = "epithelium"
origin = [20.0, 0.0]
space = [20.0, 20.0]
cell_size = 1.0
absorb = "warn"
cytokines = ["IL6"]

[compartments.borders]
x_low = "adjacent:lumen"
x_high = "absorbing"

[[compartments.groups]]
variant = "wander"
kind = "tcell"
concentration = 0.02
max_speed = 0.25

[[compartments.groups]]
variant = "uptake"
kind = "tcell"
cytokine = "IL6"
rate = 0.5
`

const localTemplate = `[run]
ranks = 4
steps = 50
seed = 42
separator = ","
snapshot_every = 10
decay = 0.05
step_timeout = "30s"

[storage]
driver = "sqlite"
dsn = "enisi.db"

[status]
addr = "127.0.0.1:9300"
cors_origins = ["http://localhost:3000"]
` + compartmentsTemplate

const meshTemplate = `[run]
ranks = 2
steps = 50
seed = 42
separator = ","
snapshot_every = 10
step_timeout = "30s"

[mesh]
rank = 0
peers = ["127.0.0.1:7400", "127.0.0.1:7401"]
dial_timeout = "5s"
io_timeout = "30s"
max_connect_attempts = 20

[storage]
driver = "fs"
dsn = "snapshots"

[status]
addr = "127.0.0.1:9300"
token = "change-me"
` + compartmentsTemplate
