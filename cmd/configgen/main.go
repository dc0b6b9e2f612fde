package main

import (
	"flag"
	"log"

	"github.com/meghna-verma/ENISI-MSM-control/internal/config"
)

func main() {
	kind := flag.String("kind", "local", "template kind: local|mesh")
	output := flag.String("output", "enisi.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to -output)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = *output
		}
		cfg, err := config.Load(path)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated config at %s: %d ranks, %d steps, %d compartments", path, cfg.Run.Ranks, cfg.Run.Steps, len(cfg.Compartments))
		return
	}

	if err := config.WriteTemplate(*output, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, *output)
}
