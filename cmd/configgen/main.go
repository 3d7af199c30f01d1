package main

import (
	"flag"
	"log"

	"github.com/pulsewire/pulsewire/internal/config"
)

func main() {
	kind := flag.String("kind", "capture", "config kind: capture|decode")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}

		switch *kind {
		case "capture":
			if _, err := config.LoadCaptureConfig(path); err != nil {
				log.Fatal(err)
			}
		case "decode":
			if _, err := config.LoadDecodeConfig(path); err != nil {
				log.Fatal(err)
			}
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}

func defaultPath(kind string) string {
	switch kind {
	case "capture":
		return "cmd/capture/config.toml"
	case "decode":
		return "cmd/decode/config.toml"
	default:
		log.Fatalf("unknown kind: %s", kind)
		return ""
	}
}
