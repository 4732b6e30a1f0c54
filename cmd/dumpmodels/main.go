// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Model database dump tool: writes the bundled Epson model table to a
// YAML or TOML file, mirroring the teacher's drivedb-to-file converters.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"

	"github.com/haukened/epsink/modeldb"
)

type dump struct {
	Models []modeldb.Spec
}

func main() {
	dest := flag.String("o", "models.yaml", "Output file (.yaml or .toml)")
	format := flag.String("format", "", "Output format: yaml or toml (default: inferred from -o extension)")
	flag.Parse()

	db := modeldb.Load()
	names := db.Names()
	sort.Strings(names)

	var d dump
	seen := map[string]bool{}
	for _, name := range names {
		spec, ok := db.Lookup(name)
		if !ok || seen[spec.Model] {
			continue
		}
		seen[spec.Model] = true
		d.Models = append(d.Models, spec)
	}

	f, err := os.Create(*dest)
	if err != nil {
		fmt.Printf("Cannot create output: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	outFormat := *format
	if outFormat == "" {
		outFormat = formatFromExt(*dest)
	}

	switch outFormat {
	case "toml":
		if err := toml.NewEncoder(f).Encode(d); err != nil {
			fmt.Printf("Error encoding toml: %v\n", err)
			os.Exit(1)
		}
	default:
		if err := yaml.NewEncoder(f).Encode(d); err != nil {
			fmt.Printf("Error encoding yaml: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Successfully wrote %d models to %s\n", len(d.Models), *dest)
}

func formatFromExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			if path[i:] == ".toml" {
				return "toml"
			}
			return "yaml"
		}
	}
	return "yaml"
}
