// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package device ties the byte pipe, the 1284.4 link, the Epson
// control codec and the model database into the user-facing printer
// object (spec §4.H): discovery, model auto-detection, and the
// operation registry a caller runs by name.
package device

import (
	"strings"

	"github.com/haukened/epsink/modeldb"
)

// idFieldAliases normalizes the long-form IEEE 1284 device id keys to
// the short forms callers expect (spec §4.H).
var idFieldAliases = map[string]string{
	"MANUFACTURER": "MFG",
	"MODEL":        "MDL",
	"COMMAND SET":  "CMD",
}

// Identification is a parsed IEEE 1284 device id string.
type Identification struct {
	Fields map[string]string
	CMD    []string
}

// ParseIdentification parses a semicolon-separated `KEY:VALUE` IEEE
// 1284 id string, normalizing long-form keys and splitting CMD on
// commas (spec §4.H, §8).
func ParseIdentification(s string) Identification {
	id := Identification{Fields: map[string]string{}}
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if alias, ok := idFieldAliases[strings.ToUpper(key)]; ok {
			key = alias
		}
		id.Fields[key] = value
		if key == "CMD" {
			id.CMD = splitTrim(value, ",")
		}
	}
	return id
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Model returns the MDL field with model-detection normalization
// applied (trailing " Series" stripped).
func (id Identification) Model() string {
	return modeldb.DetectModel(id.Fields["MDL"])
}
