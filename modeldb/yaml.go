// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package modeldb

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"
)

// yamlMemEntry and yamlRecord mirror record/MemEntry in the on-disk
// YAML shape, the way the teacher's drivedb tooling separates its wire
// format from its in-memory types.
type yamlMemEntry struct {
	Desc  string   `yaml:"desc"`
	Addr  []uint16 `yaml:"addr"`
	Reset []byte   `yaml:"reset,omitempty"`
	Min   []byte   `yaml:"min,omitempty"`
}

type yamlRecord struct {
	Brand     string         `yaml:"brand,omitempty"`
	Model     string         `yaml:"model"`
	IDVendor  uint16         `yaml:"id_vendor,omitempty"`
	IDProduct uint16         `yaml:"id_product,omitempty"`
	RKey      uint16         `yaml:"rkey"`
	WKey      string         `yaml:"wkey,omitempty"`
	RLen      int            `yaml:"rlen,omitempty"`
	WLen      int            `yaml:"wlen,omitempty"`
	MemLow    uint16         `yaml:"mem_low,omitempty"`
	MemHigh   uint16         `yaml:"mem_high,omitempty"`
	Mem       []yamlMemEntry `yaml:"mem,omitempty"`
	Models    []string       `yaml:"models,omitempty"`
}

type yamlFile struct {
	Models []yamlRecord `yaml:"models"`
}

// ParseOverrides decodes a model-spec YAML document into the package's
// internal record form (spec §4.G, §6 "Model DB file").
func ParseOverrides(r io.Reader) ([]record, error) {
	var f yamlFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("modeldb: decode yaml: %w", err)
	}
	out := make([]record, len(f.Models))
	for i, m := range f.Models {
		mem := make([]MemEntry, len(m.Mem))
		for j, me := range m.Mem {
			mem[j] = MemEntry{Desc: me.Desc, Addr: me.Addr, Reset: me.Reset, Min: me.Min}
		}
		out[i] = record{
			Brand: m.Brand, Model: m.Model,
			IDVendor: m.IDVendor, IDProduct: m.IDProduct,
			RKey: m.RKey, WKey: m.WKey,
			RLen: m.RLen, WLen: m.WLen,
			MemLow: m.MemLow, MemHigh: m.MemHigh,
			Mem: mem, Models: m.Models,
		}
	}
	return out, nil
}

// LoadWithOverrides builds the database from the bundled static table,
// then layers records parsed from r on top — a record with the same
// model name shadows the bundled one.
func LoadWithOverrides(r io.Reader) (DB, error) {
	overrides, err := ParseOverrides(r)
	if err != nil {
		return DB{}, err
	}
	all := append(append([]record{}, builtinRecords...), overrides...)
	return build(all), nil
}

// LoadFile opens path and calls LoadWithOverrides on its contents.
func LoadFile(path string) (DB, error) {
	f, err := os.Open(path)
	if err != nil {
		return DB{}, fmt.Errorf("modeldb: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadWithOverrides(f)
}
