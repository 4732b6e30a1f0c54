// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package modeldb loads the static table of per-model EEPROM specs
// (spec §4.G): the read/write keys, address layout, and memory map that
// give an EEPROM reset semantic meaning for a given printer model.
package modeldb

import "strings"

// defaultIDVendor is Seiko Epson's USB vendor ID, used when a record
// does not specify one.
const defaultIDVendor = 0x04B8

// MemEntry describes one or more related EEPROM addresses: a counter or
// setting, its address(es), and the reset/min values a reset writes.
type MemEntry struct {
	Desc  string
	Addr  []uint16
	Reset []byte // defaults to Min, then to all zeros
	Min   []byte
}

// ResetValues returns, for each address in Addr, the value a reset
// should write: Reset if given, else Min, else zero (spec §4.F).
func (m MemEntry) ResetValues() map[uint16]byte {
	out := make(map[uint16]byte, len(m.Addr))
	for i, addr := range m.Addr {
		switch {
		case i < len(m.Reset):
			out[addr] = m.Reset[i]
		case i < len(m.Min):
			out[addr] = m.Min[i]
		default:
			out[addr] = 0x00
		}
	}
	return out
}

// Spec is one printer model's EEPROM parameters (spec §3 "Model spec").
type Spec struct {
	Brand     string
	Model     string
	IDVendor  uint16
	IDProduct uint16
	RKey      uint16
	WKey      []byte // 8 ASCII bytes, nil if unknown
	RLen      int
	WLen      int
	MemLow    uint16
	MemHigh   uint16
	Mem       []MemEntry
	Models    []string
}

// record is the raw, unmerged form the static table and YAML overrides
// are expressed in; zero fields fall back to withDefaults.
type record struct {
	Brand     string
	Model     string
	IDVendor  uint16
	IDProduct uint16
	RKey      uint16
	WKey      string
	RLen      int
	WLen      int
	MemLow    uint16
	MemHigh   uint16
	Mem       []MemEntry
	Models    []string
}

func withDefaults(r record) Spec {
	s := Spec{
		Brand:     r.Brand,
		Model:     r.Model,
		IDVendor:  r.IDVendor,
		IDProduct: r.IDProduct,
		RKey:      r.RKey,
		RLen:      r.RLen,
		WLen:      r.WLen,
		MemLow:    r.MemLow,
		MemHigh:   r.MemHigh,
		Mem:       r.Mem,
		Models:    r.Models,
	}
	if s.IDVendor == 0 {
		s.IDVendor = defaultIDVendor
	}
	if s.RLen == 0 {
		s.RLen = 2
	}
	if s.WLen == 0 {
		s.WLen = 2
	}
	if s.MemHigh == 0 {
		s.MemHigh = 0xFF
	}
	if r.WKey != "" {
		s.WKey = []byte(r.WKey)
	}
	return s
}

// DB is a loaded, read-only model database keyed by model name,
// including alias views registered from each record's Models list
// (spec §4.G).
type DB struct {
	byName map[string]Spec
}

// Lookup returns the spec for name (canonical or alias), and whether it
// was found.
func (d DB) Lookup(name string) (Spec, bool) {
	s, ok := d.byName[name]
	return s, ok
}

// Names returns every canonical and alias model name in the database.
func (d DB) Names() []string {
	out := make([]string, 0, len(d.byName))
	for name := range d.byName {
		out = append(out, name)
	}
	return out
}

// Load builds the database from the bundled static table.
func Load() DB {
	return build(builtinRecords)
}

func build(records []record) DB {
	db := DB{byName: map[string]Spec{}}
	for _, r := range records {
		spec := withDefaults(r)
		db.byName[spec.Model] = spec
		for _, alias := range spec.Models {
			view := spec
			view.Model = alias
			db.byName[alias] = view
		}
	}
	return db
}

// DetectModel strips a trailing " Series" suffix from an IEEE 1284 MDL
// field, as spec §4.H describes for USB identification strings.
func DetectModel(mdl string) string {
	return strings.TrimSuffix(strings.TrimSpace(mdl), " Series")
}
