// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package txn implements the 1284.4 transaction command protocol
// (spec §4.D): two revision-tagged command tables (0x10 and 0x20), and
// encode/decode for the named commands and replies that ride on the
// transaction channel. Switching revisions rebinds which table is
// consulted, not the type doing the consulting (spec §9 design notes).
package txn

import (
	"fmt"
	"strings"
)

// Revision identifies which 1284.4 wire revision a command table speaks.
type Revision uint8

const (
	Rev10 Revision = 0x10
	Rev20 Revision = 0x20
)

// ErrorOpcode is the unsolicited asynchronous error report opcode
// (spec §3), which has no matching request and is not a request+0x80
// reply to anything.
const ErrorOpcode = 0x7F

// field is one big-endian, fixed-width field in a command's wire layout.
type field struct {
	Name string
	Size int // bytes; 1 or 2
}

// Spec describes one named command's wire opcode and layout. A command
// with HasTrailingName expects/produces a trailing ASCII string after
// the fixed fields (e.g. GetSocketID's requested service name).
type Spec struct {
	Opcode          byte
	Name            string
	Fields          []field
	HasTrailingName bool
	Defaults        map[string]uint64
}

func f(name string, size int) field { return field{Name: name, Size: size} }

// table is one revision's full set of request/reply specs, keyed both
// by name and by opcode for the two directions decode needs.
type table struct {
	byName   map[string]Spec
	byOpcode map[byte]Spec
}

func newTable(specs []Spec) table {
	t := table{byName: map[string]Spec{}, byOpcode: map[byte]Spec{}}
	for _, s := range specs {
		t.byName[s.Name] = s
		t.byOpcode[s.Opcode] = s
	}
	return t
}

// reply synthesizes the Reply spec (opcode+0x80) for a request spec with
// the given reply fields.
func reply(req Spec, fields ...field) Spec {
	return Spec{Opcode: req.Opcode + 0x80, Name: req.Name + "Reply", Fields: fields}
}

var rev20Base = []Spec{
	{Opcode: 0x00, Name: "Init", Fields: []field{f("Revision", 1)}},
	{Opcode: 0x01, Name: "OpenChannel", Fields: []field{
		f("SidP", 1), f("SidS", 1), f("MaxPTS", 2), f("MaxSTP", 2), f("MaxCredit", 2),
	}, Defaults: map[string]uint64{"MaxPTS": 0x100, "MaxSTP": 0x100, "MaxCredit": 0}},
	{Opcode: 0x02, Name: "CloseChannel", Fields: []field{f("SidP", 1), f("SidS", 1)}},
	{Opcode: 0x03, Name: "Credit", Fields: []field{f("SidP", 1), f("SidS", 1), f("Add", 2)}},
	{Opcode: 0x04, Name: "CreditRequest", Fields: []field{f("SidP", 1), f("SidS", 1), f("Max", 2)},
		Defaults: map[string]uint64{"Max": 0}},
	{Opcode: 0x08, Name: "Exit", Fields: nil},
	{Opcode: 0x09, Name: "GetSocketID", Fields: nil, HasTrailingName: true},
	{Opcode: 0x0A, Name: "GetServiceName", Fields: []field{f("Sid", 1)}},
	{Opcode: ErrorOpcode, Name: "Error", Fields: []field{f("PSID", 1), f("SSID", 1), f("Code", 1)}},
}

func rev20Specs() []Spec {
	specs := append([]Spec{}, rev20Base...)
	byName := map[string]Spec{}
	for _, s := range rev20Base {
		byName[s.Name] = s
	}
	specs = append(specs,
		reply(byName["Init"], f("Result", 1), f("Revision", 1)),
		reply(byName["OpenChannel"], f("Result", 1)),
		reply(byName["CloseChannel"], f("Result", 1)),
		reply(byName["CreditRequest"], f("Result", 1), f("AddCredit", 2)),
		Spec{Opcode: byName["GetSocketID"].Opcode + 0x80, Name: "GetSocketIDReply",
			Fields: []field{f("Result", 1), f("Sid", 1)}},
		Spec{Opcode: byName["GetServiceName"].Opcode + 0x80, Name: "GetServiceNameReply",
			Fields: []field{f("Result", 1), f("Sid", 1)}, HasTrailingName: true},
	)
	return specs
}

// rev10Specs differs from rev20 by extra single-byte padding fields on
// OpenChannel, CloseChannel and CreditRequest (spec §4.D).
func rev10Specs() []Spec {
	specs := rev20Specs()
	for i, s := range specs {
		switch s.Name {
		case "OpenChannel":
			specs[i].Fields = []field{
				f("SidP", 1), f("SidS", 1), f("Pad", 1), f("MaxPTS", 2), f("MaxSTP", 2), f("MaxCredit", 2),
			}
		case "CloseChannel":
			specs[i].Fields = []field{f("SidP", 1), f("SidS", 1), f("Pad", 1)}
		case "CreditRequest":
			specs[i].Fields = []field{f("SidP", 1), f("SidS", 1), f("Pad", 1), f("Max", 2)}
		}
	}
	return specs
}

var tables = map[Revision]table{
	Rev20: newTable(rev20Specs()),
	Rev10: newTable(rev10Specs()),
}

// Table returns the command table for rev, or false if rev is unknown.
func Table(rev Revision) (specsByName map[string]Spec, ok bool) {
	t, ok := tables[rev]
	if !ok {
		return nil, false
	}
	return t.byName, true
}

// Encode builds the wire bytes for the named command in the given
// revision: opcode byte, big-endian fixed fields (values not present in
// args fall back to the spec's Defaults, then zero), and an optional
// trailing ASCII field.
func Encode(rev Revision, name string, args map[string]uint64, trailing string) ([]byte, error) {
	t, ok := tables[rev]
	if !ok {
		return nil, fmt.Errorf("txn: unknown revision 0x%02X", rev)
	}
	spec, ok := t.byName[name]
	if !ok {
		return nil, fmt.Errorf("txn: unknown command %q for revision 0x%02X", name, rev)
	}
	out := []byte{spec.Opcode}
	for _, fl := range spec.Fields {
		v, present := args[fl.Name]
		if !present {
			v = spec.Defaults[fl.Name]
		}
		out = appendBE(out, v, fl.Size)
	}
	if spec.HasTrailingName {
		out = append(out, []byte(trailing)...)
	}
	return out, nil
}

// Decoded is the result of decoding one transaction command or reply.
type Decoded struct {
	Name     string
	Opcode   byte
	Fields   map[string]uint64
	Trailing string
}

// Decode looks up b[0] as an opcode in rev's table and parses its
// fields. Some devices reply short: if the full fixed-field layout does
// not fit, Decode successively drops trailing fields (in reverse
// declaration order) until what remains fits the input, per spec §4.D.
func Decode(rev Revision, b []byte) (Decoded, error) {
	t, ok := tables[rev]
	if !ok {
		return Decoded{}, fmt.Errorf("txn: unknown revision 0x%02X", rev)
	}
	if len(b) == 0 {
		return Decoded{}, fmt.Errorf("txn: empty packet")
	}
	spec, ok := t.byOpcode[b[0]]
	if !ok {
		return Decoded{}, fmt.Errorf("txn: unknown opcode 0x%02X", b[0])
	}

	body := b[1:]
	fields := spec.Fields
	for {
		need := 0
		for _, fl := range fields {
			need += fl.Size
		}
		if need <= len(body) || len(fields) == 0 {
			break
		}
		fields = fields[:len(fields)-1]
	}

	values := map[string]uint64{}
	off := 0
	for _, fl := range fields {
		if off+fl.Size > len(body) {
			break
		}
		values[fl.Name] = readBE(body[off:off+fl.Size], fl.Size)
		off += fl.Size
	}

	var trailing string
	if spec.HasTrailingName && off < len(body) {
		trailing = strings.TrimRight(string(body[off:]), "\x00")
	}

	return Decoded{Name: spec.Name, Opcode: spec.Opcode, Fields: values, Trailing: trailing}, nil
}

func appendBE(out []byte, v uint64, size int) []byte {
	for i := size - 1; i >= 0; i-- {
		out = append(out, byte(v>>(8*uint(i))))
	}
	return out
}

func readBE(b []byte, size int) uint64 {
	var v uint64
	for i := 0; i < size; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
