// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package epson

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/haukened/epsink/modeldb"
)

// Result is one EEPROM read outcome: Value is nil when the echoed
// address didn't match what was requested (spec §4.F).
type Result struct {
	Addr  uint16
	Value *byte
}

// AddrValue is one EEPROM write request.
type AddrValue struct {
	Addr  uint16
	Value byte
}

// Operation is a named, ready-to-run reset action (spec §9: a registry
// entry, not a reflected-over bound method).
type Operation struct {
	ID          string
	Description string
	Action      func() (bool, error)
}

// factoryCaller is the slice of Ctrl that EEPROM depends on; satisfied
// by *Ctrl and by test doubles that skip the 1284.4 link entirely.
type factoryCaller interface {
	CallFactory(outer, inner byte, rkey uint16, innerPayload []byte) ([]byte, error)
}

// EEPROM performs reads, writes and reset operations against a model's
// EEPROM over a Ctrl channel (spec §4.F).
type EEPROM struct {
	ctrl factoryCaller
	spec modeldb.Spec
}

// NewEEPROM binds ctrl to the given model spec.
func NewEEPROM(ctrl *Ctrl, spec modeldb.Spec) *EEPROM {
	return &EEPROM{ctrl: ctrl, spec: spec}
}

// SetSpec reassigns the active model spec; orthogonal to the ctrl
// channel's lifecycle (spec §3 "Lifecycle").
func (e *EEPROM) SetSpec(spec modeldb.Spec) { e.spec = spec }

// Spec returns the currently active model spec.
func (e *EEPROM) Spec() modeldb.Spec { return e.spec }

func packLE(v uint16, width int) []byte {
	if width <= 1 {
		return []byte{byte(v)}
	}
	return []byte{byte(v), byte(v >> 8)}
}

func addressRange(low, high uint16) []uint16 {
	out := make([]uint16, 0, int(high)-int(low)+1)
	for a := low; ; a++ {
		out = append(out, a)
		if a == high {
			break
		}
	}
	return out
}

// parseEEPROMReply extracts addr/value from a reply of the form
// "@BDC PS EE:<6 hex chars>;": rlen*2 hex digits of address, big-endian,
// then 2 hex digits of value (spec §4.F).
func parseEEPROMReply(reply []byte, rlen int) (addr uint16, value byte, ok bool) {
	s := string(reply)
	idx := strings.Index(s, "EE:")
	if idx < 0 {
		return 0, 0, false
	}
	hexLen := rlen*2 + 2
	start := idx + 3
	if start+hexLen > len(s) {
		return 0, 0, false
	}
	raw, err := hex.DecodeString(s[start : start+hexLen])
	if err != nil || len(raw) != rlen+1 {
		return 0, 0, false
	}
	for i := 0; i < rlen; i++ {
		addr = addr<<8 | uint16(raw[i])
	}
	return addr, raw[rlen], true
}

func (e *EEPROM) readOne(addr uint16) (Result, error) {
	reply, err := e.ctrl.CallFactory('|', 'A', e.spec.RKey, packLE(addr, e.spec.RLen))
	if err != nil {
		return Result{Addr: addr}, err
	}
	gotAddr, value, ok := parseEEPROMReply(reply, e.spec.RLen)
	if !ok || gotAddr != addr {
		Logger.Printf("address 0x%X not echoed in reply, treating as none", addr)
		return Result{Addr: addr}, nil
	}
	v := value
	return Result{Addr: addr, Value: &v}, nil
}

// Read reads each address in addrs, or every address in
// [MemLow, MemHigh] when addrs is empty.
func (e *EEPROM) Read(addrs ...uint16) ([]Result, error) {
	if len(addrs) == 0 {
		addrs = addressRange(e.spec.MemLow, e.spec.MemHigh)
	}
	out := make([]Result, 0, len(addrs))
	for _, a := range addrs {
		res, err := e.readOne(a)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (e *EEPROM) writeOne(addr uint16, value byte, checkRead bool) (bool, error) {
	if len(e.spec.WKey) != 8 {
		return false, ErrMissingWriteKey
	}
	payload := append(packLE(addr, e.spec.WLen), value)
	payload = append(payload, e.spec.WKey...)
	reply, err := e.ctrl.CallFactory('|', 'B', e.spec.RKey, payload)
	if err != nil {
		return false, err
	}
	if !bytes.Contains(reply, []byte(":OK;")) {
		return false, nil
	}
	if !checkRead {
		return true, nil
	}
	res, err := e.readOne(addr)
	if err != nil {
		return false, err
	}
	ok := res.Value != nil && *res.Value == value
	if !ok {
		Logger.Printf("warning: readback of address 0x%X did not return 0x%02X", addr, value)
	}
	return ok, nil
}

// Write performs each (addr, value) pair in order. When atomic is true
// it reads every target address first and, if any pair fails, restores
// the previously read values with a best-effort (non-atomic) write
// before returning false (spec §4.F).
func (e *EEPROM) Write(pairs []AddrValue, atomic, checkRead bool) (bool, error) {
	var prev []Result
	if atomic {
		addrs := make([]uint16, len(pairs))
		for i, p := range pairs {
			addrs[i] = p.Addr
		}
		var err error
		prev, err = e.Read(addrs...)
		if err != nil {
			return false, err
		}
	}

	ok := true
	for _, p := range pairs {
		success, err := e.writeOne(p.Addr, p.Value, checkRead)
		if err != nil {
			return false, err
		}
		if !success {
			ok = false
		}
	}

	if !ok && atomic {
		for _, r := range prev {
			if r.Value == nil {
				continue
			}
			if _, err := e.writeOne(r.Addr, *r.Value, false); err != nil {
				Logger.Printf("warning: rollback of address 0x%X failed: %v", r.Addr, err)
			}
		}
	}
	return ok, nil
}

func slugify(desc string) string {
	var b strings.Builder
	for _, r := range desc {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func hexAddrs(addrs []uint16) string {
	var b strings.Builder
	for _, a := range addrs {
		fmt.Fprintf(&b, "x%X", a)
	}
	return b.String()
}

func (e *EEPROM) resetEntries(entries []modeldb.MemEntry) (bool, error) {
	values := map[uint16]byte{}
	var order []uint16
	for _, m := range entries {
		for addr, v := range m.ResetValues() {
			if _, seen := values[addr]; !seen {
				order = append(order, addr)
			}
			values[addr] = v
		}
	}
	pairs := make([]AddrValue, len(order))
	for i, a := range order {
		pairs[i] = AddrValue{Addr: a, Value: values[a]}
	}
	return e.Write(pairs, true, true)
}

// aggregatePatterns are the case-insensitive substrings that group mem
// entries into a single combined reset operation (spec §4.F).
var aggregatePatterns = []struct {
	match string
	id    string
	desc  string
}{
	{"waste counter", "do_reset_All_waste_counters", "Reset all waste counters"},
	{"platen pad counter", "do_reset_All_platen_pad_counters", "Reset all platen pad counters"},
}

// ResetOperations builds one named operation per mem entry, plus the
// aggregate waste-counter/platen-pad-counter operations (spec §4.F,
// §9 registry design note).
func (e *EEPROM) ResetOperations() []Operation {
	ops := make([]Operation, 0, len(e.spec.Mem)+len(aggregatePatterns))
	for _, m := range e.spec.Mem {
		m := m
		ops = append(ops, Operation{
			ID:          fmt.Sprintf("do_reset_%s_%s", slugify(m.Desc), hexAddrs(m.Addr)),
			Description: "Reset " + m.Desc,
			Action:      func() (bool, error) { return e.resetEntries([]modeldb.MemEntry{m}) },
		})
	}
	for _, agg := range aggregatePatterns {
		var group []modeldb.MemEntry
		for _, m := range e.spec.Mem {
			if strings.Contains(strings.ToLower(m.Desc), agg.match) {
				group = append(group, m)
			}
		}
		if len(group) == 0 {
			continue
		}
		group := group
		ops = append(ops, Operation{
			ID:          agg.id,
			Description: agg.desc,
			Action:      func() (bool, error) { return e.resetEntries(group) },
		})
	}
	return ops
}

// FindRKey sets candidate read keys from low to high and reads
// knownAddr, returning the first candidate whose reply echoes a value
// (spec §4.F).
func (e *EEPROM) FindRKey(knownAddr, low, high uint16) (uint16, bool, error) {
	for candidate := low; ; candidate++ {
		e.spec.RKey = candidate
		res, err := e.readOne(knownAddr)
		if err != nil {
			return 0, false, err
		}
		if res.Value != nil {
			return candidate, true, nil
		}
		if candidate == high {
			return 0, false, nil
		}
	}
}

// FindWKey reads addr's current value, then tries writing value+1 with
// each candidate key. On the first verified success it restores the
// original value using that same candidate key — not any previously
// known key — and adopts it (spec §4.F, §9: preserved deliberately,
// correct only because the candidate was just accepted).
func (e *EEPROM) FindWKey(candidates [][]byte, addr uint16) ([]byte, bool, error) {
	orig, err := e.readOne(addr)
	if err != nil {
		return nil, false, err
	}
	if orig.Value == nil {
		return nil, false, fmt.Errorf("epson: cannot read reference address 0x%X", addr)
	}
	v := *orig.Value

	for _, cand := range candidates {
		e.spec.WKey = cand
		ok, err := e.writeOne(addr, v+1, true)
		if err != nil {
			Logger.Printf("warning: find_wkey candidate write failed: %v", err)
			continue
		}
		if !ok {
			continue
		}
		if _, err := e.writeOne(addr, v, false); err != nil {
			Logger.Printf("warning: find_wkey restore failed: %v", err)
		}
		return cand, true, nil
	}
	return nil, false, nil
}
