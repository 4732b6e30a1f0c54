// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package epson

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haukened/epsink/modeldb"
)

// scriptedCaller answers inner 'A' reads from a map keyed by address and
// records inner 'B' writes, letting tests script EEPROM reads/writes
// without a real link.
type scriptedCaller struct {
	reads  map[uint16][]byte // addr -> reply for inner 'A'
	writes []AddrValue       // records every inner 'B' call
	okOn   map[uint16]bool   // addr -> whether a 'B' call reports ":OK;"
}

func (c *scriptedCaller) CallFactory(outer, inner byte, rkey uint16, payload []byte) ([]byte, error) {
	switch inner {
	case 'A':
		addr := uint16(payload[0]) | uint16(payload[1])<<8
		if reply, ok := c.reads[addr]; ok {
			return reply, nil
		}
		return []byte("@BDC PS EE:000000;"), nil
	case 'B':
		addr := uint16(payload[0]) | uint16(payload[1])<<8
		value := payload[2]
		c.writes = append(c.writes, AddrValue{Addr: addr, Value: value})
		c.reads[addr] = []byte(fmt.Sprintf("@BDC PS EE:%04X%02X;", addr, value))
		if c.okOn[addr] {
			return []byte("@BDC PS EE:OK;"), nil
		}
		return []byte("@BDC PS EE:NG;"), nil
	}
	return nil, nil
}

func newSpec() modeldb.Spec {
	return modeldb.Spec{
		RKey: 0x0003, WKey: []byte("Azzzzzzz"), RLen: 2, WLen: 2,
		MemLow: 0x00, MemHigh: 0xFF,
	}
}

func TestReadEEPROMParsesMatchingAddress(t *testing.T) {
	r := require.New(t)
	c := &scriptedCaller{reads: map[uint16][]byte{5: []byte("@BDC PS EE:00050F;")}}
	e := NewEEPROM(nil, newSpec())
	e.ctrl = c

	got, err := e.Read(5)
	r.NoError(err)
	r.Len(got, 1)
	r.NotNil(got[0].Value)
	r.Equal(byte(0x0F), *got[0].Value)
}

func TestReadEEPROMMismatchedAddressYieldsNone(t *testing.T) {
	r := require.New(t)
	c := &scriptedCaller{reads: map[uint16][]byte{5: []byte("@BDC PS EE:00090F;")}}
	e := NewEEPROM(nil, newSpec())
	e.ctrl = c

	got, err := e.Read(5)
	r.NoError(err)
	r.Len(got, 1)
	r.Nil(got[0].Value)
}

func TestWriteEEPROMAtomicFailureRollsBackOriginal(t *testing.T) {
	r := require.New(t)
	c := &scriptedCaller{
		reads: map[uint16][]byte{0x10: []byte("@BDC PS EE:001042;")},
		okOn:  map[uint16]bool{0x10: false},
	}
	e := NewEEPROM(nil, newSpec())
	e.ctrl = c

	ok, err := e.Write([]AddrValue{{Addr: 0x10, Value: 0x00}}, true, true)
	r.NoError(err)
	r.False(ok)

	r.Len(c.writes, 2)
	r.Equal(AddrValue{Addr: 0x10, Value: 0x00}, c.writes[0])
	r.Equal(AddrValue{Addr: 0x10, Value: 0x42}, c.writes[1])
}

func TestWriteEEPROMSucceedsOnOKAndMatchingReadback(t *testing.T) {
	r := require.New(t)
	c := &scriptedCaller{
		reads: map[uint16][]byte{0x10: []byte("@BDC PS EE:001042;")},
		okOn:  map[uint16]bool{0x10: true},
	}
	e := NewEEPROM(nil, newSpec())
	e.ctrl = c

	ok, err := e.Write([]AddrValue{{Addr: 0x10, Value: 0x00}}, true, true)
	r.NoError(err)
	r.True(ok)
	r.Len(c.writes, 1)
}

func TestResetOperationsAggregateWasteCounters(t *testing.T) {
	r := require.New(t)
	spec := newSpec()
	spec.Mem = []modeldb.MemEntry{
		{Desc: "Main waste counter", Addr: []uint16{0x14}, Min: []byte{0x00}},
		{Desc: "Secondary waste counter", Addr: []uint16{0x15}, Min: []byte{0x00}},
		{Desc: "Platen pad counter", Addr: []uint16{0x4C}, Min: []byte{0x00}},
	}
	c := &scriptedCaller{
		reads: map[uint16][]byte{
			0x14: []byte("@BDC PS EE:001400;"),
			0x15: []byte("@BDC PS EE:001500;"),
			0x4C: []byte("@BDC PS EE:4C0000;"),
		},
		okOn: map[uint16]bool{0x14: true, 0x15: true, 0x4C: true},
	}
	e := NewEEPROM(nil, spec)
	e.ctrl = c

	ops := e.ResetOperations()
	var agg *Operation
	for i := range ops {
		if ops[i].ID == "do_reset_All_waste_counters" {
			agg = &ops[i]
		}
	}
	r.NotNil(agg)

	ok, err := agg.Action()
	r.NoError(err)
	r.True(ok)

	written := map[uint16]bool{}
	for _, w := range c.writes {
		written[w.Addr] = true
	}
	r.True(written[0x14])
	r.True(written[0x15])
	r.False(written[0x4C])
}

func TestFindWKeyAdoptsAndRestoresWithCandidateKey(t *testing.T) {
	r := require.New(t)
	c := &scriptedCaller{
		reads: map[uint16][]byte{0x00: []byte("@BDC PS EE:000042;")},
		okOn:  map[uint16]bool{0x00: true},
	}
	e := NewEEPROM(nil, newSpec())
	e.ctrl = c

	key, ok, err := e.FindWKey([][]byte{[]byte("CandKey1")}, 0x00)
	r.NoError(err)
	r.True(ok)
	r.Equal([]byte("CandKey1"), key)

	r.Len(c.writes, 2)
	r.Equal(byte(0x43), c.writes[0].Value)
	r.Equal(byte(0x42), c.writes[1].Value)
}
