// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package device

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haukened/epsink/ieee1284"
	"github.com/haukened/epsink/ieee1284/txn"
	"github.com/haukened/epsink/modeldb"
)

// scriptedDevicePipe answers Read with a pre-scripted queue of raw
// wire packets, one per call, and records every Write for inspection.
type scriptedDevicePipe struct {
	writes [][]byte
	reads  [][]byte
	idx    int
}

func (p *scriptedDevicePipe) Open() error  { return nil }
func (p *scriptedDevicePipe) Close() error { return nil }

func (p *scriptedDevicePipe) Write(b []byte) (int, error) {
	p.writes = append(p.writes, append([]byte{}, b...))
	return len(b), nil
}

func (p *scriptedDevicePipe) Read(max int) ([]byte, error) {
	if p.idx >= len(p.reads) {
		return nil, nil
	}
	r := p.reads[p.idx]
	p.idx++
	return r, nil
}

func mustTxnPacket(t *testing.T, rev txn.Revision, name string, args map[string]uint64, trailing string) []byte {
	t.Helper()
	wire, err := txn.Encode(rev, name, args, trailing)
	require.NoError(t, err)
	return ieee1284.EncodePacket(wire, 0x00, 0x00, 1, 0)
}

// TestOpenIdentifyDetectsModel reproduces the spec's end-to-end scenario:
// enter 1284.4, negotiate Init 0x20, open the ctrl channel, send the
// "di" identification command, and detect the model from the reply.
func TestOpenIdentifyDetectsModel(t *testing.T) {
	r := require.New(t)

	idPayload := []byte("@EJL ID MFG:EPSON;MDL:XP-205 Series;CMD:ESCPL2,BDC;")
	idReply := ieee1284.EncodePacket(idPayload, 0x02, 0x02, 0, 0)

	p := &scriptedDevicePipe{reads: [][]byte{
		ieee1284.EpsonPreambleReply,
		mustTxnPacket(t, txn.Rev20, "InitReply", map[string]uint64{"Result": 0x00, "Revision": 0x20}, ""),
		mustTxnPacket(t, txn.Rev20, "OpenChannelReply", map[string]uint64{"Result": 0x00}, ""),
		mustTxnPacket(t, txn.Rev20, "CreditRequestReply", map[string]uint64{"Result": 0x00, "AddCredit": 1}, ""),
		idReply,
	}}

	dev := New(p, modeldb.Load(), true)
	r.NoError(dev.Open())
	defer dev.Close()

	model, err := dev.DetectModel()
	r.NoError(err)
	r.Equal("XP-205", model)
	r.NotNil(dev.EEPROM())
}
