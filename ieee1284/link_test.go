// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ieee1284

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haukened/epsink/ieee1284/txn"
)

// scriptedPipe is an in-memory pipe.Pipe that answers Read with a
// pre-scripted queue of byte slices, one per call, and records Write
// calls for inspection.
type scriptedPipe struct {
	writes [][]byte
	reads  [][]byte
	idx    int
}

func (p *scriptedPipe) Open() error  { return nil }
func (p *scriptedPipe) Close() error { return nil }

func (p *scriptedPipe) Write(b []byte) (int, error) {
	p.writes = append(p.writes, append([]byte{}, b...))
	return len(b), nil
}

func (p *scriptedPipe) Read(max int) ([]byte, error) {
	if p.idx >= len(p.reads) {
		return nil, nil
	}
	r := p.reads[p.idx]
	p.idx++
	return r, nil
}

func mustPacket(t *testing.T, rev txn.Revision, cmd string, args map[string]uint64, trailing string) []byte {
	t.Helper()
	wire, err := txn.Encode(rev, cmd, args, trailing)
	require.NoError(t, err)
	return EncodePacket(wire, 0x00, 0x00, 1, 0)
}

func TestOpenSwitchesRevisionOnInitReply02(t *testing.T) {
	r := require.New(t)
	p := &scriptedPipe{reads: [][]byte{
		mustPacket(t, txn.Rev20, "InitReply", map[string]uint64{"Result": 0x02, "Revision": 0x10}, ""),
		mustPacket(t, txn.Rev10, "InitReply", map[string]uint64{"Result": 0x00, "Revision": 0x10}, ""),
	}}
	l := NewLink(p, false)

	r.NoError(l.Open())
	r.Equal(txn.Rev10, l.Revision())

	// First Init used revision 0x20, second used 0x10.
	r.Equal(byte(0x00), p.writes[0][HeaderSize])   // opcode
	r.Equal(byte(0x20), p.writes[0][HeaderSize+1]) // Revision field
	r.Equal(byte(0x10), p.writes[1][HeaderSize+1])
}

func TestSendIssuesCreditRequestOnceThenSendsPayload(t *testing.T) {
	r := require.New(t)
	p := &scriptedPipe{reads: [][]byte{
		mustPacket(t, txn.Rev20, "CreditRequestReply", map[string]uint64{"Result": 0, "AddCredit": 1}, ""),
	}}
	l := NewLink(p, false)
	l.rev = txn.Rev20
	ch := newChannel(ChannelID{0x02, 0x02}, "EPSON-CTRL")
	l.channels[ch.ID] = ch

	n, err := l.Send(ch, []byte{0xAA, 0xBB})
	r.NoError(err)
	r.Equal(HeaderSize+2, n)

	r.Len(p.writes, 2)
	r.Equal(byte(0x04), p.writes[0][HeaderSize]) // CreditRequest opcode
	_, payload, derr := DecodePacket(p.writes[1])
	r.NoError(derr)
	r.Equal([]byte{0xAA, 0xBB}, payload)
	r.Equal(0, ch.Credit())
}

func TestRetreiveReassemblesSplitPacketExactlyOnce(t *testing.T) {
	r := require.New(t)
	payload := []byte{0x11, 0x22, 0x33}
	full := EncodePacket(payload, 0x02, 0x02, 2, 0)

	p := &scriptedPipe{reads: [][]byte{
		full[:3],
		full[3:],
	}}
	l := NewLink(p, false)
	ch := newChannel(ChannelID{0x02, 0x02}, "EPSON-CTRL")
	l.channels[ch.ID] = ch
	deliveries := 0
	ch.SetOnReceived(func([]byte) { deliveries++ })

	h, got, ok, err := l.retreive(6)
	r.NoError(err)
	r.True(ok)
	r.Equal(payload, got)
	r.Equal(1, deliveries)
	r.Equal(2, ch.Credit())
	r.Empty(l.leftover)

	r.Equal(h.ChannelID(), ch.ID)
}

func TestNestedOpenCloseInitAndExitOnce(t *testing.T) {
	r := require.New(t)
	p := &scriptedPipe{reads: [][]byte{
		mustPacket(t, txn.Rev20, "InitReply", map[string]uint64{"Result": 0x00, "Revision": 0x20}, ""),
	}}
	l := NewLink(p, false)

	r.NoError(l.Open())
	r.NoError(l.Open())
	r.Equal(2, func() int { l.mu.Lock(); defer l.mu.Unlock(); return l.scope }())

	r.NoError(l.Close())
	// Still one level of scope open: no Exit yet.
	for _, w := range p.writes {
		r.NotEqual(byte(0x08), w[HeaderSize], "Exit must not be sent before outermost close")
	}

	r.NoError(l.Close())
	sawExit := false
	for _, w := range p.writes {
		if w[HeaderSize] == 0x08 {
			sawExit = true
		}
	}
	r.True(sawExit)

	initCount := 0
	for _, w := range p.writes {
		if w[HeaderSize] == 0x00 {
			initCount++
		}
	}
	r.Equal(1, initCount)
}

func TestInjectPacketAppliesCreditBeforeDelivery(t *testing.T) {
	r := require.New(t)
	p := &scriptedPipe{}
	l := NewLink(p, false)
	ch := newChannel(ChannelID{0x03, 0x03}, "X")
	l.channels[ch.ID] = ch

	var creditAtDelivery int
	ch.SetOnReceived(func([]byte) { creditAtDelivery = ch.Credit() })

	l.InjectPacket(Header{PSID: 3, SSID: 3, Credit: 7, Length: HeaderSize + 1}, []byte{0x01})
	r.Equal(7, creditAtDelivery)
}
