// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package epson implements the Epson control message codec and EEPROM
// command layer that ride on top of an IEEE 1284.4 link (spec §4.E,
// §4.F): message framing, factory-command wrapping with the read-key
// checksum triplet, and the EEPROM read/write/reset operations that
// give those messages meaning.
package epson

import "github.com/haukened/epsink/ieee1284"

// CtrlServiceName and CtrlChannelID identify the Epson control channel
// on the 1284.4 link (spec §4.E).
const CtrlServiceName = "EPSON-CTRL"

var CtrlChannelID = ieee1284.ChannelID{PSID: 0x02, SSID: 0x02}

// receiveAttempts bounds how many retrieve rounds Call waits for its
// reply before giving up.
const receiveAttempts = 8

// Rot1 is the factory-command checksum's third byte: a 1-bit rotate
// right within a byte (spec §3).
func Rot1(c byte) byte {
	return ((c >> 1) & 0x7F) | ((c << 7) & 0x80)
}

func appendLE16(out []byte, v uint16) []byte {
	return append(out, byte(v), byte(v>>8))
}

func readLE16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

// Frame wraps payload in the Epson message envelope: 2-byte ASCII
// command, little-endian length, payload (spec §3, §4.E).
func Frame(cmd [2]byte, payload []byte) []byte {
	out := make([]byte, 0, 4+len(payload))
	out = append(out, cmd[0], cmd[1])
	out = appendLE16(out, uint16(len(payload)))
	out = append(out, payload...)
	return out
}

// FactoryCommand builds the synthetic factory form: outer doubled as
// the wire command, payload = rkey LE || c || ~c || rot1(c) || inner.
// The checksum triplet is always emitted, even for models that ignore
// it (spec §3 invariants).
func FactoryCommand(outer, inner byte, rkey uint16, innerPayload []byte) []byte {
	payload := make([]byte, 0, 5+len(innerPayload))
	payload = appendLE16(payload, rkey)
	payload = append(payload, inner, ^inner, Rot1(inner))
	payload = append(payload, innerPayload...)
	return Frame([2]byte{outer, outer}, payload)
}

// Ctrl rides the EPSON-CTRL channel with synchronous call/reply
// semantics: send, then block for the matching payload (spec §4.E).
type Ctrl struct {
	link *ieee1284.Link
	ch   *ieee1284.Channel
}

// NewCtrl acquires (or reuses) the EPSON-CTRL channel on link.
func NewCtrl(link *ieee1284.Link) (*Ctrl, error) {
	id := CtrlChannelID
	ch, err := link.GetChannel(CtrlServiceName, &id)
	if err != nil {
		return nil, err
	}
	return &Ctrl{link: link, ch: ch}, nil
}

// Open issues OpenChannel the first time Open nests from 0 to 1.
func (c *Ctrl) Open() error { return c.link.OpenChannel(c.ch) }

// Close issues CloseChannel when the nested scope returns to 0.
func (c *Ctrl) Close() error { return c.link.CloseChannel(c.ch) }

// Call sends msg and blocks for the reply payload.
func (c *Ctrl) Call(msg []byte) ([]byte, error) {
	if _, err := c.link.Send(c.ch, msg); err != nil {
		return nil, err
	}
	reply, err := c.link.Receive(c.ch, receiveAttempts)
	if err != nil {
		return nil, ErrNoReply
	}
	return reply, nil
}

// CallFactory builds and sends a factory command, returning the raw
// reply payload for the caller to pattern-match.
func (c *Ctrl) CallFactory(outer, inner byte, rkey uint16, innerPayload []byte) ([]byte, error) {
	return c.Call(FactoryCommand(outer, inner, rkey, innerPayload))
}
