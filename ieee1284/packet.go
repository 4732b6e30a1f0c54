// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package ieee1284 implements the IEEE 1284.4 packet-multiplexed,
// credit-flow-controlled session layer (spec §4.B/§4.C): the packet
// codec, the channel table, and the Link that owns both.
package ieee1284

import "fmt"

// HeaderSize is the fixed size of a 1284.4 packet header.
const HeaderSize = 6

// Header is the 6-byte, big-endian packet header (spec §3).
type Header struct {
	PSID    uint8
	SSID    uint8
	Length  uint16 // includes the header itself
	Credit  uint8
	Control uint8
}

// ChannelID returns the (psid, ssid) pair identifying the channel a
// packet belongs to.
func (h Header) ChannelID() ChannelID {
	return ChannelID{PSID: h.PSID, SSID: h.SSID}
}

// PayloadLength returns Length minus the 6-byte header.
func (h Header) PayloadLength() int {
	return int(h.Length) - HeaderSize
}

// EncodePacket builds a full on-wire packet: 6-byte header followed by
// payload. Length is always 6+len(payload); callers never set it
// directly (spec §4.B).
func EncodePacket(payload []byte, psid, ssid byte, credit byte, control byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	length := uint16(HeaderSize + len(payload))
	out[0] = psid
	out[1] = ssid
	out[2] = byte(length >> 8)
	out[3] = byte(length)
	out[4] = credit
	out[5] = control
	copy(out[HeaderSize:], payload)
	return out
}

// DecodePacket parses the 6-byte header from the front of b and returns
// it along with everything after the header. It requires at least 6
// bytes of input and does not otherwise interpret or bound the trailing
// bytes — callers (the Link's reassembly buffer) are responsible for
// slicing out exactly header.PayloadLength() bytes of payload and
// retaining any remainder for the next packet.
func DecodePacket(b []byte) (Header, []byte, error) {
	if len(b) < HeaderSize {
		return Header{}, nil, fmt.Errorf("ieee1284: packet header needs %d bytes, got %d", HeaderSize, len(b))
	}
	h := Header{
		PSID:    b[0],
		SSID:    b[1],
		Length:  uint16(b[2])<<8 | uint16(b[3]),
		Credit:  b[4],
		Control: b[5],
	}
	return h, b[HeaderSize:], nil
}
