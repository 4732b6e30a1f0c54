// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package txn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTripAllRev20Commands(t *testing.T) {
	r := require.New(t)
	specsByName, ok := Table(Rev20)
	r.True(ok)

	cases := map[string]map[string]uint64{
		"Init":           {"Revision": 0x20},
		"OpenChannel":    {"SidP": 0x02, "SidS": 0x02, "MaxPTS": 0x100, "MaxSTP": 0x100, "MaxCredit": 4},
		"CloseChannel":   {"SidP": 0x02, "SidS": 0x02},
		"Credit":         {"SidP": 0x02, "SidS": 0x02, "Add": 5},
		"CreditRequest":  {"SidP": 0x02, "SidS": 0x02, "Max": 0},
		"Exit":           {},
		"GetServiceName": {"Sid": 0x02},
		"GetSocketID":    {},
		"Error":          {"PSID": 0x00, "SSID": 0x00, "Code": 0x81},

		"InitReply":           {"Result": 0x00, "Revision": 0x20},
		"OpenChannelReply":    {"Result": 0x00},
		"CloseChannelReply":   {"Result": 0x00},
		"CreditRequestReply":  {"Result": 0x00, "AddCredit": 1},
		"GetSocketIDReply":    {"Result": 0x00, "Sid": 0x02},
		"GetServiceNameReply": {"Result": 0x00, "Sid": 0x02},
	}

	for name, args := range cases {
		wire, err := Encode(Rev20, name, args, "")
		r.NoError(err, name)
		r.Equal(specsByName[name].Opcode, wire[0], name)

		d, err := Decode(Rev20, wire)
		r.NoError(err, name)
		r.Equal(name, d.Name)
		for k, v := range args {
			r.Equal(v, d.Fields[k], "%s.%s", name, k)
		}
	}
}

func TestTrailingASCIIRoundTrip(t *testing.T) {
	r := require.New(t)
	for _, name := range []string{"ABC", "EPSON-CTRL", "!#$%&'()*+,-./09:;<=>?"} {
		wire, err := Encode(Rev20, "GetSocketID", nil, name)
		r.NoError(err)
		d, err := Decode(Rev20, wire)
		r.NoError(err)
		r.Equal(name, d.Trailing)
	}
}

func TestDecodeToleratesTruncatedReply(t *testing.T) {
	r := require.New(t)
	// A full CreditRequestReply is opcode + result(1) + addCredit(2) = 4 bytes.
	// Simulate a device that only sends opcode + result.
	short := []byte{0x04 + 0x80, 0x00}
	d, err := Decode(Rev20, short)
	r.NoError(err)
	r.Equal("CreditRequestReply", d.Name)
	r.Equal(uint64(0), d.Fields["Result"])
	_, hasAddCredit := d.Fields["AddCredit"]
	r.False(hasAddCredit)
}

func TestRev10AddsPaddingFields(t *testing.T) {
	r := require.New(t)
	wire, err := Encode(Rev10, "CloseChannel", map[string]uint64{"SidP": 1, "SidS": 2, "Pad": 0}, "")
	r.NoError(err)
	r.Len(wire, 4) // opcode + sidP + sidS + pad

	d, err := Decode(Rev10, wire)
	r.NoError(err)
	r.Contains(d.Fields, "Pad")
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, err := Decode(Rev20, []byte{0xF0})
	require.Error(t, err)
}

func TestDecodeUnknownRevision(t *testing.T) {
	_, err := Decode(Revision(0x99), []byte{0x01, 0x20})
	require.Error(t, err)
}
