// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package epson

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFactoryCommandReadKeyChecksum(t *testing.T) {
	r := require.New(t)

	got := FactoryCommand('|', 'A', 0x0003, nil)
	want := []byte{'|', '|', 0x05, 0x00, 0x03, 0x00, 0x41, 0xBE, 0xA0}
	r.Equal(want, got)

	got = FactoryCommand('|', 'B', 0x0003, nil)
	want = []byte{'|', '|', 0x05, 0x00, 0x03, 0x00, 0x42, 0xBD, 0x21}
	r.Equal(want, got)
}

func TestFactoryCommandIncludesInnerPayload(t *testing.T) {
	r := require.New(t)
	got := FactoryCommand('|', 'A', 0x0003, []byte{0x00, 0x10})
	r.Len(got, 11)
	r.Equal(uint16(7), readLE16(got[2:4]))
	r.Equal([]byte{0x00, 0x10}, got[9:])
}

func TestFrameLiteralCommand(t *testing.T) {
	r := require.New(t)
	got := Frame([2]byte{'d', 'i'}, []byte{0x01})
	r.Equal([]byte{'d', 'i', 0x01, 0x00, 0x01}, got)
}
