// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package device

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseIdentificationNormalizesAndSplitsCMD(t *testing.T) {
	r := require.New(t)
	id := ParseIdentification("MFG:EPSON;MDL:XP-205 Series;CMD:ESCPL2,BDC;")

	r.Equal("EPSON", id.Fields["MFG"])
	r.Equal("XP-205 Series", id.Fields["MDL"])
	r.Equal([]string{"ESCPL2", "BDC"}, id.CMD)
	r.Equal("XP-205", id.Model())
}

func TestParseIdentificationNormalizesLongFormKeys(t *testing.T) {
	r := require.New(t)
	id := ParseIdentification("MANUFACTURER:EPSON;MODEL:WF-2530;COMMAND SET:ESCPL2")

	r.Equal("EPSON", id.Fields["MFG"])
	r.Equal("WF-2530", id.Fields["MDL"])
	r.Equal([]string{"ESCPL2"}, id.CMD)
}
