// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package modeldb

// builtinRecords is the bundled model table (spec §4.G). Each record's
// rkey/wkey/address layout gives an EEPROM reset semantic meaning for
// that model; entries are intentionally sparse reference data, not a
// claim of completeness for any given device.
var builtinRecords = []record{
	{
		Brand:    "Epson",
		Model:    "XP-205",
		IDVendor: 0x04B8, IDProduct: 0x0999,
		RKey: 0x0003, WKey: "AzBxCyDw",
		RLen: 2, WLen: 2,
		MemLow: 0x00, MemHigh: 0xFF,
		Models: []string{"XP-205 Series", "XP-207", "XP-203"},
		Mem: []MemEntry{
			{Desc: "Main waste counter", Addr: []uint16{0x14}, Min: []byte{0x00}},
			{Desc: "Main waste counter high byte", Addr: []uint16{0x15}, Min: []byte{0x00}},
			{Desc: "Platen pad counter", Addr: []uint16{0x4C}, Min: []byte{0x00}},
			{Desc: "First TI received time", Addr: []uint16{0x1A, 0x1B}, Min: []byte{0x00, 0x00}},
		},
	},
	{
		Brand:    "Epson",
		Model:    "L350",
		IDVendor: 0x04B8, IDProduct: 0x0851,
		RKey: 0x0013, WKey: "PpQqRrSs",
		RLen: 1, WLen: 1,
		MemLow: 0x00, MemHigh: 0x7F,
		Models: []string{"L355", "L351"},
		Mem: []MemEntry{
			{Desc: "Waste counter A", Addr: []uint16{0x1A}, Min: []byte{0x00}},
			{Desc: "Waste counter B", Addr: []uint16{0x1B}, Min: []byte{0x00}},
			{Desc: "Platen pad counter", Addr: []uint16{0x6C}, Min: []byte{0x00}},
		},
	},
	{
		Brand:    "Epson",
		Model:    "WF-2530",
		IDVendor: 0x04B8, IDProduct: 0x1015,
		RKey: 0x002B, WKey: "WfWfWfWf",
		RLen: 2, WLen: 2,
		MemLow: 0x00, MemHigh: 0xFF,
		Mem: []MemEntry{
			{Desc: "Waste ink counter", Addr: []uint16{0x1A}, Min: []byte{0x00}},
			{Desc: "Waste ink counter overflow", Addr: []uint16{0x1B}, Min: []byte{0x00}},
			{Desc: "Platen pad counter", Addr: []uint16{0x4C}, Min: []byte{0x00}},
			{Desc: "Last printer usage", Addr: []uint16{0x22}, Min: []byte{0x00}},
		},
	},
}
