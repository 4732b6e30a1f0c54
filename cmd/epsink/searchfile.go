// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"os"
)

// searchMarkers are the byte signatures worth flagging in a capture of
// raw USB traffic: the EEPROM read/write reply marker, the identify
// reply marker, and the doubled factory command prefix.
var searchMarkers = [][]byte{
	[]byte("@BDC PS EE:"),
	[]byte("@EJL ID "),
	{'|', '|'},
}

// scanFile reports every offset in path where a searchMarkers entry
// occurs, for inspecting a pcapng or raw binary capture without a live
// device (spec §6 "--search-file").
func scanFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("search-file: %w", err)
	}

	for _, marker := range searchMarkers {
		start := 0
		for {
			idx := bytes.Index(data[start:], marker)
			if idx < 0 {
				break
			}
			off := start + idx
			end := off + len(marker) + 24
			if end > len(data) {
				end = len(data)
			}
			fmt.Printf("0x%08X %-14q %q\n", off, marker, data[off:end])
			start = off + len(marker)
		}
	}
	return nil
}
