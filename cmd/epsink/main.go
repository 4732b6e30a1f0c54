// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Command epsink talks to an Epson inkjet printer over USB to read and
// reset its waste-ink EEPROM counters.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/google/gousb"

	"github.com/haukened/epsink/device"
	"github.com/haukened/epsink/modeldb"
	"github.com/haukened/epsink/pipe"
)

func main() {
	list := flag.Bool("list", false, "List detected USB printer devices")
	index := flag.Int("index", -1, "Select device by index from -list")
	vendorFlag := flag.String("vendor", "", "USB vendor id in hex, used with -product")
	productFlag := flag.String("product", "", "USB product id in hex, used with -vendor")
	serial := flag.String("serial", "", "USB serial number, used with -vendor/-product (discovered devices carry no serial, so a non-empty value matches none)")
	modelFlag := flag.String("model", "", "Override the auto-detected model name")
	listOps := flag.Bool("list-ops", false, "List reset operations for the selected device")
	run := flag.String("run", "", "Run the named reset operation")
	searchFile := flag.String("search-file", "", "Scan a capture file for EEPROM/factory command signatures instead of talking to a device")
	flag.Parse()

	if *searchFile != "" {
		if err := scanFile(*searchFile); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		return
	}

	candidates, err := device.DiscoverUSB()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *list {
		for i, c := range candidates {
			fmt.Printf("%d: %s\n", i, c)
		}
		return
	}

	chosen, ok := selectCandidate(candidates, *index, *vendorFlag, *productFlag, *serial)
	if !ok {
		flag.PrintDefaults()
		os.Exit(1)
	}

	db := modeldb.Load()
	dev := device.New(pipe.NewUSBPipe(chosen.VendorID, chosen.ProductID), db, true)
	if err := dev.Open(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer dev.Close()

	model, err := dev.DetectModel()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if *modelFlag != "" {
		spec, ok := db.Lookup(*modelFlag)
		if !ok {
			fmt.Printf("unknown model %q\n", *modelFlag)
			os.Exit(1)
		}
		dev.SetModel(spec)
		model = *modelFlag
	}
	fmt.Printf("Detected model: %s\n", model)

	switch {
	case *listOps:
		ops, err := dev.Operations()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		for _, op := range ops {
			fmt.Printf("%s\t%s\n", op.ID, op.Description)
		}
	case *run != "":
		ok, err := dev.RunOperation(*run)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		if !ok {
			fmt.Println("operation failed")
			os.Exit(1)
		}
		fmt.Println("OK")
	default:
		flag.PrintDefaults()
	}
}

func selectCandidate(candidates []device.USBCandidate, index int, vendor, product, serial string) (device.USBCandidate, bool) {
	if index >= 0 {
		if index >= len(candidates) {
			fmt.Println("index out of range")
			return device.USBCandidate{}, false
		}
		return candidates[index], true
	}
	if vendor != "" && product != "" {
		vid, err := strconv.ParseUint(vendor, 16, 16)
		if err != nil {
			fmt.Printf("invalid -vendor %q: %v\n", vendor, err)
			return device.USBCandidate{}, false
		}
		pid, err := strconv.ParseUint(product, 16, 16)
		if err != nil {
			fmt.Printf("invalid -product %q: %v\n", product, err)
			return device.USBCandidate{}, false
		}
		return device.SelectUSB(candidates, gousb.ID(vid), gousb.ID(pid), serial)
	}
	return device.USBCandidate{}, false
}
