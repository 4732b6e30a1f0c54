// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

//go:build !mips && !mipsle

package device

import (
	"fmt"

	"github.com/google/gousb"
)

// USBCandidate is one enumerated printer-class USB device (spec §4.H).
type USBCandidate struct {
	VendorID  gousb.ID
	ProductID gousb.ID
	Serial    string
}

// String renders a candidate the way a user would pick it off a list.
func (c USBCandidate) String() string {
	if c.Serial != "" {
		return fmt.Sprintf("%s:%s (serial %s)", c.VendorID, c.ProductID, c.Serial)
	}
	return fmt.Sprintf("%s:%s", c.VendorID, c.ProductID)
}

// DiscoverUSB enumerates devices whose device class or any interface
// class is 0x07 (printer) (spec §4.H).
func DiscoverUSB() ([]USBCandidate, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var found []USBCandidate
	_, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Class == gousb.ClassPrinter || hasPrinterInterface(desc) {
			found = append(found, USBCandidate{VendorID: desc.Vendor, ProductID: desc.Product})
		}
		return false // never keep devices open; we just want the descriptors
	})
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}
	return found, nil
}

func hasPrinterInterface(desc *gousb.DeviceDesc) bool {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

// SelectUSB filters candidates by vendor/product id and, if non-empty,
// serial number — the façade's "select by (idVendor,idProduct,serial)"
// surface (spec §6). DiscoverUSB reads descriptors only and leaves
// Serial empty, so a non-empty serial matches none of its candidates.
func SelectUSB(candidates []USBCandidate, vendor, product gousb.ID, serial string) (USBCandidate, bool) {
	for _, c := range candidates {
		if c.VendorID != vendor || c.ProductID != product {
			continue
		}
		if serial != "" && c.Serial != serial {
			continue
		}
		return c, true
	}
	return USBCandidate{}, false
}
