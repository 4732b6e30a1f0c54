// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

//go:build !mips && !mipsle
// +build !mips,!mipsle

// USB bulk-pipe backend. Excluded on MIPS builds due to the gousb/libusb
// cgo dependency, the same constraint the USB driver in the reference
// mining-rig codebase carries for its own gousb backend.

package pipe

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// USBPipe is a Pipe backed by a claimed bulk-IN/bulk-OUT endpoint pair on
// a libusb device, selected per spec §4.H / §6: interface class 0x07,
// alternate setting 0, exactly one bulk-IN and one bulk-OUT endpoint.
type USBPipe struct {
	VendorID  gousb.ID
	ProductID gousb.ID
	Timeout   time.Duration

	ctx    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	intf   *gousb.Interface
	epIn   *gousb.InEndpoint
	epOut  *gousb.OutEndpoint
	closed bool
}

// NewUSBPipe returns a pipe that will open the first printer-class (0x07)
// interface on the device with the given vendor/product ID on Open.
func NewUSBPipe(vid, pid gousb.ID) *USBPipe {
	return &USBPipe{VendorID: vid, ProductID: pid, Timeout: 5 * time.Second}
}

func (p *USBPipe) Open() error {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(p.VendorID, p.ProductID)
	if err != nil {
		ctx.Close()
		return fmt.Errorf("open usb device %s:%s: %w", p.VendorID, p.ProductID, err)
	}
	if dev == nil {
		ctx.Close()
		return fmt.Errorf("usb device %s:%s not found", p.VendorID, p.ProductID)
	}

	intfNum, altNum, err := findPrinterInterface(dev)
	if err != nil {
		dev.Close()
		ctx.Close()
		return err
	}

	dev.SetAutoDetach(true)

	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		cfgNum = 1
	}
	cfg, err := dev.Config(cfgNum)
	if err != nil {
		dev.Close()
		ctx.Close()
		return fmt.Errorf("claim usb config %d: %w", cfgNum, err)
	}

	intf, err := cfg.Interface(intfNum, altNum)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return fmt.Errorf("claim usb interface %d.%d: %w", intfNum, altNum, err)
	}

	epIn, epOut, err := bulkEndpoints(intf)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return err
	}

	p.ctx, p.dev, p.cfg, p.intf, p.epIn, p.epOut = ctx, dev, cfg, intf, epIn, epOut
	p.closed = false
	return nil
}

func (p *USBPipe) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.intf != nil {
		p.intf.Close()
	}
	if p.cfg != nil {
		p.cfg.Close()
	}
	if p.dev != nil {
		p.dev.Close()
	}
	if p.ctx != nil {
		p.ctx.Close()
	}
	return nil
}

// Write performs one bulk-OUT transfer. No fragmentation across calls.
func (p *USBPipe) Write(b []byte) (int, error) {
	n, err := p.epOut.Write(b)
	if err != nil {
		return n, fmt.Errorf("usb bulk write: %w", err)
	}
	return n, nil
}

// Read performs exactly one bulk-IN transfer of up to max bytes and
// returns whatever came back in it — it does not loop to fill max.
func (p *USBPipe) Read(max int) ([]byte, error) {
	if max <= 0 {
		max = p.epIn.Desc.MaxPacketSize
	}
	buf := make([]byte, max)
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()
	n, err := p.epIn.ReadContext(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("usb bulk read: %w", err)
	}
	return buf[:n], nil
}

// findPrinterInterface returns the (interface, altSetting) of the first
// alt-setting-0 interface whose class is 0x07 (printer), per spec §4.H.
func findPrinterInterface(dev *gousb.Device) (intfNum, altNum int, err error) {
	cfgDesc, err := dev.ConfigDescription(func() int {
		n, _ := dev.ActiveConfigNum()
		if n == 0 {
			return 1
		}
		return n
	}())
	if err != nil {
		return 0, 0, fmt.Errorf("read usb config descriptor: %w", err)
	}
	for _, ifDesc := range cfgDesc.Interfaces {
		for _, alt := range ifDesc.AltSettings {
			if alt.Number != 0 {
				continue
			}
			if alt.Class != gousb.ClassPrinter && dev.Desc.Class != gousb.ClassPrinter {
				continue
			}
			return ifDesc.Number, alt.Number, nil
		}
	}
	return 0, 0, fmt.Errorf("no printer-class (0x07) interface found")
}

// bulkEndpoints returns the single bulk-IN/bulk-OUT endpoint pair on intf.
func bulkEndpoints(intf *gousb.Interface) (*gousb.InEndpoint, *gousb.OutEndpoint, error) {
	var inDesc, outDesc *gousb.EndpointDesc
	for _, ep := range intf.Setting.Endpoints {
		ep := ep
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn {
			if inDesc != nil {
				return nil, nil, fmt.Errorf("usb interface exposes more than one bulk-IN endpoint")
			}
			inDesc = &ep
		} else {
			if outDesc != nil {
				return nil, nil, fmt.Errorf("usb interface exposes more than one bulk-OUT endpoint")
			}
			outDesc = &ep
		}
	}
	if inDesc == nil || outDesc == nil {
		return nil, nil, fmt.Errorf("usb interface lacks a bulk-IN/bulk-OUT pair")
	}
	epIn, err := intf.InEndpoint(inDesc.Number)
	if err != nil {
		return nil, nil, fmt.Errorf("open usb bulk-IN endpoint: %w", err)
	}
	epOut, err := intf.OutEndpoint(outDesc.Number)
	if err != nil {
		return nil, nil, fmt.Errorf("open usb bulk-OUT endpoint: %w", err)
	}
	return epIn, epOut, nil
}
