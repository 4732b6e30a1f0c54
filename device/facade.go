// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package device

import (
	"bytes"
	"fmt"

	"github.com/haukened/epsink/epson"
	"github.com/haukened/epsink/ieee1284"
	"github.com/haukened/epsink/modeldb"
	"github.com/haukened/epsink/pipe"
)

// identifyMarker prefixes the reply to the "di" factory command; the
// IEEE 1284 id string follows it (spec §4.H).
const identifyMarker = "@EJL ID "

// Device ties a byte pipe, the 1284.4 link, the Epson control channel
// and a model spec into the operations a caller runs by name
// (spec §2, §4.H).
type Device struct {
	link   *ieee1284.Link
	ctrl   *epson.Ctrl
	eeprom *epson.EEPROM
	db     modeldb.DB
	model  string
}

// New creates a Device over p, ready to Open. withPreamble controls
// whether Open sends the Epson 1284.4 entry preamble before Init.
func New(p pipe.Pipe, db modeldb.DB, withPreamble bool) *Device {
	return &Device{link: ieee1284.NewLink(p, withPreamble), db: db}
}

// Open enters the 1284.4 link and opens the EPSON-CTRL channel.
func (d *Device) Open() error {
	if err := d.link.Open(); err != nil {
		return err
	}
	ctrl, err := epson.NewCtrl(d.link)
	if err != nil {
		_ = d.link.Close()
		return err
	}
	if err := ctrl.Open(); err != nil {
		_ = d.link.Close()
		return err
	}
	d.ctrl = ctrl
	return nil
}

// Close exits the ctrl channel scope and the link scope.
func (d *Device) Close() error {
	if d.ctrl != nil {
		_ = d.ctrl.Close()
	}
	return d.link.Close()
}

// Identify sends the "di" factory identification command and parses
// the IEEE 1284 id string from the reply (spec §4.H).
func (d *Device) Identify() (Identification, error) {
	reply, err := d.ctrl.CallFactory('d', 'i', 0, []byte{0x01})
	if err != nil {
		return Identification{}, err
	}
	idx := bytes.Index(reply, []byte(identifyMarker))
	if idx < 0 {
		return Identification{}, fmt.Errorf("device: reply missing %q marker", identifyMarker)
	}
	return ParseIdentification(string(reply[idx+len(identifyMarker):])), nil
}

// DetectModel identifies the device and, if its model is in the
// database, binds the EEPROM layer to that model's spec.
func (d *Device) DetectModel() (string, error) {
	id, err := d.Identify()
	if err != nil {
		return "", err
	}
	d.model = id.Model()
	if spec, ok := d.db.Lookup(d.model); ok {
		d.SetModel(spec)
	}
	return d.model, nil
}

// SetModel binds the EEPROM layer to an explicit model spec, bypassing
// auto-detection.
func (d *Device) SetModel(spec modeldb.Spec) {
	d.model = spec.Model
	d.eeprom = epson.NewEEPROM(d.ctrl, spec)
}

// Model returns the last detected or explicitly set model name.
func (d *Device) Model() string { return d.model }

// EEPROM returns the bound EEPROM layer, or nil if no model has been
// set yet.
func (d *Device) EEPROM() *epson.EEPROM { return d.eeprom }

// Operations lists the reset operations for the currently bound model.
func (d *Device) Operations() ([]epson.Operation, error) {
	if d.eeprom == nil {
		return nil, epson.ErrUnknownModel
	}
	return d.eeprom.ResetOperations(), nil
}

// RunOperation looks up id among Operations and runs it.
func (d *Device) RunOperation(id string) (bool, error) {
	ops, err := d.Operations()
	if err != nil {
		return false, err
	}
	for _, op := range ops {
		if op.ID == id {
			return op.Action()
		}
	}
	return false, fmt.Errorf("device: unknown operation %q", id)
}
