// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package device

import (
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
)

// deviceIDOID is the read-only IEEE 1284 device id OID; ctrlOIDPrefix
// is the Epson vendor prefix under which ctrl-channel bytes are carried
// (spec §6).
const (
	deviceIDOID   = ".1.3.6.1.4.1.2699.1.2.1.2.1.1.3.1"
	ctrlOIDPrefix = ".1.3.6.1.4.1.1248.1.2.2.44.1.1.2.1"
)

// SNMPPipe is an alternate byte-pipe backend that carries ctrl-channel
// traffic over SNMP SET/GET on the Epson vendor OID prefix instead of a
// USB bulk endpoint pair. Each byte is the one-byte OctetString value of
// its own OID, ctrlOIDPrefix.<n> with n counting from 1; the bytes are
// not encoded as OID components.
type SNMPPipe struct {
	Target    string
	Community string
	Timeout   time.Duration

	conn *gosnmp.GoSNMP
}

// NewSNMPPipe returns a pipe that will connect to target on Open.
func NewSNMPPipe(target, community string) *SNMPPipe {
	return &SNMPPipe{Target: target, Community: community, Timeout: 2 * time.Second}
}

func (p *SNMPPipe) Open() error {
	p.conn = &gosnmp.GoSNMP{
		Target:    p.Target,
		Port:      161,
		Community: p.Community,
		Version:   gosnmp.Version2c,
		Timeout:   p.Timeout,
	}
	if err := p.conn.Connect(); err != nil {
		return fmt.Errorf("snmp connect %s: %w", p.Target, err)
	}
	return nil
}

func (p *SNMPPipe) Close() error {
	if p.conn == nil || p.conn.Conn == nil {
		return nil
	}
	return p.conn.Conn.Close()
}

// Write SETs one OID per byte under ctrlOIDPrefix.
func (p *SNMPPipe) Write(b []byte) (int, error) {
	pdus := make([]gosnmp.SnmpPDU, len(b))
	for i, v := range b {
		pdus[i] = gosnmp.SnmpPDU{
			Name:  fmt.Sprintf("%s.%d", ctrlOIDPrefix, i+1),
			Type:  gosnmp.OctetString,
			Value: []byte{v},
		}
	}
	if _, err := p.conn.Set(pdus); err != nil {
		return 0, fmt.Errorf("snmp set: %w", err)
	}
	return len(b), nil
}

// Read GETs up to max (default 64) OIDs under ctrlOIDPrefix, stopping
// at the first empty or malformed variable.
func (p *SNMPPipe) Read(max int) ([]byte, error) {
	if max <= 0 {
		max = 64
	}
	oids := make([]string, max)
	for i := range oids {
		oids[i] = fmt.Sprintf("%s.%d", ctrlOIDPrefix, i+1)
	}
	result, err := p.conn.Get(oids)
	if err != nil {
		return nil, fmt.Errorf("snmp get: %w", err)
	}
	out := make([]byte, 0, len(result.Variables))
	for _, v := range result.Variables {
		b, ok := v.Value.([]byte)
		if !ok || len(b) == 0 {
			break
		}
		out = append(out, b[0])
	}
	return out, nil
}

// ReadDeviceID fetches the read-only IEEE 1284 device id string over
// SNMP, for network-discovered printers that don't expose a ctrl
// channel for the usual "di" factory identification command.
func ReadDeviceID(target, community string, timeout time.Duration) (string, error) {
	conn := &gosnmp.GoSNMP{Target: target, Port: 161, Community: community, Version: gosnmp.Version2c, Timeout: timeout}
	if err := conn.Connect(); err != nil {
		return "", fmt.Errorf("snmp connect %s: %w", target, err)
	}
	defer conn.Conn.Close()

	result, err := conn.Get([]string{deviceIDOID})
	if err != nil {
		return "", fmt.Errorf("snmp get device id: %w", err)
	}
	if len(result.Variables) == 0 {
		return "", fmt.Errorf("snmp: empty response for device id oid")
	}
	b, ok := result.Variables[0].Value.([]byte)
	if !ok {
		return "", fmt.Errorf("snmp: unexpected value type for device id")
	}
	return string(b), nil
}
