// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

//go:build linux

// Raw character-device backend, for printers exposed as /dev/usb/lp0 style
// nodes instead of claimed directly via libusb. Uses plain read(2)/write(2)
// on the fd, same as the teacher's ioctl-based SCSI/NVMe device access.

package pipe

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FilePipe is a Pipe backed by a single open file descriptor to a
// character device (e.g. a USB printer class device node).
type FilePipe struct {
	Path string

	fd     int
	closed bool
}

// NewFilePipe returns a pipe over the character device at path.
func NewFilePipe(path string) *FilePipe {
	return &FilePipe{Path: path}
}

func (p *FilePipe) Open() error {
	fd, err := unix.Open(p.Path, unix.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", p.Path, err)
	}
	p.fd = fd
	p.closed = false
	return nil
}

func (p *FilePipe) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.fd)
}

func (p *FilePipe) Write(b []byte) (int, error) {
	n, err := unix.Write(p.fd, b)
	if err != nil {
		return n, fmt.Errorf("write %s: %w", p.Path, err)
	}
	return n, nil
}

// Read performs exactly one read(2) call, returning whatever the kernel
// handed back in that single call rather than looping to fill max.
func (p *FilePipe) Read(max int) ([]byte, error) {
	if max <= 0 {
		max = 4096
	}
	buf := make([]byte, max)
	n, err := unix.Read(p.fd, buf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.Path, err)
	}
	return buf[:n], nil
}
