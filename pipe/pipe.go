// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package pipe provides the uniform byte-pipe abstraction (spec §4.A):
// open/close/write/read over a USB bulk endpoint pair or a raw character
// device, with reference-counted scoping so nested callers don't reopen
// the underlying handle.
package pipe

import "sync"

// Pipe is the minimal transport the 1284.4 link rides on. Read returns
// whatever arrived in a single underlying transfer; it must never
// concatenate multiple transfers into one return.
type Pipe interface {
	Open() error
	Close() error
	Write(p []byte) (int, error)
	Read(max int) ([]byte, error)
}

// Error wraps a pipe-level failure with the operation that caused it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Handle gives a Pipe reentrant open/close scoping: Open is a no-op past
// the first acquisition, Close is a no-op until the last release. Handle
// is not safe for concurrent acquisition from multiple goroutines, same
// as the Link that owns it (spec §5).
type Handle struct {
	mu    sync.Mutex
	pipe  Pipe
	count int
}

// NewHandle wraps a Pipe in reference-counted open/close scoping.
func NewHandle(p Pipe) *Handle {
	return &Handle{pipe: p}
}

// Acquire opens the underlying pipe if this is the outermost scope.
func (h *Handle) Acquire() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		if err := h.pipe.Open(); err != nil {
			return wrapErr("pipe open", err)
		}
	}
	h.count++
	return nil
}

// Release closes the underlying pipe once the outermost scope exits.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return nil
	}
	h.count--
	if h.count == 0 {
		if err := h.pipe.Close(); err != nil {
			return wrapErr("pipe close", err)
		}
	}
	return nil
}

// Depth reports the current scope nesting, for tests.
func (h *Handle) Depth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Write surfaces the underlying pipe's write error without retrying.
func (h *Handle) Write(p []byte) (int, error) {
	n, err := h.pipe.Write(p)
	if err != nil {
		return n, wrapErr("pipe write", err)
	}
	return n, nil
}

// Read surfaces the underlying pipe's read error without retrying.
func (h *Handle) Read(max int) ([]byte, error) {
	b, err := h.pipe.Read(max)
	if err != nil {
		return nil, wrapErr("pipe read", err)
	}
	return b, nil
}
