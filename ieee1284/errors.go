// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ieee1284

import (
	"errors"
	"fmt"
	"log"
	"os"
)

// Logger is where protocol-level warnings (spec §7: malformed packet,
// unexpected reply, 1284.4 error report) are written. Callers may
// redirect it; the default matches the teacher's bare log.Println use.
var Logger = log.New(os.Stderr, "ieee1284: ", log.LstdFlags)

// Error wraps a transport- or protocol-level failure with the operation
// that triggered it (spec §7 taxonomy).
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// ErrNoReply is returned by Link.tx when no matching reply arrived
// within the retry budget. It is not fatal: callers decide (spec §7).
var ErrNoReply = errors.New("ieee1284: no reply received")

// ErrUnknownRevision is returned when Init negotiation proposes a
// revision this package has no command table for.
var ErrUnknownRevision = errors.New("ieee1284: unknown protocol revision")

// ErrRetryLater is returned (never handled) when Init replies with
// result 0x01 or 0x0B (spec §4.C, §9 — left fatal deliberately).
var ErrRetryLater = errors.New("ieee1284: device asked to retry init later")

// reportedError describes an asynchronous 1284.4 error report (opcode
// 0x7F) and the error code it carries, logged as a warning per spec §7.
type reportedError struct {
	Channel ChannelID
	Code    uint8
}

func (e reportedError) Error() string {
	return fmt.Sprintf("1284.4 error 0x%02X on channel %02x.%02x", e.Code, e.Channel.PSID, e.Channel.SSID)
}
