// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package epson

import (
	"errors"
	"log"
	"os"
)

// Logger is where control-codec and EEPROM warnings are written (spec
// §7: semantic errors such as a readback mismatch or an address the
// printer did not echo).
var Logger = log.New(os.Stderr, "epson: ", log.LstdFlags)

// ErrNoReply is returned when a ctrl call's channel never delivers a
// reply within its attempt budget.
var ErrNoReply = errors.New("epson: no reply from control channel")

// ErrUnknownModel is returned when an operation needs a model spec and
// none has been set (spec §7 configuration errors — refuse, don't guess).
var ErrUnknownModel = errors.New("epson: no model spec set")

// ErrMissingWriteKey is returned when an EEPROM write is attempted
// without a write key configured for the active model.
var ErrMissingWriteKey = errors.New("epson: model has no write key configured")
