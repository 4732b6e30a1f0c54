// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ieee1284

import "sync"

// MaxServiceNameLen is the longest ASCII service name a channel may carry
// (spec §3).
const MaxServiceNameLen = 40

// ChannelID identifies a channel by its (psid, ssid) pair. The
// transaction channel is the distinguished zero value.
type ChannelID struct {
	PSID uint8
	SSID uint8
}

// TransactionChannelID is the reserved administrative channel (spec §3).
var TransactionChannelID = ChannelID{PSID: 0x00, SSID: 0x00}

// Channel is a single 1284.4 virtual channel: a credit counter, a nested
// open/close scope, and the most recently received payload for
// synchronous call/response use (spec §3).
type Channel struct {
	ID          ChannelID
	ServiceName string

	mu          sync.Mutex
	credit      int
	scope       int
	lastPayload []byte
	onReceived  func([]byte)
}

func newChannel(id ChannelID, name string) *Channel {
	return &Channel{ID: id, ServiceName: name}
}

// Credit returns the channel's current signed credit balance.
func (c *Channel) Credit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credit
}

func (c *Channel) addCredit(n int) {
	c.mu.Lock()
	c.credit += n
	c.mu.Unlock()
}

func (c *Channel) spendCredit(n int) {
	c.mu.Lock()
	c.credit -= n
	c.mu.Unlock()
}

// deliver stores payload as the channel's last received message and
// invokes the receive hook, if any (spec §4.C receiving).
func (c *Channel) deliver(payload []byte) {
	c.mu.Lock()
	c.lastPayload = payload
	hook := c.onReceived
	c.mu.Unlock()
	if hook != nil && len(payload) > 0 {
		hook(payload)
	}
}

// LastPayload returns the most recently delivered payload on this
// channel, or nil if none has arrived yet.
func (c *Channel) LastPayload() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPayload
}

// SetOnReceived installs a hook invoked with every non-empty payload
// delivered to this channel.
func (c *Channel) SetOnReceived(f func([]byte)) {
	c.mu.Lock()
	c.onReceived = f
	c.mu.Unlock()
}

// open increments the channel's nested open scope. OpenChannel on the
// wire must precede any non-administrative traffic (spec §3 invariants);
// the Link issues that wire command the first time a channel's scope
// goes from 0 to 1.
func (c *Channel) open() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scope++
	return c.scope
}

// close decrements the channel's nested open scope, returning the
// remaining depth.
func (c *Channel) close() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scope > 0 {
		c.scope--
	}
	return c.scope
}

func (c *Channel) depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}
