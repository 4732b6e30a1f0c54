// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ieee1284

import (
	"fmt"
	"sync"
	"time"

	"github.com/haukened/epsink/ieee1284/txn"
	"github.com/haukened/epsink/pipe"
)

// EpsonPreamble switches an Epson printer's bulk endpoint into 1284.4
// mode (spec §6).
var EpsonPreamble = append([]byte{0x00, 0x00, 0x00, 0x1B, 0x01}, []byte("@EJL 1284.4\n@EJL\n@EJL\n")...)

// EpsonPreambleReply is the marker expected in response to EpsonPreamble.
var EpsonPreambleReply = []byte{0x00, 0x00, 0x00, 0x08, 0x01, 0x00, 0xC5, 0x00}

const preambleReadAttempts = 5
const txReplyAttempts = 8
const creditRequestRounds = 3
const preReadDelay = 20 * time.Millisecond

// Link owns the byte pipe, the channel table, and the reassembly buffer
// for a single IEEE 1284.4 session (spec §4.C).
type Link struct {
	pipe *pipe.Handle

	mu         sync.Mutex
	scope      int
	rev        txn.Revision
	channels   map[ChannelID]*Channel
	txChannel  *Channel
	leftover   []byte
	sendPreamb bool
}

// NewLink wraps a byte pipe in an IEEE 1284.4 session. If withPreamble is
// true, Open sends the Epson entry preamble before negotiating Init.
func NewLink(p pipe.Pipe, withPreamble bool) *Link {
	l := &Link{
		pipe:       pipe.NewHandle(p),
		rev:        txn.Rev20,
		channels:   map[ChannelID]*Channel{},
		sendPreamb: withPreamble,
	}
	l.txChannel = newChannel(TransactionChannelID, "")
	l.channels[TransactionChannelID] = l.txChannel
	return l
}

// Revision reports the negotiated wire revision.
func (l *Link) Revision() txn.Revision {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rev
}

// Open enters the outermost link scope: on the first nested Open it
// acquires the pipe, optionally sends the entry preamble, and negotiates
// Init. Nested Opens just bump the scope counter (spec §3 invariants).
func (l *Link) Open() error {
	l.mu.Lock()
	l.scope++
	first := l.scope == 1
	l.mu.Unlock()
	if !first {
		return nil
	}

	if err := l.pipe.Acquire(); err != nil {
		l.mu.Lock()
		l.scope--
		l.mu.Unlock()
		return err
	}

	if l.sendPreamb {
		if err := l.sendEnterPreamble(); err != nil {
			Logger.Printf("warning: %v", err)
		}
	}

	if err := l.negotiateInit(txn.Rev20); err != nil {
		_ = l.pipe.Release()
		l.mu.Lock()
		l.scope--
		l.mu.Unlock()
		return err
	}
	return nil
}

// Close exits one link scope; on the outermost exit it sends Exit, zeros
// the transaction channel's credit, and releases the pipe.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.scope == 0 {
		l.mu.Unlock()
		return nil
	}
	l.scope--
	last := l.scope == 0
	l.mu.Unlock()
	if !last {
		return nil
	}

	if _, err := l.tx("Exit", nil, ""); err != nil {
		Logger.Printf("warning: exit: %v", err)
	}
	l.txChannel.mu.Lock()
	l.txChannel.credit = 0
	l.txChannel.mu.Unlock()

	return l.pipe.Release()
}

func (l *Link) sendEnterPreamble() error {
	if _, err := l.pipe.Write(EpsonPreamble); err != nil {
		return wrapErr("send enter preamble", err)
	}
	for i := 0; i < preambleReadAttempts; i++ {
		b, err := l.pipe.Read(0)
		if err != nil {
			return wrapErr("read preamble reply", err)
		}
		if containsMarker(b, EpsonPreambleReply) {
			return nil
		}
	}
	return fmt.Errorf("ieee1284: enter-1284.4 reply marker not seen in %d attempts", preambleReadAttempts)
}

func containsMarker(haystack, marker []byte) bool {
	if len(marker) > len(haystack) {
		return false
	}
	for i := 0; i+len(marker) <= len(haystack); i++ {
		match := true
		for j := range marker {
			if haystack[i+j] != marker[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// negotiateInit sends Init(rev) and handles the revision-switch dance
// described in spec §4.C.
func (l *Link) negotiateInit(rev txn.Revision) error {
	l.mu.Lock()
	l.rev = rev
	l.mu.Unlock()

	d, err := l.tx("Init", map[string]uint64{"Revision": uint64(rev)}, "")
	if err != nil {
		return err
	}
	result := d.Fields["Result"]
	switch result {
	case 0x00:
		return nil
	case 0x02:
		newRev := txn.Revision(d.Fields["Revision"])
		if _, ok := txn.Table(newRev); !ok {
			return ErrUnknownRevision
		}
		if newRev == rev {
			return ErrUnknownRevision
		}
		return l.negotiateInit(newRev)
	case 0x01, 0x0B:
		return ErrRetryLater
	default:
		return ErrUnknownRevision
	}
}

// tx sends one transaction command on the transaction channel and blocks
// for its matching reply, dropping unrelated packets (spec §4.D "TX call
// semantics"). At most one transaction command is outstanding at a time.
func (l *Link) tx(cmd string, args map[string]uint64, trailing string) (txn.Decoded, error) {
	l.mu.Lock()
	rev := l.rev
	l.mu.Unlock()

	wire, err := txn.Encode(rev, cmd, args, trailing)
	if err != nil {
		return txn.Decoded{}, wrapErr("encode "+cmd, err)
	}

	credit := byte(1)
	cost := 1
	if cmd == "Init" {
		credit = 0
		cost = 0
	}
	if _, err := l.send(wire, l.txChannel, credit, 0, cost, false); err != nil {
		return txn.Decoded{}, err
	}

	time.Sleep(preReadDelay)

	want := cmd + "Reply"
	for attempt := 0; attempt < txReplyAttempts; attempt++ {
		h, payload, ok, err := l.retreive(6)
		if err != nil {
			return txn.Decoded{}, wrapErr("retreive", err)
		}
		if !ok {
			continue
		}
		if h.ChannelID() != TransactionChannelID {
			continue
		}
		d, err := txn.Decode(rev, payload)
		if err != nil {
			Logger.Printf("warning: malformed transaction reply: %v", err)
			continue
		}
		if d.Opcode == txn.ErrorOpcode {
			Logger.Printf("warning: %v", reportedError{Channel: h.ChannelID(), Code: uint8(d.Fields["Code"])})
			continue
		}
		if d.Name != want {
			Logger.Printf("warning: dropped unexpected %s while waiting for %s", d.Name, want)
			continue
		}
		return d, nil
	}
	return txn.Decoded{}, ErrNoReply
}

// send transmits payload on ch. If check is true and ch's local credit
// is below cost, a CreditRequest is issued (up to 3 rounds) first
// (spec §3 invariants, §4.C sending).
func (l *Link) send(payload []byte, ch *Channel, credit byte, control byte, cost int, check bool) (int, error) {
	if check && ch.Credit() < cost {
		if err := l.requestCredit(ch, cost); err != nil {
			return 0, err
		}
	}
	ch.spendCredit(cost)
	wire := EncodePacket(payload, ch.ID.PSID, ch.ID.SSID, credit, control)
	n, err := l.pipe.Write(wire)
	if err != nil {
		return n, err
	}
	return n, nil
}

// Send is the exported, higher-layer entry point used by channel riders
// (e.g. the Epson control codec) for non-administrative traffic.
func (l *Link) Send(ch *Channel, payload []byte) (int, error) {
	return l.send(payload, ch, 1, 0, 1, true)
}

func (l *Link) requestCredit(ch *Channel, needed int) error {
	for i := 0; i < creditRequestRounds; i++ {
		d, err := l.tx("CreditRequest", map[string]uint64{
			"SidP": uint64(ch.ID.PSID), "SidS": uint64(ch.ID.SSID), "Max": 0,
		}, "")
		if err != nil {
			Logger.Printf("warning: credit request: %v", err)
			continue
		}
		ch.addCredit(int(d.Fields["AddCredit"]))
		if ch.Credit() >= needed {
			return nil
		}
	}
	return nil
}

// retreive reads from the pipe until the leftover buffer holds a full
// packet, dispatches exactly that one packet, and keeps any remainder
// for the next call. It tries up to `retries` additional reads beyond
// whatever is already buffered. Returning only one packet per call even
// when more than one is buffered is intentional (spec §9).
func (l *Link) retreive(retries int) (Header, []byte, bool, error) {
	if h, payload, ok := l.tryExtract(); ok {
		l.dispatch(h, payload)
		return h, payload, true, nil
	}
	for i := 0; i < retries; i++ {
		b, err := l.pipe.Read(0)
		if err != nil {
			return Header{}, nil, false, err
		}
		l.leftover = append(l.leftover, b...)
		if h, payload, ok := l.tryExtract(); ok {
			l.dispatch(h, payload)
			return h, payload, true, nil
		}
	}
	return Header{}, nil, false, nil
}

func (l *Link) tryExtract() (Header, []byte, bool) {
	if len(l.leftover) < HeaderSize {
		return Header{}, nil, false
	}
	h, rest, err := DecodePacket(l.leftover)
	if err != nil {
		return Header{}, nil, false
	}
	need := h.PayloadLength()
	if need < 0 || len(rest) < need {
		return Header{}, nil, false
	}
	payload := append([]byte{}, rest[:need]...)
	l.leftover = append([]byte{}, rest[need:]...)
	return h, payload, true
}

func (l *Link) dispatch(h Header, payload []byte) {
	l.mu.Lock()
	ch := l.channels[h.ChannelID()]
	l.mu.Unlock()
	if ch == nil {
		Logger.Printf("warning: packet for unknown channel %02x.%02x dropped", h.PSID, h.SSID)
		return
	}
	ch.addCredit(int(h.Credit))
	if len(payload) > 0 {
		ch.deliver(payload)
	}
}

// Receive blocks until a payload is dispatched to ch, trying up to
// attempts retrieve rounds, and returns it. Packets for other channels
// are dispatched to their own channel along the way; each round counts
// against attempts whichever channel its packet was for. Used by
// higher-layer riders (the Epson control
// channel) that expect synchronous request/reply semantics on top of
// the multiplexed link (spec §4.E).
func (l *Link) Receive(ch *Channel, attempts int) ([]byte, error) {
	for i := 0; i < attempts; i++ {
		h, payload, ok, err := l.retreive(6)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if h.ChannelID() == ch.ID && len(payload) > 0 {
			return payload, nil
		}
	}
	return nil, ErrNoReply
}

// GetChannel returns the channel identified by name and/or id, issuing
// GetSocketID/GetServiceName on the transaction channel as needed, and
// creating the channel entry on demand (spec §4.C "Channel acquisition").
func (l *Link) GetChannel(serviceName string, cid *ChannelID) (*Channel, error) {
	l.mu.Lock()
	if cid != nil {
		if ch, ok := l.channels[*cid]; ok {
			l.mu.Unlock()
			if serviceName != "" && ch.ServiceName != "" && ch.ServiceName != serviceName {
				return nil, fmt.Errorf("ieee1284: channel %02x.%02x already registered as %q", cid.PSID, cid.SSID, ch.ServiceName)
			}
			return ch, nil
		}
	}
	if serviceName != "" {
		for _, ch := range l.channels {
			if ch.ServiceName == serviceName {
				l.mu.Unlock()
				return ch, nil
			}
		}
	}
	l.mu.Unlock()

	switch {
	case cid != nil && serviceName != "":
		return l.registerChannel(*cid, serviceName), nil
	case cid != nil:
		d, err := l.tx("GetServiceName", map[string]uint64{"Sid": uint64(cid.SSID)}, "")
		if err != nil {
			return nil, err
		}
		return l.registerChannel(*cid, d.Trailing), nil
	case serviceName != "":
		d, err := l.tx("GetSocketID", nil, serviceName)
		if err != nil {
			return nil, err
		}
		sid := uint8(d.Fields["Sid"])
		id := ChannelID{PSID: sid, SSID: sid}
		return l.registerChannel(id, serviceName), nil
	default:
		return nil, fmt.Errorf("ieee1284: GetChannel requires a service name or channel id")
	}
}

func (l *Link) registerChannel(id ChannelID, name string) *Channel {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.channels[id]; ok {
		return ch
	}
	ch := newChannel(id, name)
	l.channels[id] = ch
	return ch
}

// OpenChannel sends the wire OpenChannel command the first time ch's
// nested scope goes from 0 to 1 (spec §3 invariants).
func (l *Link) OpenChannel(ch *Channel) error {
	if ch.open() != 1 {
		return nil
	}
	_, err := l.tx("OpenChannel", map[string]uint64{
		"SidP": uint64(ch.ID.PSID), "SidS": uint64(ch.ID.SSID),
	}, "")
	return err
}

// CloseChannel sends the wire CloseChannel command when ch's nested
// scope returns to 0.
func (l *Link) CloseChannel(ch *Channel) error {
	if ch.close() != 0 {
		return nil
	}
	_, err := l.tx("CloseChannel", map[string]uint64{
		"SidP": uint64(ch.ID.PSID), "SidS": uint64(ch.ID.SSID),
	}, "")
	return err
}

// InjectPacket feeds an already-decoded packet (header and payload) into
// the Link's dispatch path without any pipe I/O and without passing
// through the reassembly buffer — the test seam called for in spec §9
// for pinning credit piggybacking behavior.
func (l *Link) InjectPacket(h Header, payload []byte) {
	l.dispatch(h, payload)
}
