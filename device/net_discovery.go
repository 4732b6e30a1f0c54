// Copyright 2024 The epsink Authors. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package device

import (
	"context"
	"net"
	"time"

	"github.com/grandcat/zeroconf"
)

// netServiceTypes are the mDNS-SD service types a network-attached
// printer advertises (spec §4.H, §6).
var netServiceTypes = []string{"_ipp._tcp", "_ipps._tcp", "_printer._tcp"}

// NetCandidate is one (ip, name) pair resolved over mDNS-SD.
type NetCandidate struct {
	Name string
	IP   net.IP
	Port int
}

// DiscoverNet browses all three printer mDNS-SD service types for
// timeout and returns every IPv4 entry found; IPv6 entries are skipped
// (spec §4.H).
func DiscoverNet(timeout time.Duration) ([]NetCandidate, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}

	var found []NetCandidate
	for _, svc := range netServiceTypes {
		entries := make(chan *zeroconf.ServiceEntry, 16)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for entry := range entries {
				for _, ip := range entry.AddrIPv4 {
					found = append(found, NetCandidate{Name: entry.Instance, IP: ip, Port: entry.Port})
				}
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := resolver.Browse(ctx, svc, "local.", entries)
		if err != nil {
			cancel()
			return found, err
		}
		<-ctx.Done()
		cancel()
		<-done
	}
	return found, nil
}
