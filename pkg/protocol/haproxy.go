// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package protocol

import (
	"net"
	"time"

	"github.com/pires/go-proxyproto"
)

// WrapListenerWithHAProxy wraps l so accepted connections transparently
// decode a leading PROXY protocol v1/v2 preamble when one is present.
// Connections without a preamble pass through unchanged: the decision
// between the HaProxy and ApiVersions startup branches is made per the
// result of PreambleFrom, not by requiring every client to send one.
func WrapListenerWithHAProxy(l net.Listener, readHeaderTimeout time.Duration) net.Listener {
	return &proxyproto.Listener{
		Listener:          l,
		ReadHeaderTimeout: readHeaderTimeout,
		Policy: func(upstream net.Addr) (proxyproto.Policy, error) {
			return proxyproto.USE, nil
		},
	}
}

// Preamble is the subset of a decoded PROXY protocol header the engine
// cares about: the address the original client connected from.
type Preamble struct {
	Version    byte
	SourceAddr net.Addr
	DestAddr   net.Addr
}

// PreambleFrom inspects conn for a decoded PROXY protocol header. It
// returns ok=false when conn was not produced by a HAProxy-wrapped
// listener, or no header was present on this particular connection.
func PreambleFrom(conn net.Conn) (Preamble, bool) {
	ppConn, ok := conn.(*proxyproto.Conn)
	if !ok {
		return Preamble{}, false
	}
	header := ppConn.ProxyHeader()
	if header == nil {
		return Preamble{}, false
	}
	return Preamble{
		Version:    header.Version,
		SourceAddr: header.SourceAddr,
		DestAddr:   header.DestinationAddr,
	}, true
}
