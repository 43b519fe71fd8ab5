// Copyright 2025, 2026 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
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

package proxy

import "github.com/novatechflow/kroxylite/pkg/protocol"

// State is the session state of one client connection. It is a closed set
// of variants rather than an open interface: every variant lives in this
// file and the type switches on c.state in statemachine.go cover them.
// Keeping it a tagged union instead of nullable
// fields on one struct means a Connecting connection cannot accidentally
// carry Forwarding data, or vice versa.
type State interface {
	Name() string
	// sessionState is unexported so only this package can add variants.
	sessionState()
}

// ClientMeta is the client-identifying information picked up while
// negotiating ApiVersions, carried forward into SelectingServer,
// Connecting and Forwarding so a net-filter or filter can see it.
type ClientMeta struct {
	ClientSoftwareName    *string
	ClientSoftwareVersion *string
	Preamble              *protocol.Preamble
}

// Startup is the state of a connection before onClientActive fires.
type Startup struct{}

func (Startup) Name() string { return "Startup" }
func (Startup) sessionState() {}

// ClientActive is the state once the downstream socket is usable but
// before any PROXY preamble or Kafka request has arrived.
type ClientActive struct{}

func (ClientActive) Name() string { return "ClientActive" }
func (ClientActive) sessionState() {}

// HaProxyState records a decoded PROXY protocol preamble while the
// connection waits for the first KRPC frame.
type HaProxyState struct {
	Preamble protocol.Preamble
}

func (HaProxyState) Name() string { return "HaProxy" }
func (HaProxyState) sessionState() {}

// ApiVersionsState is entered when SASL authentication offload is
// enabled and the client's ApiVersions request is about to be answered
// locally, before any broker has been selected.
type ApiVersionsState struct {
	Meta ClientMeta
}

func (ApiVersionsState) Name() string { return "ApiVersions" }
func (ApiVersionsState) sessionState() {}

// SelectingServer is entered once the client's first real KRPC request
// has arrived and the net-filter has been asked to pick a broker.
// Further client frames are buffered, not forwarded, while in this
// state.
type SelectingServer struct {
	Meta ClientMeta
}

func (SelectingServer) Name() string { return "SelectingServer" }
func (SelectingServer) sessionState() {}

// Connecting is entered once the net-filter has called
// initiateConnect; the upstream dial is in flight and the downstream
// buffer keeps accumulating.
type Connecting struct {
	Remote         string
	Filters        []FilterEntry
	VirtualCluster string
}

func (Connecting) Name() string { return "Connecting" }
func (Connecting) sessionState() {}

// Forwarding is the steady state: the upstream socket is active, the
// downstream buffer has been drained, and both directions run frames
// through the configured filter pipeline.
type Forwarding struct {
	Remote         string
	Filters        []FilterEntry
	VirtualCluster string
}

func (Forwarding) Name() string { return "Forwarding" }
func (Forwarding) sessionState() {}

// Closing is entered on the first sign of trouble, or a clean shutdown.
// Cause is nil for a clean disconnect. ClientDone/ServerDone track which
// sides have confirmed their own close so Closed is only reached once
// both have.
type Closing struct {
	Cause      error
	ClientDone bool
	ServerDone bool
}

func (Closing) Name() string { return "Closing" }
func (Closing) sessionState() {}

// Closed is terminal. Every event received in this state is absorbed
// silently.
type Closed struct {
	Cause error
}

func (Closed) Name() string { return "Closed" }
func (Closed) sessionState() {}
