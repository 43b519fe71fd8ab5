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

// event is the single-threaded cooperative event loop's unit of work.
// Every handler for one connection runs on a single event-loop goroutine
// with no internal locking: reader, dial and writability-watcher
// goroutines only ever produce events onto one channel, and
// Connection.run is the sole consumer, so everything it touches needs no
// lock.
type event interface{ isEvent() }

type evClientActive struct{}
type evPreamble struct{ preamble protocol.Preamble }
type evClientFrame struct{ payload []byte }
type evClientOversized struct{}
type evClientInactive struct{}
type evClientException struct{ err error }
type evClientWritability struct{ writable bool }

type evServerFrame struct{ payload []byte }
type evServerInactive struct{}
type evServerException struct{ err error }
type evServerWritability struct{ writable bool }

type evNetFilterConnect struct {
	remote         string
	filters        []FilterEntry
	virtualCluster string
}
type evNetFilterFailed struct{ err error }

func (evClientActive) isEvent()       {}
func (evPreamble) isEvent()           {}
func (evClientFrame) isEvent()        {}
func (evClientOversized) isEvent()    {}
func (evClientInactive) isEvent()     {}
func (evClientException) isEvent()    {}
func (evClientWritability) isEvent()  {}
func (evServerFrame) isEvent()        {}
func (evServerInactive) isEvent()     {}
func (evServerException) isEvent()    {}
func (evServerWritability) isEvent()  {}
func (evNetFilterConnect) isEvent()   {}
func (evNetFilterFailed) isEvent()    {}
