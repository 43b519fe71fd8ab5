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

import (
	"errors"
	"fmt"
)

// ErrConnectionClosed completes any outstanding internal promise when
// the upstream connection goes away before a matching response arrives.
var ErrConnectionClosed = errors.New("proxy: upstream connection closed")

// correlationKind distinguishes a request the client itself sent from
// one a filter originated on its own behalf via RequestContext.
type correlationKind int

const (
	correlationExternal correlationKind = iota
	correlationInternal
)

// correlationEntry is what the upstream handler remembers about one
// in-flight request so it knows what to do when the matching response
// arrives: forward it (external) or hand it to the filter that asked
// for it (internal).
type correlationEntry struct {
	apiKey     int16
	apiVersion int16
	kind       correlationKind
	promise    chan OriginatedResponse
}

// correlationMap is owned exclusively by the upstream handler and
// mutated only on the connection's event loop; it is never read or
// written concurrently from another goroutine. Filter-originated
// inserts happen inline during upstreamHandler.originate, itself only
// ever called synchronously from the event loop via requestContext.
type correlationMap struct {
	entries map[int32]*correlationEntry
}

func newCorrelationMap() *correlationMap {
	return &correlationMap{entries: make(map[int32]*correlationEntry)}
}

// insert registers id. At most one entry may be live per id at a time;
// a collision is a programmer error (or an adversarial peer reusing a
// correlation id still in flight) and is reported rather than silently
// overwritten.
func (m *correlationMap) insert(id int32, entry *correlationEntry) error {
	if _, exists := m.entries[id]; exists {
		return fmt.Errorf("correlation id %d already in flight", id)
	}
	m.entries[id] = entry
	return nil
}

// remove deletes and returns the entry for id, if any.
func (m *correlationMap) remove(id int32) (*correlationEntry, bool) {
	entry, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
	}
	return entry, ok
}

// failAll completes every outstanding internal promise with err and
// drops every external entry. Called once, when the upstream connection
// transitions out of Forwarding for good.
func (m *correlationMap) failAll(err error) {
	for id, entry := range m.entries {
		if entry.kind == correlationInternal {
			entry.promise <- OriginatedResponse{Err: err}
			close(entry.promise)
		}
		delete(m.entries, id)
	}
}

// len reports the number of in-flight correlation ids, for tests and
// metrics.
func (m *correlationMap) len() int {
	return len(m.entries)
}
