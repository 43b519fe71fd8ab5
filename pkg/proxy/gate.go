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

import "sync"

// readGate is an auto-read flag realized without socket-level read
// suspension: net.Conn's Read blocks regardless, so pausing a side means
// the reader goroutine parks here between frames instead of issuing the
// next Read. block/unblock only do work on an edge.
type readGate struct {
	mu        sync.Mutex
	blocked   bool
	unblocked chan struct{}
}

func newReadGate() *readGate {
	return &readGate{unblocked: make(chan struct{})}
}

func (g *readGate) block() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.blocked {
		return
	}
	g.blocked = true
	g.unblocked = make(chan struct{})
}

func (g *readGate) unblock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.blocked {
		return
	}
	g.blocked = false
	close(g.unblocked)
}

// wait blocks the calling goroutine until the gate is open. Safe to
// call repeatedly from a single reader goroutine between frames.
func (g *readGate) wait() {
	g.mu.Lock()
	blocked := g.blocked
	ch := g.unblocked
	g.mu.Unlock()
	if blocked {
		<-ch
	}
}
