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
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
)

// ErrAlreadyConnecting is returned by NetFilterContext.InitiateConnect
// when it is called a second time on the same connection.
var ErrAlreadyConnecting = errors.New("proxy: initiateConnect called outside SelectingServer or more than once")

// NetFilterContext is handed to NetFilter.SelectServer. It exposes the
// client metadata collected so far and the single terminal method a
// net-filter may call exactly once.
type NetFilterContext interface {
	ClientSoftwareName() *string
	ClientSoftwareVersion() *string
	Preamble() *Preamble
	// InitiateConnect commits the connection to remote using filters,
	// labeling it with virtualCluster for metrics and RequestContext.
	// Calling it twice returns ErrAlreadyConnecting. A call that reaches
	// the connection outside SelectingServer closes the connection as a
	// protocol violation.
	InitiateConnect(remote string, filters []FilterEntry, virtualCluster string) error
}

// Preamble re-exports the PROXY protocol fields a net-filter may care
// about without requiring it to import pkg/protocol directly.
type Preamble struct {
	SourceAddr net.Addr
	DestAddr   net.Addr
}

// NetFilter is the external collaborator that picks an upstream broker
// address and the filter chain to run on a connection, given the
// client metadata gathered by the time the connection reaches
// SelectingServer.
type NetFilter interface {
	SelectServer(ctx context.Context, nfCtx NetFilterContext) error
}

// netFilterContext is the Connection-owned implementation of
// NetFilterContext. InitiateConnect posts evNetFilterConnect back onto
// the connection's event loop instead of mutating state directly: the
// net-filter runs on its own goroutine (SelectServer must not block the
// event loop), so this is the one place a non-loop goroutine is allowed
// to reach into a connection, and it does so only through the event
// channel.
type netFilterContext struct {
	meta   ClientMeta
	events chan<- event
	done   <-chan struct{}

	mu   sync.Mutex
	used bool
}

func (c *netFilterContext) ClientSoftwareName() *string    { return c.meta.ClientSoftwareName }
func (c *netFilterContext) ClientSoftwareVersion() *string  { return c.meta.ClientSoftwareVersion }

func (c *netFilterContext) Preamble() *Preamble {
	if c.meta.Preamble == nil {
		return nil
	}
	return &Preamble{SourceAddr: c.meta.Preamble.SourceAddr, DestAddr: c.meta.Preamble.DestAddr}
}

func (c *netFilterContext) InitiateConnect(remote string, filters []FilterEntry, virtualCluster string) error {
	c.mu.Lock()
	if c.used {
		c.mu.Unlock()
		return ErrAlreadyConnecting
	}
	c.used = true
	c.mu.Unlock()

	select {
	case c.events <- evNetFilterConnect{remote: remote, filters: filters, virtualCluster: virtualCluster}:
	case <-c.done:
	}
	return nil
}

// VirtualClusterSpec is one entry a Registry can match a connection
// against: a name, the filters to run, and the broker address to
// forward to.
type VirtualClusterSpec struct {
	Name    string
	Remote  string
	Filters []FilterEntry
}

// ClusterRegistry holds the set of virtual clusters this engine can
// route to. It is read concurrently from many connections' net-filter
// goroutines and written by the controller reconciling VirtualCluster
// resources (see pkg/operator), hence the RWMutex.
type ClusterRegistry struct {
	mu       sync.RWMutex
	clusters map[string]VirtualClusterSpec
	default_ string
}

func NewClusterRegistry() *ClusterRegistry {
	return &ClusterRegistry{clusters: make(map[string]VirtualClusterSpec)}
}

func (r *ClusterRegistry) Set(spec VirtualClusterSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clusters[spec.Name] = spec
	if r.default_ == "" {
		r.default_ = spec.Name
	}
}

func (r *ClusterRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clusters, name)
	if r.default_ == name {
		r.default_ = ""
		for n := range r.clusters {
			r.default_ = n
			break
		}
	}
}

func (r *ClusterRegistry) Get(name string) (VirtualClusterSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.clusters[name]
	return spec, ok
}

// SetDefault overrides which cluster Default returns, if name is
// currently registered. A reconciler calls this when a VirtualCluster
// resource is explicitly marked as the fallback, instead of relying on
// Set's first-one-wins default.
func (r *ClusterRegistry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clusters[name]; ok {
		r.default_ = name
	}
}

// Default returns the registry's fallback cluster, used when a
// connection carries no cluster-selecting hint (e.g. SNI, a client-id
// prefix) a more elaborate net-filter could inspect.
func (r *ClusterRegistry) Default() (VirtualClusterSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.clusters[r.default_]
	return spec, ok
}

// StaticNetFilter always routes to the registry's default virtual
// cluster. It is the engine's out-of-the-box NetFilter; deployments
// that need per-client routing supply their own.
type StaticNetFilter struct {
	Registry *ClusterRegistry
}

func (f *StaticNetFilter) SelectServer(ctx context.Context, nfCtx NetFilterContext) error {
	spec, ok := f.Registry.Default()
	if !ok {
		return fmt.Errorf("no virtual cluster configured")
	}
	return nfCtx.InitiateConnect(spec.Remote, spec.Filters, spec.Name)
}
