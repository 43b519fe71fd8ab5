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
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// Engine accepts downstream connections and hands each one to its own
// Connection and goroutine. One Engine listens on one address; a
// deployment that needs several virtual clusters on distinct ports runs
// one Engine per listener, all sharing a ClusterRegistry.
type Engine struct {
	Addr              string
	Logger            *slog.Logger
	Config            EngineConfig
	NetFilter         NetFilter
	ReadHeaderTimeout time.Duration // PROXY preamble read timeout

	listener net.Listener
	wg       sync.WaitGroup
	nextID   atomic.Uint64
}

// ListenAndServe accepts connections until ctx is done. It wraps the
// raw listener with HAProxy preamble decoding unconditionally: clients
// that never send a preamble are unaffected, per protocol.PreambleFrom.
func (e *Engine) ListenAndServe(ctx context.Context) error {
	if e.NetFilter == nil {
		return errors.New("proxy.Engine requires a NetFilter")
	}
	if e.Logger == nil {
		e.Logger = slog.Default()
	}

	ln, err := net.Listen("tcp", e.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", e.Addr, err)
	}
	readHeaderTimeout := e.ReadHeaderTimeout
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 10 * time.Second
	}
	e.listener = protocol.WrapListenerWithHAProxy(ln, readHeaderTimeout)
	e.Logger.Info("proxy engine listening", "addr", e.listener.Addr())

	go func() {
		<-ctx.Done()
		_ = e.listener.Close()
	}()

	for {
		conn, err := e.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				e.Logger.Warn("accept timeout", "error", err)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		e.wg.Add(1)
		go func(c net.Conn) {
			defer e.wg.Done()
			e.serve(c)
		}(conn)
	}
}

// Wait blocks until every accepted connection's goroutines have exited.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// ListenAddress returns the listener's actual address, useful in tests
// that bind to ":0".
func (e *Engine) ListenAddress() string {
	if e.listener != nil {
		return e.listener.Addr().String()
	}
	return e.Addr
}

func (e *Engine) serve(conn net.Conn) {
	id := fmt.Sprintf("conn-%d", e.nextID.Add(1))
	var preamblePtr *protocol.Preamble
	if pr, ok := protocol.PreambleFrom(conn); ok {
		preamblePtr = &pr
	}

	c := NewConnection(id, conn, e.Logger, e.Config, e.NetFilter)
	c.Start(preamblePtr)
	<-c.Done()
}
