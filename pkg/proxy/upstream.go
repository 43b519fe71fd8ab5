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
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// upstreamHandler is the broker-facing side of a connection. It owns
// the correlation map, which has exactly one writer: this handler,
// mutated only from the connection's event loop.
type upstreamHandler struct {
	conn         net.Conn
	logger       *slog.Logger
	maxFrameSize int32
	correlation  *correlationMap
	gate         *readGate
	writeMu      sync.Mutex
	closeOnce    sync.Once
	nextInternal int32
}

// dialUpstream opens a TCP connection to remote with the given dial
// timeout and TCP_NODELAY setting.
func dialUpstream(ctx context.Context, remote string, dialTimeout time.Duration, tcpNoDelay bool) (net.Conn, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", remote)
	if err != nil {
		return nil, fmt.Errorf("dial upstream %s: %w", remote, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(tcpNoDelay)
	}
	return conn, nil
}

func newUpstreamHandler(conn net.Conn, logger *slog.Logger, maxFrameSize int32) *upstreamHandler {
	return &upstreamHandler{
		conn:         conn,
		logger:       logger,
		maxFrameSize: maxFrameSize,
		correlation:  newCorrelationMap(),
		gate:         newReadGate(),
		nextInternal: -1,
	}
}

// readLoop mirrors downstreamHandler.readLoop for the broker side.
func (h *upstreamHandler) readLoop(events chan<- event) {
	for {
		h.gate.wait()
		frame, err := protocol.ReadFrame(h.conn, h.maxFrameSize)
		if err != nil {
			if errors.Is(err, io.EOF) {
				events <- evServerInactive{}
				return
			}
			h.logger.Debug("upstream read failed", "error", err)
			events <- evServerException{err: err}
			return
		}
		events <- evServerFrame{payload: frame.Payload}
	}
}

func (h *upstreamHandler) forwardToServer(payload []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return protocol.WriteFrame(h.conn, payload)
}

func (h *upstreamHandler) blockReads() {
	h.gate.block()
}

func (h *upstreamHandler) unblockReads() {
	h.gate.unblock()
}

func (h *upstreamHandler) close() error {
	var err error
	h.closeOnce.Do(func() {
		err = h.conn.Close()
	})
	return err
}

// allocateInternalID hands out correlation ids for filter-originated
// requests from a band disjoint from client-assigned ids: real clients
// count up from small non-negative integers, so counting down from -1
// keeps collisions vanishingly unlikely without coordinating with the
// client's own counter.
func (h *upstreamHandler) allocateInternalID() int32 {
	id := h.nextInternal
	h.nextInternal--
	return id
}

// originate builds and sends a request header-prefixed frame for a
// filter-originated call, registers an internal correlation entry, and
// returns the channel its eventual response (or close-triggered
// failure) will arrive on.
func (h *upstreamHandler) originate(apiKey, apiVersion int16, body []byte) (<-chan OriginatedResponse, error) {
	id := h.allocateInternalID()
	promise := make(chan OriginatedResponse, 1)
	if err := h.correlation.insert(id, &correlationEntry{
		apiKey:     apiKey,
		apiVersion: apiVersion,
		kind:       correlationInternal,
		promise:    promise,
	}); err != nil {
		return nil, err
	}

	w := newRequestFrame(apiKey, apiVersion, id, body)
	if err := h.forwardToServer(w); err != nil {
		h.correlation.remove(id)
		return nil, err
	}
	return promise, nil
}

func newRequestFrame(apiKey, apiVersion int16, correlationID int32, body []byte) []byte {
	header := protocol.RequestHeader{APIKey: apiKey, APIVersion: apiVersion, CorrelationID: correlationID}
	buf := make([]byte, 0, len(body)+16)
	buf = append(buf, protocol.EncodeRequestHeaderBytes(header)...)
	buf = append(buf, body...)
	return buf
}
