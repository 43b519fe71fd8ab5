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
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// downstreamHandler is the client-facing side of a connection: the
// socket to the client, the pre-forwarding buffer, and the read gate
// that realizes blockClientReads/unblockClientReads. It has no opinion
// about session state; Connection, the state machine, decides when to
// call bufferMsg versus forwardToClient and when to flip the gate.
type downstreamHandler struct {
	conn         net.Conn
	logger       *slog.Logger
	maxFrameSize int32
	buffer       *frameBuffer
	gate         *readGate
	writeMu      sync.Mutex
	closeOnce    sync.Once
}

func newDownstreamHandler(conn net.Conn, logger *slog.Logger, maxFrameSize int32, maxBufferedBytes int) *downstreamHandler {
	return &downstreamHandler{
		conn:         conn,
		logger:       logger,
		maxFrameSize: maxFrameSize,
		buffer:       newFrameBuffer(maxBufferedBytes),
		gate:         newReadGate(),
	}
}

// readLoop feeds frames and terminal conditions into events until the
// connection's read side ends. It owns no session state; every value it
// sends is handled serially by Connection.run on the event loop
// goroutine.
func (h *downstreamHandler) readLoop(events chan<- event) {
	for {
		h.gate.wait()
		frame, err := protocol.ReadFrame(h.conn, h.maxFrameSize)
		if err != nil {
			if errors.Is(err, protocol.ErrOversizedFrame) {
				events <- evClientOversized{}
				return
			}
			if errors.Is(err, io.EOF) {
				events <- evClientInactive{}
				return
			}
			h.logger.Debug("downstream read failed", "error", err)
			events <- evClientException{err: err}
			return
		}
		events <- evClientFrame{payload: frame.Payload}
	}
}

// forwardToClient writes payload as a framed response to the client.
func (h *downstreamHandler) forwardToClient(payload []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return protocol.WriteFrame(h.conn, payload)
}

// writeFramed writes bytes that already include their own length
// prefix, as produced by protocol.EncodeLocalApiVersionsResponse.
func (h *downstreamHandler) writeFramed(framed []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_, err := h.conn.Write(framed)
	return err
}

func (h *downstreamHandler) bufferMsg(frame []byte) error {
	return h.buffer.push(frame)
}

func (h *downstreamHandler) drainBuffer() [][]byte {
	return h.buffer.drain()
}

func (h *downstreamHandler) blockReads() {
	h.gate.block()
}

func (h *downstreamHandler) unblockReads() {
	h.gate.unblock()
}

func (h *downstreamHandler) close() error {
	var err error
	h.closeOnce.Do(func() {
		err = h.conn.Close()
	})
	return err
}
