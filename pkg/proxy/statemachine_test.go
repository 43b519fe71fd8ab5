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
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/novatechflow/kroxylite/pkg/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// idleNetFilter never calls InitiateConnect; it is used by tests that
// only care about the ClientActive -> SelectingServer transition and
// don't want a real broker dial in flight.
type idleNetFilter struct{}

func (idleNetFilter) SelectServer(ctx context.Context, nfCtx NetFilterContext) error { return nil }

// newTestConnection wires a Connection to one end of a pipe standing in
// for the client socket, returning the other end plus a channel that
// continuously drains every frame the engine writes to it. Draining in
// the background, rather than leaving it to each test, matters because
// net.Pipe is unbuffered: a write the engine makes synchronously inside
// dispatch would otherwise block forever until something reads it.
func newTestConnection(t *testing.T, cfg EngineConfig, nf NetFilter) (c *Connection, clientFrames <-chan []byte) {
	t.Helper()
	clientSide, proxySide := net.Pipe()
	t.Cleanup(func() { _ = clientSide.Close(); _ = proxySide.Close() })

	frames := make(chan []byte, 16)
	go func() {
		for {
			frame, err := protocol.ReadFrame(clientSide, 0)
			if err != nil {
				close(frames)
				return
			}
			frames <- frame.Payload
		}
	}()

	c = NewConnection("test", proxySide, testLogger(), cfg, nf)
	return c, frames
}

func requestFrame(t *testing.T, header *protocol.RequestHeader, req protocol.Request) []byte {
	t.Helper()
	payload, err := protocol.EncodeRequest(header, req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	return payload
}

func TestOnClientActiveTransitionsStartupToClientActive(t *testing.T) {
	c, _ := newTestConnection(t, EngineConfig{}, idleNetFilter{})
	c.dispatch(evClientActive{})
	if _, ok := c.state.(ClientActive); !ok {
		t.Fatalf("expected ClientActive, got %s", c.state.Name())
	}
}

func TestOnClientActiveTwiceIsFatal(t *testing.T) {
	c, _ := newTestConnection(t, EngineConfig{}, idleNetFilter{})
	c.dispatch(evClientActive{})
	c.dispatch(evClientActive{})
	if _, ok := c.state.(Closed); !ok {
		t.Fatalf("expected Closed after a second onClientActive, got %s", c.state.Name())
	}
}

func TestOnPreambleEntersHaProxyState(t *testing.T) {
	c, _ := newTestConnection(t, EngineConfig{}, idleNetFilter{})
	c.dispatch(evClientActive{})
	c.dispatch(evPreamble{preamble: protocol.Preamble{}})
	if _, ok := c.state.(HaProxyState); !ok {
		t.Fatalf("expected HaProxy state, got %s", c.state.Name())
	}
}

func TestFirstClientFrameNonApiVersionsEntersSelectingServer(t *testing.T) {
	c, _ := newTestConnection(t, EngineConfig{}, idleNetFilter{})
	c.dispatch(evClientActive{})

	header := &protocol.RequestHeader{APIKey: protocol.APIKeyMetadata, APIVersion: 9, CorrelationID: 1}
	payload := requestFrame(t, header, &protocol.MetadataRequest{})
	c.dispatch(evClientFrame{payload: payload})

	if _, ok := c.state.(SelectingServer); !ok {
		t.Fatalf("expected SelectingServer, got %s", c.state.Name())
	}
	if c.downstream.buffer.len() != 1 {
		t.Fatalf("expected the first frame to be buffered, got len=%d", c.downstream.buffer.len())
	}
}

func TestApiVersionsOffloadAnswersLocallyAndStaysBuffered(t *testing.T) {
	c, clientFrames := newTestConnection(t, EngineConfig{SASLAuthenticationOffload: true}, idleNetFilter{})
	c.dispatch(evClientActive{})

	header := &protocol.RequestHeader{APIKey: protocol.APIKeyApiVersion, APIVersion: 3, CorrelationID: 9}
	payload := requestFrame(t, header, &protocol.ApiVersionsRequest{})
	c.dispatch(evClientFrame{payload: payload})

	if _, ok := c.state.(ApiVersionsState); !ok {
		t.Fatalf("expected ApiVersions state, got %s", c.state.Name())
	}
	if c.downstream.buffer.len() != 1 {
		t.Fatalf("expected the ApiVersions request to be buffered for later forwarding, got len=%d", c.downstream.buffer.len())
	}

	select {
	case body, ok := <-clientFrames:
		if !ok {
			t.Fatalf("expected a locally synthesized ApiVersions response")
		}
		respHeader, _, err := protocol.ParseResponseHeader(body, true)
		if err != nil {
			t.Fatalf("ParseResponseHeader: %v", err)
		}
		if respHeader.CorrelationID != 9 {
			t.Fatalf("unexpected correlation id %d", respHeader.CorrelationID)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the local ApiVersions response")
	}
}

func TestOnClientOversizedClosesConnection(t *testing.T) {
	c, _ := newTestConnection(t, EngineConfig{}, idleNetFilter{})
	c.dispatch(evClientActive{})
	c.dispatch(evClientOversized{})
	if _, ok := c.state.(Closed); !ok {
		t.Fatalf("expected Closed, got %s", c.state.Name())
	}
}

func TestOnClientInactiveClosesCleanly(t *testing.T) {
	c, _ := newTestConnection(t, EngineConfig{}, idleNetFilter{})
	c.dispatch(evClientActive{})
	c.dispatch(evClientInactive{})
	closed, ok := c.state.(Closed)
	if !ok {
		t.Fatalf("expected Closed, got %s", c.state.Name())
	}
	if closed.Cause != nil {
		t.Fatalf("expected a clean close, got cause %v", closed.Cause)
	}
}

// setupForwarding drives c directly into Forwarding, wiring upstream to
// a broker-side pipe without going through the real dial goroutine.
// net.Pipe is unbuffered, so frames the engine writes to the broker are
// drained into brokerFrames by a background goroutine rather than read
// synchronously by the caller, which would deadlock against the write
// happening inside c.dispatch itself.
func setupForwarding(t *testing.T, c *Connection) (brokerSide net.Conn, brokerFrames <-chan []byte) {
	t.Helper()
	brokerSide, upstreamSide := net.Pipe()
	t.Cleanup(func() { _ = brokerSide.Close(); _ = upstreamSide.Close() })

	frames := make(chan []byte, 16)
	go func() {
		for {
			frame, err := protocol.ReadFrame(brokerSide, 0)
			if err != nil {
				close(frames)
				return
			}
			frames <- frame.Payload
		}
	}()

	c.dispatch(evClientActive{})
	header := &protocol.RequestHeader{APIKey: protocol.APIKeyMetadata, APIVersion: 9, CorrelationID: 1}
	payload := requestFrame(t, header, &protocol.MetadataRequest{})
	c.dispatch(evClientFrame{payload: payload})

	// Skip the real net-filter/dial goroutines entirely and drive
	// Connecting -> Forwarding directly, the way NewConnection's doc
	// comment describes driving dispatch without real sockets.
	c.filters = nil
	c.virtualCluster = "default"
	c.transition(Connecting{Remote: "broker:9092", Filters: nil, VirtualCluster: "default"})
	c.dispatch(upstreamDialed{conn: upstreamSide})

	if _, ok := c.state.(Forwarding); !ok {
		t.Fatalf("setupForwarding: expected Forwarding, got %s", c.state.Name())
	}
	return brokerSide, frames
}

func TestEnteringForwardingDrainsBufferedFrameToServer(t *testing.T) {
	c, _ := newTestConnection(t, EngineConfig{}, idleNetFilter{})
	_, brokerFrames := setupForwarding(t, c)

	select {
	case payload, ok := <-brokerFrames:
		if !ok {
			t.Fatalf("broker-side reader ended unexpectedly")
		}
		gotHeader, _, err := protocol.ParseRequest(payload)
		if err != nil {
			t.Fatalf("ParseRequest: %v", err)
		}
		if gotHeader.APIKey != protocol.APIKeyMetadata {
			t.Fatalf("unexpected api key %d forwarded to broker", gotHeader.APIKey)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the buffered frame to reach the broker")
	}
	if c.upstream.correlation.len() != 1 {
		t.Fatalf("expected one in-flight correlation entry, got %d", c.upstream.correlation.len())
	}
}

func TestOnServerFrameUnknownCorrelationCloses(t *testing.T) {
	c, _ := newTestConnection(t, EngineConfig{}, idleNetFilter{})
	setupForwarding(t, c)

	respHeader := protocol.EncodeResponseHeaderBytes(999, false)
	c.dispatch(evServerFrame{payload: respHeader})

	if _, ok := c.state.(Closed); !ok {
		t.Fatalf("expected Closed after an unknown correlation id, got %s", c.state.Name())
	}
}

func TestOnServerFrameForwardsMatchingResponse(t *testing.T) {
	c, clientFrames := newTestConnection(t, EngineConfig{}, idleNetFilter{})
	setupForwarding(t, c)

	var corrID int32
	for id := range c.upstream.correlation.entries {
		corrID = id
	}

	respBody := protocol.EncodeResponseHeaderBytes(corrID, true)
	c.dispatch(evServerFrame{payload: respBody})

	select {
	case body, ok := <-clientFrames:
		if !ok {
			t.Fatalf("expected a response forwarded to the client")
		}
		header, _, err := protocol.ParseResponseHeader(body, false)
		if err != nil {
			t.Fatalf("ParseResponseHeader: %v", err)
		}
		if header.CorrelationID != corrID {
			t.Fatalf("unexpected correlation id %d, want %d", header.CorrelationID, corrID)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the forwarded response")
	}
	if c.upstream.correlation.len() != 0 {
		t.Fatalf("expected the correlation entry to be removed once answered, got %d", c.upstream.correlation.len())
	}
}

func TestCloseWithCauseClosesBothSidesSynchronously(t *testing.T) {
	c, clientFrames := newTestConnection(t, EngineConfig{}, idleNetFilter{})
	_, brokerFrames := setupForwarding(t, c)

	c.dispatch(evClientInactive{})

	closed, ok := c.state.(Closed)
	if !ok {
		t.Fatalf("expected Closed immediately after the triggering event, got %s", c.state.Name())
	}
	if closed.Cause != nil {
		t.Fatalf("expected clean close cause, got %v", closed.Cause)
	}
	if c.upstream.correlation.len() != 0 {
		t.Fatalf("expected failAll to have cleared the correlation map, got %d", c.upstream.correlation.len())
	}

	// Both sides of the connection were closed synchronously inside
	// closeWithCause, so both background readers should already have
	// observed end-of-stream by the time dispatch returned above.
	select {
	case _, ok := <-clientFrames:
		if ok {
			t.Fatalf("expected no further client-bound frames")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the client side to close")
	}
	select {
	case _, ok := <-brokerFrames:
		if ok {
			t.Fatalf("expected no further broker-bound frames")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the broker side to close")
	}
}

func TestClosedStateAbsorbsFurtherEvents(t *testing.T) {
	c, _ := newTestConnection(t, EngineConfig{}, idleNetFilter{})
	c.dispatch(evClientActive{})
	c.dispatch(evClientInactive{})
	if _, ok := c.state.(Closed); !ok {
		t.Fatalf("expected Closed, got %s", c.state.Name())
	}
	// A second close-triggering event must not panic or double-count.
	c.dispatch(evClientInactive{})
	if _, ok := c.state.(Closed); !ok {
		t.Fatalf("expected to remain Closed, got %s", c.state.Name())
	}
}
