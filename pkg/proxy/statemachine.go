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
	"time"

	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// EngineConfig carries the proxy's external tunables: buffer and frame
// size bounds, the SASL offload switch, logging verbosity, and dial
// behavior.
type EngineConfig struct {
	MaxBufferedBytesBeforeForwarding int
	MaxFrameSizeBytes                int32
	SASLAuthenticationOffload        bool
	LogNetwork                       bool
	LogFrames                        bool
	TCPNoDelay                       bool
	DialTimeoutMillis                int
}

// Connection is the sole mutator of its own State (C7 in the grounding
// ledger): every event, whether sourced from the downstream reader, the
// upstream reader, a net-filter callback, or a writability watcher,
// arrives on events and is handled one at a time by run, so no field on
// Connection needs its own lock.
type Connection struct {
	id     string
	logger *slog.Logger
	cfg    EngineConfig

	netFilter NetFilter

	state        State
	backpressure backpressure

	downstream *downstreamHandler
	upstream   *upstreamHandler

	meta           ClientMeta
	filters        []FilterEntry
	virtualCluster string

	events chan event
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewConnection wires a freshly accepted downstream socket into the
// state machine. The caller still owns starting the goroutines: Start
// does that, separated out so tests can construct a Connection and
// drive its dispatch directly without any real sockets.
func NewConnection(id string, conn net.Conn, logger *slog.Logger, cfg EngineConfig, netFilter NetFilter) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBufferedBytesBeforeForwarding <= 0 {
		cfg.MaxBufferedBytesBeforeForwarding = defaultMaxBufferedBytes
	}
	if cfg.MaxFrameSizeBytes <= 0 {
		cfg.MaxFrameSizeBytes = protocol.DefaultMaxFrameSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		id:         id,
		logger:     logger,
		cfg:        cfg,
		netFilter:  netFilter,
		state:      Startup{},
		downstream: newDownstreamHandler(conn, logger, cfg.MaxFrameSizeBytes, cfg.MaxBufferedBytesBeforeForwarding),
		events:     make(chan event, 64),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the downstream reader and the event loop, then injects
// onClientActive (and, when present, the PROXY preamble already decoded
// transparently by the accepting listener).
func (c *Connection) Start(preamble *protocol.Preamble) {
	go c.run()
	c.events <- evClientActive{}
	if preamble != nil {
		c.events <- evPreamble{preamble: *preamble}
	}
	go c.downstream.readLoop(c.events)
}

// Done is closed once the connection reaches Closed.
func (c *Connection) Done() <-chan struct{} { return c.done }

func (c *Connection) run() {
	for ev := range c.events {
		c.dispatch(ev)
		if _, closed := c.state.(Closed); closed {
			c.cancel()
			close(c.done)
			return
		}
	}
}

func (c *Connection) transition(next State) {
	c.state = next
	stateTransitions.WithLabelValues(next.Name()).Inc()
	if c.cfg.LogNetwork {
		c.logger.Debug("state transition", "connection", c.id, "state", next.Name())
	}
}

func (c *Connection) dispatch(ev event) {
	switch e := ev.(type) {
	case evClientActive:
		c.onClientActive()
	case evPreamble:
		c.onPreamble(e.preamble)
	case evClientFrame:
		bytesIn.Add(float64(len(e.payload)))
		if c.cfg.LogFrames {
			c.logger.Debug("client frame", "connection", c.id, "bytes", len(e.payload))
		}
		c.onClientFrame(e.payload)
	case evClientOversized:
		c.onClientOversized()
	case evClientInactive:
		c.onClientInactive()
	case evClientException:
		c.onClientException(e.err)
	case evClientWritability:
		c.onClientWritability(e.writable)
	case evServerFrame:
		if c.cfg.LogFrames {
			c.logger.Debug("server frame", "connection", c.id, "bytes", len(e.payload))
		}
		c.onServerFrame(e.payload)
	case evServerInactive:
		c.onServerInactive()
	case evServerException:
		c.onServerException(e.err)
	case evServerWritability:
		c.onServerWritability(e.writable)
	case evNetFilterConnect:
		c.onNetFilterInitiateConnect(e.remote, e.filters, e.virtualCluster)
	case evNetFilterFailed:
		c.closeWithCause(&ErrServerException{Cause: e.err})
	case upstreamDialed:
		c.onUpstreamDialed(e.conn)
	default:
		c.fatalf("unhandled event type %T", ev)
	}
}

// --- client-active / preamble -------------------------------------------------

func (c *Connection) onClientActive() {
	if _, ok := c.state.(Startup); !ok {
		c.fatalf("onClientActive received outside Startup (state=%s)", c.state.Name())
		return
	}
	connectionsOpened.Inc()
	c.transition(ClientActive{})
}

func (c *Connection) onPreamble(p protocol.Preamble) {
	switch c.state.(type) {
	case ClientActive:
		c.transition(HaProxyState{Preamble: p})
		c.meta.Preamble = &p
	default:
		// A second preamble, or one outside ClientActive, is a
		// protocol violation: a real client only ever gets one shot
		// at a leading PROXY header.
		c.fatalf("unexpected PROXY preamble in state %s", c.state.Name())
	}
}

// --- client frames -------------------------------------------------------------

func (c *Connection) onClientFrame(payload []byte) {
	switch st := c.state.(type) {
	case ClientActive:
		c.onFirstClientFrame(payload, nil)
	case HaProxyState:
		c.onFirstClientFrame(payload, &st.Preamble)
	case ApiVersionsState:
		c.onSecondClientFrame(payload, st.Meta)
	case SelectingServer:
		c.bufferOrFatal(payload)
	case Connecting:
		c.bufferOrFatal(payload)
	case Forwarding:
		c.onForwardingClientFrame(payload, st)
	case Closing, Closed:
		// absorbed
	default:
		c.fatalf("client frame received in unexpected state %s", c.state.Name())
	}
}

// onFirstClientFrame handles the request that ends ClientActive or
// HaProxy: either it is ApiVersions and SASL offload answers it
// locally, or it drives the connection straight into SelectingServer.
func (c *Connection) onFirstClientFrame(payload []byte, preamble *protocol.Preamble) {
	header, req, err := protocol.ParseRequest(payload)
	if err != nil {
		c.closeWithCause(&ErrClientException{Cause: err})
		return
	}
	meta := ClientMeta{Preamble: preamble}
	if av, ok := req.(*protocol.ApiVersionsRequest); ok {
		meta.ClientSoftwareName = av.ClientSoftwareName
		meta.ClientSoftwareVersion = av.ClientSoftwareVersion
	}
	if header.APIKey == protocol.APIKeyApiVersion && c.cfg.SASLAuthenticationOffload {
		c.meta = meta
		c.transition(ApiVersionsState{Meta: meta})
		if err := c.downstream.bufferMsg(payload); err != nil {
			c.closeOnBufferOverflow()
			return
		}
		c.replyLocalApiVersions(header)
		return
	}
	c.enterSelectingServer(meta, payload)
}

// onSecondClientFrame handles the KRPC request that follows a locally
// answered ApiVersions: it always moves on to SelectingServer.
func (c *Connection) onSecondClientFrame(payload []byte, meta ClientMeta) {
	if _, _, err := protocol.ParseRequest(payload); err != nil {
		c.closeWithCause(&ErrClientException{Cause: err})
		return
	}
	c.enterSelectingServer(meta, payload)
}

func (c *Connection) enterSelectingServer(meta ClientMeta, payload []byte) {
	c.meta = meta
	c.transition(SelectingServer{Meta: meta})
	if err := c.downstream.bufferMsg(payload); err != nil {
		c.closeOnBufferOverflow()
		return
	}
	c.startNetFilter(meta)
}

func (c *Connection) bufferOrFatal(payload []byte) {
	if err := c.downstream.bufferMsg(payload); err != nil {
		c.closeOnBufferOverflow()
	}
}

func (c *Connection) closeOnBufferOverflow() {
	protocolErrors.WithLabelValues("oversized_buffer").Inc()
	c.closeWithCause(fmt.Errorf("%w: %v", ErrProtocolViolation, ErrBufferOverflow))
}

// replyLocalApiVersions synthesizes the SASL-offload ApiVersions reply
// using kmsg's own encoder (see protocol.EncodeLocalApiVersionsResponse)
// and writes it straight to the client: this is the one response body
// the engine builds from scratch rather than forwarding.
func (c *Connection) replyLocalApiVersions(header *protocol.RequestHeader) {
	framed, err := protocol.EncodeLocalApiVersionsResponse(header.CorrelationID, header.APIVersion, header.ClientID)
	if err != nil {
		c.closeWithCause(&ErrServerException{Cause: err})
		return
	}
	if err := c.downstream.writeFramed(framed); err != nil {
		c.closeWithCause(&ErrClientException{Cause: err})
		return
	}
	bytesOut.Add(float64(len(framed)))
}

// startNetFilter runs the configured NetFilter on its own goroutine so
// SelectServer, which may block, never runs on the event loop.
func (c *Connection) startNetFilter(meta ClientMeta) {
	nfCtx := &netFilterContext{meta: meta, events: c.events, done: c.ctx.Done()}
	go func() {
		if err := c.netFilter.SelectServer(c.ctx, nfCtx); err != nil {
			select {
			case c.events <- evNetFilterFailed{err: err}:
			case <-c.ctx.Done():
			}
		}
	}()
}

// onNetFilterInitiateConnect implements SelectingServer -> Connecting
// and immediately starts the broker dial in the background.
func (c *Connection) onNetFilterInitiateConnect(remote string, filters []FilterEntry, virtualCluster string) {
	if _, ok := c.state.(SelectingServer); !ok {
		c.fatalf("initiateConnect called outside SelectingServer (state=%s)", c.state.Name())
		return
	}
	c.filters = filters
	c.virtualCluster = virtualCluster
	c.transition(Connecting{Remote: remote, Filters: filters, VirtualCluster: virtualCluster})

	dialTimeout := dialTimeoutFromMillis(c.cfg.DialTimeoutMillis)
	go func() {
		conn, err := dialUpstream(c.ctx, remote, dialTimeout, c.cfg.TCPNoDelay)
		if err != nil {
			select {
			case c.events <- evNetFilterFailed{err: err}:
			case <-c.ctx.Done():
			}
			return
		}
		select {
		case c.events <- upstreamDialed{conn: conn}:
		case <-c.ctx.Done():
			_ = conn.Close()
		}
	}()
}

// --- server lifecycle ----------------------------------------------------------

// upstreamDialed is handled specially by dispatch (below) because it
// carries a net.Conn rather than plain data; it still flows through the
// same event channel as everything else.
type upstreamDialed struct{ conn net.Conn }

func (upstreamDialed) isEvent() {}

// onUpstreamDialed wires the dialed socket into an upstreamHandler,
// starts its reader, and fires the Connecting -> Forwarding transition.
func (c *Connection) onUpstreamDialed(conn net.Conn) {
	if _, ok := c.state.(Connecting); !ok {
		_ = conn.Close()
		c.fatalf("upstream dialed outside Connecting (state=%s)", c.state.Name())
		return
	}
	c.upstream = newUpstreamHandler(conn, c.logger, c.cfg.MaxFrameSizeBytes)
	go c.upstream.readLoop(c.events)
	c.onServerActive()
}

func (c *Connection) onServerActive() {
	switch st := c.state.(type) {
	case Connecting:
		c.transition(Forwarding{Remote: st.Remote, Filters: st.Filters, VirtualCluster: st.VirtualCluster})
		c.drainBufferToServer()
	default:
		c.fatalf("onServerActive received outside Connecting (state=%s)", c.state.Name())
	}
}

func (c *Connection) drainBufferToServer() {
	for _, frame := range c.downstream.drainBuffer() {
		c.forwardClientFrameToServer(frame)
	}
}

func (c *Connection) onForwardingClientFrame(payload []byte, st Forwarding) {
	c.forwardClientFrameToServer(payload)
}

// forwardClientFrameToServer decodes, runs the request filter pipeline,
// and acts on the result. It is used both for frames arriving live in
// Forwarding and for frames drained from the pre-forwarding buffer.
func (c *Connection) forwardClientFrameToServer(payload []byte) {
	header, req, err := protocol.ParseRequest(payload)
	if err != nil {
		c.closeWithCause(&ErrClientException{Cause: err})
		return
	}

	mkCtx := func(filterIndex int) RequestContext {
		return &requestContext{conn: c, correlationID: header.CorrelationID}
	}
	result, err := runRequestFilters(c.ctx, c.filters, header, req, mkCtx)
	if err != nil {
		c.closeWithCause(&ErrFilterError{Filter: "request", Cause: err})
		return
	}

	switch result.kind {
	case kindForward:
		frame, err := protocol.EncodeRequest(result.header, result.request)
		if err != nil {
			c.closeWithCause(&ErrClientException{Cause: err})
			return
		}
		if err := c.upstream.correlation.insert(result.header.CorrelationID, &correlationEntry{
			apiKey:     result.header.APIKey,
			apiVersion: result.header.APIVersion,
			kind:       correlationExternal,
		}); err != nil {
			c.closeWithCause(&ErrClientException{Cause: err})
			return
		}
		if err := c.upstream.forwardToServer(frame); err != nil {
			c.closeWithCause(&ErrServerException{Cause: err})
		}
	case kindDrop:
		// Nothing is sent upstream and the client gets no response.
	case kindShortCircuit:
		c.shortCircuit(header, result)
	case kindDisconnect:
		c.closeWithCause(nil)
	}
}

func (c *Connection) shortCircuit(reqHeader *protocol.RequestHeader, result RequestResult) {
	flexible := protocol.IsFlexibleAPI(reqHeader.APIKey, reqHeader.APIVersion)
	respHeader := result.scHeader
	if respHeader == nil {
		respHeader = &protocol.ResponseHeader{CorrelationID: reqHeader.CorrelationID}
	}
	frame := encodeRawResponse(*respHeader, flexible, result.scBody)
	if err := c.downstream.forwardToClient(frame); err != nil {
		c.closeWithCause(&ErrClientException{Cause: err})
		return
	}
	bytesOut.Add(float64(len(frame)))
	shortCircuits.WithLabelValues("request-filter").Inc()
	if result.closeAfter {
		c.closeWithCause(nil)
	}
}

func encodeRawResponse(header protocol.ResponseHeader, flexible bool, body []byte) []byte {
	prefix := protocol.EncodeResponseHeaderBytes(header.CorrelationID, flexible)
	return append(prefix, body...)
}

// --- server frames ---------------------------------------------------------------

func (c *Connection) onServerFrame(payload []byte) {
	if _, ok := c.state.(Forwarding); !ok {
		// A frame can only legitimately arrive once responses are
		// expected, i.e. after the buffer has drained into Forwarding.
		c.closeWithCause(&ErrServerException{Cause: errors.New("response received before Forwarding")})
		return
	}
	id, err := protocol.PeekResponseCorrelationID(payload)
	if err != nil {
		c.closeWithCause(&ErrServerException{Cause: err})
		return
	}
	entry, ok := c.upstream.correlation.remove(id)
	if !ok {
		protocolErrors.WithLabelValues("unknown_correlation").Inc()
		c.closeWithCause(&ErrServerException{Cause: fmt.Errorf("unknown correlation id %d", id)})
		return
	}
	flexible := protocol.IsFlexibleAPI(entry.apiKey, entry.apiVersion)
	header, body, err := protocol.ParseResponseHeader(payload, flexible)
	if err != nil {
		c.closeWithCause(&ErrServerException{Cause: err})
		return
	}

	if entry.kind == correlationInternal {
		entry.promise <- OriginatedResponse{Header: *header, Body: body}
		close(entry.promise)
		return
	}

	mkCtx := func(filterIndex int) RequestContext {
		return &requestContext{conn: c, correlationID: id}
	}
	result, err := runResponseFilters(c.ctx, c.filters, header, entry.apiKey, entry.apiVersion, body, mkCtx)
	if err != nil {
		c.closeWithCause(&ErrFilterError{Filter: "response", Cause: err})
		return
	}
	switch result.kind {
	case kindForward:
		frame := encodeRawResponse(*result.header, flexible, result.body)
		if err := c.downstream.forwardToClient(frame); err != nil {
			c.closeWithCause(&ErrClientException{Cause: err})
			return
		}
		bytesOut.Add(float64(len(frame)))
	case kindDrop:
		// suppressed
	case kindDisconnect:
		c.closeWithCause(nil)
	}
}

// --- lifecycle / errors -----------------------------------------------------------

func (c *Connection) onClientOversized() {
	protocolErrors.WithLabelValues("oversized_frame").Inc()
	c.closeWithCause(fmt.Errorf("client: %w", protocol.ErrOversizedFrame))
}

func (c *Connection) onClientInactive() {
	c.closeWithCause(nil)
}

func (c *Connection) onClientException(err error) {
	c.closeWithCause(&ErrClientException{Cause: err})
}

func (c *Connection) onClientWritability(writable bool) {
	if block, ok := c.backpressure.clientWritability(writable); ok {
		if c.upstream == nil {
			return
		}
		if block {
			c.upstream.blockReads()
		} else {
			c.upstream.unblockReads()
		}
	}
}

func (c *Connection) onServerInactive() {
	c.closeWithCause(nil)
}

func (c *Connection) onServerException(err error) {
	c.closeWithCause(&ErrServerException{Cause: err})
}

func (c *Connection) onServerWritability(writable bool) {
	if block, ok := c.backpressure.serverWritability(writable); ok {
		if block {
			c.downstream.blockReads()
		} else {
			c.downstream.unblockReads()
		}
	}
}

// closeWithCause moves the connection into Closing, flushing a
// synthesized error response first when the cause category and current
// state warrant one, then closing both sockets. Both closes happen here,
// synchronously, on the event loop goroutine, so unlike the two
// independent per-channel close notifications the transition table
// describes, there is nothing left to wait for: ClientDone and
// ServerDone are already true by the time Closed is entered. A reader
// goroutine that notices the closed socket afterwards and posts its own
// inactive event finds the connection already Closing and is ignored.
func (c *Connection) closeWithCause(cause error) {
	if _, alreadyClosing := c.state.(Closing); alreadyClosing {
		return
	}
	if _, closed := c.state.(Closed); closed {
		return
	}

	if cause != nil && c.upstream != nil {
		c.synthesizeErrorResponses(cause)
	}

	c.transition(Closing{Cause: cause, ClientDone: false, ServerDone: false})
	if c.downstream != nil {
		_ = c.downstream.close()
	}
	if c.upstream != nil {
		c.upstream.correlation.failAll(ErrConnectionClosed)
		_ = c.upstream.close()
	}
	c.transition(Closing{Cause: cause, ClientDone: true, ServerDone: true})
	c.transition(Closed{Cause: cause})
	connectionsClosed.WithLabelValues(closeCauseLabel(cause)).Inc()
}

// synthesizeErrorResponses answers every still-pending external
// correlation id with an error response. Only a Forwarding connection
// has correlation ids trustworthy enough to answer at all.
func (c *Connection) synthesizeErrorResponses(cause error) {
	if !shouldSynthesizeResponse(cause) {
		return
	}
	if _, forwarding := c.state.(Forwarding); !forwarding {
		return
	}
	code := errorCodeForCause(cause)
	for id, entry := range c.upstream.correlation.entries {
		if entry.kind != correlationExternal {
			continue
		}
		flexible := protocol.IsFlexibleAPI(entry.apiKey, entry.apiVersion)
		body := protocol.EncodeDegenerateErrorResponse(id, flexible, code)
		_ = c.downstream.forwardToClient(body)
	}
}

func closeCauseLabel(cause error) string {
	switch {
	case cause == nil:
		return "clean"
	case errors.Is(cause, ErrProtocolViolation):
		return "protocol_violation"
	case errors.Is(cause, protocol.ErrOversizedFrame):
		return "oversized_frame"
	default:
		var clientErr *ErrClientException
		var serverErr *ErrServerException
		var filterErr *ErrFilterError
		switch {
		case errors.As(cause, &clientErr):
			return "client_exception"
		case errors.As(cause, &serverErr):
			return "server_exception"
		case errors.As(cause, &filterErr):
			return "filter_error"
		default:
			return "other"
		}
	}
}

func (c *Connection) fatalf(format string, args ...any) {
	protocolErrors.WithLabelValues("protocol_violation").Inc()
	c.logger.Warn("protocol violation", "connection", c.id, "detail", fmt.Sprintf(format, args...))
	c.closeWithCause(ErrProtocolViolation)
}

func dialTimeoutFromMillis(ms int) time.Duration {
	if ms <= 0 {
		ms = 10000
	}
	return time.Duration(ms) * time.Millisecond
}
