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

	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// RequestContext is what a request filter's Apply method receives along
// with the decoded (or raw) request. It is built fresh per invocation,
// scoped to the filter stage currently running.
type RequestContext interface {
	// CorrelationID is the id on the frame currently being filtered.
	CorrelationID() int32
	// VirtualCluster names the cluster this connection was routed to,
	// empty until a net-filter has picked one.
	VirtualCluster() string
	// OriginateRequest lets a filter send its own request to the
	// selected broker out of band, correlating the response back to
	// itself instead of the client. It is only usable once a broker
	// connection exists, i.e. from Forwarding. The returned channel is
	// filled from this connection's own event loop, the same goroutine
	// that runs ApplyRequest/ApplyResponse; a filter that blocks reading
	// it inside Apply deadlocks its own connection. Send the request,
	// return a result for the current frame, and read the channel from a
	// goroutine the filter manages itself.
	OriginateRequest(ctx context.Context, apiKey, apiVersion int16, body []byte) (<-chan OriginatedResponse, error)
}

// OriginatedResponse is delivered on the channel OriginateRequest
// returns. Err is ErrConnectionClosed if the upstream connection closed
// before a matching response arrived.
type OriginatedResponse struct {
	Header protocol.ResponseHeader
	Body   []byte
	Err    error
}

// RequestFilter observes, rewrites or short-circuits a decoded or raw
// request on its way from client to broker.
type RequestFilter interface {
	// ShouldDeserialize reports whether this filter needs the decoded
	// request for this (apiKey, version). A filter that answers false is
	// skipped for that frame: the pipeline passes the request on without
	// calling its ApplyRequest.
	ShouldDeserialize(apiKey, apiVersion int16) bool
	ApplyRequest(ctx context.Context, header *protocol.RequestHeader, req protocol.Request, fctx RequestContext) RequestResult
}

// ResponseFilter observes or rewrites a response on its way from broker
// to client. Response bodies are never decoded by the engine itself,
// keeping the response frame model opaque; a filter that needs
// structured access decodes the body itself.
type ResponseFilter interface {
	ApplyResponse(ctx context.Context, header *protocol.ResponseHeader, apiKey, apiVersion int16, body []byte, fctx RequestContext) ResponseResult
}

// PassthroughFilter forwards every request and response unchanged. It is
// the base a decorator filter (one that only observes another filter's
// decisions, like pkg/filter/audits3) wraps when there is no other
// filter logic to run underneath it.
type PassthroughFilter struct{}

func (PassthroughFilter) ShouldDeserialize(apiKey, apiVersion int16) bool { return false }

func (PassthroughFilter) ApplyRequest(ctx context.Context, header *protocol.RequestHeader, req protocol.Request, fctx RequestContext) RequestResult {
	return ForwardRequest(header, req)
}

func (PassthroughFilter) ApplyResponse(ctx context.Context, header *protocol.ResponseHeader, apiKey, apiVersion int16, body []byte, fctx RequestContext) ResponseResult {
	return ForwardResponse(header, body)
}

// FilterEntry names one filter instance within a connection's pipeline.
// A filter may implement RequestFilter, ResponseFilter, or both; either
// field may be nil.
type FilterEntry struct {
	Name     string
	Request  RequestFilter
	Response ResponseFilter
}

// resultKind is the filter result algebra: every RequestResult and
// ResponseResult is exactly one of these.
type resultKind int

const (
	kindForward resultKind = iota
	kindDrop
	kindShortCircuit
	kindDisconnect
)

func (k resultKind) String() string {
	switch k {
	case kindForward:
		return "forward"
	case kindDrop:
		return "drop"
	case kindShortCircuit:
		return "short_circuit"
	case kindDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// RequestResult is returned by RequestFilter.ApplyRequest. Use the
// constructor functions below rather than building one by hand: they
// keep invalid combinations, like a short-circuit carrying a request
// payload, unrepresentable.
type RequestResult struct {
	kind        resultKind
	header      *protocol.RequestHeader
	request     protocol.Request
	scHeader    *protocol.ResponseHeader
	scBody      []byte
	closeAfter  bool
}

// ForwardRequest continues the pipeline with header and req, which may
// be the same values the filter was given or a rewritten version of
// either. A nil header means "keep the header the filter was given."
func ForwardRequest(header *protocol.RequestHeader, req protocol.Request) RequestResult {
	return RequestResult{kind: kindForward, header: header, request: req}
}

// DropRequest suppresses the request: it is never sent to the broker,
// and the client gets no response for its correlation id.
func DropRequest() RequestResult {
	return RequestResult{kind: kindDrop}
}

// ShortCircuitRequest answers the request locally, without it ever
// reaching the broker. header, when nil, is synthesized from the
// request's own header and flexibility by the pipeline. Setting
// closeAfter disconnects the client once the response has been
// flushed.
func ShortCircuitRequest(header *protocol.ResponseHeader, body []byte, closeAfter bool) RequestResult {
	return RequestResult{kind: kindShortCircuit, scHeader: header, scBody: body, closeAfter: closeAfter}
}

// DisconnectRequest closes the connection without sending any response.
func DisconnectRequest() RequestResult {
	return RequestResult{kind: kindDisconnect}
}

// Decision names which of ForwardRequest/DropRequest/ShortCircuitRequest/
// DisconnectRequest produced r, for filters that wrap another filter and
// need to observe its outcome without depending on the unexported result
// shape (audits3 is one such wrapper).
func (r RequestResult) Decision() string { return r.kind.String() }

// ResponseResult is returned by ResponseFilter.ApplyResponse.
type ResponseResult struct {
	kind   resultKind
	header *protocol.ResponseHeader
	body   []byte
}

// ForwardResponse continues the pipeline with header and body, which
// may be rewritten. A nil header keeps the header the filter was given.
func ForwardResponse(header *protocol.ResponseHeader, body []byte) ResponseResult {
	return ResponseResult{kind: kindForward, header: header, body: body}
}

// DropResponse suppresses the response: the client never sees it for
// this correlation id.
func DropResponse() ResponseResult {
	return ResponseResult{kind: kindDrop}
}

// DisconnectResponse closes the connection without forwarding the
// response.
func DisconnectResponse() ResponseResult {
	return ResponseResult{kind: kindDisconnect}
}

// Decision names which of ForwardResponse/DropResponse/DisconnectResponse
// produced r, for filters that wrap another filter and need to observe
// its outcome without depending on the unexported result shape.
func (r ResponseResult) Decision() string { return r.kind.String() }
