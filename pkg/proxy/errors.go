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

	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// The error taxonomy below covers the closing causes a connection can
// carry. ProtocolViolation gets no synthesized response at all: the client
// broke the wire contract badly enough that no correlation id can be
// trusted. Every other category may earn a synthesized error response
// once the connection has reached Forwarding, where correlation ids are
// known to be meaningful.

// ErrProtocolViolation marks a Closing cause that should not produce
// any response frame, only a bare close.
var ErrProtocolViolation = errors.New("proxy: protocol violation")

// ErrClientException marks a cause attributable to the client that,
// once Forwarding, earns a synthesized UNKNOWN_SERVER_ERROR response on
// every pending correlation id.
type ErrClientException struct{ Cause error }

func (e *ErrClientException) Error() string { return fmt.Sprintf("proxy: client exception: %v", e.Cause) }
func (e *ErrClientException) Unwrap() error { return e.Cause }

// ErrServerException marks a cause attributable to the broker
// connection. A response synthesized for it carries UNKNOWN_SERVER_ERROR;
// the cause's text is never sent to the client.
type ErrServerException struct{ Cause error }

func (e *ErrServerException) Error() string { return fmt.Sprintf("proxy: server exception: %v", e.Cause) }
func (e *ErrServerException) Unwrap() error { return e.Cause }

// ErrFilterError marks a cause raised by a filter's Apply method
// throwing (panicking, in Go terms) instead of returning a result.
type ErrFilterError struct {
	Filter string
	Cause  error
}

func (e *ErrFilterError) Error() string {
	return fmt.Sprintf("proxy: filter %q error: %v", e.Filter, e.Cause)
}
func (e *ErrFilterError) Unwrap() error { return e.Cause }

// errorCodeForCause maps a Closing cause to the Kafka error code used
// in a synthesized response, where one is warranted at all.
func errorCodeForCause(cause error) int16 {
	if cause == nil {
		return protocol.NONE
	}
	var clientErr *ErrClientException
	if errors.As(cause, &clientErr) {
		return protocol.UNKNOWN_SERVER_ERROR
	}
	var filterErr *ErrFilterError
	if errors.As(cause, &filterErr) {
		return protocol.UNKNOWN_SERVER_ERROR
	}
	if errors.Is(cause, protocol.ErrOversizedFrame) {
		return protocol.INVALID_REQUEST
	}
	return protocol.UNKNOWN_SERVER_ERROR
}

// shouldSynthesizeResponse reports whether cause's category earns a
// synthesized error response at all. ProtocolViolation never does.
func shouldSynthesizeResponse(cause error) bool {
	return !errors.Is(cause, ErrProtocolViolation)
}
