// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
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

package protocol

import "fmt"

// RequestHeader is the fixed-shape prefix of every Kafka request frame.
type RequestHeader struct {
	APIKey        int16
	APIVersion    int16
	CorrelationID int32
	ClientID      *string
}

// ResponseHeader is the fixed-shape prefix of every Kafka response frame.
type ResponseHeader struct {
	CorrelationID int32
}

// Request is implemented by any decoded request body. RawRequest
// satisfies it too, for the pass-through path that leaves a frame
// opaque.
type Request interface {
	APIKey() int16
}

// RawRequest carries an undecoded body: ParseRequestBody produces it for
// every API key outside the small set it decodes, whatever filters are
// configured.
type RawRequest struct {
	Key  int16
	Body []byte
}

func (r *RawRequest) APIKey() int16 { return r.Key }

// IsFlexibleAPI reports whether the given request API/version pair uses
// Kafka's flexible (compact + tagged fields) wire encoding.
func IsFlexibleAPI(apiKey, version int16) bool {
	switch apiKey {
	case APIKeyProduce:
		return version >= 9
	case APIKeyMetadata:
		return version >= 9
	case APIKeyFetch:
		return version >= 12
	case APIKeyFindCoordinator:
		return version >= 3
	case APIKeySyncGroup:
		return version >= 4
	case APIKeyHeartbeat:
		return version >= 4
	case APIKeyApiVersion:
		return version >= 3
	case APIKeyCreateTopics:
		return version >= 5
	case APIKeyDeleteTopics:
		return version >= 4
	case APIKeySaslHandshake:
		return false
	case APIKeySaslAuthenticate:
		return version >= 2
	default:
		return false
	}
}

func compactArrayLenNonNull(r *byteReader) (int32, error) {
	n, err := r.CompactArrayLen()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("compact array is null")
	}
	return n, nil
}

// ParseRequestHeader decodes the header portion from raw frame bytes and
// returns a reader positioned at the start of the body.
func ParseRequestHeader(b []byte) (*RequestHeader, *byteReader, error) {
	reader := newByteReader(b)
	apiKey, err := reader.Int16()
	if err != nil {
		return nil, nil, fmt.Errorf("read api key: %w", err)
	}
	version, err := reader.Int16()
	if err != nil {
		return nil, nil, fmt.Errorf("read api version: %w", err)
	}
	correlationID, err := reader.Int32()
	if err != nil {
		return nil, nil, fmt.Errorf("read correlation id: %w", err)
	}
	clientID, err := reader.NullableString()
	if err != nil {
		return nil, nil, fmt.Errorf("read client id: %w", err)
	}
	if IsFlexibleAPI(apiKey, version) {
		if err := reader.SkipTaggedFields(); err != nil {
			return nil, nil, fmt.Errorf("skip header tags: %w", err)
		}
	}
	return &RequestHeader{
		APIKey:        apiKey,
		APIVersion:    version,
		CorrelationID: correlationID,
		ClientID:      clientID,
	}, reader, nil
}

// EncodeRequestHeader appends a request header to w, matching whatever
// encoding ParseRequestHeader would expect back.
func EncodeRequestHeader(w *byteWriter, h RequestHeader) {
	w.Int16(h.APIKey)
	w.Int16(h.APIVersion)
	w.Int32(h.CorrelationID)
	w.NullableString(h.ClientID)
	if IsFlexibleAPI(h.APIKey, h.APIVersion) {
		w.WriteTaggedFields(0)
	}
}

// EncodeRequestHeaderBytes renders a request header to its own byte
// slice, for callers outside this package that need to build a
// complete request frame (the engine's filter-originated requests).
func EncodeRequestHeaderBytes(h RequestHeader) []byte {
	w := newByteWriter(16)
	EncodeRequestHeader(w, h)
	return w.Bytes()
}

// EncodeResponseHeader appends a response header. flexible must match the
// flexibility of the request that produced this correlation id.
func EncodeResponseHeader(w *byteWriter, correlationID int32, flexible bool) {
	w.Int32(correlationID)
	if flexible {
		w.WriteTaggedFields(0)
	}
}

// PeekResponseCorrelationID reads just the first four bytes of a
// response frame. A response frame carries no API key, so the engine
// has to learn the correlation id before it can look up which request
// it answers and therefore whether the rest of the header is flexible.
func PeekResponseCorrelationID(b []byte) (int32, error) {
	reader := newByteReader(b)
	id, err := reader.Int32()
	if err != nil {
		return 0, fmt.Errorf("peek response correlation id: %w", err)
	}
	return id, nil
}

// EncodeResponseHeaderBytes renders a response header to its own byte
// slice. Used by callers outside this package re-assembling a response
// frame (forwarded or short-circuited) from a header and body it
// already has in hand.
func EncodeResponseHeaderBytes(correlationID int32, flexible bool) []byte {
	w := newByteWriter(8)
	EncodeResponseHeader(w, correlationID, flexible)
	return w.Bytes()
}

// ParseResponseHeader decodes the fixed correlation id prefix of a
// response frame, plus its tagged-field section when flexible is true.
// flexible must come from the matching request's (apiKey, version) via
// IsFlexibleAPI; response frames carry no API key of their own, so the
// caller has to already know it from the correlation map.
func ParseResponseHeader(b []byte, flexible bool) (*ResponseHeader, []byte, error) {
	reader := newByteReader(b)
	correlationID, err := reader.Int32()
	if err != nil {
		return nil, nil, fmt.Errorf("read response correlation id: %w", err)
	}
	if flexible {
		if err := reader.SkipTaggedFields(); err != nil {
			return nil, nil, fmt.Errorf("skip response header tags: %w", err)
		}
	}
	body, err := reader.read(reader.remaining())
	if err != nil {
		return nil, nil, fmt.Errorf("read response body: %w", err)
	}
	rest := make([]byte, len(body))
	copy(rest, body)
	return &ResponseHeader{CorrelationID: correlationID}, rest, nil
}
