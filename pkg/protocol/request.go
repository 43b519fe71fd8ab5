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

// ApiVersionsRequest describes the ApiVersions call. ClientSoftwareName
// and ClientSoftwareVersion are only present on the flexible wire form
// (v3+) and are what the engine surfaces as client metadata while a
// connection sits in the ApiVersions or SelectingServer state.
type ApiVersionsRequest struct {
	ClientSoftwareName    *string
	ClientSoftwareVersion *string
}

func (ApiVersionsRequest) APIKey() int16 { return APIKeyApiVersion }

// MetadataRequest asks for cluster metadata. Empty Topics means "all".
type MetadataRequest struct {
	Topics                 []string
	TopicIDs               [][16]byte
	AllowAutoTopicCreation bool
	IncludeClusterAuthOps  bool
	IncludeTopicAuthOps    bool
}

func (MetadataRequest) APIKey() int16 { return APIKeyMetadata }

type CreateTopicConfig struct {
	Name              string
	NumPartitions     int32
	ReplicationFactor int16
}

// CreateTopicsRequest is decoded so a request filter can inspect or rewrite
// topic names before the frame reaches the selected broker.
type CreateTopicsRequest struct {
	Topics []CreateTopicConfig
}

func (CreateTopicsRequest) APIKey() int16 { return APIKeyCreateTopics }

// DeleteTopicsRequest is decoded for the same reason as CreateTopicsRequest.
type DeleteTopicsRequest struct {
	TopicNames []string
}

func (DeleteTopicsRequest) APIKey() int16 { return APIKeyDeleteTopics }

// ParseRequestBody decodes the body that follows a parsed header. API keys
// outside the small decoded set produce a RawRequest carrying the
// undecoded body bytes rather than an error: most traffic is meant to
// pass through opaquely.
func ParseRequestBody(header *RequestHeader, reader *byteReader) (Request, error) {
	flexible := IsFlexibleAPI(header.APIKey, header.APIVersion)

	switch header.APIKey {
	case APIKeyApiVersion:
		return parseApiVersionsRequest(reader, flexible)

	case APIKeyMetadata:
		return parseMetadataRequest(header, reader, flexible)

	case APIKeyCreateTopics:
		return parseCreateTopicsRequest(reader)

	case APIKeyDeleteTopics:
		return parseDeleteTopicsRequest(reader)

	default:
		body, err := reader.read(reader.remaining())
		if err != nil {
			return nil, fmt.Errorf("read raw body: %w", err)
		}
		raw := make([]byte, len(body))
		copy(raw, body)
		return &RawRequest{Key: header.APIKey, Body: raw}, nil
	}
}

// EncodeRequest renders a complete request frame (header followed by
// body, unframed) for header/req. It is the inverse of ParseRequest,
// used by the engine to re-serialize a request a filter decoded and
// possibly rewrote before forwarding it to the selected broker. A
// request that passed through filters untouched, still a *RawRequest,
// is handled by the same default case ParseRequestBody produces it
// from.
func EncodeRequest(header *RequestHeader, req Request) ([]byte, error) {
	w := newByteWriter(64)
	EncodeRequestHeader(w, *header)
	flexible := IsFlexibleAPI(header.APIKey, header.APIVersion)

	switch r := req.(type) {
	case *RawRequest:
		w.write(r.Body)
	case *ApiVersionsRequest:
		if flexible {
			w.CompactNullableString(r.ClientSoftwareName)
			w.CompactNullableString(r.ClientSoftwareVersion)
			w.WriteTaggedFields(0)
		}
	case *MetadataRequest:
		encodeMetadataRequestBody(w, header, r, flexible)
	case *CreateTopicsRequest:
		encodeCreateTopicsRequestBody(w, r)
	case *DeleteTopicsRequest:
		encodeDeleteTopicsRequestBody(w, r)
	default:
		return nil, fmt.Errorf("encode request: unsupported body type %T", req)
	}
	return w.Bytes(), nil
}

func encodeMetadataRequestBody(w *byteWriter, header *RequestHeader, r *MetadataRequest, flexible bool) {
	if r.Topics == nil {
		if flexible {
			w.CompactArrayLen(-1)
		} else {
			w.Int32(-1)
		}
	} else {
		if flexible {
			w.CompactArrayLen(len(r.Topics))
		} else {
			w.Int32(int32(len(r.Topics)))
		}
		for i, name := range r.Topics {
			if header.APIVersion >= 10 {
				var id [16]byte
				if i < len(r.TopicIDs) {
					id = r.TopicIDs[i]
				}
				w.UUID(id)
				namePtr := &name
				if flexible {
					w.CompactNullableString(namePtr)
				} else {
					w.NullableString(namePtr)
				}
				if flexible {
					w.WriteTaggedFields(0)
				}
				continue
			}
			if flexible {
				w.CompactString(name)
			} else {
				w.String(name)
			}
			if flexible {
				w.WriteTaggedFields(0)
			}
		}
	}
	if header.APIVersion >= 4 {
		w.Bool(r.AllowAutoTopicCreation)
	}
	if header.APIVersion >= 8 && header.APIVersion <= 10 {
		w.Bool(r.IncludeClusterAuthOps)
	}
	if header.APIVersion >= 8 {
		w.Bool(r.IncludeTopicAuthOps)
	}
	if flexible {
		w.WriteTaggedFields(0)
	}
}

func encodeCreateTopicsRequestBody(w *byteWriter, r *CreateTopicsRequest) {
	w.Int32(int32(len(r.Topics)))
	for _, t := range r.Topics {
		w.String(t.Name)
		w.Int32(t.NumPartitions)
		w.Int16(t.ReplicationFactor)
		w.Int32(0) // configs map, nothing to re-serialize
	}
}

func encodeDeleteTopicsRequestBody(w *byteWriter, r *DeleteTopicsRequest) {
	w.Int32(int32(len(r.TopicNames)))
	for _, name := range r.TopicNames {
		w.String(name)
	}
}

// ParseRequest decodes both the header and the body of a raw frame.
func ParseRequest(b []byte) (*RequestHeader, Request, error) {
	header, reader, err := ParseRequestHeader(b)
	if err != nil {
		return nil, nil, err
	}
	req, err := ParseRequestBody(header, reader)
	if err != nil {
		return nil, nil, err
	}
	return header, req, nil
}

func parseApiVersionsRequest(reader *byteReader, flexible bool) (Request, error) {
	req := &ApiVersionsRequest{}
	if !flexible {
		return req, nil
	}
	name, err := reader.CompactNullableString()
	if err != nil {
		return nil, fmt.Errorf("read client software name: %w", err)
	}
	version, err := reader.CompactNullableString()
	if err != nil {
		return nil, fmt.Errorf("read client software version: %w", err)
	}
	req.ClientSoftwareName = name
	req.ClientSoftwareVersion = version
	if err := reader.SkipTaggedFields(); err != nil {
		return nil, fmt.Errorf("skip api versions tags: %w", err)
	}
	return req, nil
}

func parseMetadataRequest(header *RequestHeader, reader *byteReader, flexible bool) (Request, error) {
	var topics []string
	var topicIDs [][16]byte
	var count int32
	var err error
	if flexible {
		count, err = reader.CompactArrayLen()
	} else {
		count, err = reader.Int32()
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata topic count: %w", err)
	}
	if count >= 0 {
		topics = make([]string, 0, count)
		topicIDs = make([][16]byte, 0, count)
		for i := int32(0); i < count; i++ {
			if header.APIVersion >= 10 {
				id, err := reader.UUID()
				if err != nil {
					return nil, fmt.Errorf("read metadata topic[%d] id: %w", i, err)
				}
				var namePtr *string
				if flexible {
					namePtr, err = reader.CompactNullableString()
				} else {
					namePtr, err = reader.NullableString()
				}
				if err != nil {
					return nil, fmt.Errorf("read metadata topic[%d] name: %w", i, err)
				}
				if namePtr != nil {
					topics = append(topics, *namePtr)
				}
				topicIDs = append(topicIDs, id)
				if flexible {
					if err := reader.SkipTaggedFields(); err != nil {
						return nil, fmt.Errorf("skip metadata topic[%d] tags: %w", i, err)
					}
				}
			} else {
				var name string
				if flexible {
					name, err = reader.CompactString()
				} else {
					name, err = reader.String()
				}
				if err != nil {
					return nil, fmt.Errorf("read metadata topic[%d]: %w", i, err)
				}
				topics = append(topics, name)
				if flexible {
					if err := reader.SkipTaggedFields(); err != nil {
						return nil, fmt.Errorf("skip metadata topic[%d] tags: %w", i, err)
					}
				}
			}
		}
	}
	allowAutoTopicCreation := true
	if header.APIVersion >= 4 {
		if allowAutoTopicCreation, err = reader.Bool(); err != nil {
			return nil, fmt.Errorf("read metadata allow auto topic creation: %w", err)
		}
	}
	includeClusterAuthOps := false
	includeTopicAuthOps := false
	if header.APIVersion >= 8 && header.APIVersion <= 10 {
		if includeClusterAuthOps, err = reader.Bool(); err != nil {
			return nil, fmt.Errorf("read metadata include cluster auth ops: %w", err)
		}
	}
	if header.APIVersion >= 8 {
		if includeTopicAuthOps, err = reader.Bool(); err != nil {
			return nil, fmt.Errorf("read metadata include topic auth ops: %w", err)
		}
	}
	if flexible {
		if err := reader.SkipTaggedFields(); err != nil {
			return nil, fmt.Errorf("skip metadata tags: %w", err)
		}
	}
	return &MetadataRequest{
		Topics:                 topics,
		TopicIDs:               topicIDs,
		AllowAutoTopicCreation: allowAutoTopicCreation,
		IncludeClusterAuthOps:  includeClusterAuthOps,
		IncludeTopicAuthOps:    includeTopicAuthOps,
	}, nil
}

func parseCreateTopicsRequest(reader *byteReader) (Request, error) {
	topicCount, err := reader.Int32()
	if err != nil {
		return nil, err
	}
	configs := make([]CreateTopicConfig, 0, topicCount)
	for i := int32(0); i < topicCount; i++ {
		name, err := reader.String()
		if err != nil {
			return nil, err
		}
		partitions, err := reader.Int32()
		if err != nil {
			return nil, err
		}
		repl, err := reader.Int16()
		if err != nil {
			return nil, err
		}
		// Configs map, ignored.
		cfgCount, err := reader.Int32()
		if err != nil {
			return nil, err
		}
		for j := int32(0); j < cfgCount; j++ {
			if _, err := reader.String(); err != nil {
				return nil, err
			}
			if _, err := reader.String(); err != nil {
				return nil, err
			}
		}
		configs = append(configs, CreateTopicConfig{Name: name, NumPartitions: partitions, ReplicationFactor: repl})
	}
	return &CreateTopicsRequest{Topics: configs}, nil
}

func parseDeleteTopicsRequest(reader *byteReader) (Request, error) {
	count, err := reader.Int32()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := int32(0); i < count; i++ {
		name, err := reader.String()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return &DeleteTopicsRequest{TopicNames: names}, nil
}
