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

// Package adminmeta answers Metadata, CreateTopics and DeleteTopics
// requests locally out of a metadata.Store, short-circuiting them before
// they ever reach a broker. The engine has no broker controller of its
// own; this filter is the thing standing in for one on the admin/
// discovery surface it decodes.
package adminmeta

import (
	"context"

	"github.com/novatechflow/kroxylite/pkg/metadata"
	"github.com/novatechflow/kroxylite/pkg/protocol"
	"github.com/novatechflow/kroxylite/pkg/proxy"
)

// Filter answers Metadata/CreateTopics/DeleteTopics requests out of
// store and forwards everything else untouched.
type Filter struct {
	store metadata.Store
}

// New builds a Filter backed by store.
func New(store metadata.Store) *Filter {
	return &Filter{store: store}
}

func (f *Filter) ShouldDeserialize(apiKey, apiVersion int16) bool {
	switch apiKey {
	case protocol.APIKeyMetadata, protocol.APIKeyCreateTopics, protocol.APIKeyDeleteTopics:
		return true
	default:
		return false
	}
}

func (f *Filter) ApplyRequest(ctx context.Context, header *protocol.RequestHeader, req protocol.Request, fctx proxy.RequestContext) proxy.RequestResult {
	switch r := req.(type) {
	case *protocol.MetadataRequest:
		return f.applyMetadata(ctx, header, r)
	case *protocol.CreateTopicsRequest:
		return f.applyCreateTopics(ctx, header, r)
	case *protocol.DeleteTopicsRequest:
		return f.applyDeleteTopics(ctx, header, r)
	default:
		return proxy.ForwardRequest(header, req)
	}
}

func (f *Filter) applyMetadata(ctx context.Context, header *protocol.RequestHeader, req *protocol.MetadataRequest) proxy.RequestResult {
	cm, err := f.store.Metadata(ctx, req.Topics)
	if err != nil {
		errorCode := protocol.UNKNOWN_SERVER_ERROR
		if err == metadata.ErrStoreUnavailable {
			errorCode = protocol.NOT_CONTROLLER
		}
		return shortCircuitMetadataError(header, req.Topics, errorCode)
	}
	resp := &protocol.MetadataResponse{
		CorrelationID: header.CorrelationID,
		Brokers:       cm.Brokers,
		ClusterID:     cm.ClusterID,
		ControllerID:  cm.ControllerID,
		Topics:        cm.Topics,
	}
	body, err := protocol.EncodeMetadataResponse(resp, header.APIVersion)
	if err != nil {
		return shortCircuitMetadataError(header, req.Topics, protocol.UNKNOWN_SERVER_ERROR)
	}
	return proxy.ShortCircuitRequest(nil, body, false)
}

// shortCircuitMetadataError answers with a schema-shaped Metadata
// response carrying errorCode per requested topic, rather than
// degenerating to a bare error code: a client that strictly validates
// the Metadata response shape should still get one it can parse.
func shortCircuitMetadataError(header *protocol.RequestHeader, topics []string, errorCode int16) proxy.RequestResult {
	resp := &protocol.MetadataResponse{CorrelationID: header.CorrelationID}
	for _, name := range topics {
		resp.Topics = append(resp.Topics, protocol.MetadataTopic{
			Name:      name,
			ErrorCode: errorCode,
		})
	}
	body, err := protocol.EncodeMetadataResponse(resp, header.APIVersion)
	if err != nil {
		return proxy.DisconnectRequest()
	}
	return proxy.ShortCircuitRequest(nil, body, false)
}

func (f *Filter) applyCreateTopics(ctx context.Context, header *protocol.RequestHeader, req *protocol.CreateTopicsRequest) proxy.RequestResult {
	resp := &protocol.CreateTopicsResponse{CorrelationID: header.CorrelationID}
	for _, t := range req.Topics {
		result := protocol.CreateTopicResult{Name: t.Name}
		_, err := f.store.CreateTopic(ctx, metadata.TopicSpec{
			Name:              t.Name,
			NumPartitions:     t.NumPartitions,
			ReplicationFactor: t.ReplicationFactor,
		})
		switch {
		case err == nil:
			result.ErrorCode = protocol.NONE
		case err == metadata.ErrTopicExists:
			result.ErrorCode = protocol.TOPIC_ALREADY_EXISTS
			result.ErrorMessage = err.Error()
		case err == metadata.ErrInvalidTopic:
			result.ErrorCode = protocol.INVALID_TOPIC_EXCEPTION
			result.ErrorMessage = err.Error()
		case err == metadata.ErrStoreUnavailable:
			result.ErrorCode = protocol.NOT_CONTROLLER
			result.ErrorMessage = err.Error()
		default:
			result.ErrorCode = protocol.UNKNOWN_SERVER_ERROR
			result.ErrorMessage = err.Error()
		}
		resp.Topics = append(resp.Topics, result)
	}
	body, err := protocol.EncodeCreateTopicsResponse(resp)
	if err != nil {
		return proxy.DisconnectRequest()
	}
	return proxy.ShortCircuitRequest(nil, body, false)
}

func (f *Filter) applyDeleteTopics(ctx context.Context, header *protocol.RequestHeader, req *protocol.DeleteTopicsRequest) proxy.RequestResult {
	resp := &protocol.DeleteTopicsResponse{CorrelationID: header.CorrelationID}
	for _, name := range req.TopicNames {
		result := protocol.DeleteTopicResult{Name: name}
		err := f.store.DeleteTopic(ctx, name)
		switch {
		case err == nil:
			result.ErrorCode = protocol.NONE
		case err == metadata.ErrUnknownTopic:
			result.ErrorCode = protocol.UNKNOWN_TOPIC_OR_PARTITION
			result.ErrorMessage = err.Error()
		case err == metadata.ErrStoreUnavailable:
			result.ErrorCode = protocol.NOT_CONTROLLER
			result.ErrorMessage = err.Error()
		default:
			result.ErrorCode = protocol.UNKNOWN_SERVER_ERROR
			result.ErrorMessage = err.Error()
		}
		resp.Topics = append(resp.Topics, result)
	}
	body, err := protocol.EncodeDeleteTopicsResponse(resp)
	if err != nil {
		return proxy.DisconnectRequest()
	}
	return proxy.ShortCircuitRequest(nil, body, false)
}
