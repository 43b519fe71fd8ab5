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

import (
	"testing"

	"github.com/twmb/franz-go/pkg/kmsg"
)

func TestParseApiVersionsRequest(t *testing.T) {
	w := newByteWriter(16)
	w.Int16(APIKeyApiVersion)
	w.Int16(0)
	w.Int32(42)
	w.NullableString(nil)

	header, req, err := ParseRequest(w.Bytes())
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if header.APIKey != APIKeyApiVersion || header.CorrelationID != 42 {
		t.Fatalf("unexpected header: %#v", header)
	}
	if _, ok := req.(*ApiVersionsRequest); !ok {
		t.Fatalf("expected ApiVersionsRequest got %T", req)
	}
}

func TestParseMetadataRequest(t *testing.T) {
	w := newByteWriter(64)
	w.Int16(APIKeyMetadata)
	w.Int16(0)
	w.Int32(7)
	clientID := "client-1"
	w.NullableString(&clientID)
	w.Int32(2)
	w.String("orders")
	w.String("payments")

	header, req, err := ParseRequest(w.Bytes())
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	metaReq, ok := req.(*MetadataRequest)
	if !ok {
		t.Fatalf("expected MetadataRequest got %T", req)
	}
	if len(metaReq.Topics) != 2 || metaReq.Topics[0] != "orders" {
		t.Fatalf("unexpected topics: %#v", metaReq.Topics)
	}
	if header.ClientID == nil || *header.ClientID != "client-1" {
		t.Fatalf("client id mismatch: %#v", header.ClientID)
	}
}

func TestParseMetadataRequestV12TaggedFields(t *testing.T) {
	w := newByteWriter(128)
	w.Int16(APIKeyMetadata)
	w.Int16(12)
	w.Int32(42)
	clientID := "kgo"
	w.NullableString(&clientID)
	w.WriteTaggedFields(0)
	w.CompactArrayLen(2)
	w.UUID([16]byte{})
	w.CompactNullableString(strPtr("orders-0"))
	w.WriteTaggedFields(0)
	w.UUID([16]byte{})
	w.CompactNullableString(strPtr("orders-1"))
	w.WriteTaggedFields(0)
	w.Bool(true)
	w.Bool(false)
	w.WriteTaggedFields(0)

	header, req, err := ParseRequest(w.Bytes())
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if header.APIKey != APIKeyMetadata || header.APIVersion != 12 {
		t.Fatalf("unexpected header: %#v", header)
	}
	metaReq, ok := req.(*MetadataRequest)
	if !ok {
		t.Fatalf("expected MetadataRequest got %T", req)
	}
	if len(metaReq.Topics) != 2 {
		t.Fatalf("expected 2 topics got %d", len(metaReq.Topics))
	}
	if !metaReq.AllowAutoTopicCreation {
		t.Fatalf("expected allow auto topic creation true")
	}
	if metaReq.IncludeClusterAuthOps || metaReq.IncludeTopicAuthOps {
		t.Fatalf("expected auth ops false")
	}
}

func TestParseMetadataRequestFranzEncoding(t *testing.T) {
	req := kmsg.NewPtrMetadataRequest()
	req.Version = 12
	req.AllowAutoTopicCreation = true
	req.IncludeTopicAuthorizedOperations = false
	req.Topics = []kmsg.MetadataRequestTopic{
		{Topic: strPtr("orders-3eb53935-0")},
	}

	formatter := kmsg.NewRequestFormatter(kmsg.FormatterClientID("kgo"))
	payload := formatter.AppendRequest(nil, req, 1)
	payload = payload[4:] // drop the length prefix to match ParseRequest input

	header, parsed, err := ParseRequest(payload)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if header.APIKey != APIKeyMetadata || header.APIVersion != 12 {
		t.Fatalf("unexpected header: %#v", header)
	}
	metaReq, ok := parsed.(*MetadataRequest)
	if !ok {
		t.Fatalf("expected MetadataRequest got %T", parsed)
	}
	if len(metaReq.Topics) != 1 || metaReq.Topics[0] != "orders-3eb53935-0" {
		t.Fatalf("unexpected topics: %#v", metaReq.Topics)
	}
	if !metaReq.AllowAutoTopicCreation {
		t.Fatalf("expected allow auto topic creation true")
	}
	if metaReq.IncludeClusterAuthOps || metaReq.IncludeTopicAuthOps {
		t.Fatalf("expected auth ops false")
	}
}

func TestParseCreateTopicsRequest(t *testing.T) {
	w := newByteWriter(64)
	w.Int16(APIKeyCreateTopics)
	w.Int16(0)
	w.Int32(12)
	w.NullableString(nil)
	w.Int32(1)
	w.String("orders")
	w.Int32(3)
	w.Int16(1)
	w.Int32(0) // configs count

	header, req, err := ParseRequest(w.Bytes())
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if header.APIKey != APIKeyCreateTopics {
		t.Fatalf("unexpected api key %d", header.APIKey)
	}
	created, ok := req.(*CreateTopicsRequest)
	if !ok {
		t.Fatalf("expected CreateTopicsRequest got %T", req)
	}
	if len(created.Topics) != 1 || created.Topics[0].Name != "orders" || created.Topics[0].NumPartitions != 3 {
		t.Fatalf("unexpected topics: %#v", created.Topics)
	}
}

func TestParseDeleteTopicsRequest(t *testing.T) {
	w := newByteWriter(64)
	w.Int16(APIKeyDeleteTopics)
	w.Int16(0)
	w.Int32(13)
	w.NullableString(nil)
	w.Int32(2)
	w.String("orders")
	w.String("payments")

	header, req, err := ParseRequest(w.Bytes())
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if header.APIKey != APIKeyDeleteTopics {
		t.Fatalf("unexpected api key %d", header.APIKey)
	}
	deleted, ok := req.(*DeleteTopicsRequest)
	if !ok {
		t.Fatalf("expected DeleteTopicsRequest got %T", req)
	}
	if len(deleted.TopicNames) != 2 || deleted.TopicNames[1] != "payments" {
		t.Fatalf("unexpected names: %#v", deleted.TopicNames)
	}
}

func TestParseRequestOpaquePassthrough(t *testing.T) {
	w := newByteWriter(64)
	w.Int16(APIKeyFetch)
	w.Int16(11)
	w.Int32(9)
	w.NullableString(nil)
	w.Int32(1) // replica id
	w.Int32(500)
	w.write([]byte{0xde, 0xad, 0xbe, 0xef})

	header, req, err := ParseRequest(w.Bytes())
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if header.APIKey != APIKeyFetch {
		t.Fatalf("unexpected api key %d", header.APIKey)
	}
	raw, ok := req.(*RawRequest)
	if !ok {
		t.Fatalf("expected RawRequest got %T", req)
	}
	if raw.Key != APIKeyFetch {
		t.Fatalf("unexpected raw key %d", raw.Key)
	}
	if len(raw.Body) == 0 {
		t.Fatalf("expected non-empty raw body")
	}
}

func strPtr(s string) *string {
	return &s
}
