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

// ApiVersionsResponse describes server capabilities.
type ApiVersionsResponse struct {
	CorrelationID int32
	ErrorCode     int16
	Versions      []ApiVersion
}

// MetadataBroker describes a broker in a Metadata response.
type MetadataBroker struct {
	NodeID int32
	Host   string
	Port   int32
	Rack   *string
}

// MetadataTopic describes a topic in a Metadata response.
type MetadataTopic struct {
	ErrorCode                 int16
	Name                      string
	TopicID                   [16]byte
	IsInternal                bool
	Partitions                []MetadataPartition
	TopicAuthorizedOperations int32
}

// MetadataPartition describes partition metadata.
type MetadataPartition struct {
	ErrorCode       int16
	PartitionIndex  int32
	LeaderID        int32
	LeaderEpoch     int32
	ReplicaNodes    []int32
	ISRNodes        []int32
	OfflineReplicas []int32
}

// MetadataResponse holds topic and broker info.
type MetadataResponse struct {
	CorrelationID               int32
	ThrottleMs                  int32
	Brokers                     []MetadataBroker
	ClusterID                   *string
	ControllerID                int32
	Topics                      []MetadataTopic
	ClusterAuthorizedOperations int32
}

type CreateTopicResult struct {
	Name         string
	ErrorCode    int16
	ErrorMessage string
}

type CreateTopicsResponse struct {
	CorrelationID int32
	Topics        []CreateTopicResult
}

type DeleteTopicResult struct {
	Name         string
	ErrorCode    int16
	ErrorMessage string
}

type DeleteTopicsResponse struct {
	CorrelationID int32
	Topics        []DeleteTopicResult
}

// EncodeApiVersionsResponse renders bytes ready to send on the wire. This
// path is used when a filter constructs the response directly rather
// than going through the kmsg-based synthesis in apiversions.go.
func EncodeApiVersionsResponse(resp *ApiVersionsResponse, version int16) ([]byte, error) {
	flexible := version >= 3
	w := newByteWriter(64)
	w.Int32(resp.CorrelationID)
	if flexible {
		w.WriteTaggedFields(0)
	}
	w.Int16(resp.ErrorCode)
	if flexible {
		w.CompactArrayLen(len(resp.Versions))
	} else {
		w.Int32(int32(len(resp.Versions)))
	}
	for _, v := range resp.Versions {
		w.Int16(v.APIKey)
		w.Int16(v.MinVersion)
		w.Int16(v.MaxVersion)
		if flexible {
			w.WriteTaggedFields(0)
		}
	}
	if version >= 1 {
		w.Int32(0) // throttle_time_ms
	}
	if flexible {
		w.WriteTaggedFields(0)
	}
	return w.Bytes(), nil
}

// EncodeMetadataResponse renders bytes for metadata responses. version should match
// the Metadata request version that triggered this response.
func EncodeMetadataResponse(resp *MetadataResponse, version int16) ([]byte, error) {
	if version < 0 || version > 12 {
		return nil, fmt.Errorf("metadata response version %d not supported", version)
	}
	flexible := version >= 9
	w := newByteWriter(256)
	w.Int32(resp.CorrelationID)
	if flexible {
		w.WriteTaggedFields(0)
	}
	if version >= 3 {
		w.Int32(resp.ThrottleMs)
	}
	if flexible {
		w.CompactArrayLen(len(resp.Brokers))
	} else {
		w.Int32(int32(len(resp.Brokers)))
	}
	for _, b := range resp.Brokers {
		w.Int32(b.NodeID)
		if flexible {
			w.CompactString(b.Host)
		} else {
			w.String(b.Host)
		}
		w.Int32(b.Port)
		if version >= 1 {
			if flexible {
				w.CompactNullableString(b.Rack)
			} else {
				w.NullableString(b.Rack)
			}
		}
		if flexible {
			w.WriteTaggedFields(0)
		}
	}
	if version >= 2 {
		if flexible {
			w.CompactNullableString(resp.ClusterID)
		} else {
			w.NullableString(resp.ClusterID)
		}
	}
	if version >= 1 {
		w.Int32(resp.ControllerID)
	}
	if flexible {
		w.CompactArrayLen(len(resp.Topics))
	} else {
		w.Int32(int32(len(resp.Topics)))
	}
	for _, t := range resp.Topics {
		w.Int16(t.ErrorCode)
		if version >= 10 {
			var namePtr *string
			if t.Name != "" {
				namePtr = &t.Name
			}
			if flexible {
				w.CompactNullableString(namePtr)
			} else {
				w.NullableString(namePtr)
			}
			w.UUID(t.TopicID)
			if version >= 1 {
				w.Bool(t.IsInternal)
			}
		} else {
			if flexible {
				w.CompactString(t.Name)
			} else {
				w.String(t.Name)
			}
			if version >= 1 {
				w.Bool(t.IsInternal)
			}
		}
		if flexible {
			w.CompactArrayLen(len(t.Partitions))
		} else {
			w.Int32(int32(len(t.Partitions)))
		}
		for _, p := range t.Partitions {
			w.Int16(p.ErrorCode)
			w.Int32(p.PartitionIndex)
			w.Int32(p.LeaderID)
			if version >= 7 {
				w.Int32(p.LeaderEpoch)
			}
			if flexible {
				w.CompactArrayLen(len(p.ReplicaNodes))
			} else {
				w.Int32(int32(len(p.ReplicaNodes)))
			}
			for _, replica := range p.ReplicaNodes {
				w.Int32(replica)
			}
			if flexible {
				w.CompactArrayLen(len(p.ISRNodes))
			} else {
				w.Int32(int32(len(p.ISRNodes)))
			}
			for _, isr := range p.ISRNodes {
				w.Int32(isr)
			}
			if version >= 5 {
				if flexible {
					w.CompactArrayLen(len(p.OfflineReplicas))
				} else {
					w.Int32(int32(len(p.OfflineReplicas)))
				}
				for _, offline := range p.OfflineReplicas {
					w.Int32(offline)
				}
			}
			if flexible {
				w.WriteTaggedFields(0)
			}
		}
		if version >= 8 {
			w.Int32(t.TopicAuthorizedOperations)
		}
		if flexible {
			w.WriteTaggedFields(0)
		}
	}
	if version >= 8 {
		w.Int32(resp.ClusterAuthorizedOperations)
	}
	if flexible {
		w.WriteTaggedFields(0)
	}
	return w.Bytes(), nil
}

func EncodeCreateTopicsResponse(resp *CreateTopicsResponse) ([]byte, error) {
	w := newByteWriter(128)
	w.Int32(resp.CorrelationID)
	w.Int32(int32(len(resp.Topics)))
	for _, topic := range resp.Topics {
		w.String(topic.Name)
		w.Int16(topic.ErrorCode)
		w.String(topic.ErrorMessage)
	}
	return w.Bytes(), nil
}

func EncodeDeleteTopicsResponse(resp *DeleteTopicsResponse) ([]byte, error) {
	w := newByteWriter(128)
	w.Int32(resp.CorrelationID)
	w.Int32(int32(len(resp.Topics)))
	for _, topic := range resp.Topics {
		w.String(topic.Name)
		w.Int16(topic.ErrorCode)
		w.String(topic.ErrorMessage)
	}
	return w.Bytes(), nil
}

// EncodeResponse wraps a response payload into a Kafka frame.
func EncodeResponse(payload []byte) ([]byte, error) {
	if len(payload) > int(^uint32(0)>>1) {
		return nil, fmt.Errorf("response too large: %d", len(payload))
	}
	w := newByteWriter(len(payload) + 4)
	w.Int32(int32(len(payload)))
	w.write(payload)
	return w.Bytes(), nil
}
