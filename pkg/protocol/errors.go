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

// Kafka protocol error codes known to this module. Not an exhaustive
// table of the wire protocol's error codes. The engine's own error
// taxonomy (ProtocolViolation, OversizedFrame, ClientException,
// ServerException, FilterError) maps onto UNKNOWN_SERVER_ERROR and
// INVALID_REQUEST only.
const (
	NONE                       int16 = 0
	OFFSET_OUT_OF_RANGE        int16 = 1
	CORRUPT_MESSAGE            int16 = 2
	UNKNOWN_TOPIC_OR_PARTITION int16 = 3
	INVALID_REQUEST            int16 = 42
	UNKNOWN_TOPIC_ID           int16 = 100
	UNKNOWN_SERVER_ERROR       int16 = -1
	REQUEST_TIMED_OUT          int16 = 7
	NOT_CONTROLLER             int16 = 41
	ILLEGAL_GENERATION         int16 = 22
	UNKNOWN_MEMBER_ID          int16 = 25
	REBALANCE_IN_PROGRESS      int16 = 27
	INVALID_TOPIC_EXCEPTION    int16 = 17
	TOPIC_ALREADY_EXISTS       int16 = 36
	UNSUPPORTED_VERSION        int16 = 35
	GROUP_ID_NOT_FOUND         int16 = 69
)

// EncodeDegenerateErrorResponse builds the minimal possible Kafka response
// frame body for a correlation id: just the correlation id (plus an empty
// tagged-field section for flexible versions) followed by a top-level
// int16 error code. It does not attempt to match the exact schema of the
// request's API, because at the point this is used (OversizedFrame,
// ClientException, FilterError closing causes) the engine may not have a
// decoded body to shape a precise response around. Clients that strictly
// validate response schemas will reject this and see a connection close
// instead, which is the same outcome as not answering at all.
func EncodeDegenerateErrorResponse(correlationID int32, flexible bool, errorCode int16) []byte {
	w := newByteWriter(8)
	w.Int32(correlationID)
	if flexible {
		w.WriteTaggedFields(0)
	}
	w.Int16(errorCode)
	return w.Bytes()
}
