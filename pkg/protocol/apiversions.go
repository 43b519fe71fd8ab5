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
	"fmt"

	"github.com/twmb/franz-go/pkg/kmsg"
)

// SupportedApiVersions is the version table the engine advertises when it
// answers ApiVersions itself instead of forwarding to the selected broker.
// This happens only on the SASL-offload path, before a broker has been
// chosen (see the ApiVersions state).
var SupportedApiVersions = []ApiVersion{
	{APIKey: APIKeyApiVersion, MinVersion: 0, MaxVersion: 3},
	{APIKey: APIKeyMetadata, MinVersion: 0, MaxVersion: 12},
	{APIKey: APIKeyCreateTopics, MinVersion: 0, MaxVersion: 7},
	{APIKey: APIKeyDeleteTopics, MinVersion: 0, MaxVersion: 6},
	{APIKey: APIKeySaslHandshake, MinVersion: 0, MaxVersion: 1},
	{APIKey: APIKeySaslAuthenticate, MinVersion: 0, MaxVersion: 2},
}

// EncodeLocalApiVersionsResponse builds a complete, framed ApiVersions
// response using kmsg's own wire encoder rather than the engine's
// hand-rolled byteWriter. It is used for the one response the engine
// ever synthesizes wholesale: the SASL-offload reply to ApiVersions sent
// before an upstream broker has been selected.
func EncodeLocalApiVersionsResponse(correlationID int32, version int16, clientID *string) ([]byte, error) {
	resp := kmsg.NewPtrApiVersionsResponse()
	resp.Version = version
	resp.ErrorCode = 0
	for _, v := range SupportedApiVersions {
		apiVersion := kmsg.NewApiVersionsResponseApiKey()
		apiVersion.ApiKey = v.APIKey
		apiVersion.MinVersion = v.MinVersion
		apiVersion.MaxVersion = v.MaxVersion
		resp.ApiKeys = append(resp.ApiKeys, apiVersion)
	}

	body := resp.AppendTo(nil)
	header := newByteWriter(16)
	header.Int32(correlationID)
	if version >= 3 {
		header.WriteTaggedFields(0)
	}
	payload := append(header.Bytes(), body...)

	framed, err := EncodeResponse(payload)
	if err != nil {
		return nil, fmt.Errorf("frame local api versions response: %w", err)
	}
	return framed, nil
}
