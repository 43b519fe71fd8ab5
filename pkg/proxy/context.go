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
	"fmt"
)

// requestContext is the per-invocation RequestContext handed to a
// filter's Apply method. It is cheap to allocate: one per filter stage
// per frame, never retained past that call except by a filter that
// stashes the OriginateRequest channel to await later.
type requestContext struct {
	conn          *Connection
	correlationID int32
}

func (r *requestContext) CorrelationID() int32 { return r.correlationID }

func (r *requestContext) VirtualCluster() string { return r.conn.virtualCluster }

func (r *requestContext) OriginateRequest(ctx context.Context, apiKey, apiVersion int16, body []byte) (<-chan OriginatedResponse, error) {
	if r.conn.upstream == nil {
		return nil, fmt.Errorf("proxy: OriginateRequest called before a broker connection exists")
	}
	return r.conn.upstream.originate(apiKey, apiVersion, body)
}
