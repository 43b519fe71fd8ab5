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

	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// ErrFilterPanicked wraps a recovered panic from a filter's Apply
// method. The pipeline treats it exactly like FilterError in the error
// taxonomy: close the connection with UNKNOWN_SERVER_ERROR and mark the
// filter unhealthy in metrics.
var ErrFilterPanicked = fmt.Errorf("proxy: filter panicked")

// runRequestFilters feeds header/req through filters in configured
// order. Each filter that answers false to ShouldDeserialize is skipped
// rather than run with a request it didn't ask to see; a filter that
// returns a result other than forward stops the pipeline there. mkCtx
// builds the RequestContext for the filter at the given index.
func runRequestFilters(ctx context.Context, filters []FilterEntry, header *protocol.RequestHeader, req protocol.Request, mkCtx func(filterIndex int) RequestContext) (result RequestResult, err error) {
	var current string
	defer func() {
		if r := recover(); r != nil {
			filterUnhealthy.WithLabelValues(current).Inc()
			protocolErrors.WithLabelValues("filter_panic").Inc()
			err = fmt.Errorf("filter %q: %w: %v", current, ErrFilterPanicked, r)
		}
	}()

	currentReq := req
	currentHeader := header
	for i, entry := range filters {
		if entry.Request == nil {
			continue
		}
		current = entry.Name
		if !entry.Request.ShouldDeserialize(currentHeader.APIKey, currentHeader.APIVersion) {
			continue
		}
		res := entry.Request.ApplyRequest(ctx, currentHeader, currentReq, mkCtx(i))
		switch res.kind {
		case kindForward:
			if res.header != nil {
				currentHeader = res.header
			}
			if res.request != nil {
				currentReq = res.request
			}
		case kindDrop, kindShortCircuit, kindDisconnect:
			return res, nil
		default:
			protocolErrors.WithLabelValues("filter_error").Inc()
			return RequestResult{}, fmt.Errorf("filter %q returned unknown result kind %d", entry.Name, res.kind)
		}
	}
	return ForwardRequest(currentHeader, currentReq), nil
}

// runResponseFilters feeds header/body through filters in the reverse
// of the order their requests ran in: the last filter to see a request
// is the first to see its response, and the first-configured filter
// sees the response last. This keeps request/response ordering for a
// single filter symmetric around the broker (spec.md §4.5/§8 law L3) —
// a filter positioned close to the broker gets first look at a
// response, mirroring the onion-style wrapping its position in the
// request path implies.
func runResponseFilters(ctx context.Context, filters []FilterEntry, header *protocol.ResponseHeader, apiKey, apiVersion int16, body []byte, mkCtx func(filterIndex int) RequestContext) (result ResponseResult, err error) {
	var current string
	defer func() {
		if r := recover(); r != nil {
			filterUnhealthy.WithLabelValues(current).Inc()
			protocolErrors.WithLabelValues("filter_panic").Inc()
			err = fmt.Errorf("filter %q: %w: %v", current, ErrFilterPanicked, r)
		}
	}()

	currentHeader := header
	currentBody := body
	for i := len(filters) - 1; i >= 0; i-- {
		entry := filters[i]
		if entry.Response == nil {
			continue
		}
		current = entry.Name
		res := entry.Response.ApplyResponse(ctx, currentHeader, apiKey, apiVersion, currentBody, mkCtx(i))
		switch res.kind {
		case kindForward:
			if res.header != nil {
				currentHeader = res.header
			}
			if res.body != nil {
				currentBody = res.body
			}
		case kindDrop, kindDisconnect:
			return res, nil
		default:
			protocolErrors.WithLabelValues("filter_error").Inc()
			return ResponseResult{}, fmt.Errorf("filter %q returned unknown response result kind %d", entry.Name, res.kind)
		}
	}
	return ForwardResponse(currentHeader, currentBody), nil
}
