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

import "github.com/prometheus/client_golang/prometheus"

var (
	connectionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kroxylite_proxy_connections_opened_total",
		Help: "Count of downstream connections accepted.",
	})
	connectionsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kroxylite_proxy_connections_closed_total",
		Help: "Count of downstream connections closed, labeled by cause category.",
	}, []string{"cause"})
	bytesIn = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kroxylite_proxy_bytes_in_total",
		Help: "Bytes read from downstream clients.",
	})
	bytesOut = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kroxylite_proxy_bytes_out_total",
		Help: "Bytes written to downstream clients.",
	})
	stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kroxylite_proxy_state_transitions_total",
		Help: "Count of session state transitions, labeled by resulting state.",
	}, []string{"state"})
	shortCircuits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kroxylite_proxy_short_circuits_total",
		Help: "Count of request filter short-circuit outcomes; the filter label is always request-filter.",
	}, []string{"filter"})
	protocolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kroxylite_proxy_protocol_errors_total",
		Help: "Count of protocol-level errors, labeled by category.",
	}, []string{"category"})
	filterUnhealthy = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kroxylite_proxy_filter_errors_total",
		Help: "Count of filter Apply calls that panicked, labeled by filter name.",
	}, []string{"filter"})
)

func init() {
	prometheus.MustRegister(
		connectionsOpened,
		connectionsClosed,
		bytesIn,
		bytesOut,
		stateTransitions,
		shortCircuits,
		protocolErrors,
		filterUnhealthy,
	)
}
