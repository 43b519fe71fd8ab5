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

package operator

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	kroxylitev1alpha1 "github.com/novatechflow/kroxylite/api/v1alpha1"
)

var operatorVirtualClusters = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "kroxylite_operator_virtualclusters",
	Help: "Number of VirtualCluster resources currently registered.",
})

func init() {
	ctrlmetrics.Registry.MustRegister(operatorVirtualClusters)
}

func recordVirtualClusterCount(ctx context.Context, c client.Client) {
	var clusters kroxylitev1alpha1.VirtualClusterList
	if err := c.List(ctx, &clusters); err != nil {
		return
	}
	operatorVirtualClusters.Set(float64(len(clusters.Items)))
}
