// Copyright 2025-2026 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
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

package v1alpha1

import (
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestFilterRefDeepCopy(t *testing.T) {
	orig := &FilterRef{Name: "audits3", Config: map[string]string{"bucket": "audit"}}
	copy := orig.DeepCopy()
	if copy == orig {
		t.Fatalf("expected a deep copy")
	}
	copy.Config["bucket"] = "other"
	if orig.Config["bucket"] == copy.Config["bucket"] {
		t.Fatalf("expected deep copy of Config")
	}
}

func TestVirtualClusterDeepCopy(t *testing.T) {
	orig := &VirtualCluster{
		Spec: VirtualClusterSpec{
			Remote:      "broker.local:9092",
			FilterChain: []FilterRef{{Name: "audits3", Config: map[string]string{"bucket": "audit"}}},
			Default:     true,
		},
		Status: VirtualClusterStatus{
			Phase:           "Routed",
			ObservedFilters: []string{"audits3"},
			Conditions: []metav1.Condition{{
				Type:   "Ready",
				Status: metav1.ConditionTrue,
			}},
		},
	}
	copy := orig.DeepCopy()
	if copy == orig {
		t.Fatalf("expected a deep copy")
	}
	copy.Status.Conditions[0].Status = metav1.ConditionFalse
	if orig.Status.Conditions[0].Status == copy.Status.Conditions[0].Status {
		t.Fatalf("expected deep copy of Conditions")
	}
	copy.Spec.FilterChain[0].Name = "other"
	if orig.Spec.FilterChain[0].Name == copy.Spec.FilterChain[0].Name {
		t.Fatalf("expected deep copy of FilterChain")
	}
	copy.Status.ObservedFilters[0] = "other"
	if orig.Status.ObservedFilters[0] == copy.Status.ObservedFilters[0] {
		t.Fatalf("expected deep copy of ObservedFilters")
	}
}

func TestVirtualClusterListDeepCopy(t *testing.T) {
	orig := &VirtualClusterList{
		Items: []VirtualCluster{
			{Spec: VirtualClusterSpec{Remote: "a:9092"}},
			{Spec: VirtualClusterSpec{Remote: "b:9092"}},
		},
	}
	copy := orig.DeepCopy()
	if copy == orig {
		t.Fatalf("expected a deep copy")
	}
	copy.Items[0].Spec.Remote = "changed:9092"
	if orig.Items[0].Spec.Remote == copy.Items[0].Spec.Remote {
		t.Fatalf("expected deep copy of Items")
	}
}
