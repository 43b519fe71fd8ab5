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

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// FilterRef names one filter to install in a virtual cluster's pipeline,
// in list order, plus whatever string configuration that filter's
// constructor needs. The operator's filter factory resolves Name to a
// concrete proxy.RequestFilter/proxy.ResponseFilter pair; an unknown name
// fails reconciliation rather than silently routing without it.
type FilterRef struct {
	Name   string            `json:"name"`
	Config map[string]string `json:"config,omitempty"`
}

// VirtualClusterSpec is the operator-declared routing policy for one
// named cluster a client connection can be routed to: which broker to
// forward to, and which filters run on the connection once it is.
type VirtualClusterSpec struct {
	// Remote is the broker address (host:port) connections routed to
	// this cluster are forwarded to.
	Remote string `json:"remote"`
	// FilterChain lists the filters this cluster's connections run, in
	// pipeline order.
	FilterChain []FilterRef `json:"filterChain,omitempty"`
	// Default marks this cluster as the net-filter's fallback when a
	// connection carries no cluster-selecting hint. At most one
	// VirtualCluster in a given engine's registry should set this; the
	// controller does not itself enforce uniqueness.
	Default bool `json:"default,omitempty"`
}

// VirtualClusterStatus captures the operator's last reconciliation of
// this cluster into the engine's in-memory registry.
type VirtualClusterStatus struct {
	Phase           string             `json:"phase,omitempty"`
	ObservedFilters []string           `json:"observedFilters,omitempty"`
	Conditions      []metav1.Condition `json:"conditions,omitempty"`
}

//+kubebuilder:object:root=true
//+kubebuilder:subresource:status

// VirtualCluster is the Schema for the virtualclusters API.
type VirtualCluster struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   VirtualClusterSpec   `json:"spec,omitempty"`
	Status VirtualClusterStatus `json:"status,omitempty"`
}

//+kubebuilder:object:root=true

// VirtualClusterList contains a list of VirtualCluster.
type VirtualClusterList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []VirtualCluster `json:"items"`
}

func init() {
	SchemeBuilder.Register(&VirtualCluster{}, &VirtualClusterList{})
}

func (in *FilterRef) DeepCopyInto(out *FilterRef) {
	*out = *in
	if in.Config != nil {
		out.Config = make(map[string]string, len(in.Config))
		for k, v := range in.Config {
			out.Config[k] = v
		}
	}
}

func (in *FilterRef) DeepCopy() *FilterRef {
	if in == nil {
		return nil
	}
	out := new(FilterRef)
	in.DeepCopyInto(out)
	return out
}

func (in *VirtualClusterSpec) DeepCopyInto(out *VirtualClusterSpec) {
	*out = *in
	if in.FilterChain != nil {
		out.FilterChain = make([]FilterRef, len(in.FilterChain))
		for i := range in.FilterChain {
			in.FilterChain[i].DeepCopyInto(&out.FilterChain[i])
		}
	}
}

func (in *VirtualClusterSpec) DeepCopy() *VirtualClusterSpec {
	if in == nil {
		return nil
	}
	out := new(VirtualClusterSpec)
	in.DeepCopyInto(out)
	return out
}

func (in *VirtualClusterStatus) DeepCopyInto(out *VirtualClusterStatus) {
	*out = *in
	if in.ObservedFilters != nil {
		out.ObservedFilters = make([]string, len(in.ObservedFilters))
		copy(out.ObservedFilters, in.ObservedFilters)
	}
	if in.Conditions != nil {
		out.Conditions = make([]metav1.Condition, len(in.Conditions))
		for i := range in.Conditions {
			in.Conditions[i].DeepCopyInto(&out.Conditions[i])
		}
	}
}

func (in *VirtualClusterStatus) DeepCopy() *VirtualClusterStatus {
	if in == nil {
		return nil
	}
	out := new(VirtualClusterStatus)
	in.DeepCopyInto(out)
	return out
}

func (in *VirtualCluster) DeepCopyInto(out *VirtualCluster) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	in.Status.DeepCopyInto(&out.Status)
}

func (in *VirtualCluster) DeepCopy() *VirtualCluster {
	if in == nil {
		return nil
	}
	out := new(VirtualCluster)
	in.DeepCopyInto(out)
	return out
}

func (in *VirtualCluster) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

func (in *VirtualClusterList) DeepCopyInto(out *VirtualClusterList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]VirtualCluster, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *VirtualClusterList) DeepCopy() *VirtualClusterList {
	if in == nil {
		return nil
	}
	out := new(VirtualClusterList)
	in.DeepCopyInto(out)
	return out
}

func (in *VirtualClusterList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}
