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
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	kroxylitev1alpha1 "github.com/novatechflow/kroxylite/api/v1alpha1"
	"github.com/novatechflow/kroxylite/pkg/proxy"
)

func testScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := kroxylitev1alpha1.AddToScheme(scheme); err != nil {
		t.Fatalf("add scheme: %v", err)
	}
	return scheme
}

func TestVirtualClusterReconcileRegistersCluster(t *testing.T) {
	vc := &kroxylitev1alpha1.VirtualCluster{
		ObjectMeta: metav1.ObjectMeta{Name: "tenant-a"},
		Spec:       kroxylitev1alpha1.VirtualClusterSpec{Remote: "broker-a:9092", Default: true},
	}
	scheme := testScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(vc).WithStatusSubresource(vc).Build()
	registry := proxy.NewClusterRegistry()
	r := &VirtualClusterReconciler{Client: c, Registry: registry, Filters: NewFilterFactory()}

	if _, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: nameOf(vc)}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	spec, ok := registry.Get("tenant-a")
	if !ok {
		t.Fatalf("expected tenant-a registered")
	}
	if spec.Remote != "broker-a:9092" {
		t.Fatalf("unexpected remote: %q", spec.Remote)
	}
	def, ok := registry.Default()
	if !ok || def.Name != "tenant-a" {
		t.Fatalf("expected tenant-a to be the default cluster")
	}

	var stored kroxylitev1alpha1.VirtualCluster
	if err := c.Get(context.Background(), nameOf(vc), &stored); err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status.Phase != "Routed" {
		t.Fatalf("expected Routed phase, got %q", stored.Status.Phase)
	}
}

func TestVirtualClusterReconcileRejectsUnknownFilter(t *testing.T) {
	vc := &kroxylitev1alpha1.VirtualCluster{
		ObjectMeta: metav1.ObjectMeta{Name: "tenant-b"},
		Spec: kroxylitev1alpha1.VirtualClusterSpec{
			Remote:      "broker-b:9092",
			FilterChain: []kroxylitev1alpha1.FilterRef{{Name: "no-such-filter"}},
		},
	}
	scheme := testScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(vc).WithStatusSubresource(vc).Build()
	registry := proxy.NewClusterRegistry()
	r := &VirtualClusterReconciler{Client: c, Registry: registry, Filters: NewFilterFactory()}

	if _, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: nameOf(vc)}); err == nil {
		t.Fatalf("expected an error for an unknown filter")
	}
	if _, ok := registry.Get("tenant-b"); ok {
		t.Fatalf("tenant-b should not have been registered")
	}
}

func TestVirtualClusterReconcileDeletionRemovesFromRegistry(t *testing.T) {
	vc := &kroxylitev1alpha1.VirtualCluster{
		ObjectMeta: metav1.ObjectMeta{Name: "tenant-c", Finalizers: []string{virtualClusterFinalizer}},
		Spec:       kroxylitev1alpha1.VirtualClusterSpec{Remote: "broker-c:9092"},
	}
	scheme := testScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(vc).WithStatusSubresource(vc).Build()
	registry := proxy.NewClusterRegistry()
	registry.Set(proxy.VirtualClusterSpec{Name: "tenant-c", Remote: "broker-c:9092"})
	r := &VirtualClusterReconciler{Client: c, Registry: registry, Filters: NewFilterFactory()}

	if err := c.Delete(context.Background(), vc); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: nameOf(vc)}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if _, ok := registry.Get("tenant-c"); ok {
		t.Fatalf("expected tenant-c removed from registry")
	}
}

func nameOf(obj *kroxylitev1alpha1.VirtualCluster) types.NamespacedName {
	return types.NamespacedName{Name: obj.Name, Namespace: obj.Namespace}
}
