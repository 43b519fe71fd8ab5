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
	"time"

	meta "k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	kroxylitev1alpha1 "github.com/novatechflow/kroxylite/api/v1alpha1"
	"github.com/novatechflow/kroxylite/pkg/proxy"
)

// virtualClusterFinalizer lets the reconciler observe deletion: a
// VirtualCluster has no owned Kubernetes objects whose own deletion
// would otherwise give us a signal to drop it from the registry.
const virtualClusterFinalizer = "kroxylite.novatechflow.com/virtualcluster"

// VirtualClusterReconciler reconciles VirtualCluster resources into the
// engine's in-memory ClusterRegistry. Unlike a workload-provisioning
// reconciler it creates nothing in the API server; its only side effect
// is a registry mutation plus a status update on the resource itself.
type VirtualClusterReconciler struct {
	Client   client.Client
	Registry *proxy.ClusterRegistry
	Filters  *FilterFactory
}

// NewVirtualClusterReconciler builds a reconciler that keeps registry in
// sync with the VirtualCluster resources mgr watches.
func NewVirtualClusterReconciler(mgr ctrl.Manager, registry *proxy.ClusterRegistry, filters *FilterFactory) *VirtualClusterReconciler {
	return &VirtualClusterReconciler{
		Client:   mgr.GetClient(),
		Registry: registry,
		Filters:  filters,
	}
}

func (r *VirtualClusterReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	var vc kroxylitev1alpha1.VirtualCluster
	if err := r.Client.Get(ctx, req.NamespacedName, &vc); err != nil {
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}

	if !vc.DeletionTimestamp.IsZero() {
		r.Registry.Remove(vc.Name)
		if controllerutil.ContainsFinalizer(&vc, virtualClusterFinalizer) {
			controllerutil.RemoveFinalizer(&vc, virtualClusterFinalizer)
			if err := r.Client.Update(ctx, &vc); err != nil {
				return ctrl.Result{}, err
			}
		}
		return ctrl.Result{}, nil
	}

	if !controllerutil.ContainsFinalizer(&vc, virtualClusterFinalizer) {
		controllerutil.AddFinalizer(&vc, virtualClusterFinalizer)
		if err := r.Client.Update(ctx, &vc); err != nil {
			return ctrl.Result{}, err
		}
	}

	entries, err := r.Filters.Build(ctx, vc.Spec.FilterChain)
	if err != nil {
		_ = r.updateStatus(ctx, &vc, metav1.ConditionFalse, "FilterChainInvalid", err.Error(), nil)
		return ctrl.Result{}, err
	}

	r.Registry.Set(proxy.VirtualClusterSpec{
		Name:    vc.Name,
		Remote:  vc.Spec.Remote,
		Filters: entries,
	})
	if vc.Spec.Default {
		r.Registry.SetDefault(vc.Name)
	}

	filterNames := make([]string, 0, len(entries))
	for _, e := range entries {
		filterNames = append(filterNames, e.Name)
	}
	if err := r.updateStatus(ctx, &vc, metav1.ConditionTrue, "Routed", "Registered in cluster registry.", filterNames); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{}, nil
}

func (r *VirtualClusterReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&kroxylitev1alpha1.VirtualCluster{}).
		Complete(r)
}

func (r *VirtualClusterReconciler) updateStatus(ctx context.Context, vc *kroxylitev1alpha1.VirtualCluster, status metav1.ConditionStatus, reason, message string, filterNames []string) error {
	vc.Status.Phase = reason
	vc.Status.ObservedFilters = filterNames
	meta.SetStatusCondition(&vc.Status.Conditions, metav1.Condition{
		Type:               "Ready",
		Status:             status,
		Reason:             reason,
		Message:            message,
		LastTransitionTime: metav1.NewTime(time.Now()),
	})
	if err := r.Client.Status().Update(ctx, vc); err != nil {
		return err
	}
	recordVirtualClusterCount(ctx, r.Client)
	return nil
}
