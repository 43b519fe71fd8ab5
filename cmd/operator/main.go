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

package main

import (
	"os"
	"strings"

	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	kroxylitev1alpha1 "github.com/novatechflow/kroxylite/api/v1alpha1"
	"github.com/novatechflow/kroxylite/pkg/operator"
	"github.com/novatechflow/kroxylite/pkg/proxy"
)

var scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(kroxylitev1alpha1.AddToScheme(scheme))
}

func main() {
	zapLog, err := zapConfig().Build()
	if err != nil {
		os.Exit(1)
	}
	defer zapLog.Sync()
	ctrl.SetLogger(zapr.NewLogger(zapLog))

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsServerOptions(),
		HealthProbeBindAddress: envOrDefault("KROXYLITE_OPERATOR_HEALTH_ADDR", ":8081"),
		LeaderElection:         envBool("KROXYLITE_OPERATOR_LEADER_ELECT", false),
		LeaderElectionID:       leaderElectionID(),
	})
	if err != nil {
		ctrl.Log.Error(err, "unable to start manager")
		os.Exit(1)
	}

	registry := proxy.NewClusterRegistry()
	filters := operator.NewFilterFactory()

	if err := operator.NewVirtualClusterReconciler(mgr, registry, filters).SetupWithManager(mgr); err != nil {
		ctrl.Log.Error(err, "unable to set up VirtualCluster controller")
		os.Exit(1)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		ctrl.Log.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		ctrl.Log.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	ctrl.Log.Info("starting operator")
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		ctrl.Log.Error(err, "manager exited with error")
		os.Exit(1)
	}
}

// leaderElectionID names the lease the manager holds while leader
// election is enabled. Overridable so two operator deployments in the
// same cluster (e.g. staging and a canary) don't fight over one lease.
func leaderElectionID() string {
	if id := strings.TrimSpace(os.Getenv("KROXYLITE_OPERATOR_LEADER_KEY")); id != "" {
		return id
	}
	return "kroxylite-operator"
}

func zapConfig() zap.Config {
	cfg := zap.NewProductionConfig()
	if envBool("KROXYLITE_OPERATOR_LOG_DEV", false) {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	return cfg
}

func metricsServerOptions() metricsserver.Options {
	return metricsserver.Options{BindAddress: envOrDefault("KROXYLITE_OPERATOR_METRICS_ADDR", ":8080")}
}

func envOrDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val == "true" || val == "1"
}
