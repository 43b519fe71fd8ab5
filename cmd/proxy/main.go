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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/novatechflow/kroxylite/pkg/filter/adminmeta"
	"github.com/novatechflow/kroxylite/pkg/metadata"
	"github.com/novatechflow/kroxylite/pkg/proxy"
)

const (
	defaultProxyAddr = ":9092"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	addr := envOrDefault("KROXYLITE_PROXY_ADDR", defaultProxyAddr)
	healthAddr := strings.TrimSpace(os.Getenv("KROXYLITE_PROXY_HEALTH_ADDR"))
	remote := strings.TrimSpace(os.Getenv("KROXYLITE_PROXY_REMOTE"))
	clusterName := envOrDefault("KROXYLITE_PROXY_CLUSTER_NAME", "default")
	adminEnabled := envBool("KROXYLITE_PROXY_ADMIN_METADATA", true)

	if remote == "" {
		logger.Error("KROXYLITE_PROXY_REMOTE not set; the engine has nothing to forward to")
		os.Exit(1)
	}

	registry := proxy.NewClusterRegistry()
	spec := proxy.VirtualClusterSpec{Name: clusterName, Remote: remote}
	if adminEnabled {
		spec.Filters = []proxy.FilterEntry{{
			Name:    "adminmeta",
			Request: adminmeta.New(metadata.NewInMemoryStore(metadata.ClusterMetadata{})),
		}}
	}
	registry.Set(spec)

	engine := &proxy.Engine{
		Addr:      addr,
		Logger:    logger,
		NetFilter: &proxy.StaticNetFilter{Registry: registry},
		Config: proxy.EngineConfig{
			MaxBufferedBytesBeforeForwarding: envInt("KROXYLITE_PROXY_MAX_BUFFERED_BYTES", 1<<20),
			MaxFrameSizeBytes:                int32(envInt("KROXYLITE_PROXY_MAX_FRAME_BYTES", 100<<20)),
			SASLAuthenticationOffload:        envBool("KROXYLITE_PROXY_SASL_OFFLOAD", false),
			LogNetwork:                       envBool("KROXYLITE_PROXY_LOG_NETWORK", false),
			LogFrames:                        envBool("KROXYLITE_PROXY_LOG_FRAMES", false),
			TCPNoDelay:                       envBool("KROXYLITE_PROXY_TCP_NODELAY", true),
			DialTimeoutMillis:                envInt("KROXYLITE_PROXY_DIAL_TIMEOUT_MS", 5000),
		},
	}

	if healthAddr != "" {
		startHealthServer(ctx, logger, healthAddr)
	}

	if err := engine.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("proxy engine error", "error", err)
		os.Exit(1)
	}
	engine.Wait()
}

func startHealthServer(ctx context.Context, logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	go func() {
		logger.Info("proxy health listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("proxy health server error", "error", err)
		}
	}()
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
