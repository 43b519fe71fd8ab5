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
	"fmt"
	"log/slog"

	kroxylitev1alpha1 "github.com/novatechflow/kroxylite/api/v1alpha1"
	"github.com/novatechflow/kroxylite/pkg/filter/adminmeta"
	"github.com/novatechflow/kroxylite/pkg/filter/audits3"
	"github.com/novatechflow/kroxylite/pkg/metadata"
	"github.com/novatechflow/kroxylite/pkg/proxy"
)

// FilterBuilder turns one CRD-declared filter reference into a live
// pipeline entry. Called once per reconcile, not per connection: any
// filter that needs a background worker (like audits3's upload Sink)
// owns one for the lifetime of the VirtualCluster, not per client.
type FilterBuilder func(ctx context.Context, ref kroxylitev1alpha1.FilterRef) (proxy.FilterEntry, error)

// FilterFactory resolves the names a VirtualCluster's filterChain can
// reference into concrete proxy.FilterEntry values. FilterRef carries
// only strings because it round-trips through the Kubernetes API; the
// factory is where a name turns back into real Go filter instances.
type FilterFactory struct {
	builders map[string]FilterBuilder
	// store backs the adminmeta builder. One store per factory, shared
	// across every VirtualCluster that references "adminmeta": the
	// engine tracks one admin/discovery view, not one per tenant.
	store metadata.Store
}

// NewFilterFactory returns a factory pre-registered with every filter
// this module ships.
func NewFilterFactory() *FilterFactory {
	f := &FilterFactory{
		builders: make(map[string]FilterBuilder),
		store:    metadata.NewInMemoryStore(metadata.ClusterMetadata{}),
	}
	f.Register("audits3", buildAudits3Filter)
	f.Register("adminmeta", f.buildAdminMetaFilter)
	return f
}

// Store returns the metadata store backing the adminmeta filter, so
// callers outside the reconcile path (health checks, seeding brokers at
// startup) can update it.
func (f *FilterFactory) Store() metadata.Store {
	return f.store
}

// Register adds or replaces the builder for name.
func (f *FilterFactory) Register(name string, builder FilterBuilder) {
	f.builders[name] = builder
}

// Build resolves refs in order into a filter chain. An unresolvable
// name fails the whole chain rather than silently skipping it, so a
// typo in a VirtualCluster spec surfaces as a reconcile error instead
// of routing traffic without the filter its author expected.
func (f *FilterFactory) Build(ctx context.Context, refs []kroxylitev1alpha1.FilterRef) ([]proxy.FilterEntry, error) {
	entries := make([]proxy.FilterEntry, 0, len(refs))
	for _, ref := range refs {
		builder, ok := f.builders[ref.Name]
		if !ok {
			return nil, fmt.Errorf("operator: unknown filter %q", ref.Name)
		}
		entry, err := builder(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("operator: build filter %q: %w", ref.Name, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// buildAudits3Filter wraps a pass-through filter with an S3 audit sink
// configured from ref.Config. Recognized keys: bucket, region,
// endpoint, forcePathStyle, accessKeyId, secretAccessKey, sessionToken,
// keyPrefix.
func buildAudits3Filter(ctx context.Context, ref kroxylitev1alpha1.FilterRef) (proxy.FilterEntry, error) {
	cfg := audits3.Config{
		Bucket:          ref.Config["bucket"],
		Region:          ref.Config["region"],
		Endpoint:        ref.Config["endpoint"],
		ForcePathStyle:  ref.Config["forcePathStyle"] == "true",
		AccessKeyID:     ref.Config["accessKeyId"],
		SecretAccessKey: ref.Config["secretAccessKey"],
		SessionToken:    ref.Config["sessionToken"],
		KeyPrefix:       ref.Config["keyPrefix"],
	}
	api, err := audits3.NewS3API(ctx, cfg)
	if err != nil {
		return proxy.FilterEntry{}, err
	}
	sink := audits3.NewSink(api, cfg, slog.Default())
	base := proxy.PassthroughFilter{}
	return proxy.FilterEntry{
		Name:     "audits3",
		Request:  audits3.WrapRequest(base, sink),
		Response: audits3.WrapResponse(base, sink),
	}, nil
}

// buildAdminMetaFilter answers Metadata/CreateTopics/DeleteTopics
// requests out of the factory's shared store. ref.Config is unused: the
// store it binds to isn't per-VirtualCluster configuration, it's the
// one shared admin view.
func (f *FilterFactory) buildAdminMetaFilter(ctx context.Context, ref kroxylitev1alpha1.FilterRef) (proxy.FilterEntry, error) {
	return proxy.FilterEntry{
		Name:    "adminmeta",
		Request: adminmeta.New(f.store),
	}, nil
}
