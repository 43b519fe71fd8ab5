// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
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

package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// EtcdStoreConfig defines how the engine connects to etcd for the shared
// cluster metadata snapshot that filters consult to answer Metadata,
// CreateTopics and DeleteTopics on behalf of the upstream broker.
type EtcdStoreConfig struct {
	Endpoints   []string
	Username    string
	Password    string
	DialTimeout time.Duration
}

// EtcdStore keeps an InMemoryStore snapshot in sync with a shared etcd key,
// so every proxy instance in a fleet observes the same topic/broker view
// without talking to the actual upstream brokers.
type EtcdStore struct {
	client   *clientv3.Client
	metadata *InMemoryStore
	cancel   context.CancelFunc
}

// NewEtcdStore initializes a store backed by etcd.
func NewEtcdStore(ctx context.Context, snapshot ClusterMetadata, cfg EtcdStoreConfig) (*EtcdStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("etcd endpoints required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}
	store := &EtcdStore{
		client:   cli,
		metadata: NewInMemoryStore(snapshot),
	}
	// Publish the initial snapshot only if no instance has published one
	// yet; a snapshot already in etcd takes precedence and is loaded below.
	if payload, err := json.Marshal(cloneMetadata(snapshot)); err == nil {
		seedCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		key := snapshotKey()
		_, _ = cli.Txn(seedCtx).
			If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
			Then(clientv3.OpPut(key, string(payload))).
			Commit()
		cancel()
	}
	if err := store.refreshSnapshot(ctx); err != nil {
		// a failed refresh keeps the local snapshot; the watcher picks up later changes
	}
	store.startWatchers()
	return store, nil
}

// Close stops the snapshot watcher and releases the etcd client.
func (s *EtcdStore) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.client.Close()
}

// Metadata delegates to the snapshot kept fresh by the etcd watcher.
func (s *EtcdStore) Metadata(ctx context.Context, topics []string) (*ClusterMetadata, error) {
	return s.metadata.Metadata(ctx, topics)
}

// CreateTopic updates the in-memory snapshot and republishes it to etcd so
// other proxy instances observe the new topic on their next watch event.
func (s *EtcdStore) CreateTopic(ctx context.Context, spec TopicSpec) (*protocol.MetadataTopic, error) {
	topic, err := s.metadata.CreateTopic(ctx, spec)
	if err != nil {
		return nil, err
	}
	if err := s.persistSnapshot(ctx); err != nil {
		return nil, err
	}
	return topic, nil
}

// DeleteTopic removes the topic from the snapshot and republishes it.
func (s *EtcdStore) DeleteTopic(ctx context.Context, name string) error {
	if err := s.metadata.DeleteTopic(ctx, name); err != nil {
		return err
	}
	return s.persistSnapshot(ctx)
}

func (s *EtcdStore) startWatchers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.watchSnapshot(ctx)
}

func (s *EtcdStore) watchSnapshot(ctx context.Context) {
	watchChan := s.client.Watch(ctx, snapshotKey())
	for resp := range watchChan {
		if resp.Err() != nil {
			continue
		}
		if err := s.refreshSnapshot(ctx); err != nil {
			continue
		}
	}
}

func (s *EtcdStore) refreshSnapshot(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := s.client.Get(ctx, snapshotKey())
	if err != nil {
		return err
	}
	if len(resp.Kvs) == 0 {
		return nil
	}
	var snapshot ClusterMetadata
	if err := json.Unmarshal(resp.Kvs[0].Value, &snapshot); err != nil {
		return err
	}
	s.metadata.Update(snapshot)
	return nil
}

func snapshotKey() string {
	return "/kroxylite/metadata/snapshot"
}

func (s *EtcdStore) persistSnapshot(ctx context.Context) error {
	state, err := s.metadata.Metadata(ctx, nil)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	putCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = s.client.Put(putCtx, snapshotKey(), string(payload))
	return err
}
