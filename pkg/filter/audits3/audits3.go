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

// Package audits3 wraps a proxy request or response filter and archives
// its non-forward decisions (short-circuit, drop, disconnect) as JSON
// records in S3, without touching the hot path: every upload happens on a
// background worker fed by a buffered queue, never inline in
// ApplyRequest/ApplyResponse.
package audits3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/novatechflow/kroxylite/pkg/protocol"
	"github.com/novatechflow/kroxylite/pkg/proxy"
)

// s3API is the slice of the AWS S3 client this package drives, narrowed
// the same way the donor storage package narrows its own S3 dependency
// down to an interface so tests can swap in a fake.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config configures the S3 destination for audit records.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	KeyPrefix       string
	// QueueSize bounds how many pending records the worker will hold; a
	// full queue drops the next record rather than blocking the caller.
	QueueSize int
}

// NewS3API builds the real AWS-backed client. Kept separate from NewSink so
// tests can construct a Sink around a fake s3API without touching the
// network.
func NewS3API(ctx context.Context, cfg Config) (s3API, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("audits3: bucket required")
	}
	if cfg.Region == "" {
		return nil, errors.New("audits3: region required")
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{URL: cfg.Endpoint, PartitionID: "aws", SigningRegion: cfg.Region}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		loadOpts = append(loadOpts, config.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("audits3: load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}

// record is the JSON shape written to S3, one object per archived
// decision.
type record struct {
	Time           time.Time `json:"time"`
	ConnectionID   string    `json:"connection_id,omitempty"`
	VirtualCluster string    `json:"virtual_cluster"`
	CorrelationID  int32     `json:"correlation_id"`
	APIKey         int16     `json:"api_key"`
	APIVersion     int16     `json:"api_version"`
	Direction      string    `json:"direction"`
	Decision       string    `json:"decision"`
	FilterName     string    `json:"filter_name"`
}

// Sink uploads records to S3 from a single background worker, so a burst
// of short-circuited requests never blocks a connection's event loop
// waiting on the network. Records that arrive while the queue is full
// are dropped rather than blocking the caller; only the first such drop
// is logged, and no count of drops is kept.
type Sink struct {
	api       s3API
	bucket    string
	keyPrefix string
	logger    *slog.Logger

	queue   chan record
	dropped chan struct{}
	done    chan struct{}
}

// NewSink starts the background upload worker. Call Close to drain and
// stop it.
func NewSink(api s3API, cfg Config, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	s := &Sink{
		api:       api,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger,
		queue:     make(chan record, size),
		dropped:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sink) run() {
	defer close(s.done)
	for rec := range s.queue {
		s.upload(rec)
	}
}

func (s *Sink) upload(rec record) {
	body, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("audits3: marshal record", "error", err)
		return
	}
	key := fmt.Sprintf("%s%s/%s-%d.json", s.keyPrefix, rec.VirtualCluster, rec.Decision, rec.CorrelationID)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		s.logger.Error("audits3: put object", "key", key, "error", err)
	}
}

// enqueue is non-blocking: a full queue means the record is dropped
// rather than stalling the connection that produced it.
func (s *Sink) enqueue(rec record) {
	select {
	case s.queue <- rec:
	default:
		select {
		case s.dropped <- struct{}{}:
			s.logger.Warn("audits3: queue full, dropping audit record", "decision", rec.Decision)
		default:
		}
	}
}

// Close stops accepting new records and waits for the worker to drain
// whatever is already queued.
func (s *Sink) Close() {
	close(s.queue)
	<-s.done
}

// RequestFilter wraps a proxy.RequestFilter and archives every
// non-forward decision it makes.
type RequestFilter struct {
	next proxy.RequestFilter
	sink *Sink
}

// WrapRequest returns a proxy.RequestFilter that delegates every call to
// next and archives its drop/short-circuit/disconnect outcomes.
func WrapRequest(next proxy.RequestFilter, sink *Sink) *RequestFilter {
	return &RequestFilter{next: next, sink: sink}
}

func (f *RequestFilter) ShouldDeserialize(apiKey, apiVersion int16) bool {
	return f.next.ShouldDeserialize(apiKey, apiVersion)
}

func (f *RequestFilter) ApplyRequest(ctx context.Context, header *protocol.RequestHeader, req protocol.Request, fctx proxy.RequestContext) proxy.RequestResult {
	result := f.next.ApplyRequest(ctx, header, req, fctx)
	decision := result.Decision()
	if decision == "forward" {
		return result
	}
	f.sink.enqueue(record{
		Time:           time.Now(),
		VirtualCluster: fctx.VirtualCluster(),
		CorrelationID:  fctx.CorrelationID(),
		APIKey:         header.APIKey,
		APIVersion:     header.APIVersion,
		Direction:      "request",
		Decision:       decision,
		FilterName:     "audits3",
	})
	return result
}

// ResponseFilter wraps a proxy.ResponseFilter and archives every
// non-forward decision it makes.
type ResponseFilter struct {
	next proxy.ResponseFilter
	sink *Sink
}

// WrapResponse returns a proxy.ResponseFilter that delegates every call
// to next and archives its drop/disconnect outcomes.
func WrapResponse(next proxy.ResponseFilter, sink *Sink) *ResponseFilter {
	return &ResponseFilter{next: next, sink: sink}
}

func (f *ResponseFilter) ApplyResponse(ctx context.Context, header *protocol.ResponseHeader, apiKey, apiVersion int16, body []byte, fctx proxy.RequestContext) proxy.ResponseResult {
	result := f.next.ApplyResponse(ctx, header, apiKey, apiVersion, body, fctx)
	decision := result.Decision()
	if decision == "forward" {
		return result
	}
	f.sink.enqueue(record{
		Time:           time.Now(),
		VirtualCluster: fctx.VirtualCluster(),
		CorrelationID:  fctx.CorrelationID(),
		APIKey:         apiKey,
		APIVersion:     apiVersion,
		Direction:      "response",
		Decision:       decision,
		FilterName:     "audits3",
	})
	return result
}
