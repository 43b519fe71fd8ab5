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

// Package testbroker is a minimal Kafka wire-protocol server stood up
// behind the engine in integration tests and the demo/e2e commands: it
// accepts connections, decodes request frames and hands them to a
// Handler, without implementing any actual topic or consumer-group
// behavior.
package testbroker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// Handler answers a decoded request with the bytes of a complete
// response frame body (header and payload together), or nil to answer
// nothing at all.
type Handler interface {
	Handle(ctx context.Context, header *protocol.RequestHeader, req protocol.Request) ([]byte, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, header *protocol.RequestHeader, req protocol.Request) ([]byte, error)

func (f HandlerFunc) Handle(ctx context.Context, header *protocol.RequestHeader, req protocol.Request) ([]byte, error) {
	return f(ctx, header, req)
}

// Server is a bare-bones TCP listener speaking framed Kafka requests and
// responses, driven entirely by its Handler.
type Server struct {
	Addr    string
	Handler Handler
	Logger  *slog.Logger
	// MaxFrameSize bounds incoming request frames; zero means
	// protocol.DefaultMaxFrameSize.
	MaxFrameSize int32

	listener net.Listener
	wg       sync.WaitGroup
}

// ListenAndServe starts accepting connections and blocks until ctx is
// canceled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Handler == nil {
		return errors.New("testbroker.Server requires a Handler")
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	logger.Info("testbroker listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logger.Warn("testbroker accept timeout", "error", err)
				continue
			}
			return err
		}
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConnection(ctx, c, logger)
		}(conn)
	}
}

// Wait blocks until every connection goroutine has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// ListenAddress returns the listener's actual address once
// ListenAndServe has bound it, or the configured Addr before that.
func (s *Server) ListenAddress() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.Addr
}

func (s *Server) handleConnection(parent context.Context, conn net.Conn, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer conn.Close()

	maxSize := s.MaxFrameSize
	if maxSize <= 0 {
		maxSize = protocol.DefaultMaxFrameSize
	}

	for {
		frame, err := protocol.ReadFrame(conn, maxSize)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Warn("testbroker read frame", "error", err)
			}
			return
		}
		header, req, err := protocol.ParseRequest(frame.Payload)
		if err != nil {
			logger.Warn("testbroker parse request", "error", err, "payload_bytes", len(frame.Payload))
			return
		}
		respPayload, err := s.Handler.Handle(ctx, header, req)
		if err != nil {
			logger.Warn("testbroker handle request", "error", err)
			return
		}
		if respPayload == nil {
			continue
		}
		if err := protocol.WriteFrame(conn, respPayload); err != nil {
			logger.Warn("testbroker write frame", "error", err)
			return
		}
	}
}

// StubHandler answers ApiVersions and Metadata requests with a single
// fixed broker entry and no topics, enough for the engine's
// SelectingServer/Connecting/Forwarding transitions to exercise a real
// TCP round trip in tests without a real Kafka cluster. Anything else it
// receives is echoed back as an empty, all-zero error-code response of
// the same API and version.
type StubHandler struct {
	NodeID   int32
	Host     string
	Port     int32
	Versions []protocol.ApiVersion
}

func (h StubHandler) Handle(ctx context.Context, header *protocol.RequestHeader, req protocol.Request) ([]byte, error) {
	switch req.(type) {
	case *protocol.ApiVersionsRequest:
		resp := &protocol.ApiVersionsResponse{
			CorrelationID: header.CorrelationID,
			ErrorCode:     protocol.NONE,
			Versions:      h.Versions,
		}
		return protocol.EncodeApiVersionsResponse(resp, header.APIVersion)
	case *protocol.MetadataRequest:
		resp := &protocol.MetadataResponse{
			CorrelationID: header.CorrelationID,
			Brokers: []protocol.MetadataBroker{
				{NodeID: h.NodeID, Host: h.Host, Port: h.Port},
			},
			ControllerID: h.NodeID,
		}
		return protocol.EncodeMetadataResponse(resp, header.APIVersion)
	default:
		flexible := protocol.IsFlexibleAPI(header.APIKey, header.APIVersion)
		return protocol.EncodeDegenerateErrorResponse(header.CorrelationID, flexible, protocol.NONE), nil
	}
}
