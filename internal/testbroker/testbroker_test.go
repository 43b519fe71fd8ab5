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

package testbroker

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/novatechflow/kroxylite/pkg/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func requestFrame(t *testing.T, header *protocol.RequestHeader, req protocol.Request) []byte {
	t.Helper()
	payload, err := protocol.EncodeRequest(header, req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	return payload
}

func readCorrelationID(t *testing.T, payload []byte) int32 {
	t.Helper()
	if len(payload) < 4 {
		t.Fatalf("response payload too short: %d bytes", len(payload))
	}
	return int32(binary.BigEndian.Uint32(payload[:4]))
}

func TestHandleConnectionApiVersions(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	s := &Server{Handler: StubHandler{NodeID: 1, Host: "localhost", Port: 9092, Versions: []protocol.ApiVersion{
		{APIKey: protocol.APIKeyApiVersion, MinVersion: 0, MaxVersion: 3},
	}}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handleConnection(context.Background(), serverConn, testLogger())
	}()

	header := &protocol.RequestHeader{APIKey: protocol.APIKeyApiVersion, APIVersion: 0, CorrelationID: 42}
	if err := protocol.WriteFrame(clientConn, requestFrame(t, header, &protocol.ApiVersionsRequest{})); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	resp, err := protocol.ReadFrame(clientConn, 0)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got := readCorrelationID(t, resp.Payload); got != 42 {
		t.Fatalf("expected correlation id 42, got %d", got)
	}

	clientConn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("handleConnection did not exit after client close")
	}
}

func TestHandleConnectionMetadata(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	s := &Server{Handler: StubHandler{NodeID: 1, Host: "localhost", Port: 9092}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handleConnection(context.Background(), serverConn, testLogger())
	}()

	header := &protocol.RequestHeader{APIKey: protocol.APIKeyMetadata, APIVersion: 1, CorrelationID: 5}
	if err := protocol.WriteFrame(clientConn, requestFrame(t, header, &protocol.MetadataRequest{})); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	resp, err := protocol.ReadFrame(clientConn, 0)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got := readCorrelationID(t, resp.Payload); got != 5 {
		t.Fatalf("expected correlation id 5, got %d", got)
	}

	clientConn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("handleConnection did not exit after client close")
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Server{
		Addr:    "127.0.0.1:0",
		Handler: StubHandler{NodeID: 1, Host: "localhost", Port: 9092},
		Logger:  testLogger(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			if errors.Is(err, syscall.EPERM) {
				t.Skip("binding sockets not permitted in this sandbox")
			}
			t.Fatalf("ListenAndServe: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not exit after cancel")
	}
}
