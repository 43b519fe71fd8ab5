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

package proxy

import (
	"bytes"
	"testing"
)

func TestFrameBufferDrainPreservesArrivalOrder(t *testing.T) {
	b := newFrameBuffer(1024)
	frames := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, f := range frames {
		if err := b.push(f); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if b.len() != 3 {
		t.Fatalf("unexpected len %d", b.len())
	}
	drained := b.drain()
	if len(drained) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(drained))
	}
	for i, f := range frames {
		if !bytes.Equal(drained[i], f) {
			t.Fatalf("frame %d: expected %q got %q", i, f, drained[i])
		}
	}
	if b.len() != 0 {
		t.Fatalf("expected buffer empty after drain, len=%d", b.len())
	}
}

func TestFrameBufferOverflow(t *testing.T) {
	b := newFrameBuffer(8)
	if err := b.push([]byte("1234")); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := b.push([]byte("5678")); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := b.push([]byte("x")); err == nil {
		t.Fatalf("expected overflow error")
	} else if err != ErrBufferOverflow {
		t.Fatalf("unexpected error %v", err)
	}
	if b.len() != 2 {
		t.Fatalf("overflowing push should not have been appended, len=%d", b.len())
	}
}

func TestFrameBufferDefaultMaxBytes(t *testing.T) {
	b := newFrameBuffer(0)
	if b.maxBytes != defaultMaxBufferedBytes {
		t.Fatalf("expected default max bytes %d, got %d", defaultMaxBufferedBytes, b.maxBytes)
	}
}

func TestFrameBufferDrainEmpty(t *testing.T) {
	b := newFrameBuffer(64)
	drained := b.drain()
	if len(drained) != 0 {
		t.Fatalf("expected no frames, got %d", len(drained))
	}
}
