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
	"container/list"
	"errors"
)

// ErrBufferOverflow is returned by frameBuffer.push once the buffered
// byte count would exceed maxBytes. Nothing is evicted here: a client
// that floods the connection with requests before a broker has been
// selected gets the connection closed as a protocol violation instead of
// quietly losing frames. No error response (INVALID_REQUEST or other) is
// sent to the client before the close.
var ErrBufferOverflow = errors.New("proxy: buffered request bytes exceed limit")

// frameBuffer holds client frames received before the connection
// reaches Forwarding: the net-filter hasn't picked a broker yet, or the
// broker dial is still in flight. It is owned by the downstream
// handler and drained, in arrival order, the moment Forwarding starts.
type frameBuffer struct {
	maxBytes int
	size     int
	frames   *list.List
}

func newFrameBuffer(maxBytes int) *frameBuffer {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBufferedBytes
	}
	return &frameBuffer{maxBytes: maxBytes, frames: list.New()}
}

// defaultMaxBufferedBytes is the default pre-forwarding buffer bound.
const defaultMaxBufferedBytes = 1 << 20

func (b *frameBuffer) push(frame []byte) error {
	if b.size+len(frame) > b.maxBytes {
		return ErrBufferOverflow
	}
	b.frames.PushBack(frame)
	b.size += len(frame)
	return nil
}

// drain returns every buffered frame in arrival order and empties the
// buffer.
func (b *frameBuffer) drain() [][]byte {
	out := make([][]byte, 0, b.frames.Len())
	for e := b.frames.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.([]byte))
	}
	b.frames.Init()
	b.size = 0
	return out
}

func (b *frameBuffer) len() int {
	return b.frames.Len()
}
