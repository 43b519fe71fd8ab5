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

import "testing"

func TestEdgeTransitionDebounces(t *testing.T) {
	var flag bool

	block, ok := edgeTransition(&flag, false)
	if !ok || !block || !flag {
		t.Fatalf("first unwritable edge: block=%v ok=%v flag=%v", block, ok, flag)
	}

	block, ok = edgeTransition(&flag, false)
	if ok {
		t.Fatalf("repeated unwritable should not report an edge: block=%v ok=%v", block, ok)
	}

	block, ok = edgeTransition(&flag, true)
	if !ok || block || flag {
		t.Fatalf("writable edge: block=%v ok=%v flag=%v", block, ok, flag)
	}

	block, ok = edgeTransition(&flag, true)
	if ok {
		t.Fatalf("repeated writable should not report an edge: block=%v ok=%v", block, ok)
	}
}

func TestBackpressureClientAndServerWritabilityAreIndependent(t *testing.T) {
	bp := &backpressure{}

	if block, ok := bp.clientWritability(false); !ok || !block {
		t.Fatalf("expected clientWritability(false) to request a block, got block=%v ok=%v", block, ok)
	}
	if !bp.serverReadsBlocked {
		t.Fatalf("clientWritability should track serverReadsBlocked")
	}
	if bp.clientReadsBlocked {
		t.Fatalf("clientWritability must not affect clientReadsBlocked")
	}

	if block, ok := bp.serverWritability(false); !ok || !block {
		t.Fatalf("expected serverWritability(false) to request a block, got block=%v ok=%v", block, ok)
	}
	if !bp.clientReadsBlocked {
		t.Fatalf("serverWritability should track clientReadsBlocked")
	}

	if block, ok := bp.clientWritability(true); !ok || block {
		t.Fatalf("expected clientWritability(true) to unblock, got block=%v ok=%v", block, ok)
	}
	if bp.serverReadsBlocked {
		t.Fatalf("expected serverReadsBlocked cleared after writable edge")
	}
}
