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

// backpressure is a two-boolean sub-state independent of State: a slow
// reader on one side blocks reads on the other. It is deliberately kept
// separate from State instead of folded into Forwarding, since the rule
// applies even while buffering in SelectingServer or Connecting.
type backpressure struct {
	clientReadsBlocked bool
	serverReadsBlocked bool
}

// clientWritability and serverWritability report whether writable is a
// falling edge (true->false) or a
// rising edge (false->true) relative to the tracked blocked flag, and
// updates the flag. It returns ok=false when writable repeats the
// current state, so callers only act on genuine transitions.
func (bp *backpressure) clientWritability(writable bool) (block bool, ok bool) {
	return edgeTransition(&bp.serverReadsBlocked, writable)
}

func (bp *backpressure) serverWritability(writable bool) (block bool, ok bool) {
	return edgeTransition(&bp.clientReadsBlocked, writable)
}

// edgeTransition centralizes the debounce: a channel becoming
// unwritable should block reads on the other side only if they are not
// already blocked, and becoming writable again should unblock only if
// they were. flag tracks "reads on the other side are blocked".
func edgeTransition(flag *bool, writable bool) (block bool, ok bool) {
	if writable {
		if !*flag {
			return false, false
		}
		*flag = false
		return false, true
	}
	if *flag {
		return false, false
	}
	*flag = true
	return true, true
}
