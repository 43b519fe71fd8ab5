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

import "testing"

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("KROXYLITE_PROXY_TEST_ADDR", "")
	if got := envOrDefault("KROXYLITE_PROXY_TEST_ADDR", defaultProxyAddr); got != defaultProxyAddr {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("KROXYLITE_PROXY_TEST_ADDR", ":9999")
	if got := envOrDefault("KROXYLITE_PROXY_TEST_ADDR", defaultProxyAddr); got != ":9999" {
		t.Fatalf("expected override, got %q", got)
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("KROXYLITE_PROXY_TEST_INT", "")
	if got := envInt("KROXYLITE_PROXY_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback, got %d", got)
	}
	t.Setenv("KROXYLITE_PROXY_TEST_INT", "42")
	if got := envInt("KROXYLITE_PROXY_TEST_INT", 7); got != 42 {
		t.Fatalf("expected override, got %d", got)
	}
	t.Setenv("KROXYLITE_PROXY_TEST_INT", "not-a-number")
	if got := envInt("KROXYLITE_PROXY_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback on invalid input, got %d", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("KROXYLITE_PROXY_TEST_BOOL", "")
	if got := envBool("KROXYLITE_PROXY_TEST_BOOL", true); got != true {
		t.Fatalf("expected fallback true, got %v", got)
	}
	t.Setenv("KROXYLITE_PROXY_TEST_BOOL", "false")
	if got := envBool("KROXYLITE_PROXY_TEST_BOOL", true); got != false {
		t.Fatalf("expected override false, got %v", got)
	}
	t.Setenv("KROXYLITE_PROXY_TEST_BOOL", "garbage")
	if got := envBool("KROXYLITE_PROXY_TEST_BOOL", true); got != true {
		t.Fatalf("expected fallback on invalid input, got %v", got)
	}
}
