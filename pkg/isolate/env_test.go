// Copyright 2026 The Isobox Authors
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

package isolate

import "testing"

func TestEnvRuleConstructors(t *testing.T) {
	inherit := NewInheritEnv("PATH")
	if inherit.Kind != EnvKindInherit || inherit.Name != "PATH" {
		t.Fatalf("unexpected inherit rule: %+v", inherit)
	}

	set := NewSetEnv("LANG", "C.UTF-8")
	if set.Kind != EnvKindSet || set.Name != "LANG" || set.Value != "C.UTF-8" {
		t.Fatalf("unexpected set rule: %+v", set)
	}

	full := FullEnv()
	if full.Kind != EnvKindFullEnv {
		t.Fatalf("unexpected full-env rule: %+v", full)
	}
}

func TestEnvRuleOrderedOverride(t *testing.T) {
	cfg := NewSandboxConfig().
		WithEnvRule(NewSetEnv("X", "1")).
		WithEnvRule(NewSetEnv("X", "2"))

	if len(cfg.EnvRules) != 2 {
		t.Fatalf("expected both rules preserved in order, got %v", cfg.EnvRules)
	}
	if cfg.EnvRules[len(cfg.EnvRules)-1].Value != "2" {
		t.Fatal("later rule for the same name must be the one applied last")
	}
}
