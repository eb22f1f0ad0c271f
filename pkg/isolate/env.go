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

// EnvRule describes one entry of the box's environment. Rules are kept
// in an ordered slice on SandboxConfig and applied in that order; a later
// rule for the same name overrides an earlier one.
type EnvRule struct {
	// Name is the environment variable name. Empty only for FullEnv.
	Name string
	// Value is the value to set. Ignored for Inherit and FullEnv.
	Value string
	// Kind selects how the rule is encoded.
	Kind EnvKind
}

// EnvKind distinguishes the three env-rule shapes isolate accepts.
type EnvKind int

const (
	// EnvKindInherit copies Name from the calling process's environment.
	EnvKindInherit EnvKind = iota
	// EnvKindSet sets Name to Value regardless of the calling environment.
	EnvKindSet
	// EnvKindFullEnv passes the entire calling environment through unfiltered.
	EnvKindFullEnv
)

// NewInheritEnv copies name from the caller's environment into the box.
func NewInheritEnv(name string) EnvRule {
	return EnvRule{Name: name, Kind: EnvKindInherit}
}

// NewSetEnv sets name to value inside the box.
func NewSetEnv(name, value string) EnvRule {
	return EnvRule{Name: name, Value: value, Kind: EnvKindSet}
}

// FullEnv passes the entire calling environment through to the box.
// isolate's own defaults are minimal; this is an explicit opt-out.
func FullEnv() EnvRule {
	return EnvRule{Kind: EnvKindFullEnv}
}
