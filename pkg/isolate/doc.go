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

// Package isolate drives the isolate(1) sandbox binary to compile and run
// untrusted programs under precise resource limits, and turns its
// metadata file into a typed result.
//
// A caller works with the package through five cooperating pieces:
//
//   - ResourceLimits, DirectoryRule, EnvRule, SandboxConfig: plain value
//     types describing what a run is allowed to do (see limits.go,
//     dirs.go, env.go, config.go).
//   - the command encoder (encoder.go) which turns those value types
//     into an argument vector for the external binary.
//   - the metadata parser (metadata.go, report.go) which turns the
//     key/value file isolate writes after a run into a RunReport.
//   - the BoxAllocator (allocator.go) which hands out exclusive numeric
//     slots to concurrent callers.
//   - Session (session.go), the public object that owns one slot and
//     drives init/run/cleanup through the other four pieces.
//
// A session's lifecycle is New -> Initialized -> (Ran)* -> CleanedUp.
// Cleanup is guaranteed on every exit path; use WithSession for that
// guarantee without remembering to call Cleanup yourself.
package isolate
