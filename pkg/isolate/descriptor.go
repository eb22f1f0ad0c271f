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

import "context"

// LanguageDescriptor is the caller-supplied recipe for compiling and
// running one submission's source in one language. The layer has no
// registry of languages; the embedding application builds a descriptor
// per submission, hands it to Session.Compile, and passes RunProgram and
// RunArgs to Session.Run.
type LanguageDescriptor struct {
	// Name identifies the language for logging only (e.g. "cpp17", "python3").
	Name string
	// SourceFile is the relative path the source is written to before compiling.
	SourceFile string
	// CompileProgram and CompileArgs, if CompileProgram is non-empty, are
	// run inside the box before the first Run. Interpreted languages
	// leave CompileProgram empty.
	CompileProgram string
	CompileArgs    []string
	// RunProgram and RunArgs invoke the compiled artifact or interpreter.
	RunProgram string
	RunArgs    []string
	// CompileLimits bounds the compile step; typically looser than run limits.
	CompileLimits ResourceLimits
}

// Compile runs the descriptor's compile step inside the session's box, if
// one is configured. Interpreted languages with no CompileProgram are a
// no-op that returns a nil report.
func (s *Session) Compile(ctx context.Context, d LanguageDescriptor) (*RunReport, error) {
	if d.CompileProgram == "" {
		return nil, nil
	}
	return s.Run(ctx, d.CompileProgram, d.CompileArgs, d.CompileLimits)
}
