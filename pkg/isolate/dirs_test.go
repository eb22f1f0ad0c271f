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

func TestDirectoryRuleConstructors(t *testing.T) {
	bind := NewBindDir("/box/work", "/tmp/host-work")
	if bind.Kind != DirKindBind || bind.Inside != "/box/work" || bind.Outside != "/tmp/host-work" {
		t.Fatalf("unexpected bind rule: %+v", bind)
	}

	same := NewBindSameDir("/etc/passwd")
	if same.Kind != DirKindBindSame || same.Inside != "/etc/passwd" {
		t.Fatalf("unexpected bind-same rule: %+v", same)
	}

	tmp := NewTmpDir("/tmp")
	if tmp.Kind != DirKindTmp || tmp.Inside != "/tmp" {
		t.Fatalf("unexpected tmp rule: %+v", tmp)
	}

	fs := NewFsDir("proc")
	if fs.Kind != DirKindFs || fs.Inside != "proc" {
		t.Fatalf("unexpected fs rule: %+v", fs)
	}
}

func TestDirectoryRuleWithFlagsDoesNotMutateOriginal(t *testing.T) {
	base := NewBindDir("/box/in", "/tmp/in")
	withFlags := base.WithFlags(DirReadWrite, DirNoExec)

	if len(base.Flags) != 0 {
		t.Fatal("base rule must not be mutated by WithFlags")
	}
	if len(withFlags.Flags) != 2 {
		t.Fatalf("expected 2 flags, got %v", withFlags.Flags)
	}
}

func TestDirectoryRuleValidateRequiresInsidePath(t *testing.T) {
	r := DirectoryRule{Kind: DirKindTmp}
	if err := r.validate(); err == nil {
		t.Fatal("expected error for missing inside path")
	}
}

func TestDirectoryRuleValidateBindRequiresOutsidePath(t *testing.T) {
	r := DirectoryRule{Kind: DirKindBind, Inside: "/box/work"}
	var cfgErr *ConfigError
	err := r.validate()
	if !asConfigError(err, &cfgErr) || cfgErr.Reason != ConfigReasonInvalidPath {
		t.Fatalf("expected ConfigError{InvalidPath}, got %v", err)
	}
}
