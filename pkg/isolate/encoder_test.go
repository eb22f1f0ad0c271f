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

import (
	"reflect"
	"testing"
)

func TestEncodeArgvInitIncludesDirRulesNotLimits(t *testing.T) {
	cfg := NewSandboxConfig().
		WithCgroups(true).
		WithDirRule(NewBindDir("/box/work", "/tmp/work").WithFlags(DirReadWrite)).
		WithDirRule(NewTmpDir("/tmp"))
	cfg.BoxID = 3

	limits := ResourceLimits{}.WithCPUTime(1.0)

	argv, err := EncodeArgv(cfg, limits, OpInit, RunTarget{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"--box-id=3",
		"--cg",
		"--init",
		"--dir=/box/work=/tmp/work:rw",
		"--dir=/tmp:tmp",
	}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("argv mismatch\n got: %v\nwant: %v", argv, want)
	}
	for _, tok := range argv {
		if tok == "--time=1.000" {
			t.Fatal("init argv must never include resource limits")
		}
	}
}

func TestEncodeArgvRunIncludesLimitsAndSeparator(t *testing.T) {
	cfg := NewSandboxConfig().
		WithCgroups(true).
		WithMetaPath("/tmp/meta").
		WithEnvRule(NewInheritEnv("PATH")).
		WithEnvRule(NewSetEnv("LANG", "C"))
	cfg.BoxID = 5

	limits := ResourceLimits{}.
		WithCPUTime(1.0).
		WithCgroupMemory(65536).
		WithProcesses(1)

	argv, err := EncodeArgv(cfg, limits, OpRun, RunTarget{Program: "/bin/echo", Args: []string{"hello"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"--box-id=5",
		"--cg",
		"--time=1.000",
		"--cg-mem=65536",
		"--processes=1",
		"--chdir=/box",
		"--env=PATH",
		"--env=LANG=C",
		"--meta=/tmp/meta",
		"--run",
		"--",
		"/bin/echo",
		"hello",
	}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("argv mismatch\n got: %v\nwant: %v", argv, want)
	}
}

func TestEncodeArgvCleanupIsMinimal(t *testing.T) {
	cfg := NewSandboxConfig().WithCgroups(false)
	cfg.BoxID = 1

	argv, err := EncodeArgv(cfg, ResourceLimits{}, OpCleanup, RunTarget{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"--box-id=1", "--cleanup"}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("argv mismatch\n got: %v\nwant: %v", argv, want)
	}
}

func TestEncodeArgvRunRejectsEmptyProgram(t *testing.T) {
	cfg := NewSandboxConfig()
	cfg.BoxID = 1

	_, err := EncodeArgv(cfg, ResourceLimits{}, OpRun, RunTarget{})
	var cfgErr *ConfigError
	if !asConfigError(err, &cfgErr) || cfgErr.Reason != ConfigReasonEmptyArgv {
		t.Fatalf("expected ConfigError{EmptyArgv}, got %v", err)
	}
}

func TestEncodeArgvFlagTokenOrderIsStable(t *testing.T) {
	rule := NewBindDir("/box/in", "/tmp/in").WithFlags(DirReadWrite, DirDev, DirNoExec)
	reordered := NewBindDir("/box/in", "/tmp/in").WithFlags(DirNoExec, DirDev, DirReadWrite)

	if encodeDirRule(rule) != encodeDirRule(reordered) {
		t.Fatalf("encoding must be independent of flag insertion order: %q vs %q",
			encodeDirRule(rule), encodeDirRule(reordered))
	}
	if encodeDirRule(rule) != "/box/in=/tmp/in:dev:noexec:rw" {
		t.Fatalf("unexpected lexicographic order: %q", encodeDirRule(rule))
	}
}

func TestEncodeArgvRoundTripIndependentOfBuilderOrder(t *testing.T) {
	cfg := NewSandboxConfig()
	cfg.BoxID = 2

	a := ResourceLimits{}.WithCPUTime(1).WithWallTime(2).WithProcesses(1)
	b := ResourceLimits{}.WithProcesses(1).WithWallTime(2).WithCPUTime(1)

	argvA, errA := EncodeArgv(cfg, a, OpRun, RunTarget{Program: "/bin/true"})
	argvB, errB := EncodeArgv(cfg, b, OpRun, RunTarget{Program: "/bin/true"})
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v, %v", errA, errB)
	}
	if !reflect.DeepEqual(argvA, argvB) {
		t.Fatalf("argv must not depend on builder call order\n a: %v\n b: %v", argvA, argvB)
	}
}

func TestEncodeArgvShareNetAndVerbose(t *testing.T) {
	cfg := NewSandboxConfig().WithShareNet(true).WithVerbose(true)
	cfg.BoxID = 0

	argv, err := EncodeArgv(cfg, ResourceLimits{}, OpInit, RunTarget{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantContains := []string{"--share-net", "--verbose"}
	for _, w := range wantContains {
		found := false
		for _, tok := range argv {
			if tok == w {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected %q in argv %v", w, argv)
		}
	}
}
