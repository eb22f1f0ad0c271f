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
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arborjudge/isobox/internal/metrics"
)

// writeFakeIsolate stages a script standing in for the external sandbox
// binary, sleeping for delay before exiting with exitCode.
func writeFakeIsolate(t *testing.T, delay time.Duration, exitCode int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-isolate.sh")
	script := "#!/bin/sh\nsleep " + strconv.FormatFloat(delay.Seconds(), 'f', 3, 64) + "\nexit " + itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

func newTestSession(t *testing.T, allocator *BoxAllocator, binary string) *Session {
	t.Helper()
	boxRoot := t.TempDir()
	cfg := NewSandboxConfig()
	sess, err := AcquireSession(context.Background(), allocator, cfg, Options{
		BinaryPath: binary,
		BoxRootFn:  func(int) string { return boxRoot },
	})
	require.NoError(t, err)
	return sess
}

func TestSessionLifecycleHappyPath(t *testing.T) {
	fake := writeFakeIsolate(t, 0, 0)
	allocator := NewBoxAllocator(1)
	sess := newTestSession(t, allocator, fake)

	require.Equal(t, StateNew, sess.State())
	require.NoError(t, sess.Init(context.Background(), ResourceLimits{}))
	require.Equal(t, StateInitialized, sess.State())

	metaPath := filepath.Join(t.TempDir(), "meta")
	require.NoError(t, os.WriteFile(metaPath, []byte("status:\nexitcode:0\ntime:0.01\ntime-wall:0.02\n"), 0o644))
	sess.cfg.MetaPath = metaPath

	report, err := sess.Run(context.Background(), "/bin/echo", []string{"hello"}, ResourceLimits{})
	require.NoError(t, err)
	require.Equal(t, StatusOK, report.Status)

	require.NoError(t, sess.Cleanup(context.Background()))
	require.Equal(t, StateCleanedUp, sess.State())

	// Idempotent: a second cleanup is a no-op success.
	require.NoError(t, sess.Cleanup(context.Background()))
}

func TestSessionInitTwiceFails(t *testing.T) {
	fake := writeFakeIsolate(t, 0, 0)
	allocator := NewBoxAllocator(1)
	sess := newTestSession(t, allocator, fake)

	require.NoError(t, sess.Init(context.Background(), ResourceLimits{}))
	err := sess.Init(context.Background(), ResourceLimits{})
	stateErr, ok := err.(*SessionStateError)
	require.True(t, ok, "expected SessionStateError, got %v", err)
	require.Equal(t, StateNew, stateErr.Want)
	require.Equal(t, StateInitialized, stateErr.Got)
}

func TestSessionRunBeforeInitFails(t *testing.T) {
	fake := writeFakeIsolate(t, 0, 0)
	allocator := NewBoxAllocator(1)
	sess := newTestSession(t, allocator, fake)

	_, err := sess.Run(context.Background(), "/bin/echo", nil, ResourceLimits{})
	require.Error(t, err)
	_, isStateErr := err.(*SessionStateError)
	require.True(t, isStateErr)
}

func TestSessionInitFailureSurfacesExitCode(t *testing.T) {
	fake := writeFakeIsolate(t, 0, 1)
	allocator := NewBoxAllocator(1)
	sess := newTestSession(t, allocator, fake)

	err := sess.Init(context.Background(), ResourceLimits{})
	initErr, ok := err.(*InitError)
	require.True(t, ok, "expected InitError, got %v", err)
	require.Equal(t, 1, initErr.ExitCode)
	require.Equal(t, StateNew, sess.State())
}

func TestSessionCleanupReleasesSlotEvenOnExternalFailure(t *testing.T) {
	fakeOK := writeFakeIsolate(t, 0, 0)
	allocator := NewBoxAllocator(1)
	sess := newTestSession(t, allocator, fakeOK)
	require.NoError(t, sess.Init(context.Background(), ResourceLimits{}))

	// Swap in a failing binary for cleanup only.
	sess.opts.BinaryPath = writeFakeIsolate(t, 0, 2)

	err := sess.Cleanup(context.Background())
	cleanupErr, ok := err.(*CleanupError)
	require.True(t, ok, "expected CleanupError, got %v", err)
	require.Equal(t, 2, cleanupErr.ExitCode)
	require.Equal(t, StateCleanedUp, sess.State())

	// The slot must have been released despite the cleanup error.
	s2, err := allocator.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, sess.BoxID(), s2.ID())
}

func TestSessionConcurrentUseRejected(t *testing.T) {
	fake := writeFakeIsolate(t, 150*time.Millisecond, 0)
	allocator := NewBoxAllocator(1)
	sess := newTestSession(t, allocator, fake)
	require.NoError(t, sess.Init(context.Background(), ResourceLimits{}))

	metaPath := filepath.Join(t.TempDir(), "meta")
	require.NoError(t, os.WriteFile(metaPath, []byte("status:\nexitcode:0\n"), 0o644))
	sess.cfg.MetaPath = metaPath

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = sess.Run(context.Background(), "/bin/true", nil, ResourceLimits{})
	}()

	time.Sleep(30 * time.Millisecond)
	_, err := sess.Run(context.Background(), "/bin/true", nil, ResourceLimits{})
	_, ok := err.(*ConcurrentUseError)
	require.True(t, ok, "expected ConcurrentUseError, got %v", err)

	<-done
}

func TestWithSessionCleansUpOnPanic(t *testing.T) {
	fake := writeFakeIsolate(t, 0, 0)
	allocator := NewBoxAllocator(1)
	boxRoot := t.TempDir()
	cfg := NewSandboxConfig()
	opts := Options{BinaryPath: fake, BoxRootFn: func(int) string { return boxRoot }}

	require.Panics(t, func() {
		_ = WithSession(context.Background(), allocator, cfg, opts, func(s *Session) error {
			require.NoError(t, s.Init(context.Background(), ResourceLimits{}))
			panic("boom while staging input")
		})
	})

	// The slot must be free again after the panic propagated.
	s, err := allocator.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, s.ID())
}

func TestWithSessionCleansUpOnError(t *testing.T) {
	fake := writeFakeIsolate(t, 0, 0)
	allocator := NewBoxAllocator(1)
	boxRoot := t.TempDir()
	cfg := NewSandboxConfig()
	opts := Options{BinaryPath: fake, BoxRootFn: func(int) string { return boxRoot }}

	err := WithSession(context.Background(), allocator, cfg, opts, func(s *Session) error {
		require.NoError(t, s.Init(context.Background(), ResourceLimits{}))
		return &IOError{Op: "write", Path: "x", Err: context.Canceled}
	})
	require.Error(t, err)

	s, acqErr := allocator.Acquire(context.Background())
	require.NoError(t, acqErr)
	require.Equal(t, 0, s.ID())
}

func TestSessionRecordsRunAndInitFailureMetrics(t *testing.T) {
	provider, err := metrics.NewProvider()
	require.NoError(t, err)
	defer provider.Shutdown(context.Background())

	allocator := NewBoxAllocator(2)
	boxRoot := t.TempDir()

	failing := writeFakeIsolate(t, 0, 1)
	failSess, err := AcquireSession(context.Background(), allocator, NewSandboxConfig(), Options{
		BinaryPath: failing,
		BoxRootFn:  func(int) string { return boxRoot },
		Metrics:    provider.Collector(),
	})
	require.NoError(t, err)
	_, ok := failSess.Init(context.Background(), ResourceLimits{}).(*InitError)
	require.True(t, ok)

	ok2 := writeFakeIsolate(t, 0, 0)
	runSess, err := AcquireSession(context.Background(), allocator, NewSandboxConfig(), Options{
		BinaryPath: ok2,
		BoxRootFn:  func(int) string { return boxRoot },
		Metrics:    provider.Collector(),
	})
	require.NoError(t, err)
	require.NoError(t, runSess.Init(context.Background(), ResourceLimits{}))

	metaPath := filepath.Join(t.TempDir(), "meta")
	require.NoError(t, os.WriteFile(metaPath, []byte("status:\nexitcode:0\ntime:0.01\ntime-wall:0.02\n"), 0o644))
	runSess.cfg.MetaPath = metaPath
	_, err = runSess.Run(context.Background(), "/bin/echo", nil, ResourceLimits{})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	provider.Handler().ServeHTTP(rec, req)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "isobox_init_failures_total"), "expected isobox_init_failures_total in:\n%s", body)
	require.True(t, strings.Contains(body, "isobox_runs_total"), "expected isobox_runs_total in:\n%s", body)
}
