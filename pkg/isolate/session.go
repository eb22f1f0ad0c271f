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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	isolog "github.com/arborjudge/isobox/internal/log"
	"github.com/arborjudge/isobox/internal/metrics"
)

// Options configures how a Session drives the external sandbox binary.
type Options struct {
	// BinaryPath is the path to the isolate executable. Defaults to "isolate".
	BinaryPath string
	// BoxRootFn maps a box id to its host-side box directory. Defaults to
	// the conventional /var/local/lib/isolate/<id>/box layout.
	BoxRootFn func(boxID int) string
	// Logger receives structured events for init/run/cleanup. Defaults to
	// a no-op discard logger.
	Logger *slog.Logger
	// ProcessWait bounds how long Cleanup and the cancellation path wait
	// for the sandbox binary to exit after a termination signal.
	ProcessWait time.Duration
	// Metrics, if set, receives run outcomes and init/cleanup failure
	// counts for this session.
	Metrics *metrics.Collector
}

func (o Options) withDefaults() Options {
	if o.BinaryPath == "" {
		o.BinaryPath = "isolate"
	}
	if o.BoxRootFn == nil {
		o.BoxRootFn = defaultBoxRoot
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	if o.ProcessWait == 0 {
		o.ProcessWait = 5 * time.Second
	}
	return o
}

func defaultBoxRoot(boxID int) string {
	return fmt.Sprintf("/var/local/lib/isolate/%d/box", boxID)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Session is the caller-facing object owning one slot. It drives
// init/run/cleanup against the external sandbox binary through the
// command encoder (C2) and metadata parser (C3), and its state machine
// is New -> Initialized -> (Ran)* -> CleanedUp.
type Session struct {
	id      string
	slot    *Slot
	cfg     SandboxConfig
	opts    Options
	logger  *slog.Logger
	boxRoot string

	mu         sync.Mutex
	inUse      bool
	state      SessionState
	lastReport *RunReport
}

// AcquireSession asks allocator for a slot and returns a Session bound to
// it, with cfg.BoxID filled in from the acquired slot.
func AcquireSession(ctx context.Context, allocator *BoxAllocator, cfg SandboxConfig, opts Options) (*Session, error) {
	slot, err := allocator.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	cfg.BoxID = slot.ID()
	return NewSession(slot, cfg, opts), nil
}

// NewSession constructs a Session bound to an already-acquired slot.
func NewSession(slot *Slot, cfg SandboxConfig, opts Options) *Session {
	opts = opts.withDefaults()
	cfg.BoxID = slot.ID()
	id := uuid.NewString()
	return &Session{
		id:      id,
		slot:    slot,
		cfg:     cfg,
		opts:    opts,
		logger:  isolog.WithBox(isolog.WithSession(opts.Logger, id), slot.ID()),
		boxRoot: opts.BoxRootFn(slot.ID()),
		state:   StateNew,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BoxID returns the numeric slot this session owns.
func (s *Session) BoxID() int { return s.slot.ID() }

func (s *Session) lock(op string) (func(), error) {
	s.mu.Lock()
	if s.inUse {
		s.mu.Unlock()
		return nil, &ConcurrentUseError{BoxID: s.slot.ID()}
	}
	s.inUse = true
	_ = op
	return func() {
		s.mu.Lock()
		s.inUse = false
		s.mu.Unlock()
	}, nil
}

// Init brings the box into existence on the host and transitions the
// session to Initialized.
func (s *Session) Init(ctx context.Context, limits ResourceLimits) error {
	unlock, err := s.lock("init")
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateNew {
		return &SessionStateError{Want: StateNew, Got: state, Op: "init"}
	}

	argv, err := EncodeArgv(s.cfg, limits, OpInit, RunTarget{})
	if err != nil {
		return err
	}

	isolog.Trace(s.logger, "init argv", slog.Any("argv", argv))

	_, stderr, exitCode, err := s.exec(ctx, argv)
	if err != nil {
		if s.opts.Metrics != nil {
			s.opts.Metrics.RecordInitFailure(ctx)
		}
		return &SpawnError{Op: "init", Err: err}
	}
	if exitCode != 0 {
		if s.opts.Metrics != nil {
			s.opts.Metrics.RecordInitFailure(ctx)
		}
		return &InitError{BoxID: s.slot.ID(), ExitCode: exitCode, Stderr: stderr}
	}

	s.mu.Lock()
	s.state = StateInitialized
	s.mu.Unlock()
	s.logger.Info("box initialized")
	return nil
}

// WriteInput writes data to relativePath inside the box directory.
func (s *Session) WriteInput(relativePath string, data []byte) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateInitialized {
		return &SessionStateError{Want: StateInitialized, Got: state, Op: "write_input"}
	}

	full := filepath.Join(s.boxRoot, relativePath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: full, Err: err}
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return &IOError{Op: "write", Path: full, Err: err}
	}
	return nil
}

// ReadOutput reads relativePath from inside the box directory.
func (s *Session) ReadOutput(relativePath string) ([]byte, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateInitialized {
		return nil, &SessionStateError{Want: StateInitialized, Got: state, Op: "read_output"}
	}

	full := filepath.Join(s.boxRoot, relativePath)
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, &IOError{Op: "read", Path: full, Err: err}
	}
	return data, nil
}

// Run executes program with args inside the box under limits, and
// returns the judged RunReport. A RunReport with a non-OK Status (time
// limit exceeded, memory limit exceeded, etc.) is still a successful
// call; Run returns an error only when the outcome itself could not be
// obtained.
func (s *Session) Run(ctx context.Context, program string, args []string, limits ResourceLimits) (*RunReport, error) {
	unlock, err := s.lock("run")
	if err != nil {
		return nil, err
	}
	defer unlock()

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateInitialized {
		return nil, &SessionStateError{Want: StateInitialized, Got: state, Op: "run"}
	}

	metaPath := s.cfg.MetaPath
	if metaPath == "" {
		metaPath = filepath.Join(os.TempDir(), fmt.Sprintf("isobox-meta-%d-%s", s.slot.ID(), uuid.NewString()))
	}
	runCfg := s.cfg
	runCfg.MetaPath = metaPath
	defer os.Remove(metaPath)

	argv, err := EncodeArgv(runCfg, limits, OpRun, RunTarget{Program: program, Args: args})
	if err != nil {
		return nil, err
	}

	isolog.Trace(s.logger, "run argv", slog.Any("argv", argv))

	started := time.Now()
	_, _, _, execErr := s.exec(ctx, argv)
	if execErr != nil {
		if ctx.Err() != nil {
			s.logger.Warn("run canceled", slog.String("error", execErr.Error()))
			return nil, &CanceledError{Op: "run", Err: ctx.Err()}
		}
		return nil, &SpawnError{Op: "run", Err: execErr}
	}

	rec, err := ParseMetadataFile(metaPath)
	if err != nil {
		return nil, err
	}

	var stdout, stderr []byte
	if runCfg.StdoutPath != "" {
		path := filepath.Join(s.boxRoot, runCfg.StdoutPath)
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, &IOError{Op: "read", Path: path, Err: rerr}
		}
		stdout = data
	}
	if runCfg.StderrPath != "" {
		path := filepath.Join(s.boxRoot, runCfg.StderrPath)
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, &IOError{Op: "read", Path: path, Err: rerr}
		}
		stderr = data
	}

	report := BuildRunReport(rec, limits.CgroupMemoryKB, stdout, stderr)

	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()

	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordRun(ctx, string(report.Status), time.Since(started).Seconds())
	}

	s.logger.Info("run complete", slog.String(isolog.StatusKey, string(report.Status)))
	return report, nil
}

// LastReport returns the most recent RunReport produced by Run, if any.
func (s *Session) LastReport() *RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

// Cleanup tears down the box and releases the slot. Idempotent: calling
// it on an already-CleanedUp session is a no-op that returns nil.
// Best-effort on the external side: if `isolate --cleanup` fails the
// slot is still released, and the error is returned to the caller.
//
// Cleanup runs against a context derived from ctx with its cancellation
// stripped, not ctx itself: callers most often reach Cleanup through
// WithSession after ctx has already expired (a Run timeout or an outer
// cancellation), and isolate --cleanup still needs to run then. A short
// timeout bounds how long Cleanup can block on a wedged sandbox binary.
func (s *Session) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateCleanedUp {
		s.mu.Unlock()
		return nil
	}
	wasInitialized := s.state != StateNew
	s.state = StateCleanedUp
	s.mu.Unlock()

	defer s.slot.Release()

	if !wasInitialized {
		return nil
	}

	argv, err := EncodeArgv(s.cfg, ResourceLimits{}, OpCleanup, RunTarget{})
	if err != nil {
		return err
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ProcessWait)
	defer cancel()

	_, stderr, exitCode, execErr := s.exec(cleanupCtx, argv)
	if execErr != nil {
		if s.opts.Metrics != nil {
			s.opts.Metrics.RecordCleanupFailure(cleanupCtx)
		}
		return &SpawnError{Op: "cleanup", Err: execErr}
	}
	if exitCode != 0 {
		if s.opts.Metrics != nil {
			s.opts.Metrics.RecordCleanupFailure(cleanupCtx)
		}
		return &CleanupError{BoxID: s.slot.ID(), ExitCode: exitCode, Stderr: stderr}
	}
	s.logger.Info("box cleaned up")
	return nil
}

// exec runs the sandbox binary with argv, in its own process group so
// that canceling ctx can reach every process it spawned. It returns
// captured stdout, stderr, and the process exit code.
func (s *Session) exec(ctx context.Context, argv []string) (stdout, stderr string, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, s.opts.BinaryPath, argv...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = s.opts.ProcessWait

	runErr := cmd.Run()
	exitCode = cmd.ProcessState.ExitCode()
	if runErr != nil {
		if exitCode >= 0 {
			// Process ran and exited non-zero; that's a reportable
			// exit code, not a spawn failure.
			return outBuf.String(), errBuf.String(), exitCode, nil
		}
		return outBuf.String(), errBuf.String(), exitCode, runErr
	}
	return outBuf.String(), errBuf.String(), exitCode, nil
}

// WithSession acquires a session from allocator, runs fn with it, and
// guarantees Cleanup has been attempted on every exit path — success,
// error, or panic. A panic is recovered just long enough to clean up,
// then re-raised.
func WithSession(ctx context.Context, allocator *BoxAllocator, cfg SandboxConfig, opts Options, fn func(*Session) error) (err error) {
	sess, err := AcquireSession(ctx, allocator, cfg, opts)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = sess.Cleanup(ctx)
			panic(r)
		}
	}()
	defer func() {
		if cerr := sess.Cleanup(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(sess)
}
