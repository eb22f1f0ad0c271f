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

// Package run implements `isobox run`: acquire a box, init it, run one
// program inside it under resource limits, print the judged report, and
// clean up.
package run

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/arborjudge/isobox/internal/config"
	isolog "github.com/arborjudge/isobox/internal/log"
	"github.com/arborjudge/isobox/internal/metrics"
	"github.com/arborjudge/isobox/pkg/isolate"
)

type options struct {
	configPath string
	cpuTime    float64
	wallTime   float64
	memoryKB   uint32
	processes  uint32
	useCgroups bool
	metaPath   string
	jsonOutput bool
}

// NewCommand builds the `run` subcommand.
func NewCommand(configPathFlag *string) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "run -- <program> [args...]",
		Short: "Compile-free run of one program inside a sandbox box",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath = *configPathFlag
			return runOnce(cmd.Context(), opts, args[0], args[1:])
		},
	}

	cmd.Flags().Float64Var(&opts.cpuTime, "cpu-time", 1.0, "CPU time limit in seconds")
	cmd.Flags().Float64Var(&opts.wallTime, "wall-time", 5.0, "wall time limit in seconds")
	cmd.Flags().Uint32Var(&opts.memoryKB, "memory-kb", 262144, "cgroup memory limit in KB")
	cmd.Flags().Uint32Var(&opts.processes, "processes", 1, "max concurrent processes")
	cmd.Flags().BoolVar(&opts.useCgroups, "cgroups", true, "enable cgroup-backed memory accounting")
	cmd.Flags().StringVar(&opts.metaPath, "meta-path", "", "host path for the sandbox metadata file (default: a temp file)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the run report as JSON")

	return cmd
}

func runOnce(ctx context.Context, opts *options, program string, args []string) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := isolog.New(&isolog.Config{Level: cfg.Log.Level, Format: isolog.Format(cfg.Log.Format), Output: os.Stderr})

	allocator := isolate.NewBoxAllocator(cfg.Isolate.BoxCount)
	sandboxCfg := isolate.NewSandboxConfig().WithCgroups(opts.useCgroups)
	if opts.metaPath != "" {
		sandboxCfg = sandboxCfg.WithMetaPath(opts.metaPath)
	}

	limits := isolate.ResourceLimits{}.
		WithCPUTime(opts.cpuTime).
		WithWallTime(opts.wallTime).
		WithProcesses(opts.processes)
	if opts.useCgroups {
		limits = limits.WithCgroupMemory(opts.memoryKB)
	}

	sessOpts := isolate.Options{
		BinaryPath: cfg.Isolate.BinaryPath,
		Logger:     logger,
		BoxRootFn: func(boxID int) string {
			return fmt.Sprintf("%s/%d/box", cfg.Isolate.BoxRoot, boxID)
		},
	}

	if cfg.Metrics.Enabled {
		provider, err := metrics.NewProvider()
		if err != nil {
			return fmt.Errorf("starting metrics provider: %w", err)
		}
		defer provider.Shutdown(context.Background())

		allocator.SetMetrics(provider.Collector())
		sessOpts.Metrics = provider.Collector()
	}

	var report *isolate.RunReport
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(opts.wallTime*1.5+2)*time.Second)
	defer cancel()

	err = isolate.WithSession(runCtx, allocator, sandboxCfg, sessOpts, func(s *isolate.Session) error {
		if err := s.Init(runCtx, limits); err != nil {
			return err
		}
		r, err := s.Run(runCtx, program, args, limits)
		if err != nil {
			return err
		}
		report = r
		return nil
	})
	if err != nil {
		return err
	}

	return printReport(opts, report)
}

func printReport(opts *options, report *isolate.RunReport) error {
	if opts.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("status:     %s\n", report.Status)
	fmt.Printf("cpu_time:   %.3fs\n", report.CPUTimeS)
	fmt.Printf("wall_time:  %.3fs\n", report.WallTimeS)
	fmt.Printf("memory:     %d KB\n", report.MemoryPeakKB)
	fmt.Printf("killed:     %v\n", report.Killed)
	if report.Message != "" {
		fmt.Printf("message:    %s\n", report.Message)
	}
	fmt.Printf("--- stdout ---\n%s\n", report.Stdout)
	fmt.Printf("--- stderr ---\n%s\n", report.Stderr)
	return nil
}
