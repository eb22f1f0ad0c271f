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

// ResourceLimits are the knobs a caller may set on a single run. Every
// field is optional: a nil pointer means "do not impose this limit at
// the sandbox layer", not zero.
//
// ResourceLimits is a pure value type. Construct one with builder calls
// that each return a new value with a single field populated:
//
//	limits := isolate.ResourceLimits{}.
//		WithCPUTime(1.0).
//		WithWallTime(2.0).
//		WithProcesses(1)
type ResourceLimits struct {
	// CPUTimeSeconds enforces "Time Limit Exceeded".
	CPUTimeSeconds *float64
	// WallTimeSeconds is a safety net against sleep/stall; includes I/O waits.
	WallTimeSeconds *float64
	// ExtraTimeSeconds is a grace window added to CPU time before SIGKILL.
	ExtraTimeSeconds *float64
	// AddressSpaceKB is the per-process virtual-memory cap.
	AddressSpaceKB *uint32
	// CgroupMemoryKB is the aggregate memory cap across all processes in
	// the box. Only meaningful when the owning session has cgroups enabled.
	CgroupMemoryKB *uint32
	// StackKB is the per-process stack cap; 0 means "inherit".
	StackKB *uint32
	// FileSizeKB is the max bytes writable to any single output file.
	FileSizeKB *uint32
	// OpenFiles is the max simultaneous open file descriptors.
	OpenFiles *uint32
	// Processes is the max concurrent processes/threads. Absence means
	// unlimited; 1 means strictly one.
	Processes *uint32
	// CoreDumpKB is the core-dump size cap; default behavior is to
	// suppress core dumps entirely.
	CoreDumpKB *uint32
}

func f64ptr(v float64) *float64 { return &v }
func u32ptr(v uint32) *uint32   { return &v }

// WithCPUTime returns a copy of l with CPUTimeSeconds set.
func (l ResourceLimits) WithCPUTime(seconds float64) ResourceLimits {
	l.CPUTimeSeconds = f64ptr(seconds)
	return l
}

// WithWallTime returns a copy of l with WallTimeSeconds set.
func (l ResourceLimits) WithWallTime(seconds float64) ResourceLimits {
	l.WallTimeSeconds = f64ptr(seconds)
	return l
}

// WithExtraTime returns a copy of l with ExtraTimeSeconds set.
func (l ResourceLimits) WithExtraTime(seconds float64) ResourceLimits {
	l.ExtraTimeSeconds = f64ptr(seconds)
	return l
}

// WithAddressSpace returns a copy of l with AddressSpaceKB set.
func (l ResourceLimits) WithAddressSpace(kb uint32) ResourceLimits {
	l.AddressSpaceKB = u32ptr(kb)
	return l
}

// WithCgroupMemory returns a copy of l with CgroupMemoryKB set.
func (l ResourceLimits) WithCgroupMemory(kb uint32) ResourceLimits {
	l.CgroupMemoryKB = u32ptr(kb)
	return l
}

// WithStack returns a copy of l with StackKB set.
func (l ResourceLimits) WithStack(kb uint32) ResourceLimits {
	l.StackKB = u32ptr(kb)
	return l
}

// WithFileSize returns a copy of l with FileSizeKB set.
func (l ResourceLimits) WithFileSize(kb uint32) ResourceLimits {
	l.FileSizeKB = u32ptr(kb)
	return l
}

// WithOpenFiles returns a copy of l with OpenFiles set.
func (l ResourceLimits) WithOpenFiles(n uint32) ResourceLimits {
	l.OpenFiles = u32ptr(n)
	return l
}

// WithProcesses returns a copy of l with Processes set.
func (l ResourceLimits) WithProcesses(n uint32) ResourceLimits {
	l.Processes = u32ptr(n)
	return l
}

// WithCoreDump returns a copy of l with CoreDumpKB set.
func (l ResourceLimits) WithCoreDump(kb uint32) ResourceLimits {
	l.CoreDumpKB = u32ptr(kb)
	return l
}

// validate checks the cross-field invariants on ResourceLimits: limits
// may not be negative, and a cgroup memory cap requires the owning
// session to have cgroups enabled.
func (l ResourceLimits) validate(useCgroups bool) error {
	if l.CPUTimeSeconds != nil && *l.CPUTimeSeconds < 0 {
		return &ConfigError{Reason: ConfigReasonNegativeLimit, Detail: "cpu_time_s"}
	}
	if l.WallTimeSeconds != nil && *l.WallTimeSeconds < 0 {
		return &ConfigError{Reason: ConfigReasonNegativeLimit, Detail: "wall_time_s"}
	}
	if l.ExtraTimeSeconds != nil && *l.ExtraTimeSeconds < 0 {
		return &ConfigError{Reason: ConfigReasonNegativeLimit, Detail: "extra_time_s"}
	}
	if l.CgroupMemoryKB != nil && !useCgroups {
		return &ConfigError{Reason: ConfigReasonCgroupsRequired, Detail: "cgroup_memory_kb"}
	}
	return nil
}
