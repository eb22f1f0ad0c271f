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

import "strings"

// Status is the judged outcome of one run, derived from the raw metadata
// per the decision table in deriveStatus. It is always part of a
// successful RunReport, never an error.
type Status string

const (
	StatusOK                    Status = "OK"
	StatusRuntimeError          Status = "RuntimeError"
	StatusTimeLimitExceeded     Status = "TimeLimitExceeded"
	StatusWallTimeLimitExceeded Status = "WallTimeLimitExceeded"
	StatusMemoryLimitExceeded   Status = "MemoryLimitExceeded"
	StatusOutputLimitExceeded   Status = "OutputLimitExceeded"
	StatusInternalError         Status = "InternalError"
	StatusKilledBySandbox       Status = "KilledBySandbox"
)

// RunReport is the parsed, judged outcome of a single run operation.
type RunReport struct {
	ExitCode     *int32
	ExitSignal   *int32
	Status       Status
	CPUTimeS     float64
	WallTimeS    float64
	MemoryPeakKB uint32
	CgMemoryKB   *uint32
	Killed       bool
	Message      string
	Stdout       []byte
	Stderr       []byte
}

// deriveStatus maps a raw metadata record onto a judged Status.
// Precedence, highest first: XX, then cgroup OOM (overriding SG/RE),
// then TO (split into wall vs CPU by inspecting the message field), then
// the remaining raw status codes, defaulting to OK.
//
// The source sandbox folds CPU and wall timeouts into one TO code and
// discriminates, if at all, through the free-form message field. This
// implementation chooses to split TO into WallTimeLimitExceeded when the
// message mentions wall time, and TimeLimitExceeded otherwise.
func deriveStatus(rec *MetadataRecord, cgMemoryLimitKB *uint32) Status {
	if rec.Status == RawStatusXX {
		return StatusInternalError
	}

	oom := rec.CgOOMKilled
	if !oom && cgMemoryLimitKB != nil && rec.CgMem != nil && *rec.CgMem >= *cgMemoryLimitKB {
		oom = true
	}
	if oom {
		return StatusMemoryLimitExceeded
	}

	switch rec.Status {
	case RawStatusTO:
		if mentionsWallTime(rec.Message) {
			return StatusWallTimeLimitExceeded
		}
		return StatusTimeLimitExceeded
	case RawStatusSG:
		return StatusRuntimeError
	case RawStatusRE:
		return StatusRuntimeError
	case RawStatusOL:
		return StatusOutputLimitExceeded
	case RawStatusFO:
		return StatusKilledBySandbox
	default:
		return StatusOK
	}
}

func mentionsWallTime(message string) bool {
	return strings.Contains(strings.ToLower(message), "wall time")
}

// BuildRunReport folds a parsed MetadataRecord with captured stdout/stderr
// into the final judged RunReport. cgMemoryLimitKB is the limit the run
// was configured with, if any, used only for the OOM tie-break.
func BuildRunReport(rec *MetadataRecord, cgMemoryLimitKB *uint32, stdout, stderr []byte) *RunReport {
	report := &RunReport{
		ExitCode:   rec.ExitCode,
		ExitSignal: rec.ExitSig,
		Status:     deriveStatus(rec, cgMemoryLimitKB),
		Killed:     rec.Killed,
		Message:    rec.Message,
		Stdout:     stdout,
		Stderr:     stderr,
		CgMemoryKB: rec.CgMem,
	}
	if rec.Time != nil {
		report.CPUTimeS = *rec.Time
	}
	if rec.TimeWall != nil {
		report.WallTimeS = *rec.TimeWall
	}
	if rec.CgMem != nil {
		report.MemoryPeakKB = *rec.CgMem
	} else if rec.MaxRSS != nil {
		report.MemoryPeakKB = *rec.MaxRSS
	}
	return report
}
