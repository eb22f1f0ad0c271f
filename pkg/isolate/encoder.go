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
	"fmt"
	"sort"
	"strings"
)

// OpKind selects which of isolate's three operations an argv is built for.
type OpKind int

const (
	// OpInit builds the argv for `isolate --init`.
	OpInit OpKind = iota
	// OpRun builds the argv for `isolate --run`.
	OpRun
	// OpCleanup builds the argv for `isolate --cleanup`.
	OpCleanup
)

// RunTarget is the program and arguments a Run operation executes inside
// the box, via the `--` separator.
type RunTarget struct {
	Program string
	Args    []string
}

// dirFlagToken maps each DirFlag to its isolate token. sortedFlagTokens
// emits the tokens in stable lexicographic order, as required by the
// encoder round-trip property: dev, maybe, noexec, norec, opt, rw.
var dirFlagToken = map[DirFlag]string{
	DirReadWrite: "rw",
	DirNoExec:    "noexec",
	DirOptional:  "opt",
	DirMaybe:     "maybe",
	DirDev:       "dev",
	DirNoRec:     "norec",
}

func sortedFlagTokens(flags []DirFlag) []string {
	tokens := make([]string, 0, len(flags))
	seen := make(map[string]bool, len(flags))
	for _, f := range flags {
		tok, ok := dirFlagToken[f]
		if !ok {
			continue
		}
		if seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

func encodeDirRule(r DirectoryRule) string {
	tokens := sortedFlagTokens(r.Flags)
	suffix := ""
	if len(tokens) > 0 {
		suffix = ":" + strings.Join(tokens, ":")
	}
	switch r.Kind {
	case DirKindBind:
		return fmt.Sprintf("%s=%s%s", r.Inside, r.Outside, suffix)
	case DirKindBindSame:
		return fmt.Sprintf("%s%s", r.Inside, suffix)
	case DirKindTmp:
		return fmt.Sprintf("%s:tmp", r.Inside)
	case DirKindFs:
		return fmt.Sprintf("%s:fs", r.Inside)
	default:
		return r.Inside
	}
}

func encodeEnvRule(r EnvRule) string {
	switch r.Kind {
	case EnvKindSet:
		return fmt.Sprintf("%s=%s", r.Name, r.Value)
	case EnvKindFullEnv:
		return ""
	default:
		return r.Name
	}
}

// EncodeArgv builds the argument vector for one isolate invocation. limits
// is validated for every op but only encoded for OpRun; target is only
// consulted for OpRun. An empty target.Program on OpRun is rejected with
// ConfigError.
func EncodeArgv(cfg SandboxConfig, limits ResourceLimits, op OpKind, target RunTarget) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := limits.validate(cfg.UseCgroups); err != nil {
		return nil, err
	}
	if op == OpRun && target.Program == "" {
		return nil, &ConfigError{Reason: ConfigReasonEmptyArgv, Detail: "run requires a program"}
	}

	argv := []string{fmt.Sprintf("--box-id=%d", cfg.BoxID)}
	if cfg.UseCgroups {
		argv = append(argv, "--cg")
	}

	switch op {
	case OpInit:
		argv = append(argv, "--init")
		if cfg.NoDefaultDirs {
			argv = append(argv, "--no-default-dirs")
		}
		if cfg.ShareNet {
			argv = append(argv, "--share-net")
		}
		for _, rule := range cfg.DirRules {
			argv = append(argv, "--dir="+encodeDirRule(rule))
		}
		if cfg.Verbose {
			argv = append(argv, "--verbose")
		}
		return argv, nil

	case OpCleanup:
		argv = append(argv, "--cleanup")
		return argv, nil

	case OpRun:
		argv = append(argv, encodeLimits(limits)...)
		if cfg.StdinPath != "" {
			argv = append(argv, "--stdin="+cfg.StdinPath)
		}
		if cfg.StdoutPath != "" {
			argv = append(argv, "--stdout="+cfg.StdoutPath)
		}
		if cfg.StderrPath != "" {
			argv = append(argv, "--stderr="+cfg.StderrPath)
		}
		if cfg.Chdir != "" {
			argv = append(argv, "--chdir="+cfg.Chdir)
		}
		for _, rule := range cfg.EnvRules {
			if rule.Kind == EnvKindFullEnv {
				argv = append(argv, "--full-env")
				continue
			}
			argv = append(argv, "--env="+encodeEnvRule(rule))
		}
		if cfg.MetaPath != "" {
			argv = append(argv, "--meta="+cfg.MetaPath)
		}
		if cfg.Verbose {
			argv = append(argv, "--verbose")
		}
		argv = append(argv, "--run", "--")
		argv = append(argv, target.Program)
		argv = append(argv, target.Args...)
		return argv, nil

	default:
		return nil, &ConfigError{Reason: ConfigReasonEmptyArgv, Detail: "unknown operation"}
	}
}

// encodeLimits turns ResourceLimits into isolate flags, seconds as
// floating point with three decimals and sizes as decimal kilobytes.
func encodeLimits(l ResourceLimits) []string {
	var out []string
	if l.CPUTimeSeconds != nil {
		out = append(out, fmt.Sprintf("--time=%.3f", *l.CPUTimeSeconds))
	}
	if l.WallTimeSeconds != nil {
		out = append(out, fmt.Sprintf("--wall-time=%.3f", *l.WallTimeSeconds))
	}
	if l.ExtraTimeSeconds != nil {
		out = append(out, fmt.Sprintf("--extra-time=%.3f", *l.ExtraTimeSeconds))
	}
	if l.AddressSpaceKB != nil {
		out = append(out, fmt.Sprintf("--mem=%d", *l.AddressSpaceKB))
	}
	if l.CgroupMemoryKB != nil {
		out = append(out, fmt.Sprintf("--cg-mem=%d", *l.CgroupMemoryKB))
	}
	if l.StackKB != nil {
		out = append(out, fmt.Sprintf("--stack=%d", *l.StackKB))
	}
	if l.FileSizeKB != nil {
		out = append(out, fmt.Sprintf("--fsize=%d", *l.FileSizeKB))
	}
	if l.OpenFiles != nil {
		out = append(out, fmt.Sprintf("--open-files=%d", *l.OpenFiles))
	}
	if l.Processes != nil {
		out = append(out, fmt.Sprintf("--processes=%d", *l.Processes))
	}
	if l.CoreDumpKB != nil {
		out = append(out, fmt.Sprintf("--core=%d", *l.CoreDumpKB))
	}
	return out
}
