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

// SandboxConfig is the full description of one box's behavior, combining
// resource limits, filesystem rules, and process-level options. It is a
// pure value type; a Session is handed one at construction and never
// mutates it.
type SandboxConfig struct {
	// BoxID is the numeric slot this config targets. Sessions normally
	// leave this zero and let the allocator fill it in.
	BoxID int

	// Limits is checked by Validate (and so by EncodeArgv) but is never
	// encoded; the caps applied to a run are the ResourceLimits passed to
	// EncodeArgv or Session.Run.
	Limits ResourceLimits

	// UseCgroups selects the cgroup-backed memory/process accounting
	// path. Required for CgroupMemoryKB to take effect.
	UseCgroups bool

	// ShareNet lets the box see the host's network namespace. isolate's
	// default is an isolated loopback-only namespace.
	ShareNet bool

	// NoDefaultDirs disables isolate's implicit /box, /tmp, /proc rules,
	// leaving only the rules in DirRules.
	NoDefaultDirs bool

	// StdinPath, if set, redirects the run's stdin from this path inside
	// the box.
	StdinPath string
	// StdoutPath, if set, redirects the run's stdout to this path inside
	// the box; Run reads it back relative to the box directory.
	StdoutPath string
	// StderrPath, if set, redirects the run's stderr to this path inside
	// the box; Run reads it back relative to the box directory. Empty
	// means stderr is not redirected and RunReport.Stderr stays empty.
	StderrPath string

	// Chdir is the working directory inside the box for the run,
	// relative to the box root. Defaults to "/box".
	Chdir string

	// DirRules are applied in order.
	DirRules []DirectoryRule
	// EnvRules are applied in order; later entries override earlier ones
	// with the same Name.
	EnvRules []EnvRule

	// MetaPath is the host path isolate writes run metadata to. Sessions
	// normally leave this empty and let Run pick a fresh path under
	// os.TempDir(), removed when Run returns.
	MetaPath string

	// Verbose requests isolate's own diagnostic output on stderr, independent
	// of the run's own Stderr stream.
	Verbose bool
}

// NewSandboxConfig returns a SandboxConfig with the package defaults:
// cgroup-backed accounting enabled, isolated network, default
// directories, /box as the working directory.
func NewSandboxConfig() SandboxConfig {
	return SandboxConfig{Chdir: "/box", UseCgroups: true}
}

// WithLimits returns a copy of c with Limits replaced.
func (c SandboxConfig) WithLimits(l ResourceLimits) SandboxConfig {
	c.Limits = l
	return c
}

// WithCgroups returns a copy of c with cgroup accounting enabled or disabled.
func (c SandboxConfig) WithCgroups(enabled bool) SandboxConfig {
	c.UseCgroups = enabled
	return c
}

// WithShareNet returns a copy of c with the host network namespace shared or isolated.
func (c SandboxConfig) WithShareNet(shared bool) SandboxConfig {
	c.ShareNet = shared
	return c
}

// WithNoDefaultDirs returns a copy of c with isolate's implicit directory rules disabled.
func (c SandboxConfig) WithNoDefaultDirs(disabled bool) SandboxConfig {
	c.NoDefaultDirs = disabled
	return c
}

// WithStdio returns a copy of c with stdin/stdout/stderr redirected to the given in-box paths.
// An empty string leaves the corresponding stream unset.
func (c SandboxConfig) WithStdio(stdin, stdout, stderr string) SandboxConfig {
	c.StdinPath = stdin
	c.StdoutPath = stdout
	c.StderrPath = stderr
	return c
}

// WithChdir returns a copy of c with the in-box working directory set.
func (c SandboxConfig) WithChdir(path string) SandboxConfig {
	c.Chdir = path
	return c
}

// WithDirRule returns a copy of c with rule appended to DirRules.
func (c SandboxConfig) WithDirRule(rule DirectoryRule) SandboxConfig {
	c.DirRules = append(append([]DirectoryRule{}, c.DirRules...), rule)
	return c
}

// WithEnvRule returns a copy of c with rule appended to EnvRules.
func (c SandboxConfig) WithEnvRule(rule EnvRule) SandboxConfig {
	c.EnvRules = append(append([]EnvRule{}, c.EnvRules...), rule)
	return c
}

// WithMetaPath returns a copy of c with the metadata file path set explicitly.
func (c SandboxConfig) WithMetaPath(path string) SandboxConfig {
	c.MetaPath = path
	return c
}

// WithVerbose returns a copy of c with isolate's own diagnostic output enabled or disabled.
func (c SandboxConfig) WithVerbose(v bool) SandboxConfig {
	c.Verbose = v
	return c
}

// Validate checks that the config is internally consistent: limits must
// be valid, directory rules must carry a usable path, and cgroup-only
// limits require UseCgroups.
func (c SandboxConfig) Validate() error {
	if err := c.Limits.validate(c.UseCgroups); err != nil {
		return err
	}
	for _, rule := range c.DirRules {
		if err := rule.validate(); err != nil {
			return err
		}
	}
	return nil
}
