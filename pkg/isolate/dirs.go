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

// DirFlag is one of the modifiers isolate accepts on a --dir= rule.
type DirFlag string

const (
	// DirReadWrite makes the bind mount writable; isolate defaults to read-only.
	DirReadWrite DirFlag = "rw"
	// DirNoExec forbids executing binaries from inside the bound directory.
	DirNoExec DirFlag = "noexec"
	// DirOptional silently drops the rule if the inside path does not exist.
	DirOptional DirFlag = "optional"
	// DirMaybe silently drops the rule if the outside path does not exist.
	DirMaybe DirFlag = "maybe"
	// DirDev allows device files to be created/used under the bind.
	DirDev DirFlag = "dev"
	// DirNoRec mounts non-recursively, so nested mounts in the source are hidden.
	DirNoRec DirFlag = "norec"
)

// DirectoryRule describes one directory or tmpfs exposed inside the box.
// Build one with NewBindDir, NewBindSameDir, NewTmpDir, or NewFsDir rather
// than constructing the struct directly; the inside path is always
// required and the outside path's meaning depends on the variant.
type DirectoryRule struct {
	// Inside is the path as seen from within the box.
	Inside string
	// Outside is the host path bound at Inside. Empty for Tmp and Fs rules.
	Outside string
	// Kind selects the underlying isolate rule shape.
	Kind DirKind
	// Flags are the rule's modifiers. The encoder emits them in
	// lexicographic token order, whatever order they were added in.
	Flags []DirFlag
}

// DirKind distinguishes the four shapes a directory rule can take.
type DirKind int

const (
	// DirKindBind binds Outside at Inside.
	DirKindBind DirKind = iota
	// DirKindBindSame binds the host path at the same path inside the box (Inside == Outside).
	DirKindBindSame
	// DirKindTmp mounts a fresh, empty tmpfs at Inside.
	DirKindTmp
	// DirKindFs mounts the named pseudo-filesystem given in Inside (e.g. "proc"), encoded as "name:fs".
	DirKindFs
)

// NewBindDir binds the host path outside at inside.
func NewBindDir(inside, outside string) DirectoryRule {
	return DirectoryRule{Inside: inside, Outside: outside, Kind: DirKindBind}
}

// NewBindSameDir binds path at the identical path inside the box.
func NewBindSameDir(path string) DirectoryRule {
	return DirectoryRule{Inside: path, Kind: DirKindBindSame}
}

// NewTmpDir mounts an empty tmpfs at inside.
func NewTmpDir(inside string) DirectoryRule {
	return DirectoryRule{Inside: inside, Kind: DirKindTmp}
}

// NewFsDir mounts the named pseudo-filesystem inside (e.g. "proc").
func NewFsDir(inside string) DirectoryRule {
	return DirectoryRule{Inside: inside, Kind: DirKindFs}
}

// WithFlags returns a copy of r with the given flags appended.
func (r DirectoryRule) WithFlags(flags ...DirFlag) DirectoryRule {
	r.Flags = append(append([]DirFlag{}, r.Flags...), flags...)
	return r
}

func (r DirectoryRule) validate() error {
	if r.Inside == "" {
		return &ConfigError{Reason: ConfigReasonInvalidPath, Detail: "directory rule missing inside path"}
	}
	if r.Kind == DirKindBind && r.Outside == "" {
		return &ConfigError{Reason: ConfigReasonInvalidPath, Detail: "bind rule for " + r.Inside + " missing outside path"}
	}
	return nil
}
