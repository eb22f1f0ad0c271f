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

// Package cli provides the root command and shared flags for isobox's
// command-line entry point.
package cli

import "github.com/spf13/cobra"

// Flags holds the global flag values. Subcommands read ConfigPath; no
// subcommand reads Verbose.
type Flags struct {
	Verbose    bool
	ConfigPath string
}

// NewRootCommand builds the isobox root command with its persistent flags.
func NewRootCommand() (*cobra.Command, *Flags) {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:           "isobox",
		Short:         "Drive the isolate sandbox to compile and run untrusted code",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "verbose flag (parsed; no subcommand reads it)")
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to config file (default: ~/.config/isobox/config.yaml)")

	return cmd, flags
}
