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

package main

import (
	"fmt"
	"os"

	"github.com/arborjudge/isobox/internal/cli"
	"github.com/arborjudge/isobox/internal/commands/run"
	"github.com/arborjudge/isobox/internal/commands/serve"
)

func main() {
	rootCmd, flags := cli.NewRootCommand()
	rootCmd.AddCommand(run.NewCommand(&flags.ConfigPath))
	rootCmd.AddCommand(serve.NewCommand(&flags.ConfigPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
