// Copyright 2025 Tom Barlow
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

/*
Package cli provides the root command for jobflow's CLI.

This package creates the main Cobra command tree and handles global
concerns like version information, persistent flags, and exit-code
handling. Individual commands are implemented in the internal/commands
subpackages.

# Command Tree

The CLI is organized as:

	jobflow
	├── run           Start the operator against a workflow file
	├── validate      Validate a workflow file without running it
	└── version       Show version

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	rootCmd := cli.NewRootCommand()
	rootCmd.AddCommand(run.NewCommand(), validate.NewCommand(), version.NewCommand())
	if err := rootCmd.Execute(); err != nil {
	    cli.HandleExitError(err)
	}

# Global Flags

All commands inherit these flags:

	--verbose, -v    Enable verbose logging
	--workflow, -f   Path to the workflow definition file

# Error Handling

Exit codes follow spec §6: 0 on normal completion, non-zero on startup
misconfiguration.

	if err := cmd.Execute(); err != nil {
	    cli.HandleExitError(err)
	}
*/
package cli
