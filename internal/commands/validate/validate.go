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

// Package validate implements the jobflow validate command: loading
// and compiling a workflow file without running the operator.
package validate

import (
	"github.com/spf13/cobra"

	"github.com/nodeflow/jobflow/internal/cli"
	"github.com/nodeflow/jobflow/internal/config"
)

// NewCommand creates the validate command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a workflow file",
		Long: `validate loads and compiles the workflow file named by --workflow,
reporting the same misconfiguration errors 'jobflow run' would refuse
to start on: unknown scheduler, duplicate step names, an oversized
first step, or an invalid rule.`,
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := cli.GetWorkflowPath()
	cfg, err := config.Load(path)
	if err != nil {
		return cli.NewConfigError("workflow validation failed", err)
	}

	cmd.Printf("%s: valid (%d steps, scheduler=%s, max_size=%d, completions_needed=%d)\n",
		path, len(cfg.Steps), cfg.Scheduler, cfg.MaxSize, cfg.CompletionsNeeded)
	return nil
}
