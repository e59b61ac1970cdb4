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

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes per spec §6: 0 on normal completion, non-zero on startup
// misconfiguration (unknown scheduler, missing image for a step,
// invalid rule).
const (
	ExitSuccess       = 0
	ExitRunFailed     = 1
	ExitInvalidConfig = 2
)

// ExitError is an error that carries an exit code for HandleExitError.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewConfigError wraps a startup misconfiguration as an ExitError with
// the invalid-config exit code.
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidConfig, Message: msg, Cause: cause}
}

// NewRunError wraps a run-time failure as an ExitError with the
// run-failed exit code.
func NewRunError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitRunFailed, Message: msg, Cause: cause}
}

// Global flag values, set by the root command and read by subcommands.
var (
	verboseFlag  bool
	workflowFlag string

	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// SetVersion records build-time version metadata, injected from main
// via ldflags.
func SetVersion(v, c, b string) {
	version, commit, buildDate = v, c, b
}

// GetVersion returns the build-time version metadata set by SetVersion.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// GetVerbose returns the verbose flag value.
func GetVerbose() bool {
	return verboseFlag
}

// GetWorkflowPath returns the --workflow flag value.
func GetWorkflowPath() string {
	return workflowFlag
}

// NewRootCommand creates the root jobflow command. Subcommands attach
// themselves via cmd.AddCommand in main.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobflow",
		Short: "jobflow - multi-step workflow operator",
		Long: `jobflow drives a multi-step job pipeline across a cluster backend.
A workflow declares an ordered list of steps; jobflow admits new job
sequences under a node budget, watches them to completion, and reacts
to rules that grow, shrink, repeat, or finish the workflow.

Run 'jobflow validate' to check a workflow file before running it.
Run 'jobflow run' to start the operator.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVarP(&workflowFlag, "workflow", "f", "workflow.yaml", "Path to the workflow definition file")

	return cmd
}

// HandleExitError prints err and exits with its carried code, or with
// ExitRunFailed if err is not an *ExitError.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", exitErr.Error())
		os.Exit(exitErr.Code)
	}

	fmt.Fprintln(os.Stderr, "Error:", err.Error())
	os.Exit(ExitRunFailed)
}
