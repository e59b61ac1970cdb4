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

package errors

import "fmt"

// ValidationError represents user input validation failures.
// Use this for invalid workflow definitions, malformed data, or
// constraint violations caught before a job is ever submitted.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
// Use this when a requested resource does not exist, e.g. a late event
// referencing a jobid whose sequence already failed and was removed
// from the live tracker table.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "sequence", "step", "job")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError represents a fatal workflow-configuration problem detected
// at load time: an unknown scheduler, a missing step image, an empty or
// duplicate step name, a max_size below the first step's node count,
// or a malformed rule key. Rules rejected by rules.NewRule are reported
// as InvalidRuleError instead.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "steps[2].image")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// InvalidRuleError is returned when a Rule's "when" predicate does not
// match the supported grammar, or its action name is not one of the
// known workflow or state-machine actions.
type InvalidRuleError struct {
	// RuleKey identifies the rule, typically "<step>.<action>" or "<action>"
	RuleKey string

	// Reason explains what's wrong with the rule
	Reason string
}

// Error implements the error interface.
func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid rule %q: %s", e.RuleKey, e.Reason)
}

// SubmissionError represents a failure to submit a job to the backend
// scheduler. Conflict is true when the backend reported the job already
// exists, typically because a previous reconcile already created it.
type SubmissionError struct {
	// JobID is the job that failed to submit
	JobID string

	// Conflict is true when the backend reported the job already exists
	Conflict bool

	// Cause is the underlying error from the backend client
	Cause error
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	if e.Conflict {
		return fmt.Sprintf("submission conflict for job %s: %v", e.JobID, e.Cause)
	}
	return fmt.Sprintf("submission failed for job %s: %v", e.JobID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *SubmissionError) Unwrap() error {
	return e.Cause
}
