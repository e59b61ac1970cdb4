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

// ErrorType/IsRetryable implementations, satisfying ErrorClassifier.
// Only SubmissionError is ever retryable, and only on conflict: a
// conflicting job name means the scheduler already accepted a create
// from an earlier reconcile pass, so the manager can treat it as success
// rather than retrying the submit.

func (e *ValidationError) ErrorType() string { return "validation" }
func (e *ValidationError) IsRetryable() bool { return false }

func (e *NotFoundError) ErrorType() string { return "not_found" }
func (e *NotFoundError) IsRetryable() bool { return false }

func (e *ConfigError) ErrorType() string { return "config" }
func (e *ConfigError) IsRetryable() bool { return false }

func (e *InvalidRuleError) ErrorType() string { return "invalid_rule" }
func (e *InvalidRuleError) IsRetryable() bool { return false }

func (e *SubmissionError) ErrorType() string { return "submission" }
func (e *SubmissionError) IsRetryable() bool { return e.Conflict }
