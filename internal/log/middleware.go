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

package log

import (
	"context"
	"log/slog"
	"time"

	"github.com/nodeflow/jobflow/pkg/tracker"
)

// SubmissionEvent carries the fields common to a logged submitter call,
// independent of whether it was a Submit or a Cleanup.
type SubmissionEvent struct {
	// Operation names the submitter method invoked ("submit", "cleanup").
	Operation string

	// JobID is the sequence's job identifier.
	JobID string

	// StepName is the step being submitted; empty for Cleanup.
	StepName string

	// Repeat is true when this is a self-loop resubmission.
	Repeat bool
}

// SubmissionOutcome carries the result of a logged submitter call.
type SubmissionOutcome struct {
	// Code is the submission result; zero value for Cleanup.
	Code tracker.SubmissionCode

	// Err is the error returned, if any.
	Err error

	// DurationMs is how long the underlying call took.
	DurationMs int64
}

// LogSubmission logs a submitter call before it runs.
func LogSubmission(logger *slog.Logger, ev *SubmissionEvent) {
	attrs := []any{
		"event", "submission_" + ev.Operation,
		JobIDKey, ev.JobID,
	}
	if ev.StepName != "" {
		attrs = append(attrs, StepNameKey, ev.StepName)
	}
	if ev.Repeat {
		attrs = append(attrs, "repeat", ev.Repeat)
	}
	logger.Info("submitter call starting", attrs...)
}

// LogSubmissionResult logs a submitter call's outcome.
func LogSubmissionResult(logger *slog.Logger, ev *SubmissionEvent, out *SubmissionOutcome) {
	attrs := []any{
		"event", "submission_" + ev.Operation + "_complete",
		JobIDKey, ev.JobID,
		DurationKey, out.DurationMs,
	}
	if ev.StepName != "" {
		attrs = append(attrs, StepNameKey, ev.StepName)
	}

	level := slog.LevelInfo
	message := "submitter call completed"

	if out.Err != nil {
		attrs = append(attrs, "error", out.Err.Error())
		if out.Code != tracker.SubmissionConflict {
			level = slog.LevelError
			message = "submitter call failed"
		}
	} else if ev.Operation == "submit" {
		attrs = append(attrs, "code", out.Code.String())
	}

	logger.Log(context.Background(), level, message, attrs...)
}

// LoggingSubmitter decorates a tracker.StepSubmitter with structured
// logging of every Submit and Cleanup call and its duration, the same
// "wrap the call, log before and after" shape the RPC layer this
// package started from used for its own handlers.
type LoggingSubmitter struct {
	next   tracker.StepSubmitter
	logger *slog.Logger
}

// NewLoggingSubmitter wraps next so every call it serves is logged
// through logger.
func NewLoggingSubmitter(next tracker.StepSubmitter, logger *slog.Logger) *LoggingSubmitter {
	return &LoggingSubmitter{next: next, logger: logger}
}

// Submit logs and delegates to the wrapped submitter.
func (m *LoggingSubmitter) Submit(ctx context.Context, jobid, step string, repeat bool) (tracker.SubmissionCode, error) {
	ev := &SubmissionEvent{Operation: "submit", JobID: jobid, StepName: step, Repeat: repeat}
	LogSubmission(m.logger, ev)

	start := time.Now()
	code, err := m.next.Submit(ctx, jobid, step, repeat)
	LogSubmissionResult(m.logger, ev, &SubmissionOutcome{
		Code:       code,
		Err:        err,
		DurationMs: time.Since(start).Milliseconds(),
	})
	return code, err
}

// Cleanup logs and delegates to the wrapped submitter.
func (m *LoggingSubmitter) Cleanup(ctx context.Context, jobid string) error {
	ev := &SubmissionEvent{Operation: "cleanup", JobID: jobid}
	LogSubmission(m.logger, ev)

	start := time.Now()
	err := m.next.Cleanup(ctx, jobid)
	LogSubmissionResult(m.logger, ev, &SubmissionOutcome{
		Err:        err,
		DurationMs: time.Since(start).Milliseconds(),
	})
	return err
}
