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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nodeflow/jobflow/pkg/tracker"
)

type fakeSubmitter struct {
	code tracker.SubmissionCode
	err  error
}

func (f *fakeSubmitter) Submit(_ context.Context, jobid, step string, repeat bool) (tracker.SubmissionCode, error) {
	return f.code, f.err
}

func (f *fakeSubmitter) Cleanup(_ context.Context, jobid string) error {
	return f.err
}

func TestLoggingSubmitter_SubmitSuccess(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	m := NewLoggingSubmitter(&fakeSubmitter{code: tracker.SubmissionOK}, logger)
	code, err := m.Submit(context.Background(), "job_001", "train", false)

	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if code != tracker.SubmissionOK {
		t.Errorf("expected SubmissionOK, got: %v", code)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}

	var start map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &start); err != nil {
		t.Fatalf("expected valid JSON: %v", err)
	}
	if start["event"] != "submission_submit" {
		t.Errorf("expected event 'submission_submit', got: %v", start["event"])
	}
	if start[JobIDKey] != "job_001" {
		t.Errorf("expected %s 'job_001', got: %v", JobIDKey, start[JobIDKey])
	}
	if start[StepNameKey] != "train" {
		t.Errorf("expected %s 'train', got: %v", StepNameKey, start[StepNameKey])
	}

	var done map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &done); err != nil {
		t.Fatalf("expected valid JSON: %v", err)
	}
	if done["event"] != "submission_submit_complete" {
		t.Errorf("expected event 'submission_submit_complete', got: %v", done["event"])
	}
	if done["level"] != "INFO" {
		t.Errorf("expected level INFO, got: %v", done["level"])
	}
	if done["code"] != "ok" {
		t.Errorf("expected code 'ok', got: %v", done["code"])
	}
	if _, ok := done[DurationKey]; !ok {
		t.Errorf("expected %s to be present", DurationKey)
	}
}

func TestLoggingSubmitter_SubmitConflictIsNotAnError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	m := NewLoggingSubmitter(&fakeSubmitter{code: tracker.SubmissionConflict, err: errors.New("already exists")}, logger)
	_, err := m.Submit(context.Background(), "job_002", "train", true)

	if err == nil {
		t.Errorf("expected the wrapped error to still be returned to the caller")
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var done map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &done); err != nil {
		t.Fatalf("expected valid JSON: %v", err)
	}
	if done["level"] != "INFO" {
		t.Errorf("conflict should log at INFO, not ERROR, got: %v", done["level"])
	}
}

func TestLoggingSubmitter_SubmitError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	m := NewLoggingSubmitter(&fakeSubmitter{code: tracker.SubmissionError, err: errors.New("backend rejected")}, logger)
	_, err := m.Submit(context.Background(), "job_003", "train", false)

	if err == nil {
		t.Errorf("expected error to be returned")
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var done map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &done); err != nil {
		t.Fatalf("expected valid JSON: %v", err)
	}
	if done["level"] != "ERROR" {
		t.Errorf("expected level ERROR, got: %v", done["level"])
	}
	if done["error"] != "backend rejected" {
		t.Errorf("expected error field 'backend rejected', got: %v", done["error"])
	}
}

func TestLoggingSubmitter_Cleanup(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	m := NewLoggingSubmitter(&fakeSubmitter{}, logger)
	if err := m.Cleanup(context.Background(), "job_004"); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	var start map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &start); err != nil {
		t.Fatalf("expected valid JSON: %v", err)
	}
	if start["event"] != "submission_cleanup" {
		t.Errorf("expected event 'submission_cleanup', got: %v", start["event"])
	}
	if _, ok := start[StepNameKey]; ok {
		t.Errorf("cleanup has no step name, field should be absent")
	}
}

func TestNewLoggingSubmitter(t *testing.T) {
	logger := New(nil)
	m := NewLoggingSubmitter(&fakeSubmitter{}, logger)

	if m == nil {
		t.Errorf("expected non-nil submitter")
	}
	if m.logger != logger {
		t.Errorf("expected submitter to use provided logger")
	}
}
