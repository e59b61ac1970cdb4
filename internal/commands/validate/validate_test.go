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

package validate

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/nodeflow/jobflow/internal/cli"
)

const validWorkflow = `
scheduler: kubernetes
prefix: job_
max_size: 8
completions_needed: 4
jobs:
  - name: a
    image: busybox
    config:
      nnodes: 2
  - name: b
    image: busybox
    config:
      nnodes: 1
`

const invalidWorkflow = `
scheduler: not-a-scheduler
max_size: 8
completions_needed: 4
jobs:
  - name: a
    image: busybox
    config:
      nnodes: 2
`

func writeWorkflow(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing workflow: %v", err)
	}
	return path
}

func TestValidateSucceedsOnWellFormedWorkflow(t *testing.T) {
	path := writeWorkflow(t, validWorkflow)

	var buf bytes.Buffer
	root := cli.NewRootCommand()
	root.AddCommand(NewCommand())
	root.SetOut(&buf)
	root.SetArgs([]string{"--workflow", path, "validate"})

	if err := root.Execute(); err != nil {
		t.Fatalf("expected validation to succeed, got: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("valid")) {
		t.Errorf("expected success output, got: %s", buf.String())
	}
}

func TestValidateFailsOnUnknownScheduler(t *testing.T) {
	path := writeWorkflow(t, invalidWorkflow)

	cmd := NewCommand()
	root := cli.NewRootCommand()
	root.AddCommand(cmd)
	root.SetArgs([]string{"--workflow", path, "validate"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected validation to fail on unknown scheduler")
	}
}
