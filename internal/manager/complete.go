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

package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// finishRequested reports whether a fired finish-workflow rule has
// asked for completion regardless of the completions target.
func (m *Manager) finishRequested() bool {
	m.timesMu.Lock()
	defer m.timesMu.Unlock()
	return m.finishFlag
}

func (m *Manager) requestFinish() {
	m.timesMu.Lock()
	m.finishFlag = true
	m.timesMu.Unlock()
}

// checkComplete reports whether the workflow has reached its
// completion target (or had finish-workflow fired), and if so performs
// the one-time shutdown sequence: stop the watcher, persist its
// observations and workflow-times.json, print the timing and metric
// summaries, and close Done().
func (m *Manager) checkComplete(ctx context.Context) bool {
	done := len(m.completed) >= m.cfg.CompletionsNeeded || m.finishRequested()
	if !done {
		return false
	}

	m.finishOnce.Do(func() {
		m.addTimedEvent("workflow_complete")
		m.logger.Info("workflow complete", "completions", len(m.completed), "target", m.cfg.CompletionsNeeded)

		m.watcher.Stop()
		if err := m.watcher.Save(m.workdir); err != nil {
			m.logger.Warn("failed to persist watcher observations", "error", err)
		}

		if err := m.persistSummary(); err != nil {
			m.logger.Warn("failed to persist workflow summary", "error", err)
		}
		m.printSummary()

		close(m.finishedCh)
	})
	return true
}

// persistSummary writes workflow-times.json = {"times", "timestamps"}
// to workdir, per spec §6's persisted-artifacts contract.
func (m *Manager) persistSummary() error {
	m.timesMu.Lock()
	times := make(map[string]int64, len(m.times))
	for k, v := range m.times {
		times[k] = v.Unix()
	}
	m.timesMu.Unlock()

	timestamps := make(map[string]int64, len(m.firstSeen))
	for k, v := range m.firstSeen {
		timestamps[k] = v.Unix()
	}

	payload := struct {
		Times      map[string]int64 `json:"times"`
		Timestamps map[string]int64 `json:"timestamps"`
	}{Times: times, Timestamps: timestamps}

	if err := os.MkdirAll(m.workdir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.workdir, "workflow-times.json"), data, 0o644)
}

// printSummary writes the framed "=== times ... ===" console block
// followed by the streaming-metric summary, matching the Python
// original's exact completion output shape.
func (m *Manager) printSummary() {
	m.timesMu.Lock()
	times := make(map[string]int64, len(m.times))
	for k, v := range m.times {
		times[k] = v.Unix()
	}
	m.timesMu.Unlock()

	timesJSON, _ := json.Marshal(times)
	fmt.Printf("=== times\n%s\n===\n", timesJSON)

	summary := m.store.SummarizeAll()
	summaryJSON, _ := json.Marshal(summary)
	fmt.Printf("=== metrics\n%s\n===\n", summaryJSON)
}
