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

// Package manager implements the WorkflowManager control loop
// described in spec §4.5: reconciliation against the live backend,
// admission of new job sequences, and the per-event watch loop that
// drives every sequence's JobStateMachine.
package manager

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nodeflow/jobflow/internal/artifact"
	"github.com/nodeflow/jobflow/internal/config"
	"github.com/nodeflow/jobflow/internal/telemetry"
	"github.com/nodeflow/jobflow/pkg/metrics"
	"github.com/nodeflow/jobflow/pkg/statemachine"
	"github.com/nodeflow/jobflow/pkg/tracker"
)

// Manager is the WorkflowManager: single-threaded and cooperative on
// its control path per spec §5. The live machine table, the
// completed/failed sets, firstSeen, times and the steps' NNodes are
// mutated during Init and Run by the goroutine that calls them; times
// and finishFlag are additionally guarded by timesMu.
type Manager struct {
	cfg      *config.Config
	backend  tracker.Adapter
	watcher  tracker.Watcher
	saver    tracker.LogSaver // nil if backend doesn't implement LogSaver
	root     artifact.Root
	store    *metrics.Store
	observer telemetry.EventObserver
	logger   *slog.Logger
	workdir  string

	machines  map[string]*statemachine.Machine
	completed map[string]bool
	failed    map[string]bool
	firstSeen map[string]time.Time

	nextSeq int

	times      map[string]time.Time
	timesMu    sync.Mutex
	finishedCh chan struct{}
	finishOnce sync.Once
	finishFlag bool // guarded by timesMu
}

// New builds a Manager ready for Init + Run. watcher may be
// tracker.NoopWatcher{} when the backend has no topology side channel.
// observer may be telemetry.NoopObserver{} when tracing is disabled.
func New(cfg *config.Config, backend tracker.Adapter, watcher tracker.Watcher, root artifact.Root) *Manager {
	m := &Manager{
		cfg:        cfg,
		backend:    backend,
		watcher:    watcher,
		root:       root,
		store:      metrics.NewStore(),
		observer:   telemetry.NoopObserver{},
		logger:     slog.Default(),
		workdir:    cfg.Workdir,
		machines:   make(map[string]*statemachine.Machine),
		completed:  make(map[string]bool),
		failed:     make(map[string]bool),
		firstSeen:  make(map[string]time.Time),
		times:      make(map[string]time.Time),
		finishedCh: make(chan struct{}),
	}
	if saver, ok := backend.(tracker.LogSaver); ok {
		m.saver = saver
	}
	if cfg.Workdir == "" {
		m.workdir = "."
	}
	return m
}

// WithLogger sets the manager's logger.
func (m *Manager) WithLogger(logger *slog.Logger) *Manager {
	m.logger = logger
	return m
}

// WithObserver sets the EventObserver spans are reported through.
func (m *Manager) WithObserver(observer telemetry.EventObserver) *Manager {
	m.observer = observer
	return m
}

// WithMetricsStore overrides the manager's MetricsStore, e.g. to share
// one with a telemetry.Metrics exporter constructed before the
// manager.
func (m *Manager) WithMetricsStore(store *metrics.Store) *Manager {
	m.store = store
	return m
}

// MetricsStore returns the manager's live MetricsStore, for callers
// wiring a telemetry.Metrics exporter against it.
func (m *Manager) MetricsStore() *metrics.Store {
	return m.store
}

// ActiveSequences returns the number of sequences currently tracked,
// for telemetry.Metrics.SetActiveSequences.
func (m *Manager) ActiveSequences() int {
	return len(m.machines)
}

// Done returns a channel closed once the workflow reaches completion
// (either by hitting completions_needed or a finish-workflow rule).
func (m *Manager) Done() <-chan struct{} {
	return m.finishedCh
}

func (m *Manager) addTimedEvent(name string) {
	m.timesMu.Lock()
	defer m.timesMu.Unlock()
	if _, ok := m.times[name]; ok {
		return
	}
	m.times[name] = time.Now()
}

func (m *Manager) firstSeenFor(key string) {
	if _, ok := m.firstSeen[key]; ok {
		return
	}
	m.firstSeen[key] = time.Now()
}
