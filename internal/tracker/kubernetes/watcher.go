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

package kubernetes

import (
	"context"
	"sync"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	jobflowerrors "github.com/nodeflow/jobflow/pkg/errors"
)

// nodeInfo is one node's lifecycle timestamps, the shape
// cluster-nodes.json persists.
type nodeInfo struct {
	Created float64  `json:"created"`
	Deleted *float64 `json:"deleted,omitempty"`
}

// NodeWatcher is the optional WatcherAdapter side channel: a single
// background goroutine recording cluster node add/delete events, the
// Go equivalent of the reference prototype's Watcher class (including
// its "not watching pods for now" no-op — pod-level metadata was never
// used downstream, so watch_pods stayed empty there too).
type NodeWatcher struct {
	clientset kubernetes.Interface

	mu    sync.Mutex
	nodes map[string]nodeInfo

	cancel context.CancelFunc
	done   chan struct{}
}

// NewNodeWatcher builds a NodeWatcher against clientset. Call Start to
// begin observation.
func NewNodeWatcher(clientset kubernetes.Interface) *NodeWatcher {
	return &NodeWatcher{clientset: clientset, nodes: make(map[string]nodeInfo)}
}

// Start launches the node-watching goroutine. Non-blocking.
func (w *NodeWatcher) Start(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	list, err := w.clientset.CoreV1().Nodes().List(watchCtx, metav1.ListOptions{})
	if err != nil {
		cancel()
		return jobflowerrors.Wrap(err, "listing nodes")
	}
	w.mu.Lock()
	for _, n := range list.Items {
		w.nodes[n.Name] = nodeInfo{Created: float64(n.CreationTimestamp.Unix())}
	}
	w.mu.Unlock()

	watcher, err := w.clientset.CoreV1().Nodes().Watch(watchCtx, metav1.ListOptions{})
	if err != nil {
		cancel()
		return jobflowerrors.Wrap(err, "watching nodes")
	}

	go func() {
		defer close(w.done)
		defer watcher.Stop()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.ResultChan():
				if !ok {
					return
				}
				node, ok := event.Object.(*corev1.Node)
				if !ok {
					continue
				}
				w.recordNode(node)
			}
		}
	}()
	return nil
}

func (w *NodeWatcher) recordNode(node *corev1.Node) {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, known := w.nodes[node.Name]
	if !known {
		info = nodeInfo{Created: float64(node.CreationTimestamp.Unix())}
	}
	if node.DeletionTimestamp != nil {
		deleted := float64(node.DeletionTimestamp.Unix())
		info.Deleted = &deleted
	}
	w.nodes[node.Name] = info
}

// watchPods is intentionally unimplemented: the reference prototype
// never used pod-level metadata downstream either.
func (w *NodeWatcher) watchPods() {}

// Stop signals shutdown. Idempotent; safe to call before Start.
func (w *NodeWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

// Save flushes the observed node table to outdir/cluster-nodes.json.
func (w *NodeWatcher) Save(outdir string) error {
	return jobflowerrors.Wrap(writeJSON(outdir, "cluster-nodes.json", w.Results()["nodes"]), "saving cluster-nodes.json")
}

// Results returns a snapshot of the nodes observed so far.
func (w *NodeWatcher) Results() map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	snapshot := make(map[string]nodeInfo, len(w.nodes))
	for k, v := range w.nodes {
		snapshot[k] = v
	}
	return map[string]interface{}{"nodes": snapshot}
}
