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
	"os"

	"k8s.io/client-go/kubernetes"

	"github.com/nodeflow/jobflow/internal/config"
)

// defaultNamespaceFile is where an in-cluster pod can read its own
// namespace from the mounted service account. JOBFLOW_NAMESPACE_FILE
// overrides it; its absence is tolerated and "default" is used.
const defaultNamespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"

// Namespace resolves the cluster namespace the manager runs in. A
// missing service-account file (not running in-cluster, or a
// misconfigured test environment) is not an error: it falls back to
// "default".
func Namespace() string {
	path := os.Getenv("JOBFLOW_NAMESPACE_FILE")
	if path == "" {
		path = defaultNamespaceFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "default"
	}
	ns := string(data)
	if ns == "" {
		return "default"
	}
	return ns
}

// Adapter is the reference TrackerAdapter: job classification, event
// streaming, and step submission against a single namespace, backed by
// a client-go Clientset. It satisfies tracker.Adapter and
// tracker.LogSaver.
type Adapter struct {
	clientset kubernetes.Interface
	namespace string
	steps     map[string]config.Step
}

// New builds an Adapter for the given workflow, indexing its steps by
// name so Submit can look up each step's resource shape.
func New(clientset kubernetes.Interface, namespace string, cfg *config.Config) *Adapter {
	steps := make(map[string]config.Step, len(cfg.Steps))
	for _, s := range cfg.Steps {
		steps[s.Name] = s
	}
	return &Adapter{clientset: clientset, namespace: namespace, steps: steps}
}
