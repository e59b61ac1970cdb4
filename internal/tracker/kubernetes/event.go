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

	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	jobflowerrors "github.com/nodeflow/jobflow/pkg/errors"
	"github.com/nodeflow/jobflow/pkg/tracker"
)

// StreamEvents opens a client-go watch on namespaced Jobs and relays
// one tracker.Job per watch event. The stream is not restarted
// internally: if the watch channel closes (expired, server-side
// disconnect), the returned channel closes too and reconnection is the
// caller's concern, per spec.
func (a *Adapter) StreamEvents(ctx context.Context) (<-chan tracker.Job, error) {
	w, err := a.clientset.BatchV1().Jobs(a.namespace).Watch(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, jobflowerrors.Wrap(err, "opening job watch")
	}

	out := make(chan tracker.Job)
	go func() {
		defer close(out)
		defer w.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.ResultChan():
				if !ok {
					return
				}
				job, ok := event.Object.(*batchv1.Job)
				if !ok {
					continue
				}
				select {
				case out <- Job{job: job}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
