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

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	jobflowerrors "github.com/nodeflow/jobflow/pkg/errors"
	"github.com/nodeflow/jobflow/pkg/tracker"
)

// ListJobsByStatus lists every batch/v1 Job in the adapter's namespace
// and classifies each using the same predicates as the reference
// prototype's list_jobs_by_status: succeeded+completion time wins
// first, then failed, then active-vs-not decides running/queued, and
// anything left over (started but neither terminal state yet reached
// within its own bookkeeping) is unknown.
func (a *Adapter) ListJobsByStatus(ctx context.Context) (tracker.ByStatus, error) {
	list, err := a.clientset.BatchV1().Jobs(a.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return tracker.ByStatus{}, jobflowerrors.Wrap(err, "listing jobs")
	}

	var out tracker.ByStatus
	for i := range list.Items {
		job := Job{job: &list.Items[i]}
		switch {
		case job.IsSucceeded():
			out.Success = append(out.Success, job)
		case job.IsFailed():
			out.Failed = append(out.Failed, job)
		case !job.IsActive() && !job.IsCompleted():
			out.Queued = append(out.Queued, job)
		case job.IsActive() && !job.IsCompleted():
			out.Running = append(out.Running, job)
		default:
			out.Unknown = append(out.Unknown, job)
		}
	}
	return out, nil
}
