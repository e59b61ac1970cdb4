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

// Package kubernetes is the reference TrackerAdapter backed by
// client-go, grounded in the original prototype's
// tracker/kubernetes/*.py: one batch/v1 Job per step submission,
// classified and routed purely off three labels.
package kubernetes

import batchv1 "k8s.io/api/batch/v1"

const (
	// jobIDLabel carries a sequence's jobid on every backend object
	// belonging to it.
	jobIDLabel = "jobid"
	// stepLabel carries the step name a Job instance executes.
	stepLabel = "app"
	// alwaysSucceedLabel opts a step into treating backend failure as
	// success.
	alwaysSucceedLabel = "always-succeed"
	// alwaysSucceedValue is the label value that enables the opt-in.
	alwaysSucceedValue = "1"
)

// Job wraps a *batchv1.Job to satisfy tracker.Job.
type Job struct {
	job *batchv1.Job
}

func (j Job) JobID() string { return j.job.Labels[jobIDLabel] }

func (j Job) StepName() string { return j.job.Labels[stepLabel] }

func (j Job) Label() string { return j.JobID() + "_" + j.StepName() }

func (j Job) AlwaysSucceed() bool { return j.job.Labels[alwaysSucceedLabel] == alwaysSucceedValue }

func (j Job) IsActive() bool { return j.job.Status.Active >= 1 }

func (j Job) IsCompleted() bool { return j.job.Status.CompletionTime != nil }

func (j Job) IsFailed() bool { return j.job.Status.Failed >= 1 }

func (j Job) IsSucceeded() bool {
	return j.job.Status.Succeeded >= 1 && j.job.Status.CompletionTime != nil
}

func (j Job) Duration() (float64, bool) {
	if j.job.Status.CompletionTime == nil || j.job.Status.StartTime == nil {
		return 0, false
	}
	d := j.job.Status.CompletionTime.Time.Sub(j.job.Status.StartTime.Time)
	return d.Seconds(), true
}
