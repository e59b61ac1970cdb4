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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/nodeflow/jobflow/internal/config"
	"github.com/nodeflow/jobflow/pkg/tracker"
)

func testConfig() *config.Config {
	return &config.Config{
		Steps: []config.Step{
			{Name: "preprocess", Image: "example.com/preprocess:latest", NNodes: 1},
		},
	}
}

func TestSubmitCreatesJobAndConfigMap(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	a := New(clientset, "default", testConfig())

	code, err := a.Submit(context.Background(), "job_001", "preprocess", false)
	require.NoError(t, err)
	assert.Equal(t, tracker.SubmissionOK, code)

	job, err := clientset.BatchV1().Jobs("default").Get(context.Background(), "preprocess_job_001", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "job_001", job.Labels[jobIDLabel])
	assert.Equal(t, "preprocess", job.Labels[stepLabel])

	_, err = clientset.CoreV1().ConfigMaps("default").Get(context.Background(), "preprocess_job_001", metav1.GetOptions{})
	require.NoError(t, err)
}

func TestSubmitUnknownStepFails(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	a := New(clientset, "default", testConfig())

	_, err := a.Submit(context.Background(), "job_001", "nope", false)
	assert.Error(t, err)
}

func TestSubmitConflictIsNotAFailure(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	a := New(clientset, "default", testConfig())

	_, err := a.Submit(context.Background(), "job_001", "preprocess", false)
	require.NoError(t, err)

	code, err := a.Submit(context.Background(), "job_001", "preprocess", false)
	assert.Equal(t, tracker.SubmissionConflict, code)
	assert.Error(t, err, "the API conflict error is still surfaced, the manager decides it's not fatal")
}

func TestCleanupToleratesMissingObjects(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	a := New(clientset, "default", testConfig())

	err := a.Cleanup(context.Background(), "job-never-submitted")
	assert.NoError(t, err)
}

func TestCleanupRemovesJobAndConfigMap(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	a := New(clientset, "default", testConfig())

	_, err := a.Submit(context.Background(), "job_001", "preprocess", false)
	require.NoError(t, err)

	require.NoError(t, a.Cleanup(context.Background(), "job_001"))

	_, err = clientset.BatchV1().Jobs("default").Get(context.Background(), "preprocess_job_001", metav1.GetOptions{})
	assert.Error(t, err)
}

func jobWithStatus(name, jobid, step string, status batchv1.JobStatus) *batchv1.Job {
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
			Labels:    map[string]string{jobIDLabel: jobid, stepLabel: step},
		},
		Status: status,
	}
}

func TestListJobsByStatusClassifiesEachBucket(t *testing.T) {
	now := metav1.NewTime(time.Now())
	clientset := fake.NewSimpleClientset(
		jobWithStatus("s_success", "job_1", "s", batchv1.JobStatus{Succeeded: 1, CompletionTime: &now}),
		jobWithStatus("s_failed", "job_2", "s", batchv1.JobStatus{Failed: 1}),
		jobWithStatus("s_running", "job_3", "s", batchv1.JobStatus{Active: 1}),
		jobWithStatus("s_queued", "job_4", "s", batchv1.JobStatus{}),
	)
	a := New(clientset, "default", testConfig())

	by, err := a.ListJobsByStatus(context.Background())
	require.NoError(t, err)

	require.Len(t, by.Success, 1)
	assert.Equal(t, "job_1", by.Success[0].JobID())
	require.Len(t, by.Failed, 1)
	assert.Equal(t, "job_2", by.Failed[0].JobID())
	require.Len(t, by.Running, 1)
	assert.Equal(t, "job_3", by.Running[0].JobID())
	require.Len(t, by.Queued, 1)
	assert.Equal(t, "job_4", by.Queued[0].JobID())
}

func TestJobDurationRequiresStartAndCompletion(t *testing.T) {
	start := metav1.NewTime(time.Now().Add(-time.Minute))
	end := metav1.NewTime(time.Now())

	complete := Job{job: jobWithStatus("s", "job_1", "s", batchv1.JobStatus{StartTime: &start, CompletionTime: &end})}
	d, ok := complete.Duration()
	assert.True(t, ok)
	assert.InDelta(t, 60, d, 1)

	incomplete := Job{job: jobWithStatus("s", "job_1", "s", batchv1.JobStatus{StartTime: &start})}
	_, ok = incomplete.Duration()
	assert.False(t, ok)
}

func TestJobAlwaysSucceed(t *testing.T) {
	j := Job{job: &batchv1.Job{ObjectMeta: metav1.ObjectMeta{
		Labels: map[string]string{alwaysSucceedLabel: "1"},
	}}}
	assert.True(t, j.AlwaysSucceed())

	j2 := Job{job: &batchv1.Job{}}
	assert.False(t, j2.AlwaysSucceed())
}

func TestNamespaceFallsBackToDefaultWhenFileMissing(t *testing.T) {
	t.Setenv("JOBFLOW_NAMESPACE_FILE", "/nonexistent/path/for/test")
	assert.Equal(t, "default", Namespace())
}

func TestSaveLogParsesMetricsAnnotation(t *testing.T) {
	a := New(fake.NewSimpleClientset(), "default", testConfig())

	j := Job{job: &batchv1.Job{ObjectMeta: metav1.ObjectMeta{
		Name:        "preprocess_job_001",
		Annotations: map[string]string{metricsAnnotationKey: `{"tokens": 42.5}`},
	}}}

	metrics, err := a.SaveLog(context.Background(), j)
	require.NoError(t, err)
	assert.Equal(t, 42.5, metrics["tokens"])
}

func TestSaveLogAbsentAnnotationIsNotAnError(t *testing.T) {
	a := New(fake.NewSimpleClientset(), "default", testConfig())

	j := Job{job: &batchv1.Job{ObjectMeta: metav1.ObjectMeta{Name: "preprocess_job_001"}}}
	metrics, err := a.SaveLog(context.Background(), j)
	require.NoError(t, err)
	assert.Nil(t, metrics)
}
