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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/nodeflow/jobflow/internal/config"
	jobflowerrors "github.com/nodeflow/jobflow/pkg/errors"
	"github.com/nodeflow/jobflow/pkg/tracker"
)

// gpuResourceName is the resource key requested when a step asks for
// GPUs; the reference prototype assumes nvidia.com/gpu.
const gpuResourceName = "nvidia.com/gpu"

// Submit creates the ConfigMap carrying the rendered entrypoint and
// the batch/v1 Job that mounts it, for (jobid, step). A Conflict from
// the API server means a prior process already submitted this step
// and is not a failure: the manager is resuming a sequence.
func (a *Adapter) Submit(ctx context.Context, jobid, step string, repeat bool) (tracker.SubmissionCode, error) {
	s, ok := a.steps[step]
	if !ok {
		return tracker.SubmissionError, &jobflowerrors.NotFoundError{Resource: "step", ID: step}
	}

	name := name(jobid, step)

	if err := a.createConfigMap(ctx, name, s); err != nil {
		return tracker.SubmissionError, jobflowerrors.Wrapf(err, "creating configmap for %s", name)
	}

	job, err := a.buildJob(name, jobid, s)
	if err != nil {
		return tracker.SubmissionError, err
	}

	_, err = a.clientset.BatchV1().Jobs(a.namespace).Create(ctx, job, metav1.CreateOptions{})
	switch {
	case err == nil:
		return tracker.SubmissionOK, nil
	case apierrors.IsAlreadyExists(err):
		return tracker.SubmissionConflict, err
	default:
		return tracker.SubmissionError, jobflowerrors.Wrapf(err, "creating job %s", name)
	}
}

// Cleanup removes every backend object (Job, ConfigMap) associated
// with jobid across all configured steps, tolerating objects that no
// longer exist.
func (a *Adapter) Cleanup(ctx context.Context, jobid string) error {
	for step := range a.steps {
		n := name(jobid, step)

		policy := metav1.DeletePropagationBackground
		err := a.clientset.BatchV1().Jobs(a.namespace).Delete(ctx, n, metav1.DeleteOptions{PropagationPolicy: &policy})
		if err != nil && !apierrors.IsNotFound(err) {
			return jobflowerrors.Wrapf(err, "deleting job %s", n)
		}

		err = a.clientset.CoreV1().ConfigMaps(a.namespace).Delete(ctx, n, metav1.DeleteOptions{})
		if err != nil && !apierrors.IsNotFound(err) {
			return jobflowerrors.Wrapf(err, "deleting configmap %s", n)
		}
	}
	return nil
}

func name(jobid, step string) string {
	return fmt.Sprintf("%s_%s", step, jobid)
}

func (a *Adapter) createConfigMap(ctx context.Context, name string, s config.Step) error {
	props, _ := json.Marshal(s.Properties)
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: a.namespace},
		Data: map[string]string{
			"entrypoint": s.Script,
			"config":     string(props),
		},
	}
	_, err := a.clientset.CoreV1().ConfigMaps(a.namespace).Create(ctx, cm, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		if delErr := a.clientset.CoreV1().ConfigMaps(a.namespace).Delete(ctx, name, metav1.DeleteOptions{}); delErr != nil && !apierrors.IsNotFound(delErr) {
			return delErr
		}
		_, err = a.clientset.CoreV1().ConfigMaps(a.namespace).Create(ctx, cm, metav1.CreateOptions{})
	}
	return err
}

func (a *Adapter) buildJob(name, jobid string, s config.Step) (*batchv1.Job, error) {
	command := s.Command
	if command == "" {
		command = "/bin/bash /workdir/entrypoint.sh"
	}
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, &jobflowerrors.ValidationError{Field: "command", Message: "resolved to an empty command"}
	}

	nnodes := int32(s.NNodes)
	if nnodes <= 0 {
		nnodes = 1
	}
	cores := s.CoresPerTask
	if cores <= 0 {
		cores = 1
	}

	resources := corev1.ResourceList{
		corev1.ResourceCPU: *resource.NewQuantity(int64(cores), resource.DecimalSI),
	}
	if s.NGPUs > 0 {
		resources[corev1.ResourceName(gpuResourceName)] = *resource.NewQuantity(int64(s.NGPUs), resource.DecimalSI)
	}

	var env []corev1.EnvVar
	for k, v := range s.Environment {
		env = append(env, corev1.EnvVar{Name: k, Value: v})
	}

	labels := map[string]string{
		stepLabel:  s.Name,
		jobIDLabel: jobid,
	}

	backoffLimit := int32(0)
	walltimeSeconds, err := walltimeToSeconds(s.Walltime)
	if err != nil {
		return nil, &jobflowerrors.ValidationError{Field: "walltime", Message: err.Error()}
	}

	spec := batchv1.JobSpec{
		Parallelism:  &nnodes,
		Completions:  &nnodes,
		BackoffLimit: &backoffLimit,
		Template: corev1.PodTemplateSpec{
			ObjectMeta: metav1.ObjectMeta{Labels: labels},
			Spec: corev1.PodSpec{
				RestartPolicy: corev1.RestartPolicyNever,
				Containers: []corev1.Container{
					{
						Name:    "step",
						Image:   s.Image,
						Command: []string{parts[0]},
						Args:    parts[1:],
						Env:     env,
						Resources: corev1.ResourceRequirements{
							Requests: resources,
							Limits:   resources,
						},
						VolumeMounts: []corev1.VolumeMount{
							{Name: "entrypoint-mount", MountPath: "/workdir"},
						},
					},
				},
				Volumes: []corev1.Volume{
					{
						Name: "entrypoint-mount",
						VolumeSource: corev1.VolumeSource{
							ConfigMap: &corev1.ConfigMapVolumeSource{
								LocalObjectReference: corev1.LocalObjectReference{Name: name},
								Items: []corev1.KeyToPath{
									{Key: "entrypoint", Path: "entrypoint.sh"},
									{Key: "config", Path: "config.json"},
								},
							},
						},
					},
				},
			},
		},
	}
	if walltimeSeconds > 0 {
		secs := walltimeSeconds
		spec.ActiveDeadlineSeconds = &secs
	}

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: a.namespace, Labels: labels},
		Spec:       spec,
	}, nil
}

// walltimeToSeconds parses a "10m"/"1h30m"/"300" style walltime into
// seconds, matching the reference prototype's leniency: an empty
// string means "no deadline".
func walltimeToSeconds(walltime string) (int64, error) {
	if walltime == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(walltime, 10, 64); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(walltime)
	if err != nil {
		return 0, err
	}
	return int64(d.Seconds()), nil
}
