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

// Package config loads and validates the declarative workflow
// definition described in spec §6: ordered steps, node budget,
// completion target, and the rules that drive grow/shrink/repeat/
// finish-workflow.
package config

import (
	"fmt"
	"os"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	jobflowerrors "github.com/nodeflow/jobflow/pkg/errors"
	"github.com/nodeflow/jobflow/pkg/rules"
)

// DefaultPrefix is the job-id prefix used when the config omits one.
const DefaultPrefix = "job_"

// SupportedSchedulers is the closed set of scheduler names the manager
// knows how to load a TrackerAdapter for.
var SupportedSchedulers = map[string]bool{
	"kubernetes": true,
	"flux":       true,
}

// File is the raw YAML shape of a workflow definition, decoded before
// being compiled into the immutable Config the manager actually uses.
type File struct {
	Scheduler         string                `yaml:"scheduler" validate:"required"`
	Prefix            string                `yaml:"prefix"`
	MaxSize           int                   `yaml:"max_size" validate:"required,gt=0"`
	CompletionsNeeded int                   `yaml:"completions_needed" validate:"required,gt=0"`
	Jobs              []JobSpec             `yaml:"jobs" validate:"required,min=1,dive"`
	Rules             map[string][]RuleSpec `yaml:"rules"`
	Cluster           ClusterSpec           `yaml:"cluster"`
	Filesystem        string                `yaml:"filesystem"`
	Registry          *RegistrySpec         `yaml:"registry"`
	Workdir           string                `yaml:"workdir"`
}

// JobSpec is one step's raw YAML definition.
type JobSpec struct {
	Name        string                  `yaml:"name" validate:"required"`
	Image       string                  `yaml:"image" validate:"required"`
	Config      StepResourceSpec        `yaml:"config"`
	Script      string                  `yaml:"script,omitempty"`
	Environment map[string]string       `yaml:"environment,omitempty"`
	Properties  map[string]interface{}  `yaml:"properties,omitempty"`
	Registry    *RegistrySpec           `yaml:"registry,omitempty"`
	Events      *EventsSpec             `yaml:"events,omitempty"`
}

// StepResourceSpec carries a step's per-submission resource shape.
type StepResourceSpec struct {
	NNodes       int    `yaml:"nnodes" validate:"required,gt=0"`
	CoresPerTask int    `yaml:"cores_per_task"`
	NGPUs        int    `yaml:"ngpus"`
	Walltime     string `yaml:"walltime,omitempty"`
	Command      string `yaml:"command,omitempty"`
}

// RegistrySpec is a container-image registry override, either at the
// workflow level or per step. A step that omits its registry block
// takes the whole workflow-level block; individual fields are not
// merged, and no hard-coded default is applied.
type RegistrySpec struct {
	Host      string `yaml:"host,omitempty"`
	PlainHTTP bool   `yaml:"plain_http,omitempty"`
	Push      string `yaml:"push,omitempty"`
	Pull      string `yaml:"pull,omitempty"`
}

// EventsSpec carries optional per-step event hooks.
type EventsSpec struct {
	Script string `yaml:"script,omitempty"`
}

// ClusterSpec carries cluster-wide sizing knobs.
type ClusterSpec struct {
	MaxNodes int `yaml:"max_nodes,omitempty"`
}

// RuleSpec is one raw rule entry under a "<model>.<step>.<key>" key.
type RuleSpec struct {
	When           interface{} `yaml:"when,omitempty"`
	Action         string      `yaml:"action" validate:"required"`
	Metric         string      `yaml:"metric,omitempty"`
	Repetitions    *int        `yaml:"repetitions,omitempty"`
	Backoff        *int        `yaml:"backoff,omitempty"`
	MinCompletions int         `yaml:"minCompletions,omitempty"`
	MinSize        int         `yaml:"minSize,omitempty"`
	MaxSize        int         `yaml:"maxSize,omitempty"`
	Disabled       bool        `yaml:"disabled,omitempty"`
}

// Load reads, decodes, and compiles a workflow definition from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &jobflowerrors.ConfigError{Key: "path", Reason: "failed to read workflow file", Cause: err}
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &jobflowerrors.ConfigError{Key: "yaml", Reason: "failed to parse workflow YAML", Cause: err}
	}

	if err := validator.New().Struct(&f); err != nil {
		return nil, &jobflowerrors.ConfigError{Key: "schema", Reason: err.Error()}
	}

	return Compile(&f)
}

// Compile turns a decoded File into an immutable Config, applying
// defaults and enforcing the cross-field invariants struct tags can't
// express: unique non-empty step names, a known scheduler, max_size
// large enough for the first step, and every rule passing
// rules.NewRule's validation. A rule's step is not checked against
// the step list.
func Compile(f *File) (*Config, error) {
	if !SupportedSchedulers[f.Scheduler] {
		return nil, &jobflowerrors.ConfigError{Key: "scheduler", Reason: fmt.Sprintf("unsupported scheduler %q", f.Scheduler)}
	}

	prefix := f.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	seen := make(map[string]bool, len(f.Jobs))
	steps := make([]Step, 0, len(f.Jobs))
	for _, j := range f.Jobs {
		if j.Name == "" {
			return nil, &jobflowerrors.ConfigError{Key: "jobs[].name", Reason: "step name must not be empty"}
		}
		if seen[j.Name] {
			return nil, &jobflowerrors.ConfigError{Key: "jobs[].name", Reason: fmt.Sprintf("duplicate step name %q", j.Name)}
		}
		seen[j.Name] = true
		if j.Image == "" {
			return nil, &jobflowerrors.ConfigError{Key: fmt.Sprintf("jobs[%s].image", j.Name), Reason: "image is required"}
		}
		steps = append(steps, stepFromSpec(j, f.Registry))
	}
	if len(steps) == 0 {
		return nil, &jobflowerrors.ConfigError{Key: "jobs", Reason: "at least one step is required"}
	}

	if f.MaxSize < steps[0].NNodes {
		return nil, &jobflowerrors.ConfigError{
			Key:    "max_size",
			Reason: fmt.Sprintf("max_size (%d) must be >= first step's node count (%d)", f.MaxSize, steps[0].NNodes),
		}
	}

	eval := rules.NewEvaluator()
	var ruleList []*rules.Rule
	for coordKey, specs := range f.Rules {
		for _, spec := range specs {
			if !strings.Contains(coordKey, ".") {
				return nil, &jobflowerrors.ConfigError{Key: "rules", Reason: fmt.Sprintf("rule key %q must be <model>.<step>.<key>", coordKey)}
			}
			action := &rules.Action{
				Name:           rules.ActionName(spec.Action),
				Metric:         spec.Metric,
				Repetitions:    spec.Repetitions,
				Backoff:        spec.Backoff,
				MinCompletions: spec.MinCompletions,
				MinSize:        spec.MinSize,
				MaxSize:        spec.MaxSize,
			}
			rule, err := rules.NewRule(coordKey, spec.When, action, spec.Disabled, eval)
			if err != nil {
				return nil, err
			}
			ruleList = append(ruleList, rule)
		}
	}

	return &Config{
		Scheduler:         f.Scheduler,
		Prefix:            prefix,
		MaxSize:           f.MaxSize,
		CompletionsNeeded: f.CompletionsNeeded,
		Steps:             steps,
		Rules:             rules.NewEngine(ruleList),
		Filesystem:        f.Filesystem,
		Registry:          registryFromSpec(f.Registry),
		Workdir:           f.Workdir,
	}, nil
}

func stepFromSpec(j JobSpec, workflowRegistry *RegistrySpec) Step {
	reg := j.Registry
	if reg == nil {
		reg = workflowRegistry
	}
	return Step{
		Name:         j.Name,
		Image:        j.Image,
		NNodes:       j.Config.NNodes,
		CoresPerTask: j.Config.CoresPerTask,
		NGPUs:        j.Config.NGPUs,
		Walltime:     j.Config.Walltime,
		Command:      j.Config.Command,
		Script:       j.Script,
		Environment:  j.Environment,
		Properties:   j.Properties,
		Registry:     registryFromSpec(reg),
	}
}

func registryFromSpec(r *RegistrySpec) *Registry {
	if r == nil {
		return nil
	}
	return &Registry{Host: r.Host, PlainHTTP: r.PlainHTTP, Push: r.Push, Pull: r.Pull}
}
