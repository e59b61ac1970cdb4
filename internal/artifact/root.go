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

// Package artifact resolves the one artifact root a workflow pushes
// and pulls step payloads against: either an OCI registry or a local
// filesystem directory, never both.
package artifact

import (
	jobflowerrors "github.com/nodeflow/jobflow/pkg/errors"
)

// Root is the resolved artifact root a workflow was configured with.
type Root interface {
	// Resolve returns the push/pull reference a step should use,
	// applying any per-step override over the workflow-level default.
	Resolve(stepOverride string) (string, error)
}

// Config describes the two mutually exclusive ways to configure a
// Root, mirroring internal/config.Config's Filesystem/Registry fields.
type Config struct {
	Filesystem string
	Registry   *RegistryConfig
}

// RegistryConfig is an OCI registry root plus its push/pull override
// chain (spec.md §3's registry_host / registry_plain_http fallback).
type RegistryConfig struct {
	Host      string
	PlainHTTP bool
	Push      string
	Pull      string
}

// NewRoot validates cfg and returns the configured Root. Exactly one of
// Filesystem or Registry must be set.
func NewRoot(cfg Config) (Root, error) {
	switch {
	case cfg.Filesystem != "" && cfg.Registry != nil:
		return nil, &jobflowerrors.ValidationError{
			Field:   "filesystem/registry",
			Message: "a workflow may configure a filesystem root or a registry root, not both",
		}
	case cfg.Filesystem != "":
		return NewFilesystem(cfg.Filesystem)
	case cfg.Registry != nil:
		return NewRegistry(*cfg.Registry)
	default:
		return nil, &jobflowerrors.ValidationError{
			Field:   "filesystem/registry",
			Message: "a workflow must configure either a filesystem root or a registry root",
		}
	}
}
