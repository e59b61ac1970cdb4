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

package artifact

import (
	"github.com/google/go-containerregistry/pkg/name"

	jobflowerrors "github.com/nodeflow/jobflow/pkg/errors"
)

// Registry is an OCI registry artifact root. Host is validated at
// construction time by parsing it into a repository reference;
// network reachability is left to the first actual push/pull, not
// checked eagerly here.
type Registry struct {
	host      string
	plainHTTP bool
	push      string
	pull      string
}

// NewRegistry validates cfg.Host parses as an OCI repository reference
// and returns the resolved Registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Host == "" {
		return nil, &jobflowerrors.ValidationError{Field: "registry.host", Message: "must not be empty"}
	}

	opts := []name.Option{name.WeakValidation}
	if cfg.PlainHTTP {
		opts = append(opts, name.Insecure)
	}
	if _, err := name.ParseReference(cfg.Host, opts...); err != nil {
		return nil, jobflowerrors.Wrapf(err, "parsing registry host %q", cfg.Host)
	}

	return &Registry{host: cfg.Host, plainHTTP: cfg.PlainHTTP, push: cfg.Push, pull: cfg.Pull}, nil
}

// Resolve returns the push reference a step should use: its own
// override, falling back to the registry-level push override, falling
// back to the bare host.
func (r *Registry) Resolve(stepOverride string) (string, error) {
	ref := stepOverride
	if ref == "" {
		ref = r.push
	}
	if ref == "" {
		ref = r.host
	}

	opts := []name.Option{name.WeakValidation}
	if r.plainHTTP {
		opts = append(opts, name.Insecure)
	}
	parsed, err := name.ParseReference(ref, opts...)
	if err != nil {
		return "", jobflowerrors.Wrapf(err, "resolving registry reference %q", ref)
	}
	return parsed.Name(), nil
}

// PullReference resolves the reference a step should pull a prior
// step's pushed artifact from: its own override, falling back to the
// registry-level pull override, falling back to Resolve's push chain.
func (r *Registry) PullReference(stepOverride string) (string, error) {
	if stepOverride != "" {
		return r.Resolve(stepOverride)
	}
	if r.pull != "" {
		return r.Resolve(r.pull)
	}
	return r.Resolve("")
}
