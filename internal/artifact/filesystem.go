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
	"os"
	"path/filepath"

	jobflowerrors "github.com/nodeflow/jobflow/pkg/errors"
)

// Filesystem is a local-directory artifact root. Steps resolve to a
// subdirectory of root named after their override, or root itself when
// no override is given.
type Filesystem struct {
	root string
}

// NewFilesystem resolves path to an absolute directory, creating it
// (and any parents) if it doesn't already exist.
func NewFilesystem(path string) (*Filesystem, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, jobflowerrors.Wrapf(err, "resolving filesystem root %q", path)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, jobflowerrors.Wrapf(err, "creating filesystem root %q", abs)
	}
	return &Filesystem{root: abs}, nil
}

// Resolve returns root/stepOverride, or root unchanged when
// stepOverride is empty.
func (f *Filesystem) Resolve(stepOverride string) (string, error) {
	if stepOverride == "" {
		return f.root, nil
	}
	return filepath.Join(f.root, stepOverride), nil
}
