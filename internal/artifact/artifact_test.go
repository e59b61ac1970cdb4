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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootRejectsBothConfigured(t *testing.T) {
	_, err := NewRoot(Config{Filesystem: "/tmp/x", Registry: &RegistryConfig{Host: "registry.example.com/repo"}})
	assert.Error(t, err)
}

func TestNewRootRejectsNeitherConfigured(t *testing.T) {
	_, err := NewRoot(Config{})
	assert.Error(t, err)
}

func TestNewFilesystemCreatesRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	fs, err := NewFilesystem(dir)
	require.NoError(t, err)

	resolved, err := fs.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, dir, resolved)

	withOverride, err := fs.Resolve("train")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "train"), withOverride)
}

func TestNewRegistryRejectsEmptyHost(t *testing.T) {
	_, err := NewRegistry(RegistryConfig{})
	assert.Error(t, err)
}

func TestNewRegistryParsesHost(t *testing.T) {
	reg, err := NewRegistry(RegistryConfig{Host: "registry.example.com/workflows/train"})
	require.NoError(t, err)
	assert.NotNil(t, reg)
}

func TestRegistryResolveFallsBackThroughChain(t *testing.T) {
	reg, err := NewRegistry(RegistryConfig{
		Host: "registry.example.com/workflows",
		Push: "registry.example.com/workflows/push-default",
	})
	require.NoError(t, err)

	withOverride, err := reg.Resolve("registry.example.com/workflows/train")
	require.NoError(t, err)
	assert.Contains(t, withOverride, "train")

	withoutOverride, err := reg.Resolve("")
	require.NoError(t, err)
	assert.Contains(t, withoutOverride, "push-default")
}

func TestRegistryPullReferenceFallsBackToPush(t *testing.T) {
	reg, err := NewRegistry(RegistryConfig{Host: "registry.example.com/workflows"})
	require.NoError(t, err)

	ref, err := reg.PullReference("")
	require.NoError(t, err)
	assert.Contains(t, ref, "registry.example.com/workflows")
}

func TestPassThroughRendererReturnsScriptUnchanged(t *testing.T) {
	out, err := PassThroughRenderer{}.Render("#!/bin/bash\necho hi", "/any/root")
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/bash\necho hi", out)
}
