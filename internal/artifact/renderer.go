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

// ScriptRenderer turns a step's static script body into the entrypoint
// text actually shipped to its job, given the artifact root it
// resolved to. Rendering the script itself is out of scope; the
// default PassThroughRenderer ships the script unmodified.
type ScriptRenderer interface {
	Render(script string, root string) (string, error)
}

// PassThroughRenderer returns the script unmodified, ignoring root.
type PassThroughRenderer struct{}

func (PassThroughRenderer) Render(script string, _ string) (string, error) {
	return script, nil
}
