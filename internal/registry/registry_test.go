// Copyright 2026 The Harness Authors
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

package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashProject_Deterministic(t *testing.T) {
	a := HashProject("/home/user/project")
	b := HashProject("/home/user/project")
	assert.Equal(t, a, b)
	assert.Len(t, a, hashLen)
}

func TestHashProject_DifferentPathsDifferentHash(t *testing.T) {
	a := HashProject("/home/user/project-a")
	b := HashProject("/home/user/project-b")
	assert.NotEqual(t, a, b)
}

func TestResolve_FirstContactPersists(t *testing.T) {
	dir := t.TempDir()
	reg := New(filepath.Join(dir, "registry.json"))

	entry, err := reg.Resolve("/home/user/proj", filepath.Join(dir, "sockets"), filepath.Join(dir, "proj", ".harness"))
	require.NoError(t, err)
	assert.Equal(t, "/home/user/proj", entry.ProjectPath)
	assert.Contains(t, entry.SocketPath, HashProject("/home/user/proj"))

	again, err := reg.Resolve("/home/user/proj", filepath.Join(dir, "sockets"), filepath.Join(dir, "proj", ".harness"))
	require.NoError(t, err)
	assert.Equal(t, entry, again)
}

func TestList_ReturnsAllRegistered(t *testing.T) {
	dir := t.TempDir()
	reg := New(filepath.Join(dir, "registry.json"))

	_, err := reg.Resolve("/a", dir, dir)
	require.NoError(t, err)
	_, err = reg.Resolve("/b", dir, dir)
	require.NoError(t, err)

	entries, err := reg.List()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
