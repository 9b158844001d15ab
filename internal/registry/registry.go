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

// Package registry maps an absolute project path to the stable set of
// files a daemon instance for that project uses: socket, pidfile, state,
// and trajectory log. The mapping is content-addressed, so the same
// project path always resolves to the same socket without any
// coordination beyond hashing.
package registry

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/harnessdev/harness/internal/fsutil"
)

// hashLen is the number of hex characters taken from the blake3 digest
// to form a project's short id. 12 hex chars (48 bits) makes collision
// between two projects on one host implausible while keeping socket
// paths short enough to fit AF_UNIX's path length limit.
const hashLen = 12

// HashProject returns the first 12 hex characters of the blake3 digest
// of absPath. Identical absolute paths always hash to the same value.
func HashProject(absPath string) string {
	sum := blake3.Sum256([]byte(absPath))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// Entry records the file layout for one registered project.
type Entry struct {
	ProjectPath    string `json:"project_path"`
	SocketPath     string `json:"socket_path"`
	PIDFilePath    string `json:"pid_file_path"`
	StateFilePath  string `json:"state_file_path"`
	TrajectoryPath string `json:"trajectory_path"`
}

// document is the on-disk shape of the registry file: hash -> Entry.
type document struct {
	Projects map[string]Entry `json:"projects"`
}

// Registry persists the project->files mapping at
// <user_runtime_dir>/registry.json, updated atomically on first contact
// from a new project.
type Registry struct {
	mu   sync.Mutex
	path string
}

// New returns a registry backed by the file at path.
func New(path string) *Registry {
	return &Registry{path: path}
}

// Resolve returns the Entry for projectPath, creating and persisting one
// if this is the first time the project has been seen. socketDir and
// projectDir are used to derive the entry's paths (socketDir for the
// socket, projectDir for the project's own .harness/ files).
func (r *Registry) Resolve(projectPath, socketDir, projectDir string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return Entry{}, err
	}

	hash := HashProject(projectPath)
	if existing, ok := doc.Projects[hash]; ok {
		return existing, nil
	}

	entry := Entry{
		ProjectPath:    projectPath,
		SocketPath:     filepath.Join(socketDir, hash+".sock"),
		PIDFilePath:    filepath.Join(projectDir, "daemon.pid"),
		StateFilePath:  filepath.Join(projectDir, "state.json"),
		TrajectoryPath: filepath.Join(projectDir, "trajectory.jsonl"),
	}

	doc.Projects[hash] = entry
	if err := r.save(doc); err != nil {
		return Entry{}, err
	}

	return entry, nil
}

// List returns every project currently registered.
func (r *Registry) List() ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(doc.Projects))
	for _, e := range doc.Projects {
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *Registry) load() (*document, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &document{Projects: make(map[string]Entry)}, nil
		}
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding registry: %w", err)
	}
	if doc.Projects == nil {
		doc.Projects = make(map[string]Entry)
	}
	return &doc, nil
}

func (r *Registry) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	return fsutil.WriteFileAtomic(r.path, data, 0600)
}
