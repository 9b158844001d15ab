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

// Package state owns the crash-resilient DAG state for a single project:
// loading it from disk, importing new plans, and the claim/complete/fail
// transitions workers drive it through. Every mutation is written to
// disk before the manager returns, using the same write-temp-fsync-rename
// sequence the project registry uses.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	pkgerrors "github.com/harnessdev/harness/pkg/errors"
	"github.com/harnessdev/harness/pkg/task"

	"github.com/harnessdev/harness/internal/fsutil"
	"github.com/harnessdev/harness/internal/trajectory"
)

// Manager owns a project's WorkflowState and keeps it durable. Its mutex
// is the highest-priority lock in the daemon's lock order: a goroutine
// holding Manager.mu must never then try to acquire a git or execution
// lock, since those are held by callers that may themselves be waiting
// on Manager.mu. Log appends happen after the state lock is released
// ("release-then-log"), so a slow disk on the trajectory file never
// blocks other goroutines from reading or mutating task state.
type Manager struct {
	mu    sync.Mutex
	path  string
	state *task.WorkflowState
	log   *trajectory.Log

	now func() time.Time
}

// New returns a Manager persisting to statePath, logging transitions to
// traj, loading any existing state.json already there. A pre-existing
// state.json is validated exactly as a freshly imported plan would be:
// every task's structural invariants, every dependency reference, and
// the absence of a cycle. A file a daemon restart finds corrupted, hand
// edited into an inconsistent shape, or left behind by an older version
// fails New outright rather than loading silently.
func New(statePath string, traj *trajectory.Log) (*Manager, error) {
	m := &Manager{
		path: statePath,
		log:  traj,
		now:  time.Now,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = task.NewWorkflowState()
			return nil
		}
		return &pkgerrors.PersistenceError{Path: m.path, Op: "read", Cause: err}
	}

	var ws task.WorkflowState
	if err := json.Unmarshal(data, &ws); err != nil {
		return &pkgerrors.PersistenceError{Path: m.path, Op: "decode", Cause: err}
	}

	for _, t := range ws.OrderedTasks() {
		if err := t.Validate(); err != nil {
			return &pkgerrors.ValidationError{Field: "tasks." + t.ID, Message: err.Error()}
		}
	}
	if err := ws.ValidateDependencies(); err != nil {
		return &pkgerrors.ValidationError{Field: "dependencies", Message: err.Error()}
	}
	if cycle := ws.DetectCycle(); cycle != nil {
		return &pkgerrors.CycleError{Path: cycle}
	}

	m.state = &ws
	return nil
}

// persist writes the current state to disk. Callers must hold m.mu.
func (m *Manager) persist() error {
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return &pkgerrors.PersistenceError{Path: m.path, Op: "encode", Cause: err}
	}
	if err := fsutil.WriteFileAtomic(m.path, data, 0600); err != nil {
		return &pkgerrors.PersistenceError{Path: m.path, Op: "write", Cause: err}
	}
	return nil
}

// logEvent appends a trajectory event without holding m.mu. Called after
// a mutation's lock has already been released.
func (m *Manager) logEvent(event task.TrajectoryEvent) {
	if m.log == nil {
		return
	}
	now := m.now()
	event.WallTime = now
	event.Timestamp = float64(now.UnixNano()) / 1e9
	if err := m.log.Append(event); err != nil {
		// The trajectory log is diagnostic, not authoritative; state.json
		// is already durable by the time this runs, so a logging failure
		// is reported but never rolled back into the state transition.
		fmt.Fprintf(os.Stderr, "harness: trajectory append failed: %v\n", err)
	}
}

// GetState returns a deep copy of the current workflow state.
func (m *Manager) GetState() *task.WorkflowState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// ImportPlan replaces the current workflow with p, rejecting it outright
// if its dependency graph doesn't validate or contains a cycle. A
// successful import is all-or-nothing: either every task lands in the
// new state, or none of them do and the previous state is untouched.
func (m *Manager) ImportPlan(p task.Plan) (*task.WorkflowState, error) {
	ws := task.NewWorkflowState()
	ws.Goal = p.Goal

	for _, pt := range p.Tasks {
		if pt.ID == "" {
			return nil, &pkgerrors.ValidationError{Field: "tasks.id", Message: "task id must not be empty"}
		}
		if _, dup := ws.Tasks[pt.ID]; dup {
			return nil, &pkgerrors.ValidationError{Field: "tasks.id", Message: "duplicate task id: " + pt.ID}
		}
		timeout := pt.TimeoutSeconds
		if timeout <= 0 {
			timeout = task.DefaultTimeoutSeconds
		}
		t := task.Task{
			ID:             pt.ID,
			Description:    pt.Description,
			Status:         task.StatusPending,
			Dependencies:   append([]string(nil), pt.Dependencies...),
			TimeoutSeconds: timeout,
			Role:           pt.Role,
			Instructions:   pt.Instructions,
		}
		ws.Tasks[t.ID] = t
		ws.TaskOrder = append(ws.TaskOrder, t.ID)
	}

	if err := ws.ValidateDependencies(); err != nil {
		return nil, &pkgerrors.ValidationError{Field: "dependencies", Message: err.Error()}
	}
	if cycle := ws.DetectCycle(); cycle != nil {
		return nil, &pkgerrors.CycleError{Path: cycle}
	}

	m.mu.Lock()
	m.state = ws
	err := m.persist()
	snapshot := m.state.Clone()
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	m.logEvent(task.TrajectoryEvent{Event: "plan_imported", Payload: map[string]any{"task_count": len(ws.TaskOrder)}})
	return snapshot, nil
}

// ResetPlan discards the current workflow entirely, returning the daemon
// to the empty state a freshly created project starts in.
func (m *Manager) ResetPlan() (*task.WorkflowState, error) {
	m.mu.Lock()
	m.state = task.NewWorkflowState()
	err := m.persist()
	snapshot := m.state.Clone()
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	m.logEvent(task.TrajectoryEvent{Event: "plan_reset"})
	return snapshot, nil
}

// CheckState reports whether every task the workflow knows about has
// reached a terminal status, the condition hook-style callers use to
// decide whether a workflow is done.
func (m *Manager) CheckState() (ok bool, reason string) {
	snap := m.GetState()
	for _, t := range snap.OrderedTasks() {
		if !t.Status.Terminal() {
			return false, fmt.Sprintf("task %s is not terminal (status=%s)", t.ID, t.Status)
		}
	}
	return true, ""
}

// CheckCommit reports whether headCommit differs from the last_commit
// recorded in workflow metadata, the condition a post-commit hook uses
// to decide whether new work landed since it last looked.
func (m *Manager) CheckCommit(headCommit string) (ok bool, reason string) {
	snap := m.GetState()
	recorded, has := snap.Metadata["last_commit"]
	if !has {
		return true, ""
	}
	last, _ := recorded.String()
	if last == headCommit {
		return false, "HEAD matches the recorded last_commit"
	}
	return true, ""
}

// UpdateState merges metadata fields into the current state. Tasks
// themselves are never touched by this call; it exists for workflow-level
// bookkeeping like current_phase or last_commit.
func (m *Manager) UpdateState(metadata map[string]task.MetadataValue) (*task.WorkflowState, error) {
	m.mu.Lock()
	for k, v := range metadata {
		m.state.Metadata[k] = v
	}
	err := m.persist()
	snapshot := m.state.Clone()
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return snapshot, nil
}
