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

package state

import (
	"fmt"
	"time"

	pkgerrors "github.com/harnessdev/harness/pkg/errors"
	"github.com/harnessdev/harness/pkg/task"
)

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// ClaimTask marks any task whose lease has expired as failed with reason
// "timeout", propagating skips to its dependents, then hands workerID the
// first claimable task in selection order. Calling ClaimTask again with
// the same workerID against a task it already holds renews the lease
// instead of failing, so a worker that calls claim_task to check on its
// own in-flight task never gets an error for doing so.
func (m *Manager) ClaimTask(workerID string) (*task.Task, error) {
	m.mu.Lock()

	if renewed := m.renewLease(workerID); renewed != nil {
		err := m.persist()
		m.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return renewed, nil
	}

	timedOut := m.sweepTimeouts()

	var claimed *task.Task
	for _, id := range m.state.Claimable() {
		t := m.state.Tasks[id]
		t.Status = task.StatusRunning
		t.ClaimedBy = workerID
		now := m.now()
		t.StartedAt = &now
		m.state.Tasks[id] = t
		cp := t.Clone()
		claimed = &cp
		break
	}

	err := m.persist()
	m.mu.Unlock()

	for _, ev := range timedOut {
		m.logEvent(ev)
	}
	if err != nil {
		return nil, err
	}
	if claimed != nil {
		m.logEvent(task.TrajectoryEvent{Event: "task_claimed", TaskID: claimed.ID, Reason: workerID})
	}
	return claimed, nil
}

// renewLease finds the task, if any, that workerID already holds and
// refreshes its started_at so the timeout sweep doesn't steal it out
// from under a worker that is still actively working on it. Returns nil
// if workerID holds nothing. Callers must hold m.mu.
func (m *Manager) renewLease(workerID string) *task.Task {
	for _, id := range m.state.TaskOrder {
		t := m.state.Tasks[id]
		if t.Status != task.StatusRunning || t.ClaimedBy != workerID {
			continue
		}
		now := m.now()
		t.StartedAt = &now
		m.state.Tasks[id] = t
		cp := t.Clone()
		return &cp
	}
	return nil
}

// sweepTimeouts moves every running task whose deadline has passed back
// to failed, cascading skips to its transitive dependents, and returns
// the trajectory events to log once m.mu is released. Callers must hold
// m.mu.
func (m *Manager) sweepTimeouts() []task.TrajectoryEvent {
	var events []task.TrajectoryEvent
	now := m.now()

	for _, id := range m.state.TaskOrder {
		t := m.state.Tasks[id]
		if t.Status != task.StatusRunning || t.StartedAt == nil {
			continue
		}
		deadline := t.StartedAt.Add(secondsToDuration(t.TimeoutSeconds))
		if now.Before(deadline) {
			continue
		}

		t.Status = task.StatusFailed
		t.CompletedAt = &now
		t.Reason = "timeout"
		m.state.Tasks[id] = t
		events = append(events, task.TrajectoryEvent{Event: "task_timed_out", TaskID: id})
		events = append(events, m.cascadeSkip(id)...)
	}
	return events
}

// cascadeSkip marks every transitive dependent of failedID as skipped.
// Callers must hold m.mu.
func (m *Manager) cascadeSkip(failedID string) []task.TrajectoryEvent {
	var events []task.TrajectoryEvent
	now := m.now()
	reason := fmt.Sprintf("dependency_failed:%s", failedID)

	for _, id := range m.state.TransitiveDependents(failedID) {
		t := m.state.Tasks[id]
		if t.Status.Terminal() {
			continue
		}
		t.Status = task.StatusSkipped
		t.CompletedAt = &now
		t.Reason = reason
		m.state.Tasks[id] = t
		events = append(events, task.TrajectoryEvent{Event: "task_skipped", TaskID: id, Reason: reason})
	}
	return events
}

// CompleteTask transitions a task a worker holds the lease on to
// completed. The caller must currently hold the lease (ClaimedBy must
// match workerID); otherwise this is a TransitionError, since completing
// someone else's task would silently discard whatever that worker is
// still doing.
func (m *Manager) CompleteTask(taskID, workerID string) (*task.Task, error) {
	m.mu.Lock()

	t, ok := m.state.Tasks[taskID]
	if !ok {
		m.mu.Unlock()
		return nil, &pkgerrors.NotFoundError{Resource: "task", ID: taskID}
	}
	if t.Status != task.StatusRunning || t.ClaimedBy != workerID {
		m.mu.Unlock()
		return nil, &pkgerrors.TransitionError{TaskID: taskID, FromStatus: string(t.Status), Reason: "task is not running under this worker's lease"}
	}

	now := m.now()
	t.Status = task.StatusCompleted
	t.CompletedAt = &now
	m.state.Tasks[taskID] = t
	cp := t.Clone()

	err := m.persist()
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	m.logEvent(task.TrajectoryEvent{Event: "task_completed", TaskID: taskID})
	return &cp, nil
}

// FailTask transitions a task a worker holds the lease on to failed and
// cascades a skip to every task that transitively depends on it.
func (m *Manager) FailTask(taskID, workerID, reason string) (*task.Task, error) {
	m.mu.Lock()

	t, ok := m.state.Tasks[taskID]
	if !ok {
		m.mu.Unlock()
		return nil, &pkgerrors.NotFoundError{Resource: "task", ID: taskID}
	}
	if t.Status != task.StatusRunning || t.ClaimedBy != workerID {
		m.mu.Unlock()
		return nil, &pkgerrors.TransitionError{TaskID: taskID, FromStatus: string(t.Status), Reason: "task is not running under this worker's lease"}
	}

	now := m.now()
	t.Status = task.StatusFailed
	t.CompletedAt = &now
	t.Reason = reason
	m.state.Tasks[taskID] = t
	cp := t.Clone()

	skipEvents := m.cascadeSkip(taskID)

	err := m.persist()
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	m.logEvent(task.TrajectoryEvent{Event: "task_failed", TaskID: taskID, Reason: reason})
	for _, ev := range skipEvents {
		m.logEvent(ev)
	}
	return &cp, nil
}
