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

// Package task defines the DAG data model shared by the state manager,
// trajectory log, and RPC layer: tasks, their status lifecycle, the
// workflow they compose into, and the plan description used to import one.
package task

import "time"

// Status is the closed set of task lifecycle states. It is never
// round-tripped as a free-form string after load: Validate rejects
// anything outside this set.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether a status cannot transition further.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the five recognized statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// DefaultTimeoutSeconds is applied to tasks that don't specify one.
const DefaultTimeoutSeconds = 600

// Task is a single DAG node. Dependencies are an ordered set of task ids;
// ordering only matters for deterministic JSON round-trips, not semantics.
type Task struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	Dependencies []string `json:"dependencies,omitempty"`

	ClaimedBy string `json:"claimed_by,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	TimeoutSeconds int `json:"timeout_seconds"`

	Role         string `json:"role,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// Clone returns a deep copy of t, safe to hand to a caller outside the
// state manager's lock.
func (t Task) Clone() Task {
	cp := t
	if t.Dependencies != nil {
		cp.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		cp.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		cp.CompletedAt = &ts
	}
	return cp
}

// Validate checks the structural invariants on a single task in
// isolation (it cannot check that dependency ids exist or that the
// graph is acyclic; that's the caller's job, since it's a property of
// the whole workflow).
func (t Task) Validate() error {
	if t.ID == "" {
		return &ValidationError{Field: "id", Message: "task id must not be empty"}
	}
	if !t.Status.Valid() {
		return &ValidationError{Field: "status", Message: "unrecognized status: " + string(t.Status)}
	}
	switch t.Status {
	case StatusPending:
		if t.ClaimedBy != "" || t.StartedAt != nil {
			return &ValidationError{Field: "status", Message: "pending task must not have claimed_by or started_at"}
		}
	case StatusRunning:
		if t.ClaimedBy == "" || t.StartedAt == nil {
			return &ValidationError{Field: "status", Message: "running task must have claimed_by and started_at"}
		}
	case StatusCompleted, StatusFailed, StatusSkipped:
		if t.CompletedAt == nil {
			return &ValidationError{Field: "status", Message: "terminal task must have completed_at"}
		}
	}
	return nil
}

// ValidationError reports a structural violation of the Task invariants.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// MetadataValue is a tagged-union scalar stored in a WorkflowState's open
// metadata bag. Exactly one field is set; String/Bool/Number determine
// which, matching the JSON types the bag accepts (string, bool, number).
// Persistence is symmetric: MarshalJSON/UnmarshalJSON round-trip the
// same representation the value was loaded with.
type MetadataValue struct {
	str    string
	num    float64
	b      bool
	kind   metadataKind
}

type metadataKind int

const (
	metadataString metadataKind = iota
	metadataNumber
	metadataBool
	metadataNull
)

// NewStringMetadata wraps a string scalar.
func NewStringMetadata(s string) MetadataValue { return MetadataValue{str: s, kind: metadataString} }

// NewNumberMetadata wraps a numeric scalar.
func NewNumberMetadata(n float64) MetadataValue { return MetadataValue{num: n, kind: metadataNumber} }

// NewBoolMetadata wraps a boolean scalar.
func NewBoolMetadata(b bool) MetadataValue { return MetadataValue{b: b, kind: metadataBool} }

// String returns the wrapped value and whether it was a string.
func (v MetadataValue) String() (string, bool) {
	return v.str, v.kind == metadataString
}

// Number returns the wrapped value and whether it was a number.
func (v MetadataValue) Number() (float64, bool) {
	return v.num, v.kind == metadataNumber
}

// Bool returns the wrapped value and whether it was a boolean.
func (v MetadataValue) Bool() (bool, bool) {
	return v.b, v.kind == metadataBool
}

// WorkflowState is the full state of a project's DAG: all tasks plus an
// open bag of scalar metadata (current_phase, last_commit, and so on).
// One WorkflowState exists per project, persisted as a single JSON
// document at <project>/.harness/state.json.
type WorkflowState struct {
	// Tasks preserves insertion order for deterministic claim
	// selection; the map alone cannot, so TaskOrder tracks it.
	Tasks    map[string]Task `json:"-"`
	TaskOrder []string       `json:"-"`

	Goal     string                   `json:"goal,omitempty"`
	Metadata map[string]MetadataValue `json:"-"`
}

// NewWorkflowState returns an empty workflow.
func NewWorkflowState() *WorkflowState {
	return &WorkflowState{
		Tasks:    make(map[string]Task),
		Metadata: make(map[string]MetadataValue),
	}
}

// Clone returns a deep copy suitable for returning from get_state.
func (w *WorkflowState) Clone() *WorkflowState {
	cp := NewWorkflowState()
	cp.Goal = w.Goal
	cp.TaskOrder = append([]string(nil), w.TaskOrder...)
	for id, t := range w.Tasks {
		cp.Tasks[id] = t.Clone()
	}
	for k, v := range w.Metadata {
		cp.Metadata[k] = v
	}
	return cp
}

// OrderedTasks returns tasks in insertion order.
func (w *WorkflowState) OrderedTasks() []Task {
	out := make([]Task, 0, len(w.TaskOrder))
	for _, id := range w.TaskOrder {
		out = append(out, w.Tasks[id])
	}
	return out
}

// Dependents returns, for every task id, the ids that directly depend
// on it. Computed on demand rather than stored, since the graph is
// small and mutations are rare relative to reads.
func (w *WorkflowState) Dependents() map[string][]string {
	out := make(map[string][]string, len(w.Tasks))
	for _, id := range w.TaskOrder {
		t := w.Tasks[id]
		for _, dep := range t.Dependencies {
			out[dep] = append(out[dep], id)
		}
	}
	return out
}

// TrajectoryEvent is a single append-only record in the trajectory log.
type TrajectoryEvent struct {
	Event      string         `json:"event"`
	TaskID     string         `json:"task_id,omitempty"`
	Timestamp  float64        `json:"timestamp"`
	WallTime   time.Time      `json:"wall_time"`
	DurationMs *int64         `json:"duration_ms,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Plan is the DAG description accepted by plan_import.
type Plan struct {
	Goal  string     `json:"goal,omitempty"`
	Tasks []PlanTask `json:"tasks"`
}

// PlanTask is a single task entry within a Plan.
type PlanTask struct {
	ID              string   `json:"id"`
	Description     string   `json:"description,omitempty"`
	Dependencies    []string `json:"dependencies,omitempty"`
	Role            string   `json:"role,omitempty"`
	Instructions    string   `json:"instructions,omitempty"`
	TimeoutSeconds  int      `json:"timeout_seconds,omitempty"`
}
