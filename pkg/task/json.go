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

package task

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the wrapped scalar using its native JSON type, so
// the metadata bag round-trips symmetrically: a number stays a number, a
// bool stays a bool, a string stays a string.
func (v MetadataValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case metadataString:
		return json.Marshal(v.str)
	case metadataNumber:
		return json.Marshal(v.num)
	case metadataBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(nil)
	}
}

// UnmarshalJSON decodes a scalar JSON value into its matching variant.
// Unknown-field tolerance for the rest of the bag is handled by the
// caller (WorkflowState's custom UnmarshalJSON), not here.
func (v *MetadataValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case string:
		*v = NewStringMetadata(val)
	case float64:
		*v = NewNumberMetadata(val)
	case bool:
		*v = NewBoolMetadata(val)
	case nil:
		*v = MetadataValue{kind: metadataNull}
	default:
		return fmt.Errorf("metadata value must be a scalar (string, number, bool), got %T", raw)
	}
	return nil
}

// workflowStateWire is the on-disk shape of a WorkflowState: tasks as an
// ordered array (so insertion order survives a round trip) plus an open
// bag for everything that isn't a recognized top-level field.
type workflowStateWire struct {
	Goal  string `json:"goal,omitempty"`
	Tasks []Task `json:"tasks"`
}

// MarshalJSON flattens Tasks/TaskOrder into an ordered array and folds
// Metadata into top-level fields, tolerating whatever keys the bag holds.
func (w *WorkflowState) MarshalJSON() ([]byte, error) {
	wire := workflowStateWire{
		Goal:  w.Goal,
		Tasks: w.OrderedTasks(),
	}

	base, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}

	for k, v := range w.Metadata {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshaling metadata field %q: %w", k, err)
		}
		merged[k] = raw
	}

	return json.Marshal(merged)
}

// UnmarshalJSON reconstructs Tasks/TaskOrder from the ordered array and
// treats every other top-level key as a metadata scalar, tolerating
// fields this version of the type doesn't know about.
func (w *WorkflowState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if w.Tasks == nil {
		w.Tasks = make(map[string]Task)
	}
	if w.Metadata == nil {
		w.Metadata = make(map[string]MetadataValue)
	}

	if goalRaw, ok := raw["goal"]; ok {
		if err := json.Unmarshal(goalRaw, &w.Goal); err != nil {
			return fmt.Errorf("decoding goal: %w", err)
		}
	}
	delete(raw, "goal")

	if tasksRaw, ok := raw["tasks"]; ok {
		var tasks []Task
		if err := json.Unmarshal(tasksRaw, &tasks); err != nil {
			return fmt.Errorf("decoding tasks: %w", err)
		}
		w.TaskOrder = w.TaskOrder[:0]
		for _, t := range tasks {
			w.Tasks[t.ID] = t
			w.TaskOrder = append(w.TaskOrder, t.ID)
		}
	}
	delete(raw, "tasks")

	for k, v := range raw {
		var mv MetadataValue
		if err := json.Unmarshal(v, &mv); err != nil {
			return fmt.Errorf("decoding metadata field %q: %w", k, err)
		}
		w.Metadata[k] = mv
	}

	return nil
}
