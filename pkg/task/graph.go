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


// DetectCycle runs a depth-first search with a recursion stack over the
// dependency graph of w and returns the first back-edge it finds as a
// concrete cycle path (e.g. ["a", "b", "a"]). Returns nil if the graph
// is acyclic. O(V+E).
func (w *WorkflowState) DetectCycle() []string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)

	state := make(map[string]int, len(w.TaskOrder))
	var path []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = inStack
		path = append(path, id)

		t, ok := w.Tasks[id]
		if ok {
			for _, dep := range t.Dependencies {
				switch state[dep] {
				case unvisited:
					if cycle := visit(dep); cycle != nil {
						return cycle
					}
				case inStack:
					cycle := append([]string(nil), path...)
					cycle = append(cycle, dep)
					start := 0
					for i, n := range cycle {
						if n == dep {
							start = i
							break
						}
					}
					return cycle[start:]
				}
			}
		}

		path = path[:len(path)-1]
		state[id] = done
		return nil
	}

	for _, id := range w.TaskOrder {
		if state[id] == unvisited {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// ValidateDependencies checks that every dependency id listed by any
// task refers to a task that exists in the same workflow.
func (w *WorkflowState) ValidateDependencies() error {
	for _, id := range w.TaskOrder {
		t := w.Tasks[id]
		for _, dep := range t.Dependencies {
			if _, ok := w.Tasks[dep]; !ok {
				return &ValidationError{
					Field:   "dependencies",
					Message: "task " + id + " depends on unknown task " + dep,
				}
			}
		}
	}
	return nil
}

// Claimable returns the ids of pending tasks whose dependencies are all
// completed, in stable selection order: insertion order of the workflow
// mapping. Ids are unique per workflow, so the lexicographic tie-break
// the selection rule allows for never actually applies.
func (w *WorkflowState) Claimable() []string {
	var out []string
	for _, id := range w.TaskOrder {
		t := w.Tasks[id]
		if t.Status != StatusPending {
			continue
		}
		allDepsCompleted := true
		for _, dep := range t.Dependencies {
			if w.Tasks[dep].Status != StatusCompleted {
				allDepsCompleted = false
				break
			}
		}
		if allDepsCompleted {
			out = append(out, id)
		}
	}
	return out
}

// TransitiveDependents returns every task id that depends, directly or
// transitively, on rootID.
func (w *WorkflowState) TransitiveDependents(rootID string) []string {
	dependents := w.Dependents()
	seen := make(map[string]bool)
	var out []string

	var visit func(id string)
	visit = func(id string) {
		for _, dep := range dependents[id] {
			if !seen[dep] {
				seen[dep] = true
				out = append(out, dep)
				visit(dep)
			}
		}
	}
	visit(rootID)
	return out
}
