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

package planwatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harnessdev/harness/internal/state"
	"github.com/harnessdev/harness/internal/trajectory"
)

func TestWatch_ReimportsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(planPath, []byte(`{"tasks":[{"id":"a"}]}`), 0644))

	traj := trajectory.New(filepath.Join(dir, "trajectory.jsonl"))
	mgr, err := state.New(filepath.Join(dir, "state.json"), traj)
	require.NoError(t, err)

	w, err := New(planPath, mgr, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Watch(ctx)

	require.NoError(t, os.WriteFile(planPath, []byte(`{"tasks":[{"id":"a"},{"id":"b","dependencies":["a"]}]}`), 0644))

	require.Eventually(t, func() bool {
		ws := mgr.GetState()
		_, ok := ws.Tasks["b"]
		return ok
	}, 2*time.Second, 20*time.Millisecond)

	ws := mgr.GetState()
	assert.Len(t, ws.Tasks, 2)
}
