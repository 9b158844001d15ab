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

package trajectory

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harnessdev/harness/pkg/task"
)

func TestAppendAndTail(t *testing.T) {
	dir := t.TempDir()
	log := New(filepath.Join(dir, "trajectory.jsonl"))

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Append(task.TrajectoryEvent{Event: fmt.Sprintf("event_%d", i)}))
	}

	events, err := log.Tail(3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "event_2", events[0].Event)
	assert.Equal(t, "event_3", events[1].Event)
	assert.Equal(t, "event_4", events[2].Event)
}

func TestTail_MoreThanAvailable(t *testing.T) {
	dir := t.TempDir()
	log := New(filepath.Join(dir, "trajectory.jsonl"))
	require.NoError(t, log.Append(task.TrajectoryEvent{Event: "only"}))

	events, err := log.Tail(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "only", events[0].Event)
}

func TestTail_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	log := New(filepath.Join(dir, "trajectory.jsonl"))

	events, err := log.Tail(5)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTail_MissingFile(t *testing.T) {
	log := New(filepath.Join(t.TempDir(), "does-not-exist.jsonl"))
	events, err := log.Tail(5)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTail_SpansMultipleBlocks(t *testing.T) {
	dir := t.TempDir()
	log := New(filepath.Join(dir, "trajectory.jsonl"))

	for i := 0; i < 500; i++ {
		require.NoError(t, log.Append(task.TrajectoryEvent{Event: fmt.Sprintf("e%d", i)}))
	}

	events, err := log.Tail(10)
	require.NoError(t, err)
	require.Len(t, events, 10)
	assert.Equal(t, "e499", events[9].Event)
	assert.Equal(t, "e490", events[0].Event)
}

func TestTail_DropsCorruptTrailingLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trajectory.jsonl")
	log := New(path)

	require.NoError(t, log.Append(task.TrajectoryEvent{Event: "good"}))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString(`{"event":"torn`) // no closing brace, no newline
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err := log.Tail(5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "good", events[0].Event)
}

func TestAppend_SerializesConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	log := New(filepath.Join(dir, "trajectory.jsonl"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = log.Append(task.TrajectoryEvent{Event: fmt.Sprintf("e%d", i)})
		}(i)
	}
	wg.Wait()

	events, err := log.All()
	require.NoError(t, err)
	assert.Len(t, events, 50)
}
