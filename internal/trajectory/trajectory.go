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

// Package trajectory implements the append-only, line-delimited JSON
// event log recording every state transition and subprocess invocation.
package trajectory

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/harnessdev/harness/internal/fsutil"
	"github.com/harnessdev/harness/pkg/task"
)

// blockSize is the chunk size tail reads backwards from end-of-file.
// The hot path never reads the whole file; it walks backwards in
// blocks until enough line separators have been seen.
const blockSize = 4096

// Log is an append-only JSONL event log. Append is serialized by mu;
// tail reads don't take mu, since a reader racing an in-flight append
// either sees the line or doesn't — it never sees a torn write, because
// append always completes a single os.File.Write before returning.
type Log struct {
	mu   sync.Mutex
	path string
}

// New returns a trajectory log backed by path. The file is created on
// first append if it doesn't exist.
func New(path string) *Log {
	return &Log{path: path}
}

// Append serializes event to one line of JSON and appends it to the
// log file, flushing to the OS before returning. Concurrent callers
// never interleave partial writes because the whole operation holds mu.
func (l *Log) Append(event task.TrajectoryEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding trajectory event: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	return fsutil.AppendLine(l.path, data)
}

// Tail returns the last n well-formed records, newest last. It seeks to
// end-of-file and reads backwards in blockSize chunks until at least
// n+1 line separators have been found or the start of the file is
// reached. A corrupt or truncated trailing line (a crash mid-append) is
// silently dropped; earlier lines are unaffected.
func (l *Log) Tail(n int) ([]task.TrajectoryEvent, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening trajectory log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stating trajectory log: %w", err)
	}

	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	var buf []byte
	pos := size
	newlineCount := 0

	for pos > 0 && newlineCount < n+1 {
		readSize := int64(blockSize)
		if readSize > pos {
			readSize = pos
		}
		pos -= readSize

		chunk := make([]byte, readSize)
		if _, err := f.ReadAt(chunk, pos); err != nil {
			return nil, fmt.Errorf("reading trajectory block: %w", err)
		}

		newlineCount += bytes.Count(chunk, []byte{'\n'})
		buf = append(chunk, buf...)
	}

	lines := bytes.Split(buf, []byte{'\n'})
	// The last element after splitting is either the empty string after
	// a well-formed trailing newline, or a torn partial line from a
	// crash mid-append. Either way it's not a complete record.
	if len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	events := make([]task.TrajectoryEvent, 0, len(lines))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var ev task.TrajectoryEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			// Corrupt line: drop it and keep going, per the
			// crash-tolerance contract.
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}

// All reads the entire log. Intended for tests and small-file tooling,
// never the daemon's hot path.
func (l *Log) All() ([]task.TrajectoryEvent, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening trajectory log: %w", err)
	}
	defer f.Close()

	var events []task.TrajectoryEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev task.TrajectoryEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning trajectory log: %w", err)
	}

	return events, nil
}
