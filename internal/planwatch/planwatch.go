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

// Package planwatch optionally re-imports a project's plan document
// whenever it changes on disk, so editing a plan file and saving it has
// the same effect as calling plan_import by hand.
package planwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/harnessdev/harness/internal/state"
	"github.com/harnessdev/harness/pkg/task"
)

// debounce absorbs the burst of events most editors produce for a single
// logical save (temp-file-then-rename, multiple writes).
const debounce = 150 * time.Millisecond

// Watcher re-imports path into mgr every time its contents change.
type Watcher struct {
	path    string
	mgr     *state.Manager
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// New creates a Watcher for the plan file at path. The file need not
// exist yet; Watch tolerates it appearing later.
func New(path string, mgr *state.Manager, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating plan watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{path: path, mgr: mgr, logger: logger, watcher: fw}, nil
}

// Watch blocks, re-importing the plan on every relevant filesystem event,
// until ctx is done. Decode failures are logged and otherwise ignored —
// a syntactically broken save shouldn't take down the daemon.
func (w *Watcher) Watch(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case pending <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("plan watcher error", "error", err)

		case <-pending:
			w.reimport()
		}
	}
}

func (w *Watcher) reimport() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("reading plan file", "path", w.path, "error", err)
		}
		return
	}

	var plan task.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		w.logger.Warn("plan file has invalid JSON, ignoring", "path", w.path, "error", err)
		return
	}
	if len(plan.Tasks) == 0 {
		w.logger.Warn("plan file has no tasks, ignoring", "path", w.path)
		return
	}

	if _, err := w.mgr.ImportPlan(plan); err != nil {
		w.logger.Warn("re-importing plan failed", "path", w.path, "error", err)
		return
	}
	w.logger.Info("plan re-imported from file change", "path", w.path)
}
