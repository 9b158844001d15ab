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

package rpcserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harnessdev/harness/internal/execruntime"
	pkgerrors "github.com/harnessdev/harness/pkg/errors"
	"github.com/harnessdev/harness/pkg/task"
)

func (s *Server) buildHandlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"ping":          s.handlePing,
		"get_state":     s.handleGetState,
		"update_state":  s.handleUpdateState,
		"task_claim":    s.handleTaskClaim,
		"task_complete": s.handleTaskComplete,
		"task_fail":     s.handleTaskFail,
		"exec":          s.handleExec,
		"git":           s.handleGit,
		"plan_import":   s.handlePlanImport,
		"plan_reset":    s.handlePlanReset,
		"session_start": s.handleSessionStart,
		"check_state":   s.handleCheckState,
		"check_commit":  s.handleCheckCommit,
		"worker_id":     s.handleWorkerID,
		"shutdown":      s.handleShutdown,
	}
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return &pkgerrors.ValidationError{Message: "invalid params: " + err.Error()}
	}
	return nil
}

func (s *Server) handlePing(ctx context.Context, params json.RawMessage) (any, error) {
	return map[string]any{"pong": true, "version": Version}, nil
}

func (s *Server) handleGetState(ctx context.Context, params json.RawMessage) (any, error) {
	return s.deps.State.GetState(), nil
}

func (s *Server) handleUpdateState(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Fields map[string]task.MetadataValue `json:"fields"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	return s.deps.State.UpdateState(req.Fields)
}

func (s *Server) handleTaskClaim(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		WorkerID string `json:"worker_id"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	if req.WorkerID == "" {
		return nil, &pkgerrors.ValidationError{Field: "worker_id", Message: "worker_id is required"}
	}
	t, err := s.deps.State.ClaimTask(req.WorkerID)
	if err != nil {
		return nil, err
	}
	if t != nil && s.deps.Metrics != nil {
		s.deps.Metrics.RecordClaim(ctx, t.ID)
	}
	return map[string]any{"task": t}, nil
}

func (s *Server) handleTaskComplete(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		ID       string `json:"id"`
		WorkerID string `json:"worker_id"`
		Reason   string `json:"reason,omitempty"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	t, err := s.deps.State.CompleteTask(req.ID, req.WorkerID)
	if err != nil {
		return nil, err
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordCompletion(ctx, req.ID, taskDuration(t))
	}
	return t, nil
}

func (s *Server) handleTaskFail(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		ID       string `json:"id"`
		WorkerID string `json:"worker_id"`
		Reason   string `json:"reason"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	if req.Reason == "" {
		return nil, &pkgerrors.ValidationError{Field: "reason", Message: "reason is required"}
	}
	t, err := s.deps.State.FailTask(req.ID, req.WorkerID, req.Reason)
	if err != nil {
		return nil, err
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordFailure(ctx, req.ID, taskDuration(t))
	}
	return t, nil
}

// taskDuration returns how long t ran between StartedAt and CompletedAt,
// or zero if either timestamp is missing.
func taskDuration(t *task.Task) time.Duration {
	if t == nil || t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}

func (s *Server) handleExec(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Argv      []string          `json:"argv"`
		Cwd       string            `json:"cwd,omitempty"`
		Env       map[string]string `json:"env,omitempty"`
		Exclusive bool              `json:"exclusive,omitempty"`
		Timeout   float64           `json:"timeout,omitempty"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	if len(req.Argv) == 0 {
		return nil, &pkgerrors.ValidationError{Field: "argv", Message: "argv must not be empty"}
	}

	timeout := time.Duration(req.Timeout * float64(time.Second))
	res, err := s.deps.Exec.Execute(ctx, req.Argv, req.Cwd, envToSlice(req.Env), req.Exclusive, timeout)
	if err != nil {
		return nil, &pkgerrors.ExecutionError{Argv: req.Argv, Cause: err}
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordExecution(ctx, req.Exclusive, res.Duration, res.ExitCode)
	}
	return execResultToWire(res), nil
}

func (s *Server) handleGit(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		Argv []string `json:"argv"`
		Cwd  string   `json:"cwd,omitempty"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	if len(req.Argv) == 0 {
		return nil, &pkgerrors.ValidationError{Field: "argv", Message: "argv must not be empty"}
	}
	if s.deps.Git == nil {
		return nil, &pkgerrors.CapabilityError{Binary: "git"}
	}
	res, err := s.deps.Git.RunIn(ctx, req.Cwd, req.Argv...)
	if err != nil {
		return nil, err
	}
	return execResultToWire(res), nil
}

func (s *Server) handlePlanImport(ctx context.Context, params json.RawMessage) (any, error) {
	var plan task.Plan
	if err := decodeParams(params, &plan); err != nil {
		return nil, err
	}
	if len(plan.Tasks) == 0 {
		return nil, &pkgerrors.ValidationError{Field: "tasks", Message: "plan must contain at least one task"}
	}
	return s.deps.State.ImportPlan(plan)
}

func (s *Server) handlePlanReset(ctx context.Context, params json.RawMessage) (any, error) {
	return s.deps.State.ResetPlan()
}

func (s *Server) handleSessionStart(ctx context.Context, params json.RawMessage) (any, error) {
	snap := s.deps.State.GetState()
	pending, running, terminal := 0, 0, 0
	for _, t := range snap.OrderedTasks() {
		switch {
		case t.Status.Terminal():
			terminal++
		case t.Status == task.StatusRunning:
			running++
		default:
			pending++
		}
	}
	return map[string]any{
		"goal":       snap.Goal,
		"task_count": len(snap.TaskOrder),
		"pending":    pending,
		"running":    running,
		"terminal":   terminal,
		"worker_id":  s.deps.WorkerID,
	}, nil
}

func (s *Server) handleCheckState(ctx context.Context, params json.RawMessage) (any, error) {
	ok, reason := s.deps.State.CheckState()
	return map[string]any{"ok": ok, "reason": reason}, nil
}

func (s *Server) handleCheckCommit(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		HeadCommit string `json:"head_commit"`
	}
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	ok, reason := s.deps.State.CheckCommit(req.HeadCommit)
	return map[string]any{"ok": ok, "reason": reason}, nil
}

func (s *Server) handleWorkerID(ctx context.Context, params json.RawMessage) (any, error) {
	return map[string]any{"worker_id": s.deps.WorkerID}, nil
}

func (s *Server) handleShutdown(ctx context.Context, params json.RawMessage) (any, error) {
	// Shutdown closes the listener, which would otherwise race with this
	// handler's own response write if called synchronously in-line.
	go s.Shutdown()
	return map[string]any{"shutting_down": true}, nil
}

func envToSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func execResultToWire(res execruntime.Result) map[string]any {
	return map[string]any{
		"stdout":      res.Stdout,
		"stderr":      res.Stderr,
		"exit_code":   res.ExitCode,
		"signal":      res.Signal,
		"timed_out":   res.TimedOut,
		"duration_ms": res.Duration.Milliseconds(),
	}
}
