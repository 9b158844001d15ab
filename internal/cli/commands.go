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

package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harnessdev/harness/pkg/task"
)

// call issues command against the daemon with params, decodes the
// response into out, and returns any error translated to an *ExitError
// where the failure is a usage problem rather than a daemon-side one.
func call(command string, params, out any) error {
	client, ctx, cancel, err := newClient()
	if err != nil {
		return err
	}
	defer cancel()
	return client.Call(ctx, command, params, out)
}

func workerIDFlag(cmd *cobra.Command) (string, error) {
	id, _ := cmd.Flags().GetString("worker-id")
	if id == "" {
		id = os.Getenv("HARNESS_WORKER_ID")
	}
	if id == "" {
		return "", NewUsageError("--worker-id is required (or set HARNESS_WORKER_ID)", nil)
	}
	return id, nil
}

func newPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the daemon is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := call("ping", nil, &out); err != nil {
				return err
			}
			return printResult(cmd, out)
		},
	}
}

func newGetStateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-state",
		Short: "Print the full workflow state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var ws task.WorkflowState
			if err := call("get_state", nil, &ws); err != nil {
				return err
			}
			return printResult(cmd, ws)
		},
	}
}

func newUpdateStateCommand() *cobra.Command {
	var fieldsJSON string
	cmd := &cobra.Command{
		Use:   "update-state",
		Short: "Merge scalar metadata into the workflow state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var fields map[string]task.MetadataValue
			if fieldsJSON != "" {
				if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
					return NewUsageError("--fields must be a JSON object", err)
				}
			}
			var ws task.WorkflowState
			if err := call("update_state", map[string]any{"fields": fields}, &ws); err != nil {
				return err
			}
			return printResult(cmd, ws)
		},
	}
	cmd.Flags().StringVar(&fieldsJSON, "fields", "", `metadata to merge, as JSON (e.g. '{"last_commit":"abc123"}')`)
	return cmd
}

func newTaskClaimCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task-claim",
		Short: "Claim the next unblocked task, or renew an existing lease",
		RunE: func(cmd *cobra.Command, args []string) error {
			workerID, err := workerIDFlag(cmd)
			if err != nil {
				return err
			}
			var resp struct {
				Task *task.Task `json:"task"`
			}
			if err := call("task_claim", map[string]string{"worker_id": workerID}, &resp); err != nil {
				return err
			}
			return printResult(cmd, resp)
		},
	}
	cmd.Flags().String("worker-id", "", "identity under which to claim (default: $HARNESS_WORKER_ID)")
	return cmd
}

func newTaskCompleteCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "task-complete <task-id>",
		Short: "Mark a claimed task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workerID, err := workerIDFlag(cmd)
			if err != nil {
				return err
			}
			var t task.Task
			params := map[string]string{"id": args[0], "worker_id": workerID}
			if reason != "" {
				params["reason"] = reason
			}
			if err := call("task_complete", params, &t); err != nil {
				return err
			}
			return printResult(cmd, t)
		},
	}
	cmd.Flags().String("worker-id", "", "identity that holds the task's lease (default: $HARNESS_WORKER_ID)")
	cmd.Flags().StringVar(&reason, "reason", "", "optional completion note")
	return cmd
}

func newTaskFailCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "task-fail <task-id>",
		Short: "Mark a claimed task failed, cascading skips to its dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workerID, err := workerIDFlag(cmd)
			if err != nil {
				return err
			}
			if reason == "" {
				return NewUsageError("--reason is required", nil)
			}
			var t task.Task
			params := map[string]string{"id": args[0], "worker_id": workerID, "reason": reason}
			if err := call("task_fail", params, &t); err != nil {
				return err
			}
			return printResult(cmd, t)
		},
	}
	cmd.Flags().String("worker-id", "", "identity that holds the task's lease (default: $HARNESS_WORKER_ID)")
	cmd.Flags().StringVar(&reason, "reason", "", "why the task failed")
	return cmd
}

func newExecCommand() *cobra.Command {
	var cwd string
	var exclusive bool
	var timeoutSeconds float64
	cmd := &cobra.Command{
		Use:   "exec -- <argv...>",
		Short: "Run a command through the daemon's execution runtime",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			params := map[string]any{
				"argv":      args,
				"cwd":       cwd,
				"exclusive": exclusive,
				"timeout":   timeoutSeconds,
			}
			if err := call("exec", params, &out); err != nil {
				return err
			}
			return printResult(cmd, out)
		},
	}
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory (default: the worktree)")
	cmd.Flags().BoolVar(&exclusive, "exclusive", false, "serialize against other exclusive exec/git calls")
	cmd.Flags().Float64Var(&timeoutSeconds, "timeout-seconds", 0, "kill the process after this many seconds (0 = no limit)")
	return cmd
}

func newGitCommand() *cobra.Command {
	var cwd string
	cmd := &cobra.Command{
		Use:   "git -- <argv...>",
		Short: "Run a git command through the serialized git gateway",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			params := map[string]any{"argv": args, "cwd": cwd}
			if err := call("git", params, &out); err != nil {
				return err
			}
			return printResult(cmd, out)
		},
	}
	cmd.Flags().StringVar(&cwd, "cwd", "", "subdirectory of the worktree to run in (default: the worktree root)")
	return cmd
}

func readPlanInput(path string) (task.Plan, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return task.Plan{}, NewUsageError("opening plan file", err)
		}
		defer f.Close()
		r = f
	}

	var plan task.Plan
	if err := json.NewDecoder(r).Decode(&plan); err != nil {
		return task.Plan{}, NewUsageError("decoding plan JSON", err)
	}
	return plan, nil
}

func newPlanImportCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "plan-import",
		Short: "Replace the workflow's DAG atomically from a plan document",
		Long:  "Reads a plan document (goal, tasks, dependencies) from --file or stdin and imports it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := readPlanInput(file)
			if err != nil {
				return err
			}
			var ws task.WorkflowState
			if err := call("plan_import", plan, &ws); err != nil {
				return err
			}
			return printResult(cmd, ws)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a plan JSON document (default: stdin)")
	return cmd
}

func newPlanResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan-reset",
		Short: "Clear the workflow state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var ws task.WorkflowState
			if err := call("plan_reset", nil, &ws); err != nil {
				return err
			}
			return printResult(cmd, ws)
		},
	}
}

func newSessionStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "session-start",
		Short: "Print a snapshot summary for host-tool integration",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := call("session_start", nil, &out); err != nil {
				return err
			}
			return printResult(cmd, out)
		},
	}
}

func newCheckStateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check-state",
		Short: "Exit non-zero unless every non-optional task has reached a terminal state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				OK     bool   `json:"ok"`
				Reason string `json:"reason"`
			}
			if err := call("check_state", nil, &out); err != nil {
				return err
			}
			if err := printResult(cmd, out); err != nil {
				return err
			}
			if !out.OK {
				return NewDeniedError(out.Reason)
			}
			return nil
		},
	}
}

func newCheckCommitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-commit <head-commit>",
		Short: "Exit non-zero if HEAD matches the recorded last_commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				OK     bool   `json:"ok"`
				Reason string `json:"reason"`
			}
			params := map[string]string{"head_commit": args[0]}
			if err := call("check_commit", params, &out); err != nil {
				return err
			}
			if err := printResult(cmd, out); err != nil {
				return err
			}
			if !out.OK {
				return NewDeniedError(out.Reason)
			}
			return nil
		},
	}
	return cmd
}

func newWorkerIDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker-id",
		Short: "Print the daemon's stable per-project worker id",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := call("worker_id", nil, &out); err != nil {
				return err
			}
			return printResult(cmd, out)
		},
	}
}

func newShutdownCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Stop the daemon after it drains in-flight handlers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := call("shutdown", nil, &out); err != nil {
				return err
			}
			return printResult(cmd, out)
		},
	}
}
