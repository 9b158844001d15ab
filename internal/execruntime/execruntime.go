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

// Package execruntime runs task commands on behalf of the state manager.
// Every invocation goes through a single entry point, Runtime.Execute, so
// that callers who need exclusive access to the worktree (git operations,
// build steps that touch shared caches) can say so without the runtime
// caring what kind of command it is running.
package execruntime

import (
	"context"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Result is the outcome of one command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Signal holds the decoded signal name ("SIGKILL", "SIGTERM", ...)
	// when the process was terminated by a signal rather than exiting
	// normally. Empty otherwise.
	Signal   string
	TimedOut bool
	Duration time.Duration
}

// Backend performs the actual process execution. Local runs the command
// directly on the host; Container runs it inside a container runtime.
type Backend interface {
	Run(ctx context.Context, argv []string, cwd string, env []string) (Result, error)
}

// Runtime serializes exclusive executions behind a process-wide mutex and
// delegates everything else straight to its backend.
type Runtime struct {
	backend Backend

	// exclusiveMu is held for the duration of any execution requested with
	// exclusive=true. It exists because git operations and other worktree
	// mutations cannot safely run concurrently with each other, even
	// though plain task commands can run in parallel.
	exclusiveMu sync.Mutex
}

// New returns a Runtime backed by backend.
func New(backend Backend) *Runtime {
	return &Runtime{backend: backend}
}

// Execute runs argv with the given working directory and environment,
// aborting it after timeout elapses (zero means no deadline). When
// exclusive is true, Execute blocks until any other exclusive execution
// in this process has finished before starting its own.
func (r *Runtime) Execute(ctx context.Context, argv []string, cwd string, env []string, exclusive bool, timeout time.Duration) (Result, error) {
	if exclusive {
		r.exclusiveMu.Lock()
		defer r.exclusiveMu.Unlock()
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := r.backend.Run(ctx, argv, cwd, env)
	res.Duration = time.Since(start)
	res.Stdout = sanitize(res.Stdout)
	res.Stderr = sanitize(res.Stderr)
	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
	}
	return res, err
}

// sanitize strips bytes that aren't printable ASCII, newline, or tab, so
// that control sequences from a misbehaving command don't end up baked
// into the trajectory log or a terminal that later renders it.
func sanitize(s string) string {
	b := []byte(s)
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c == '\n' || c == '\t' || (c >= 0x20 && c < 0x7f) {
			out = append(out, c)
		}
	}
	return string(out)
}

// decodeExit turns the error returned by cmd.Wait (or cmd.Run) into an
// exit code plus, if the process died from a signal, the signal's name.
func decodeExit(err error) (exitCode int, signal string) {
	if err == nil {
		return 0, ""
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return -1, ""
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return exitErr.ExitCode(), ""
	}
	if status.Signaled() {
		return -1, signalName(status.Signal())
	}
	return status.ExitStatus(), ""
}

func signalName(sig syscall.Signal) string {
	if name, ok := signalNames[sig]; ok {
		return name
	}
	return sig.String()
}
