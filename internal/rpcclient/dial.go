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

package rpcclient

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variable names read by the client.
const (
	// SocketEnv overrides the daemon socket path directly.
	SocketEnv = "HARNESS_SOCKET"

	// WorktreeEnv overrides the project root used to derive the default
	// socket path when SocketEnv is unset.
	WorktreeEnv = "HARNESS_WORKTREE"

	// TimeoutEnv overrides the default per-request timeout, as a
	// duration string (e.g. "30s").
	TimeoutEnv = "HARNESS_TIMEOUT"
)

// DefaultSocketDir returns the directory holding per-project daemon
// sockets: $XDG_RUNTIME_DIR/harness if set, else ~/.harness/run.
func DefaultSocketDir() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "harness"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".harness", "run"), nil
}

// SocketPathForProject returns the socket path for a project keyed by its
// registry content hash.
func SocketPathForProject(projectHash string) (string, error) {
	dir, err := DefaultSocketDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, projectHash+".sock"), nil
}

// ResolveSocketPath determines the socket path to dial: HARNESS_SOCKET if
// set, otherwise a path derived from HARNESS_WORKTREE (or the current
// working directory) via hashProject, the same hash the registry uses to
// key projects.
func ResolveSocketPath(hashProject func(absPath string) string) (string, error) {
	if path := os.Getenv(SocketEnv); path != "" {
		return path, nil
	}

	worktree := os.Getenv(WorktreeEnv)
	if worktree == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		worktree = cwd
	}

	abs, err := filepath.Abs(worktree)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project path: %w", err)
	}

	return SocketPathForProject(hashProject(abs))
}

// DaemonNotRunningError indicates the daemon is not reachable at SocketPath.
type DaemonNotRunningError struct {
	SocketPath string
	Err        error
}

// Error implements the error interface.
func (e *DaemonNotRunningError) Error() string {
	return fmt.Sprintf("harness daemon is not running (socket: %s)", e.SocketPath)
}

// Unwrap returns the underlying dial error.
func (e *DaemonNotRunningError) Unwrap() error {
	return e.Err
}

// Guidance returns user-facing guidance for starting the daemon.
func (e *DaemonNotRunningError) Guidance() string {
	return `harness daemon is not running for this project.

Start it with:
  harnessd --worktree .          # Foreground (for development)
  harnessd --worktree . &        # Background

Or let harnessctl start it automatically:
  harnessctl --auto-start status`
}

// IsDaemonNotRunning reports whether err indicates the daemon is down
// rather than some other failure (bad request, permission denied).
func IsDaemonNotRunning(err error) bool {
	if err == nil {
		return false
	}

	var dnr *DaemonNotRunningError
	if errors.As(err, &dnr) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such file or directory")
}
