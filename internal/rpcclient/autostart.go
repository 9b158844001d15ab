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
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// AutoStartConfig configures automatic daemon startup behavior.
type AutoStartConfig struct {
	// Enabled enables automatic daemon startup.
	Enabled bool

	// SocketPath is the socket the daemon should listen on and the
	// client should dial.
	SocketPath string

	// Worktree is the project root passed to harnessd via --worktree.
	Worktree string

	// StartTimeout is how long to wait for the daemon to start.
	StartTimeout time.Duration
}

// StartDaemon starts harnessd in the background for the configured
// worktree and waits for it to accept connections.
func StartDaemon(cfg AutoStartConfig) error {
	if cfg.StartTimeout == 0 {
		cfg.StartTimeout = 10 * time.Second
	}

	harnessdPath, err := exec.LookPath("harnessd")
	if err != nil {
		return fmt.Errorf("harnessd not found in PATH: %w", err)
	}

	args := []string{"--worktree", cfg.Worktree}
	if cfg.SocketPath != "" {
		args = append(args, "--socket", cfg.SocketPath)
	}

	cmd := exec.Command(harnessdPath, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	// Mark this invocation as auto-started so the daemon can distinguish
	// it from a deliberate foreground run in its startup log line.
	cmd.Env = append(os.Environ(), "HARNESS_AUTO_STARTED=1")

	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartTimeout)
	defer cancel()

	client := New(cfg.SocketPath)
	return client.WaitUntilReady(ctx)
}

// EnsureDaemon ensures the daemon is running for cfg.Worktree, starting it
// if needed and if auto-start is enabled. Returns a client connected to
// the daemon's socket.
func EnsureDaemon(cfg AutoStartConfig) (*Client, error) {
	client := New(cfg.SocketPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	err := client.Ping(ctx)
	cancel()

	if err == nil {
		return client, nil
	}

	if !IsDaemonNotRunning(err) {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}

	if !cfg.Enabled {
		return nil, &DaemonNotRunningError{SocketPath: cfg.SocketPath, Err: err}
	}

	if err := StartDaemon(cfg); err != nil {
		return nil, fmt.Errorf("auto-start failed: %w", err)
	}

	return New(cfg.SocketPath), nil
}

// setSysProcAttr sets OS-specific process attributes for proper detachment.
// Implemented per-platform in autostart_unix.go / autostart_windows.go.
func setSysProcAttr(cmd *exec.Cmd) {
	setSysProcAttrPlatform(cmd)
}
