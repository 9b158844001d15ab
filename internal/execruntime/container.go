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

package execruntime

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// ContainerBackend runs commands inside an already-running container via
// "docker exec" (or "podman exec"), rather than starting a fresh
// container per command. Workers are expected to long-poll for claimed
// tasks, so reusing one container avoids paying image-pull and
// filesystem-setup cost on every task.
type ContainerBackend struct {
	// Runtime is the container CLI to invoke ("docker" or "podman").
	Runtime string

	// Container is the name or id of the running container task
	// commands execute inside.
	Container string

	// MapPath translates a host filesystem path (a task's working
	// directory, as the state manager knows it) into the equivalent
	// path inside the container. A nil MapPath passes cwd through
	// unchanged, which only works when the container mounts the
	// worktree at the same path it has on the host.
	MapPath func(hostPath string) string
}

// Run implements Backend.
func (c ContainerBackend) Run(ctx context.Context, argv []string, cwd string, env []string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("execruntime: empty argv")
	}

	containerCwd := cwd
	if c.MapPath != nil {
		containerCwd = c.MapPath(cwd)
	}

	args := []string{"exec"}
	if containerCwd != "" {
		args = append(args, "-w", containerCwd)
	}
	for _, kv := range env {
		args = append(args, "-e", kv)
	}
	args = append(args, c.Container)
	args = append(args, argv...)

	runtime := c.Runtime
	if runtime == "" {
		runtime = "docker"
	}

	cmd := exec.CommandContext(ctx, runtime, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode, signal := decodeExit(err)
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Signal:   signal,
	}
	if err != nil && exitCode == 0 && signal == "" {
		// err wasn't an *exec.ExitError (e.g. the runtime binary itself
		// couldn't be found or started), so surface it instead of
		// silently reporting success.
		return res, err
	}
	return res, nil
}

// DetectRuntime reports which container CLI, if any, is usable on this
// host, preferring Docker over Podman when both are installed.
func DetectRuntime() string {
	if _, err := exec.LookPath("docker"); err == nil {
		if err := exec.Command("docker", "info").Run(); err == nil {
			return "docker"
		}
	}
	if _, err := exec.LookPath("podman"); err == nil {
		return "podman"
	}
	return ""
}
