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

// LocalBackend runs commands directly on the host.
type LocalBackend struct{}

// Run implements Backend.
func (LocalBackend) Run(ctx context.Context, argv []string, cwd string, env []string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("execruntime: empty argv")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cwd
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("starting command: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		exitCode, signal := decodeExit(err)
		return Result{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: exitCode,
			Signal:   signal,
		}, nil
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-waitErr
		return Result{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: -1,
			TimedOut: true,
		}, nil
	}
}
