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
	"context"
	"os"
	"time"

	"github.com/harnessdev/harness/internal/registry"
	"github.com/harnessdev/harness/internal/rpcclient"
)

// defaultTimeout is used when neither --timeout nor HARNESS_TIMEOUT is set.
const defaultTimeout = 10 * time.Second

func resolveTimeout() time.Duration {
	raw := flags.timeout
	if raw == "" {
		raw = os.Getenv(rpcclient.TimeoutEnv)
	}
	if raw == "" {
		return defaultTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultTimeout
	}
	return d
}

// newClient resolves the daemon socket from flags/environment, starting
// the daemon if it isn't already running and --auto-start wasn't
// disabled, and returns a client plus a context bound to the resolved
// request timeout.
func newClient() (*rpcclient.Client, context.Context, context.CancelFunc, error) {
	if flags.worktree != "" {
		os.Setenv(rpcclient.WorktreeEnv, flags.worktree)
	}

	socketPath := flags.socket
	if socketPath == "" {
		resolved, err := rpcclient.ResolveSocketPath(registry.HashProject)
		if err != nil {
			return nil, nil, nil, err
		}
		socketPath = resolved
	}

	worktree := flags.worktree
	if worktree == "" {
		worktree, _ = os.Getwd()
	}

	client, err := rpcclient.EnsureDaemon(rpcclient.AutoStartConfig{
		Enabled:    flags.autoStart,
		SocketPath: socketPath,
		Worktree:   worktree,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout())
	return client, ctx, cancel, nil
}
