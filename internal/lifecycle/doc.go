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

/*
Package lifecycle manages harnessd process lifecycle operations: the
parts of running a per-project daemon that have nothing to do with the
DAG it orchestrates.

This package provides secure daemon lock management, process validation,
and lifecycle event logging for harnessd. Detached spawning of harnessd
itself lives in internal/rpcclient, since that is also where the
Windows/non-Windows build tags for the spawn's SysProcAttr already need
to live; this package only validates and signals the process once it is
running.

# Daemon Lock Management

The lock file is security-sensitive as it controls which process
receives shutdown signals, and one per project is what lets two
harnessd processes coexist for two different worktrees without
colliding. The package uses exclusive file locking (flock) and atomic
creation (O_EXCL) to prevent race conditions and symlink attacks:

	mgr := lifecycle.NewPIDFileManager(entry.PIDFilePath)
	if err := mgr.Create(os.Getpid()); err != nil {
	    // a *pkgerrors.ConflictError if another harnessd already holds it
	}
	defer mgr.Remove()

# Process Operations

Process validation ensures signals are sent only to harnessd daemons,
preventing accidental kills of unrelated processes when a lock file
outlives the process that wrote it:

	pid, err := mgr.Read()
	if err != nil {
	    // Handle error
	}

	if !lifecycle.IsHarnessdProcess(pid) {
	    // lock file is stale; safe to clear and retry
	}

	if err := lifecycle.SendSignal(pid, syscall.SIGTERM); err != nil {
	    // Handle error
	}

# Lifecycle Logging

Start, stop, and stale-PID events are logged for audit purposes,
separately from the per-project trajectory log:

	logger := lifecycle.NewLifecycleLogger("/path/to/lifecycle.log")
	logger.LogStart(version, args, configFile)
	logger.LogStop(pid, force)
*/
package lifecycle
