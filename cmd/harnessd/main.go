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

// Command harnessd is the per-project orchestration daemon. It holds
// the DAG state for one worktree, serializes git and exec access
// through a single writer, and answers worker requests over a unix
// socket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/harnessdev/harness/internal/capability"
	"github.com/harnessdev/harness/internal/config"
	"github.com/harnessdev/harness/internal/execruntime"
	"github.com/harnessdev/harness/internal/gitgateway"
	"github.com/harnessdev/harness/internal/lifecycle"
	"github.com/harnessdev/harness/internal/log"
	"github.com/harnessdev/harness/internal/planwatch"
	"github.com/harnessdev/harness/internal/registry"
	"github.com/harnessdev/harness/internal/rpcserver"
	"github.com/harnessdev/harness/internal/state"
	"github.com/harnessdev/harness/internal/tracing"
	"github.com/harnessdev/harness/internal/trajectory"
	"github.com/harnessdev/harness/internal/workerid"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	worktree := flag.String("worktree", "", "project root this daemon serves (default: current directory)")
	socketPath := flag.String("socket", "", "unix socket path to listen on (default: derived from worktree)")
	container := flag.String("container", "", "name of an already-running container to execute tasks inside")
	containerRuntime := flag.String("container-runtime", "", "container runtime binary (docker or podman); auto-detected if unset")
	metricsAddr := flag.String("metrics-addr", "", "listen address for a Prometheus /metrics endpoint (disabled if unset)")
	planFile := flag.String("plan-file", "", "re-import this plan JSON file whenever it changes on disk (disabled if unset)")
	flag.Parse()

	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	if err := run(*worktree, *socketPath, *container, *containerRuntime, *metricsAddr, *planFile, logger); err != nil {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
}

func run(worktree, socketPath, container, containerRuntime, metricsAddr, planFile string, logger *slog.Logger) error {
	if worktree == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving current directory: %w", err)
		}
		worktree = cwd
	}
	worktree, err := filepath.Abs(worktree)
	if err != nil {
		return fmt.Errorf("resolving worktree: %w", err)
	}

	fileCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config.yaml: %w", err)
	}
	containerRuntime = firstNonEmpty(containerRuntime, fileCfg.Daemon.ContainerRuntime)
	metricsAddr = firstNonEmpty(metricsAddr, fileCfg.Daemon.MetricsAddr)
	planFile = firstNonEmpty(planFile, fileCfg.Daemon.PlanFile)

	required := []string{"git"}
	if container != "" {
		required = append(required, firstNonEmpty(containerRuntime, execruntime.DetectRuntime()))
	}
	if err := capability.Check(required...); err != nil {
		return err
	}

	harnessDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("resolving config directory: %w", err)
	}
	reg := registry.New(filepath.Join(harnessDir, "registry.json"))
	projectDir := filepath.Join(worktree, ".harness")
	entry, err := reg.Resolve(worktree, filepath.Join(harnessDir, "sockets"), projectDir)
	if err != nil {
		return fmt.Errorf("resolving project registry entry: %w", err)
	}
	if socketPath == "" {
		socketPath = entry.SocketPath
	}

	lifecycleLog := lifecycle.NewLifecycleLogger(filepath.Join(projectDir, "lifecycle.log"))
	lifecycleLog.LogStart(version, os.Args[1:], "")

	pidMgr := lifecycle.NewPIDFileManager(entry.PIDFilePath)
	if err := acquirePIDFile(pidMgr, lifecycleLog, logger); err != nil {
		lifecycleLog.LogStartFailure(err)
		return fmt.Errorf("acquiring daemon lock: %w", err)
	}
	defer pidMgr.Remove()
	defer func() { lifecycleLog.LogStop(os.Getpid(), false) }()

	workerIDPath := filepath.Join(projectDir, "worker_id")
	id, err := workerid.Load(workerIDPath)
	if err != nil {
		return fmt.Errorf("loading worker id: %w", err)
	}

	traj := trajectory.New(entry.TrajectoryPath)
	stateMgr, err := state.New(entry.StateFilePath, traj)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	var backend execruntime.Backend
	if container != "" {
		rt := firstNonEmpty(containerRuntime, execruntime.DetectRuntime())
		backend = execruntime.ContainerBackend{
			Runtime:   rt,
			Container: container,
			MapPath:   func(p string) string { return p },
		}
	} else {
		backend = execruntime.LocalBackend{}
	}
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if planFile != "" {
		watcher, err := planwatch.New(planFile, stateMgr, logger)
		if err != nil {
			return fmt.Errorf("starting plan watcher: %w", err)
		}
		go func() {
			if err := watcher.Watch(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("plan watcher stopped", "error", err)
			}
		}()
	}

	runtime := execruntime.New(backend)
	git := gitgateway.New(runtime, worktree)

	var metrics *tracing.MetricsCollector
	if metricsAddr != "" {
		provider, err := tracing.NewProvider("harnessd", version)
		if err != nil {
			return fmt.Errorf("starting metrics provider: %w", err)
		}
		defer provider.Shutdown(context.Background())
		metrics = provider.Metrics()

		metricsSrv := &http.Server{Addr: metricsAddr, Handler: provider.MetricsHandler()}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server exited", "error", err)
			}
		}()
		defer metricsSrv.Close()
	}

	ln, err := rpcserver.Listen(socketPath)
	if err != nil {
		return fmt.Errorf("listening on socket: %w", err)
	}

	srv := rpcserver.New(rpcserver.Deps{
		State:    stateMgr,
		Exec:     runtime,
		Git:      git,
		WorkerID: id,
		Metrics:  metrics,
	}, logger)

	startedBy := "foreground"
	if os.Getenv("HARNESS_AUTO_STARTED") == "1" {
		startedBy = "auto-start"
	}
	logger.Info("daemon started",
		"worktree", worktree,
		"socket", socketPath,
		"worker_id", id,
		"started_by", startedBy,
		"version", version,
		"commit", commit,
		"build_date", buildDate,
	)
	lifecycleLog.LogStartSuccess(os.Getpid(), 0, 0)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
		srv.Shutdown()
		serveErr = <-errCh
	case serveErr = <-errCh:
	}

	done := make(chan struct{})
	go func() {
		srv.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("timed out waiting for in-flight requests to drain")
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return fmt.Errorf("serve: %w", serveErr)
	}
	return nil
}

// acquirePIDFile takes the project's daemon lock, clearing a stale lock
// left behind by a crashed daemon before retrying once. A PID file is
// stale when the PID it names either isn't running at all or has been
// recycled by an unrelated process since the daemon that wrote it died.
func acquirePIDFile(pidMgr *lifecycle.PIDFileManager, lifecycleLog *lifecycle.LifecycleLogger, logger *slog.Logger) error {
	err := pidMgr.Create(os.Getpid())
	if err == nil {
		return nil
	}
	if !errors.Is(err, lifecycle.ErrPIDFileExists) && !errors.Is(err, lifecycle.ErrPIDFileLocked) {
		return err
	}

	existing, readErr := pidMgr.Read()
	if readErr != nil || lifecycle.IsHarnessdProcess(existing) {
		return err
	}

	logger.Warn("clearing stale daemon lock", "pid", existing)
	lifecycleLog.LogStalePID(existing, "pid file present but process is not a harnessd daemon")
	if removeErr := pidMgr.Remove(); removeErr != nil {
		return fmt.Errorf("removing stale pid file: %w", removeErr)
	}
	return pidMgr.Create(os.Getpid())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
