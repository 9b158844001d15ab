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

package tracing

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TaskCounter reports the number of tasks currently tracked in memory, for
// the observable in-memory-tasks gauge.
type TaskCounter interface {
	TaskCount() int
}

// MetricsCollector records Prometheus-compatible metrics for task claims,
// completions, and executions across the lifetime of a daemon process.
type MetricsCollector struct {
	meter metric.Meter

	tasksClaimed    metric.Int64Counter
	tasksCompleted  metric.Int64Counter
	tasksFailed     metric.Int64Counter
	tasksSkipped    metric.Int64Counter
	execInvocations metric.Int64Counter

	taskDuration metric.Float64Histogram
	execDuration metric.Float64Histogram

	activeRunning   map[string]bool
	activeRunningMu sync.RWMutex

	pendingCount   int64
	pendingCountMu sync.RWMutex

	taskCounter   TaskCounter
	taskCounterMu sync.RWMutex
}

// NewMetricsCollector creates a collector bound to meterProvider's "harness" meter.
func NewMetricsCollector(meterProvider metric.MeterProvider) (*MetricsCollector, error) {
	meter := meterProvider.Meter("harness")

	mc := &MetricsCollector{
		meter:         meter,
		activeRunning: make(map[string]bool),
	}

	var err error

	mc.tasksClaimed, err = meter.Int64Counter(
		"harness_tasks_claimed_total",
		metric.WithDescription("Total number of task claims issued to workers"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	mc.tasksCompleted, err = meter.Int64Counter(
		"harness_tasks_completed_total",
		metric.WithDescription("Total number of tasks that reached completed status"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	mc.tasksFailed, err = meter.Int64Counter(
		"harness_tasks_failed_total",
		metric.WithDescription("Total number of tasks that reached failed status"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	mc.tasksSkipped, err = meter.Int64Counter(
		"harness_tasks_skipped_total",
		metric.WithDescription("Total number of tasks skipped via cascading dependency failure or timeout"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	mc.execInvocations, err = meter.Int64Counter(
		"harness_exec_invocations_total",
		metric.WithDescription("Total number of subprocess executions run by the execution runtime"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, err
	}

	mc.taskDuration, err = meter.Float64Histogram(
		"harness_task_duration_seconds",
		metric.WithDescription("Wall-clock time a task spent from claim to terminal status"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	mc.execDuration, err = meter.Float64Histogram(
		"harness_exec_duration_seconds",
		metric.WithDescription("Subprocess execution duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"harness_active_running_tasks",
		metric.WithDescription("Number of tasks currently in running status"),
		metric.WithUnit("{task}"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			mc.activeRunningMu.RLock()
			count := len(mc.activeRunning)
			mc.activeRunningMu.RUnlock()
			observer.Observe(int64(count))
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"harness_pending_tasks",
		metric.WithDescription("Number of tasks currently in pending status"),
		metric.WithUnit("{task}"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			mc.pendingCountMu.RLock()
			depth := mc.pendingCount
			mc.pendingCountMu.RUnlock()
			observer.Observe(depth)
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"harness_tasks_in_memory",
		metric.WithDescription("Number of tasks held in the in-memory state cache"),
		metric.WithUnit("{task}"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			mc.taskCounterMu.RLock()
			counter := mc.taskCounter
			mc.taskCounterMu.RUnlock()
			if counter != nil {
				observer.Observe(int64(counter.TaskCount()))
			}
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"harness_goroutines",
		metric.WithDescription("Number of active goroutines in the daemon process"),
		metric.WithUnit("{goroutine}"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			observer.Observe(int64(runtime.NumGoroutine()))
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"harness_heap_bytes",
		metric.WithDescription("Current heap allocation in bytes"),
		metric.WithUnit("By"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			observer.Observe(int64(m.HeapAlloc))
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return mc, nil
}

// RecordClaim records a task claim by a worker.
func (mc *MetricsCollector) RecordClaim(ctx context.Context, taskID string) {
	mc.activeRunningMu.Lock()
	mc.activeRunning[taskID] = true
	mc.activeRunningMu.Unlock()

	mc.tasksClaimed.Add(ctx, 1)
}

// RecordCompletion records a task reaching completed status after running
// for duration since it was claimed.
func (mc *MetricsCollector) RecordCompletion(ctx context.Context, taskID string, duration time.Duration) {
	mc.clearRunning(taskID)
	mc.tasksCompleted.Add(ctx, 1)
	mc.taskDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status", "completed")))
}

// RecordFailure records a task reaching failed status.
func (mc *MetricsCollector) RecordFailure(ctx context.Context, taskID string, duration time.Duration) {
	mc.clearRunning(taskID)
	mc.tasksFailed.Add(ctx, 1)
	mc.taskDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status", "failed")))
}

// RecordSkip records a task being skipped, tagged with why it was skipped
// (e.g. "dependency_failed", "timeout").
func (mc *MetricsCollector) RecordSkip(ctx context.Context, taskID, reason string) {
	mc.clearRunning(taskID)
	mc.tasksSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (mc *MetricsCollector) clearRunning(taskID string) {
	mc.activeRunningMu.Lock()
	delete(mc.activeRunning, taskID)
	mc.activeRunningMu.Unlock()
}

// RecordExecution records a single subprocess invocation by the execution
// runtime.
func (mc *MetricsCollector) RecordExecution(ctx context.Context, exclusive bool, duration time.Duration, exitCode int) {
	attrs := []attribute.KeyValue{
		attribute.Bool("exclusive", exclusive),
		attribute.Int("exit_code", exitCode),
	}
	mc.execInvocations.Add(ctx, 1, metric.WithAttributes(attrs...))
	mc.execDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// SetPendingCount sets the current pending-task gauge value.
func (mc *MetricsCollector) SetPendingCount(n int) {
	mc.pendingCountMu.Lock()
	mc.pendingCount = int64(n)
	mc.pendingCountMu.Unlock()
}

// SetTaskCounter sets the source for the in-memory task count gauge.
func (mc *MetricsCollector) SetTaskCounter(counter TaskCounter) {
	mc.taskCounterMu.Lock()
	mc.taskCounter = counter
	mc.taskCounterMu.Unlock()
}
