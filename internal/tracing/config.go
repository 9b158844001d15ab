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

// Config holds observability configuration for a single daemon process.
// Spans and metrics are exposed locally (Prometheus exposition format on
// the daemon's metrics endpoint); there is no remote OTLP export, since
// each daemon is scoped to one project and has no fleet to report to.
type Config struct {
	// Enabled controls whether tracing and metrics collection are active.
	Enabled bool

	// ServiceName identifies this daemon in spans, normally "harnessd".
	ServiceName string

	// ServiceVersion is the daemon build version.
	ServiceVersion string

	// Sampling configures trace sampling.
	Sampling SamplingConfig
}

// SamplingConfig controls which traces are recorded.
type SamplingConfig struct {
	// Enabled activates rate-based sampling (default: false, sample all).
	Enabled bool

	// Type is the sampling strategy: "head" is the only one implemented.
	Type string

	// Rate is the fraction of traces to sample (0.0-1.0).
	Rate float64

	// AlwaysSampleErrors samples every trace carrying a failed-task span
	// regardless of Rate.
	AlwaysSampleErrors bool
}

// DefaultConfig returns configuration with sensible defaults: tracing off
// until a project opts in via its config file.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "harnessd",
		ServiceVersion: "unknown",
		Sampling: SamplingConfig{
			Enabled:            false,
			Type:               "head",
			Rate:               1.0,
			AlwaysSampleErrors: true,
		},
	}
}
