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
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// SamplerConfig configures trace sampling behavior.
type SamplerConfig struct {
	// Enabled controls whether sampling is active.
	Enabled bool

	// Rate is the sampling rate (0.0-1.0). 1.0 samples every span.
	Rate float64

	// AlwaysSampleErrors ensures spans marked as errors are always sampled
	// regardless of Rate.
	AlwaysSampleErrors bool
}

// NewSampler creates an OpenTelemetry sampler from cfg. A single daemon
// process generates a modest span volume, so the default (Enabled=false)
// samples everything; Rate-based sampling exists for large fleets running
// many daemons behind a shared collector.
func NewSampler(cfg SamplerConfig) sdktrace.Sampler {
	if !cfg.Enabled || cfg.Rate >= 1.0 {
		return sdktrace.AlwaysSample()
	}

	if cfg.Rate <= 0.0 {
		if cfg.AlwaysSampleErrors {
			return &errorAwareSampler{baseSampler: sdktrace.NeverSample()}
		}
		return sdktrace.NeverSample()
	}

	baseSampler := sdktrace.TraceIDRatioBased(cfg.Rate)
	if cfg.AlwaysSampleErrors {
		return &errorAwareSampler{baseSampler: baseSampler}
	}
	return baseSampler
}

// errorAwareSampler wraps a base sampler to always sample spans carrying
// an "error" attribute, so a failed task's trace is never dropped by rate
// sampling.
type errorAwareSampler struct {
	baseSampler sdktrace.Sampler
}

// ShouldSample implements sdktrace.Sampler.
func (s *errorAwareSampler) ShouldSample(params sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, attr := range params.Attributes {
		if attr.Key == "error" && attr.Value.AsBool() {
			return sdktrace.SamplingResult{
				Decision:   sdktrace.RecordAndSample,
				Tracestate: trace.SpanContextFromContext(params.ParentContext).TraceState(),
			}
		}
		if attr.Key == "harness.task_status" && attr.Value.AsString() == "failed" {
			return sdktrace.SamplingResult{
				Decision:   sdktrace.RecordAndSample,
				Tracestate: trace.SpanContextFromContext(params.ParentContext).TraceState(),
			}
		}
	}
	return s.baseSampler.ShouldSample(params)
}

// Description implements sdktrace.Sampler.
func (s *errorAwareSampler) Description() string {
	return "ErrorAwareSampler{base=" + s.baseSampler.Description() + "}"
}
