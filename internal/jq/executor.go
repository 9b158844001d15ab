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

// Package jq runs the jq expression behind harnessctl's --query/-q flag
// against a decoded RPC response. It exists so a caller can pull a
// single field out of, say, a get_state response without writing a
// wrapper script around harnessctl.
package jq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/itchyny/gojq"

	pkgerrors "github.com/harnessdev/harness/pkg/errors"
)

const (
	// DefaultTimeout bounds how long a single --query expression may run
	// against one RPC response.
	DefaultTimeout = 1 * time.Second

	// DefaultMaxInputSize bounds the size of the response a query is run
	// against. RPC responses are single task/state snapshots, not bulk
	// exports, so 10MB is generous headroom rather than a tuned limit.
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// Executor evaluates jq expressions against already-decoded JSON values
// (typically an RPC response's data field) with a timeout and an input
// size ceiling, so a pathological expression or an unexpectedly large
// response can't hang or balloon a harnessctl invocation.
type Executor struct {
	timeout      time.Duration
	maxInputSize int64
}

// NewExecutor builds an Executor. A zero timeout or maxInputSize falls
// back to the package defaults.
func NewExecutor(timeout time.Duration, maxInputSize int64) *Executor {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if maxInputSize == 0 {
		maxInputSize = DefaultMaxInputSize
	}

	return &Executor{
		timeout:      timeout,
		maxInputSize: maxInputSize,
	}
}

// Execute runs expression against data. An empty expression is a no-op
// that returns data unchanged, matching --query's default of "print the
// whole response."
func (e *Executor) Execute(ctx context.Context, expression string, data interface{}) (interface{}, error) {
	if expression == "" {
		return data, nil
	}

	if err := e.validateInputSize(data); err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	code, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	resultChan := make(chan interface{}, 1)
	errorChan := make(chan error, 1)

	go func() {
		iter := code.Run(data)

		var results []interface{}
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				errorChan <- &pkgerrors.ValidationError{Field: "query", Message: err.Error()}
				return
			}
			results = append(results, v)
		}

		switch len(results) {
		case 0:
			resultChan <- nil
		case 1:
			resultChan <- results[0]
		default:
			resultChan <- results
		}
	}()

	select {
	case result := <-resultChan:
		return result, nil
	case err := <-errorChan:
		return nil, err
	case <-execCtx.Done():
		return nil, &pkgerrors.ExecutionError{Argv: []string{"--query", expression}, TimedOut: true}
	}
}

// Validate checks that expression parses and compiles, without running
// it. An empty expression is valid.
func (e *Executor) Validate(expression string) error {
	if expression == "" {
		return nil
	}
	_, err := e.compile(expression)
	return err
}

// compile parses and compiles expression, wrapping gojq's error in the
// ValidationError taxonomy the rest of the daemon's error handling uses.
func (e *Executor) compile(expression string) (*gojq.Code, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, &pkgerrors.ValidationError{Field: "query", Message: err.Error()}
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, &pkgerrors.ValidationError{Field: "query", Message: err.Error()}
	}
	return code, nil
}

// validateInputSize rejects a response too large to safely query. It
// marshals to JSON to measure, which is also the representation the
// query itself runs against conceptually.
func (e *Executor) validateInputSize(data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return &pkgerrors.ValidationError{Field: "query", Message: "response could not be measured: " + err.Error()}
	}
	if int64(len(jsonData)) > e.maxInputSize {
		return &pkgerrors.ValidationError{
			Field:   "query",
			Message: "response exceeds the maximum size a query can be run against",
		}
	}
	return nil
}
