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

package rpcserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/harnessdev/harness/internal/execruntime"
	"github.com/harnessdev/harness/internal/gitgateway"
	"github.com/harnessdev/harness/internal/rpcclient"
	"github.com/harnessdev/harness/internal/state"
	"github.com/harnessdev/harness/internal/tracing"
	pkgerrors "github.com/harnessdev/harness/pkg/errors"
)

// Version identifies this build in ping responses.
const Version = "0.1.0"

// Deps are the components a Server's handlers compose over. The
// dispatcher never mutates state itself; every command is pure
// delegation to one of these.
type Deps struct {
	State    *state.Manager
	Exec     *execruntime.Runtime
	Git      *gitgateway.Gateway
	WorkerID string

	// Metrics records task and execution counters for the daemon's
	// Prometheus endpoint. Nil disables instrumentation entirely.
	Metrics *tracing.MetricsCollector
}

// handlerFunc processes one command's raw params and returns the value
// to encode as the response's data field.
type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Server dispatches RPC requests accepted on a listener to handlers
// built from Deps. Each connection carries exactly one request/response
// pair and is then closed.
type Server struct {
	deps     Deps
	handlers map[string]handlerFunc
	logger   *slog.Logger

	wg       sync.WaitGroup
	shutdown chan struct{}
	once     sync.Once
	ln       net.Listener
}

// New builds a Server with its command table wired to deps.
func New(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{deps: deps, logger: logger, shutdown: make(chan struct{})}
	s.handlers = s.buildHandlers()
	return s
}

// Serve accepts connections from ln until the listener is closed or
// Shutdown is called, handling each on its own goroutine.
func (s *Server) Serve(ln net.Listener) error {
	s.ln = ln
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				s.wg.Wait()
				return nil
			default:
				return err
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Shutdown signals Serve to stop accepting new connections, closing its
// listener so the blocked Accept call returns. It does not wait for
// in-flight handlers; callers that need that should call Wait after
// Shutdown returns.
func (s *Server) Shutdown() {
	s.once.Do(func() {
		close(s.shutdown)
		if s.ln != nil {
			s.ln.Close()
		}
	})
}

// Wait blocks until every in-flight handler goroutine has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return
	}

	var req rpcclient.Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.writeError(conn, &pkgerrors.ValidationError{Message: fmt.Sprintf("malformed request: %v", err)})
		return
	}

	handler, ok := s.handlers[req.Command]
	if !ok {
		s.writeError(conn, &pkgerrors.ValidationError{Field: "command", Message: "unknown command: " + req.Command})
		return
	}

	data, err := handler(context.Background(), req.Params)
	if err != nil {
		s.writeError(conn, err)
		return
	}
	s.writeOK(conn, data)
}

func (s *Server) writeOK(conn net.Conn, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.writeError(conn, err)
		return
	}
	resp := rpcclient.Response{Status: "ok", Data: raw}
	s.writeResponse(conn, resp)
}

func (s *Server) writeError(conn net.Conn, err error) {
	resp := rpcclient.Response{
		Status:  "error",
		Code:    string(pkgerrors.KindOf(err)),
		Message: err.Error(),
	}
	s.writeResponse(conn, resp)
}

func (s *Server) writeResponse(conn net.Conn, resp rpcclient.Response) {
	line, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encoding rpc response", "error", err)
		return
	}
	line = append(line, '\n')
	if _, err := conn.Write(line); err != nil {
		s.logger.Warn("writing rpc response", "error", err)
	}
}
