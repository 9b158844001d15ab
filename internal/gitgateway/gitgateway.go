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

// Package gitgateway serializes every git invocation a worker makes
// against a project's worktree, so that two workers committing at once
// can never interleave git's own internal state changes. It also blocks
// flags that rewrite history or touch remotes, since a misbehaving task
// command could otherwise force-push over a collaborator's work or
// rewrite a shared branch out from under the rest of the DAG.
package gitgateway

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/harnessdev/harness/internal/execruntime"
	pkgerrors "github.com/harnessdev/harness/pkg/errors"
)

// deniedPatterns match git arguments that are rejected unless the
// gateway was constructed with AllowDangerous. Patterns are matched
// against each argument individually, not the joined command line, so
// the "--force-with-lease" in "push --force-with-lease" is caught by
// "--force*". A "*" does not match "/", so an argument such as
// "--force-with-lease=origin/main" is not matched by "--force*"; the
// command is still rejected through its "push" argument.
var deniedPatterns = []string{
	"push",
	"--force",
	"--force*",
	"-f",
	"filter-branch",
	"filter-repo",
	"reset",
	"--hard",
	"clean",
	"-fd*",
	"gc",
	"--prune=*",
	"update-ref",
	"reflog",
}

// Gateway runs git commands through an execruntime.Runtime, always with
// exclusive=true, after checking the arguments against the deny-list.
type Gateway struct {
	runtime        *execruntime.Runtime
	worktree       string
	timeout        time.Duration
	allowDangerous bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTimeout overrides the default per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// AllowDangerous disables the deny-list entirely. It exists for
// maintenance tooling run outside the normal task pipeline and must
// never be set from a task's own command.
func AllowDangerous() Option {
	return func(g *Gateway) { g.allowDangerous = true }
}

// New returns a Gateway that runs git inside worktree using runtime.
func New(runtime *execruntime.Runtime, worktree string, opts ...Option) *Gateway {
	g := &Gateway{runtime: runtime, worktree: worktree, timeout: 2 * time.Minute}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DeniedFlagError reports that Run was asked to execute a denied git
// argument.
type DeniedFlagError struct {
	Argument string
	Pattern  string
}

func (e *DeniedFlagError) Error() string {
	return fmt.Sprintf("git argument %q is blocked (matches pattern %q); use AllowDangerous for maintenance tooling", e.Argument, e.Pattern)
}

// Run executes `git <args...>` inside the gateway's worktree, rejecting
// denied arguments first. It always runs exclusively: no two Run calls
// against the same Gateway's runtime overlap.
func (g *Gateway) Run(ctx context.Context, args ...string) (execruntime.Result, error) {
	return g.RunIn(ctx, "", args...)
}

// RunIn behaves like Run, but resolves the command inside cwd instead of
// the gateway's worktree root. cwd is relative to the worktree; an empty
// cwd (the common case) runs in the worktree root itself. cwd is
// rejected if it would resolve outside the worktree, since that would
// let a task escape the one directory tree the gateway is scoped to.
func (g *Gateway) RunIn(ctx context.Context, cwd string, args ...string) (execruntime.Result, error) {
	if !g.allowDangerous {
		if arg, pattern, denied := matchesDenyList(args); denied {
			return execruntime.Result{}, &DeniedFlagError{Argument: arg, Pattern: pattern}
		}
	}

	dir := g.worktree
	if cwd != "" {
		resolved := filepath.Join(g.worktree, cwd)
		rel, err := filepath.Rel(g.worktree, resolved)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return execruntime.Result{}, &pkgerrors.ValidationError{Field: "cwd", Message: "cwd must stay within the worktree: " + cwd}
		}
		dir = resolved
	}

	argv := append([]string{"git"}, args...)
	return g.runtime.Execute(ctx, argv, dir, nil, true, g.timeout)
}

func matchesDenyList(args []string) (arg, pattern string, denied bool) {
	for _, a := range args {
		for _, p := range deniedPatterns {
			if ok, err := doublestar.Match(p, a); err == nil && ok {
				return a, p, true
			}
		}
	}
	return "", "", false
}
