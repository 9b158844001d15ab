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

// Package cli builds the harnessctl command tree: one subcommand per
// daemon RPC, sharing a socket-resolution and response-formatting layer
// so each command body is a thin decode-call-print wrapper.
package cli

import (
	"github.com/spf13/cobra"
)

var versionInfo = struct {
	Version, Commit, BuildDate string
}{Version: "dev", Commit: "none", BuildDate: "unknown"}

// SetVersion records build metadata shown by `harnessctl version`.
func SetVersion(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// globalFlags holds the persistent flag values shared by every
// subcommand's RunE.
type globalFlags struct {
	socket    string
	worktree  string
	autoStart bool
	timeout   string
	query     string
}

var flags globalFlags

// NewRootCommand builds the harnessctl root command with every RPC
// subcommand attached.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "harnessctl",
		Short: "Client for the per-project harness orchestration daemon",
		Long: `harnessctl talks to a running harnessd instance over its unix
socket. Most subcommands map directly onto a single daemon RPC and print
its JSON response; pass -q/--query to filter the response with a jq
expression before printing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.socket, "socket", "", "daemon socket path (default: derived from --worktree)")
	root.PersistentFlags().StringVar(&flags.worktree, "worktree", "", "project root (default: current directory)")
	root.PersistentFlags().BoolVar(&flags.autoStart, "auto-start", true, "start the daemon automatically if it isn't running")
	root.PersistentFlags().StringVar(&flags.timeout, "timeout", "", "request timeout, e.g. 30s (default: HARNESS_TIMEOUT or 10s)")
	root.PersistentFlags().StringVarP(&flags.query, "query", "q", "", "jq expression applied to the response before printing")

	root.AddCommand(
		newPingCommand(),
		newGetStateCommand(),
		newUpdateStateCommand(),
		newTaskClaimCommand(),
		newTaskCompleteCommand(),
		newTaskFailCommand(),
		newExecCommand(),
		newGitCommand(),
		newPlanImportCommand(),
		newPlanResetCommand(),
		newSessionStartCommand(),
		newCheckStateCommand(),
		newCheckCommitCommand(),
		newWorkerIDCommand(),
		newShutdownCommand(),
		newVersionCommand(),
	)

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print harnessctl build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Printf("harnessctl %s (%s, built %s)\n", versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
			return nil
		},
	}
}
