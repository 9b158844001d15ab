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

//go:build !windows

package execruntime

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// signalNames maps the signals a killed task process can plausibly die
// from to their conventional "SIG*" spelling, since syscall.Signal's own
// String() method returns a human sentence ("killed") rather than the
// name callers expect in logs and trajectory events.
var signalNames = map[syscall.Signal]string{
	syscall.Signal(unix.SIGABRT): "SIGABRT",
	syscall.Signal(unix.SIGALRM): "SIGALRM",
	syscall.Signal(unix.SIGBUS):  "SIGBUS",
	syscall.Signal(unix.SIGFPE):  "SIGFPE",
	syscall.Signal(unix.SIGHUP):  "SIGHUP",
	syscall.Signal(unix.SIGILL):  "SIGILL",
	syscall.Signal(unix.SIGINT):  "SIGINT",
	syscall.Signal(unix.SIGKILL): "SIGKILL",
	syscall.Signal(unix.SIGPIPE): "SIGPIPE",
	syscall.Signal(unix.SIGQUIT): "SIGQUIT",
	syscall.Signal(unix.SIGSEGV): "SIGSEGV",
	syscall.Signal(unix.SIGTERM): "SIGTERM",
	syscall.Signal(unix.SIGTRAP): "SIGTRAP",
	syscall.Signal(unix.SIGUSR1): "SIGUSR1",
	syscall.Signal(unix.SIGUSR2): "SIGUSR2",
}
