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

package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	pkgerrors "github.com/harnessdev/harness/pkg/errors"
)

var (
	// ErrPIDFileExists is the sentinel wrapped inside the ConflictError
	// returned by Create when a lock file for the project is already
	// present. Callers that only care about "is there already a daemon
	// here" can keep matching on this with errors.Is.
	ErrPIDFileExists = errors.New("daemon lock file already exists")

	// ErrPIDFileLocked is the sentinel wrapped inside the ConflictError
	// returned by Create when another process holds the flock on the
	// lock file, even though the file itself could be opened.
	ErrPIDFileLocked = errors.New("daemon lock file is held by another process")

	// ErrInvalidPID is returned when the lock file contains non-numeric
	// or non-positive data, which only happens if it was hand-edited or
	// written by something other than this package.
	ErrInvalidPID = errors.New("invalid pid in daemon lock file")

	// ErrUnsafeDirectory is returned when the lock file's parent
	// directory is world-writable, which would let another local user
	// race the daemon for the lock path via a symlink.
	ErrUnsafeDirectory = errors.New("daemon lock directory is world-writable")
)

// PIDFileManager guards a single project's daemon against running twice
// at once. Every project registered in the registry gets its own lock
// file path (registry.Entry.PIDFilePath), so two harnessd processes can
// coexist for two different worktrees but never for the same one.
//
// It combines exclusive file locking (flock) with atomic creation
// (O_EXCL) so a second daemon racing the first for the same project
// always loses cleanly, rather than both believing they hold the lock.
type PIDFileManager struct {
	path     string
	lockFile *os.File
}

// NewPIDFileManager returns a manager for the daemon lock file at path,
// typically a registry entry's PIDFilePath.
func NewPIDFileManager(path string) *PIDFileManager {
	return &PIDFileManager{
		path: path,
	}
}

// Create takes the daemon lock for pid, creating the lock file's parent
// directory if needed. It returns a *pkgerrors.ConflictError wrapping
// ErrPIDFileExists or ErrPIDFileLocked if another daemon already holds
// the lock for this project.
func (m *PIDFileManager) Create(pid int) error {
	parentDir := filepath.Dir(m.path)
	if err := m.verifyDirectorySafety(parentDir); err != nil {
		return fmt.Errorf("unsafe daemon lock location: %w", err)
	}

	if err := os.MkdirAll(parentDir, 0700); err != nil {
		return fmt.Errorf("creating daemon lock directory: %w", err)
	}

	// O_EXCL prevents a symlink planted in the directory from being
	// followed, and rules out a plain open-truncate race with another
	// daemon starting at the same instant.
	f, err := os.OpenFile(m.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return conflictf(m.path, ErrPIDFileExists)
		}
		return fmt.Errorf("creating daemon lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		os.Remove(m.path)
		if err == syscall.EWOULDBLOCK {
			return conflictf(m.path, ErrPIDFileLocked)
		}
		return fmt.Errorf("locking daemon lock file: %w", err)
	}

	if _, err := f.WriteString(fmt.Sprintf("%d\n", pid)); err != nil {
		f.Close()
		os.Remove(m.path)
		return fmt.Errorf("writing daemon lock file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(m.path)
		return fmt.Errorf("syncing daemon lock file: %w", err)
	}

	// Keep the file open so the flock held above stays in effect for the
	// lifetime of this manager.
	m.lockFile = f
	return nil
}

// conflictf wraps sentinel in a ConflictError carrying the contested
// path, while preserving errors.Is(err, sentinel) for callers that only
// need the coarse "already locked" check.
func conflictf(path string, sentinel error) error {
	return fmt.Errorf("%w: %w", &pkgerrors.ConflictError{Resource: "daemon lock", Detail: path}, sentinel)
}

// Read returns the pid recorded in the lock file.
func (m *PIDFileManager) Read() (int, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, err
		}
		return 0, fmt.Errorf("reading daemon lock file: %w", err)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPID, pidStr)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w: pid must be positive, got %d", ErrInvalidPID, pid)
	}

	return pid, nil
}

// Remove releases the flock, if held, and deletes the lock file. It is
// safe to call even if Create never succeeded.
func (m *PIDFileManager) Remove() error {
	if m.lockFile != nil {
		syscall.Flock(int(m.lockFile.Fd()), syscall.LOCK_UN)
		m.lockFile.Close()
		m.lockFile = nil
	}

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing daemon lock file: %w", err)
	}

	return nil
}

// Exists reports whether a lock file is present, regardless of whether
// it is actually held by a live process.
func (m *PIDFileManager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// verifyDirectorySafety rejects a world-writable parent directory, which
// would let another local user substitute a symlink at the lock path
// between our stat and our open.
func (m *PIDFileManager) verifyDirectorySafety(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("statting daemon lock directory: %w", err)
	}

	mode := info.Mode()
	if mode&0002 != 0 {
		return fmt.Errorf("%w: %s has mode %04o", ErrUnsafeDirectory, dir, mode&os.ModePerm)
	}

	return nil
}
