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

// Package fsutil provides the crash-atomic file write protocol and
// permission helpers shared by the state manager, trajectory log, and
// project registry.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sensitivePatterns defines filename patterns that require restrictive permissions (0600/0700).
var sensitivePatterns = []string{
	"config", "settings", "conf", ".cfg", ".ini",
	"secret", "credential", "password", "auth",
	"key", ".pem", ".p12", ".jks", "private",
	".env",
	"token", "bearer", "api_key",
}

// DeterminePermissions returns appropriate file and directory permissions based on the file path.
// Sensitive files (matching patterns) get 0600/0700, general files get 0640/0750.
func DeterminePermissions(path string) (fileMode, dirMode os.FileMode) {
	base := strings.ToLower(filepath.Base(path))

	for _, pattern := range sensitivePatterns {
		if strings.Contains(base, pattern) {
			return 0600, 0700
		}
	}

	return 0640, 0750
}

// VerifyPermissions verifies that a file has the expected permissions by checking via file descriptor.
// This prevents TOCTOU (time-of-check-time-of-use) race conditions.
func VerifyPermissions(fd *os.File, expected os.FileMode) error {
	info, err := fd.Stat()
	if err != nil {
		return fmt.Errorf("failed to verify permissions: %w", err)
	}

	actual := info.Mode().Perm()
	if actual != expected {
		return fmt.Errorf("permissions mismatch: got %o, expected %o", actual, expected)
	}

	return nil
}

// CheckConfigPermissions checks if a config file or directory has overly permissive permissions.
// Returns a list of warning messages for files that are world-readable or group-writable.
func CheckConfigPermissions(path string) []string {
	var warnings []string

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return warnings
		}
		warnings = append(warnings, fmt.Sprintf("unable to check permissions for %s: %v", path, err))
		return warnings
	}

	mode := info.Mode()
	perm := mode.Perm()

	if mode.IsDir() {
		if perm&0004 != 0 {
			warnings = append(warnings, fmt.Sprintf("directory %s is world-readable (permissions: %o), recommend chmod 0700 or 0750", path, perm))
		}
		if perm&0002 != 0 {
			warnings = append(warnings, fmt.Sprintf("directory %s is world-writable (permissions: %o), recommend chmod 0700 or 0750", path, perm))
		}
		if perm&0020 != 0 {
			warnings = append(warnings, fmt.Sprintf("directory %s is group-writable (permissions: %o), recommend chmod 0700", path, perm))
		}
	} else {
		if perm&0004 != 0 {
			warnings = append(warnings, fmt.Sprintf("file %s is world-readable (permissions: %o), recommend chmod 0600 or 0640", path, perm))
		}
		if perm&0002 != 0 {
			warnings = append(warnings, fmt.Sprintf("file %s is world-writable (permissions: %o), recommend chmod 0600 or 0640", path, perm))
		}
		if perm&0020 != 0 {
			base := strings.ToLower(filepath.Base(path))
			isSensitive := false
			for _, pattern := range sensitivePatterns {
				if strings.Contains(base, pattern) {
					isSensitive = true
					break
				}
			}
			if isSensitive {
				warnings = append(warnings, fmt.Sprintf("sensitive file %s is group-writable (permissions: %o), recommend chmod 0600", path, perm))
			}
		}
	}

	return warnings
}
