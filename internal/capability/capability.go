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

// Package capability checks that binaries the daemon depends on are
// present before it starts accepting requests, so a missing dependency
// fails loudly at startup instead of on a worker's first request.
package capability

import (
	"os/exec"

	pkgerrors "github.com/harnessdev/harness/pkg/errors"
)

// Check verifies every binary in required is resolvable on PATH,
// returning a CapabilityError for the first one that isn't.
func Check(required ...string) error {
	for _, bin := range required {
		if _, err := exec.LookPath(bin); err != nil {
			return &pkgerrors.CapabilityError{Binary: bin}
		}
	}
	return nil
}
