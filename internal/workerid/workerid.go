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

// Package workerid manages the stable per-project worker identity file.
package workerid

import (
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/harnessdev/harness/internal/fsutil"
)

// mu serializes the read-or-generate sequence so two concurrent first
// reads in the same process can't both observe a miss and write twice.
var mu sync.Mutex

// Load returns the stable worker id stored at path, generating and
// persisting a new random one on first read. Every subsequent call
// against the same path returns the same value.
func Load(path string) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(path)
	if err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	id := uuid.New().String()
	if err := fsutil.WriteFileAtomic(path, []byte(id+"\n"), 0600); err != nil {
		return "", err
	}
	return id, nil
}
