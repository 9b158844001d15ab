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

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Daemon holds the subset of harnessd's tunables a project can commit to
// config.yaml instead of passing as flags on every invocation. Flags
// passed on the command line always win over a value loaded here.
type Daemon struct {
	ContainerRuntime string `yaml:"container_runtime"`
	MetricsAddr      string `yaml:"metrics_addr"`
	PlanFile         string `yaml:"plan_file"`
}

// Config is the top-level shape of harness's config.yaml.
type Config struct {
	Daemon Daemon `yaml:"daemon"`
}

// LoadFile reads and parses a config.yaml at path. A missing file is not
// an error: it returns a zero-value Config so callers can merge it with
// flag defaults unconditionally.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Load resolves config.yaml from the standard harness config directory.
func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFile(path)
}

// firstNonEmpty returns the first non-blank string, trimmed.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}
