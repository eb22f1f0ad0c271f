// Copyright 2026 The Isobox Authors
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

// Package config loads the embedding application's settings for the
// sandbox layer: where the isolate binary lives, how many boxes it
// manages, and where their box directories are rooted.
package config

import (
	"fmt"
	"os"
	"strconv"

	isoerrors "github.com/arborjudge/isobox/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for an isobox deployment on one host.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Isolate IsolateConfig `yaml:"isolate"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig mirrors internal/log.Config for YAML/env loading.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// IsolateConfig describes the external sandbox binary and its pool.
type IsolateConfig struct {
	// BinaryPath is the path to the isolate executable.
	BinaryPath string `yaml:"binary_path"`
	// BoxCount is N, the number of box ids [0, N) the allocator manages.
	BoxCount int `yaml:"box_count"`
	// BoxRoot is the host directory isolate roots box directories under,
	// conventionally /var/local/lib/isolate.
	BoxRoot string `yaml:"box_root"`
	// UseCgroups is the host's cgroup-accounting setting as loaded from
	// the file. `isobox run` does not read it; that command's --cgroups
	// flag (default true) decides whether cgroups are used.
	UseCgroups bool `yaml:"use_cgroups"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Default returns the package's baseline configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Isolate: IsolateConfig{
			BinaryPath: "isolate",
			BoxCount:   64,
			BoxRoot:    "/var/local/lib/isolate",
			UseCgroups: true,
		},
		Metrics: MetricsConfig{Enabled: true, Listen: ":9090"},
	}
}

// Load builds a Config from the package defaults, overlaid by a YAML
// file, overlaid by recognized environment variables. Environment
// variables win. The file is configPath when it is non-empty, and an
// unreadable configPath is an error; when configPath is empty, the XDG
// default path is used only if a file exists there.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		if defaultPath, err := Path(); err == nil {
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				configPath = defaultPath
			}
		}
	}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, isoerrors.Wrapf(err, "loading config from %s", configPath)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("ISOBOX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ISOBOX_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("ISOBOX_BINARY_PATH"); v != "" {
		c.Isolate.BinaryPath = v
	}
	if v := os.Getenv("ISOBOX_BOX_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Isolate.BoxCount = n
		}
	}
	if v := os.Getenv("ISOBOX_BOX_ROOT"); v != "" {
		c.Isolate.BoxRoot = v
	}
	if v := os.Getenv("ISOBOX_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
}

// Validate checks the configuration is internally consistent enough to
// construct an allocator and session options from.
func (c *Config) Validate() error {
	if c.Isolate.BoxCount <= 0 {
		return fmt.Errorf("config: isolate.box_count must be positive, got %d", c.Isolate.BoxCount)
	}
	if c.Isolate.BinaryPath == "" {
		return fmt.Errorf("config: isolate.binary_path must not be empty")
	}
	return nil
}
