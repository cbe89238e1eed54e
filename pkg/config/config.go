// Copyright 2018 The gVisor Authors.
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

// Package config holds the runtime configuration read by cmd/lucetrun,
// mirroring the flag/file split runsc's own config package uses: a
// struct of plain fields with defaults, loadable from a TOML file and
// overridable from the command line.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full set of tunables for running guest instances.
type Config struct {
	// GuardPages is a guard-page count, validated to be >= 0. It is not
	// applied to instances: pkg/sandbox places the module's own
	// GuardPages on each side of an instance's linear memory.
	GuardPages int `toml:"guard_pages"`

	// SigstackSize is an alternate signal stack size. It is not applied
	// to instances: pkg/sandbox always reserves unix.SIGSTKSZ.
	SigstackSize int `toml:"sigstack_size"`

	// DefaultPolicy selects the built-in policy applied to instances
	// that don't set their own. Recognized values: "default" (always
	// surface a Fault), "terminate" (always terminate on fault).
	DefaultPolicy string `toml:"default_policy"`

	// LogLevel is passed to pkg/log.SetLevel.
	LogLevel string `toml:"log_level"`

	// FaultLogPath, if non-empty, is where cmd/lucetrun appends one line
	// per fault report.
	FaultLogPath string `toml:"fault_log_path"`

	// FaultLogRate caps how many fault-report lines are written per
	// second; bursts beyond it are dropped, not queued.
	FaultLogRate float64 `toml:"fault_log_rate"`

	// SuperviseBackoff is the initial retry interval the supervise
	// subcommand uses after a crashed instance, growing exponentially
	// per cenkalti/backoff's default policy.
	SuperviseBackoff time.Duration `toml:"supervise_backoff"`

	// SuperviseMaxRestarts bounds how many times supervise will restart
	// a crashing instance before giving up. Zero means unlimited.
	SuperviseMaxRestarts int `toml:"supervise_max_restarts"`
}

// Default returns the configuration used when no file is loaded.
func Default() Config {
	return Config{
		GuardPages:           1,
		DefaultPolicy:        "default",
		LogLevel:             "info",
		FaultLogRate:         10,
		SuperviseBackoff:     100 * time.Millisecond,
		SuperviseMaxRestarts: 0,
	}
}

// Load reads path as TOML over top of Default(), so an incomplete file
// still produces a usable Config.
func Load(path string) (Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	switch c.DefaultPolicy {
	case "default", "terminate":
	default:
		return fmt.Errorf("config: default_policy %q: must be %q or %q", c.DefaultPolicy, "default", "terminate")
	}
	if c.GuardPages < 0 {
		return fmt.Errorf("config: guard_pages must be >= 0, got %d", c.GuardPages)
	}
	if c.FaultLogRate < 0 {
		return fmt.Errorf("config: fault_log_rate must be >= 0, got %f", c.FaultLogRate)
	}
	return nil
}
