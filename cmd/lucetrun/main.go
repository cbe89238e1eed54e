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

// Command lucetrun loads a compiled guest module and runs it under the
// guest-signal trap mechanism, the way runsc drives a container under
// the sentry.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/daisukefuji/lucet/pkg/log"
)

// configPath is the -config flag, read by every subcommand's loadConfig
// helper since each owns its own flag.FlagSet and can't see main's.
var configPath string

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&inspectCmd{}, "")
	subcommands.Register(&stressCmd{}, "")
	subcommands.Register(&superviseCmd{}, "")

	flag.StringVar(&configPath, "config", "", "path to a lucet.toml configuration file")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	if *logLevel != "" {
		if err := log.SetLevel(*logLevel); err != nil {
			log.Fatalf("invalid -log-level: %v", err)
		}
	} else if cfg, err := loadConfig(); err == nil && cfg.LogLevel != "" {
		if err := log.SetLevel(cfg.LogLevel); err != nil {
			log.Warningf("config: invalid log_level: %v", err)
		}
	}

	os.Exit(int(subcommands.Execute(context.Background())))
}
