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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/creack/pty"
	"github.com/google/subcommands"

	"github.com/daisukefuji/lucet/pkg/log"
	"github.com/daisukefuji/lucet/pkg/sandbox"
)

type runCmd struct {
	name string
	pty  bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run a compiled guest module once" }
func (*runCmd) Usage() string {
	return "run [-name NAME] [-pty] <module-manifest.json>\n"
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "name to register the instance under; defaults to the module name")
	f.BoolVar(&c.pty, "pty", false, "allocate a pseudo-terminal for the guest's stdio and mirror it to this terminal")
}

// attachPty allocates a pseudo-terminal and starts copying its output to
// stdout, returning a closer. The guest side (ptmx's slave) is where an
// embedder with actual guest stdio wiring would dup its fds; this
// command just demonstrates the allocation and teardown.
func attachPty() (io.Closer, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("run: open pty: %w", err)
	}
	go io.Copy(os.Stdout, ptmx)
	return closerFunc(func() error {
		tty.Close()
		return ptmx.Close()
	}), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Println(c.Usage())
		return subcommands.ExitUsageError
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Warningf("run: %v", err)
		return subcommands.ExitFailure
	}

	if c.pty {
		closer, err := attachPty()
		if err != nil {
			log.Warningf("run: %v", err)
			return subcommands.ExitFailure
		}
		defer closer.Close()
	}

	mod, err := sandbox.LoadModule(f.Arg(0))
	if err != nil {
		log.Warningf("run: %v", err)
		return subcommands.ExitFailure
	}

	inst, err := sandbox.NewInstance(mod)
	if err != nil {
		log.Warningf("run: %v", err)
		return subcommands.ExitFailure
	}
	defer inst.Close()
	inst.SetSignalPolicy(cfg.Policy())

	name := c.name
	if name == "" {
		name = mod.Name
	}

	rt := sandbox.NewRuntime()
	report, err := rt.Run(name, inst, sandbox.Invoke)
	if err != nil {
		log.Warningf("run: %v", err)
		return subcommands.ExitFailure
	}

	switch {
	case report.Fault != nil:
		fmt.Printf("%s: fault: %s at pc=%#x (fatal=%v)\n", name, report.Fault.Details.TrapCode.Kind, report.Fault.Details.FaultingPC, report.Fault.Details.Fatal)
		if report.Fault.Details.Fatal {
			return subcommands.ExitFailure
		}
	case report.Termination != nil:
		fmt.Printf("%s: terminated: reason=%v payload=%v\n", name, report.Termination.Reason, report.Termination.Payload)
	}
	return subcommands.ExitSuccess
}
