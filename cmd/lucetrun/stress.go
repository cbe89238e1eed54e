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
	"runtime"
	"sync/atomic"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"github.com/daisukefuji/lucet/pkg/log"
	"github.com/daisukefuji/lucet/pkg/sandbox"
)

// stressCmd runs many concurrent instances of the same module, each on
// its own locked OS thread, to exercise the signal guard's per-thread
// state under contention.
type stressCmd struct {
	workers    int
	iterations int
}

func (*stressCmd) Name() string     { return "stress" }
func (*stressCmd) Synopsis() string { return "run many concurrent instances of a module" }
func (*stressCmd) Usage() string {
	return "stress [-workers N] [-iterations N] <module-manifest.json>\n"
}

func (c *stressCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.workers, "workers", runtime.GOMAXPROCS(0), "number of concurrent worker goroutines")
	f.IntVar(&c.iterations, "iterations", 100, "invocations per worker")
}

func (c *stressCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Print(c.Usage())
		return subcommands.ExitUsageError
	}
	cfg, err := loadConfig()
	if err != nil {
		log.Warningf("stress: %v", err)
		return subcommands.ExitFailure
	}
	mod, err := sandbox.LoadModule(f.Arg(0))
	if err != nil {
		log.Warningf("stress: %v", err)
		return subcommands.ExitFailure
	}

	rt := sandbox.NewRuntime()
	var faults, fatal int32
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < c.workers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < c.iterations; i++ {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				inst, err := sandbox.NewInstance(mod)
				if err != nil {
					return fmt.Errorf("worker %d: new instance: %w", w, err)
				}
				inst.SetSignalPolicy(cfg.Policy())

				name := fmt.Sprintf("stress-%d-%d", w, i)
				report, err := rt.Run(name, inst, sandbox.Invoke)
				inst.Close()
				if err != nil {
					return fmt.Errorf("worker %d: run %d: %w", w, i, err)
				}
				if report.Fault != nil {
					atomic.AddInt32(&faults, 1)
					if report.Fault.Details.Fatal {
						atomic.AddInt32(&fatal, 1)
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warningf("stress: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("ran %d workers x %d iterations: %d faults (%d fatal)\n", c.workers, c.iterations, faults, fatal)
	return subcommands.ExitSuccess
}
