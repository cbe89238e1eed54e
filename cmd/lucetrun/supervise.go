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
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gofrs/flock"
	"github.com/google/subcommands"
	"golang.org/x/time/rate"

	"github.com/daisukefuji/lucet/pkg/log"
	"github.com/daisukefuji/lucet/pkg/sandbox"
	"github.com/daisukefuji/lucet/pkg/signal"
)

// superviseCmd restarts a module's instance on every non-fatal fault,
// stopping on a fatal fault or a termination, and backs off
// between restarts the way runsc's sandbox package backs off waiting
// for a child to exit.
type superviseCmd struct {
	maxRestarts int
}

func (*superviseCmd) Name() string     { return "supervise" }
func (*superviseCmd) Synopsis() string { return "run a module repeatedly, restarting after faults" }
func (*superviseCmd) Usage() string {
	return "supervise [-max-restarts N] <module-manifest.json>\n"
}

func (c *superviseCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.maxRestarts, "max-restarts", 0, "give up after this many restarts (0 = unlimited)")
}

func (c *superviseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Print(c.Usage())
		return subcommands.ExitUsageError
	}
	cfg, err := loadConfig()
	if err != nil {
		log.Warningf("supervise: %v", err)
		return subcommands.ExitFailure
	}
	if c.maxRestarts == 0 {
		c.maxRestarts = cfg.SuperviseMaxRestarts
	}

	mod, err := sandbox.LoadModule(f.Arg(0))
	if err != nil {
		log.Warningf("supervise: %v", err)
		return subcommands.ExitFailure
	}

	var faultLog *faultLogger
	if cfg.FaultLogPath != "" {
		fl, err := newFaultLogger(cfg.FaultLogPath, cfg.FaultLogRate)
		if err != nil {
			log.Warningf("supervise: %v", err)
			return subcommands.ExitFailure
		}
		defer fl.Close()
		faultLog = fl
	}

	rt := sandbox.NewRuntime()
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.SuperviseBackoff
	restarts := 0

	for {
		inst, err := sandbox.NewInstance(mod)
		if err != nil {
			return backoffFailure(err)
		}
		inst.SetSignalPolicy(cfg.Policy())

		name := fmt.Sprintf("%s-%d", mod.Name, restarts)
		report, err := rt.Run(name, inst, sandbox.Invoke)
		inst.Close()
		if err != nil {
			log.Warningf("supervise: %v", err)
			return subcommands.ExitFailure
		}

		if report.Fault == nil {
			log.Infof("supervise: %s: terminated normally, stopping", name)
			return subcommands.ExitSuccess
		}

		if faultLog != nil {
			faultLog.Log(name, report.Fault)
		}
		if report.Fault.Details.Fatal {
			log.Warningf("supervise: %s: fatal fault, stopping", name)
			return subcommands.ExitFailure
		}

		if c.maxRestarts > 0 && restarts >= c.maxRestarts {
			log.Warningf("supervise: %s: reached max-restarts (%d), stopping", name, c.maxRestarts)
			return subcommands.ExitFailure
		}
		restarts++

		wait := bo.NextBackOff()
		log.Infof("supervise: %s: faulted (%s), restarting in %s", name, report.Fault.Details.TrapCode.Kind, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return subcommands.ExitFailure
		}
	}
}

func backoffFailure(err error) subcommands.ExitStatus {
	log.Warningf("supervise: %v", err)
	return subcommands.ExitFailure
}

// faultLogger appends one line per fault report to a file, rate
// limited so a fast crash loop can't flood the disk, and guarded by an
// flock so two supervise processes sharing a fault-log path don't
// interleave writes.
type faultLogger struct {
	f       *os.File
	lock    *flock.Flock
	limiter *rate.Limiter
}

func newFaultLogger(path string, ratePerSec float64) (*faultLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("fault log: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("fault log: open %s: %w", path, err)
	}
	return &faultLogger{
		f:       f,
		lock:    flock.New(path + ".lock"),
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}, nil
}

func (l *faultLogger) Log(name string, fault *signal.StateFault) {
	if !l.limiter.Allow() {
		return
	}
	if err := l.lock.Lock(); err != nil {
		return
	}
	defer l.lock.Unlock()
	fmt.Fprintf(l.f, "%s\t%s\t%s\tpc=%#x\tfatal=%v\n",
		time.Now().UTC().Format(time.RFC3339), name, fault.Details.TrapCode.Kind, fault.Details.FaultingPC, fault.Details.Fatal)
}

func (l *faultLogger) Close() error {
	return l.f.Close()
}
