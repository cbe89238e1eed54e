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

package sandbox

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/mohae/deepcopy"

	"github.com/daisukefuji/lucet/pkg/log"
	"github.com/daisukefuji/lucet/pkg/signal"
)

// Runtime is the process-wide registry of live instances. A single
// process typically has one Runtime; tests construct their own.
type Runtime struct {
	mu        sync.Mutex
	instances map[string]*Instance
}

// NewRuntime returns an empty Runtime.
func NewRuntime() *Runtime {
	return &Runtime{instances: make(map[string]*Instance)}
}

// Register adds inst to the registry under name, so Lookup can find it
// by name while it runs.
func (r *Runtime) Register(name string, inst *Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[name] = inst
}

// Unregister removes name from the registry.
func (r *Runtime) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, name)
}

// Lookup returns the registered instance for name, if any.
func (r *Runtime) Lookup(name string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[name]
	return inst, ok
}

// Report is the host-facing, finalized account of a single guest
// invocation: a Termination on the normal path, or a Fault with
// VerifyTrapSafety already applied. It is a deep copy of the instance
// state at the moment Run returned, so callers may retain it past the
// next invocation of the same Instance without aliasing.
type Report struct {
	Name        string
	Termination *signal.Termination
	Fault       *signal.StateFault
}

// Run drives one guest invocation of inst to completion. The caller
// must not have any other goroutine calling Run or mutating inst
// concurrently. Run itself locks the calling goroutine to its OS thread
// (runtime.LockOSThread) for the duration of the call: signal.Run's
// thread-local instance binding depends on it, the same precondition
// gVisor's own task goroutine has on the OS thread it runs a traced
// task on.
//
// f performs the actual guest invocation (e.g. jumping to inst.EntryPC)
// and returns the payload a non-fault return produced.
func (r *Runtime) Run(name string, inst *Instance, f func(*Instance) (signal.Termination, error)) (Report, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	inst.SetState(signal.Running())
	r.Register(name, inst)
	defer r.Unregister(name)

	term, err := signal.Run(inst, func(si signal.Instance) (signal.Termination, error) {
		return f(si.(*Instance))
	})
	if err != nil {
		return Report{}, fmt.Errorf("sandbox: run %s: %w", name, err)
	}

	return buildReport(name, inst, term), nil
}

func buildReport(name string, inst *Instance, term signal.Termination) Report {
	state := inst.State()
	if fault, ok := state.FaultPayload(); ok {
		signal.VerifyTrapSafety(&fault.Details)
		copied := deepcopy.Copy(fault).(signal.StateFault)
		if fault.Details.Fatal {
			log.Warningf("sandbox: %s: fatal fault: %s at pc=%#x", name, copied.Details.TrapCode.Kind, copied.Details.FaultingPC)
		} else {
			log.Infof("sandbox: %s: trapped: %s at pc=%#x", name, copied.Details.TrapCode.Kind, copied.Details.FaultingPC)
		}
		return Report{Name: name, Fault: &copied}
	}

	copied := deepcopy.Copy(term).(signal.Termination)
	log.Debugf("sandbox: %s: terminated: reason=%v", name, copied.Reason)
	return Report{Name: name, Termination: &copied}
}
