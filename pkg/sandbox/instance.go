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
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/daisukefuji/lucet/pkg/memslot"
	"github.com/daisukefuji/lucet/pkg/signal"
)

// Instance is one guest invocation of a Module: its own linear memory,
// its own alternate signal stack, and the mutable run state the fault
// handler writes into. It implements signal.Instance.
type Instance struct {
	module *Module
	slot   *memslot.Slot
	code   []byte // PROT_READ|PROT_EXEC mapping, a copy of module.Code
	base   uintptr

	policy atomic.Pointer[signal.Policy]
	state  atomic.Pointer[signal.State]
}

// NewInstance maps fresh guest memory for m and prepares an Instance
// ready to Run. Callers must Close the returned Instance once done.
func NewInstance(m *Module) (*Instance, error) {
	slot, err := memslot.New(memslot.Options{
		HeapSize:     m.HeapSize,
		GuardPages:   m.GuardPages,
		SigstackSize: unix.SIGSTKSZ,
	})
	if err != nil {
		return nil, fmt.Errorf("sandbox: allocate memory slot: %w", err)
	}

	code, err := unix.Mmap(-1, 0, len(m.Code), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		slot.Close()
		return nil, fmt.Errorf("sandbox: map code region: %w", err)
	}
	copy(code, m.Code)
	if err := unix.Mprotect(code, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(code)
		slot.Close()
		return nil, fmt.Errorf("sandbox: mark code executable: %w", err)
	}

	inst := &Instance{
		module: m,
		slot:   slot,
		code:   code,
		base:   uintptr(unsafe.Pointer(&code[0])),
	}
	inst.SetSignalPolicy(signal.DefaultPolicy)
	inst.SetState(signal.Ready())
	return inst, nil
}

// Close releases the instance's memory. It must not be called while the
// instance is running.
func (i *Instance) Close() error {
	var codeErr error
	if i.code != nil {
		codeErr = unix.Munmap(i.code)
		i.code = nil
	}
	slotErr := i.slot.Close()
	if codeErr != nil {
		return codeErr
	}
	return slotErr
}

// EntryPC returns the runtime address of the module's entry point,
// suitable for handing to a guest trampoline.
func (i *Instance) EntryPC() uintptr {
	return i.base + i.module.Entry
}

// Heap returns the instance's linear memory.
func (i *Instance) Heap() []byte {
	return i.slot.Heap()
}

// SetSignalPolicy installs the policy consulted by the fault handler for
// this instance. Safe to call before Run; must not be called while the
// instance is running.
func (i *Instance) SetSignalPolicy(p signal.Policy) {
	i.policy.Store(&p)
}

// LookupTrapCode implements signal.Instance by translating the absolute
// faulting PC into an offset from the instance's code base and
// resolving that against the module's manifest, which records offsets
// rather than absolute addresses so a Module can be shared read-only
// across many Instances mapped at different addresses.
func (i *Instance) LookupTrapCode(pc uintptr) (signal.TrapCode, bool) {
	if pc < i.base {
		return signal.TrapCode{}, false
	}
	return i.module.Manifest.Lookup(pc - i.base)
}

// SignalPolicy implements signal.Instance.
func (i *Instance) SignalPolicy() signal.Policy {
	if p := i.policy.Load(); p != nil {
		return *p
	}
	return signal.DefaultPolicy
}

// SetState implements signal.Instance.
func (i *Instance) SetState(s signal.State) {
	i.state.Store(&s)
}

// State implements signal.Instance.
func (i *Instance) State() signal.State {
	if s := i.state.Load(); s != nil {
		return *s
	}
	return signal.Ready()
}

// SigstackSlot implements signal.Instance.
func (i *Instance) SigstackSlot() (unsafe.Pointer, int) {
	return i.slot.Sigstack()
}
