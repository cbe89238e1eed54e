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

package signal

import "unsafe"

// SignalBehavior is the decision a SignalPolicy returns for a given
// fault. Names match the original Rust implementation's SignalBehavior
// rather than being renumbered, since embedders ported from it would
// otherwise have to remember a remapping.
type SignalBehavior int

const (
	// SignalBehaviorDefault switches back to the host with Instance's
	// state populated as Fault.
	SignalBehaviorDefault SignalBehavior = iota
	// SignalBehaviorContinue returns from the handler without any state
	// change, resuming guest execution at the faulting instruction
	// (typically the policy has mutated the machine context to skip or
	// emulate it first).
	SignalBehaviorContinue
	// SignalBehaviorTerminate switches back to the host with Instance's
	// state populated as Terminated{Signal}.
	SignalBehaviorTerminate
)

func (b SignalBehavior) String() string {
	switch b {
	case SignalBehaviorDefault:
		return "Default"
	case SignalBehaviorContinue:
		return "Continue"
	case SignalBehaviorTerminate:
		return "Terminate"
	default:
		return "Invalid"
	}
}

// Policy is invoked from inside the fault handler and is therefore bound
// by the same async-signal-safety constraints as the handler itself: no
// allocation, no I/O, no locking that could already be held by the
// interrupted thread. Instance, Ctxt and Info are only valid for the
// duration of the call.
//
// Violating these constraints from within a Policy is undefined behavior;
// this package documents the contract but cannot enforce it.
type Policy func(inst Instance, trap TrapCode, signum int32, info *Siginfo, ctxt unsafe.Pointer) SignalBehavior

// DefaultPolicy always defers to SignalBehaviorDefault: every fault
// surfaces to the host as a Fault state. This is the "no-op" policy
// described in spec.md §6.
func DefaultPolicy(Instance, TrapCode, int32, *Siginfo, unsafe.Pointer) SignalBehavior {
	return SignalBehaviorDefault
}

// Instance is the contract the fault handler requires of a guest
// instance. It is satisfied by pkg/sandbox.Instance; this package never
// constructs one, only reads from and writes to it.
type Instance interface {
	// LookupTrapCode resolves a faulting PC against the instance's
	// compiled module. It must be read-only, lock-free and
	// allocation-free: it runs on the fault-handling path.
	LookupTrapCode(pc uintptr) (TrapCode, bool)

	// SignalPolicy returns the policy to consult for this instance.
	// Reading it must not allocate or lock.
	SignalPolicy() Policy

	// SetState writes the instance's run state. Called only with Fault
	// or Terminated from the fault handler's decision path; it must not
	// allocate or lock.
	SetState(State)

	// State returns the instance's current run state. Used by Run after
	// a fault-induced resumption to learn what the handler wrote.
	State() State

	// SigstackSlot returns the pointer and length of the memory region
	// reserved for this instance's alternate signal stack, owned by its
	// allocator.
	SigstackSlot() (unsafe.Pointer, int)
}
