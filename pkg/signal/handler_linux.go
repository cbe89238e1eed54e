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

import (
	"reflect"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sigTrampoline is defined in trampoline_{amd64,arm64}.s. It is never
// called directly from Go; its only use is to hand its entry address to
// sigaction(2) via sigHandlerAddr.
func sigTrampoline()

// sigHandlerAddr returns the raw entry point of sigTrampoline, suitable
// for unix.Sigaction's Handler field. Taking a function value's code
// pointer this way — rather than via cgo — keeps this package free of a
// C toolchain dependency; it works because sigTrampoline has no Go body
// for the reflect machinery to instead decide to wrap.
func sigHandlerAddr() uintptr {
	return reflect.ValueOf(sigTrampoline).Pointer()
}

// currentInstance is the thread-local pointer described in spec.md §3:
// non-nil on exactly the goroutine (pinned to its OS thread) running a
// guest, observed by no other thread. Go has no native thread-local
// storage, so this package requires callers to pin the calling goroutine
// to its OS thread (runtime.LockOSThread) for the duration of a guard;
// under that precondition a package-level variable keyed by the OS
// thread ID is equivalent to a C thread-local.
var currentInstance threadLocalInstance

// handleFaultTrampoline is called from sigTrampoline with the raw
// arguments the kernel delivered. It is the entry point referred to as
// "D" throughout spec.md §4. Every step below corresponds to a numbered
// step in spec.md §4.D.
//
//go:nosplit
func handleFaultTrampoline(signum int32, infoPtr unsafe.Pointer, ctxtPtr unsafe.Pointer) {
	// Step 1: validate.
	sig := unix.Signal(signum)
	if sig != unix.SIGBUS && sig != unix.SIGFPE && sig != unix.SIGILL && sig != unix.SIGSEGV {
		panic("signal: unexpected signal delivered to guest fault handler")
	}
	if infoPtr == nil || ctxtPtr == nil {
		panic("signal: nil siginfo or ucontext in fault handler")
	}

	// Step 3: identify owner. Do this before paying for a full context
	// copy: the Continue/no-owner paths don't need one.
	inst, ok := currentInstance.get()
	if !ok {
		// No guest running on this thread: not our fault to handle.
		reraiseToHost(sig, signum, infoPtr, ctxtPtr)
		return
	}

	// Step 2: extract PC (cheap, no copy yet).
	pc := pcFromContext(ctxtPtr)

	// Step 4: classify.
	trap, found := inst.LookupTrapCode(pc)
	if !found {
		trap = TrapCode{Kind: KindUnknown, Tag: 0}
	}

	info := siginfoFromPtr(infoPtr)

	// Step 5: policy.
	policy := inst.SignalPolicy()
	if policy == nil {
		policy = DefaultPolicy
	}
	behavior := policy(inst, trap, signum, &info, ctxtPtr)

	var switchToHost bool
	switch behavior {
	case SignalBehaviorContinue:
		switchToHost = false

	case SignalBehaviorTerminate:
		inst.SetState(Terminated(Termination{Reason: TerminationSignal}))
		switchToHost = true

	default: // SignalBehaviorDefault
		mc := machineContextFromPtr(ctxtPtr)
		inst.SetState(Fault(StateFault{
			Details: FaultDetails{
				Fatal:      false,
				TrapCode:   trap,
				FaultingPC: pc,
				Siginfo:    info,
			},
			Siginfo:  info,
			Ucontext: mc,
		}))
		switchToHost = true
	}

	// Step 6: context switch.
	if switchToHost {
		switchToHostContext()
		panic("signal: context switch to host returned")
	}
}
