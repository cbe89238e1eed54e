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
	"fmt"

	"github.com/daisukefuji/lucet/pkg/hostcontext"
)

// Run is the Instance Guard described in spec.md §4.C: a scoped
// acquisition of the signal regime around a single guest invocation.
//
// The caller must hold runtime.LockOSThread for the duration of this
// call; Run does not call it itself; see tls_linux.go for why.
//
// Steps below are numbered to match spec.md §4.C:
//  1. Compute the guest alt-stack location from inst's reserved slot.
//  2. Install the alt-stack, saving the previous one.
//  3. Acquire the process-wide signal state.
//  4. Run f(inst); capture its result.
//  5. Release the signal state; on the transition to zero, restore the
//     previous alt-stack.
//  6. Return the captured result.
//
// Steps 5–6 are guaranteed on every exit path of f, including the
// non-local unwind the fault handler performs via a context switch: that
// path bypasses this function's own deferred cleanup (the goroutine
// resumes at the call site of hostcontext.Save below, not inside f), so
// the cleanup here is written to be idempotent and is re-invoked by that
// resumption point rather than skipped.
func Run(inst Instance, f func(Instance) (Termination, error)) (res Termination, err error) {
	sp, size := inst.SigstackSlot()
	guestStack := Stack{SP: sp, Size: size}

	savedStack, err := Install(guestStack)
	if err != nil {
		return Termination{}, fmt.Errorf("signal: install guest alt-stack: %w", err)
	}

	released := false
	release := func() error {
		if released {
			return nil
		}
		released = true
		wasZero, rerr := releaseAndReport()
		if wasZero {
			if restoreErr := Restore(savedStack); restoreErr != nil && rerr == nil {
				rerr = restoreErr
			}
		}
		return rerr
	}

	if aerr := acquire(); aerr != nil {
		Restore(savedStack)
		return Termination{}, fmt.Errorf("signal: acquire signal state: %w", aerr)
	}

	var hostCtx hostcontext.Context
	hostcontext.Save(&hostCtx)
	// If the fault handler context-switched back to here, hostCtx's
	// resumption flag is now set: the stack, register file and signal
	// mask have all been restored to this exact point by
	// hostcontext.SetFromSignal. We still must run the release half of
	// this guard exactly once, which is why release() is idempotent.
	if hostCtx.Resumed() {
		currentInstance.clear()
		if rerr := release(); rerr != nil && err == nil {
			err = rerr
		}
		return terminationFromState(inst.State()), err
	}

	currentInstance.set(inst, &hostCtx)
	res, err = f(inst)
	currentInstance.clear()

	if rerr := release(); rerr != nil && err == nil {
		err = rerr
	}
	return res, err
}

// releaseAndReport calls release() and reports whether the counter
// reached zero (so the caller knows whether to restore the alt-stack).
func releaseAndReport() (wasZero bool, err error) {
	globalState.mu.Lock()
	counter := globalState.counter
	globalState.mu.Unlock()
	err = release()
	return counter == 1, err
}

// terminationFromState converts a fault-induced State into the
// Termination Run returns to its caller. A Fault state is not itself a
// Termination: callers distinguish the two via inst.State() after Run
// returns, same as they would on the non-fault path.
func terminationFromState(s State) Termination {
	if t, ok := s.TerminationPayload(); ok {
		return t
	}
	return Termination{Reason: TerminationSignal}
}
