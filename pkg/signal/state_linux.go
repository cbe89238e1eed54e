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
	"sync"

	"golang.org/x/sys/unix"
)

// faultSignals is the fixed set of hardware faults this package traps.
// Order matches the indices used by signalState.saved.
var faultSignals = [4]unix.Signal{
	unix.SIGBUS,
	unix.SIGFPE,
	unix.SIGILL,
	unix.SIGSEGV,
}

func sigIndex(sig unix.Signal) (int, bool) {
	for i, s := range faultSignals {
		if s == sig {
			return i, true
		}
	}
	return 0, false
}

// signalState is the process-wide singleton described in spec.md §3/§4.B:
// a reference count of active Instance Guards and the host handlers
// displaced when the count went from zero to one.
//
// The mutex below is acquired from acquire/release and from
// guard_linux.go's releaseAndReport, never from the fault handler's
// decision path (handler_linux.go); reraise_linux.go takes
// it only in its best-effort lookup, with the documented fallback when it
// cannot observe the singleton.
type signalState struct {
	mu      sync.Mutex
	present bool
	counter int
	saved   [4]unix.Sigaction
}

var globalState signalState

// acquire installs the four fault-signal handlers the first time it is
// called (present goes false->true) and otherwise just bumps the
// reference count. See spec.md §4.B.
func acquire() error {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if globalState.present {
		globalState.counter++
		return nil
	}

	mask := unix.Sigset_t{}
	for _, sig := range faultSignals {
		addSignal(&mask, sig)
	}
	act := unix.Sigaction{
		Handler: sigHandlerAddr(),
		Flags:   unix.SA_SIGINFO | unix.SA_ONSTACK | unix.SA_RESTART,
		Mask:    mask,
	}

	var installed []int
	rollback := func() {
		for _, i := range installed {
			unix.Sigaction(faultSignals[i], &globalState.saved[i], nil)
		}
	}

	for i, sig := range faultSignals {
		var old unix.Sigaction
		if err := unix.Sigaction(sig, &act, &old); err != nil {
			rollback()
			return fmt.Errorf("install handler for %v: %w", sig, err)
		}
		globalState.saved[i] = old
		installed = append(installed, i)
	}

	globalState.present = true
	globalState.counter = 1
	return nil
}

// release decrements the reference count and, on the transition to zero,
// restores every saved host handler and drops the singleton.
func release() error {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if !globalState.present {
		panic("signal: release called with no signal state installed")
	}

	globalState.counter--
	if globalState.counter > 0 {
		return nil
	}

	var firstErr error
	for i, sig := range faultSignals {
		if err := unix.Sigaction(sig, &globalState.saved[i], nil); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("restore handler for %v: %w", sig, err)
		}
	}
	globalState.present = false
	globalState.counter = 0
	return firstErr
}

// savedFor returns the host handler displaced for sig, and whether the
// singleton was present to answer the question at all. Used only by
// reraise_linux.go, which must tolerate a "no" answer (see spec.md §4.E).
func savedFor(sig unix.Signal) (unix.Sigaction, bool) {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if !globalState.present {
		return unix.Sigaction{}, false
	}
	idx, ok := sigIndex(sig)
	if !ok {
		return unix.Sigaction{}, false
	}
	return globalState.saved[idx], true
}

func addSignal(set *unix.Sigset_t, sig unix.Signal) {
	// unix.Sigset_t is a fixed-size bitmap; golang.org/x/sys/unix does
	// not export a portable "sigaddset" helper for every GOARCH, so this
	// mirrors glibc's definition directly: word index sig-1 bit
	// position.
	word := (sig - 1) / 64
	bit := uint((sig - 1) % 64)
	set.Val[word] |= 1 << bit
}
