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
	"unsafe"

	"golang.org/x/sys/unix"
)

// reraiseToHost implements spec.md §4.E: deliver a fault that hit this
// thread while no guest was running to whatever handler this package
// displaced, as if it had never installed one.
//
// savedFor takes and releases the singleton mutex internally; it is never
// held across the re-raise below, because the re-raise may recurse into
// handleFaultTrampoline on this same thread.
func reraiseToHost(sig unix.Signal, signum int32, infoPtr, ctxtPtr unsafe.Pointer) {
	saved, ok := savedFor(sig)
	if !ok {
		// The "very fishy" race from spec.md §9: the last Instance Guard
		// released between this fault's delivery and this lookup. By the
		// time release() finished, it had already restored the host
		// handler for sig, so unblocking and re-raising dispatches
		// straight to it without our involvement.
		unblockAndRaise(sig)
		return
	}

	switch {
	case isSigDfl(saved.Handler):
		// Reinstall default disposition and re-raise; this terminates the
		// process per POSIX default action for all four fault signals.
		unix.Sigaction(sig, &saved, nil)
		unblockAndRaise(sig)

	case isSigIgn(saved.Handler):
		// Nothing to do. A host that configured SIG_IGN for a hardware
		// fault signal cannot productively ignore it, but this package
		// does not second-guess that choice.
		return

	default:
		// A real handler (SA_SIGINFO or a plain handler): call it
		// directly with the original arguments rather than re-raising
		// through the kernel, which would dispatch back onto the
		// alternate stack and re-run this package's trampoline.
		callSavedHandler(saved, signum, infoPtr, ctxtPtr)
	}
}

const (
	sigDfl = 0
	sigIgn = 1
)

func isSigDfl(handler uintptr) bool { return handler == sigDfl }
func isSigIgn(handler uintptr) bool { return handler == sigIgn }

func unblockAndRaise(sig unix.Signal) {
	var set unix.Sigset_t
	addSignal(&set, sig)
	unix.PthreadSigmask(unix.SIG_UNBLOCK, &set, nil)
	unix.Tgkill(unix.Getpid(), unix.Gettid(), sig)
}

// callHandlerAsm is defined in callhandler_{amd64,arm64}.s.
func callHandlerAsm(fn, a0, a1, a2 uintptr)

// callSavedHandler invokes saved's handler directly with the original
// kernel-delivered arguments. It does not distinguish a plain
// sig_t handler from an SA_SIGINFO handler at the call-ABI level: both
// are C functions taking up to three integer-sized arguments, and a
// plain handler simply ignores the second and third.
func callSavedHandler(saved unix.Sigaction, signum int32, infoPtr, ctxtPtr unsafe.Pointer) {
	callHandlerAsm(saved.Handler, uintptr(signum), uintptr(infoPtr), uintptr(ctxtPtr))
}
