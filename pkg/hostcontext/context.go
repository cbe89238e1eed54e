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

// Package hostcontext implements the user-mode context-switch primitive
// spec.md §6 treats as an external collaborator of the signal-trap core:
// saving a host call stack's machine context before entering a guest, and
// restoring it from within a signal handler running on a different
// (alternate) stack.
//
// This is the one package in the repository that touches raw machine
// registers. It is deliberately narrow: save the callee-saved register
// file, the stack pointer and a return address; restore them with an
// indirect jump. That is the same shape as C's setjmp/longjmp, and is
// exactly the operation spec.md §9 calls out as needing "a single
// register-load that also re-establishes the host alt-stack state" and
// an unblocked signal mask on the way back in.
package hostcontext

import "golang.org/x/sys/unix"

// Context is a saved snapshot of one goroutine's machine state, always
// taken on a goroutine pinned to its OS thread via runtime.LockOSThread
// (the same precondition pkg/signal.Run requires of its caller).
//
// The zero Context is not valid; always construct via Save.
type Context struct {
	regs    savedRegs
	mask    unix.Sigset_t
	resumed bool
}

// Resumed reports whether this Context was reached via SetFromSignal's
// non-local jump rather than a normal return from the Save call that
// populated it.
func (c *Context) Resumed() bool {
	return c.resumed
}

// Save snapshots the calling goroutine's machine context into ctx.
//
// Save behaves like C's setjmp: control returns from this call twice.
// The first time, normally, with ctx.Resumed() == false. The second
// time, if and only if SetFromSignal(ctx) is later invoked from a signal
// handler on this same thread, with ctx.Resumed() == true and the
// current signal mask restored to what it was when Save ran.
func Save(ctx *Context) {
	ctx.resumed = false
	unix.PthreadSigmask(unix.SIG_SETMASK, nil, &ctx.mask) // set==nil: read-only, how ignored
	saveContext(&ctx.regs)
}

// SetFromSignal restores ctx, causing its Save call site to return for a
// second time with Resumed() true. It never returns to its own caller.
//
// Async-signal-safe: no allocation, no I/O, no locking. Unblocking the
// fault signals as part of the restore is essential — the kernel
// delivered the fault with all four masked (state_linux.go's acquire),
// and without this the host would resume with them still blocked.
func SetFromSignal(ctx *Context) {
	ctx.resumed = true
	unix.PthreadSigmask(unix.SIG_SETMASK, &ctx.mask, nil)
	restoreContext(&ctx.regs)
	panic("hostcontext: restoreContext returned")
}
