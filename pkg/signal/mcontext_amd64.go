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

//go:build amd64

package signal

import "unsafe"

// machineContextSize is sizeof(ucontext_t) on linux/amd64, rounded up.
// The exact value doesn't need to match libc's struct byte-for-byte: we
// only ever treat it as an opaque blob we copy whole into a fault
// report, except for the single PC field this package's fault handler
// must read to do the trap-manifest lookup.
const machineContextSize = 968

// ripOffset is the byte offset of uc_mcontext.gregs[REG_RIP] within
// ucontext_t on linux/amd64: 5 pointer-sized fields (uc_flags, uc_link,
// the three stack_t members folded in by alignment) plus
// REG_RIP(=16)*8 into gregs. This is spec.md §4.D step 2's
// "architecture-defined offset" and §9's single accessor with a
// compile-time-selected offset table; arm64 has its own file with its own
// constant.
const ripOffset = 40 + 16*8

// MachineContext is a fixed-size, async-signal-safe-to-copy snapshot of a
// ucontext_t. The fault handler copies the kernel-supplied context here by
// value and stores it in the Fault state. It is not used to resume the
// host: pkg/hostcontext restores from the registers it saved itself.
type MachineContext struct {
	raw [machineContextSize]byte
}

// machineContextFromPtr copies *ctxt (a ucontext_t*) into a MachineContext
// by value. ctxt must be non-nil.
func machineContextFromPtr(ctxt unsafe.Pointer) MachineContext {
	var mc MachineContext
	copy(mc.raw[:], unsafe.Slice((*byte)(ctxt), machineContextSize))
	return mc
}

// PC extracts the saved instruction pointer.
func (mc *MachineContext) PC() uintptr {
	return *(*uintptr)(unsafe.Pointer(&mc.raw[ripOffset]))
}

// Bytes exposes the raw ucontext_t bytes, for callers that inspect the
// machine context a fault was taken in.
func (mc *MachineContext) Bytes() []byte {
	return mc.raw[:]
}

// pcFromContext reads the faulting PC directly out of a live ucontext_t
// pointer, without going through a MachineContext copy. Used by the fault
// handler before it knows whether a copy will be needed at all (the
// Continue decision never needs one).
func pcFromContext(ctxt unsafe.Pointer) uintptr {
	return *(*uintptr)(unsafe.Pointer(uintptr(ctxt) + ripOffset))
}
