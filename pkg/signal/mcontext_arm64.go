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

//go:build arm64

package signal

import "unsafe"

// machineContextSize is sizeof(ucontext_t) on linux/arm64, rounded up.
const machineContextSize = 984

// pcOffset is the byte offset of uc_mcontext.pc within ucontext_t on
// linux/arm64: uc_flags + uc_link + uc_stack(24) + uc_sigmask(8) padding
// to mcontext_t's 8-byte-aligned fault_address + 31 general registers,
// each 8 bytes, landing on the pc field. See mcontext_amd64.go for the
// amd64 analog of this accessor.
const pcOffset = 8 + 8 + 24 + 8 + 8 + 31*8

// MachineContext is the arm64 analog of the amd64 type in
// mcontext_amd64.go.
type MachineContext struct {
	raw [machineContextSize]byte
}

func machineContextFromPtr(ctxt unsafe.Pointer) MachineContext {
	var mc MachineContext
	copy(mc.raw[:], unsafe.Slice((*byte)(ctxt), machineContextSize))
	return mc
}

// PC extracts the saved program counter.
func (mc *MachineContext) PC() uintptr {
	return *(*uintptr)(unsafe.Pointer(&mc.raw[pcOffset]))
}

// Bytes exposes the raw ucontext_t bytes, for callers that inspect the
// machine context a fault was taken in.
func (mc *MachineContext) Bytes() []byte {
	return mc.raw[:]
}

func pcFromContext(ctxt unsafe.Pointer) uintptr {
	return *(*uintptr)(unsafe.Pointer(uintptr(ctxt) + pcOffset))
}
