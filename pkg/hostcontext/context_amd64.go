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

package hostcontext

// savedRegs holds exactly the amd64 System V callee-saved general
// registers, the stack pointer, and the return address saveContext was
// called with — the minimum state needed to make a function "return
// twice", mirroring glibc's jmp_buf. Field order must match the offsets
// used in context_amd64.s.
type savedRegs struct {
	bx, bp, r12, r13, r14, r15 uintptr
	sp, pc                     uintptr
}

// saveContext and restoreContext are defined in context_amd64.s.
func saveContext(r *savedRegs)
func restoreContext(r *savedRegs)
