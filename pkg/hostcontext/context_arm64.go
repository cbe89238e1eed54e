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

package hostcontext

// savedRegs holds the arm64 callee-saved registers (X19-X28), the frame
// pointer, the stack pointer and the saved link register. Field order
// must match context_arm64.s.
type savedRegs struct {
	x19, x20, x21, x22, x23, x24, x25, x26, x27, x28 uintptr
	fp, sp, lr                                        uintptr
}

// saveContext and restoreContext are defined in context_arm64.s.
func saveContext(r *savedRegs)
func restoreContext(r *savedRegs)
