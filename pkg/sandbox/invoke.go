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

package sandbox

import (
	"unsafe"

	"github.com/daisukefuji/lucet/pkg/signal"
)

// callEntryAsm is defined in invoke_amd64.s / invoke_arm64.s.
func callEntryAsm(fn, heap uintptr, heapLen int) uintptr

// Invoke jumps directly to inst's entry point with its linear memory
// base and length as arguments, under the signal guard: a fault raised
// while executing guest code surfaces as a Fault state on inst rather
// than crashing the host process. Invoke is the f argument Runtime.Run
// is built to take.
func Invoke(inst *Instance) (signal.Termination, error) {
	h := inst.Heap()
	var heapPtr uintptr
	if len(h) > 0 {
		heapPtr = uintptr(unsafe.Pointer(&h[0]))
	}
	ret := callEntryAsm(inst.EntryPC(), heapPtr, len(h))
	return signal.Termination{Reason: signal.TerminationProvided, Payload: ret}, nil
}
