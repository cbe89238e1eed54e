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

import "unsafe"

// Siginfo is the subset of a POSIX siginfo_t this package exposes to
// policy callbacks and fault reports. It is populated by a raw field copy
// out of the kernel-delivered siginfo_t in the fault handler, which is
// async-signal-safe (no allocation beyond the fixed-size copy).
type Siginfo struct {
	Signo int32
	Errno int32
	Code  int32
	Addr  uintptr
}

// rawSiginfo mirrors the head of Linux's siginfo_t on amd64/arm64: a
// 3-int32 header common to every signal, followed by a union whose layout
// depends on si_code. For the four fault signals this package handles,
// the union's sigfault member puts the faulting address at offset 16.
type rawSiginfo struct {
	signo int32
	errno int32
	code  int32
	_     int32 // padding to the union on LP64 targets
	addr  uintptr
}

// siginfoFromPtr copies the fields this package cares about out of a
// kernel-supplied siginfo_t. ptr must be non-nil; the caller (the fault
// handler) has already validated that.
func siginfoFromPtr(ptr unsafe.Pointer) Siginfo {
	raw := (*rawSiginfo)(ptr)
	return Siginfo{
		Signo: raw.signo,
		Errno: raw.errno,
		Code:  raw.code,
		Addr:  raw.addr,
	}
}
