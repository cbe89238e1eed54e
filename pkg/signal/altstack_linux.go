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
	"unsafe"

	"golang.org/x/sys/unix"
)

// StackFlags mirror the two flag bits defined for struct sigaltstack.
type StackFlags int32

const (
	// StackOnStack indicates execution is currently on the alternate
	// stack (SS_ONSTACK). Only meaningful in a stack returned by
	// Install, never as an input flag.
	StackOnStack StackFlags = unix.SS_ONSTACK
	// StackDisabled indicates no alternate stack is installed
	// (SS_DISABLE).
	StackDisabled StackFlags = unix.SS_DISABLE
)

// OnStack reports whether f has the on-stack bit set.
func (f StackFlags) OnStack() bool { return f&StackOnStack != 0 }

// Disabled reports whether f has the disabled bit set.
func (f StackFlags) Disabled() bool { return f&StackDisabled != 0 }

// Stack describes an alternate signal stack, as accepted and returned by
// Install.
type Stack struct {
	SP    unsafe.Pointer
	Size  int
	Flags StackFlags
}

// Install installs s as the calling thread's alternate signal stack and
// returns the one it displaces.
//
// Install is a thin wrapper over sigaltstack(2); per spec.md §4.A it fails
// only with the kernel's EINVAL/EPERM, and the caller is expected to treat
// that as a fatal programmer error (a bad stack size, or attempting to
// change the stack while running on it).
//
// Precondition: the calling goroutine must not move to a different OS
// thread between Install calls that are meant to nest (callers must hold
// runtime.LockOSThread for the duration of use).
func Install(s Stack) (Stack, error) {
	new := &unix.Stack_t{
		Sp:    (*byte)(s.SP),
		Flags: int32(s.Flags),
		Size:  uint64(s.Size),
	}
	var old unix.Stack_t
	if err := unix.Sigaltstack(new, &old); err != nil {
		return Stack{}, fmt.Errorf("sigaltstack install: %w", err)
	}
	return Stack{
		SP:    unsafe.Pointer(old.Sp),
		Size:  int(old.Size),
		Flags: StackFlags(old.Flags),
	}, nil
}

// Restore reinstalls a previously displaced Stack, discarding whatever it
// in turn displaces (the caller already knows what that is: itself).
func Restore(s Stack) error {
	new := &unix.Stack_t{
		Sp:    (*byte)(s.SP),
		Flags: int32(s.Flags),
		Size:  uint64(s.Size),
	}
	var old unix.Stack_t
	if err := unix.Sigaltstack(new, &old); err != nil {
		return fmt.Errorf("sigaltstack restore: %w", err)
	}
	return nil
}
