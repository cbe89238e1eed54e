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

// Package memslot implements the per-instance memory allocator and
// guard-page layout spec.md §6 treats as an external collaborator
// ("alloc.slot().sigstack") and places out of scope for the core at
// spec.md §1. A minimal, concrete version lives here because the rest of
// this repository needs a real guest memory region to produce real
// out-of-bounds faults against.
package memslot

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Slot owns one instance's linear memory, bracketed by PROT_NONE guard
// pages, plus a reserved region for that instance's alternate signal
// stack carved out of the same mapping. Every region is a single mmap so
// the whole thing is freed with one munmap.
type Slot struct {
	mapping    []byte
	heapOffset int
	heapLen    int
	stackOff   int
	stackLen   int
}

// Options configures a Slot's layout.
type Options struct {
	// HeapSize is the guest-addressable linear memory size, rounded up
	// to the page size.
	HeapSize int
	// GuardPages is the number of PROT_NONE pages placed before and
	// after the heap region. A guest access that walks off either end
	// of its linear memory raises SIGSEGV there rather than corrupting
	// host memory.
	GuardPages int
	// SigstackSize is the size reserved for this instance's alternate
	// signal stack. Must be at least unix.SIGSTKSZ per spec.md §4.A.
	SigstackSize int
}

var pageSize = unix.Getpagesize()

func roundUp(n, align int) int {
	return (n + align - 1) / align * align
}

// New reserves and lays out a Slot per opts.
func New(opts Options) (*Slot, error) {
	if opts.SigstackSize < unix.SIGSTKSZ {
		opts.SigstackSize = unix.SIGSTKSZ
	}
	heapLen := roundUp(opts.HeapSize, pageSize)
	guardLen := roundUp(opts.GuardPages, 1) * pageSize
	stackLen := roundUp(opts.SigstackSize, pageSize)

	total := guardLen + heapLen + guardLen + stackLen
	mapping, err := unix.Mmap(-1, 0, total, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("memslot: reserve %d bytes: %w", total, err)
	}

	heapOffset := guardLen
	if heapLen > 0 {
		if err := unix.Mprotect(mapping[heapOffset:heapOffset+heapLen], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			unix.Munmap(mapping)
			return nil, fmt.Errorf("memslot: protect heap: %w", err)
		}
	}

	stackOff := guardLen + heapLen + guardLen
	if err := unix.Mprotect(mapping[stackOff:stackOff+stackLen], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		unix.Munmap(mapping)
		return nil, fmt.Errorf("memslot: protect sigstack: %w", err)
	}

	return &Slot{
		mapping:    mapping,
		heapOffset: heapOffset,
		heapLen:    heapLen,
		stackOff:   stackOff,
		stackLen:   stackLen,
	}, nil
}

// Heap returns the guest-writable linear memory region. Accesses before
// or after it land in a PROT_NONE guard page.
func (s *Slot) Heap() []byte {
	return s.mapping[s.heapOffset : s.heapOffset+s.heapLen]
}

// Sigstack returns a pointer to, and the length of, the reserved
// alternate signal stack region, matching the
// signal.Instance.SigstackSlot contract in pkg/signal/policy.go.
func (s *Slot) Sigstack() (unsafe.Pointer, int) {
	return unsafe.Pointer(&s.mapping[s.stackOff]), s.stackLen
}

// Close releases the entire mapping.
func (s *Slot) Close() error {
	if s.mapping == nil {
		return nil
	}
	err := unix.Munmap(s.mapping)
	s.mapping = nil
	return err
}
