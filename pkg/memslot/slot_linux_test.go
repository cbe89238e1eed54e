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

package memslot

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestNewLayout(t *testing.T) {
	s, err := New(Options{HeapSize: 64 * 1024, GuardPages: 1, SigstackSize: unix.SIGSTKSZ})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	heap := s.Heap()
	if len(heap) != 64*1024 {
		t.Fatalf("Heap() length = %d, want %d", len(heap), 64*1024)
	}
	heap[0] = 1
	heap[len(heap)-1] = 1

	ptr, size := s.Sigstack()
	if ptr == nil {
		t.Fatalf("Sigstack() returned nil pointer")
	}
	if size < unix.SIGSTKSZ {
		t.Fatalf("Sigstack() size = %d, want >= %d", size, unix.SIGSTKSZ)
	}
}

func TestNewMinimumSigstack(t *testing.T) {
	s, err := New(Options{HeapSize: 4096, GuardPages: 1, SigstackSize: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	_, size := s.Sigstack()
	if size < unix.SIGSTKSZ {
		t.Fatalf("Sigstack() size = %d, want >= SIGSTKSZ (%d) even when requested size is tiny", size, unix.SIGSTKSZ)
	}
}

func TestCloseIdempotent(t *testing.T) {
	s, err := New(Options{HeapSize: 4096, GuardPages: 1, SigstackSize: unix.SIGSTKSZ})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
