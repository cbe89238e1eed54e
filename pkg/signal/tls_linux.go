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
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/daisukefuji/lucet/pkg/hostcontext"
)

// threadLocalInstance stands in for the C thread-local CURRENT_INSTANCE
// described in spec.md §3. Go has no language-level TLS, so this keys a
// map by the kernel thread ID returned by gettid(2); under the
// precondition that every caller of signal.Run holds runtime.LockOSThread
// for the call's duration, a goroutine's tid is stable for exactly as
// long as CURRENT_INSTANCE needs to stay non-nil, which gives the same
// guarantee a real TLS slot would.
//
// The fault handler's read path (get, hostContext) must not take a lock:
// spec.md §4.D forbids "general locking" on the decision path. This is
// implemented as a copy-on-write map behind an atomic.Pointer, giving
// the same lock-free read that pkg/trapmanifest gets from its immutable
// sorted table: writers (set/clear) build a new map and swap the pointer
// under writeMu;
// readers just atomically load the current map and do a plain,
// allocation-free map read of an otherwise-immutable value.
type threadLocalInstance struct {
	writeMu sync.Mutex
	current atomic.Pointer[map[int32]entry]
}

type entry struct {
	inst    Instance
	hostCtx *hostcontext.Context
}

// get is called from the fault handler and must not allocate or lock.
func (t *threadLocalInstance) get() (Instance, bool) {
	m := t.current.Load()
	if m == nil {
		return nil, false
	}
	e, ok := (*m)[int32(unix.Gettid())]
	if !ok {
		return nil, false
	}
	return e.inst, true
}

func (t *threadLocalInstance) hostContext() *hostcontext.Context {
	m := t.current.Load()
	if m == nil {
		return nil
	}
	e, ok := (*m)[int32(unix.Gettid())]
	if !ok {
		return nil
	}
	return e.hostCtx
}

// set records inst and the saved host context as current for this
// thread. Called only from Run (guard_linux.go), never from the fault handler.
func (t *threadLocalInstance) set(inst Instance, hostCtx *hostcontext.Context) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	next := make(map[int32]entry)
	if m := t.current.Load(); m != nil {
		for k, v := range *m {
			next[k] = v
		}
	}
	next[int32(unix.Gettid())] = entry{inst: inst, hostCtx: hostCtx}
	t.current.Store(&next)
}

// clear removes the current thread's entry. Called only from Run.
func (t *threadLocalInstance) clear() {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	m := t.current.Load()
	if m == nil {
		return
	}
	next := make(map[int32]entry, len(*m))
	for k, v := range *m {
		if k == int32(unix.Gettid()) {
			continue
		}
		next[k] = v
	}
	t.current.Store(&next)
}

// switchToHostContext is step 6 of the fault handler (spec.md §4.D):
// restore the host context previously saved by Run for this thread. It
// must not return.
func switchToHostContext() {
	hostCtx := currentInstance.hostContext()
	if hostCtx == nil {
		panic("signal: no saved host context for fault-induced switch")
	}
	hostcontext.SetFromSignal(hostCtx)
}
