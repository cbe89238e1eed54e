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

// Package trapmanifest implements the compiled module's trap manifest:
// the compiler-produced map from code addresses to WebAssembly trap
// codes, described as an external collaborator in spec.md §6
// ("module.lookup_trapcode(pc)") and §9 ("Trap manifest representation").
//
// A Manifest is built once at module-load time — allocation and sorting
// are fine there — and then looked up from inside the fault handler,
// where allocation and locking are not. The lookup is therefore a plain
// binary search over an already-sorted, never-mutated slice of
// instruction ranges: a faulting PC always lands somewhere inside a
// (possibly multi-byte) instruction, not necessarily on the first byte
// the compiler recorded for it, so entries key by range rather than by
// exact PC.
package trapmanifest

import (
	"sort"

	"github.com/daisukefuji/lucet/pkg/signal"
)

// Range is a half-open instruction range [Start, End) within a module's
// code, the unit spec.md §8 and §9 describe a manifest entry by.
type Range struct {
	Start uintptr
	End   uintptr
}

// Contains reports whether pc falls within r.
func (r Range) Contains(pc uintptr) bool {
	return pc >= r.Start && pc < r.End
}

// Entry associates one instruction's range with the trap it raises if a
// hardware fault fires anywhere inside it.
type Entry struct {
	Range    Range
	TrapCode signal.TrapCode
}

// Manifest is an immutable, sorted table of Entry. The zero value is an
// empty manifest.
type Manifest struct {
	entries []Entry
}

// New builds a Manifest from entries, which need not be pre-sorted and
// must not overlap. The returned Manifest shares no mutable state with
// entries: New copies and sorts its own slice, so later mutation of the
// caller's slice is safe.
func New(entries []Entry) *Manifest {
	m := &Manifest{entries: make([]Entry, len(entries))}
	copy(m.entries, entries)
	sort.Slice(m.entries, func(i, j int) bool { return m.entries[i].Range.Start < m.entries[j].Range.Start })
	return m
}

// Lookup resolves pc to the TrapCode of the range containing it, per
// spec.md §8: a PC one byte outside every manifest range resolves to
// not-found, including a PC equal to a range's End (End is exclusive).
//
// Async-signal-safe: a hand-rolled binary search over an already-sorted
// slice header captured once at call time. This deliberately avoids
// sort.Search, whose closure argument the compiler is not guaranteed to
// stack-allocate — the fault-handling path in pkg/signal must not
// allocate at all. m must not be mutated after New returns it (it never
// is — Manifest has no mutating methods).
func (m *Manifest) Lookup(pc uintptr) (signal.TrapCode, bool) {
	if m == nil {
		return signal.TrapCode{}, false
	}
	entries := m.entries
	// Find the first index whose Range.Start is greater than pc; since
	// entries are sorted by Start and do not overlap, the only
	// candidate that could contain pc is the one just before it.
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if entries[mid].Range.Start <= pc {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return signal.TrapCode{}, false
	}
	cand := entries[lo-1]
	if cand.Range.Contains(pc) {
		return cand.TrapCode, true
	}
	return signal.TrapCode{}, false
}

// Len reports the number of entries in the manifest.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns a copy of the manifest's entries, for inspection
// tooling (cmd/lucetrun's inspect subcommand). Not called from the fault
// handler.
func (m *Manifest) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
