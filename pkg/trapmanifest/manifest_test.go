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

package trapmanifest

import (
	"testing"

	"github.com/daisukefuji/lucet/pkg/signal"
)

func TestLookupWithinRange(t *testing.T) {
	m := New([]Entry{
		{Range: Range{Start: 0x2000, End: 0x2004}, TrapCode: signal.TrapCode{Kind: signal.KindDivideByZero}},
		{Range: Range{Start: 0x1000, End: 0x1007}, TrapCode: signal.TrapCode{Kind: signal.KindOutOfBounds, Tag: 7}},
		{Range: Range{Start: 0x3000, End: 0x3001}, TrapCode: signal.TrapCode{Kind: signal.KindUnreachable}},
	})

	// Exact start of the range.
	got, ok := m.Lookup(0x1000)
	if !ok {
		t.Fatalf("Lookup(0x1000): not found")
	}
	if got.Kind != signal.KindOutOfBounds || got.Tag != 7 {
		t.Fatalf("Lookup(0x1000) = %+v, want {KindOutOfBounds 7}", got)
	}

	// A byte in the middle of a multi-byte instruction's range must
	// still resolve to that instruction's trap code, not go unfound.
	got, ok = m.Lookup(0x1005)
	if !ok {
		t.Fatalf("Lookup(0x1005): not found")
	}
	if got.Kind != signal.KindOutOfBounds || got.Tag != 7 {
		t.Fatalf("Lookup(0x1005) = %+v, want {KindOutOfBounds 7}", got)
	}
}

func TestLookupUnknownPC(t *testing.T) {
	m := New([]Entry{{Range: Range{Start: 0x1000, End: 0x1004}, TrapCode: signal.TrapCode{Kind: signal.KindDivideByZero}}})

	// One byte outside the only manifest range on either side: spec.md
	// §8's boundary case.
	if _, ok := m.Lookup(0x1004); ok {
		t.Fatalf("Lookup(0x1004): expected not found (End is exclusive)")
	}
	if _, ok := m.Lookup(0x0fff); ok {
		t.Fatalf("Lookup(0x0fff): expected not found")
	}
}

func TestLookupBetweenRanges(t *testing.T) {
	m := New([]Entry{
		{Range: Range{Start: 0x1000, End: 0x1004}, TrapCode: signal.TrapCode{Kind: signal.KindDivideByZero}},
		{Range: Range{Start: 0x2000, End: 0x2004}, TrapCode: signal.TrapCode{Kind: signal.KindUnreachable}},
	})
	if _, ok := m.Lookup(0x1800); ok {
		t.Fatalf("Lookup(0x1800): expected not found, pc falls in the gap between two ranges")
	}
}

func TestLookupEmptyManifest(t *testing.T) {
	m := New(nil)
	if _, ok := m.Lookup(0x1000); ok {
		t.Fatalf("Lookup on empty manifest: expected not found")
	}
	if m.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", m.Len())
	}
}

func TestLookupNilManifest(t *testing.T) {
	var m *Manifest
	if _, ok := m.Lookup(0x1000); ok {
		t.Fatalf("Lookup on nil manifest: expected not found")
	}
}

func TestNewDoesNotAliasInput(t *testing.T) {
	entries := []Entry{{Range: Range{Start: 0x1000, End: 0x1004}, TrapCode: signal.TrapCode{Kind: signal.KindUnreachable}}}
	m := New(entries)
	entries[0].Range.Start = 0x9999

	if _, ok := m.Lookup(0x1000); !ok {
		t.Fatalf("Lookup(0x1000): expected found, New should have copied the input slice")
	}
}

func TestRangeContains(t *testing.T) {
	r := Range{Start: 0x10, End: 0x14}
	for _, pc := range []uintptr{0x10, 0x11, 0x13} {
		if !r.Contains(pc) {
			t.Errorf("Range{0x10,0x14}.Contains(%#x) = false, want true", pc)
		}
	}
	for _, pc := range []uintptr{0x0f, 0x14, 0x20} {
		if r.Contains(pc) {
			t.Errorf("Range{0x10,0x14}.Contains(%#x) = true, want false", pc)
		}
	}
}
