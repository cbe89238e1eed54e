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
	"testing"

	"github.com/daisukefuji/lucet/pkg/signal"
	"github.com/daisukefuji/lucet/pkg/trapmanifest"
)

func testModule(t *testing.T) *Module {
	t.Helper()
	return &Module{
		Name:       "test",
		Code:       []byte{0x90, 0x90, 0xc3}, // nop; nop; ret
		HeapSize:   65536,
		GuardPages: 1,
		Manifest: trapmanifest.New([]trapmanifest.Entry{
			{Range: trapmanifest.Range{Start: 0, End: 3}, TrapCode: signal.TrapCode{Kind: signal.KindUnreachable}},
		}),
	}
}

func TestNewInstanceAndClose(t *testing.T) {
	inst, err := NewInstance(testModule(t))
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	if got := len(inst.Heap()); got != 65536 {
		t.Fatalf("Heap() length = %d, want 65536", got)
	}
	if !inst.State().IsReady() {
		t.Fatalf("State() = %v, want Ready", inst.State())
	}
	if err := inst.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRunNormalReturn(t *testing.T) {
	inst, err := NewInstance(testModule(t))
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	defer inst.Close()

	rt := NewRuntime()
	report, err := rt.Run("test", inst, func(i *Instance) (signal.Termination, error) {
		return signal.Termination{Reason: signal.TerminationProvided, Payload: 42}, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Termination == nil {
		t.Fatalf("report.Termination = nil, want non-nil")
	}
	if report.Termination.Payload != 42 {
		t.Fatalf("report.Termination.Payload = %v, want 42", report.Termination.Payload)
	}
	if _, ok := rt.Lookup("test"); ok {
		t.Fatalf("instance still registered after Run returned")
	}
}

func TestLookupTrapCodeTranslatesToOffset(t *testing.T) {
	inst, err := NewInstance(testModule(t))
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	defer inst.Close()

	tc, ok := inst.LookupTrapCode(inst.base)
	if !ok {
		t.Fatalf("LookupTrapCode(base): not found")
	}
	if tc.Kind != signal.KindUnreachable {
		t.Fatalf("LookupTrapCode(base).Kind = %v, want KindUnreachable", tc.Kind)
	}

	if _, ok := inst.LookupTrapCode(inst.base - 1); ok {
		t.Fatalf("LookupTrapCode(base-1): expected not found")
	}
}
