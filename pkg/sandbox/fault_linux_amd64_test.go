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

//go:build amd64

package sandbox

import (
	"testing"

	"github.com/daisukefuji/lucet/pkg/signal"
	"github.com/daisukefuji/lucet/pkg/trapmanifest"
)

// These tests drive a real hardware fault through the whole pipeline —
// sandbox.Invoke's trampoline call, the kernel-delivered signal, the
// assembly trampoline in pkg/signal, and handleFaultTrampoline's
// classification — rather than a fakeInstance with a nop guest body.
// Each guest body below is raw x86-64 machine code, not compiler output,
// chosen to fault on its very first instruction so no disassembler is
// needed to reason about where the faulting PC lands.

// faultModule builds a single-entry Module whose entire code region maps
// to one TrapCode, for guest bodies small enough that "where exactly in
// the manifest does the fault land" isn't the thing under test.
func faultModule(code []byte, kind signal.Kind) *Module {
	return &Module{
		Name:       "fault-test",
		Code:       code,
		HeapSize:   65536,
		GuardPages: 1,
		Manifest: trapmanifest.New([]trapmanifest.Entry{
			{Range: trapmanifest.Range{Start: 0, End: uintptr(len(code))}, TrapCode: signal.TrapCode{Kind: kind}},
		}),
	}
}

func runFaultModule(t *testing.T, code []byte, kind signal.Kind) Report {
	t.Helper()
	inst, err := NewInstance(faultModule(code, kind))
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	defer inst.Close()

	rt := NewRuntime()
	report, err := rt.Run(t.Name(), inst, Invoke)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return report
}

// TestFaultIllegalInstruction executes a bare ud2, the dedicated x86
// illegal-instruction opcode, and expects a real SIGILL to surface as a
// Fault with the manifest's trap code — spec.md §8 scenario for an
// `unreachable` trap raised as a hardware fault rather than a call.
func TestFaultIllegalInstruction(t *testing.T) {
	code := []byte{0x0f, 0x0b} // ud2
	report := runFaultModule(t, code, signal.KindUnreachable)

	if report.Fault == nil {
		t.Fatalf("report.Fault = nil, want a fault (termination=%+v)", report.Termination)
	}
	if report.Fault.Details.TrapCode.Kind != signal.KindUnreachable {
		t.Fatalf("TrapCode.Kind = %v, want KindUnreachable", report.Fault.Details.TrapCode.Kind)
	}
	if report.Fault.Details.Fatal {
		t.Fatalf("Fault.Details.Fatal = true, want false (a named manifest kind is never fatal)")
	}
	if report.Fault.Siginfo.Signo == 0 {
		t.Fatalf("Fault.Siginfo.Signo = 0, want the raw SIGILL signal number")
	}
}

// TestFaultDivideByZero clears edx, eax and ecx and executes idiv ecx,
// an integer division by zero, and expects a real SIGFPE.
func TestFaultDivideByZero(t *testing.T) {
	code := []byte{
		0x31, 0xD2, // xor edx, edx
		0x31, 0xC0, // xor eax, eax
		0x31, 0xC9, // xor ecx, ecx
		0xF7, 0xF9, // idiv ecx
	}
	report := runFaultModule(t, code, signal.KindDivideByZero)

	if report.Fault == nil {
		t.Fatalf("report.Fault = nil, want a fault (termination=%+v)", report.Termination)
	}
	if report.Fault.Details.TrapCode.Kind != signal.KindDivideByZero {
		t.Fatalf("TrapCode.Kind = %v, want KindDivideByZero", report.Fault.Details.TrapCode.Kind)
	}
}

// TestFaultOutOfBoundsAccess reads through the heap pointer the amd64
// calling convention in invoke_amd64.s delivers in RDI, offset 16MiB past
// it — far outside both the heap and its guard pages — and expects a
// real SIGSEGV.
func TestFaultOutOfBoundsAccess(t *testing.T) {
	code := []byte{
		0x48, 0x8B, 0x87, 0x00, 0x00, 0x00, 0x01, // mov rax, [rdi+0x01000000]
	}
	report := runFaultModule(t, code, signal.KindOutOfBounds)

	if report.Fault == nil {
		t.Fatalf("report.Fault = nil, want a fault (termination=%+v)", report.Termination)
	}
	if report.Fault.Details.TrapCode.Kind != signal.KindOutOfBounds {
		t.Fatalf("TrapCode.Kind = %v, want KindOutOfBounds", report.Fault.Details.TrapCode.Kind)
	}
	if report.Fault.Details.Siginfo.Addr == 0 {
		t.Fatalf("Fault.Siginfo.Addr = 0, want the faulting address the kernel reported")
	}
}

// TestFaultUnknownPCIsFatal executes ud2 again but registers a manifest
// whose only entry covers a range that does not include the faulting PC,
// reproducing spec.md §8's "PC does not resolve to any manifest entry"
// scenario: VerifyTrapSafety must mark it fatal even though the fault
// itself (SIGILL) is one this package otherwise classifies.
func TestFaultUnknownPCIsFatal(t *testing.T) {
	code := []byte{0x0f, 0x0b} // ud2, at offset 0
	mod := &Module{
		Name:       "fault-test-unknown",
		Code:       code,
		HeapSize:   65536,
		GuardPages: 1,
		Manifest: trapmanifest.New([]trapmanifest.Entry{
			// Deliberately does not cover offset 0, where the fault lands.
			{Range: trapmanifest.Range{Start: 10, End: 20}, TrapCode: signal.TrapCode{Kind: signal.KindUnreachable}},
		}),
	}
	inst, err := NewInstance(mod)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	defer inst.Close()

	rt := NewRuntime()
	report, err := rt.Run(t.Name(), inst, Invoke)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Fault == nil {
		t.Fatalf("report.Fault = nil, want a fault")
	}
	if report.Fault.Details.TrapCode.Kind != signal.KindUnknown {
		t.Fatalf("TrapCode.Kind = %v, want KindUnknown", report.Fault.Details.TrapCode.Kind)
	}
	if !report.Fault.Details.Fatal {
		t.Fatalf("Fault.Details.Fatal = false, want true for an unresolved PC")
	}
}
