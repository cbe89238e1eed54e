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

import "testing"

func TestVerifyTrapSafetyUnknownIsFatal(t *testing.T) {
	d := FaultDetails{TrapCode: TrapCode{Kind: KindUnknown}}
	VerifyTrapSafety(&d)
	if !d.Fatal {
		t.Fatal("VerifyTrapSafety: unknown trap code must be Fatal")
	}
}

func TestVerifyTrapSafetyKnownIsNotFatal(t *testing.T) {
	for _, kind := range []Kind{
		KindOutOfBounds,
		KindIndirectCallTypeMismatch,
		KindDivideByZero,
		KindInvalidConversionToInteger,
		KindUnreachable,
		KindStackOverflow,
		KindInterrupt,
		KindUser,
	} {
		d := FaultDetails{TrapCode: TrapCode{Kind: kind}}
		VerifyTrapSafety(&d)
		if d.Fatal {
			t.Fatalf("VerifyTrapSafety: %v must not be Fatal", kind)
		}
	}
}

func TestStateClassifiers(t *testing.T) {
	cases := []struct {
		name  string
		state State
		is    func(State) bool
	}{
		{"Ready", Ready(), State.IsReady},
		{"Running", Running(), State.IsRunning},
		{"Yielded", Yielded(), State.IsYielded},
		{"Fault", Fault(StateFault{}), State.IsFault},
		{"Terminated", Terminated(Termination{}), State.IsTerminated},
	}
	for _, c := range cases {
		if !c.is(c.state) {
			t.Errorf("%s state failed its own classifier", c.name)
		}
	}
}

func TestStateFaultPayloadRoundTrip(t *testing.T) {
	want := StateFault{Details: FaultDetails{TrapCode: TrapCode{Kind: KindDivideByZero}, FaultingPC: 0x1234}}
	s := Fault(want)
	got, ok := s.FaultPayload()
	if !ok {
		t.Fatal("FaultPayload: ok = false on a Fault state")
	}
	if got.Details.FaultingPC != want.Details.FaultingPC {
		t.Fatalf("FaultPayload().Details.FaultingPC = %#x, want %#x", got.Details.FaultingPC, want.Details.FaultingPC)
	}

	if _, ok := Ready().FaultPayload(); ok {
		t.Fatal("FaultPayload: ok = true on a Ready state")
	}
}

func TestStateTerminationPayloadRoundTrip(t *testing.T) {
	want := Termination{Reason: TerminationProvided, Payload: "done"}
	s := Terminated(want)
	got, ok := s.TerminationPayload()
	if !ok {
		t.Fatal("TerminationPayload: ok = false on a Terminated state")
	}
	if got.Payload != "done" {
		t.Fatalf("TerminationPayload().Payload = %v, want %q", got.Payload, "done")
	}
}

func TestTrapCodeUnknown(t *testing.T) {
	if !(TrapCode{Kind: KindUnknown}).Unknown() {
		t.Fatal("TrapCode{KindUnknown}.Unknown() = false")
	}
	if (TrapCode{Kind: KindOutOfBounds}).Unknown() {
		t.Fatal("TrapCode{KindOutOfBounds}.Unknown() = true")
	}
}

func TestSignalBehaviorString(t *testing.T) {
	cases := map[SignalBehavior]string{
		SignalBehaviorDefault:    "Default",
		SignalBehaviorContinue:   "Continue",
		SignalBehaviorTerminate:  "Terminate",
		SignalBehavior(99):       "Invalid",
	}
	for behavior, want := range cases {
		if got := behavior.String(); got != want {
			t.Errorf("SignalBehavior(%d).String() = %q, want %q", behavior, got, want)
		}
	}
}
