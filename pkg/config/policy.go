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

package config

import (
	"unsafe"

	"github.com/daisukefuji/lucet/pkg/signal"
)

func terminateOnFault(signal.Instance, signal.TrapCode, int32, *signal.Siginfo, unsafe.Pointer) signal.SignalBehavior {
	return signal.SignalBehaviorTerminate
}

// Policy resolves c.DefaultPolicy to a signal.Policy. c must already
// have passed validate (Load and Default both guarantee this).
func (c Config) Policy() signal.Policy {
	switch c.DefaultPolicy {
	case "terminate":
		return signal.Policy(terminateOnFault)
	default:
		return signal.DefaultPolicy
	}
}
