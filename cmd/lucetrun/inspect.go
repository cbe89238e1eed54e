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

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/daisukefuji/lucet/pkg/log"
	"github.com/daisukefuji/lucet/pkg/sandbox"
)

type inspectCmd struct{}

func (*inspectCmd) Name() string             { return "inspect" }
func (*inspectCmd) Synopsis() string         { return "print a compiled module's trap manifest" }
func (*inspectCmd) Usage() string            { return "inspect <module-manifest.json>\n" }
func (*inspectCmd) SetFlags(f *flag.FlagSet) {}

func (*inspectCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Print((&inspectCmd{}).Usage())
		return subcommands.ExitUsageError
	}
	mod, err := sandbox.LoadModule(f.Arg(0))
	if err != nil {
		log.Warningf("inspect: %v", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("module %q: %d bytes of code, %d byte heap, %d guard page(s), entry=%#x\n",
		mod.Name, len(mod.Code), mod.HeapSize, mod.GuardPages, mod.Entry)
	fmt.Printf("%d trap manifest entries:\n", mod.Manifest.Len())
	for _, e := range mod.Manifest.Entries() {
		fmt.Printf("  range=[%#08x,%#08x) kind=%s tag=%d\n", e.Range.Start, e.Range.End, e.TrapCode.Kind, e.TrapCode.Tag)
	}
	return subcommands.ExitSuccess
}
