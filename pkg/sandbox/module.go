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

// Package sandbox ties the trap manifest, memory slot allocator and
// signal guard together into a runnable guest instance: the concrete
// embedder gVisor's own runsc/sandbox addresses at the container level,
// scaled down to a single in-process compiled unit.
package sandbox

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/daisukefuji/lucet/pkg/signal"
	"github.com/daisukefuji/lucet/pkg/trapmanifest"
)

// Module is a compiled unit: the guest code plus the compiler-produced
// trap manifest and the memory layout it was compiled against. A single
// Module may back many concurrent Instances.
type Module struct {
	Name       string
	Code       []byte
	HeapSize   int
	GuardPages int
	Manifest   *trapmanifest.Manifest
	// Entry is the guest code's entry point, expressed as an offset from
	// the start of Code, matching the PCs recorded in Manifest.
	Entry uintptr
}

// manifestFile is the on-disk JSON representation LoadModule reads. A
// real compiler backend would emit this alongside the compiled object;
// here it stands in for that emission step.
type manifestFile struct {
	Name       string              `json:"name"`
	CodePath   string              `json:"code_path"`
	HeapSize   int                 `json:"heap_size"`
	GuardPages int                 `json:"guard_pages"`
	Entry      uintptr             `json:"entry"`
	Traps      []manifestFileEntry `json:"traps"`
}

type manifestFileEntry struct {
	Start uintptr `json:"start"`
	End   uintptr `json:"end"`
	Kind  int     `json:"kind"`
	Tag   uint32  `json:"tag"`
}

// LoadModule reads a module manifest from path and the code it
// references (resolved relative to path's directory), building the
// in-memory trap manifest used by the fault handler.
func LoadModule(path string) (*Module, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sandbox: read module manifest %s: %w", path, err)
	}
	var mf manifestFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("sandbox: parse module manifest %s: %w", path, err)
	}

	code, err := os.ReadFile(resolveSibling(path, mf.CodePath))
	if err != nil {
		return nil, fmt.Errorf("sandbox: read module code %s: %w", mf.CodePath, err)
	}

	entries := make([]trapmanifest.Entry, len(mf.Traps))
	for i, te := range mf.Traps {
		entries[i] = trapmanifest.Entry{
			Range:    trapmanifest.Range{Start: te.Start, End: te.End},
			TrapCode: signal.TrapCode{Kind: signal.Kind(te.Kind), Tag: te.Tag},
		}
	}

	return &Module{
		Name:       mf.Name,
		Code:       code,
		HeapSize:   mf.HeapSize,
		GuardPages: mf.GuardPages,
		Manifest:   trapmanifest.New(entries),
		Entry:      mf.Entry,
	}, nil
}

func resolveSibling(manifestPath, codePath string) string {
	if codePath == "" {
		return manifestPath
	}
	if os.IsPathSeparator(codePath[0]) {
		return codePath
	}
	dir := manifestPath
	for i := len(dir) - 1; i >= 0; i-- {
		if os.IsPathSeparator(dir[i]) {
			return dir[:i+1] + codePath
		}
	}
	return codePath
}
