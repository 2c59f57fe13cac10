// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package lua imports Lua plugin entry points.
//
// An entry point either returns its plugin (the default export) or assigns
// it to the global Plugin (the named export). The export is a constructor
// function, a class table with a new function, or the instance table
// itself. Instances carry string fields id, name, description and version,
// and methods activate(self, host) and deactivate(self).
package lua

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// library is a Lua standard library opened in every plugin state.
type library struct {
	name string
	fn   lua.LGFunction
}

// defaultLibraries returns the libraries opened for plugins: base, table,
// string and math. os, io, debug and package stay closed.
func defaultLibraries() []library {
	return []library{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
}

// blockedBaseFunctions are base library functions that read files.
var blockedBaseFunctions = []string{"dofile", "loadfile", "loadstring", "load"}

// StateFactory creates Lua states with a reduced standard library.
type StateFactory struct {
	libraries []library
}

// NewStateFactory creates a state factory with the default libraries.
func NewStateFactory() *StateFactory {
	return &StateFactory{
		libraries: defaultLibraries(),
	}
}

// NewState creates a fresh Lua state. The state observes ctx while
// evaluating code until the caller replaces or removes the context.
func (f *StateFactory) NewState(ctx context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	for _, lib := range f.libraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("failed to open library %s: %w", lib.name, err)
		}
	}

	for _, fn := range blockedBaseFunctions {
		L.SetGlobal(fn, lua.LNil)
	}

	if ctx != nil {
		L.SetContext(ctx)
	}
	return L, nil
}
