// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package loom

import (
	"github.com/loom-lang/loom/internal/errs"
	"github.com/loom-lang/loom/internal/lexer"
)

// ModuleLoader resolves an import of the given type (the registered
// type symbol's name) and path into a Source the host can then
// CompileClosure/CompileFiber (spec §6.1: "Register a module loader (by
// type symbol) and an optional path translator"). Core itself never
// calls a loader — resolving an `import` expression into a loader
// lookup is part of the prelude spec §1 leaves to the embedder; this
// registry just gives the embedder's own import builtin somewhere to
// look one up by name.
type ModuleLoader func(ins *Instance, path string) (lexer.Source, error)

// RegisterModuleLoader installs loader as the handler for imports typed
// typeName (e.g. "file", "embed").
func (ins *Instance) RegisterModuleLoader(typeName string, loader ModuleLoader) {
	ins.loaders[typeName] = loader
}

// SetPathTranslator installs fn to rewrite a module path before it
// reaches the loader — e.g. resolving a relative import against the
// requiring unit's own directory.
func (ins *Instance) SetPathTranslator(fn func(path string) string) {
	ins.pathFn = fn
}

// LoadModule runs the registered loader for typeName against path
// (translated first, if a path translator is installed), returning the
// Source it resolves to. The loader is host-written code reaching
// outside the language instance entirely (opening a file, a network
// connection, ...) — an arena deferred-cleanup part brackets the call
// (spec §4.1's pending-parts discipline) so a loader that panics
// partway through acquiring its resource still gets unwound through
// Arena.Guard before LoadModule turns the panic into an ordinary
// *errs.Error return, the same conversion runEntry does at a fiber
// boundary.
func (ins *Instance) LoadModule(typeName, path string) (src lexer.Source, err error) {
	if ins.pathFn != nil {
		path = ins.pathFn(path)
	}
	loader, ok := ins.loaders[typeName]
	if !ok {
		return nil, ins.recordErr(errs.New(errs.System, "no module loader registered for type %q", typeName))
	}

	part := ins.Arena.InstallDefer(func() {
		src = nil
	})
	defer func() {
		if r := recover(); r != nil {
			ins.Arena.Cancel(part)
			err = ins.recordErr(errs.New(errs.System, "loading module %q (%s): %v", path, typeName, errs.AsError(r)))
		}
	}()
	ins.Arena.Guard(func() {
		src, err = loader(ins, path)
	})
	if err != nil {
		ins.Arena.Cancel(part)
		return nil, ins.recordErr(errs.New(errs.System, "loading module %q (%s): %v", path, typeName, err))
	}
	ins.Arena.CancelDefer(part)
	return src, nil
}
