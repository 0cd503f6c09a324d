/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package context

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
)

// Scope-reuse machinery.
//
// AutoReuse is the automatic form of Reuse/Unique: the first time a scope
// path is entered (within one context's shared data) its variables are
// created, and every later entry reuses them. The scope path is the reuse
// key; the name scope, used to qualify operation names, is freshly
// disambiguated on every entry (a, a_1, a_2, ...) so that the operations
// built by successive calls don't clash.
//
// A ScopeHandle captures an entered scope so it can be passed around and
// entered again later, optionally reopening its original name scope instead
// of allocating a fresh one.

// AutoReuse returns a new reference to the Context entered into the given
// scope path (relative to the current scope, it may contain multiple
// elements separated by "/"), with the reuse flag set automatically: false
// the first time this absolute path is entered in this context, true on
// every later entry. The returned reference is Checked.
//
// The path must not be empty and must not start or end with the separator.
func AutoReuse(ctx *Context, path string) *Context {
	ctx.AssertValid()
	if path == "" {
		exceptions.Panicf("AutoReuse: scope path must not be empty")
	}
	for _, element := range strings.Split(path, ScopeSeparator) {
		validateScopeElement(element)
	}
	return autoReuseAbs(ctx, joinScope(ctx.scope, path), joinName(ctx.nameScope, path))
}

// autoReuseAbs enters absPath with automatic reuse, allocating a fresh name
// scope disambiguated from nameScopeBase.
func autoReuseAbs(ctx *Context, absPath, nameScopeBase string) *Context {
	ctx2 := ctx.InAbsPath(absPath)
	ctx2.reuse = ctx.data.visitedScopes[absPath]
	ctx.data.visitedScopes[absPath] = true
	ctx2.checked = true
	ctx2.nameScope = ctx.allocNameScope(nameScopeBase)
	return ctx2
}

// ScopeHandle captures an entered scope: its absolute path and its allocated
// name scope. The zero value is not usable -- get one from
// Context.ScopeHandle.
type ScopeHandle struct {
	scopePath string
	nameScope string
	valid     bool
}

// Ok returns whether the handle was captured from a context, as opposed to
// being the zero value.
func (h ScopeHandle) Ok() bool { return h.valid }

// ScopePath returns the absolute scope path captured by the handle.
func (h ScopeHandle) ScopePath() string { return h.scopePath }

// NameScope returns the name scope captured by the handle.
func (h ScopeHandle) NameScope() string { return h.nameScope }

// String implements fmt.Stringer.
func (h ScopeHandle) String() string {
	if !h.valid {
		return "ScopeHandle(invalid)"
	}
	return fmt.Sprintf("ScopeHandle(%q)", h.scopePath)
}

// ScopeHandle captures the current scope of the context, so it can be
// entered again later with AutoReuseScope.
func (ctx *Context) ScopeHandle() ScopeHandle {
	ctx.AssertValid()
	return ScopeHandle{scopePath: ctx.scope, nameScope: ctx.nameScope, valid: true}
}

// AutoReuseScope is the ScopeHandle form of AutoReuse: it enters the scope
// captured by the handle, with the reuse flag set automatically as in
// AutoReuse.
//
// If reopenNameScope is true, the handle's original name scope is reopened
// instead of a fresh one being allocated: operations then continue to be
// named within it (OpName disambiguates clashing operation names). This is
// only possible with a handle, which is why there is no reopen flavor of the
// string-keyed AutoReuse.
func AutoReuseScope(ctx *Context, handle ScopeHandle, reopenNameScope bool) *Context {
	ctx.AssertValid()
	if !handle.Ok() {
		exceptions.Panicf("AutoReuseScope: invalid ScopeHandle (the zero value?), capture one with Context.ScopeHandle")
	}
	if reopenNameScope {
		ctx2 := ctx.InAbsPath(handle.scopePath)
		ctx2.reuse = ctx.data.visitedScopes[handle.scopePath]
		ctx.data.visitedScopes[handle.scopePath] = true
		ctx2.checked = true
		ctx2.nameScope = handle.nameScope
		return ctx2
	}
	return autoReuseAbs(ctx, handle.scopePath, handle.nameScope)
}

// allocNameScope returns base if it was never allocated in this context, and
// otherwise the first free disambiguation base_1, base_2, .... The result is
// registered as allocated.
func (ctx *Context) allocNameScope(base string) string {
	taken := ctx.data.nameScopes
	if !taken[base] {
		taken[base] = true
		return base
	}
	for ii := 1; ; ii++ {
		candidate := fmt.Sprintf("%s_%d", base, ii)
		if !taken[candidate] {
			taken[candidate] = true
			return candidate
		}
	}
}

// OpName allocates a unique operation name within the current name scope:
// the first call in a given name scope returns "<nameScope>/<base>", later
// calls with the same base return "<nameScope>/<base>_1" and so on. The
// names are unique within the context, even when a name scope is reopened.
func (ctx *Context) OpName(base string) string {
	ctx.AssertValid()
	validateScopeElement(base)
	full := joinName(ctx.nameScope, base)
	count := ctx.data.opNames[full]
	ctx.data.opNames[full] = count + 1
	if count == 0 {
		return full
	}
	return fmt.Sprintf("%s_%d", full, count)
}

// InUnique returns a new reference to the Context entered into a
// never-before-used child scope of the current one, named defaultName, or
// defaultName_1, defaultName_2, ... if already used. The returned reference
// is Checked and not in reuse mode.
//
// It is used by objects that own their variables (see NewVarScoped): each
// instance gets its own scope, however many are created.
func (ctx *Context) InUnique(defaultName string) *Context {
	ctx.AssertValid()
	validateScopeElement(defaultName)
	for ii := 0; ; ii++ {
		name := defaultName
		if ii > 0 {
			name = fmt.Sprintf("%s_%d", defaultName, ii)
		}
		absPath := joinScope(ctx.scope, name)
		nameScope := joinName(ctx.nameScope, name)
		if ctx.data.variablesMap[absPath] != nil || ctx.data.visitedScopes[absPath] || ctx.data.nameScopes[nameScope] {
			continue
		}
		ctx2 := ctx.InAbsPath(absPath)
		ctx2.reuse = false
		ctx2.checked = true
		ctx2.nameScope = ctx.allocNameScope(nameScope)
		return ctx2
	}
}
