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
	"reflect"
	"regexp"
	"runtime"
	"strings"

	"github.com/gomlx/exceptions"
)

// Reuse binders: wrappers that make a graph-building function enter a fixed
// scope with AutoReuse on every call, so that the function creates its
// variables on the first call and reuses them on every later call -- however
// the wrapped function is passed around.
//
// There are three flavors, differing in how the target scope path is
// resolved at call time:
//
//   - LocalReuse: relative to the caller's current scope.
//   - GlobalReuse: absolute, from the root scope, wherever the caller is.
//   - InstanceReuse: relative to the scope owned by an object (see
//     HasVariableScope and VarScoped) -- for methods.
//
// Each flavor has a bare entry point that derives the scope name from the
// function's symbol name, and a ...WithScope entry point taking it
// explicitly. Anonymous functions have no usable symbol name, so they
// require the ...WithScope form.

// LocalReuse binds f to a scope named after f itself, entered with AutoReuse
// relative to the current scope of the context each call is made with.
//
// It panics if the scope name cannot be derived from f (e.g. an anonymous
// function) -- use LocalReuseWithScope then.
func LocalReuse[T any](f func(ctx *Context) T) func(ctx *Context) T {
	return LocalReuseWithScope(funcScopeName(f), f)
}

// LocalReuseWithScope binds f to the given scope path (it may contain
// multiple elements separated by "/"), entered with AutoReuse relative to
// the current scope of the context each call is made with.
func LocalReuseWithScope[T any](scope string, f func(ctx *Context) T) func(ctx *Context) T {
	validateScopePath(scope)
	return func(ctx *Context) T {
		return f(AutoReuse(ctx, scope))
	}
}

// GlobalReuse binds f to a scope named after f itself, entered with
// AutoReuse from the root scope -- the caller's current scope is irrelevant,
// all callers share the one scope.
//
// It panics if the scope name cannot be derived from f (e.g. an anonymous
// function) -- use GlobalReuseWithScope then.
func GlobalReuse[T any](f func(ctx *Context) T) func(ctx *Context) T {
	return GlobalReuseWithScope(funcScopeName(f), f)
}

// GlobalReuseWithScope binds f to the given scope path entered with
// AutoReuse from the root scope, independent of the caller's current scope.
func GlobalReuseWithScope[T any](scope string, f func(ctx *Context) T) func(ctx *Context) T {
	validateScopePath(scope)
	return func(ctx *Context) T {
		ctx.AssertValid()
		return f(autoReuseAbs(ctx, RootScope+scope, scope))
	}
}

// HasVariableScope is implemented by objects that own a variable scope of
// their own, usually by embedding VarScoped. It is what InstanceReuse
// resolves its target scope from.
type HasVariableScope interface {
	// VariableScope returns the handle of the scope owned by the object, or
	// nil if it was never set.
	VariableScope() *ScopeHandle
}

// VarScoped gives an object its own variable scope: embed it and initialize
// with NewVarScoped. It implements HasVariableScope.
type VarScoped struct {
	scopeHandle *ScopeHandle
}

// NewVarScoped allocates a never-before-used child scope of the context's
// current scope (defaultName, or defaultName_1, defaultName_2, ... -- see
// Context.InUnique) and returns a VarScoped holding on to it. Each instance
// gets its own scope, however many are created with the same defaultName.
func NewVarScoped(ctx *Context, defaultName string) VarScoped {
	scoped := ctx.InUnique(defaultName)
	handle := scoped.ScopeHandle()
	return VarScoped{scopeHandle: &handle}
}

// VariableScope implements HasVariableScope.
func (v VarScoped) VariableScope() *ScopeHandle { return v.scopeHandle }

// InstanceReuse binds the method m to a scope named after m itself, entered
// with AutoReuse relative to the scope owned by the instance the call is
// made with -- so each instance holds its own variables, and repeated calls
// on one instance reuse them.
//
// The instance type S must implement HasVariableScope (usually by embedding
// VarScoped); an instance whose scope was never set panics at call time.
// It panics at bind time if the scope name cannot be derived from m -- use
// InstanceReuseWithScope then.
func InstanceReuse[S HasVariableScope, T any](m func(self S, ctx *Context) T) func(self S, ctx *Context) T {
	return InstanceReuseWithScope(funcScopeName(m), m)
}

// InstanceReuseWithScope binds the method m to the given scope path, entered
// with AutoReuse relative to the scope owned by the instance the call is
// made with.
func InstanceReuseWithScope[S HasVariableScope, T any](scope string, m func(self S, ctx *Context) T) func(self S, ctx *Context) T {
	validateScopePath(scope)
	return func(self S, ctx *Context) T {
		ctx.AssertValid()
		handle := self.VariableScope()
		if handle == nil || !handle.Ok() {
			exceptions.Panicf("instance of type %T has no variable scope set: embed VarScoped and initialize it with NewVarScoped", self)
		}
		owned := ctx.InAbsPath(handle.ScopePath())
		owned.nameScope = handle.NameScope()
		return m(self, AutoReuse(owned, scope))
	}
}

func validateScopePath(scope string) {
	if scope == "" {
		exceptions.Panicf("reuse binders require a non-empty scope path")
	}
	for _, element := range strings.Split(scope, ScopeSeparator) {
		validateScopeElement(element)
	}
}

var anonymousFuncRegexp = regexp.MustCompile(`^func\d+$`)

// funcScopeName derives a scope name from the symbol name of f: the last
// name component, with the method value ("-fm") and generic instantiation
// suffixes stripped. It panics for anonymous functions.
func funcScopeName(f any) string {
	pc := reflect.ValueOf(f).Pointer()
	symbol := runtime.FuncForPC(pc)
	if symbol == nil {
		exceptions.Panicf("cannot derive a scope name from %T, use the ...WithScope form", f)
	}
	name := symbol.Name()
	if idx := strings.Index(name, "["); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSuffix(name, "-fm")
	name = name[strings.LastIndex(name, ".")+1:]
	if name == "" || anonymousFuncRegexp.MatchString(name) {
		exceptions.Panicf("cannot derive a scope name from an anonymous function, use the ...WithScope form")
	}
	return name
}
