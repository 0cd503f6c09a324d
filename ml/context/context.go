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

// Package context defines the Context and Variable types: Context organizes
// variables and hyperparameters in a tree of scopes, and provides the
// scope-reuse machinery (AutoReuse and the reuse binders in reuse.go) that
// lets the same model-building code either create its variables or reuse the
// ones created by a previous call.
//
// A Context is a thin scoped reference: the current scope path (like a
// current directory), the current name scope, the reuse and checked flags
// and the default variable initializer. All references created from the same
// root (with In, Reuse, AutoReuse, etc.) share the same underlying data:
// the variables, the hyperparameters, the set of scopes already visited for
// reuse and the registry of allocated names. Changing scope returns a new
// reference and never mutates the one it came from, so there is nothing to
// restore when a scoped call returns.
//
// Two independently created contexts share nothing: names and reuse marks in
// one are invisible to the other.
//
// A Context is not safe for concurrent use: callers serialize.
package context

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/stochastic/ml/context/initializers"
	"k8s.io/klog/v2"
)

// VariableInitializer builds the concrete initial value for a variable of a
// given shape. See the initializers package for the standard ones.
type VariableInitializer = initializers.VariableInitializer

// Context organizes variables and hyperparameters in scopes, and tracks
// which scopes have already been visited for variable reuse. See the package
// documentation for the reference/data split.
type Context struct {
	// scope for currently created variables, an absolute "/"-separated path.
	scope string

	// nameScope is the prefix for operation names allocated in this scope.
	// Unlike scope, it is disambiguated (a, a_1, ...) on reused entries.
	nameScope string

	// reuse of variables, if set to true.
	reuse bool

	// checked access to variables: whether to check reuse against whether
	// the variable is new. If set to false, reuse is irrelevant.
	checked bool

	// initializer is used to initialize variable values for a given shape.
	initializer VariableInitializer

	// data, the component shared among all references of this context.
	data *contextData
}

// scopedVariableMap name to variable within a scope.
type scopedVariableMap map[string]*Variable

// contextData stores all context information and is shared among the various
// Context values, which serve only as scoped references.
type contextData struct {
	// params holds hyperparameters: arbitrary values shared among the graph
	// building functions using the Context, organized per scope.
	params *ScopedParams

	// variablesMap for this context, organized per scope.
	variablesMap map[string]scopedVariableMap

	// variables is a plain list of all variables, in creation order.
	variables []*Variable

	// visitedScopes are the absolute scope paths already entered through
	// AutoReuse: entering one of them again reuses its variables.
	visitedScopes map[string]bool

	// nameScopes are the name-scope strings already allocated, used to
	// disambiguate (a, a_1, a_2, ...).
	nameScopes map[string]bool

	// opNames counts allocated operation names per full name, used by
	// OpName to disambiguate (ns/op, ns/op_1, ...).
	opNames map[string]int
}

// ScopeSeparator is used between levels of scope. Scope names cannot use
// this character.
const ScopeSeparator = "/"

// RootScope is the scope at the root: it's also the ScopeSeparator.
const RootScope = ScopeSeparator

// New constructs a new and empty context, with its own variables, names and
// reuse marks, shared by all references derived from it.
func New() *Context {
	return &Context{
		scope:       RootScope,
		checked:     true,
		initializer: initializers.RandomUniformFn(initializers.DefaultSeed, -0.1, 0.1),
		data: &contextData{
			params:        NewScopedParams(),
			variablesMap:  map[string]scopedVariableMap{RootScope: make(scopedVariableMap)},
			visitedScopes: make(map[string]bool),
			nameScopes:    make(map[string]bool),
			opNames:       make(map[string]int),
		},
	}
}

// copy creates a copy of the Context, sharing the same "data" component.
func (ctx *Context) copy() *Context {
	ctx2 := &Context{}
	*ctx2 = *ctx
	return ctx2
}

// AssertValid panics if the context is nil or malformed.
func (ctx *Context) AssertValid() {
	if ctx == nil || ctx.data == nil {
		exceptions.Panicf("the Context is nil or was not created with context.New()")
	}
}

// Scope returns the full current scope path.
//
// Scope is part of the "reference" component of a Context.
func (ctx *Context) Scope() string {
	return ctx.scope
}

// NameScope returns the current name scope, the disambiguated prefix used by
// OpName. It is empty at the root.
//
// NameScope is part of the "reference" component of a Context.
func (ctx *Context) NameScope() string {
	return ctx.nameScope
}

// EscapeScopeName replaces ScopeSeparator in the string by "_".
func EscapeScopeName(scopeName string) string {
	return strings.ReplaceAll(scopeName, ScopeSeparator, "_")
}

// validateScopeElement panics if scope is not a valid single scope element.
func validateScopeElement(scope string) {
	if scope == "" {
		exceptions.Panicf("cannot use empty scope")
	}
	if strings.Contains(scope, ScopeSeparator) {
		exceptions.Panicf("cannot use separator %q in scope element %q", ScopeSeparator, scope)
	}
}

// In returns a new reference to the Context with the extra given scope. No
// ScopeSeparator ("/") is allowed in scope.
//
// In only changes scopes, it does no reuse bookkeeping -- see AutoReuse for
// the scope-reuse mechanism.
func (ctx *Context) In(scope string) *Context {
	ctx.AssertValid()
	validateScopeElement(scope)
	ctx2 := ctx.InAbsPath(joinScope(ctx.scope, scope))
	ctx2.nameScope = joinName(ctx.nameScope, scope)
	return ctx2
}

// InAbsPath returns a new reference to the Context with the scope set to
// scopePath, which must start with ScopeSeparator. The name scope is set to
// the path itself (without disambiguation).
func (ctx *Context) InAbsPath(scopePath string) *Context {
	ctx.AssertValid()
	if !strings.HasPrefix(scopePath, ScopeSeparator) {
		exceptions.Panicf("absolute scope path must start with separator %q, instead got %q", ScopeSeparator, scopePath)
	}
	if _, found := ctx.data.variablesMap[scopePath]; !found {
		ctx.data.variablesMap[scopePath] = make(scopedVariableMap)
	}
	ctx2 := ctx.copy()
	ctx2.scope = scopePath
	ctx2.nameScope = strings.TrimPrefix(scopePath, ScopeSeparator)
	return ctx2
}

// joinScope joins an absolute scope path with a relative one.
func joinScope(scope, suffix string) string {
	if scope == RootScope {
		return RootScope + suffix
	}
	return scope + ScopeSeparator + suffix
}

// joinName joins name-scope elements, the root name scope being empty.
func joinName(nameScope, suffix string) string {
	if nameScope == "" {
		return suffix
	}
	return nameScope + ScopeSeparator + suffix
}

// Reuse returns a new reference to the Context set to reuse variables: they
// must have been created before (it is an error to create new ones).
// Irrelevant if the context is not Checked.
//
// Re-usability is part of the "reference" component of a Context.
func (ctx *Context) Reuse() *Context {
	ctx.AssertValid()
	ctx2 := ctx.copy()
	ctx2.reuse = true
	return ctx2
}

// Unique returns a new reference to the Context set to only allow new
// variables: it is an error to reuse existing ones. Irrelevant if the
// context is not Checked.
//
// Re-usability is part of the "reference" component of a Context.
func (ctx *Context) Unique() *Context {
	ctx.AssertValid()
	ctx2 := ctx.copy()
	ctx2.reuse = false
	return ctx2
}

// IsReuse returns whether Context is marked for reuse. This is irrelevant if
// IsChecked is false.
func (ctx *Context) IsReuse() bool { return ctx.reuse }

// Checked returns a new context with the checked flag set accordingly.
//
// If checked is true, variable creation is checked against IsReuse: reusing
// a variable that doesn't exist, or re-creating one that does, is an error.
// If checked is false, variables are dynamically reused or created when
// needed, without any checks. Usually it is set to true when building models
// (to prevent layers overstepping on each other) and set to false for
// supporting variables (like optimizer state or metrics).
func (ctx *Context) Checked(checked bool) *Context {
	ctx.AssertValid()
	ctx2 := ctx.copy()
	ctx2.checked = checked
	return ctx2
}

// IsChecked returns whether the context is checking reuse rules.
func (ctx *Context) IsChecked() bool { return ctx.checked }

// WithInitializer returns a new reference to the Context, with the default
// variable initializer set.
//
// The initializer is part of the "reference" component of a Context, so this
// change won't affect other references.
func (ctx *Context) WithInitializer(initializer VariableInitializer) *Context {
	ctx.AssertValid()
	if initializer == nil {
		exceptions.Panicf("Context.WithInitializer(nil): initializer must not be nil")
	}
	ctx2 := ctx.copy()
	ctx2.initializer = initializer
	return ctx2
}

// GetParam returns the value for the given param key, searching successively
// from the current scope back to the root scope ("/"), in case the key is
// not found.
//
// E.g: if the current scope is "/a/b", it will search for the key in the
// "/a/b" scope, then in "/a" and finally in "/", returning the first result
// found.
func (ctx *Context) GetParam(key string) (value any, found bool) {
	ctx.AssertValid()
	return ctx.data.params.Get(ctx.scope, key)
}

// SetParam sets the given param in the current scope. It will be visible (by
// GetParam) within this scope and descendant scopes, but not by other
// scopes.
func (ctx *Context) SetParam(key string, value any) {
	ctx.AssertValid()
	ctx.data.params.Set(ctx.scope, key, value)
}

// EnumerateParams enumerates all parameters for all scopes and calls fn with
// their values.
func (ctx *Context) EnumerateParams(fn func(scope, key string, value any)) {
	ctx.AssertValid()
	ctx.data.params.Enumerate(fn)
}

// GetParamOr either returns the value for the given param key in the context
// ctx, searching successively from the current scope back to the root scope,
// or returns the given defaultValue if the key is not set anywhere.
//
// If the stored value is of a different but convertible type (an int where a
// float64 is wanted, say), it is converted with a warning. An inconvertible
// stored type panics.
func GetParamOr[T any](ctx *Context, key string, defaultValue T) T {
	valueAny, found := ctx.GetParam(key)
	if !found {
		return defaultValue
	}
	value, ok := valueAny.(T)
	if ok {
		return value
	}
	// Try converting (e.g.: an int value was set for a float64 parameter).
	stored := reflect.ValueOf(valueAny)
	wantType := reflect.TypeOf(defaultValue)
	// Only numeric conversions make sense here: reflect would happily
	// "convert" an int to a string, for example.
	numericKinds := func(k reflect.Kind) bool {
		return k >= reflect.Int && k <= reflect.Float64
	}
	if !numericKinds(stored.Kind()) || !numericKinds(wantType.Kind()) || !stored.CanConvert(wantType) {
		exceptions.Panicf("parameter %q in scope %q is of type %T, cannot be used as a %s",
			key, ctx.Scope(), valueAny, wantType)
	}
	value = stored.Convert(wantType).Interface().(T)
	klog.Warningf("parameter %q in scope %q converted from %T to %s", key, ctx.Scope(), valueAny, wantType)
	return value
}

// String implements fmt.Stringer: a short description of the reference.
func (ctx *Context) String() string {
	if ctx == nil {
		return "Context(nil)"
	}
	return fmt.Sprintf("Context(scope=%q, reuse=%v, checked=%v)", ctx.scope, ctx.reuse, ctx.checked)
}
