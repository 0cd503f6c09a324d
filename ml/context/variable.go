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

	"github.com/gomlx/exceptions"
	"github.com/gomlx/stochastic/graph"
	"github.com/gomlx/stochastic/types/shapes"
	"gorgonia.org/tensor"
)

// Variable is a value shared among computation graphs, usually a model
// weight or parameter, created and owned by a Context at a given scope and
// name.
//
// The concrete value lives in the Context (initialized eagerly at creation).
// To use a variable inside a computation graph, materialize it with
// Variable.ValueGraph, which inserts (once per graph) a parameter node fed
// with the variable's value by Context.ExecSetVariablesInParams.
type Variable struct {
	ctx   *Context
	name  string
	scope string
	shape shapes.Shape

	value *tensor.Dense

	// graphToNode caches the parameter node materializing this variable on
	// each graph.
	graphToNode map[graph.GraphId]*graph.Node
}

// Name of the variable within its scope.
func (v *Variable) Name() string { return v.name }

// Scope (absolute path) where the variable was created.
func (v *Variable) Scope() string { return v.scope }

// ScopeAndName returns the scope and name separated by the scope separator.
// It is unique within a context, and is used as the parameter name when the
// variable is materialized on a graph.
func (v *Variable) ScopeAndName() string {
	if v.scope == RootScope {
		return v.scope + v.name
	}
	return v.scope + ScopeSeparator + v.name
}

// Shape of the variable.
func (v *Variable) Shape() shapes.Shape { return v.shape }

// Value returns the current concrete value of the variable.
func (v *Variable) Value() *tensor.Dense { return v.value }

// SetValue replaces the concrete value of the variable. The new value's
// shape must equal the variable's shape.
func (v *Variable) SetValue(value *tensor.Dense) {
	v.AssertValid()
	if got := graph.ShapeOfTensor(value); !got.Equal(v.shape) {
		exceptions.Panicf("variable %q has shape %s, cannot set value of shape %s", v.ScopeAndName(), v.shape, got)
	}
	v.value = value
}

// AssertValid panics if the variable is nil or not attached to a context.
func (v *Variable) AssertValid() {
	if v == nil || v.ctx == nil {
		exceptions.Panicf("the Variable is nil or was not created by a Context")
	}
}

// String implements fmt.Stringer.
func (v *Variable) String() string {
	if v == nil {
		return "Variable(nil)"
	}
	return fmt.Sprintf("Variable(%q, shape=%s)", v.ScopeAndName(), v.shape)
}

// ValueGraph returns the node materializing this variable on the given
// graph: a parameter node named after Variable.ScopeAndName, created on the
// first call for each graph and cached after that. Feed it with
// Context.ExecSetVariablesInParams.
func (v *Variable) ValueGraph(g *graph.Graph) *graph.Node {
	v.AssertValid()
	g.AssertValid()
	if node, found := v.graphToNode[g.GraphId()]; found {
		return node
	}
	node := graph.Parameter(g, v.ScopeAndName(), v.shape)
	v.graphToNode[g.GraphId()] = node
	return node
}

// findVariableInScope returns the variable with the given name in the
// current scope, or nil.
func (ctx *Context) findVariableInScope(name string) *Variable {
	vars, found := ctx.data.variablesMap[ctx.scope]
	if !found {
		return nil
	}
	return vars[name]
}

// VariableWithShape creates or reuses (depending on the reuse flag) a
// variable with the given name and shape in the current scope. New variables
// are initialized eagerly with the context's initializer, so the shape must
// be fully defined.
//
// If the context is Checked: with reuse set, the variable must already
// exist; without it, the variable must not exist yet. Either violation
// panics. An unchecked context reuses or creates as needed. Reusing a
// variable with a different shape always panics.
func (ctx *Context) VariableWithShape(name string, shape shapes.Shape) *Variable {
	ctx.AssertValid()
	validateScopeElement(name)
	if !shape.Ok() {
		exceptions.Panicf("cannot create variable %q in scope %q with an invalid shape", name, ctx.scope)
	}
	v := ctx.findVariableInScope(name)
	if ctx.checked && ctx.reuse && v == nil {
		exceptions.Panicf("requested reuse of variable %q in scope %q, but it does not exist", name, ctx.scope)
	}
	if ctx.checked && !ctx.reuse && v != nil {
		exceptions.Panicf("variable %q already exists in scope %q -- if this is intentional, mark the context for reuse", name, ctx.scope)
	}
	if v != nil {
		if !v.shape.Equal(shape) {
			exceptions.Panicf("variable %q in scope %q has shape %s, requested reuse with shape %s",
				name, ctx.scope, v.shape, shape)
		}
		return v
	}
	if !shape.IsFullyDefined() {
		exceptions.Panicf("cannot create variable %q in scope %q: shape %s is not fully defined", name, ctx.scope, shape)
	}
	return ctx.registerVariable(name, shape, ctx.initializer(shape))
}

// VariableWithValue creates or reuses (depending on the reuse flag) a
// variable with the given name in the current scope, initialized with the
// given value -- anything accepted by graph.Const. The checked/reuse rules
// are the same as VariableWithShape; on reuse the value is ignored, only the
// shapes are checked.
func (ctx *Context) VariableWithValue(name string, value any) *Variable {
	ctx.AssertValid()
	validateScopeElement(name)
	initialValue := graph.FromAnyValue(value)
	shape := graph.ShapeOfTensor(initialValue)
	v := ctx.findVariableInScope(name)
	if ctx.checked && ctx.reuse && v == nil {
		exceptions.Panicf("requested reuse of variable %q in scope %q, but it does not exist", name, ctx.scope)
	}
	if ctx.checked && !ctx.reuse && v != nil {
		exceptions.Panicf("variable %q already exists in scope %q -- if this is intentional, mark the context for reuse", name, ctx.scope)
	}
	if v != nil {
		if !v.shape.Equal(shape) {
			exceptions.Panicf("variable %q in scope %q has shape %s, requested reuse with a value of shape %s",
				name, ctx.scope, v.shape, shape)
		}
		return v
	}
	return ctx.registerVariable(name, shape, initialValue)
}

func (ctx *Context) registerVariable(name string, shape shapes.Shape, value *tensor.Dense) *Variable {
	v := &Variable{
		ctx:         ctx,
		name:        name,
		scope:       ctx.scope,
		shape:       shape,
		value:       value,
		graphToNode: make(map[graph.GraphId]*graph.Node),
	}
	vars, found := ctx.data.variablesMap[ctx.scope]
	if !found {
		vars = make(scopedVariableMap)
		ctx.data.variablesMap[ctx.scope] = vars
	}
	vars[name] = v
	ctx.data.variables = append(ctx.data.variables, v)
	return v
}

// InspectVariable returns the variable at the given scope and name, or nil
// if it doesn't exist. It bypasses the reuse checks, for inspection and
// testing.
func (ctx *Context) InspectVariable(scope, name string) *Variable {
	ctx.AssertValid()
	vars, found := ctx.data.variablesMap[scope]
	if !found {
		return nil
	}
	return vars[name]
}

// NumVariables returns the number of variables created in this context (all
// scopes).
func (ctx *Context) NumVariables() int {
	ctx.AssertValid()
	return len(ctx.data.variables)
}

// EnumerateVariables calls fn for each variable in the context, in creation
// order.
func (ctx *Context) EnumerateVariables(fn func(v *Variable)) {
	ctx.AssertValid()
	for _, v := range ctx.data.variables {
		fn(v)
	}
}

// ExecSetVariablesInParams adds to feeds the value of every variable of this
// context materialized (with Variable.ValueGraph) on the given graph, so a
// Run of the graph sees the variables' current values.
func (ctx *Context) ExecSetVariablesInParams(feeds map[*graph.Node]*tensor.Dense, g *graph.Graph) {
	ctx.AssertValid()
	g.AssertValid()
	for _, v := range ctx.data.variables {
		if node, found := v.graphToNode[g.GraphId()]; found {
			feeds[node] = v.value
		}
	}
}
