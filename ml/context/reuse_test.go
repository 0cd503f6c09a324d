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
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/stochastic/types/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildWeights stands in for a layer building function in the binder tests.
func buildWeights(ctx *Context) *Variable {
	return ctx.VariableWithShape("w", shapes.Make(dtypes.Float32, 2, 2))
}

func TestLocalReuse(t *testing.T) {
	ctx := New()
	layer := LocalReuse(buildWeights)

	// Repeated calls with the same parent scope reuse the variables.
	v1 := layer(ctx)
	v2 := layer(ctx)
	assert.Same(t, v1, v2)
	assert.Equal(t, "/buildWeights/w", v1.ScopeAndName())

	// A different parent scope gets its own variables.
	v3 := layer(ctx.In("tower"))
	assert.NotSame(t, v1, v3)
	assert.Equal(t, "/tower/buildWeights/w", v3.ScopeAndName())

	// Anonymous functions have no symbol name to derive the scope from.
	require.Panics(t, func() {
		LocalReuse(func(ctx *Context) *Variable { return nil })
	})
	named := LocalReuseWithScope("untitled", func(ctx *Context) *Variable { return buildWeights(ctx) })
	assert.Equal(t, "/untitled/w", named(ctx).ScopeAndName())
	require.Panics(t, func() { LocalReuseWithScope("", buildWeights) })
}

func TestGlobalReuse(t *testing.T) {
	ctx := New()
	shared := GlobalReuseWithScope("embeddings", buildWeights)

	// All callers share the one scope, wherever they are.
	v1 := shared(ctx.In("tower1"))
	v2 := shared(ctx.In("tower2"))
	assert.Same(t, v1, v2)
	assert.Equal(t, "/embeddings/w", v1.ScopeAndName())

	derived := GlobalReuse(buildWeights)
	v3 := derived(ctx.In("tower1"))
	assert.Equal(t, "/buildWeights/w", v3.ScopeAndName())
	assert.Same(t, v3, derived(ctx.In("tower2")))
}

type testLayer struct {
	VarScoped
}

// layerWeights stands in for a method building an instance's variables.
func layerWeights(l *testLayer, ctx *Context) *Variable {
	return ctx.VariableWithShape("w", shapes.Make(dtypes.Float32, 4))
}

func TestInstanceReuse(t *testing.T) {
	ctx := New()
	weights := InstanceReuse(layerWeights)

	l1 := &testLayer{VarScoped: NewVarScoped(ctx, "layer")}
	l2 := &testLayer{VarScoped: NewVarScoped(ctx, "layer")}

	// Each instance holds its own variables; repeated calls on one
	// instance reuse them -- independent of the caller's scope.
	v1 := weights(l1, ctx)
	assert.Same(t, v1, weights(l1, ctx.In("elsewhere")))
	assert.Equal(t, "/layer/layerWeights/w", v1.ScopeAndName())

	v2 := weights(l2, ctx)
	assert.NotSame(t, v1, v2)
	assert.Equal(t, "/layer_1/layerWeights/w", v2.ScopeAndName())

	// An instance whose scope was never set is a usage error.
	var unset testLayer
	require.Panics(t, func() { weights(&unset, ctx) })
}
