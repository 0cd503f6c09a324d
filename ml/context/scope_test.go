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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoReuse(t *testing.T) {
	ctx := New()

	// First entry: create; later entries: reuse. Name scopes are freshly
	// disambiguated on every entry.
	scoped := AutoReuse(ctx, "a")
	assert.False(t, scoped.IsReuse())
	assert.True(t, scoped.IsChecked())
	assert.Equal(t, "/a", scoped.Scope())
	assert.Equal(t, "a", scoped.NameScope())

	scoped2 := AutoReuse(ctx, "a")
	assert.True(t, scoped2.IsReuse())
	assert.Equal(t, "/a", scoped2.Scope())
	assert.Equal(t, "a_1", scoped2.NameScope())

	scoped3 := AutoReuse(ctx, "a")
	assert.Equal(t, "a_2", scoped3.NameScope())

	// The reuse key is the absolute path: the same relative path under a
	// different parent is a fresh scope.
	other := AutoReuse(ctx.In("parent"), "a")
	assert.False(t, other.IsReuse())
	assert.Equal(t, "/parent/a", other.Scope())
	assert.Equal(t, "parent/a", other.NameScope())

	// Multi-element relative paths are allowed; empty paths are not.
	nested := AutoReuse(ctx, "x/y")
	assert.Equal(t, "/x/y", nested.Scope())
	require.Panics(t, func() { AutoReuse(ctx, "") })
	require.Panics(t, func() { AutoReuse(ctx, "/rooted") })
}

func TestAutoReuseScope(t *testing.T) {
	ctx := New()
	scoped := AutoReuse(ctx, "a")
	handle := scoped.ScopeHandle()
	require.True(t, handle.Ok())
	assert.Equal(t, "/a", handle.ScopePath())
	assert.Equal(t, "a", handle.NameScope())

	// Entering through the handle reuses the variables but gets a fresh
	// name scope...
	again := AutoReuseScope(ctx, handle, false)
	assert.True(t, again.IsReuse())
	assert.Equal(t, "/a", again.Scope())
	assert.Equal(t, "a_1", again.NameScope())

	// ...unless the original name scope is reopened.
	reopened := AutoReuseScope(ctx, handle, true)
	assert.True(t, reopened.IsReuse())
	assert.Equal(t, "a", reopened.NameScope())

	// The zero handle is rejected.
	require.Panics(t, func() { AutoReuseScope(ctx, ScopeHandle{}, false) })
}

func TestOpName(t *testing.T) {
	ctx := New()
	scoped := AutoReuse(ctx, "a")
	assert.Equal(t, "a/op", scoped.OpName("op"))
	assert.Equal(t, "a/op_1", scoped.OpName("op"))

	// A fresh entry gets a fresh name scope, so op names start over.
	scoped2 := AutoReuse(ctx, "a")
	assert.Equal(t, "a_1/op", scoped2.OpName("op"))

	// Reopening the original name scope continues its numbering.
	reopened := AutoReuseScope(ctx, scoped.ScopeHandle(), true)
	assert.Equal(t, "a/op_2", reopened.OpName("op"))

	assert.Equal(t, "op", ctx.OpName("op"))
	require.Panics(t, func() { ctx.OpName("") })
	require.Panics(t, func() { ctx.OpName("a/b") })
}

func TestInUnique(t *testing.T) {
	ctx := New()
	first := ctx.InUnique("obj")
	assert.Equal(t, "/obj", first.Scope())
	assert.False(t, first.IsReuse())
	second := ctx.InUnique("obj")
	assert.Equal(t, "/obj_1", second.Scope())
	third := ctx.InUnique("obj")
	assert.Equal(t, "/obj_2", third.Scope())

	// InUnique never collides with scopes taken by AutoReuse, and
	// vice-versa.
	_ = AutoReuse(ctx, "layer")
	unique := ctx.InUnique("layer")
	assert.Equal(t, "/layer_1", unique.Scope())
	assert.Equal(t, "layer_1", unique.NameScope())
	assert.False(t, AutoReuse(ctx, "layer_2").IsReuse())
}
