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

func TestContextScopes(t *testing.T) {
	ctx := New()
	assert.Equal(t, RootScope, ctx.Scope())
	assert.Equal(t, "", ctx.NameScope())

	ctx2 := ctx.In("a")
	assert.Equal(t, "/a", ctx2.Scope())
	assert.Equal(t, "a", ctx2.NameScope())
	// The original reference is untouched: nothing to restore on exit.
	assert.Equal(t, RootScope, ctx.Scope())

	ctx3 := ctx2.In("b")
	assert.Equal(t, "/a/b", ctx3.Scope())
	assert.Equal(t, "a/b", ctx3.NameScope())

	assert.Equal(t, "/x/y", ctx3.InAbsPath("/x/y").Scope())
	require.Panics(t, func() { ctx.In("") })
	require.Panics(t, func() { ctx.In("a/b") })
	require.Panics(t, func() { ctx.InAbsPath("no-leading-separator") })

	assert.Equal(t, "a_b", EscapeScopeName("a/b"))
}

func TestContextFlags(t *testing.T) {
	ctx := New()
	assert.True(t, ctx.IsChecked())
	assert.False(t, ctx.IsReuse())

	reusing := ctx.Reuse()
	assert.True(t, reusing.IsReuse())
	assert.False(t, ctx.IsReuse())

	unchecked := reusing.Checked(false)
	assert.False(t, unchecked.IsChecked())
	assert.True(t, unchecked.IsReuse())
	assert.True(t, reusing.IsChecked())

	assert.False(t, reusing.Unique().IsReuse())
}

func TestContextParams(t *testing.T) {
	ctx := New()
	ctx.SetParam("x", 7.0)
	ctx.In("a").SetParam("y", 11)

	// Scope-upward search.
	value, found := ctx.In("a").In("b").GetParam("x")
	require.True(t, found)
	assert.Equal(t, 7.0, value)
	_, found = ctx.GetParam("y")
	require.False(t, found)

	assert.Equal(t, 7.0, GetParamOr(ctx, "x", 0.0))
	assert.Equal(t, 0.0, GetParamOr(ctx, "foo", 0.0))
	assert.Equal(t, 11, GetParamOr(ctx.In("a"), "y", 0))

	// Convertible types are converted.
	assert.Equal(t, 11.0, GetParamOr(ctx.In("a"), "y", 0.0))
	// Inconvertible types panic.
	assert.Panics(t, func() { _ = GetParamOr(ctx, "x", "string value") })

	var enumerated []string
	ctx.EnumerateParams(func(scope, key string, value any) {
		enumerated = append(enumerated, scope+":"+key)
	})
	assert.Equal(t, []string{"/:x", "/a:y"}, enumerated)
}

func TestContextIsolation(t *testing.T) {
	// Two independently created contexts share nothing.
	ctx1 := New()
	ctx2 := New()
	ctx1.SetParam("x", 1)
	_, found := ctx2.GetParam("x")
	assert.False(t, found)

	scoped1 := AutoReuse(ctx1, "a")
	scoped2 := AutoReuse(ctx2, "a")
	assert.False(t, scoped1.IsReuse())
	assert.False(t, scoped2.IsReuse())
	assert.Equal(t, "a", scoped1.NameScope())
	assert.Equal(t, "a", scoped2.NameScope())
}
