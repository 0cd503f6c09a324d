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

package shapes

import (
	"fmt"
	"testing"

	. "github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	s := Make(Float32, 3, UnknownDim, 5)
	require.True(t, s.Ok())
	assert.Equal(t, 3, s.Rank())
	assert.Equal(t, 3, s.Dim(0))
	assert.Equal(t, UnknownDim, s.Dim(1))
	assert.Equal(t, 5, s.Dim(-1))
	assert.False(t, s.IsFullyDefined())

	// Zero-sized dimensions are valid.
	s = Make(Float64, 0)
	require.True(t, s.IsFullyDefined())
	assert.Equal(t, 0, s.Size())

	require.Panics(t, func() { Make(Float32, 3, -2) })
	assert.False(t, Invalid().Ok())
	assert.False(t, Shape{}.Ok())
}

func TestScalar(t *testing.T) {
	s := Scalar[float64]()
	assert.True(t, s.IsScalar())
	assert.Equal(t, Float64, s.DType)
	assert.Equal(t, 0, s.Rank())
	assert.Equal(t, 1, s.Size())

	assert.False(t, UnknownShape(Float32).IsScalar())
}

func TestUnknownRank(t *testing.T) {
	s := UnknownShape(Float32)
	assert.True(t, s.Ok())
	assert.Equal(t, -1, s.Rank())
	assert.False(t, s.IsFullyDefined())
	require.Panics(t, func() { s.Dim(0) })
	require.Panics(t, func() { s.Size() })
}

func TestString(t *testing.T) {
	assert.Equal(t, "(Float32)[3 ? 5]", fmt.Sprintf("%s", Make(Float32, 3, UnknownDim, 5)))
	assert.Equal(t, "(Float64)", Scalar[float64]().String())
	assert.Equal(t, "(Int64)[?...]", UnknownShape(Int64).String())
}

func TestEqualAndCompatible(t *testing.T) {
	a := Make(Float32, 2, UnknownDim)
	b := Make(Float32, 2, 3)
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(Make(Float32, 2, UnknownDim)))
	assert.True(t, a.Compatible(b))
	assert.True(t, b.Compatible(a))
	assert.False(t, b.Compatible(Make(Float32, 2, 4)))
	assert.False(t, b.Compatible(Make(Float64, 2, 3)))
	assert.True(t, UnknownShape(Float32).Compatible(b))
	assert.False(t, b.Compatible(Make(Float32, 2, 3, 1)))
}

func TestConcatenateTakeDrop(t *testing.T) {
	a := Make(Float32, 2, UnknownDim)
	b := Make(Float32, 4, 5)
	c := a.Concatenate(b)
	assert.Equal(t, Make(Float32, 2, UnknownDim, 4, 5), c)
	assert.Equal(t, Make(Float32, 4, 5), c.TakeLast(2))
	assert.Equal(t, Make(Float32, 2, UnknownDim), c.DropLast(2))
	assert.Equal(t, Make(Float32), c.TakeLast(0))
	require.Panics(t, func() { b.TakeLast(3) })
	require.Panics(t, func() { b.DropLast(3) })

	u := UnknownShape(Float32)
	assert.True(t, a.Concatenate(u).UnknownRank)
	assert.True(t, u.TakeLast(1).UnknownRank)
	assert.True(t, u.DropLast(1).UnknownRank)
}

func TestMerge(t *testing.T) {
	a := Make(Float32, 2, UnknownDim, UnknownDim)
	b := Make(Float32, UnknownDim, 3, UnknownDim)
	assert.Equal(t, Make(Float32, 2, 3, UnknownDim), a.Merge(b))
	assert.Equal(t, a, a.Merge(UnknownShape(Float32)))
	assert.Equal(t, b, UnknownShape(Float32).Merge(b))
	require.Panics(t, func() { a.Merge(Make(Float32, 3, 3, 3)) })
}

func TestBroadcast(t *testing.T) {
	assert.Equal(t, Make(Float32, 4, 3), Broadcast(Make(Float32, 4, 1), Make(Float32, 3)))
	assert.Equal(t, Make(Float32, 2, 3), Broadcast(Make(Float32, 2, 3), Make(Float32)))
	assert.Equal(t, Make(Float32, 2, UnknownDim), Broadcast(Make(Float32, 2, UnknownDim), Make(Float32, 1, UnknownDim)))
	assert.Equal(t, Make(Float32, 2, 5), Broadcast(Make(Float32, 2, 1), Make(Float32, 1, 5)))
	// Unknown against 1 broadcasts to the unknown side.
	assert.Equal(t, Make(Float32, UnknownDim), Broadcast(Make(Float32, UnknownDim), Make(Float32, 1)))
	assert.True(t, Broadcast(UnknownShape(Float32), Make(Float32, 3)).UnknownRank)
	require.Panics(t, func() { Broadcast(Make(Float32, 2), Make(Float32, 3)) })
	require.Panics(t, func() { Broadcast(Make(Float32, 2), Make(Float64, 2)) })
}
