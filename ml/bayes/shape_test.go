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

package bayes

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/stochastic/graph"
	"github.com/gomlx/stochastic/types/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestSplitParamShapesStatic(t *testing.T) {
	g := graph.New("TestSplitParamShapesStatic")
	p := graph.Const(g, [][]float64{{1, 2, 3}, {4, 5, 6}})
	ps := splitParamShapes(p, 1)
	assert.True(t, ps.staticValue.Equal(shapes.Make(dtypes.Float64, 3)))
	assert.True(t, ps.staticBatch.Equal(shapes.Make(dtypes.Float64, 2)))

	results := must.M1(g.Run(nil, ps.dynValue, ps.dynBatch))
	assert.Equal(t, []int64{3}, results[0].Data())
	assert.Equal(t, []int64{2}, results[1].Data())

	// Scalar param, value split of zero axes: both sides empty.
	scalar := graph.Const(g, 0.5)
	psScalar := splitParamShapes(scalar, 0)
	assert.Equal(t, 0, psScalar.staticValue.Rank())
	assert.Equal(t, 0, psScalar.staticBatch.Rank())
}

func TestSplitParamShapesPartiallyUnknown(t *testing.T) {
	g := graph.New("TestSplitParamShapesPartiallyUnknown")
	p := graph.Parameter(g, "p", shapes.Make(dtypes.Float32, shapes.UnknownDim, 4))
	ps := splitParamShapes(p, 1)
	assert.True(t, ps.staticValue.Equal(shapes.Make(dtypes.Float32, 4)))
	assert.True(t, ps.staticBatch.Equal(shapes.Make(dtypes.Float32, shapes.UnknownDim)))

	feeds := map[*graph.Node]*tensor.Dense{
		p: graph.FromAnyValue([][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}}),
	}
	results := must.M1(g.Run(feeds, ps.dynValue, ps.dynBatch))
	assert.Equal(t, []int64{4}, results[0].Data())
	assert.Equal(t, []int64{2}, results[1].Data())
}

func TestSplitParamShapesUnknownRank(t *testing.T) {
	g := graph.New("TestSplitParamShapesUnknownRank")
	p := graph.Parameter(g, "p", shapes.UnknownShape(dtypes.Float64))
	ps := splitParamShapes(p, 2)
	assert.True(t, ps.staticValue.UnknownRank)
	assert.True(t, ps.staticBatch.UnknownRank)

	value := graph.FromAnyValue(make([]float64, 2*3*4))
	require.NoError(t, value.Reshape(2, 3, 4))
	results := must.M1(g.Run(map[*graph.Node]*tensor.Dense{p: value}, ps.dynValue, ps.dynBatch))
	assert.Equal(t, []int64{3, 4}, results[0].Data())
	assert.Equal(t, []int64{2}, results[1].Data())
}

func TestSplitParamShapesErrors(t *testing.T) {
	g := graph.New("TestSplitParamShapesErrors")
	p := graph.Const(g, [][]float64{{1, 2}, {3, 4}})
	require.Panics(t, func() { splitParamShapes(p, -1) })
	require.Panics(t, func() { splitParamShapes(p, 3) })
}
