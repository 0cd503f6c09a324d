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
	"gonum.org/v1/gonum/stat/distuv"
)

func TestNewStochasticTensorArgs(t *testing.T) {
	g := graph.New("TestNewStochasticTensorArgs")
	d := NewNormal(graph.Const(g, 0.0), graph.Const(g, 1.0))

	require.Panics(t, func() { NewStochasticTensor(nil, Sampled(1.0)) })
	require.Panics(t, func() { NewStochasticTensor(d) })
	require.Panics(t, func() { NewStochasticTensor(d, Sampled(1.0), Observed(1.0)) })
	require.Panics(t, func() { NewStochasticTensor(d, Sampled(1.0), Sampled(2.0)) })
	require.Panics(t, func() { NewStochasticTensor(d, Observed(1.0), WithSamplesNdims(-1)) })
}

func TestStochasticTensorCoercion(t *testing.T) {
	g := graph.New("TestStochasticTensorCoercion")
	d := NewNormal(graph.Const(g, 0.0), graph.Const(g, 1.0))

	st := NewStochasticTensor(d, Observed([]float64{1, 2}))
	assert.True(t, st.IsObserved())
	assert.Equal(t, dtypes.Float64, st.Tensor().DType())
	assert.Same(t, d, st.Distribution())
	assert.True(t, st.IsContinuous())
	assert.True(t, st.IsReparameterized())

	// Values of another dtype are cast to the distribution's dtype.
	stInts := NewStochasticTensor(d, Observed([]int{1, 2}))
	assert.Equal(t, dtypes.Float64, stInts.Tensor().DType())
	values := must.M1(g.Run1(nil, stInts.Tensor())).Data().([]float64)
	assert.Equal(t, []float64{1, 2}, values)

	// A node of the right dtype passes through unchanged.
	sample := d.Sample(nil)
	stSampled := NewStochasticTensor(d, Sampled(sample))
	assert.Same(t, sample, stSampled.Tensor())
	assert.False(t, stSampled.IsObserved())

	// Another stochastic tensor contributes its underlying node.
	stWrapped := NewStochasticTensor(d, Observed(st))
	assert.Same(t, st.Tensor(), stWrapped.Tensor())

	// Values bound to a different graph are rejected.
	g2 := graph.New("TestStochasticTensorCoercion-other")
	require.Panics(t, func() { NewStochasticTensor(d, Sampled(graph.Const(g2, 1.0))) })
}

func TestStochasticTensorMemoization(t *testing.T) {
	g := graph.New("TestStochasticTensorMemoization")
	d := NewNormal(graph.Const(g, []float64{0, 1}), graph.Const(g, 1.0))
	st := NewStochasticTensor(d, Observed([]float64{0.5, 1.5}), WithGroupEventNdims(1))
	assert.Equal(t, 1, st.GroupEventNdims())

	lp := st.LogProb()
	assert.Same(t, lp, st.LogProb())
	assert.Same(t, lp, st.LogProbGrouped(nil))
	assert.Same(t, lp, st.LogProbGrouped(1))
	assert.Same(t, lp, st.LogLowerBound(false))
	assert.Same(t, lp, st.LogLowerBound(true))

	// A different depth bypasses the cache, every call building fresh nodes.
	a := st.LogProbGrouped(0)
	b := st.LogProbGrouped(0)
	assert.NotSame(t, a, b)
	assert.NotSame(t, lp, a)

	// Symbolic depths are never memoized, not even the tensor's own.
	depth := graph.Parameter(g, "depth", shapes.Scalar[int64]())
	s1 := st.LogProbGrouped(depth)
	s2 := st.LogProbGrouped(depth)
	assert.NotSame(t, s1, s2)

	// Prob has its own cache with the same rules.
	p := st.Prob()
	assert.Same(t, p, st.Prob())
	assert.Same(t, p, st.ProbGrouped(1))
	assert.NotSame(t, p, st.ProbGrouped(0))

	// The memoized node computes the grouped log-likelihood.
	want := distuv.Normal{Mu: 0, Sigma: 1}.LogProb(0.5) +
		distuv.Normal{Mu: 1, Sigma: 1}.LogProb(1.5)
	assert.True(t, lp.IsScalar())
	assert.InDelta(t, want, must.M1(g.Run1(nil, lp)).Data().(float64), 1e-6)
}

func TestStochasticTensorIdentity(t *testing.T) {
	g := graph.New("TestStochasticTensorIdentity")
	d := NewNormal(graph.Const(g, 0.0), graph.Const(g, 1.0))
	x := graph.Const(g, 0.5)

	st1 := NewStochasticTensor(d, Observed(x))
	st2 := NewStochasticTensor(d, Observed(x))
	assert.NotSame(t, st1, st2)

	declared := map[*StochasticTensor]bool{st1: true, st2: true}
	assert.Len(t, declared, 2)
}

func TestStochasticTensorShapeValidation(t *testing.T) {
	g := graph.New("TestStochasticTensorShapeValidation")
	d := NewNormal(graph.Const(g, []float64{0, 1}), graph.Const(g, 1.0))

	st := NewStochasticTensor(d, Observed([]float64{0.5, 1.5}), WithShapeValidation())
	assert.NotNil(t, st.Tensor())

	require.Panics(t, func() {
		NewStochasticTensor(d, Observed([]float64{1, 2, 3}), WithShapeValidation())
	})

	// Without validation the same value is accepted at construction time.
	loose := NewStochasticTensor(d, Observed([]float64{1, 2, 3}))
	assert.NotNil(t, loose.Tensor())

	stS := NewStochasticTensor(d, Sampled(d.Sample([]int{7})), WithSamplesNdims(1))
	assert.Equal(t, 1, stS.SamplesNdims())
	assert.Equal(t, 0, stS.GroupEventNdims())
}
