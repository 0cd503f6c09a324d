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
	"math"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/stochastic/graph"
	"github.com/gomlx/stochastic/types/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestBernoulliLogProb(t *testing.T) {
	g := graph.New("TestBernoulliLogProb")
	d := NewBernoulli(graph.Const(g, []float64{0.2, 0.8}))
	assert.False(t, d.IsContinuous())
	assert.False(t, d.IsReparameterized())
	assert.Equal(t, dtypes.Float64, d.DType())
	assert.True(t, d.BatchShape().Equal(shapes.Make(dtypes.Float64, 2)))
	assert.Equal(t, 0, d.ValueShape().Rank())

	x := graph.Const(g, []float64{0, 1})
	results := must.M1(g.Run(nil, d.LogProb(x), d.Prob(x)))
	logProbs := results[0].Data().([]float64)
	assert.InDelta(t, math.Log(0.8), logProbs[0], 1e-12) // P(x=0 | p=0.2)
	assert.InDelta(t, math.Log(0.8), logProbs[1], 1e-12) // P(x=1 | p=0.8)
	probs := results[1].Data().([]float64)
	for ii, lp := range logProbs {
		assert.InDelta(t, math.Exp(lp), probs[ii], 1e-12)
	}
}

func TestBernoulliSampleStats(t *testing.T) {
	g := graph.New("TestBernoulliSampleStats")
	d := NewBernoulli(graph.Const(g, []float64{0.3}))
	s := d.Sample([]int{10000})
	assert.True(t, s.Shape().Equal(shapes.Make(dtypes.Float64, 10000, 1)))

	values := must.M1(g.Run1(nil, s)).Data().([]float64)
	for _, v := range values {
		require.Truef(t, v == 0 || v == 1, "Bernoulli sample %v is not 0/1", v)
	}
	assert.InDelta(t, 0.3, stat.Mean(values, nil), 0.02)
}

func TestBernoulliAnalyticKLD(t *testing.T) {
	g := graph.New("TestBernoulliAnalyticKLD")
	p := NewBernoulli(graph.Const(g, 0.3))
	q := NewBernoulli(graph.Const(g, 0.6))

	kld := p.AnalyticKLD(q)
	assert.True(t, kld.IsScalar())
	want := 0.3*math.Log(0.3/0.6) + 0.7*math.Log(0.7/0.4)
	assert.InDelta(t, want, must.M1(g.Run1(nil, kld)).Data().(float64), 1e-12)

	// Monte-Carlo cross-check: E_p[log p(x) - log q(x)] over samples of p.
	s := p.Sample([]int{10000})
	logRatio := graph.Sub(p.LogProb(s), q.LogProb(s))
	ratios := must.M1(g.Run1(nil, logRatio)).Data().([]float64)
	estimate := stat.Mean(ratios, nil)
	stdErr := stat.StdDev(ratios, nil) / math.Sqrt(float64(len(ratios)))
	require.Greater(t, stdErr, 0.0)
	assert.InDelta(t, want, estimate, 5*stdErr)

	require.Panics(t, func() {
		p.AnalyticKLD(NewNormal(graph.Const(g, 0.0), graph.Const(g, 1.0)))
	})
}

func TestBernoulliOptions(t *testing.T) {
	g := graph.New("TestBernoulliOptions")
	d := NewBernoulli(graph.Const(g, [][]float64{{0.5, 0.5}, {0.5, 0.5}})).WithGroupEventNdims(1)
	assert.Equal(t, 1, d.GroupEventNdims())

	x := graph.Const(g, [][]float64{{0, 1}, {1, 1}})
	lp := d.LogProb(x)
	values := must.M1(g.Run1(nil, lp)).Data().([]float64)
	assert.Len(t, values, 2)
	assert.InDelta(t, 2*math.Log(0.5), values[0], 1e-12)

	require.Panics(t, func() { d.WithGroupEventNdims(-1) })
	require.Panics(t, func() { NewBernoulli(graph.Const(g, []int64{0, 1})) })
}
