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
	"github.com/gomlx/exceptions"
	"github.com/gomlx/stochastic/graph"
)

// log(2π)
const log2Pi = 1.8378770664093453

// Normal is the univariate normal (Gaussian) distribution, parameterized by
// mean and standard deviation. The two parameters are broadcast to a common
// batch shape; the value shape is scalar. Sampling is reparameterized as
// mean + stddev·ε with ε drawn from a standard normal.
type Normal struct {
	baseDistribution
	mean   *graph.Node
	stddev *graph.Node
}

var (
	_ Distribution   = (*Normal)(nil)
	_ HasAnalyticKLD = (*Normal)(nil)
)

// NewNormal creates a Normal distribution. mean and stddev must be float
// nodes of the same dtype with broadcast-compatible shapes; stddev must be
// positive.
func NewNormal(mean, stddev *graph.Node) *Normal {
	if mean.DType() != stddev.DType() {
		exceptions.Panicf("NewNormal: mean and stddev dtypes differ: %s vs %s",
			mean.Shape(), stddev.Shape())
	}
	zero := scalarOf(mean.Graph(), mean.DType(), 0)
	// Materialize both parameters at the broadcast batch shape, so the
	// shape split below sees the common shape.
	bMean := graph.Add(mean, graph.Mul(stddev, zero))
	bStddev := graph.Add(stddev, graph.Mul(mean, zero))
	d := &Normal{
		baseDistribution: newBaseDistribution(bMean, 0, true, true),
		mean:             bMean,
		stddev:           bStddev,
	}
	d.impl = d
	return d
}

// Mean returns the mean parameter, broadcast to the batch shape.
func (d *Normal) Mean() *graph.Node { return d.mean }

// Stddev returns the standard-deviation parameter, broadcast to the batch
// shape.
func (d *Normal) Stddev() *graph.Node { return d.stddev }

// WithGroupEventNdims sets the default event-grouping depth used by LogProb
// and Prob. Call before first use.
func (d *Normal) WithGroupEventNdims(n int) *Normal {
	if n < 0 {
		exceptions.Panicf("Normal: group event ndims must be non-negative, got %d", n)
	}
	d.groupEventNdims = n
	return d
}

// WithCheckNumerics makes Prob fail at Run time on non-finite results.
// Call before first use.
func (d *Normal) WithCheckNumerics() *Normal {
	d.checkNumerics = true
	return d
}

func (d *Normal) sampleN(n any) *graph.Node {
	vec, static := d.leadingShape(n)
	eps := graph.EnsureShape(graph.RandomNormal(d.g, vec, d.dtype), static)
	return graph.Add(d.mean, graph.Mul(d.stddev, eps))
}

func (d *Normal) logProbRaw(x *graph.Node) *graph.Node {
	// -½·log(2π) - log(σ) - (x-μ)²/(2σ²)
	c := scalarOf(d.g, d.dtype, -0.5*log2Pi)
	two := scalarOf(d.g, d.dtype, 2)
	return graph.Sub(
		graph.Sub(c, graph.Log(d.stddev)),
		graph.Div(
			graph.Square(graph.Sub(x, d.mean)),
			graph.Mul(two, graph.Square(d.stddev))))
}

// AnalyticKLD returns the closed-form KL(d || other) between two Normal
// distributions, shaped like the broadcast of their batch shapes.
func (d *Normal) AnalyticKLD(other Distribution) *graph.Node {
	q, ok := other.(*Normal)
	if !ok {
		exceptions.Panicf("Normal.AnalyticKLD: incompatible distribution %T", other)
	}
	// log(σq/σp) + (σp² + (μp-μq)²)/(2σq²) - ½
	half := scalarOf(d.g, d.dtype, 0.5)
	two := scalarOf(d.g, d.dtype, 2)
	varP := graph.Square(d.stddev)
	varQ := graph.Square(q.stddev)
	return graph.Sub(
		graph.Add(
			graph.Sub(graph.Log(q.stddev), graph.Log(d.stddev)),
			graph.Div(
				graph.Add(varP, graph.Square(graph.Sub(d.mean, q.mean))),
				graph.Mul(two, varQ))),
		half)
}
