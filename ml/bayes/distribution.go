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

// Package bayes implements probabilistic modeling on top of the graph
// package: the Distribution protocol (sampling with composed shapes,
// log-probability with event grouping), concrete families (Bernoulli,
// Normal) and StochasticTensor, a sampled or observed random variable bound
// to the distribution that produced (or scores) it.
//
// Everything here builds graph nodes; nothing is evaluated until
// graph.Graph.Run. A distribution's parameter shapes split into a trailing
// "value shape" (the shape of one sampled value) and a leading "batch shape"
// (independent distribution instances), each available in a static and a
// runtime form, and Sample composes an arbitrary extra sampling shape in
// front of them.
package bayes

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/stochastic/graph"
	"github.com/gomlx/stochastic/types/shapes"
)

// Distribution is the protocol shared by all probability distributions.
//
// Sample's sampleShape, and the groupEventNdims of the *Grouped methods,
// accept either a static Go value (a []int shape or an int depth) or a
// symbolic *graph.Node only known at Run time; nil means "default"
// (single sample with no extra leading axis, or the distribution's own
// configured group depth).
type Distribution interface {
	// DType of the distribution's parameters and samples.
	DType() dtypes.DType

	// Graph the distribution builds its nodes on.
	Graph() *graph.Graph

	// IsContinuous reports whether samples are continuous-valued.
	IsContinuous() bool

	// IsReparameterized reports whether Sample is expressed as a
	// deterministic transform of parameter-free noise.
	IsReparameterized() bool

	// ValueShape is the static shape of a single sampled value.
	ValueShape() shapes.Shape

	// BatchShape is the static shape of the batch of independent
	// distribution instances.
	BatchShape() shapes.Shape

	// DynValueShape is the runtime value shape, as an Int64 vector node.
	DynValueShape() *graph.Node

	// DynBatchShape is the runtime batch shape, as an Int64 vector node.
	DynBatchShape() *graph.Node

	// GroupEventNdims is the configured default event-grouping depth used
	// by LogProb and Prob.
	GroupEventNdims() int

	// Sample draws samples shaped sampleShape ++ batch ++ value.
	// sampleShape is nil (no extra leading axes), a []int of non-negative
	// dimensions, or a symbolic Int64 shape vector node.
	Sample(sampleShape any) *graph.Node

	// LogProb is LogProbGrouped at the default group depth.
	LogProb(x *graph.Node) *graph.Node

	// LogProbGrouped returns the log-likelihood of x, with x's leading
	// axes broadcast against the batch shape, summed over the trailing
	// groupEventNdims axes (nil for the default, int, or a scalar Int64
	// node).
	LogProbGrouped(x *graph.Node, groupEventNdims any) *graph.Node

	// Prob is ProbGrouped at the default group depth.
	Prob(x *graph.Node) *graph.Node

	// ProbGrouped is Exp(LogProbGrouped), unless the family computes
	// probabilities directly.
	ProbGrouped(x *graph.Node, groupEventNdims any) *graph.Node

	// ValidateSamplesShape panics if x's static shape is provably
	// inconsistent with batch ++ value (trailing-aligned). Mismatches
	// only visible at run time pass through and surface during Run.
	// Returns x unchanged.
	ValidateSamplesShape(x *graph.Node) *graph.Node
}

// HasAnalyticKLD is implemented by distributions with a closed-form
// KL-divergence against (at least some) other distributions.
type HasAnalyticKLD interface {
	// AnalyticKLD returns KL(d || other), shaped like the batch shape.
	// Panics if other's family or parameters are incompatible.
	AnalyticKLD(other Distribution) *graph.Node
}

// family is what a concrete distribution provides on top of
// baseDistribution: the elementwise log-density and a sampler with an
// explicit leading axis.
type family interface {
	// logProbRaw is the elementwise log-density of x broadcast against the
	// parameters, no event grouping applied.
	logProbRaw(x *graph.Node) *graph.Node

	// sampleN draws n samples, shaped [n] ++ batch ++ value. n is an int
	// or a scalar Int64 node.
	sampleN(n any) *graph.Node
}

// hasDirectProb is an optional family hook: a direct probability
// computation that replaces the Exp(LogProbGrouped) default.
type hasDirectProb interface {
	probGrouped(x *graph.Node, groupEventNdims any) *graph.Node
}

// baseDistribution implements the shape-composition and probability
// protocol of Distribution on top of the family hooks. Concrete families
// embed it.
type baseDistribution struct {
	impl            family
	g               *graph.Graph
	dtype           dtypes.DType
	continuous      bool
	reparameterized bool
	params          paramShapes
	groupEventNdims int
	checkNumerics   bool
}

// newBaseDistribution splits param's shape at its trailing valueNdims axes
// and fills in the protocol plumbing. The embedding family must still set
// impl to itself.
func newBaseDistribution(param *graph.Node, valueNdims int, continuous, reparameterized bool) baseDistribution {
	if !param.DType().IsFloat() {
		exceptions.Panicf("distribution parameters must be float, got %s", param.Shape())
	}
	return baseDistribution{
		g:               param.Graph(),
		dtype:           param.DType(),
		continuous:      continuous,
		reparameterized: reparameterized,
		params:          splitParamShapes(param, valueNdims),
	}
}

func (d *baseDistribution) DType() dtypes.DType        { return d.dtype }
func (d *baseDistribution) Graph() *graph.Graph        { return d.g }
func (d *baseDistribution) IsContinuous() bool         { return d.continuous }
func (d *baseDistribution) IsReparameterized() bool    { return d.reparameterized }
func (d *baseDistribution) ValueShape() shapes.Shape   { return d.params.staticValue }
func (d *baseDistribution) BatchShape() shapes.Shape   { return d.params.staticBatch }
func (d *baseDistribution) DynValueShape() *graph.Node { return d.params.dynValue }
func (d *baseDistribution) DynBatchShape() *graph.Node { return d.params.dynBatch }
func (d *baseDistribution) GroupEventNdims() int       { return d.groupEventNdims }

// leadingShape builds the runtime shape vector [n] ++ batch used by family
// samplers to size their noise, along with its static counterpart. n is an
// int or a scalar Int64 node.
func (d *baseDistribution) leadingShape(n any) (vec *graph.Node, static shapes.Shape) {
	switch nT := n.(type) {
	case int:
		if nT < 0 {
			exceptions.Panicf("sample count must be non-negative, got %d", nT)
		}
		vec = graph.Concat1D(graph.Const(d.g, []int64{int64(nT)}), d.params.dynBatch)
		static = shapes.Make(d.dtype, nT).Concatenate(d.params.staticBatch)
		return
	case *graph.Node:
		vec = graph.Concat1D(graph.ExpandLeading(nT), d.params.dynBatch)
		static = shapes.Make(d.dtype, shapes.UnknownDim).Concatenate(d.params.staticBatch)
		return
	}
	exceptions.Panicf("sample count must be an int or a scalar Int64 *graph.Node, got %T", n)
	return
}

// Sample implements Distribution.Sample by composing the requested sampling
// shape in front of batch ++ value:
//   - nil or an empty []int: a single sample, with the leading sampling axis
//     squeezed away;
//   - a []int literal: sampleN(product) reshaped, with the static result
//     shape fully composed;
//   - a symbolic Int64 shape vector: the sample count is its runtime
//     product, and the leading result dimensions stay unknown until Run.
func (d *baseDistribution) Sample(sampleShape any) *graph.Node {
	switch s := sampleShape.(type) {
	case nil:
		return graph.SqueezeLeading(d.impl.sampleN(1))
	case []int:
		if len(s) == 0 {
			return graph.SqueezeLeading(d.impl.sampleN(1))
		}
		n := 1
		for _, dim := range s {
			if dim < 0 {
				exceptions.Panicf("Sample: shape dimensions must be non-negative, got %v", s)
			}
			n *= dim
		}
		x := d.impl.sampleN(n)
		sVec := make([]int64, len(s))
		for ii, dim := range s {
			sVec[ii] = int64(dim)
		}
		shapeVec := graph.Concat1D(graph.Const(d.g, sVec),
			graph.Concat1D(d.params.dynBatch, d.params.dynValue))
		x = graph.ReshapeTo(x, shapeVec)
		static := shapes.Make(d.dtype, s...).
			Concatenate(d.params.staticBatch).
			Concatenate(d.params.staticValue)
		return graph.EnsureShape(x, static)
	case *graph.Node:
		x := d.impl.sampleN(graph.ReduceProd1D(s))
		shapeVec := graph.Concat1D(s,
			graph.Concat1D(d.params.dynBatch, d.params.dynValue))
		return graph.ReshapeTo(x, shapeVec)
	}
	exceptions.Panicf("Sample: sampleShape must be nil, a []int or an Int64 shape vector *graph.Node, got %T",
		sampleShape)
	return nil
}

func (d *baseDistribution) LogProb(x *graph.Node) *graph.Node {
	return d.LogProbGrouped(x, nil)
}

func (d *baseDistribution) LogProbGrouped(x *graph.Node, groupEventNdims any) *graph.Node {
	raw := d.impl.logProbRaw(x)
	switch n := groupEventNdims.(type) {
	case nil:
		return graph.ReduceSumLast(raw, d.groupEventNdims)
	case int:
		return graph.ReduceSumLast(raw, n)
	case *graph.Node:
		return graph.ReduceSumLast(raw, n)
	}
	exceptions.Panicf("LogProbGrouped: groupEventNdims must be nil, an int or a scalar Int64 *graph.Node, got %T",
		groupEventNdims)
	return nil
}

func (d *baseDistribution) Prob(x *graph.Node) *graph.Node {
	return d.ProbGrouped(x, nil)
}

func (d *baseDistribution) ProbGrouped(x *graph.Node, groupEventNdims any) *graph.Node {
	if direct, ok := d.impl.(hasDirectProb); ok {
		return direct.probGrouped(x, groupEventNdims)
	}
	p := graph.Exp(d.LogProbGrouped(x, groupEventNdims))
	if d.checkNumerics {
		p = graph.CheckNumerics(p, "prob")
	}
	return p
}

func (d *baseDistribution) ValidateSamplesShape(x *graph.Node) *graph.Node {
	expected := d.params.staticBatch.Concatenate(d.params.staticValue)
	xShape := x.Shape()
	if expected.UnknownRank || xShape.UnknownRank {
		return x
	}
	if xShape.Rank() < expected.Rank() {
		exceptions.Panicf("samples shaped %s cannot match distribution batch++value shape %s",
			xShape, expected)
	}
	if tail := xShape.TakeLast(expected.Rank()); !tail.Compatible(expected) {
		exceptions.Panicf("samples shaped %s incompatible with distribution batch++value shape %s",
			xShape, expected)
	}
	return x
}

// scalarOf builds a scalar constant of the given float dtype.
func scalarOf(g *graph.Graph, dtype dtypes.DType, value float64) *graph.Node {
	switch dtype {
	case dtypes.Float64:
		return graph.Const(g, value)
	case dtypes.Float32:
		return graph.Const(g, float32(value))
	}
	exceptions.Panicf("unsupported dtype %s for a distribution constant", dtype)
	return nil
}
