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
	"github.com/gomlx/stochastic/types/shapes"
)

// paramShapes splits a distribution parameter's shape into the trailing
// "value" part (the shape of one sampled value) and the leading "batch" part
// (one independent distribution instance per element).
//
// Both parts come in two flavors: a static shapes.Shape, possibly with
// unknown dimensions or unknown rank, and a runtime Int64 shape vector node,
// always fully defined once evaluated. Whenever a static dimension is known
// it agrees with the evaluated runtime value.
type paramShapes struct {
	staticValue shapes.Shape
	staticBatch shapes.Shape
	dynValue    *graph.Node
	dynBatch    *graph.Node
}

// splitParamShapes splits the shape of the parameter node p at its trailing
// valueNdims axes. It panics if valueNdims is negative or, when p's rank is
// known, larger than the rank.
func splitParamShapes(p *graph.Node, valueNdims int) paramShapes {
	if valueNdims < 0 {
		exceptions.Panicf("splitParamShapes: valueNdims must be non-negative, got %d", valueNdims)
	}
	shape := p.Shape()
	if !shape.UnknownRank && valueNdims > shape.Rank() {
		exceptions.Panicf("splitParamShapes: valueNdims=%d out-of-bounds for parameter shaped %s",
			valueNdims, shape)
	}
	dyn := graph.ShapeOf(p)
	ps := paramShapes{
		staticValue: shapes.UnknownShape(shape.DType),
		staticBatch: shapes.UnknownShape(shape.DType),
		dynValue:    graph.TakeLast(dyn, valueNdims),
		dynBatch:    graph.DropLast(dyn, valueNdims),
	}
	if !shape.UnknownRank {
		ps.staticValue = shape.TakeLast(valueNdims)
		ps.staticBatch = shape.DropLast(valueNdims)
	}
	return ps
}
