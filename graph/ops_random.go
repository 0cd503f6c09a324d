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

package graph

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/stochastic/types/shapes"
	"github.com/gomlx/stochastic/types/xslices"
)

// Random ops.
//
// The shape of the random values is given as an Int64 shape vector node, so
// it composes with runtime shapes computed by ShapeOf and the 1-D vector
// ops. Draws come from the graph's random number generator, which is seeded
// from the graph's seed at the start of every Run -- so repeated runs of the
// same graph produce the same values (see Graph.WithSeed).

// randomOp builds a random node of the given type. The static shape is fully
// known when shapeVec is a Const vector.
func randomOp(typ NodeType, g *Graph, shapeVec *Node, dtype dtypes.DType) *Node {
	g.AssertValid()
	validateBuildingGraphFromInputs(shapeVec)
	if shapeVec.Graph() != g {
		exceptions.Panicf("%s: shape vector comes from a different graph (%q)", typ, shapeVec.Graph().Name())
	}
	assertVector(typ.String(), shapeVec)
	if shapeVec.DType() != dtypes.Int64 {
		exceptions.Panicf("%s: shape vector must be Int64, got %s", typ, shapeVec.Shape())
	}
	if !dtype.IsFloat() {
		exceptions.Panicf("%s: requires a float dtype, got %s", typ, dtype)
	}
	shape := shapes.UnknownShape(dtype)
	if shapeVec.Type() == NodeTypeConst {
		dims := flatI64(shapeVec.ConstValue())
		shape = shapes.Make(dtype, xslices.Map(dims, func(d int64) int { return int(d) })...)
	} else if dim := vectorDim(shapeVec); dim != shapes.UnknownDim {
		shape = shapes.Make(dtype, xslices.SliceWithValue(dim, shapes.UnknownDim)...)
	}
	node := newNode(g, typ, shape, shapeVec)
	node.attrDType = dtype
	return node
}

// RandomUniform returns random values uniformly distributed in [0, 1), with
// the runtime shape given by the Int64 vector shapeVec.
func RandomUniform(g *Graph, shapeVec *Node, dtype dtypes.DType) *Node {
	return randomOp(NodeTypeRandomUniform, g, shapeVec, dtype)
}

// RandomNormal returns random values drawn from a standard normal
// distribution, with the runtime shape given by the Int64 vector shapeVec.
func RandomNormal(g *Graph, shapeVec *Node, dtype dtypes.DType) *Node {
	return randomOp(NodeTypeRandomNormal, g, shapeVec, dtype)
}
