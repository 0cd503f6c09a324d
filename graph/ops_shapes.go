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

// Shape manipulation ops.
//
// Runtime ("dynamic") shapes are plain Int64 vector values in the graph: one
// element per axis. ShapeOf produces them, the 1-D vector ops (TakeLast,
// DropLast, Concat1D, ReduceProd1D) slice and dice them, and ReshapeTo and
// the random ops consume them. This is what lets sample shapes be computed
// symbolically from values only known at Run time.

// ShapeOf returns the runtime shape of x as an Int64 vector with one element
// per axis. If the rank of x is known, the vector's dimension is static even
// when individual dimensions of x are not.
func ShapeOf(x *Node) *Node {
	g := validateBuildingGraphFromInputs(x)
	shape := shapes.Make(dtypes.Int64, x.Rank())
	if x.Shape().UnknownRank {
		shape = shapes.Make(dtypes.Int64, shapes.UnknownDim)
	}
	return newNode(g, NodeTypeShapeOf, shape, x)
}

// assertVector panics unless x is rank-1.
func assertVector(op string, x *Node) {
	if !x.Shape().UnknownRank && x.Rank() != 1 {
		exceptions.Panicf("%s: requires a rank-1 operand, got %s", op, x.Shape())
	}
}

// TakeLast returns the trailing n elements of the vector v.
func TakeLast(v *Node, n int) *Node {
	g := validateBuildingGraphFromInputs(v)
	assertVector("TakeLast", v)
	if n < 0 {
		exceptions.Panicf("TakeLast: n must be non-negative, got %d", n)
	}
	if dim := vectorDim(v); dim != shapes.UnknownDim && n > dim {
		exceptions.Panicf("TakeLast: n=%d out-of-bounds for %s", n, v.Shape())
	}
	node := newNode(g, NodeTypeTakeLast, shapes.Make(v.DType(), n), v)
	node.attrInt = n
	return node
}

// DropLast returns the vector v with its trailing n elements removed.
func DropLast(v *Node, n int) *Node {
	g := validateBuildingGraphFromInputs(v)
	assertVector("DropLast", v)
	if n < 0 {
		exceptions.Panicf("DropLast: n must be non-negative, got %d", n)
	}
	dim := vectorDim(v)
	resultDim := shapes.UnknownDim
	if dim != shapes.UnknownDim {
		if n > dim {
			exceptions.Panicf("DropLast: n=%d out-of-bounds for %s", n, v.Shape())
		}
		resultDim = dim - n
	}
	node := newNode(g, NodeTypeDropLast, shapes.Make(v.DType(), resultDim), v)
	node.attrInt = n
	return node
}

// vectorDim returns the static dimension of a rank-1 node, or UnknownDim.
func vectorDim(v *Node) int {
	if v.Shape().UnknownRank {
		return shapes.UnknownDim
	}
	return v.Shape().Dim(0)
}

// Concat1D concatenates two vectors of the same dtype.
func Concat1D(a, b *Node) *Node {
	g := validateBuildingGraphFromInputs(a, b)
	assertVector("Concat1D", a)
	assertVector("Concat1D", b)
	mustSameDType("Concat1D", a, b)
	dimA, dimB := vectorDim(a), vectorDim(b)
	resultDim := shapes.UnknownDim
	if dimA != shapes.UnknownDim && dimB != shapes.UnknownDim {
		resultDim = dimA + dimB
	}
	return newNode(g, NodeTypeConcat1D, shapes.Make(a.DType(), resultDim), a, b)
}

// ReduceProd1D returns the product of the elements of the Int64 vector v, as
// a scalar. The product of an empty vector is 1.
func ReduceProd1D(v *Node) *Node {
	g := validateBuildingGraphFromInputs(v)
	assertVector("ReduceProd1D", v)
	if v.DType() != dtypes.Int64 {
		exceptions.Panicf("ReduceProd1D: requires an Int64 vector, got %s", v.Shape())
	}
	return newNode(g, NodeTypeReduceProd1D, shapes.Make(dtypes.Int64), v)
}

// ReshapeTo reshapes x to the runtime shape given by the Int64 vector
// shapeVec. The total size must be preserved (checked at Run time).
//
// If shapeVec is a Const vector, the resulting static shape is fully known.
// Otherwise, the static rank is shapeVec's dimension (when known) with every
// dimension unknown.
func ReshapeTo(x, shapeVec *Node) *Node {
	g := validateBuildingGraphFromInputs(x, shapeVec)
	assertVector("ReshapeTo", shapeVec)
	if shapeVec.DType() != dtypes.Int64 {
		exceptions.Panicf("ReshapeTo: shape vector must be Int64, got %s", shapeVec.Shape())
	}
	shape := shapes.UnknownShape(x.DType())
	if shapeVec.Type() == NodeTypeConst {
		dims := flatI64(shapeVec.ConstValue())
		shape = shapes.Make(x.DType(), xslices.Map(dims, func(d int64) int { return int(d) })...)
	} else if dim := vectorDim(shapeVec); dim != shapes.UnknownDim {
		shape = shapes.Make(x.DType(), xslices.SliceWithValue(dim, shapes.UnknownDim)...)
	}
	return newNode(g, NodeTypeReshapeTo, shape, x, shapeVec)
}

// ExpandLeading returns x with an extra leading axis of dimension 1.
func ExpandLeading(x *Node) *Node {
	g := validateBuildingGraphFromInputs(x)
	shape := shapes.UnknownShape(x.DType())
	if !x.Shape().UnknownRank {
		shape = shapes.Make(x.DType(), 1).Concatenate(x.Shape())
	}
	return newNode(g, NodeTypeExpandLeading, shape, x)
}

// SqueezeLeading returns x with its leading axis removed. The leading axis
// must have dimension 1 (checked statically when known, otherwise at Run
// time).
func SqueezeLeading(x *Node) *Node {
	g := validateBuildingGraphFromInputs(x)
	shape := shapes.UnknownShape(x.DType())
	if !x.Shape().UnknownRank {
		if x.Rank() < 1 {
			exceptions.Panicf("SqueezeLeading: requires rank >= 1, got %s", x.Shape())
		}
		if dim := x.Shape().Dim(0); dim != shapes.UnknownDim && dim != 1 {
			exceptions.Panicf("SqueezeLeading: leading axis must have dimension 1, got %s", x.Shape())
		}
		shape = x.Shape().TakeLast(x.Rank() - 1)
	}
	return newNode(g, NodeTypeSqueezeLeading, shape, x)
}

// TileLeading returns x repeated n times along a new leading axis: the
// result shape is [n] followed by x's shape. n is either an int or a scalar
// Int64 *Node (in which case the leading dimension is statically unknown).
func TileLeading(x *Node, n any) *Node {
	switch nT := n.(type) {
	case int:
		g := validateBuildingGraphFromInputs(x)
		if nT < 0 {
			exceptions.Panicf("TileLeading: n must be non-negative, got %d", nT)
		}
		shape := shapes.UnknownShape(x.DType())
		if !x.Shape().UnknownRank {
			shape = shapes.Make(x.DType(), nT).Concatenate(x.Shape())
		}
		node := newNode(g, NodeTypeTileLeading, shape, x)
		node.attrInt = nT
		return node
	case *Node:
		g := validateBuildingGraphFromInputs(x, nT)
		assertScalarInt("TileLeading", nT)
		shape := shapes.UnknownShape(x.DType())
		if !x.Shape().UnknownRank {
			shape = shapes.Make(x.DType(), shapes.UnknownDim).Concatenate(x.Shape())
		}
		node := newNode(g, NodeTypeTileLeading, shape, x, nT)
		node.attrInt = -1
		return node
	}
	exceptions.Panicf("TileLeading: n must be an int or a scalar Int64 *Node, got %T", n)
	return nil
}

// assertScalarInt panics unless n is a scalar Int64 node.
func assertScalarInt(op string, n *Node) {
	if n.DType() != dtypes.Int64 || (!n.Shape().UnknownRank && !n.IsScalar()) {
		exceptions.Panicf("%s: requires a scalar Int64 node, got %s", op, n.Shape())
	}
}

// ReduceSumLast sums x over its trailing n axes. n is either an int or a
// scalar Int64 *Node; in the latter case, the number of axes summed over is
// only known at Run time and the static rank of the result is unknown.
// n=0 returns x unchanged (still as a new node).
func ReduceSumLast(x *Node, n any) *Node {
	switch nT := n.(type) {
	case int:
		g := validateBuildingGraphFromInputs(x)
		if nT < 0 {
			exceptions.Panicf("ReduceSumLast: n must be non-negative, got %d", nT)
		}
		shape := shapes.UnknownShape(x.DType())
		if !x.Shape().UnknownRank {
			if nT > x.Rank() {
				exceptions.Panicf("ReduceSumLast: n=%d out-of-bounds for %s", nT, x.Shape())
			}
			shape = x.Shape().DropLast(nT)
		}
		node := newNode(g, NodeTypeReduceSumLast, shape, x)
		node.attrInt = nT
		return node
	case *Node:
		g := validateBuildingGraphFromInputs(x, nT)
		assertScalarInt("ReduceSumLast", nT)
		node := newNode(g, NodeTypeReduceSumLast, shapes.UnknownShape(x.DType()), x, nT)
		node.attrInt = -1
		return node
	}
	exceptions.Panicf("ReduceSumLast: n must be an int or a scalar Int64 *Node, got %T", n)
	return nil
}

// ReduceAllMean returns the mean of all elements of x, as a scalar.
func ReduceAllMean(x *Node) *Node {
	g := validateBuildingGraphFromInputs(x)
	if !x.DType().IsFloat() {
		exceptions.Panicf("ReduceAllMean: requires a float operand, got %s", x.Shape())
	}
	return newNode(g, NodeTypeReduceAllMean, shapes.Make(x.DType()), x)
}
