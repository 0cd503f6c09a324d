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
)

// This file has the value and elementwise op builders. Shape manipulation
// ops are in ops_shapes.go, random ops in ops_random.go.

// Const creates a constant node from a concrete value: a `*tensor.Dense` or
// any Go value accepted by FromAnyValue (numeric scalars and nested slices).
func Const(g *Graph, value any) *Node {
	g.AssertValid()
	t := FromAnyValue(value)
	node := newNode(g, NodeTypeConst, ShapeOfTensor(t))
	node.constValue = t
	return node
}

// Parameter registers an input to the graph, to be fed with a concrete
// tensor at Run time. The declared shape may be partially unknown; fed
// values are validated against it. Parameter names must be unique within the
// graph.
func Parameter(g *Graph, name string, shape shapes.Shape) *Node {
	g.AssertValid()
	if !shape.Ok() {
		exceptions.Panicf("Parameter(%q): invalid shape", name)
	}
	if _, found := g.parameterNameToHandle[name]; found {
		exceptions.Panicf("Parameter(%q): name already in use in graph %q", name, g.Name())
	}
	node := newNode(g, NodeTypeParameter, shape)
	node.attrMsg = name
	g.parameterNameToHandle[name] = node.id
	g.parameters = append(g.parameters, node)
	return node
}

// binaryOp builds an elementwise binary op node with NumPy-style
// broadcasting shape inference.
func binaryOp(typ NodeType, lhs, rhs *Node) *Node {
	g := validateBuildingGraphFromInputs(lhs, rhs)
	mustSameDType(typ.String(), lhs, rhs)
	return newNode(g, typ, shapes.Broadcast(lhs.Shape(), rhs.Shape()), lhs, rhs)
}

// Add returns the elementwise sum of the two values, broadcasting.
func Add(lhs, rhs *Node) *Node { return binaryOp(NodeTypeAdd, lhs, rhs) }

// Sub returns the elementwise subtraction of the two values, broadcasting.
func Sub(lhs, rhs *Node) *Node { return binaryOp(NodeTypeSub, lhs, rhs) }

// Mul returns the elementwise multiplication of the two values, broadcasting.
func Mul(lhs, rhs *Node) *Node { return binaryOp(NodeTypeMul, lhs, rhs) }

// Div returns the elementwise division of the two values, broadcasting.
func Div(lhs, rhs *Node) *Node { return binaryOp(NodeTypeDiv, lhs, rhs) }

// LessThan returns the elementwise comparison lhs < rhs, broadcasting. The
// result is of dtype Bool.
func LessThan(lhs, rhs *Node) *Node {
	node := binaryOp(NodeTypeLessThan, lhs, rhs)
	node.shape.DType = dtypes.Bool
	return node
}

// unaryOp builds an elementwise unary float op node, shape preserved.
func unaryOp(typ NodeType, x *Node) *Node {
	g := validateBuildingGraphFromInputs(x)
	if !x.DType().IsFloat() {
		exceptions.Panicf("%s: requires a float operand, got %s", typ, x.Shape())
	}
	return newNode(g, typ, x.Shape().Clone(), x)
}

// Neg returns the elementwise negation of x.
func Neg(x *Node) *Node { return unaryOp(NodeTypeNeg, x) }

// Exp returns e^x elementwise.
func Exp(x *Node) *Node { return unaryOp(NodeTypeExp, x) }

// Log returns the natural logarithm of x elementwise.
func Log(x *Node) *Node { return unaryOp(NodeTypeLog, x) }

// Square returns x*x elementwise.
func Square(x *Node) *Node { return unaryOp(NodeTypeSquare, x) }

// Cast converts x to the given dtype, elementwise, shape preserved.
// Float-to-int truncates, bool converts to 0/1, and any non-zero number
// converts to true.
func Cast(x *Node, dtype dtypes.DType) *Node {
	g := validateBuildingGraphFromInputs(x)
	TensorDType(dtype) // Validates dtype support.
	shape := x.Shape().Clone()
	shape.DType = dtype
	node := newNode(g, NodeTypeCast, shape, x)
	node.attrDType = dtype
	return node
}

// CheckNumerics returns x unchanged, but makes Run fail with an error that
// includes msg if x contains any NaN or infinity.
func CheckNumerics(x *Node, msg string) *Node {
	g := validateBuildingGraphFromInputs(x)
	if !x.DType().IsFloat() {
		exceptions.Panicf("CheckNumerics: requires a float operand, got %s", x.Shape())
	}
	node := newNode(g, NodeTypeCheckNumerics, x.Shape().Clone(), x)
	node.attrMsg = msg
	return node
}

// EnsureShape refines the static shape of x with the given shape, merging
// the known dimensions of both. The shapes must be compatible (it panics
// otherwise), and at Run time the concrete value is validated against the
// merged shape.
func EnsureShape(x *Node, shape shapes.Shape) *Node {
	g := validateBuildingGraphFromInputs(x)
	if x.DType() != shape.DType {
		exceptions.Panicf("EnsureShape: dtypes don't match: %s and %s", x.Shape(), shape)
	}
	if !x.Shape().Compatible(shape) {
		exceptions.Panicf("EnsureShape: value shape %s is not compatible with %s", x.Shape(), shape)
	}
	return newNode(g, NodeTypeEnsureShape, x.Shape().Merge(shape), x)
}
