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
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/stochastic/types/shapes"
	"gorgonia.org/tensor"
)

// NodeType identifies the operation performed by a node.
type NodeType int

const (
	NodeTypeInvalid NodeType = iota
	NodeTypeConst
	NodeTypeParameter
	NodeTypeAdd
	NodeTypeSub
	NodeTypeMul
	NodeTypeDiv
	NodeTypeNeg
	NodeTypeExp
	NodeTypeLog
	NodeTypeSquare
	NodeTypeLessThan
	NodeTypeCast
	NodeTypeCheckNumerics
	NodeTypeEnsureShape
	NodeTypeShapeOf
	NodeTypeTakeLast
	NodeTypeDropLast
	NodeTypeConcat1D
	NodeTypeReduceProd1D
	NodeTypeReshapeTo
	NodeTypeExpandLeading
	NodeTypeSqueezeLeading
	NodeTypeTileLeading
	NodeTypeReduceSumLast
	NodeTypeReduceAllMean
	NodeTypeRandomUniform
	NodeTypeRandomNormal
)

var nodeTypeNames = [...]string{
	"Invalid", "Const", "Parameter", "Add", "Sub", "Mul", "Div",
	"Neg", "Exp", "Log", "Square", "LessThan", "Cast", "CheckNumerics",
	"EnsureShape", "ShapeOf", "TakeLast", "DropLast", "Concat1D",
	"ReduceProd1D", "ReshapeTo", "ExpandLeading", "SqueezeLeading",
	"TileLeading", "ReduceSumLast", "ReduceAllMean",
	"RandomUniform", "RandomNormal",
}

// String implements the fmt.Stringer interface.
func (t NodeType) String() string {
	if t < 0 || int(t) >= len(nodeTypeNames) {
		return fmt.Sprintf("NodeType(%d)", int(t))
	}
	return nodeTypeNames[t]
}

// Node represents the result of an operation ("op" for short) in a Graph.
//
// Each node carries a static shape, known at graph building time, possibly
// with unknown dimensions (or unknown rank) to be resolved only when the
// graph runs.
type Node struct {
	graph *Graph
	id    NodeId
	typ   NodeType
	shape shapes.Shape

	// inputs are the edges of the computation graph.
	inputs []*Node

	// Static (non-node) op parameters. Which are meaningful depends on typ.
	attrInt   int
	attrDType dtypes.DType
	attrMsg   string

	// constValue holds the value of Const nodes.
	constValue *tensor.Dense
}

// newNode creates a node of the given type and static shape, registering it
// in g.
func newNode(g *Graph, typ NodeType, shape shapes.Shape, inputs ...*Node) *Node {
	g.AssertValid()
	node := &Node{
		graph:  g,
		typ:    typ,
		shape:  shape,
		inputs: inputs,
	}
	g.registerNode(node)
	return node
}

// Type identifies the operation performed by the node.
func (n *Node) Type() NodeType {
	if n == nil {
		return NodeTypeInvalid
	}
	return n.typ
}

// Graph that holds this Node.
func (n *Node) Graph() *Graph {
	if n == nil {
		return nil
	}
	return n.graph
}

// Shape of the Node's result, as known at graph building time. It may
// contain unknown dimensions, or have unknown rank altogether.
func (n *Node) Shape() shapes.Shape {
	if n == nil {
		return shapes.Shape{}
	}
	return n.shape
}

// DType returns the DType of the node's shape.
func (n *Node) DType() dtypes.DType {
	return n.shape.DType
}

// Rank returns the rank of the node's shape, or -1 if the rank is unknown.
func (n *Node) Rank() int {
	return n.shape.Rank()
}

// IsScalar returns whether the node's shape is a scalar.
func (n *Node) IsScalar() bool {
	return n.shape.IsScalar()
}

// Id is the unique id of this node within the Graph.
func (n *Node) Id() NodeId {
	return n.id
}

// Inputs are the nodes that are direct inputs to the node.
func (n *Node) Inputs() []*Node { return n.inputs }

// ParameterName returns the name of a Parameter node. It panics if the node
// is not a parameter.
func (n *Node) ParameterName() string {
	n.AssertValid()
	if n.typ != NodeTypeParameter {
		exceptions.Panicf("trying to get ParameterName of a non-parameter node %s", n)
	}
	return n.attrMsg
}

// ConstValue returns the value of a Const node. It panics if the node is not
// a constant.
func (n *Node) ConstValue() *tensor.Dense {
	n.AssertValid()
	if n.typ != NodeTypeConst {
		exceptions.Panicf("trying to get ConstValue of a non-constant node %s", n)
	}
	return n.constValue
}

// AssertValid panics if node is nil or if its graph is nil.
func (n *Node) AssertValid() {
	if n == nil {
		exceptions.Panicf("the Node is nil")
	}
	n.graph.AssertValid()
}

// String implements the fmt.Stringer interface.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	parts := make([]string, 0, len(n.inputs))
	for _, input := range n.inputs {
		parts = append(parts, fmt.Sprintf("#%d", input.id))
	}
	desc := fmt.Sprintf("#%d: %s(%s)", n.id, n.typ, strings.Join(parts, ", "))
	switch n.typ {
	case NodeTypeParameter:
		desc = fmt.Sprintf("#%d: %s(%q)", n.id, n.typ, n.attrMsg)
	case NodeTypeConst:
		desc = fmt.Sprintf("#%d: %s", n.id, n.typ)
	}
	return fmt.Sprintf("%s -> %s", desc, n.shape)
}
