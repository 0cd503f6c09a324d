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

// Package graph implements a minimal deferred computation-graph engine.
//
// One builds a computation by putting together nodes ("ops" for short) on a
// Graph -- Const, Parameter, Add, Exp, RandomNormal, etc. No actual
// computation happens at building time: each op only infers the static shape
// of its result, which may be partially unknown (see types/shapes). The
// computation runs later, with Graph.Run, which feeds concrete tensors to the
// Parameter nodes, evaluates the requested nodes and returns their values as
// gorgonia `*tensor.Dense`.
//
// The two "times" matter for error handling:
//
//   - Graph building time: misuse of an op (wrong dtypes, incompatible
//     shapes, invalid arguments) is a programming error and panics with an
//     error (see github.com/gomlx/exceptions). The panic carries a stack
//     trace pointing at the offending op.
//
//   - Computation time: Graph.Run returns an error instead, converting
//     panics raised during evaluation (bad feeds, failed runtime shape
//     checks, non-finite values caught by CheckNumerics).
//
// Graphs hold a seed for their random ops. The random number generator is
// re-created from the seed at the start of every Run, so repeated runs of the
// same graph draw the same random values.
//
// A Graph is not thread-safe: callers building or running the same graph
// concurrently must serialize.
package graph

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// GraphId is a unique Graph id within the process.
type GraphId int

// NodeId is a unique Node id within a Graph.
type NodeId int

// InvalidNodeId indicates a node that failed to be created.
const InvalidNodeId = NodeId(-1)

// Graph with the operations and dependencies needed to run a computation.
//
// Create it with New, build it with the various op builders (Const, Add,
// etc.) and run it with Run.
type Graph struct {
	graphId GraphId
	name    string
	nodes   []*Node

	parameters            []*Node
	parameterNameToHandle map[string]NodeId

	// seed for the random ops, reset at the start of each Run.
	seed int64
}

var nextGraphId GraphId

// DefaultSeed used for the random ops of graphs created without WithSeed.
const DefaultSeed = int64(42)

// New constructs an empty Graph with the given name. If name is empty, a
// unique one is generated.
func New(name string) *Graph {
	id := nextGraphId
	nextGraphId++
	if name == "" {
		name = fmt.Sprintf("graph_#%d", id)
	}
	return &Graph{
		graphId:               id,
		name:                  name,
		parameterNameToHandle: make(map[string]NodeId),
		seed:                  DefaultSeed,
	}
}

// WithSeed sets the seed used by the graph's random ops and returns the
// graph, so calls can be cascaded. The random number generator is re-created
// from the seed at every Run.
func (g *Graph) WithSeed(seed int64) *Graph {
	g.seed = seed
	return g
}

// Name of the computation this Graph defines.
func (g *Graph) Name() string { return g.name }

// GraphId of the Graph, unique within the process.
func (g *Graph) GraphId() GraphId { return g.graphId }

// AssertValid panics if graph is nil.
func (g *Graph) AssertValid() {
	if g == nil {
		exceptions.Panicf("the Graph is nil")
	}
}

// NumNodes returns the number of nodes created in the graph so far.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NodeById returns the node with the given id. It panics if out-of-range.
func (g *Graph) NodeById(id NodeId) *Node {
	g.AssertValid()
	if id < 0 || int(id) >= len(g.nodes) {
		exceptions.Panicf("Graph %q has no node id %d", g.name, id)
	}
	return g.nodes[id]
}

// Parameters returns the parameter nodes of the graph, in creation order.
func (g *Graph) Parameters() []*Node { return g.parameters }

// ParameterByName returns the parameter node registered with the given name,
// or nil if there is none.
func (g *Graph) ParameterByName(name string) *Node {
	g.AssertValid()
	id, found := g.parameterNameToHandle[name]
	if !found {
		return nil
	}
	return g.nodes[id]
}

// registerNode adds node to the graph, assigning it the next id.
func (g *Graph) registerNode(node *Node) NodeId {
	id := NodeId(len(g.nodes))
	node.id = id
	g.nodes = append(g.nodes, node)
	return id
}

// String lists the nodes of the graph, for debugging.
func (g *Graph) String() string {
	if g == nil {
		return "Graph(nil)"
	}
	s := fmt.Sprintf("Graph %q: %d nodes", g.name, len(g.nodes))
	for _, node := range g.nodes {
		s += "\n\t" + node.String()
	}
	return s
}

// validateBuildingGraphFromInputs checks that all inputs are non-nil, valid
// and belong to the same graph, and returns that graph.
func validateBuildingGraphFromInputs(inputs ...*Node) *Graph {
	var g *Graph
	for ii, n := range inputs {
		if n == nil {
			exceptions.Panicf("nil node passed as %d-th input to op", ii)
		}
		n.AssertValid()
		if g == nil {
			g = n.graph
		} else if n.graph != g {
			exceptions.Panicf("inputs of op come from different graphs (%q and %q)",
				g.Name(), n.graph.Name())
		}
	}
	return g
}

// mustSameDType panics if the dtypes of the two nodes differ.
func mustSameDType(op string, lhs, rhs *Node) {
	if lhs.DType() != rhs.DType() {
		exceptions.Panicf("%s: dtypes of operands don't match: %s and %s",
			op, lhs.Shape(), rhs.Shape())
	}
}
