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
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/stochastic/types/shapes"
	"github.com/gomlx/stochastic/types/xslices"
	rng "github.com/leesper/go_rng"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Run evaluates the fetched nodes, feeding the given concrete tensors to the
// Parameter nodes, and returns their values in the same order as fetches.
//
// Only the nodes the fetches depend on are evaluated, in creation order.
// Every Parameter node in that dependency set must be fed with a tensor
// whose shape is compatible with the declared one.
//
// Panics raised during evaluation -- bad feeds, failed runtime shape checks,
// CheckNumerics failures -- are converted to an error. The graph's random
// number generator is re-seeded at the start of each Run, so repeated runs
// draw the same random values.
func (g *Graph) Run(feeds map[*Node]*tensor.Dense, fetches ...*Node) (results []*tensor.Dense, err error) {
	err = exceptions.TryCatch[error](func() {
		results = g.mustRun(feeds, fetches)
	})
	if err != nil {
		results = nil
		err = errors.WithMessagef(err, "while running graph %q", g.name)
	}
	return
}

// Run1 is a shortcut for Run with exactly one fetch.
func (g *Graph) Run1(feeds map[*Node]*tensor.Dense, fetch *Node) (*tensor.Dense, error) {
	results, err := g.Run(feeds, fetch)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

func (g *Graph) mustRun(feeds map[*Node]*tensor.Dense, fetches []*Node) []*tensor.Dense {
	g.AssertValid()
	e := &evaluator{
		graph:    g,
		feeds:    feeds,
		values:   make([]*tensor.Dense, len(g.nodes)),
		needed:   make([]bool, len(g.nodes)),
		uniform:  rng.NewUniformGenerator(g.seed),
		gaussian: rng.NewGaussianGenerator(g.seed),
	}
	for ii, fetch := range fetches {
		if fetch == nil {
			exceptions.Panicf("nil node passed as fetch #%d", ii)
		}
		if fetch.Graph() != g {
			exceptions.Panicf("fetch #%d comes from a different graph (%q)", ii, fetch.Graph().Name())
		}
		e.markNeeded(fetch)
	}
	// Creation order is a topological order, and keeps the sequence of
	// random draws deterministic.
	for id, node := range g.nodes {
		if e.needed[id] {
			e.values[id] = e.eval(node)
		}
	}
	return xslices.Map(fetches, func(fetch *Node) *tensor.Dense { return e.values[fetch.id] })
}

type evaluator struct {
	graph    *Graph
	feeds    map[*Node]*tensor.Dense
	values   []*tensor.Dense
	needed   []bool
	uniform  *rng.UniformGenerator
	gaussian *rng.GaussianGenerator
}

func (e *evaluator) markNeeded(node *Node) {
	if e.needed[node.id] {
		return
	}
	e.needed[node.id] = true
	for _, input := range node.inputs {
		e.markNeeded(input)
	}
}

// input returns the already evaluated value of the ii-th input of node.
func (e *evaluator) input(node *Node, ii int) *tensor.Dense {
	return e.values[node.inputs[ii].id]
}

// dimsOf returns the dimensions of a concrete tensor -- empty for scalars.
func dimsOf(t *tensor.Dense) []int {
	if t.IsScalar() {
		return nil
	}
	return t.Shape()
}

// eval computes the value of one node. It also checks the engine invariant
// that the runtime shape matches the static one, where the latter is known.
func (e *evaluator) eval(node *Node) *tensor.Dense {
	value := e.evalDispatch(node)
	got := ShapeOfTensor(value)
	if got.DType != node.DType() || !got.Compatible(node.Shape()) {
		exceptions.Panicf("internal: node %s evaluated to shape %s, contradicting its static shape", node, got)
	}
	return value
}

func (e *evaluator) evalDispatch(node *Node) *tensor.Dense {
	switch node.typ {
	case NodeTypeConst:
		return node.constValue
	case NodeTypeParameter:
		return e.evalParameter(node)
	case NodeTypeAdd, NodeTypeSub, NodeTypeMul, NodeTypeDiv, NodeTypeLessThan:
		return e.evalBinary(node)
	case NodeTypeNeg, NodeTypeExp, NodeTypeLog, NodeTypeSquare:
		return e.evalUnary(node)
	case NodeTypeCast:
		return evalCast(e.input(node, 0), node.attrDType)
	case NodeTypeCheckNumerics:
		return evalCheckNumerics(e.input(node, 0), node.attrMsg)
	case NodeTypeEnsureShape:
		return evalEnsureShape(e.input(node, 0), node.Shape())
	case NodeTypeShapeOf:
		dims := dimsOf(e.input(node, 0))
		return denseFromFlat([]int{len(dims)}, xslices.Map(dims, func(d int) int64 { return int64(d) }))
	case NodeTypeTakeLast:
		flat := flatI64(e.input(node, 0))
		if node.attrInt > len(flat) {
			exceptions.Panicf("TakeLast: taking %d elements of a %d-element vector", node.attrInt, len(flat))
		}
		return denseFromFlat([]int{node.attrInt}, append([]int64{}, flat[len(flat)-node.attrInt:]...))
	case NodeTypeDropLast:
		flat := flatI64(e.input(node, 0))
		kept := len(flat) - node.attrInt
		if kept < 0 {
			exceptions.Panicf("DropLast: dropping %d elements of a %d-element vector", node.attrInt, len(flat))
		}
		return denseFromFlat([]int{kept}, append([]int64{}, flat[:kept]...))
	case NodeTypeConcat1D:
		return e.evalConcat1D(node)
	case NodeTypeReduceProd1D:
		product := int64(1)
		for _, v := range flatI64(e.input(node, 0)) {
			product *= v
		}
		return denseFromFlat(nil, []int64{product})
	case NodeTypeReshapeTo:
		return e.evalReshapeTo(node)
	case NodeTypeExpandLeading:
		value := e.input(node, 0)
		return retag(value, append([]int{1}, dimsOf(value)...))
	case NodeTypeSqueezeLeading:
		return e.evalSqueezeLeading(node)
	case NodeTypeTileLeading:
		return e.evalTileLeading(node)
	case NodeTypeReduceSumLast:
		return e.evalReduceSumLast(node)
	case NodeTypeReduceAllMean:
		return evalReduceAllMean(e.input(node, 0))
	case NodeTypeRandomUniform, NodeTypeRandomNormal:
		return e.evalRandom(node)
	}
	exceptions.Panicf("internal: no evaluation kernel for node %s", node)
	return nil
}

func (e *evaluator) evalParameter(node *Node) *tensor.Dense {
	value, found := e.feeds[node]
	if !found {
		exceptions.Panicf("parameter %q was not fed a value", node.ParameterName())
	}
	got := ShapeOfTensor(value)
	if got.DType != node.DType() || !got.Compatible(node.Shape()) {
		exceptions.Panicf("parameter %q declared with shape %s, fed a tensor of shape %s",
			node.ParameterName(), node.Shape(), got)
	}
	return value
}

func (e *evaluator) evalBinary(node *Node) *tensor.Dense {
	lhs, rhs := e.input(node, 0), e.input(node, 1)
	bc := newBroadcaster(dimsOf(lhs), dimsOf(rhs))
	var out any
	switch DTypeOfTensor(lhs) {
	case dtypes.Float64:
		a, b := flatF64(lhs), flatF64(rhs)
		switch node.typ {
		case NodeTypeAdd:
			out = broadcastApply(bc, a, b, addOp[float64])
		case NodeTypeSub:
			out = broadcastApply(bc, a, b, subOp[float64])
		case NodeTypeMul:
			out = broadcastApply(bc, a, b, mulOp[float64])
		case NodeTypeDiv:
			out = broadcastApply(bc, a, b, divOp[float64])
		case NodeTypeLessThan:
			out = broadcastApply(bc, a, b, lessOp[float64])
		}
	case dtypes.Float32:
		a, b := flatF32(lhs), flatF32(rhs)
		switch node.typ {
		case NodeTypeAdd:
			out = broadcastApply(bc, a, b, addOp[float32])
		case NodeTypeSub:
			out = broadcastApply(bc, a, b, subOp[float32])
		case NodeTypeMul:
			out = broadcastApply(bc, a, b, mulOp[float32])
		case NodeTypeDiv:
			out = broadcastApply(bc, a, b, divOp[float32])
		case NodeTypeLessThan:
			out = broadcastApply(bc, a, b, lessOp[float32])
		}
	case dtypes.Int64:
		a, b := flatI64(lhs), flatI64(rhs)
		switch node.typ {
		case NodeTypeAdd:
			out = broadcastApply(bc, a, b, addOp[int64])
		case NodeTypeSub:
			out = broadcastApply(bc, a, b, subOp[int64])
		case NodeTypeMul:
			out = broadcastApply(bc, a, b, mulOp[int64])
		case NodeTypeDiv:
			out = broadcastApply(bc, a, b, divIntOp)
		case NodeTypeLessThan:
			out = broadcastApply(bc, a, b, lessOp[int64])
		}
	default:
		exceptions.Panicf("%s: unsupported operand dtype %s", node.typ, lhs.Dtype())
	}
	return denseFromFlat(bc.outDims, out)
}

func (e *evaluator) evalUnary(node *Node) *tensor.Dense {
	value := e.input(node, 0)
	var out any
	switch DTypeOfTensor(value) {
	case dtypes.Float64:
		flat := flatF64(value)
		switch node.typ {
		case NodeTypeNeg:
			out = mapSlice(flat, negF64)
		case NodeTypeExp:
			out = mapSlice(flat, expF64)
		case NodeTypeLog:
			out = mapSlice(flat, logF64)
		case NodeTypeSquare:
			out = mapSlice(flat, squareF64)
		}
	case dtypes.Float32:
		flat := flatF32(value)
		switch node.typ {
		case NodeTypeNeg:
			out = mapSlice(flat, negF32)
		case NodeTypeExp:
			out = mapSlice(flat, expF32)
		case NodeTypeLog:
			out = mapSlice(flat, logF32)
		case NodeTypeSquare:
			out = mapSlice(flat, squareF32)
		}
	default:
		exceptions.Panicf("%s: unsupported operand dtype %s", node.typ, value.Dtype())
	}
	return denseFromFlat(dimsOf(value), out)
}

func evalCast(value *tensor.Dense, dtype dtypes.DType) *tensor.Dense {
	dims := dimsOf(value)
	asF64 := toF64(value)
	switch dtype {
	case dtypes.Float64:
		return denseFromFlat(dims, asF64)
	case dtypes.Float32:
		return denseFromFlat(dims, mapSlice(asF64, func(v float64) float32 { return float32(v) }))
	case dtypes.Int64:
		return denseFromFlat(dims, mapSlice(asF64, func(v float64) int64 { return int64(v) }))
	case dtypes.Bool:
		return denseFromFlat(dims, mapSlice(asF64, func(v float64) bool { return v != 0 }))
	}
	exceptions.Panicf("Cast: unsupported target dtype %s", dtype)
	return nil
}

// toF64 converts the flat data of any supported tensor to float64.
func toF64(value *tensor.Dense) []float64 {
	switch DTypeOfTensor(value) {
	case dtypes.Float64:
		return flatF64(value)
	case dtypes.Float32:
		return mapSlice(flatF32(value), func(v float32) float64 { return float64(v) })
	case dtypes.Int64:
		return mapSlice(flatI64(value), func(v int64) float64 { return float64(v) })
	case dtypes.Bool:
		return mapSlice(flatBool(value), func(v bool) float64 {
			if v {
				return 1
			}
			return 0
		})
	}
	return nil
}

func evalCheckNumerics(value *tensor.Dense, msg string) *tensor.Dense {
	for _, v := range toF64(value) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			exceptions.Panicf("%s: non-finite value (%v) in tensor of shape %s",
				msg, v, ShapeOfTensor(value))
		}
	}
	return value
}

func evalEnsureShape(value *tensor.Dense, shape shapes.Shape) *tensor.Dense {
	got := ShapeOfTensor(value)
	if !got.Compatible(shape) {
		exceptions.Panicf("EnsureShape: runtime shape %s is not compatible with %s", got, shape)
	}
	return value
}

func (e *evaluator) evalConcat1D(node *Node) *tensor.Dense {
	lhs, rhs := e.input(node, 0), e.input(node, 1)
	switch DTypeOfTensor(lhs) {
	case dtypes.Int64:
		a, b := flatI64(lhs), flatI64(rhs)
		return denseFromFlat([]int{len(a) + len(b)}, append(append([]int64{}, a...), b...))
	case dtypes.Float64:
		a, b := flatF64(lhs), flatF64(rhs)
		return denseFromFlat([]int{len(a) + len(b)}, append(append([]float64{}, a...), b...))
	case dtypes.Float32:
		a, b := flatF32(lhs), flatF32(rhs)
		return denseFromFlat([]int{len(a) + len(b)}, append(append([]float32{}, a...), b...))
	}
	exceptions.Panicf("Concat1D: unsupported dtype %s", lhs.Dtype())
	return nil
}

func (e *evaluator) evalReshapeTo(node *Node) *tensor.Dense {
	value := e.input(node, 0)
	dims := runtimeDims(flatI64(e.input(node, 1)))
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	if size != valueSize(value) {
		exceptions.Panicf("ReshapeTo: cannot reshape %d elements to shape %v", valueSize(value), dims)
	}
	return retag(value, dims)
}

func (e *evaluator) evalSqueezeLeading(node *Node) *tensor.Dense {
	value := e.input(node, 0)
	dims := dimsOf(value)
	if len(dims) < 1 || dims[0] != 1 {
		exceptions.Panicf("SqueezeLeading: leading axis must have dimension 1, got shape %s", ShapeOfTensor(value))
	}
	return retag(value, dims[1:])
}

func (e *evaluator) evalTileLeading(node *Node) *tensor.Dense {
	value := e.input(node, 0)
	n := node.attrInt
	if n < 0 {
		n = scalarInt(e.input(node, 1), "TileLeading")
	}
	dims := append([]int{n}, dimsOf(value)...)
	switch DTypeOfTensor(value) {
	case dtypes.Float64:
		return denseFromFlat(dims, repeatSlice(flatF64(value), n))
	case dtypes.Float32:
		return denseFromFlat(dims, repeatSlice(flatF32(value), n))
	case dtypes.Int64:
		return denseFromFlat(dims, repeatSlice(flatI64(value), n))
	case dtypes.Bool:
		return denseFromFlat(dims, repeatSlice(flatBool(value), n))
	}
	return nil
}

func (e *evaluator) evalReduceSumLast(node *Node) *tensor.Dense {
	value := e.input(node, 0)
	n := node.attrInt
	if n < 0 {
		n = scalarInt(e.input(node, 1), "ReduceSumLast")
	}
	dims := dimsOf(value)
	if n < 0 || n > len(dims) {
		exceptions.Panicf("ReduceSumLast: cannot sum over %d trailing axes of shape %s", n, ShapeOfTensor(value))
	}
	keptDims := dims[:len(dims)-n]
	blockSize, outSize := 1, 1
	for _, dim := range dims[len(dims)-n:] {
		blockSize *= dim
	}
	for _, dim := range keptDims {
		outSize *= dim
	}
	switch DTypeOfTensor(value) {
	case dtypes.Float64:
		return denseFromFlat(keptDims, reduceSumBlocks(flatF64(value), blockSize, outSize))
	case dtypes.Float32:
		return denseFromFlat(keptDims, reduceSumBlocks(flatF32(value), blockSize, outSize))
	}
	exceptions.Panicf("ReduceSumLast: unsupported dtype %s", value.Dtype())
	return nil
}

func evalReduceAllMean(value *tensor.Dense) *tensor.Dense {
	switch DTypeOfTensor(value) {
	case dtypes.Float64:
		flat := flatF64(value)
		total := 0.0
		for _, v := range flat {
			total += v
		}
		return denseFromFlat(nil, []float64{total / float64(len(flat))})
	case dtypes.Float32:
		flat := flatF32(value)
		total := float32(0)
		for _, v := range flat {
			total += v
		}
		return denseFromFlat(nil, []float32{total / float32(len(flat))})
	}
	exceptions.Panicf("ReduceAllMean: unsupported dtype %s", value.Dtype())
	return nil
}

func (e *evaluator) evalRandom(node *Node) *tensor.Dense {
	dims := runtimeDims(flatI64(e.input(node, 0)))
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	switch node.attrDType {
	case dtypes.Float64:
		flat := make([]float64, size)
		for ii := range flat {
			if node.typ == NodeTypeRandomUniform {
				flat[ii] = e.uniform.Float64()
			} else {
				flat[ii] = e.gaussian.Gaussian(0, 1)
			}
		}
		return denseFromFlat(dims, flat)
	case dtypes.Float32:
		flat := make([]float32, size)
		for ii := range flat {
			if node.typ == NodeTypeRandomUniform {
				flat[ii] = e.uniform.Float32()
			} else {
				flat[ii] = float32(e.gaussian.Gaussian(0, 1))
			}
		}
		return denseFromFlat(dims, flat)
	}
	exceptions.Panicf("%s: unsupported dtype %s", node.typ, node.attrDType)
	return nil
}

// runtimeDims validates and converts a shape vector value to dimensions.
func runtimeDims(flat []int64) []int {
	dims := make([]int, len(flat))
	for ii, v := range flat {
		if v < 0 {
			exceptions.Panicf("invalid runtime shape vector %v: dimensions must be non-negative", flat)
		}
		dims[ii] = int(v)
	}
	return dims
}

// scalarInt extracts the value of a scalar Int64 tensor.
func scalarInt(value *tensor.Dense, op string) int {
	flat := flatI64(value)
	if len(flat) != 1 || !value.IsScalar() {
		exceptions.Panicf("%s: expected a scalar Int64 value, got shape %s", op, ShapeOfTensor(value))
	}
	return int(flat[0])
}

func valueSize(value *tensor.Dense) int {
	size := 1
	for _, dim := range dimsOf(value) {
		size *= dim
	}
	return size
}

// retag returns a tensor with the same flat data and new dimensions. The
// data is copied, the input tensor is never aliased.
func retag(value *tensor.Dense, dims []int) *tensor.Dense {
	switch DTypeOfTensor(value) {
	case dtypes.Float64:
		return denseFromFlat(dims, append([]float64{}, flatF64(value)...))
	case dtypes.Float32:
		return denseFromFlat(dims, append([]float32{}, flatF32(value)...))
	case dtypes.Int64:
		return denseFromFlat(dims, append([]int64{}, flatI64(value)...))
	case dtypes.Bool:
		return denseFromFlat(dims, append([]bool{}, flatBool(value)...))
	}
	return nil
}
