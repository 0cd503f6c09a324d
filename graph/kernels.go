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

	"github.com/chewxy/math32"
	"github.com/gomlx/exceptions"
	"golang.org/x/exp/constraints"
)

// Evaluation kernels, operating on the flat (row-major) data of dense
// tensors. Float32 math goes through github.com/chewxy/math32.

// broadcaster pre-computes, for an elementwise binary op, the output
// dimensions and the effective strides of both operands aligned to them.
// Strides of broadcast axes (dimension 1) are zero, so the same element is
// reused across the output axis.
type broadcaster struct {
	outDims    []int
	lhsStrides []int
	rhsStrides []int
	outSize    int
}

// newBroadcaster computes the broadcast of the two operand dimensions,
// NumPy-style (trailing-aligned). It panics if the dimensions cannot be
// broadcast together.
func newBroadcaster(lhsDims, rhsDims []int) *broadcaster {
	rank := max(len(lhsDims), len(rhsDims))
	bc := &broadcaster{
		outDims:    make([]int, rank),
		lhsStrides: make([]int, rank),
		rhsStrides: make([]int, rank),
		outSize:    1,
	}
	for axis := rank - 1; axis >= 0; axis-- {
		lhsDim, rhsDim := 1, 1
		if idx := len(lhsDims) - rank + axis; idx >= 0 {
			lhsDim = lhsDims[idx]
		}
		if idx := len(rhsDims) - rank + axis; idx >= 0 {
			rhsDim = rhsDims[idx]
		}
		switch {
		case lhsDim == rhsDim:
			bc.outDims[axis] = lhsDim
		case lhsDim == 1:
			bc.outDims[axis] = rhsDim
		case rhsDim == 1:
			bc.outDims[axis] = lhsDim
		default:
			exceptions.Panicf("cannot broadcast dimensions %v and %v together at axis %d",
				lhsDims, rhsDims, axis)
		}
	}
	lhsStride, rhsStride := 1, 1
	for axis := rank - 1; axis >= 0; axis-- {
		if idx := len(lhsDims) - rank + axis; idx >= 0 {
			if lhsDims[idx] != 1 {
				bc.lhsStrides[axis] = lhsStride
			}
			lhsStride *= lhsDims[idx]
		}
		if idx := len(rhsDims) - rank + axis; idx >= 0 {
			if rhsDims[idx] != 1 {
				bc.rhsStrides[axis] = rhsStride
			}
			rhsStride *= rhsDims[idx]
		}
		bc.outSize *= bc.outDims[axis]
	}
	return bc
}

// broadcastApply runs fn elementwise over the broadcast operands, filling a
// new flat output slice.
func broadcastApply[T, O any](bc *broadcaster, lhs, rhs []T, fn func(T, T) O) []O {
	out := make([]O, bc.outSize)
	rank := len(bc.outDims)
	coords := make([]int, rank)
	lhsIdx, rhsIdx := 0, 0
	for ii := range out {
		out[ii] = fn(lhs[lhsIdx], rhs[rhsIdx])
		// Odometer increment, keeping operand indices in sync.
		for axis := rank - 1; axis >= 0; axis-- {
			coords[axis]++
			lhsIdx += bc.lhsStrides[axis]
			rhsIdx += bc.rhsStrides[axis]
			if coords[axis] < bc.outDims[axis] {
				break
			}
			coords[axis] = 0
			lhsIdx -= bc.outDims[axis] * bc.lhsStrides[axis]
			rhsIdx -= bc.outDims[axis] * bc.rhsStrides[axis]
		}
	}
	return out
}

// Arithmetic on Go number types, for the generic binary kernels.

func addOp[T constraints.Integer | constraints.Float](a, b T) T { return a + b }
func subOp[T constraints.Integer | constraints.Float](a, b T) T { return a - b }
func mulOp[T constraints.Integer | constraints.Float](a, b T) T { return a * b }
func lessOp[T constraints.Integer | constraints.Float](a, b T) bool { return a < b }

func divOp[T constraints.Float](a, b T) T { return a / b }

// divIntOp panics on division by zero instead of crashing with the runtime
// error, so the failure is reported through the Run error path.
func divIntOp(a, b int64) int64 {
	if b == 0 {
		exceptions.Panicf("integer division by zero")
	}
	return a / b
}

// Unary float kernels.

func mapSlice[T, O any](in []T, fn func(T) O) []O {
	out := make([]O, len(in))
	for ii, v := range in {
		out[ii] = fn(v)
	}
	return out
}

func negF64(v float64) float64    { return -v }
func expF64(v float64) float64    { return math.Exp(v) }
func logF64(v float64) float64    { return math.Log(v) }
func squareF64(v float64) float64 { return v * v }

func negF32(v float32) float32    { return -v }
func expF32(v float32) float32    { return math32.Exp(v) }
func logF32(v float32) float32    { return math32.Log(v) }
func squareF32(v float32) float32 { return v * v }

// reduceSumBlocks sums consecutive blocks of blockSize elements: the sum
// over the trailing axes of a row-major tensor is the sum of a contiguous
// block. outSize is the product of the leading (kept) dimensions -- with a
// zero-sized trailing axis the blocks are empty and the sums are 0.
func reduceSumBlocks[T constraints.Float](flat []T, blockSize, outSize int) []T {
	out := make([]T, outSize)
	if blockSize == 0 {
		return out
	}
	for ii := range out {
		var total T
		for _, v := range flat[ii*blockSize : (ii+1)*blockSize] {
			total += v
		}
		out[ii] = total
	}
	return out
}

// repeatSlice returns the flat data repeated n times.
func repeatSlice[T any](flat []T, n int) []T {
	out := make([]T, 0, len(flat)*n)
	for ii := 0; ii < n; ii++ {
		out = append(out, flat...)
	}
	return out
}
