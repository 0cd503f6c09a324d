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

// Package shapes defines Shape and DType and associated tools.
//
// Shape represents the static shape (rank, dimensions and DType) of a concrete
// tensor or of a node in a computation graph. Unlike the shape of a concrete
// tensor, the static shape of a graph node may be only partially known at
// graph building time: individual dimensions may be unknown (UnknownDim), or
// the rank itself may be unknown (UnknownRank). The corresponding fully-known
// "dynamic" shape only materializes when the graph is run.
//
// DType indicates the type of the unit element of a tensor, and is the
// enumeration defined in github.com/gomlx/gopjrt/dtypes.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a tensor.
//   - Axis: the index of a dimension. We refer to a dimension index as "axis"
//     (plural axes) and to its size as its dimension.
//   - Scalar: a shape with no axes, only a single value of the associated
//     DType.
//   - Unknown dimension: a dimension whose size will only be known when the
//     graph is run, marked as UnknownDim (-1).
package shapes

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gopjrt/dtypes"
	"slices"
)

// UnknownDim marks a dimension whose size is not known at graph building
// time. It is only resolved when the graph is run.
const UnknownDim = -1

// Shape represents the static shape of a tensor or of the value of a
// computation node.
//
// Use Make to create a new shape. A shape with UnknownRank set has no static
// rank information at all -- its Dimensions slice is nil and meaningless.
type Shape struct {
	DType      DType
	Dimensions []int

	// UnknownRank indicates that not even the number of axes is known at
	// graph building time.
	UnknownRank bool
}

// Make returns a Shape structure filled with the values given.
// Dimensions must be non-negative or UnknownDim.
func Make(dtype DType, dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim < 0 && dim != UnknownDim {
			exceptions.Panicf("shapes.Make(%s): dimensions must be non-negative or UnknownDim", s)
		}
	}
	return s
}

// Scalar returns a scalar Shape for the given type.
func Scalar[T Number]() Shape {
	return Shape{DType: FromGenericsType[T]()}
}

// UnknownShape returns a shape of the given dtype with unknown rank.
func UnknownShape(dtype DType) Shape {
	return Shape{DType: dtype, UnknownRank: true}
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just
// instantiating it with Shape{}, will be invalid.
func (s Shape) Ok() bool { return s.DType != InvalidDType }

// Rank of the shape, that is, the number of axes. It returns -1 if the rank
// itself is unknown.
func (s Shape) Rank() int {
	if s.UnknownRank {
		return -1
	}
	return len(s.Dimensions)
}

// IsScalar returns whether the shape represents a scalar: a known rank of 0.
func (s Shape) IsScalar() bool { return s.Ok() && !s.UnknownRank && len(s.Dimensions) == 0 }

// IsFullyDefined returns whether rank and every dimension are known.
func (s Shape) IsFullyDefined() bool {
	if !s.Ok() || s.UnknownRank {
		return false
	}
	for _, dim := range s.Dimensions {
		if dim == UnknownDim {
			return false
		}
	}
	return true
}

// Dim returns the dimension of the given axis, which may be UnknownDim.
// axis can take negative numbers, in which case it counts from the end --
// so axis=-1 refers to the last axis. It panics for an out-of-bound axis or
// if the rank is unknown.
func (s Shape) Dim(axis int) int {
	if s.UnknownRank {
		exceptions.Panicf("Shape.Dim(%d) undefined for unknown rank (shape=%s)", axis, s)
	}
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// String implements stringer, pretty-prints the shape. Unknown dimensions
// print as "?".
func (s Shape) String() string {
	if s.UnknownRank {
		return fmt.Sprintf("(%s)[?...]", s.DType)
	}
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	parts := make([]string, 0, s.Rank())
	for _, dim := range s.Dimensions {
		if dim == UnknownDim {
			parts = append(parts, "?")
		} else {
			parts = append(parts, fmt.Sprintf("%d", dim))
		}
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, " "))
}

// Size returns the number of elements of DType needed for this shape, the
// product of all dimensions. It panics if the shape is not fully defined.
func (s Shape) Size() (size int) {
	if !s.IsFullyDefined() {
		exceptions.Panicf("Shape.Size() undefined for partially unknown shape %s", s)
	}
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Equal compares two shapes for exact equality: dtype, rank and dimensions,
// with unknown dimensions only equal to unknown dimensions.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType || s.UnknownRank != s2.UnknownRank {
		return false
	}
	if s.UnknownRank {
		return true
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Compatible returns whether the two shapes could describe the same runtime
// value: an unknown rank is compatible with anything, and an unknown
// dimension is compatible with any dimension. DTypes must match.
func (s Shape) Compatible(s2 Shape) bool {
	if s.DType != s2.DType {
		return false
	}
	if s.UnknownRank || s2.UnknownRank {
		return true
	}
	if s.Rank() != s2.Rank() {
		return false
	}
	for ii, dim := range s.Dimensions {
		if dim != UnknownDim && s2.Dimensions[ii] != UnknownDim && dim != s2.Dimensions[ii] {
			return false
		}
	}
	return true
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.UnknownRank = s.UnknownRank
	s2.Dimensions = slices.Clone(s.Dimensions)
	return
}

// Concatenate returns the shape whose dimensions are the receiver's followed
// by s2's. If either side has unknown rank, so does the result. DTypes must
// match.
func (s Shape) Concatenate(s2 Shape) Shape {
	if s.DType != s2.DType {
		exceptions.Panicf("Shape.Concatenate: dtypes don't match: %s and %s", s, s2)
	}
	if s.UnknownRank || s2.UnknownRank {
		return UnknownShape(s.DType)
	}
	shape := Shape{DType: s.DType}
	shape.Dimensions = make([]int, 0, s.Rank()+s2.Rank())
	shape.Dimensions = append(shape.Dimensions, s.Dimensions...)
	shape.Dimensions = append(shape.Dimensions, s2.Dimensions...)
	return shape
}

// TakeLast returns the shape of the trailing n axes. An unknown rank is
// preserved. It panics if n is larger than the (known) rank.
func (s Shape) TakeLast(n int) Shape {
	if s.UnknownRank {
		return UnknownShape(s.DType)
	}
	if n < 0 || n > s.Rank() {
		exceptions.Panicf("Shape.TakeLast(%d) out-of-bounds for shape %s", n, s)
	}
	return Make(s.DType, s.Dimensions[s.Rank()-n:]...)
}

// DropLast returns the shape with the trailing n axes removed. An unknown
// rank is preserved. It panics if n is larger than the (known) rank.
func (s Shape) DropLast(n int) Shape {
	if s.UnknownRank {
		return UnknownShape(s.DType)
	}
	if n < 0 || n > s.Rank() {
		exceptions.Panicf("Shape.DropLast(%d) out-of-bounds for shape %s", n, s)
	}
	return Make(s.DType, s.Dimensions[:s.Rank()-n]...)
}

// Merge combines the static information of two compatible shapes, taking the
// known dimension wherever one side is unknown. It panics if the shapes are
// not compatible.
func (s Shape) Merge(s2 Shape) Shape {
	if !s.Compatible(s2) {
		exceptions.Panicf("Shape.Merge: incompatible shapes %s and %s", s, s2)
	}
	if s.UnknownRank {
		return s2.Clone()
	}
	if s2.UnknownRank {
		return s.Clone()
	}
	merged := s.Clone()
	for ii, dim := range merged.Dimensions {
		if dim == UnknownDim {
			merged.Dimensions[ii] = s2.Dimensions[ii]
		}
	}
	return merged
}

// Broadcast returns the shape resulting from broadcasting s1 and s2 against
// each other, aligning the trailing axes -- the usual elementwise
// broadcasting rules, extended to unknown dimensions: an unknown dimension
// broadcast against anything other than 1 is unknown. If either rank is
// unknown, so is the result's. It panics for known dimensions that cannot be
// broadcast together, or mismatching dtypes.
func Broadcast(s1, s2 Shape) Shape {
	if s1.DType != s2.DType {
		exceptions.Panicf("shapes.Broadcast: dtypes don't match: %s and %s", s1, s2)
	}
	if s1.UnknownRank || s2.UnknownRank {
		return UnknownShape(s1.DType)
	}
	rank := max(s1.Rank(), s2.Rank())
	dims := make([]int, rank)
	for ii := 0; ii < rank; ii++ {
		d1, d2 := 1, 1
		if idx := s1.Rank() - rank + ii; idx >= 0 {
			d1 = s1.Dimensions[idx]
		}
		if idx := s2.Rank() - rank + ii; idx >= 0 {
			d2 = s2.Dimensions[idx]
		}
		switch {
		case d1 == d2:
			dims[ii] = d1
		case d1 == 1:
			dims[ii] = d2
		case d2 == 1:
			dims[ii] = d1
		case d1 == UnknownDim || d2 == UnknownDim:
			dims[ii] = UnknownDim
		default:
			exceptions.Panicf("shapes.Broadcast: cannot broadcast %s and %s at axis %d", s1, s2, ii)
		}
	}
	return Make(s1.DType, dims...)
}

// HasShape is an interface for objects that have an associated Shape.
type HasShape interface {
	Shape() Shape
}
