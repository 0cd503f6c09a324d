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
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/stochastic/types/shapes"
	"github.com/x448/float16"
	"gorgonia.org/tensor"
)

// The engine evaluates on gorgonia `*tensor.Dense` values. Only the dtypes
// below are supported by the kernels: Float64 and Float32 for the math ops,
// Int64 for shape vectors and Bool for comparisons.

// TensorDType converts the engine's DType enumeration to the matching
// gorgonia tensor dtype. It panics on unsupported dtypes.
func TensorDType(dtype dtypes.DType) tensor.Dtype {
	switch dtype {
	case dtypes.Float64:
		return tensor.Float64
	case dtypes.Float32:
		return tensor.Float32
	case dtypes.Int64:
		return tensor.Int64
	case dtypes.Bool:
		return tensor.Bool
	}
	exceptions.Panicf("unsupported dtype %s: engine supports Float64, Float32, Int64 and Bool", dtype)
	return tensor.Dtype{}
}

// DTypeOfTensor returns the engine DType of a dense tensor. It panics on
// unsupported dtypes.
func DTypeOfTensor(t *tensor.Dense) dtypes.DType {
	switch t.Dtype() {
	case tensor.Float64:
		return dtypes.Float64
	case tensor.Float32:
		return dtypes.Float32
	case tensor.Int64:
		return dtypes.Int64
	case tensor.Bool:
		return dtypes.Bool
	}
	exceptions.Panicf("unsupported tensor dtype %s: engine supports Float64, Float32, Int64 and Bool", t.Dtype())
	return dtypes.InvalidDType
}

// ShapeOfTensor returns the (always fully defined) shape of a dense tensor.
func ShapeOfTensor(t *tensor.Dense) shapes.Shape {
	return shapes.Make(DTypeOfTensor(t), t.Shape()...)
}

// denseFromFlat builds a dense tensor of the given dimensions around a flat
// backing slice ([]float64, []float32, []int64 or []bool). Empty dimensions
// yield a scalar.
func denseFromFlat(dims []int, backing any) *tensor.Dense {
	if len(dims) == 0 {
		return tensor.New(tensor.FromScalar(reflect.ValueOf(backing).Index(0).Interface()))
	}
	dt := tensor.Dtype{Type: reflect.TypeOf(backing).Elem()}
	if reflect.ValueOf(backing).Len() == 0 {
		return tensor.New(tensor.Of(dt), tensor.WithShape(dims...))
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(backing))
}

// Flat data accessors: gorgonia returns the bare element (not a slice) from
// Data() for scalar tensors, these normalize that to a 1-element slice.

func flatF64(t *tensor.Dense) []float64 {
	if v, ok := t.Data().(float64); ok {
		return []float64{v}
	}
	return t.Data().([]float64)
}

func flatF32(t *tensor.Dense) []float32 {
	if v, ok := t.Data().(float32); ok {
		return []float32{v}
	}
	return t.Data().([]float32)
}

func flatI64(t *tensor.Dense) []int64 {
	if v, ok := t.Data().(int64); ok {
		return []int64{v}
	}
	return t.Data().([]int64)
}

func flatBool(t *tensor.Dense) []bool {
	if v, ok := t.Data().(bool); ok {
		return []bool{v}
	}
	return t.Data().([]bool)
}

// FromAnyValue converts a Go value to a dense tensor. It accepts:
//
//   - `*tensor.Dense`, returned unchanged;
//   - numeric scalars: float64, float32, float16.Float16 (converted to
//     float32), int, int32, int64 (all converted to int64) and bool;
//   - (multidimensional) slices of those, e.g. [][]float64 -- the slice
//     must be regular (same length at each level).
//
// It panics on anything else.
func FromAnyValue(value any) *tensor.Dense {
	if t, ok := value.(*tensor.Dense); ok {
		return t
	}
	dims, flat := flattenValue(value)
	return denseFromFlat(dims, flat)
}

// flattenValue uses reflection to extract the dimensions and the flat
// backing data of arbitrarily nested regular Go slices.
func flattenValue(value any) (dims []int, flat any) {
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Slice {
		dims = append(dims, v.Len())
		if v.Len() == 0 {
			// Empty slice: walk the remaining element types to find the
			// base type, all deeper dimensions are 0.
			t := v.Type().Elem()
			for t.Kind() == reflect.Slice {
				dims = append(dims, 0)
				t = t.Elem()
			}
			v = reflect.Zero(t)
			break
		}
		v = v.Index(0)
	}
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	switch baseValue := v.Interface().(type) {
	case float64:
		flat = appendFlat(make([]float64, 0, size), dims, reflect.ValueOf(value), func(v reflect.Value) float64 { return v.Float() })
	case float32:
		flat = appendFlat(make([]float32, 0, size), dims, reflect.ValueOf(value), func(v reflect.Value) float32 { return float32(v.Float()) })
	case float16.Float16:
		flat = appendFlat(make([]float32, 0, size), dims, reflect.ValueOf(value), func(v reflect.Value) float32 {
			return v.Interface().(float16.Float16).Float32()
		})
	case int, int32, int64:
		flat = appendFlat(make([]int64, 0, size), dims, reflect.ValueOf(value), func(v reflect.Value) int64 { return v.Int() })
	case bool:
		flat = appendFlat(make([]bool, 0, size), dims, reflect.ValueOf(value), func(v reflect.Value) bool { return v.Bool() })
	default:
		exceptions.Panicf("cannot convert value of type %T to a tensor", baseValue)
	}
	return
}

// appendFlat recursively walks the nested slices of v appending the base
// elements to flat. It panics if the nested slices are not regular.
func appendFlat[T any](flat []T, dims []int, v reflect.Value, extract func(reflect.Value) T) []T {
	if len(dims) == 0 {
		return append(flat, extract(v))
	}
	if v.Len() != dims[0] {
		exceptions.Panicf("irregular nested slices: expected length %d, got %d", dims[0], v.Len())
	}
	for ii := 0; ii < v.Len(); ii++ {
		flat = appendFlat(flat, dims[1:], v.Index(ii), extract)
	}
	return flat
}
