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

// Package initializers include several variable initializers, to be used
// with context. They implement the context.VariableInitializer type.
//
// Initializers are eager: they build the concrete initial value of a
// variable, they don't add anything to computation graphs.
package initializers

import (
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/stochastic/types/shapes"
	rng "github.com/leesper/go_rng"
	"gorgonia.org/tensor"
)

// VariableInitializer builds the value to initialize a variable of the given
// shape, which must be fully defined. It is defined in the Context.
type VariableInitializer func(shape shapes.Shape) *tensor.Dense

// DefaultSeed for initializers, when the seed is not explicitly given.
const DefaultSeed = int64(42)

// Zero initializes variables with zero.
func Zero(shape shapes.Shape) *tensor.Dense {
	return constantOf(shape, 0)
}

// One initializes variables with one.
func One(shape shapes.Shape) *tensor.Dense {
	return constantOf(shape, 1)
}

func constantOf(shape shapes.Shape, value float64) *tensor.Dense {
	size := shape.Size()
	switch shape.DType {
	case dtypes.Float64:
		backing := make([]float64, size)
		for ii := range backing {
			backing[ii] = value
		}
		return denseOf(shape, backing)
	case dtypes.Float32:
		backing := make([]float32, size)
		for ii := range backing {
			backing[ii] = float32(value)
		}
		return denseOf(shape, backing)
	case dtypes.Int64:
		backing := make([]int64, size)
		for ii := range backing {
			backing[ii] = int64(value)
		}
		return denseOf(shape, backing)
	}
	exceptions.Panicf("initializers: unsupported dtype for shape %s", shape)
	return nil
}

// RandomUniformFn returns an initializer that generates random uniform
// values in the range [min, max). Non-float variables fall back to zeros.
func RandomUniformFn(seed int64, min, max float64) VariableInitializer {
	generator := rng.NewUniformGenerator(seed)
	return func(shape shapes.Shape) *tensor.Dense {
		return randomOf(shape, func() float64 { return generator.Float64Range(min, max) })
	}
}

// RandomNormalFn returns an initializer that generates random values from a
// normal distribution with the given standard deviation and mean 0.
// Non-float variables fall back to zeros.
func RandomNormalFn(seed int64, stddev float64) VariableInitializer {
	generator := rng.NewGaussianGenerator(seed)
	return func(shape shapes.Shape) *tensor.Dense {
		return randomOf(shape, func() float64 { return generator.Gaussian(0, stddev) })
	}
}

func randomOf(shape shapes.Shape, draw func() float64) *tensor.Dense {
	if !shape.DType.IsFloat() {
		return Zero(shape)
	}
	size := shape.Size()
	switch shape.DType {
	case dtypes.Float64:
		backing := make([]float64, size)
		for ii := range backing {
			backing[ii] = draw()
		}
		return denseOf(shape, backing)
	case dtypes.Float32:
		backing := make([]float32, size)
		for ii := range backing {
			backing[ii] = float32(draw())
		}
		return denseOf(shape, backing)
	}
	exceptions.Panicf("initializers: unsupported float dtype for shape %s", shape)
	return nil
}

func denseOf(shape shapes.Shape, backing any) *tensor.Dense {
	if shape.IsScalar() {
		return tensor.New(tensor.FromScalar(reflect.ValueOf(backing).Index(0).Interface()))
	}
	return tensor.New(tensor.WithShape(shape.Dimensions...), tensor.WithBacking(backing))
}
