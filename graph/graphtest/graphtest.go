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

// Package graphtest holds test utilities for packages that depend on the graph package.
package graphtest

import (
	"fmt"
	"testing"

	"github.com/gomlx/stochastic/graph"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

// TestGraphFn builds the outputs to be checked on a fresh graph. It returns
// the feeds the graph needs (may be nil) and the outputs.
type TestGraphFn func(g *graph.Graph) (feeds map[*graph.Node]*tensor.Dense, outputs []*graph.Node)

// RunTestGraphFn tests a graph building function graphFn by executing it and
// comparing its output(s) to the values in want, reporting back any errors
// in t. Each wanted value is converted with graph.FromAnyValue.
//
// delta is the margin of error acceptable on the difference of output and
// want values. Values of delta <= 0 mean only exact equality is accepted.
func RunTestGraphFn(t *testing.T, testName string, graphFn TestGraphFn, want []any, delta float64) {
	t.Run(testName, func(t *testing.T) {
		g := graph.New(testName)
		var feeds map[*graph.Node]*tensor.Dense
		var outputs []*graph.Node
		require.NotPanicsf(t, func() { feeds, outputs = graphFn(g) }, "%s: failed to build graph", testName)
		require.Equalf(t, len(want), len(outputs), "%s: number of wanted results different from number of outputs", testName)

		results := must.M1(g.Run(feeds, outputs...))
		fmt.Printf("\n%s:\n", testName)
		for ii, result := range results {
			fmt.Printf("\tOutput %d: %v\n", ii, result)
		}
		for ii, result := range results {
			RequireSameTensors(t, graph.FromAnyValue(want[ii]), result, delta)
		}
	})
}

// RequireSameTensors checks that the two dense tensors have the same shape,
// dtype and data, the latter to within delta for float dtypes.
func RequireSameTensors(t *testing.T, want, got *tensor.Dense, delta float64) {
	require.Truef(t, graph.ShapeOfTensor(got).Equal(graph.ShapeOfTensor(want)),
		"tensor shapes don't match: want %s, got %s", graph.ShapeOfTensor(want), graph.ShapeOfTensor(got))
	wantData, gotData := want.Data(), got.Data()
	if delta <= 0 {
		require.Equal(t, wantData, gotData)
		return
	}
	switch wantFlat := wantData.(type) {
	case []float64:
		for ii, w := range wantFlat {
			require.InDeltaf(t, w, gotData.([]float64)[ii], delta, "element #%d doesn't match", ii)
		}
	case float64:
		require.InDelta(t, wantFlat, gotData.(float64), delta)
	case []float32:
		for ii, w := range wantFlat {
			require.InDeltaf(t, w, gotData.([]float32)[ii], delta, "element #%d doesn't match", ii)
		}
	case float32:
		require.InDelta(t, wantFlat, gotData.(float32), delta)
	default:
		require.Equal(t, wantData, gotData)
	}
}
