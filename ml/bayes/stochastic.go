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

package bayes

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/stochastic/graph"
)

// StochasticObject is anything that contributes a log-probability term to a
// variational lower bound.
type StochasticObject interface {
	// LogLowerBound returns the object's log-probability lower bound.
	// reduceLatentAxis asks composite objects to sum out their latent
	// sampling axis; leaf objects ignore it.
	LogLowerBound(reduceLatentAxis bool) *graph.Node
}

// StochasticTensor binds a concrete tensor value, either sampled from or
// observed under a Distribution, to that distribution, and memoizes the
// probability queries on the pair.
//
// StochasticTensor values are immutable after construction and compared by
// pointer identity only: two tensors wrapping equal values are distinct.
// They are safe to use directly as map keys or set members to track which
// random variables a model declared.
type StochasticTensor struct {
	dist            Distribution
	tensor          *graph.Node
	observed        bool
	groupEventNdims int
	samplesNdims    int

	cachedLogProb *graph.Node
	cachedProb    *graph.Node
}

var _ StochasticObject = (*StochasticTensor)(nil)

type stochasticTensorConfig struct {
	value           any
	valueCount      int
	observed        bool
	groupEventNdims int
	hasGroup        bool
	samplesNdims    int
	validateShape   bool
}

// StochasticTensorOption configures NewStochasticTensor.
type StochasticTensorOption func(*stochasticTensorConfig)

// Sampled binds x as a value sampled from the distribution. x is a
// *graph.Node, another *StochasticTensor, or any Go value convertible to a
// tensor. Exactly one of Sampled or Observed must be given.
func Sampled(x any) StochasticTensorOption {
	return func(cfg *stochasticTensorConfig) {
		cfg.value = x
		cfg.valueCount++
		cfg.observed = false
	}
}

// Observed binds x as an observed value to be scored under the
// distribution. x is a *graph.Node, another *StochasticTensor, or any Go
// value convertible to a tensor. Exactly one of Sampled or Observed must be
// given.
func Observed(x any) StochasticTensorOption {
	return func(cfg *stochasticTensorConfig) {
		cfg.value = x
		cfg.valueCount++
		cfg.observed = true
	}
}

// WithGroupEventNdims sets the event-grouping depth LogProb and Prob are
// memoized at. It defaults to the distribution's own configured depth.
func WithGroupEventNdims(n int) StochasticTensorOption {
	return func(cfg *stochasticTensorConfig) {
		cfg.groupEventNdims = n
		cfg.hasGroup = true
	}
}

// WithSamplesNdims records how many leading axes of the bound value are
// sampling axes. Purely informational, defaults to 0.
func WithSamplesNdims(n int) StochasticTensorOption {
	return func(cfg *stochasticTensorConfig) {
		cfg.samplesNdims = n
	}
}

// WithShapeValidation makes construction panic when the bound value's
// static shape is provably inconsistent with the distribution's
// batch ++ value shape.
func WithShapeValidation() StochasticTensorOption {
	return func(cfg *stochasticTensorConfig) {
		cfg.validateShape = true
	}
}

// NewStochasticTensor binds a value to dist. Exactly one of the Sampled or
// Observed options is required; the value is converted to a node on dist's
// graph and cast to dist's dtype if needed.
func NewStochasticTensor(dist Distribution, opts ...StochasticTensorOption) *StochasticTensor {
	if dist == nil {
		exceptions.Panicf("NewStochasticTensor: distribution must not be nil")
	}
	var cfg stochasticTensorConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.valueCount != 1 {
		exceptions.Panicf("NewStochasticTensor: exactly one of Sampled() or Observed() must be given, got %d",
			cfg.valueCount)
	}
	if cfg.groupEventNdims < 0 || cfg.samplesNdims < 0 {
		exceptions.Panicf("NewStochasticTensor: ndims must be non-negative")
	}
	node := coerceToNode(dist, cfg.value)
	if cfg.validateShape {
		node = dist.ValidateSamplesShape(node)
	}
	st := &StochasticTensor{
		dist:            dist,
		tensor:          node,
		observed:        cfg.observed,
		groupEventNdims: dist.GroupEventNdims(),
		samplesNdims:    cfg.samplesNdims,
	}
	if cfg.hasGroup {
		st.groupEventNdims = cfg.groupEventNdims
	}
	return st
}

func coerceToNode(dist Distribution, value any) *graph.Node {
	var node *graph.Node
	switch v := value.(type) {
	case *graph.Node:
		node = v
	case *StochasticTensor:
		node = v.Tensor()
	default:
		node = graph.Const(dist.Graph(), v)
	}
	if node.Graph() != dist.Graph() {
		exceptions.Panicf("stochastic tensor value belongs to graph %q, distribution to graph %q",
			node.Graph().Name(), dist.Graph().Name())
	}
	if node.DType() != dist.DType() {
		node = graph.Cast(node, dist.DType())
	}
	return node
}

// Tensor returns the raw bound value node, for interop with graph ops.
func (st *StochasticTensor) Tensor() *graph.Node { return st.tensor }

// Distribution returns the distribution the value is bound to.
func (st *StochasticTensor) Distribution() Distribution { return st.dist }

// IsObserved reports whether the value was bound with Observed.
func (st *StochasticTensor) IsObserved() bool { return st.observed }

// GroupEventNdims is the grouping depth LogProb and Prob use.
func (st *StochasticTensor) GroupEventNdims() int { return st.groupEventNdims }

// SamplesNdims is the declared number of leading sampling axes.
func (st *StochasticTensor) SamplesNdims() int { return st.samplesNdims }

// IsContinuous reports whether the underlying distribution is continuous.
func (st *StochasticTensor) IsContinuous() bool { return st.dist.IsContinuous() }

// IsReparameterized reports whether the underlying distribution samples by
// reparameterization.
func (st *StochasticTensor) IsReparameterized() bool { return st.dist.IsReparameterized() }

// LogProb returns the log-probability of the bound value at the tensor's
// own grouping depth. The node is built once and memoized; the bound value
// never changes, so the cache is never invalidated.
func (st *StochasticTensor) LogProb() *graph.Node {
	if st.cachedLogProb == nil {
		st.cachedLogProb = st.dist.LogProbGrouped(st.tensor, st.groupEventNdims)
	}
	return st.cachedLogProb
}

// LogProbGrouped is LogProb at an explicit grouping depth. nil or the
// tensor's own depth return the memoized node; any other depth (including
// symbolic ones) builds a fresh node every call and is never memoized.
func (st *StochasticTensor) LogProbGrouped(groupEventNdims any) *graph.Node {
	if usesOwnDepth(st, groupEventNdims) {
		return st.LogProb()
	}
	return st.dist.LogProbGrouped(st.tensor, groupEventNdims)
}

// Prob returns the probability of the bound value at the tensor's own
// grouping depth, memoized like LogProb.
func (st *StochasticTensor) Prob() *graph.Node {
	if st.cachedProb == nil {
		st.cachedProb = st.dist.ProbGrouped(st.tensor, st.groupEventNdims)
	}
	return st.cachedProb
}

// ProbGrouped is Prob at an explicit grouping depth, with the same
// memoization rule as LogProbGrouped.
func (st *StochasticTensor) ProbGrouped(groupEventNdims any) *graph.Node {
	if usesOwnDepth(st, groupEventNdims) {
		return st.Prob()
	}
	return st.dist.ProbGrouped(st.tensor, groupEventNdims)
}

// LogLowerBound implements StochasticObject: for a single bound value the
// lower bound is its own log-probability. reduceLatentAxis is ignored,
// reduction across latent axes is the concern of composite objects.
func (st *StochasticTensor) LogLowerBound(reduceLatentAxis bool) *graph.Node {
	_ = reduceLatentAxis
	return st.LogProb()
}

func usesOwnDepth(st *StochasticTensor, groupEventNdims any) bool {
	if groupEventNdims == nil {
		return true
	}
	n, ok := groupEventNdims.(int)
	return ok && n == st.groupEventNdims
}

// String implements fmt.Stringer.
func (st *StochasticTensor) String() string {
	kind := "sampled"
	if st.observed {
		kind = "observed"
	}
	return fmt.Sprintf("StochasticTensor(%s, shape=%s)", kind, st.tensor.Shape())
}
