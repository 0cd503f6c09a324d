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
	"github.com/gomlx/exceptions"
	"github.com/gomlx/stochastic/graph"
)

// Bernoulli is the distribution of a binary variable that is 1 with
// probability probs and 0 otherwise. probs is the distribution's batch of
// parameters, and samples are 0/1 values of the same dtype. The value shape
// is scalar.
type Bernoulli struct {
	baseDistribution
	probs *graph.Node
}

var (
	_ Distribution   = (*Bernoulli)(nil)
	_ HasAnalyticKLD = (*Bernoulli)(nil)
)

// NewBernoulli creates a Bernoulli distribution from the probabilities of
// drawing 1. probs must be a float node with values in [0, 1]; its shape is
// the batch shape.
func NewBernoulli(probs *graph.Node) *Bernoulli {
	d := &Bernoulli{
		baseDistribution: newBaseDistribution(probs, 0, false, false),
		probs:            probs,
	}
	d.impl = d
	return d
}

// WithGroupEventNdims sets the default event-grouping depth used by LogProb
// and Prob. Call before first use.
func (d *Bernoulli) WithGroupEventNdims(n int) *Bernoulli {
	if n < 0 {
		exceptions.Panicf("Bernoulli: group event ndims must be non-negative, got %d", n)
	}
	d.groupEventNdims = n
	return d
}

// WithCheckNumerics makes Prob fail at Run time on non-finite results.
// Call before first use.
func (d *Bernoulli) WithCheckNumerics() *Bernoulli {
	d.checkNumerics = true
	return d
}

func (d *Bernoulli) sampleN(n any) *graph.Node {
	vec, static := d.leadingShape(n)
	u := graph.EnsureShape(graph.RandomUniform(d.g, vec, d.dtype), static)
	return graph.Cast(graph.LessThan(u, d.probs), d.dtype)
}

func (d *Bernoulli) logProbRaw(x *graph.Node) *graph.Node {
	one := scalarOf(d.g, d.dtype, 1)
	// x·log(p) + (1-x)·log(1-p)
	return graph.Add(
		graph.Mul(x, graph.Log(d.probs)),
		graph.Mul(graph.Sub(one, x), graph.Log(graph.Sub(one, d.probs))))
}

// AnalyticKLD returns the closed-form KL(d || other) between two Bernoulli
// distributions, shaped like the broadcast of their batch shapes.
func (d *Bernoulli) AnalyticKLD(other Distribution) *graph.Node {
	q, ok := other.(*Bernoulli)
	if !ok {
		exceptions.Panicf("Bernoulli.AnalyticKLD: incompatible distribution %T", other)
	}
	one := scalarOf(d.g, d.dtype, 1)
	p := d.probs
	// p·log(p/q) + (1-p)·log((1-p)/(1-q))
	return graph.Add(
		graph.Mul(p, graph.Sub(graph.Log(p), graph.Log(q.probs))),
		graph.Mul(graph.Sub(one, p),
			graph.Sub(graph.Log(graph.Sub(one, p)), graph.Log(graph.Sub(one, q.probs)))))
}
