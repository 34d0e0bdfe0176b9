// Copyright 2026 recsys Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nn

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"github.com/projecthub/recsys/common/floats"
	"github.com/projecthub/recsys/common/heap"
)

const (
	// SigmoidClip bounds the sigmoid input to avoid overflow in exp.
	SigmoidClip = 15
	// NormEpsilon is added to row norms before division.
	NormEpsilon = 1e-12
	// LogEpsilon is added to sigmoid outputs before taking logarithms.
	LogEpsilon = 1e-8
)

// ReLU returns max(0, x) elementwise.
func ReLU(x *Tensor) *Tensor {
	y := x.Clone()
	for i, v := range y.data {
		if v < 0 {
			y.data[i] = 0
		}
	}
	return y
}

// ReLUGrad returns the derivative of ReLU at x: 1 where x > 0, otherwise 0.
func ReLUGrad(x *Tensor) *Tensor {
	y := Zeros(x.shape...)
	for i, v := range x.data {
		if v > 0 {
			y.data[i] = 1
		}
	}
	return y
}

// Sigmoid computes 1 / (1 + exp(-x)) with x clipped to [-SigmoidClip, SigmoidClip].
func Sigmoid(x float32) float32 {
	if x > SigmoidClip {
		x = SigmoidClip
	} else if x < -SigmoidClip {
		x = -SigmoidClip
	}
	return 1 / (1 + math32.Exp(-x))
}

// SigmoidTensor applies Sigmoid elementwise.
func SigmoidTensor(x *Tensor) *Tensor {
	y := x.Clone()
	for i, v := range y.data {
		y.data[i] = Sigmoid(v)
	}
	return y
}

// L2NormalizeVector divides a vector by its norm plus NormEpsilon.
func L2NormalizeVector(v []float32) []float32 {
	ret := make([]float32, len(v))
	floats.MulConstTo(v, 1/(floats.Norm(v)+NormEpsilon), ret)
	return ret
}

// L2Normalize normalizes every row of a matrix. Zero rows stay zero.
func L2Normalize(x *Tensor) *Tensor {
	y := x.Clone()
	for i := 0; i < y.Rows(); i++ {
		row := y.Row(i)
		floats.MulConst(row, 1/(floats.Norm(row)+NormEpsilon))
	}
	return y
}

// BPRLoss computes the weighted Bayesian personalized ranking loss over score differences
// (positive minus negative) and the gradient of the loss with respect to each difference:
//
//	loss = -mean(w * log(sigmoid(diff) + eps))
//	grad = -w * (1 - sigmoid(diff)) / n
//
// The gradient follows the closed form above rather than the exact derivative of the
// epsilon-shifted logarithm. A nil weights slice means unit weights.
func BPRLoss(diff, weights []float32) (float32, []float32) {
	if weights != nil && len(weights) != len(diff) {
		panic(fmt.Sprintf("nn: %d weights for %d differences", len(weights), len(diff)))
	}
	n := len(diff)
	grad := make([]float32, n)
	if n == 0 {
		return 0, grad
	}
	var loss float32
	for i, d := range diff {
		w := float32(1)
		if weights != nil {
			w = weights[i]
		}
		s := Sigmoid(d)
		loss -= w * math32.Log(s+LogEpsilon)
		grad[i] = -w * (1 - s) / float32(n)
	}
	return loss / float32(n), grad
}

// TopKIndices returns the indices of the k largest scores in descending order of score.
// Equal scores are ordered by ascending index.
func TopKIndices(scores []float32, k int) ([]int, error) {
	if k < 0 || k > len(scores) {
		return nil, errors.NotValidf("k = %d for %d scores", k, len(scores))
	}
	filter := heap.NewTopKFilter[int, float32](k)
	for i, score := range scores {
		filter.Push(i, score)
	}
	return filter.PopAllValues(), nil
}

// TopKRows applies TopKIndices to every row of a score matrix.
func TopKRows(scores *Tensor, k int) ([][]int, error) {
	ret := make([][]int, scores.Rows())
	for i := range ret {
		indices, err := TopKIndices(scores.Row(i), k)
		if err != nil {
			return nil, errors.Trace(err)
		}
		ret[i] = indices
	}
	return ret, nil
}
