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
	"testing"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"github.com/projecthub/recsys/common/floats"
	"github.com/stretchr/testify/assert"
)

func TestReLU(t *testing.T) {
	x := NewTensor([]float32{-1, 0, 2, -3}, 2, 2)
	assert.Equal(t, []float32{0, 0, 2, 0}, ReLU(x).Data())
	assert.Equal(t, []float32{0, 0, 1, 0}, ReLUGrad(x).Data())
	// input unchanged
	assert.Equal(t, []float32{-1, 0, 2, -3}, x.Data())
}

func TestSigmoid(t *testing.T) {
	assert.Equal(t, float32(0.5), Sigmoid(0))
	assert.InDelta(t, 0.7310586, Sigmoid(1), 1e-6)
	// clipped
	assert.Equal(t, Sigmoid(15), Sigmoid(1000))
	assert.Equal(t, Sigmoid(-15), Sigmoid(-1000))
	assert.Greater(t, Sigmoid(-1000), float32(0))
	assert.Less(t, Sigmoid(1000), float32(1))
	assert.Equal(t, []float32{0.5, Sigmoid(2)}, SigmoidTensor(NewTensor([]float32{0, 2}, 2)).Data())
}

func TestL2Normalize(t *testing.T) {
	x := NewTensor([]float32{3, 4, 0, 0, 1, 1}, 3, 2)
	y := L2Normalize(x)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, y.Row(0), 1e-6)
	assert.Equal(t, []float32{0, 0}, y.Row(1))
	assert.InDelta(t, 1, floats.Norm(y.Row(2)), 1e-6)
	assert.Equal(t, []float32{3, 4, 0, 0, 1, 1}, x.Data())

	v := L2NormalizeVector([]float32{0, 5})
	assert.InDeltaSlice(t, []float32{0, 1}, v, 1e-6)
	assert.Equal(t, []float32{0, 0}, L2NormalizeVector([]float32{0, 0}))
}

func TestBPRLoss(t *testing.T) {
	loss, grad := BPRLoss([]float32{0, 0}, nil)
	assert.InDelta(t, math32.Log(2), loss, 1e-6)
	assert.InDeltaSlice(t, []float32{-0.25, -0.25}, grad, 1e-6)

	// loss vanishes for large positive differences
	loss, grad = BPRLoss([]float32{20}, nil)
	assert.InDelta(t, 0, loss, 1e-6)
	assert.InDelta(t, 0, grad[0], 1e-6)
	// gradient is always non-positive
	_, grad = BPRLoss([]float32{-20, -1, 1, 20}, nil)
	for _, g := range grad {
		assert.LessOrEqual(t, g, float32(0))
	}
	// large negative differences are finite
	loss, _ = BPRLoss([]float32{-1000}, nil)
	assert.False(t, math32.IsInf(loss, 0))
	assert.InDelta(t, -math32.Log(Sigmoid(-SigmoidClip)+LogEpsilon), loss, 1e-5)

	// weights
	loss, grad = BPRLoss([]float32{0, 0}, []float32{2, 0})
	assert.InDelta(t, math32.Log(2), loss, 1e-6)
	assert.InDeltaSlice(t, []float32{-0.5, 0}, grad, 1e-6)

	// empty
	loss, grad = BPRLoss(nil, nil)
	assert.Zero(t, loss)
	assert.Empty(t, grad)

	assert.Panics(t, func() { BPRLoss([]float32{1}, []float32{1, 2}) })
}

func TestTopKIndices(t *testing.T) {
	indices, err := TopKIndices([]float32{5, 1, 9, 3}, 2)
	assert.NoError(t, err)
	assert.Equal(t, []int{2, 0}, indices)

	// ties ordered by index
	indices, err = TopKIndices([]float32{1, 2, 2, 0, 2}, 3)
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4}, indices)

	indices, err = TopKIndices([]float32{1, 2}, 0)
	assert.NoError(t, err)
	assert.Empty(t, indices)

	_, err = TopKIndices([]float32{1, 2}, 3)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = TopKIndices([]float32{1, 2}, -1)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestTopKRows(t *testing.T) {
	scores := NewTensor([]float32{5, 1, 9, 3, 0, 4, 2, 8}, 2, 4)
	indices, err := TopKRows(scores, 2)
	assert.NoError(t, err)
	assert.Equal(t, [][]int{{2, 0}, {3, 1}}, indices)
	_, err = TopKRows(scores, 5)
	assert.Error(t, err)
}
