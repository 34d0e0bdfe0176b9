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
	"bytes"
	"testing"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"github.com/projecthub/recsys/base"
	"github.com/stretchr/testify/assert"
)

const (
	eps  = 1e-2
	rtol = 1e-2
	atol = 5e-3
)

// numericalDiff estimates the gradient of a scalar function f with central differences.
func numericalDiff(f func(*Tensor) float32, x *Tensor) *Tensor {
	x0, x1 := x.Clone(), x.Clone()
	dx := make([]float32, len(x.data))
	for i, v := range x.data {
		x0.data[i] = v - eps
		x1.data[i] = v + eps
		dx[i] = (f(x1) - f(x0)) / (2 * eps)
		x0.data[i] = v
		x1.data[i] = v
	}
	return NewTensor(dx, x.shape...)
}

func allClose(t *testing.T, a, b *Tensor) {
	if !assert.Equal(t, a.shape, b.shape) {
		return
	}
	for i := range a.data {
		if math32.Abs(a.data[i]-b.data[i]) > atol+rtol*math32.Abs(b.data[i]) {
			t.Fatalf("a.data[%d] = %f, b.data[%d] = %f\n", i, a.data[i], i, b.data[i])
			return
		}
	}
}

func TestNewTensor(t *testing.T) {
	x := NewTensor([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	assert.Equal(t, []int{2, 3}, x.Shape())
	assert.Equal(t, 2, x.Rows())
	assert.Equal(t, 3, x.Cols())
	assert.Equal(t, []float32{4, 5, 6}, x.Row(1))
	assert.Equal(t, "[1, 2, 3, 4, 5, 6]", x.String())
	assert.Panics(t, func() { NewTensor([]float32{1, 2}, 3) })

	v := Zeros(4)
	assert.Equal(t, 1, v.Rows())
	assert.Equal(t, 4, v.Cols())
}

func TestNormal(t *testing.T) {
	x := Normal(base.NewRandomGenerator(0), 0, 0.01, 100, 10)
	assert.Equal(t, []int{100, 10}, x.Shape())
	y := Normal(base.NewRandomGenerator(0), 0, 0.01, 100, 10)
	assert.Equal(t, x.Data(), y.Data())
}

func TestClone(t *testing.T) {
	x := NewTensor([]float32{1, 2}, 1, 2)
	y := x.Clone()
	y.Data()[0] = 3
	assert.Equal(t, float32(1), x.Data()[0])
}

func TestMatMul(t *testing.T) {
	a := NewTensor([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := NewTensor([]float32{1, 2, 3, 4, 5, 6}, 3, 2)
	c := MatMul(a, b, false, false)
	assert.Equal(t, []int{2, 2}, c.Shape())
	assert.Equal(t, []float32{22, 28, 49, 64}, c.Data())

	// a^T @ a
	c = MatMul(a, a, true, false)
	assert.Equal(t, []int{3, 3}, c.Shape())
	assert.Equal(t, []float32{17, 22, 27, 22, 29, 36, 27, 36, 45}, c.Data())

	// a @ a^T
	c = MatMul(a, a, false, true)
	assert.Equal(t, []float32{14, 32, 32, 77}, c.Data())

	assert.Panics(t, func() { MatMul(a, a, false, false) })
}

func TestConcatSplit(t *testing.T) {
	a := NewTensor([]float32{1, 2, 3, 4}, 2, 2)
	b := NewTensor([]float32{5, 6}, 2, 1)
	c := Concat(a, b)
	assert.Equal(t, []int{2, 3}, c.Shape())
	assert.Equal(t, []float32{1, 2, 5, 3, 4, 6}, c.Data())
	left, right := Split(c, 2)
	assert.Equal(t, a.Data(), left.Data())
	assert.Equal(t, b.Data(), right.Data())
	assert.Panics(t, func() { Concat(a, Zeros(3, 1)) })
}

func TestSumRows(t *testing.T) {
	x := NewTensor([]float32{1, 2, 3, 4, 5, 6}, 3, 2)
	assert.Equal(t, []float32{9, 12}, SumRows(x).Data())
}

func TestTensorMarshal(t *testing.T) {
	x := NewTensor([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, x.Marshal(buf))
	var y Tensor
	assert.NoError(t, y.Unmarshal(buf))
	assert.Equal(t, x.Shape(), y.Shape())
	assert.Equal(t, x.Data(), y.Data())

	// shape mismatch
	buf.Reset()
	bad := &Tensor{data: []float32{1, 2, 3}, shape: []int{2, 2}}
	assert.NoError(t, bad.Marshal(buf))
	err := y.Unmarshal(buf)
	assert.True(t, errors.Is(err, errors.NotValid))
}
