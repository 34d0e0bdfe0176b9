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
	"io"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"github.com/projecthub/recsys/base"
	"github.com/projecthub/recsys/common/floats"
)

// LinearLayer computes x @ W + B.
type LinearLayer struct {
	W *Tensor
	B *Tensor
}

func newLinear(rng base.RandomGenerator, in, out int) *LinearLayer {
	return &LinearLayer{
		W: Normal(rng, 0, math32.Sqrt(2/float32(in))*0.1, in, out),
		B: Zeros(out),
	}
}

func (l *LinearLayer) forward(x *Tensor) *Tensor {
	y := MatMul(x, l.W, false, false)
	for i := 0; i < y.Rows(); i++ {
		floats.Add(y.Row(i), l.B.data)
	}
	return y
}

// MLP is a stack of linear layers with ReLU between them. The last layer is linear.
type MLP struct {
	Layers []*LinearLayer
}

// Cache keeps the intermediate values of one forward pass. It is consumed by a single
// call to Backward.
type Cache struct {
	mlp      *MLP
	inputs   []*Tensor
	preacts  []*Tensor
	consumed bool
}

// NewMLP creates a network with layer widths sizes[0] -> sizes[1] -> ... -> sizes[n-1].
func NewMLP(rng base.RandomGenerator, sizes ...int) *MLP {
	if len(sizes) < 2 {
		panic("nn: MLP requires at least input and output sizes")
	}
	m := &MLP{Layers: make([]*LinearLayer, len(sizes)-1)}
	for i := range m.Layers {
		m.Layers[i] = newLinear(rng, sizes[i], sizes[i+1])
	}
	return m
}

func (m *MLP) InputDim() int {
	return m.Layers[0].W.Rows()
}

func (m *MLP) OutputDim() int {
	return m.Layers[len(m.Layers)-1].W.Cols()
}

func (m *MLP) Parameters() []*Tensor {
	var params []*Tensor
	for _, l := range m.Layers {
		params = append(params, l.W, l.B)
	}
	return params
}

func (m *MLP) forward(x *Tensor, cache *Cache) (*Tensor, error) {
	if x.Cols() != m.InputDim() {
		return nil, errors.NotValidf("input of shape %v for MLP with input dim %d", x.shape, m.InputDim())
	}
	for i, l := range m.Layers {
		z := l.forward(x)
		if cache != nil {
			cache.inputs = append(cache.inputs, x)
			cache.preacts = append(cache.preacts, z)
		}
		if i < len(m.Layers)-1 {
			x = ReLU(z)
		} else {
			x = z
		}
	}
	return x, nil
}

// Forward runs the network and returns the output with the cache needed by Backward.
func (m *MLP) Forward(x *Tensor) (*Tensor, *Cache, error) {
	cache := &Cache{mlp: m}
	y, err := m.forward(x, cache)
	if err != nil {
		return nil, nil, err
	}
	return y, cache, nil
}

// Predict runs the network without keeping a cache.
func (m *MLP) Predict(x *Tensor) (*Tensor, error) {
	return m.forward(x, nil)
}

// Backward propagates grad (the loss gradient of the output) through the layers recorded
// in cache, applies SGD with learning rate lr to every layer and returns the gradient
// with respect to the network input. The propagated gradient of each layer uses its
// weights before the update.
func (m *MLP) Backward(cache *Cache, grad *Tensor, lr float32) (*Tensor, error) {
	if cache == nil {
		return nil, errors.NotValidf("nil forward cache")
	}
	if cache.mlp != m {
		return nil, errors.NotValidf("forward cache of another MLP")
	}
	if cache.consumed {
		return nil, errors.NotValidf("consumed forward cache")
	}
	batchSize := cache.inputs[0].Rows()
	if grad.Rows() != batchSize || grad.Cols() != m.OutputDim() {
		return nil, errors.NotValidf("gradient of shape %v for batch %d and output dim %d",
			grad.shape, batchSize, m.OutputDim())
	}
	cache.consumed = true
	for i := len(m.Layers) - 1; i >= 0; i-- {
		l := m.Layers[i]
		if i < len(m.Layers)-1 {
			d := ReLUGrad(cache.preacts[i])
			floats.MulTo(grad.data, d.data, d.data)
			grad = d
		}
		dW := MatMul(cache.inputs[i], grad, true, false)
		db := SumRows(grad)
		next := MatMul(grad, l.W, false, true)
		floats.MulConstAdd(dW.data, -lr, l.W.data)
		floats.MulConstAdd(db.data, -lr, l.B.data)
		grad = next
	}
	return grad, nil
}

func (m *MLP) Marshal(w io.Writer) error {
	if err := encodeInt(w, len(m.Layers)); err != nil {
		return errors.Trace(err)
	}
	for _, p := range m.Parameters() {
		if err := p.Marshal(w); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (m *MLP) Unmarshal(r io.Reader) error {
	n, err := decodeInt(r)
	if err != nil {
		return errors.Trace(err)
	}
	if n <= 0 {
		return errors.NotValidf("MLP with %d layers", n)
	}
	m.Layers = make([]*LinearLayer, n)
	for i := range m.Layers {
		l := &LinearLayer{W: &Tensor{}, B: &Tensor{}}
		if err = l.W.Unmarshal(r); err != nil {
			return errors.Trace(err)
		}
		if err = l.B.Unmarshal(r); err != nil {
			return errors.Trace(err)
		}
		if len(l.W.shape) != 2 || l.B.Cols() != l.W.Cols() {
			return errors.NotValidf("layer %d of shape %v with bias %v", i, l.W.shape, l.B.shape)
		}
		if i > 0 && m.Layers[i-1].W.Cols() != l.W.Rows() {
			return errors.NotValidf("layer %d input dim %d after output dim %d", i, l.W.Rows(), m.Layers[i-1].W.Cols())
		}
		m.Layers[i] = l
	}
	return nil
}
