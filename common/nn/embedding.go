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

	"github.com/juju/errors"
	"github.com/projecthub/recsys/base"
	"github.com/projecthub/recsys/common/floats"
)

// EmbeddingStdDev is the standard deviation of initial embedding weights.
const EmbeddingStdDev = 0.01

// Embedding is a lookup table of n dense vectors.
type Embedding struct {
	W *Tensor
}

// NewEmbedding creates an embedding table of n rows with dim columns.
func NewEmbedding(rng base.RandomGenerator, n, dim int) *Embedding {
	return &Embedding{W: Normal(rng, 0, EmbeddingStdDev, n, dim)}
}

func (e *Embedding) Count() int {
	return e.W.Rows()
}

func (e *Embedding) Dim() int {
	return e.W.Cols()
}

func (e *Embedding) Parameters() []*Tensor {
	return []*Tensor{e.W}
}

func (e *Embedding) checkIds(ids []int32) error {
	n := e.Count()
	for _, id := range ids {
		if id < 0 || int(id) >= n {
			return errors.NotValidf("embedding id %d out of [0, %d)", id, n)
		}
	}
	return nil
}

// Lookup gathers the rows for ids into a (len(ids), dim) matrix.
func (e *Embedding) Lookup(ids []int32) (*Tensor, error) {
	if err := e.checkIds(ids); err != nil {
		return nil, err
	}
	out := Zeros(len(ids), e.Dim())
	for i, id := range ids {
		copy(out.Row(i), e.W.Row(int(id)))
	}
	return out, nil
}

// AccumulateUpdate applies W[ids[i]] -= lr * grad[i] for every i. Gradients of
// repeated ids add up. Nothing is modified if any id is invalid.
func (e *Embedding) AccumulateUpdate(ids []int32, grad *Tensor, lr float32) error {
	if grad.Rows() != len(ids) || (len(ids) > 0 && grad.Cols() != e.Dim()) {
		return errors.NotValidf("gradient of shape %v for %d ids of dim %d", grad.shape, len(ids), e.Dim())
	}
	if err := e.checkIds(ids); err != nil {
		return err
	}
	for i, id := range ids {
		floats.MulConstAdd(grad.Row(i), -lr, e.W.Row(int(id)))
	}
	return nil
}

func (e *Embedding) Marshal(w io.Writer) error {
	return e.W.Marshal(w)
}

func (e *Embedding) Unmarshal(r io.Reader) error {
	e.W = &Tensor{}
	if err := e.W.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	if len(e.W.shape) != 2 {
		return errors.NotValidf("embedding shape %v", e.W.shape)
	}
	return nil
}
