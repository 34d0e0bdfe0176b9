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
	"io"
	"strings"

	"github.com/juju/errors"
	"github.com/projecthub/recsys/base"
	"github.com/projecthub/recsys/common/encoding"
	"github.com/projecthub/recsys/common/floats"
	"github.com/samber/lo"
)

// Tensor is a dense row-major float32 array. Two-dimensional tensors are matrices of
// shape (rows, cols); one-dimensional tensors are treated as a single row.
type Tensor struct {
	data  []float32
	shape []int
}

func size(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// NewTensor wraps data into a tensor. It panics if data does not fit the shape.
func NewTensor(data []float32, shape ...int) *Tensor {
	if len(data) != size(shape) {
		panic(fmt.Sprintf("nn: %d values do not fit shape %v", len(data), shape))
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape ...int) *Tensor {
	return &Tensor{
		data:  make([]float32, size(shape)),
		shape: shape,
	}
}

// Normal creates a tensor filled with normal random floats.
func Normal(rng base.RandomGenerator, mean, std float32, shape ...int) *Tensor {
	return &Tensor{
		data:  rng.NormalVector(size(shape), mean, std),
		shape: shape,
	}
}

func (t *Tensor) Shape() []int {
	return t.shape
}

// Data returns the underlying storage. Writes are visible to the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

func (t *Tensor) Rows() int {
	if len(t.shape) < 2 {
		return 1
	}
	return t.shape[0]
}

func (t *Tensor) Cols() int {
	if len(t.shape) == 0 {
		return 1
	}
	return t.shape[len(t.shape)-1]
}

// Row returns a view of the i-th row.
func (t *Tensor) Row(i int) []float32 {
	cols := t.Cols()
	return t.data[i*cols : (i+1)*cols]
}

func (t *Tensor) Clone() *Tensor {
	newData := make([]float32, len(t.data))
	copy(newData, t.data)
	return &Tensor{
		data:  newData,
		shape: lo.Clone(t.shape),
	}
}

func (t *Tensor) String() string {
	builder := strings.Builder{}
	builder.WriteString("[")
	if len(t.data) <= 10 {
		for i := 0; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	} else {
		for i := 0; i < 5; i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			builder.WriteString(", ")
		}
		builder.WriteString("..., ")
		for i := len(t.data) - 5; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	}
	builder.WriteString("]")
	return builder.String()
}

// Marshal writes the shape and the values of the tensor.
func (t *Tensor) Marshal(w io.Writer) error {
	shape := lo.Map(t.shape, func(s int, _ int) int32 { return int32(s) })
	if err := encoding.WriteInt32s(w, shape); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteFloat32s(w, t.data)
}

// Unmarshal reads a tensor written by Marshal.
func (t *Tensor) Unmarshal(r io.Reader) error {
	shape, err := encoding.ReadInt32s(r)
	if err != nil {
		return errors.Trace(err)
	}
	data, err := encoding.ReadFloat32s(r)
	if err != nil {
		return errors.Trace(err)
	}
	t.shape = lo.Map(shape, func(s int32, _ int) int { return int(s) })
	if size(t.shape) != len(data) {
		return errors.NotValidf("%d values for shape %v", len(data), t.shape)
	}
	t.data = data
	return nil
}

// MatMul returns op(a) @ op(b) where op transposes when requested.
func MatMul(a, b *Tensor, transA, transB bool) *Tensor {
	m, k := a.Rows(), a.Cols()
	if transA {
		m, k = k, m
	}
	k2, n := b.Rows(), b.Cols()
	if transB {
		k2, n = n, k2
	}
	if k != k2 {
		panic(fmt.Sprintf("nn: matmul shape mismatch %v and %v", a.shape, b.shape))
	}
	c := Zeros(m, n)
	floats.MM(transA, transB, m, n, k, a.data, a.Cols(), b.data, b.Cols(), c.data, n)
	return c
}

// Concat joins two matrices with the same number of rows column-wise.
func Concat(a, b *Tensor) *Tensor {
	if a.Rows() != b.Rows() {
		panic(fmt.Sprintf("nn: concat row mismatch %v and %v", a.shape, b.shape))
	}
	rows, ca, cb := a.Rows(), a.Cols(), b.Cols()
	c := Zeros(rows, ca+cb)
	for i := 0; i < rows; i++ {
		dst := c.Row(i)
		copy(dst[:ca], a.Row(i))
		copy(dst[ca:], b.Row(i))
	}
	return c
}

// Split cuts a matrix into the columns before col and the columns from col on.
func Split(x *Tensor, col int) (*Tensor, *Tensor) {
	rows, cols := x.Rows(), x.Cols()
	if col < 0 || col > cols {
		panic(fmt.Sprintf("nn: split column %d out of %v", col, x.shape))
	}
	left, right := Zeros(rows, col), Zeros(rows, cols-col)
	for i := 0; i < rows; i++ {
		row := x.Row(i)
		copy(left.Row(i), row[:col])
		copy(right.Row(i), row[col:])
	}
	return left, right
}

// SumRows adds all rows together and returns a vector with one value per column.
func SumRows(x *Tensor) *Tensor {
	sum := Zeros(x.Cols())
	for i := 0; i < x.Rows(); i++ {
		floats.Add(sum.data, x.Row(i))
	}
	return sum
}
