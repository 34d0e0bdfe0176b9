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

package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopKFilter(t *testing.T) {
	// Test a adjacent vec
	a := NewTopKFilter[int32, float32](3)
	a.Push(10, 2)
	a.Push(20, 8)
	a.Push(30, 1)
	values := a.PopAllValues()
	assert.Equal(t, []int32{20, 10, 30}, values)
	// Test a full adjacent vec
	a = NewTopKFilter[int32, float32](3)
	for i, w := range []float32{2, 8, 1, 2, 5, 10, 7, 9} {
		a.Push(int32(i), w)
	}
	items, weights := a.PopAll()
	assert.Equal(t, []int32{5, 7, 1}, items)
	assert.Equal(t, []float32{10, 9, 8}, weights)
}

func TestTopKFilterTies(t *testing.T) {
	a := NewTopKFilter[int, float32](3)
	for i, w := range []float32{1, 3, 3, 0, 3, 3} {
		a.Push(i, w)
	}
	assert.Equal(t, []int{1, 2, 4}, a.PopAllValues())
}

func TestTopKFilterEmpty(t *testing.T) {
	a := NewTopKFilter[string, float64](0)
	a.Push("a", 1)
	items, weights := a.PopAll()
	assert.Empty(t, items)
	assert.Empty(t, weights)
}
