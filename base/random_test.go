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

package base

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

const randomEpsilon = 0.1

func mean(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x
	}
	return sum / float32(len(v))
}

func stdDev(v []float32) float32 {
	m := mean(v)
	var sum float32
	for _, x := range v {
		sum += (x - m) * (x - m)
	}
	return math32.Sqrt(sum / float32(len(v)))
}

func TestRandomGenerator_NormalVector(t *testing.T) {
	rng := NewRandomGenerator(0)
	vec := rng.NormalVector(1000, 1, 2)
	assert.False(t, math32.Abs(mean(vec)-1) > randomEpsilon)
	assert.False(t, math32.Abs(stdDev(vec)-2) > randomEpsilon)
}

func TestRandomGenerator_Seed(t *testing.T) {
	a := NewRandomGenerator(42).NormalVector(10, 0, 1)
	b := NewRandomGenerator(42).NormalVector(10, 0, 1)
	assert.Equal(t, a, b)
}

func TestChoice(t *testing.T) {
	rng := NewRandomGenerator(0)
	for i := 0; i < 100; i++ {
		assert.Contains(t, []int32{3, 5, 7}, Choice(rng, []int32{3, 5, 7}))
	}
}
