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

package dataset

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFreqDict(t *testing.T) {
	dict := NewFreqDict()
	assert.Equal(t, int32(0), dict.Id(100))
	assert.Equal(t, int32(1), dict.Id(200))
	assert.Equal(t, int32(1), dict.Id(200))
	assert.Equal(t, int32(2), dict.Id(300))
	assert.Equal(t, int32(2), dict.Id(300))
	assert.Equal(t, int32(2), dict.Id(300))
	assert.Equal(t, int32(3), dict.NotCount(400))
	assert.Equal(t, int32(4), dict.Count())
	assert.Equal(t, int32(1), dict.Freq(0))
	assert.Equal(t, int32(2), dict.Freq(1))
	assert.Equal(t, int32(3), dict.Freq(2))
	assert.Equal(t, int32(0), dict.Freq(3))
	assert.Equal(t, int32(0), dict.Freq(10))

	index, ok := dict.Index(300)
	assert.True(t, ok)
	assert.Equal(t, int32(2), index)
	_, ok = dict.Index(500)
	assert.False(t, ok)
	key, ok := dict.Key(1)
	assert.True(t, ok)
	assert.Equal(t, int64(200), key)
	_, ok = dict.Key(-1)
	assert.False(t, ok)
}

func TestFreqDict_Marshal(t *testing.T) {
	dict := NewFreqDict()
	dict.Id(30)
	dict.Id(10)
	dict.Id(20)
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, dict.Marshal(buf))
	restored := NewFreqDict()
	assert.NoError(t, restored.Unmarshal(buf))
	assert.Equal(t, int32(3), restored.Count())
	for _, key := range []int64{30, 10, 20} {
		expected, _ := dict.Index(key)
		actual, ok := restored.Index(key)
		assert.True(t, ok)
		assert.Equal(t, expected, actual)
	}
}
